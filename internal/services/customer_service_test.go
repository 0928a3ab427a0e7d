package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zakpay/payment-service/internal/repository"
)

func TestReconcileCreatesCustomerForNewUser(t *testing.T) {
	env := newTestEnv(t)
	customers := env.svc.customers

	out, err := customers.ReconcileCustomer(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.stripe.createdCustomers) != 1 {
		t.Fatalf("expected 1 created customer, got %d", len(env.stripe.createdCustomers))
	}
	if out.StripeCustomerID != env.stripe.createdCustomers[0] {
		t.Errorf("returned %q, created %q", out.StripeCustomerID, env.stripe.createdCustomers[0])
	}
	if !strings.HasPrefix(out.EphemeralKey, "ek_test_secret_") {
		t.Errorf("unexpected ephemeral key %q", out.EphemeralKey)
	}

	// The binding must be queryable afterwards.
	binding, err := env.bindings.GetByUserID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("binding not stored: %v", err)
	}
	if binding.StripeCustomerID != out.StripeCustomerID {
		t.Errorf("binding %q, want %q", binding.StripeCustomerID, out.StripeCustomerID)
	}
}

func TestReconcileIsIdempotentPerUser(t *testing.T) {
	env := newTestEnv(t)
	customers := env.svc.customers

	first, err := customers.ReconcileCustomer(context.Background(), "u1")
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	second, err := customers.ReconcileCustomer(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}

	if first.StripeCustomerID != second.StripeCustomerID {
		t.Errorf("reconcile produced different customers: %q vs %q", first.StripeCustomerID, second.StripeCustomerID)
	}
	if len(env.stripe.createdCustomers) != 1 {
		t.Errorf("expected exactly 1 stripe customer, got %d", len(env.stripe.createdCustomers))
	}
}

func TestReconcileLookupFailurePropagates(t *testing.T) {
	env := newTestEnv(t)
	customers := env.svc.customers

	if _, err := env.bindings.Bind(context.Background(), "u1", "cus_deleted"); err != nil {
		t.Fatalf("seed binding: %v", err)
	}
	env.stripe.getCustomerErr = errors.New("resource_missing")

	_, err := customers.ReconcileCustomer(context.Background(), "u1")
	if !errors.Is(err, ErrCustomerLookup) {
		t.Fatalf("expected ErrCustomerLookup, got %v", err)
	}
	if len(env.stripe.createdCustomers) != 0 {
		t.Errorf("must not silently create a new customer, created %d", len(env.stripe.createdCustomers))
	}
}

func TestReconcileAdoptsRaceWinnerBinding(t *testing.T) {
	env := newTestEnv(t)
	customers := env.svc.customers

	// Simulate a concurrent request that bound this user first.
	env.bindings.existingOnBind = "cus_winner"

	out, err := customers.ReconcileCustomer(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.StripeCustomerID != "cus_winner" {
		t.Errorf("expected adopted binding cus_winner, got %q", out.StripeCustomerID)
	}
	// The loser's customer was still created at Stripe, but only one binding exists.
	if len(env.stripe.createdCustomers) != 1 {
		t.Errorf("expected 1 created customer, got %d", len(env.stripe.createdCustomers))
	}
	binding, err := env.bindings.GetByUserID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("binding missing: %v", err)
	}
	if binding.StripeCustomerID != "cus_winner" {
		t.Errorf("stored binding %q, want cus_winner", binding.StripeCustomerID)
	}
}

func TestReconcileBindingStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	customers := env.svc.customers

	env.bindings.getErr = errors.New("connection refused")

	_, err := customers.ReconcileCustomer(context.Background(), "u1")
	if !errors.Is(err, ErrCustomerResolution) {
		t.Fatalf("expected ErrCustomerResolution, got %v", err)
	}
}

func TestReconcileNotFoundPathUsesAtomicBind(t *testing.T) {
	env := newTestEnv(t)
	customers := env.svc.customers

	if _, err := customers.ReconcileCustomer(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.bindings.bindCalls != 1 {
		t.Errorf("expected 1 atomic bind call, got %d", env.bindings.bindCalls)
	}
	if _, err := env.bindings.GetByUserID(context.Background(), "u2"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unbound user, got %v", err)
	}
}
