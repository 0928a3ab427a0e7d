package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/zakpay/payment-service/internal/models"
	"github.com/zakpay/payment-service/internal/repository"
	"github.com/zakpay/payment-service/internal/stripe"
	"github.com/zakpay/payment-service/pkg/logger"
)

// fakeBindingRepo is an in-memory CustomerBindingRepository for tests.
type fakeBindingRepo struct {
	mu       sync.Mutex
	bindings map[string]*models.CustomerBinding

	getErr  error
	bindErr error
	// existingOnBind simulates losing the reconciliation race: Bind returns
	// a binding to this customer id instead of the requested one.
	existingOnBind string

	getCalls  int
	bindCalls int
}

func newFakeBindingRepo() *fakeBindingRepo {
	return &fakeBindingRepo{bindings: make(map[string]*models.CustomerBinding)}
}

func (f *fakeBindingRepo) GetByUserID(ctx context.Context, userID string) (*models.CustomerBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.bindings[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBindingRepo) Bind(ctx context.Context, userID, stripeCustomerID string) (*models.CustomerBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindCalls++
	if f.bindErr != nil {
		return nil, f.bindErr
	}
	if existing, ok := f.bindings[userID]; ok {
		existing.UpdatedAt = time.Now()
		copied := *existing
		return &copied, nil
	}
	id := stripeCustomerID
	if f.existingOnBind != "" {
		id = f.existingOnBind
	}
	now := time.Now()
	binding := &models.CustomerBinding{
		UserID:           userID,
		StripeCustomerID: id,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.bindings[userID] = binding
	copied := *binding
	return &copied, nil
}

// fakeTxRepo is an in-memory TransactionRepository for tests.
type fakeTxRepo struct {
	mu        sync.Mutex
	txs       []*models.Transaction
	createErr error
}

func (f *fakeTxRepo) Create(ctx context.Context, tx *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *tx
	f.txs = append(f.txs, &copied)
	return nil
}

func (f *fakeTxRepo) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.txs {
		if tx.PaymentIntentID == paymentIntentID {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTxRepo) GetLatestByUserID(ctx context.Context, userID string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.txs) - 1; i >= 0; i-- {
		if f.txs[i].UserID == userID {
			copied := *f.txs[i]
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTxRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.txs)
}

// intentCall records one CreatePaymentIntent invocation, failed attempts included.
type intentCall struct {
	amountMinor    int64
	currency       string
	customerID     string
	idempotencyKey string
}

// fakeStripeClient implements stripe.Client without network calls.
type fakeStripeClient struct {
	mu sync.Mutex

	createCustomerErr error
	getCustomerErr    error
	ephemeralErr      error
	intentErr         error
	// intentErrQueue is consumed one error per call before intentErr applies,
	// simulating transient failures that clear on retry.
	intentErrQueue []error

	customerSeq      int
	intentSeq        int
	createdCustomers []string
	getCustomerCalls []string
	ephemeralCalls   []string
	intentCalls      []intentCall
}

func (f *fakeStripeClient) CreateCustomer(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createCustomerErr != nil {
		return "", f.createCustomerErr
	}
	f.customerSeq++
	id := fmt.Sprintf("cus_test_%d", f.customerSeq)
	f.createdCustomers = append(f.createdCustomers, id)
	return id, nil
}

func (f *fakeStripeClient) GetCustomer(ctx context.Context, stripeCustomerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCustomerCalls = append(f.getCustomerCalls, stripeCustomerID)
	if f.getCustomerErr != nil {
		return "", f.getCustomerErr
	}
	return stripeCustomerID, nil
}

func (f *fakeStripeClient) CreateEphemeralKey(ctx context.Context, stripeCustomerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ephemeralErr != nil {
		return "", f.ephemeralErr
	}
	f.ephemeralCalls = append(f.ephemeralCalls, stripeCustomerID)
	return "ek_test_secret_" + stripeCustomerID, nil
}

func (f *fakeStripeClient) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency, stripeCustomerID, idempotencyKey string) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intentCalls = append(f.intentCalls, intentCall{
		amountMinor:    amountMinor,
		currency:       currency,
		customerID:     stripeCustomerID,
		idempotencyKey: idempotencyKey,
	})
	if len(f.intentErrQueue) > 0 {
		err := f.intentErrQueue[0]
		f.intentErrQueue = f.intentErrQueue[1:]
		return nil, err
	}
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	f.intentSeq++
	id := fmt.Sprintf("pi_test_%d", f.intentSeq)
	return &stripe.PaymentIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (f *fakeStripeClient) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createdCustomers) + len(f.getCustomerCalls) + len(f.ephemeralCalls) + len(f.intentCalls)
}

// testEnv bundles the service under test with its fakes.
type testEnv struct {
	svc      *PaymentService
	txRepo   *fakeTxRepo
	bindings *fakeBindingRepo
	stripe   *fakeStripeClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)

	bindings := newFakeBindingRepo()
	txRepo := &fakeTxRepo{}
	stripeClient := &fakeStripeClient{}

	customers := NewCustomerService(bindings, stripeClient, time.Second, time.Second, log)
	svc := NewPaymentService(txRepo, customers, stripeClient, nil, nil, time.Second, time.Second, log)

	return &testEnv{
		svc:      svc,
		txRepo:   txRepo,
		bindings: bindings,
		stripe:   stripeClient,
	}
}
