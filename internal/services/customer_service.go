package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zakpay/payment-service/internal/models"
	"github.com/zakpay/payment-service/internal/repository"
	"github.com/zakpay/payment-service/internal/stripe"
	"github.com/zakpay/payment-service/pkg/logger"
)

// ReconcileOutput результат сверки клиента: хэндл клиента Stripe и
// временный ключ доступа для мобильного SDK.
type ReconcileOutput struct {
	StripeCustomerID string
	EphemeralKey     string
}

// CustomerService сверяет локального пользователя с клиентом Stripe:
// находит существующую привязку или создает нового клиента.
type CustomerService struct {
	bindings      repository.CustomerBindingRepository
	stripeClient  stripe.Client
	dbTimeout     time.Duration
	stripeTimeout time.Duration
	log           *logger.Logger
}

// NewCustomerService конструктор сервиса сверки клиентов
func NewCustomerService(
	bindings repository.CustomerBindingRepository,
	stripeClient stripe.Client,
	dbTimeout, stripeTimeout time.Duration,
	log *logger.Logger,
) *CustomerService {
	if dbTimeout <= 0 {
		dbTimeout = 10 * time.Second
	}
	if stripeTimeout <= 0 {
		stripeTimeout = 10 * time.Second
	}
	return &CustomerService{
		bindings:      bindings,
		stripeClient:  stripeClient,
		dbTimeout:     dbTimeout,
		stripeTimeout: stripeTimeout,
		log:           log,
	}
}

// ReconcileCustomer возвращает клиента Stripe для пользователя, создавая
// его при отсутствии привязки, и выдает ephemeral key.
//
// Если привязка существует, но клиента не удалось получить из Stripe,
// ошибка пробрасывается как ErrCustomerLookup: молчаливое создание нового
// клиента при живой привязке скрыло бы рассинхронизацию между базой и Stripe.
func (s *CustomerService) ReconcileCustomer(ctx context.Context, userID string) (*ReconcileOutput, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	binding, err := s.lookupBinding(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	var stripeCustomerID string
	if binding != nil {
		stripeCustomerID, err = s.verifyCustomer(ctx, binding.StripeCustomerID)
		if err != nil {
			return nil, err
		}
		s.log.Debugw("Existing Stripe customer verified", "userID", userID, "stripeCustomerID", stripeCustomerID)
	} else {
		stripeCustomerID, err = s.createAndBindCustomer(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	ephemeralKey, err := s.issueEphemeralKey(ctx, stripeCustomerID)
	if err != nil {
		return nil, err
	}

	return &ReconcileOutput{
		StripeCustomerID: stripeCustomerID,
		EphemeralKey:     ephemeralKey,
	}, nil
}

// lookupBinding ищет привязку пользователя в хранилище
func (s *CustomerService) lookupBinding(ctx context.Context, userID string) (*models.CustomerBinding, error) {
	dbCtx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()

	stored, err := s.bindings.GetByUserID(dbCtx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: binding lookup: %v", ErrTimeout, err)
		}
		s.log.Errorw("Failed to look up customer binding", "userID", userID, "error", err)
		return nil, fmt.Errorf("%w: binding lookup: %v", ErrCustomerResolution, err)
	}

	return stored, nil
}

// verifyCustomer проверяет, что клиент из привязки еще существует в Stripe
func (s *CustomerService) verifyCustomer(ctx context.Context, stripeCustomerID string) (string, error) {
	stripeCtx, cancel := context.WithTimeout(ctx, s.stripeTimeout)
	defer cancel()

	id, err := s.stripeClient.GetCustomer(stripeCtx, stripeCustomerID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: customer retrieve: %v", ErrTimeout, err)
		}
		s.log.Errorw("Failed to retrieve bound Stripe customer", "stripeCustomerID", stripeCustomerID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrCustomerLookup, err)
	}
	return id, nil
}

// createAndBindCustomer создает клиента в Stripe и атомарно сохраняет привязку.
// При конкурентной гонке используется привязка победителя.
func (s *CustomerService) createAndBindCustomer(ctx context.Context, userID string) (string, error) {
	stripeCtx, cancel := context.WithTimeout(ctx, s.stripeTimeout)
	defer cancel()

	created, err := s.stripeClient.CreateCustomer(stripeCtx, userID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: customer create: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: customer create: %v", ErrCustomerResolution, err)
	}

	dbCtx, cancelDB := context.WithTimeout(ctx, s.dbTimeout)
	defer cancelDB()

	binding, err := s.bindings.Bind(dbCtx, userID, created)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: customer bind: %v", ErrTimeout, err)
		}
		s.log.Errorw("Failed to persist customer binding",
			"userID", userID,
			"stripeCustomerID", created,
			"error", err)
		return "", fmt.Errorf("%w: customer bind: %v", ErrCustomerResolution, err)
	}

	if binding.StripeCustomerID != created {
		// Гонку выиграл другой запрос: созданный здесь клиент остается
		// сиротой в Stripe, но дубликат привязки не появляется
		s.log.Warnw("Concurrent reconciliation won, adopting existing binding",
			"userID", userID,
			"adoptedStripeCustomerID", binding.StripeCustomerID,
			"orphanedStripeCustomerID", created)
	} else {
		s.log.Infow("Customer binding created", "userID", userID, "stripeCustomerID", created)
	}

	return binding.StripeCustomerID, nil
}

// issueEphemeralKey выдает временный ключ доступа для клиента
func (s *CustomerService) issueEphemeralKey(ctx context.Context, stripeCustomerID string) (string, error) {
	stripeCtx, cancel := context.WithTimeout(ctx, s.stripeTimeout)
	defer cancel()

	key, err := s.stripeClient.CreateEphemeralKey(stripeCtx, stripeCustomerID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: ephemeral key: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: ephemeral key: %v", ErrCustomerResolution, err)
	}
	return key, nil
}
