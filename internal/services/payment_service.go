package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	stripego "github.com/stripe/stripe-go/v78"

	"github.com/zakpay/payment-service/internal/kafka"
	"github.com/zakpay/payment-service/internal/metrics"
	"github.com/zakpay/payment-service/internal/models"
	"github.com/zakpay/payment-service/internal/repository"
	"github.com/zakpay/payment-service/internal/stripe"
	"github.com/zakpay/payment-service/pkg/logger"
)

// Тип ошибки соединения, отсутствующий среди констант stripe-go
const stripeErrorTypeAPIConnection stripego.ErrorType = "api_connection_error"

// CreatePaymentInput входные данные операции создания платежа
type CreatePaymentInput struct {
	UserID         string
	Amount         float64
	Currency       string
	IdempotencyKey string
}

// CreatePaymentOutput результат успешного создания платежа
type CreatePaymentOutput struct {
	Transaction      *models.Transaction
	StripeCustomerID string
	PaymentIntentID  string
	ClientSecret     string
	EphemeralKey     string
}

// PaymentService оркестрирует создание платежа: сверка клиента,
// создание payment intent и запись транзакции.
type PaymentService struct {
	txRepo        repository.TransactionRepository
	customers     *CustomerService
	stripeClient  stripe.Client
	producer      kafka.PaymentProducer // Может быть nil, если Kafka недоступен
	metrics       metrics.PaymentMetrics
	dbTimeout     time.Duration
	stripeTimeout time.Duration
	log           *logger.Logger
}

// NewPaymentService конструктор сервиса платежей
func NewPaymentService(
	txRepo repository.TransactionRepository,
	customers *CustomerService,
	stripeClient stripe.Client,
	producer kafka.PaymentProducer, // Принимаем интерфейс, может быть nil
	paymentMetrics metrics.PaymentMetrics,
	dbTimeout, stripeTimeout time.Duration,
	log *logger.Logger,
) *PaymentService {
	if producer == nil {
		log.Warnw("Kafka producer is nil, event publishing will be skipped")
	}
	if dbTimeout <= 0 {
		dbTimeout = 10 * time.Second
	}
	if stripeTimeout <= 0 {
		stripeTimeout = 10 * time.Second
	}
	return &PaymentService{
		txRepo:        txRepo,
		customers:     customers,
		stripeClient:  stripeClient,
		producer:      producer,
		metrics:       paymentMetrics,
		dbTimeout:     dbTimeout,
		stripeTimeout: stripeTimeout,
		log:           log,
	}
}

// CreatePayment выполняет полный поток создания платежа.
// Все внешние сбои конвертируются в типизированные ошибки сервиса,
// ничего не пробрасывается до HTTP слоя как необработанный сбой.
func (s *PaymentService) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentOutput, error) {
	if err := validateCreatePayment(input); err != nil {
		s.log.Warnw("CreatePayment called with invalid input",
			"userID", input.UserID,
			"amount", input.Amount,
			"currency", input.Currency,
			"error", err)
		return nil, err
	}

	s.log.Infow("Starting CreatePayment", "userID", input.UserID, "amount", input.Amount, "currency", input.Currency)
	startTime := time.Now()

	// Шаг 1: сверяем клиента Stripe
	reconciled, err := s.customers.ReconcileCustomer(ctx, input.UserID)
	if err != nil {
		s.log.Errorw("Customer reconciliation failed", "userID", input.UserID, "error", err)
		s.trackFailure(ctx, input, err)
		return nil, err
	}

	// Шаг 2: создаем payment intent на сумму в минорных единицах
	amountMinor := toMinorUnits(input.Amount)

	stripeCtx, cancel := context.WithTimeout(ctx, s.stripeTimeout)
	defer cancel()

	intent, err := s.stripeClient.CreatePaymentIntent(stripeCtx, amountMinor, input.Currency, reconciled.StripeCustomerID, input.IdempotencyKey)
	if err != nil {
		s.trackFailure(ctx, input, err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: payment intent: %v", ErrTimeout, err)
		}
		// Двойной %w сохраняет цепочку до *stripe.Error для классификации повторов
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	// Шаг 3: фиксируем транзакцию
	transaction := models.NewTransaction(input.UserID, reconciled.StripeCustomerID, intent.ID, input.Amount, input.Currency)

	dbCtx, cancelDB := context.WithTimeout(ctx, s.dbTimeout)
	defer cancelDB()

	if err := s.txRepo.Create(dbCtx, transaction); err != nil {
		// Intent уже существует в Stripe, но локально не записан:
		// обнаруженная, но не устраненная рассинхронизация
		s.log.Errorw("Payment intent created in Stripe but transaction was not persisted",
			"userID", input.UserID,
			"paymentIntentID", intent.ID,
			"stripeCustomerID", reconciled.StripeCustomerID,
			"amount", input.Amount,
			"currency", input.Currency,
			"error", err)
		s.trackFailure(ctx, input, err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: transaction persist: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: failed to record transaction: %v", ErrPaymentFailed, err)
	}

	if s.metrics != nil {
		s.metrics.IncPaymentCreated(input.Currency)
		s.metrics.ObservePaymentAmount(input.Amount, input.Currency, "created")
	}

	// Асинхронная отправка события, чтобы не блокировать ответ
	if s.producer != nil {
		go s.publishCreated(context.WithoutCancel(ctx), transaction)
	}

	s.log.Infow("Payment created successfully",
		"userID", input.UserID,
		"paymentIntentID", intent.ID,
		"durationMs", time.Since(startTime).Milliseconds())

	return &CreatePaymentOutput{
		Transaction:      transaction,
		StripeCustomerID: reconciled.StripeCustomerID,
		PaymentIntentID:  intent.ID,
		ClientSecret:     intent.ClientSecret,
		EphemeralKey:     reconciled.EphemeralKey,
	}, nil
}

// CreatePaymentWithRetry - обертка с повторными попытками для временных ошибок Stripe
func (s *PaymentService) CreatePaymentWithRetry(ctx context.Context, input CreatePaymentInput) (*CreatePaymentOutput, error) {
	var output *CreatePaymentOutput
	var lastErr error

	operation := func() error {
		var err error
		output, err = s.CreatePayment(ctx, input)
		lastErr = err
		if err != nil {
			if isRetryableStripeError(err) {
				s.log.Warnw("Retryable Stripe error, retrying", "userID", input.UserID, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 15 * time.Second
	bo.MaxElapsedTime = 1 * time.Minute
	bo.Reset()

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		s.log.Errorw("Failed to create payment after all retries", "userID", input.UserID, "lastError", lastErr)
		return nil, lastErr
	}

	return output, nil
}

// GetTransactionByIntentID возвращает запись платежа по идентификатору intent
func (s *PaymentService) GetTransactionByIntentID(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	dbCtx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()

	tx, err := s.txRepo.GetByPaymentIntentID(dbCtx, paymentIntentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: transaction lookup: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: transaction lookup: %v", ErrPaymentFailed, err)
	}
	return tx, nil
}

// validateCreatePayment проверяет предусловия до любых внешних вызовов
func validateCreatePayment(input CreatePaymentInput) error {
	if input.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if input.Amount <= 0 {
		return fmt.Errorf("%w: amount must be a positive number", ErrInvalidInput)
	}
	if math.IsNaN(input.Amount) || math.IsInf(input.Amount, 0) {
		return fmt.Errorf("%w: amount must be a finite number", ErrInvalidInput)
	}
	// Не более двух знаков после запятой: минорные единицы должны быть целыми
	scaled := input.Amount * 100
	if math.Abs(scaled-math.Round(scaled)) > 1e-6 {
		return fmt.Errorf("%w: amount must have at most two decimal places", ErrInvalidInput)
	}
	if input.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidInput)
	}
	return nil
}

// toMinorUnits переводит сумму в минорные единицы (центы).
// После валидации точности округление совпадает с усечением к нулю,
// но не ловит шум плавающей точки вида 500.1*100 = 50010.000000000007.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// trackFailure записывает метрики и событие о неудачном платеже
func (s *PaymentService) trackFailure(ctx context.Context, input CreatePaymentInput, cause error) {
	if s.metrics != nil {
		s.metrics.IncPaymentFailed(input.Currency)
	}
	if s.producer != nil {
		go func(failCtx context.Context) {
			if err := s.producer.PublishPaymentFailed(failCtx, input.UserID, input.Amount, input.Currency, cause.Error()); err != nil {
				s.log.Errorw("Failed to publish payment failed event", "userID", input.UserID, "error", err)
			}
		}(context.WithoutCancel(ctx))
	}
}

// publishCreated отправляет событие о созданном платеже в Kafka
func (s *PaymentService) publishCreated(ctx context.Context, tx *models.Transaction) {
	kafkaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.producer.PublishPaymentCreated(kafkaCtx, tx); err != nil {
		// Логируем, но основной поток не прерываем
		s.log.Errorw("Failed to publish payment created event",
			"transactionID", tx.ID.String(),
			"paymentIntentID", tx.PaymentIntentID,
			"error", err)
	}
}

// isRetryableStripeError проверяет, подходит ли ошибка Stripe для повторной попытки
func isRetryableStripeError(err error) bool {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		if stripeErr.Type == stripeErrorTypeAPIConnection {
			return true
		}
		// 5xx от Stripe могут быть временными, 501 обычно нет
		if stripeErr.HTTPStatusCode >= 500 && stripeErr.HTTPStatusCode != http.StatusNotImplemented {
			return true
		}
	}
	return false
}
