package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/zakpay/payment-service/pkg/logger"
)

const (
	// Ключ метаданных для связи Stripe Customer с локальным UserID
	metadataUserIDKey = "user_id"

	// Версия API для ephemeral keys (требование мобильного SDK)
	ephemeralKeyAPIVersion = "2024-06-20"
)

// PaymentIntent содержит данные созданного payment intent.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// Client определяет методы для взаимодействия со Stripe API.
type Client interface {
	// CreateCustomer создает нового клиента в Stripe и возвращает его Stripe ID.
	CreateCustomer(ctx context.Context, userID string) (string, error)

	// GetCustomer проверяет существование клиента по Stripe ID.
	GetCustomer(ctx context.Context, stripeCustomerID string) (string, error)

	// CreateEphemeralKey выдает временный ключ доступа для клиента.
	CreateEphemeralKey(ctx context.Context, stripeCustomerID string) (string, error)

	// CreatePaymentIntent создает payment intent на сумму в минорных единицах.
	CreatePaymentIntent(ctx context.Context, amountMinor int64, currency, stripeCustomerID, idempotencyKey string) (*PaymentIntent, error)
}

// stripeClient реализует интерфейс Client.
type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeClient создает новый экземпляр клиента Stripe.
func NewStripeClient(apiKey string, log *logger.Logger) Client {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

// CreateCustomer создает нового клиента в Stripe.
func (sc *stripeClient) CreateCustomer(ctx context.Context, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			metadataUserIDKey: userID,
		},
	}
	params.Context = ctx

	cus, err := sc.client.Customers.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCustomer", err)
		return "", fmt.Errorf("stripe: failed to create customer: %w", err)
	}

	sc.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "userID", userID)
	return cus.ID, nil
}

// GetCustomer проверяет существование клиента по Stripe ID.
func (sc *stripeClient) GetCustomer(ctx context.Context, stripeCustomerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cus, err := sc.client.Customers.Get(stripeCustomerID, params)
	if err != nil {
		logStripeError(sc.log, "GetCustomer", err)
		return "", fmt.Errorf("stripe: failed to retrieve customer %s: %w", stripeCustomerID, err)
	}

	// Удаленный клиент бесполезен для новых платежей
	if cus.Deleted {
		return "", fmt.Errorf("stripe: customer %s is deleted", stripeCustomerID)
	}

	sc.log.Debugw("Stripe customer retrieved", "stripeCustomerID", cus.ID)
	return cus.ID, nil
}

// CreateEphemeralKey выдает временный ключ доступа для клиента.
func (sc *stripeClient) CreateEphemeralKey(ctx context.Context, stripeCustomerID string) (string, error) {
	params := &stripe.EphemeralKeyParams{
		Customer:      stripe.String(stripeCustomerID),
		StripeVersion: stripe.String(ephemeralKeyAPIVersion),
	}
	params.Context = ctx

	key, err := sc.client.EphemeralKeys.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateEphemeralKey", err)
		return "", fmt.Errorf("stripe: failed to create ephemeral key: %w", err)
	}

	sc.log.Debugw("Stripe ephemeral key issued", "stripeCustomerID", stripeCustomerID)
	return key.Secret, nil
}

// CreatePaymentIntent создает payment intent для клиента.
func (sc *stripeClient) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency, stripeCustomerID, idempotencyKey string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		Customer: stripe.String(stripeCustomerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}

	pi, err := sc.client.PaymentIntents.New(params)
	if err != nil {
		logStripeError(sc.log, "CreatePaymentIntent", err)
		return nil, fmt.Errorf("stripe: failed to create payment intent: %w", err)
	}

	sc.log.Infow("Stripe payment intent created",
		"paymentIntentID", pi.ID,
		"amountMinor", amountMinor,
		"currency", currency,
		"stripeCustomerID", stripeCustomerID)

	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
