package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zakpay/payment-service/internal/services"
	"github.com/zakpay/payment-service/pkg/logger"
	"github.com/zakpay/payment-service/pkg/req"
	"github.com/zakpay/payment-service/pkg/res"
)

// PaymentHandler обрабатывает HTTP запросы создания платежей (для Gin).
type PaymentHandler struct {
	service        *services.PaymentService
	publishableKey string
	log            *logger.Logger
}

// NewPaymentHandler создает новый экземпляр PaymentHandler.
// Publishable key приходит из конфигурации, а не из литерала в коде.
func NewPaymentHandler(service *services.PaymentService, publishableKey string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:        service,
		publishableKey: publishableKey,
		log:            log,
	}
}

// --- DTO ---

// CreatePaymentRequest строгая схема тела запроса.
// Неизвестные и нетипизированные поля отклоняются на этапе декодирования.
type CreatePaymentRequest struct {
	UserID   string  `json:"user_id" validate:"required"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Currency string  `json:"currency" validate:"required"`
}

// CreatePaymentResponse тело успешного ответа
type CreatePaymentResponse struct {
	Message        string  `json:"message"`
	PaymentIntent  string  `json:"paymentIntent"`
	ClientSecret   string  `json:"clientSecret"`
	EphemeralKey   string  `json:"ephemeralKey"`
	Customer       string  `json:"customer"`
	PublishableKey string  `json:"publishableKey,omitempty"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
}

const invalidRequestMessage = "Invalid request. Please provide user_id, amount, and currency."

// CreatePayment обрабатывает POST /api/create-payment
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx := c.Request.Context()

	idempotencyKey := c.GetHeader("Idempotency-Key")

	// Шаг 1: декодируем тело запроса по строгой схеме
	requestBody, err := req.Decode[CreatePaymentRequest](c.Request.Body)
	if err != nil {
		h.log.Warnw("Failed to decode request body", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Message: invalidRequestMessage}, http.StatusBadRequest)
		c.Abort()
		return
	}

	// Шаг 2: валидируем тело запроса
	if err := req.IsValid(requestBody); err != nil {
		h.log.Warnw("Request body validation failed", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Message: invalidRequestMessage}, http.StatusBadRequest)
		c.Abort()
		return
	}

	input := services.CreatePaymentInput{
		UserID:         requestBody.UserID,
		Amount:         requestBody.Amount,
		Currency:       requestBody.Currency,
		IdempotencyKey: idempotencyKey,
	}

	output, err := h.service.CreatePaymentWithRetry(ctx, input)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	res.JsonResponse(c.Writer, CreatePaymentResponse{
		Message:        "Payment successful",
		PaymentIntent:  output.PaymentIntentID,
		ClientSecret:   output.ClientSecret,
		EphemeralKey:   output.EphemeralKey,
		Customer:       output.StripeCustomerID,
		PublishableKey: h.publishableKey,
		Amount:         output.Transaction.Amount,
		Currency:       output.Transaction.Currency,
	}, http.StatusOK)
}

// writeServiceError преобразует типизированные ошибки сервиса в HTTP статусы
func (h *PaymentHandler) writeServiceError(c *gin.Context, err error) {
	h.log.Errorw("Service failed to create payment", "error", err)

	switch {
	case errors.Is(err, services.ErrInvalidInput):
		res.JsonResponse(c.Writer, res.ErrorResponse{Message: invalidRequestMessage}, http.StatusBadRequest)
	case errors.Is(err, services.ErrTimeout):
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Message: "Payment failed",
			Error:   err.Error(),
		}, http.StatusGatewayTimeout)
	case errors.Is(err, services.ErrCustomerLookup), errors.Is(err, services.ErrCustomerResolution):
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Message: "Failed to create or retrieve Stripe customer.",
			Error:   err.Error(),
		}, http.StatusInternalServerError)
	default:
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Message: "Payment failed",
			Error:   err.Error(),
		}, http.StatusInternalServerError)
	}
	c.Abort()
}
