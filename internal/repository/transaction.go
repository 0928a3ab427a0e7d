package repository

import (
	"context"

	"github.com/zakpay/payment-service/internal/models"
)

// TransactionRepository интерфейс для работы с записями платежей
type TransactionRepository interface {
	// Create сохраняет новую запись платежа.
	Create(ctx context.Context, tx *models.Transaction) error

	// GetByPaymentIntentID возвращает запись по идентификатору payment intent.
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Transaction, error)

	// GetLatestByUserID возвращает последнюю запись пользователя.
	GetLatestByUserID(ctx context.Context, userID string) (*models.Transaction, error)
}
