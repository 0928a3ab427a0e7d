package repository

import (
	"context"

	"github.com/zakpay/payment-service/internal/models"
)

// CustomerBindingRepository интерфейс для работы с привязками клиентов Stripe
type CustomerBindingRepository interface {
	// GetByUserID возвращает привязку пользователя или ErrNotFound.
	GetByUserID(ctx context.Context, userID string) (*models.CustomerBinding, error)

	// Bind атомарно сохраняет привязку userID -> stripeCustomerID.
	// Если привязка уже существует (в том числе созданная конкурентным
	// запросом), возвращается существующая запись, а не новая.
	Bind(ctx context.Context, userID, stripeCustomerID string) (*models.CustomerBinding, error)
}
