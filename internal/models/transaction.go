package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction представляет одну попытку платежа.
// Запись создается один раз после успешного создания payment intent
// и никогда не обновляется.
type Transaction struct {
	ID               uuid.UUID `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	StripeCustomerID string    `db:"stripe_customer_id" json:"stripe_customer_id"`
	PaymentIntentID  string    `db:"payment_intent_id" json:"payment_intent_id"` // Уникален
	Amount           float64   `db:"amount" json:"amount"`                       // В основных единицах валюты
	Currency         string    `db:"currency" json:"currency"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// NewTransaction создает новую Transaction с заданными параметрами
func NewTransaction(userID, stripeCustomerID, paymentIntentID string, amount float64, currency string) *Transaction {
	return &Transaction{
		ID:               uuid.New(),
		UserID:           userID,
		StripeCustomerID: stripeCustomerID,
		PaymentIntentID:  paymentIntentID,
		Amount:           amount,
		Currency:         currency,
		CreatedAt:        time.Now(),
	}
}
