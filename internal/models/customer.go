package models

import (
	"time"
)

// CustomerBinding связывает локального пользователя с клиентом Stripe.
// На одного пользователя существует не более одной привязки (уникальный
// индекс по user_id).
type CustomerBinding struct {
	UserID           string    `db:"user_id" json:"user_id"`
	StripeCustomerID string    `db:"stripe_customer_id" json:"stripe_customer_id"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
