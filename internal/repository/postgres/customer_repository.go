package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zakpay/payment-service/internal/models"
	"github.com/zakpay/payment-service/internal/repository"
	"github.com/zakpay/payment-service/pkg/logger"
)

// PostgresCustomerBindingRepository реализация репозитория привязок через PostgreSQL
type PostgresCustomerBindingRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresCustomerBindingRepository создает новый репозиторий привязок через PostgreSQL
func NewPostgresCustomerBindingRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresCustomerBindingRepository {
	return &PostgresCustomerBindingRepository{
		db:  db,
		log: log,
	}
}

// GetByUserID возвращает привязку пользователя
func (r *PostgresCustomerBindingRepository) GetByUserID(ctx context.Context, userID string) (*models.CustomerBinding, error) {
	query := `
		SELECT user_id, stripe_customer_id, created_at, updated_at
		FROM customer_bindings
		WHERE user_id = $1
	`

	var binding models.CustomerBinding
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&binding.UserID,
		&binding.StripeCustomerID,
		&binding.CreatedAt,
		&binding.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer binding: %w", err)
	}

	return &binding, nil
}

// Bind атомарно сохраняет привязку userID -> stripeCustomerID.
// ON CONFLICT оставляет существующий stripe_customer_id нетронутым:
// проигравший гонку запрос получает привязку победителя.
func (r *PostgresCustomerBindingRepository) Bind(ctx context.Context, userID, stripeCustomerID string) (*models.CustomerBinding, error) {
	query := `
		INSERT INTO customer_bindings (user_id, stripe_customer_id, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
		RETURNING user_id, stripe_customer_id, created_at, updated_at
	`

	var binding models.CustomerBinding
	err := r.db.QueryRow(ctx, query, userID, stripeCustomerID).Scan(
		&binding.UserID,
		&binding.StripeCustomerID,
		&binding.CreatedAt,
		&binding.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to bind customer: %w", err)
	}

	if binding.StripeCustomerID != stripeCustomerID {
		r.log.Warnw("Customer binding race detected, keeping existing Stripe customer",
			"userID", userID,
			"existingStripeCustomerID", binding.StripeCustomerID,
			"orphanedStripeCustomerID", stripeCustomerID)
	}

	return &binding, nil
}
