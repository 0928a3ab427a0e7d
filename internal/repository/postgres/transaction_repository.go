package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zakpay/payment-service/internal/models"
	"github.com/zakpay/payment-service/internal/repository"
	"github.com/zakpay/payment-service/pkg/logger"
)

// PostgresTransactionRepository реализация репозитория платежей через PostgreSQL
type PostgresTransactionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresTransactionRepository создает новый репозиторий платежей через PostgreSQL
func NewPostgresTransactionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{
		db:  db,
		log: log,
	}
}

// Create сохраняет новую запись платежа
func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, stripe_customer_id, payment_intent_id, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		tx.ID,
		tx.UserID,
		tx.StripeCustomerID,
		tx.PaymentIntentID,
		tx.Amount,
		tx.Currency,
		tx.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// Нарушение уникальности payment_intent_id
			if pgErr.Code == "23505" {
				return repository.ErrDuplicate
			}
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByPaymentIntentID возвращает запись по идентификатору payment intent
func (r *PostgresTransactionRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	query := `
		SELECT id, user_id, stripe_customer_id, payment_intent_id, amount, currency, created_at
		FROM transactions
		WHERE payment_intent_id = $1
	`

	var tx models.Transaction
	err := r.db.QueryRow(ctx, query, paymentIntentID).Scan(
		&tx.ID,
		&tx.UserID,
		&tx.StripeCustomerID,
		&tx.PaymentIntentID,
		&tx.Amount,
		&tx.Currency,
		&tx.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &tx, nil
}

// GetLatestByUserID возвращает последнюю запись пользователя
func (r *PostgresTransactionRepository) GetLatestByUserID(ctx context.Context, userID string) (*models.Transaction, error) {
	query := `
		SELECT id, user_id, stripe_customer_id, payment_intent_id, amount, currency, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var tx models.Transaction
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&tx.ID,
		&tx.UserID,
		&tx.StripeCustomerID,
		&tx.PaymentIntentID,
		&tx.Amount,
		&tx.Currency,
		&tx.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest transaction: %w", err)
	}

	return &tx, nil
}
