package repository

import (
	"context"
	"errors"

	"github.com/zakpay/payment-service/internal/models"
	"github.com/zakpay/payment-service/pkg/logger"
)

// CachedCustomerBindingRepository оборачивает базовый репозиторий привязок
// кэшированием через Redis. Ошибки кэша не прерывают основной поток.
type CachedCustomerBindingRepository struct {
	base  CustomerBindingRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedCustomerBindingRepository создает репозиторий привязок с кэшированием
func NewCachedCustomerBindingRepository(base CustomerBindingRepository, cache *RedisCacheRepository, log *logger.Logger) *CachedCustomerBindingRepository {
	return &CachedCustomerBindingRepository{
		base:  base,
		cache: cache,
		log:   log,
	}
}

// GetByUserID возвращает привязку: сначала кэш, затем база
func (r *CachedCustomerBindingRepository) GetByUserID(ctx context.Context, userID string) (*models.CustomerBinding, error) {
	binding, err := r.cache.GetCustomerBinding(ctx, userID)
	if err == nil {
		r.log.Debugw("Customer binding cache hit", "userID", userID)
		return binding, nil
	}
	if !errors.Is(err, ErrNotFound) {
		r.log.Warnw("Customer binding cache read failed, falling back to database", "userID", userID, "error", err)
	}

	binding, err = r.base.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cacheErr := r.cache.SetCustomerBinding(ctx, binding); cacheErr != nil {
		r.log.Warnw("Failed to cache customer binding", "userID", userID, "error", cacheErr)
	}

	return binding, nil
}

// Bind сохраняет привязку в базе и обновляет кэш
func (r *CachedCustomerBindingRepository) Bind(ctx context.Context, userID, stripeCustomerID string) (*models.CustomerBinding, error) {
	binding, err := r.base.Bind(ctx, userID, stripeCustomerID)
	if err != nil {
		return nil, err
	}

	if cacheErr := r.cache.SetCustomerBinding(ctx, binding); cacheErr != nil {
		r.log.Warnw("Failed to cache customer binding after bind", "userID", userID, "error", cacheErr)
	}

	return binding, nil
}
