package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zakpay/payment-service/internal/models"
	"github.com/zakpay/payment-service/pkg/logger"
)

const (
	// Префикс ключей для привязок клиентов
	customerBindingKeyPrefix = "customer_binding:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository реализует кеширование привязок клиентов через Redis
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// GetCustomerBinding возвращает привязку из кэша или ErrNotFound
func (r *RedisCacheRepository) GetCustomerBinding(ctx context.Context, userID string) (*models.CustomerBinding, error) {
	data, err := r.client.Get(ctx, customerBindingKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis: failed to get customer binding: %w", err)
	}

	var binding models.CustomerBinding
	if err := json.Unmarshal(data, &binding); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal customer binding: %w", err)
	}

	return &binding, nil
}

// SetCustomerBinding сохраняет привязку в кэш
func (r *RedisCacheRepository) SetCustomerBinding(ctx context.Context, binding *models.CustomerBinding) error {
	data, err := json.Marshal(binding)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal customer binding: %w", err)
	}

	if err := r.client.Set(ctx, customerBindingKeyPrefix+binding.UserID, data, defaultCacheTTL).Err(); err != nil {
		return fmt.Errorf("redis: failed to set customer binding: %w", err)
	}

	return nil
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}
