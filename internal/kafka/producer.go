package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/zakpay/payment-service/internal/models"
	"github.com/zakpay/payment-service/pkg/logger"
)

const (
	TopicPaymentCreated = "payment.created"
	TopicPaymentFailed  = "payment.failed"
)

// PaymentEvent представляет событие платежа для Kafka
type PaymentEvent struct {
	TransactionID    string    `json:"transaction_id,omitempty"`
	UserID           string    `json:"user_id"`
	StripeCustomerID string    `json:"stripe_customer_id,omitempty"`
	PaymentIntentID  string    `json:"payment_intent_id,omitempty"`
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	Reason           string    `json:"reason,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// PaymentProducer интерфейс для отправки событий платежей
type PaymentProducer interface {
	PublishPaymentCreated(ctx context.Context, tx *models.Transaction) error
	PublishPaymentFailed(ctx context.Context, userID string, amount float64, currency, reason string) error
	Close() error
}

type kafkaPaymentProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewPaymentProducer создает новый продюсер событий платежей
func NewPaymentProducer(brokers []string, log *logger.Logger) (PaymentProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create sync producer: %w", err)
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)
	return &kafkaPaymentProducer{
		producer: producer,
		log:      log,
	}, nil
}

// PublishPaymentCreated публикует событие о создании платежа
func (p *kafkaPaymentProducer) PublishPaymentCreated(ctx context.Context, tx *models.Transaction) error {
	event := PaymentEvent{
		TransactionID:    tx.ID.String(),
		UserID:           tx.UserID,
		StripeCustomerID: tx.StripeCustomerID,
		PaymentIntentID:  tx.PaymentIntentID,
		Amount:           tx.Amount,
		Currency:         tx.Currency,
		Timestamp:        time.Now(),
	}
	// Ключ по пользователю: события одного пользователя попадают в одну партицию
	return p.publishEvent(ctx, TopicPaymentCreated, tx.UserID, event)
}

// PublishPaymentFailed публикует событие о неудачном платеже
func (p *kafkaPaymentProducer) PublishPaymentFailed(ctx context.Context, userID string, amount float64, currency, reason string) error {
	event := PaymentEvent{
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	return p.publishEvent(ctx, TopicPaymentFailed, userID, event)
}

// publishEvent сериализует событие и отправляет его в указанный топик
func (p *kafkaPaymentProducer) publishEvent(ctx context.Context, topic, key string, event PaymentEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("kafka: context canceled before publish: %w", err)
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.log.Errorw("Failed to marshal payment event", "error", err, "topic", topic)
		return fmt.Errorf("kafka: failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.Errorw("Failed to publish payment event", "error", err, "topic", topic, "key", key)
		return fmt.Errorf("kafka: failed to send message: %w", err)
	}

	p.log.Debugw("Payment event published", "topic", topic, "partition", partition, "offset", offset)
	return nil
}

// Close закрывает соединение продюсера Kafka
func (p *kafkaPaymentProducer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("kafka: failed to close producer: %w", err)
	}
	return nil
}
