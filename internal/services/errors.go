package services

import "errors"

// --- Определения кастомных ошибок сервисного слоя ---
var (
	// ErrInvalidInput ошибка валидации входных данных
	ErrInvalidInput = errors.New("invalid input data")

	// ErrCustomerLookup существующий клиент Stripe не удалось получить
	ErrCustomerLookup = errors.New("customer lookup failed")

	// ErrCustomerResolution не удалось создать или привязать клиента Stripe
	ErrCustomerResolution = errors.New("customer resolution failed")

	// ErrPaymentFailed создание payment intent или запись платежа не прошли
	ErrPaymentFailed = errors.New("payment processing failed")

	// ErrTimeout внешний вызов превысил дедлайн
	ErrTimeout = errors.New("external call timed out")
)
