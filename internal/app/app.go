package app

import (
	"github.com/gin-gonic/gin"

	"github.com/zakpay/payment-service/internal/config"
	"github.com/zakpay/payment-service/internal/http/handlers"
	"github.com/zakpay/payment-service/internal/middleware"
	"github.com/zakpay/payment-service/internal/services"
	"github.com/zakpay/payment-service/pkg/logger"
)

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config           *config.Config
	PaymentService   *services.PaymentService
	PaymentHandler   *handlers.PaymentHandler
	LoggerMiddleware gin.HandlerFunc
	Logger           *logger.Logger
}

// NewApp создает и инициализирует новый экземпляр приложения
func NewApp(cfg *config.Config, paymentService *services.PaymentService, log *logger.Logger) *App {
	paymentHandler := handlers.NewPaymentHandler(paymentService, cfg.Stripe.PublishableKey, log)

	loggerMiddleware := middleware.RequestLogger(log)

	return &App{
		Config:           cfg,
		PaymentService:   paymentService,
		PaymentHandler:   paymentHandler,
		LoggerMiddleware: loggerMiddleware,
		Logger:           log,
	}
}
