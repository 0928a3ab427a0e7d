package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zakpay/payment-service/internal/app"
	"github.com/zakpay/payment-service/internal/http/handlers"
	"github.com/zakpay/payment-service/pkg/logger"
)

// SetupRoutes настраивает все маршруты API для Gin роутера
func SetupRoutes(router *gin.Engine, application *app.App, registry *prometheus.Registry, log *logger.Logger) {
	// Промежуточное ПО для всех запросов
	router.Use(application.LoggerMiddleware)
	router.Use(gin.Recovery())

	// Метрики Prometheus
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		// Здоровье сервиса
		api.GET("/health", handlers.HealthCheck)

		// Создание платежа
		api.POST("/create-payment", application.PaymentHandler.CreatePayment)
	}

	log.Infow("API routes successfully configured")
}
