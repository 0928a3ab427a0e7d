package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zakpay/payment-service/internal/app"
	"github.com/zakpay/payment-service/internal/config"
	"github.com/zakpay/payment-service/internal/http/routes"
	"github.com/zakpay/payment-service/internal/kafka"
	"github.com/zakpay/payment-service/internal/metrics"
	"github.com/zakpay/payment-service/internal/repository"
	"github.com/zakpay/payment-service/internal/repository/postgres"
	"github.com/zakpay/payment-service/internal/services"
	"github.com/zakpay/payment-service/internal/stripe"
	"github.com/zakpay/payment-service/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Стартуем на INFO, точный уровень выставляется после загрузки конфигурации
	log := logger.New(logger.INFO)

	log.Infow("Payment service starting up...")

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}
	if cfg.Stripe.SecretKey == "" {
		log.Fatalw("Stripe secret key is not configured")
	}
	if cfg.Stripe.PublishableKey == "" {
		log.Warnw("Stripe publishable key is not configured, responses will omit it")
	}

	// Уровень логирования и режим gin следуют одному и тому же значению окружения
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.SetLevel(logger.DEBUG)
	}

	// Подключаемся к базе данных
	pool, err := postgres.NewPool(ctx, cfg.Database.DSN, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer pool.Close()

	// Репозитории
	txRepo := postgres.NewPostgresTransactionRepository(pool, log)
	baseBindingRepo := postgres.NewPostgresCustomerBindingRepository(pool, log)

	// Redis кэш привязок: не фатален, сервис работает и без него
	var bindingRepo repository.CustomerBindingRepository = baseBindingRepo
	if cfg.Redis.Addr != "" {
		redisCache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		} else {
			bindingRepo = repository.NewCachedCustomerBindingRepository(baseBindingRepo, redisCache, log)
			defer func() {
				if err := redisCache.Close(); err != nil {
					log.Errorw("Error closing Redis connection", "error", err)
				}
			}()
		}
	}

	// Клиент Stripe внедряется зависимостью, а не глобальным синглтоном
	stripeClient := stripe.NewStripeClient(cfg.Stripe.SecretKey, log)

	// Kafka producer: не фатален, события можно пропускать
	var producer kafka.PaymentProducer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewPaymentProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
			producer = nil
		} else {
			defer func() {
				if err := producer.Close(); err != nil {
					log.Errorw("Error closing Kafka producer", "error", err)
				}
			}()
		}
	}

	// Метрики
	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry, log)

	// Сервисный слой
	customerService := services.NewCustomerService(bindingRepo, stripeClient, cfg.Database.Timeout, cfg.Stripe.Timeout, log)
	paymentService := services.NewPaymentService(txRepo, customerService, stripeClient, producer, paymentMetrics, cfg.Database.Timeout, cfg.Stripe.Timeout, log)

	application := app.NewApp(cfg, paymentService, log)

	// HTTP сервер
	router := gin.New()
	routes.SetupRoutes(router, application, registry, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("Starting HTTP server", "port", cfg.App.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}

	log.Infow("Payment service stopped")
}
