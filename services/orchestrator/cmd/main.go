// Orchestrator — исполнитель саг поверх transactional outbox.
// Захватывает события OrderAuthorized, ведёт леджер через шаги
// createOrder → reserveInventory → capturePayment → confirmOrder,
// с повторами, компенсацией и публикацией терминальных событий в Kafka.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"example.com/order-pipeline/pkg/db"
	"example.com/order-pipeline/pkg/healthcheck"
	"example.com/order-pipeline/pkg/kafka"
	"example.com/order-pipeline/pkg/ledger"
	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/pkg/metrics"
	"example.com/order-pipeline/pkg/middleware"
	"example.com/order-pipeline/pkg/outbox"
	"example.com/order-pipeline/pkg/tracing"
	"example.com/order-pipeline/services/orchestrator/internal/client"
	"example.com/order-pipeline/services/orchestrator/internal/config"
	"example.com/order-pipeline/services/orchestrator/internal/poller"
	"example.com/order-pipeline/services/orchestrator/internal/saga"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})
	log := logger.With().Str("service", "orchestrator").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("poll_interval_ms", cfg.Poller.IntervalMS).
		Int("max_retry_attempts", cfg.Retry.MaxAttempts).
		Msg("Запуск Orchestrator")

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:  "orchestrator",
		OTLPEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:      cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка инициализации tracing")
	}

	gdb, err := db.ConnectMySQL(cfg.Database, cfg.App.Env == "development")
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	rdb, err := db.ConnectRedis(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к Redis")
	}
	log.Info().Msg("Подключение к Redis установлено")

	producer, err := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
	}

	ledgerRepo := ledger.NewRepository(gdb)
	outboxRepo := outbox.NewRepository(gdb)

	ordersClient := client.NewOrdersClient(cfg.Downstream.OrdersServiceURL, cfg.Downstream.Timeout)
	inventoryClient := client.NewInventoryClient(cfg.Downstream.InventoryServiceURL, cfg.Downstream.Timeout)
	paymentsClient := client.NewPaymentsClient(cfg.Downstream.PaymentsServiceURL, cfg.Downstream.Timeout)

	executor := saga.NewExecutor(ledgerRepo, ordersClient, inventoryClient, paymentsClient, saga.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay(),
		Multiplier:  cfg.Retry.BackoffMultiplier,
	})

	listener := outbox.NewListener(rdb)
	outboxPoller := poller.New(outboxRepo, executor, listener, producer, poller.Config{
		Interval:  cfg.Poller.Interval(),
		BatchSize: cfg.Poller.BatchSize,
		Workers:   cfg.Poller.Workers,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go outboxPoller.Run(rootCtx)

	if cfg.Metrics.Enabled {
		go metrics.StartServer(rootCtx, cfg.Metrics.Addr(), "orchestrator")
	}

	// Небольшой HTTP сервер только для health-проверок.
	router := gin.New()
	router.Use(middleware.Recovery())
	router.GET("/health", healthcheck.Handler("orchestrator", gdb))

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("Получен сигнал завершения, останавливаем оркестратор...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
	}

	if err := producer.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки tracing")
	}

	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Redis")
	}

	if sqlDB, err := gdb.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	log.Info().Msg("Orchestrator остановлен")
}
