// Edge API — публичный приём заказов с идемпотентным леджером.
// Авторизует платёж, затем одной транзакцией пишет леджер, позиции
// и outbox событие; после коммита будит оркестратор через Redis.
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
	"example.com/order-pipeline/pkg/ledger"
	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/pkg/metrics"
	"example.com/order-pipeline/pkg/outbox"
	"example.com/order-pipeline/pkg/tracing"
	"example.com/order-pipeline/services/edge/internal/client"
	"example.com/order-pipeline/services/edge/internal/config"
	"example.com/order-pipeline/services/edge/internal/handler"
	"example.com/order-pipeline/services/edge/internal/service"
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
	log := logger.With().Str("service", "edge").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.HTTP.Port).
		Str("payments_url", cfg.PaymentsServiceURL).
		Msg("Запуск Edge API")

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:  "edge",
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

	if err := gdb.AutoMigrate(
		&ledger.Model{},
		&ledger.ItemModel{},
		&outbox.Model{},
	); err != nil {
		log.Fatal().Err(err).Msg("Ошибка миграции схемы")
	}

	rdb, err := db.ConnectRedis(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к Redis")
	}
	log.Info().Msg("Подключение к Redis установлено")

	ledgerRepo := ledger.NewRepository(gdb)
	paymentsClient := client.NewPaymentsClient(cfg.PaymentsServiceURL, cfg.PaymentsTimeout)
	notifier := outbox.NewNotifier(rdb)
	svc := service.NewOrderService(ledgerRepo, paymentsClient, notifier)
	router := handler.NewRouter(handler.NewHandler(svc), gdb)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go metrics.StartServer(rootCtx, cfg.Metrics.Addr(), "edge")
	}

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
	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
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

	log.Info().Msg("Edge API остановлен")
}
