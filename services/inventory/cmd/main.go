// Inventory Service — движок резервирования остатков.
// Резервирование, снятие и корректировки идут атомарными транзакциями
// с блокировкой строк товара.
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
	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/pkg/metrics"
	"example.com/order-pipeline/pkg/tracing"
	"example.com/order-pipeline/services/inventory/internal/config"
	"example.com/order-pipeline/services/inventory/internal/handler"
	"example.com/order-pipeline/services/inventory/internal/repository"
	"example.com/order-pipeline/services/inventory/internal/service"
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
	log := logger.With().Str("service", "inventory").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.HTTP.Port).
		Msg("Запуск Inventory Service")

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:  "inventory",
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
		&repository.ProductModel{},
		&repository.ReservationModel{},
		&repository.AdjustmentModel{},
	); err != nil {
		log.Fatal().Err(err).Msg("Ошибка миграции схемы")
	}

	repo := repository.NewInventoryRepository(gdb)
	svc := service.NewInventoryService(repo)
	router := handler.NewRouter(handler.NewHandler(svc), gdb)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go metrics.StartServer(rootCtx, cfg.Metrics.Addr(), "inventory")
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

	if sqlDB, err := gdb.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	log.Info().Msg("Inventory Service остановлен")
}
