// Package metrics предоставляет Prometheus метрики для всех сервисов.
// Содержит метрики HTTP запросов, шагов саги и outbox, а также HTTP сервер
// для /metrics и /readyz endpoints.
//
// Использование:
//
//	go metrics.StartServer(ctx, ":9090", "edge")
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/order-pipeline/pkg/logger"
)

var (
	// RequestsTotal — счётчик HTTP запросов.
	// PromQL: rate(requests_total{service="edge"}[5m]) — RPS за 5 минут.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Общее количество HTTP запросов по сервису, методу и статусу",
		},
		[]string{"service", "method", "path", "status"},
	)

	// RequestDuration — гистограмма latency запросов.
	// PromQL: histogram_quantile(0.95, rate(request_duration_seconds_bucket[5m])).
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Время выполнения HTTP запроса в секундах",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	// SagaStepsTotal — счётчик выполненных шагов саги по результату.
	// step: create_order / reserve_inventory / capture_payment / confirm_order.
	// result: success / retry / compensate.
	SagaStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_steps_total",
			Help: "Количество выполненных шагов саги по шагу и результату",
		},
		[]string{"step", "result"},
	)

	// CompensationStepsTotal — счётчик компенсирующих действий.
	// step: void_payment / release_inventory / cancel_order.
	CompensationStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compensation_steps_total",
			Help: "Количество компенсирующих действий по шагу и результату",
		},
		[]string{"step", "result"},
	)

	// OutboxEventsTotal — счётчик финализаций событий outbox.
	// outcome: completed / failed / compensated / retry_scheduled.
	OutboxEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_total",
			Help: "Количество финализаций событий outbox по исходу",
		},
		[]string{"outcome"},
	)
)

// ReadinessChecker — функция проверки готовности сервиса.
type ReadinessChecker func(ctx context.Context) error

// Server — HTTP сервер для экспорта метрик Prometheus.
type Server struct {
	httpServer     *http.Server
	service        string
	readinessCheck ReadinessChecker
}

// Option — функциональная опция для настройки Server.
type Option func(*Server)

// WithReadinessCheck добавляет проверку готовности для /readyz.
// Ошибка checker'а превращается в 503 Service Unavailable.
func WithReadinessCheck(checker ReadinessChecker) Option {
	return func(s *Server) {
		s.readinessCheck = checker
	}
}

// NewServer создаёт сервер метрик.
func NewServer(addr, service string, opts ...Option) *Server {
	s := &Server{service: service}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/livez", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/readyz", func(c *gin.Context) {
		if s.readinessCheck != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := s.readinessCheck(ctx); err != nil {
				c.String(http.StatusServiceUnavailable, err.Error())
				return
			}
		}
		c.String(http.StatusOK, "ok")
	})

	s.httpServer = &http.Server{Addr: addr, Handler: router}
	return s
}

// Run запускает сервер метрик. Блокирует до отмены контекста.
func (s *Server) Run(ctx context.Context) {
	log := logger.With().Str("service", s.service).Logger()

	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("Metrics сервер запущен")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Ошибка metrics сервера")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки metrics сервера")
	}
}

// StartServer — удобный запуск сервера метрик в отдельной горутине.
func StartServer(ctx context.Context, addr, service string, opts ...Option) {
	go NewServer(addr, service, opts...).Run(ctx)
}
