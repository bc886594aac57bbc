// Package config содержит конфигурацию оркестратора саг.
package config

import (
	"time"

	"example.com/order-pipeline/pkg/config"
)

// Config — настройки оркестратора поверх общих.
type Config struct {
	App      config.AppConfig
	HTTP     config.HTTPConfig
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	Kafka    config.KafkaConfig
	Metrics  config.MetricsConfig
	Jaeger   config.JaegerConfig

	// Poller — настройки цикла опроса outbox.
	Poller PollerConfig

	// Retry — параметры политики повторов саги.
	Retry RetryConfig

	// Downstream — адреса downstream-сервисов.
	Downstream DownstreamConfig
}

// PollerConfig — настройки цикла опроса outbox.
type PollerConfig struct {
	// IntervalMS — период фонового опроса, миллисекунды.
	IntervalMS int `env:"POLL_INTERVAL_MS" envDefault:"5000"`

	// BatchSize — максимум событий на один claim.
	BatchSize int `env:"POLL_BATCH_SIZE" envDefault:"10"`

	// Workers — число конкурентных обработчиков событий.
	Workers int `env:"POLL_WORKERS" envDefault:"4"`
}

// Interval возвращает период опроса как time.Duration.
func (c PollerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// RetryConfig — параметры политики повторов.
type RetryConfig struct {
	// MaxAttempts — максимум попыток шага саги.
	MaxAttempts int `env:"MAX_RETRY_ATTEMPTS" envDefault:"5"`

	// BaseDelayMS — базовая задержка повтора, миллисекунды.
	BaseDelayMS int `env:"RETRY_BASE_DELAY_MS" envDefault:"1000"`

	// BackoffMultiplier — множитель экспоненциального backoff.
	BackoffMultiplier float64 `env:"RETRY_BACKOFF_MULTIPLIER" envDefault:"4"`
}

// BaseDelay возвращает базовую задержку как time.Duration.
func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

// DownstreamConfig — адреса и таймауты downstream-сервисов.
type DownstreamConfig struct {
	OrdersServiceURL    string `env:"ORDERS_SERVICE_URL" envDefault:"http://localhost:8082"`
	InventoryServiceURL string `env:"INVENTORY_SERVICE_URL" envDefault:"http://localhost:8083"`
	PaymentsServiceURL  string `env:"PAYMENTS_SERVICE_URL" envDefault:"http://localhost:8084"`

	Timeout time.Duration `env:"DOWNSTREAM_TIMEOUT" envDefault:"10s"`
}

// Load загружает конфигурацию из переменных окружения.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := config.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
