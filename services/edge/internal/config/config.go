// Package config содержит конфигурацию Edge API.
package config

import (
	"time"

	"example.com/order-pipeline/pkg/config"
)

// Config — настройки Edge API поверх общих.
type Config struct {
	App      config.AppConfig
	HTTP     config.HTTPConfig
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	Metrics  config.MetricsConfig
	Jaeger   config.JaegerConfig

	// PaymentsServiceURL — базовый URL Payments Service.
	PaymentsServiceURL string `env:"PAYMENTS_SERVICE_URL" envDefault:"http://localhost:8084"`

	// PaymentsTimeout — таймаут HTTP вызовов к Payments Service.
	PaymentsTimeout time.Duration `env:"PAYMENTS_TIMEOUT" envDefault:"10s"`
}

// Load загружает конфигурацию из переменных окружения.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := config.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
