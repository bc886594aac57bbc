// Package config содержит конфигурацию Inventory Service.
package config

import (
	"example.com/order-pipeline/pkg/config"
)

// Config — настройки Inventory Service поверх общих.
type Config struct {
	App      config.AppConfig
	HTTP     config.HTTPConfig
	Database config.DatabaseConfig
	Metrics  config.MetricsConfig
	Jaeger   config.JaegerConfig
}

// Load загружает конфигурацию из переменных окружения.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := config.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
