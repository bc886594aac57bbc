// Package config содержит конфигурацию Payments Service.
package config

import (
	"time"

	"example.com/order-pipeline/pkg/config"
)

// Config — настройки Payments Service поверх общих.
type Config struct {
	App      config.AppConfig
	HTTP     config.HTTPConfig
	Database config.DatabaseConfig
	Metrics  config.MetricsConfig
	Jaeger   config.JaegerConfig

	// Mock — настройки имитации платёжного шлюза.
	Mock MockConfig
}

// MockConfig управляет поведением mock шлюза.
type MockConfig struct {
	// LatencyMS — искусственная задержка каждого вызова шлюза, миллисекунды.
	LatencyMS int `env:"MOCK_LATENCY_MS" envDefault:"0"`

	// FailureRate — вероятность случайного сбоя шлюза [0..1].
	FailureRate float64 `env:"MOCK_FAILURE_RATE" envDefault:"0"`
}

// Latency возвращает задержку шлюза как time.Duration.
func (c MockConfig) Latency() time.Duration {
	return time.Duration(c.LatencyMS) * time.Millisecond
}

// Load загружает конфигурацию из переменных окружения.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := config.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
