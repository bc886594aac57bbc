// Package kafka предоставляет обёртку над kafka-go для публикации
// интеграционных событий пайплайна внешним потребителям.
// Доставка at-least-once: потребители обязаны быть идемпотентными.
package kafka

import (
	"time"
)

// Топики интеграционных событий.
const (
	// TopicOrderCompleted — заказ прошёл сагу до конца.
	TopicOrderCompleted = "orders.completed"

	// TopicOrderFailed — сага завершилась компенсацией, заказ не выполнен.
	TopicOrderFailed = "orders.failed"
)

// Ключи headers сообщений.
const (
	// HeaderTraceID — идентификатор трассировки.
	HeaderTraceID = "trace_id"

	// HeaderCorrelationID — идентификатор корреляции (order_ledger_id).
	HeaderCorrelationID = "correlation_id"

	// HeaderTimestamp — время создания сообщения.
	HeaderTimestamp = "timestamp"
)

// Config содержит настройки подключения к Kafka.
type Config struct {
	// Brokers — список адресов брокеров.
	Brokers []string
}

// Message представляет сообщение Kafka с метаданными.
type Message struct {
	// Topic — топик сообщения.
	Topic string

	// Key — ключ сообщения для партиционирования (order_ledger_id).
	Key []byte

	// Value — тело сообщения (JSON).
	Value []byte

	// Headers — заголовки (trace_id, correlation_id, timestamp).
	Headers map[string]string

	// Time — время создания.
	Time time.Time
}
