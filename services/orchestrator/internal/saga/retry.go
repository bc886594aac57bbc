package saga

import (
	"math"
	"time"

	"example.com/order-pipeline/services/orchestrator/internal/client"
)

// Decision — решение политики повторов после ошибки шага.
type Decision int

const (
	// DecisionRetry — запланировать повтор, лимит не исчерпан.
	DecisionRetry Decision = iota

	// DecisionCompensate — ошибка постоянная либо лимит исчерпан,
	// запускаем компенсацию.
	DecisionCompensate
)

// RetryPolicy — параметры экспоненциального backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// Delay возвращает задержку перед попыткой attempt (нумерация с 1):
// base × multiplier^(attempt−1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := math.Pow(p.Multiplier, float64(attempt-1))
	return time.Duration(float64(p.BaseDelay) * factor)
}

// Decide применяет таблицу решений к ошибке шага при retryCount
// уже выполненных повторов.
func (p RetryPolicy) Decide(err error, retryCount int) Decision {
	if !client.IsRetryable(err) {
		return DecisionCompensate
	}
	if retryCount+1 >= p.MaxAttempts {
		return DecisionCompensate
	}
	return DecisionRetry
}
