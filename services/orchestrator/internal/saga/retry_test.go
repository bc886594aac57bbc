package saga

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"example.com/order-pipeline/services/orchestrator/internal/client"
)

// TestRetryPolicy_Delay тестирует экспоненциальный backoff.
func TestRetryPolicy_Delay(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, Multiplier: 2}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{0, 1 * time.Second}, // ниже минимума — как первая попытка
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, policy.Delay(tt.attempt), "attempt=%d", tt.attempt)
	}
}

// TestRetryPolicy_Decide тестирует таблицу решений retry/compensate.
func TestRetryPolicy_Decide(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}

	retryable := &client.DownstreamError{Service: "inventory", Code: "connection_error", Retryable: true}
	permanent := &client.DownstreamError{Service: "inventory", Code: "insufficient_stock", Status: 409, Retryable: false}

	tests := []struct {
		name       string
		err        error
		retryCount int
		expected   Decision
	}{
		{"retryable, лимит не исчерпан", retryable, 0, DecisionRetry},
		{"retryable, предпоследняя попытка", retryable, 1, DecisionRetry},
		{"retryable, лимит исчерпан", retryable, 2, DecisionCompensate},
		{"постоянная ошибка сразу компенсирует", permanent, 0, DecisionCompensate},
		{"неизвестная ошибка считается retryable", errors.New("boom"), 0, DecisionRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.Decide(tt.err, tt.retryCount))
		})
	}
}
