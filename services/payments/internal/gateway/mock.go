// Package gateway реализует mock платёжного шлюза.
// Поведение детерминировано управляется токеном карты, чтобы сценарии
// отклонения были воспроизводимы в тестах; случайные сбои и задержка
// включаются конфигурацией.
package gateway

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"example.com/order-pipeline/services/payments/internal/domain"
)

// Токены с особым поведением.
const (
	// tokenDeclinePrefix — токены вида tok_decline_<причина> отклоняются.
	tokenDeclinePrefix = "tok_decline_"

	// tokenGatewayError — токен, имитирующий сбой шлюза.
	tokenGatewayError = "tok_error"
)

// declineCodes — маппинг суффикса токена в код отклонения.
var declineCodes = map[string]string{
	"insufficient": "insufficient_funds",
	"expired":      "expired_card",
	"stolen":       "stolen_card",
	"fraud":        "suspected_fraud",
}

// Config — настройки mock шлюза.
type Config struct {
	// Latency — искусственная задержка каждого вызова.
	Latency time.Duration

	// FailureRate — вероятность случайного сбоя шлюза [0..1].
	// Применяется только к пути gateway error; отклонения остаются
	// детерминированными через токены.
	FailureRate float64
}

// Mock — имитация платёжного шлюза.
type Mock struct {
	cfg Config

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMock создаёт mock шлюза.
func NewMock(cfg Config) *Mock {
	return &Mock{
		cfg: cfg,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Authorize имитирует авторизацию по токену карты.
// Возвращает nil при успехе, *domain.DeclinedError при отклонении,
// domain.ErrGatewayUnavailable при сбое шлюза.
func (m *Mock) Authorize(ctx context.Context, token string) error {
	if err := m.simulateLatency(ctx); err != nil {
		return err
	}

	if token == tokenGatewayError || m.randomFailure() {
		return domain.ErrGatewayUnavailable
	}

	if strings.HasPrefix(token, tokenDeclinePrefix) {
		suffix := strings.TrimPrefix(token, tokenDeclinePrefix)
		code, ok := declineCodes[suffix]
		if !ok {
			code = "card_declined"
		}
		return &domain.DeclinedError{
			Code:    code,
			Message: "Платёж отклонён эмитентом карты",
		}
	}

	return nil
}

// simulateLatency ждёт настроенную задержку, уважая контекст.
func (m *Mock) simulateLatency(ctx context.Context) error {
	if m.cfg.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.cfg.Latency):
		return nil
	case <-ctx.Done():
		return domain.ErrGatewayUnavailable
	}
}

// randomFailure бросает монетку с вероятностью FailureRate.
func (m *Mock) randomFailure() bool {
	if m.cfg.FailureRate <= 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rnd.Float64() < m.cfg.FailureRate
}
