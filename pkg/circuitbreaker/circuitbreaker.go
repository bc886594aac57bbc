// Package circuitbreaker предоставляет Circuit Breaker для защиты от
// каскадных сбоев. Оборачивает HTTP вызовы к downstream-сервисам:
// при недоступности сервиса запросы отклоняются мгновенно, без ожидания
// таймаута.
//
// Состояния:
//   - Closed: нормальная работа, запросы проходят
//   - Open: запросы отклоняются мгновенно
//   - Half-Open: пробный период восстановления
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"example.com/order-pipeline/pkg/logger"
)

// ErrOpen — breaker открыт, вызов не выполнялся.
var ErrOpen = errors.New("сервис временно недоступен (circuit breaker open)")

// Settings — настройки Circuit Breaker.
type Settings struct {
	MaxRequests  uint32        // Макс. запросов в Half-Open (по умолчанию 1)
	Interval     time.Duration // Интервал сброса счётчика в Closed (60s)
	Timeout      time.Duration // Время в Open до Half-Open (30s)
	FailureRatio float64       // Доля ошибок для перехода в Open (0.5)
	MinRequests  uint32        // Мин. запросов для расчёта ratio (5)
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Breaker — обёртка над gobreaker с логированием.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// New создаёт Circuit Breaker с настройками по умолчанию.
func New(name string) *Breaker {
	return NewWithSettings(name, DefaultSettings())
}

// NewWithSettings создаёт Circuit Breaker с пользовательскими настройками.
func NewWithSettings(name string, s Settings) *Breaker {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},

		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log := logger.With().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Logger()

			switch to {
			case gobreaker.StateOpen:
				log.Warn().Msg("Circuit Breaker ОТКРЫТ — сервис недоступен")
			case gobreaker.StateHalfOpen:
				log.Info().Msg("Circuit Breaker ПОЛУОТКРЫТ — пробуем восстановить")
			case gobreaker.StateClosed:
				log.Info().Msg("Circuit Breaker ЗАКРЫТ — сервис восстановлен")
			}
		},
	})

	return &Breaker{cb: cb, name: name}
}

// State возвращает текущее состояние breaker.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name возвращает имя breaker.
func (b *Breaker) Name() string {
	return b.name
}

// Execute выполняет fn через Circuit Breaker.
// isFailure определяет, учитывать ли ошибку в статистике breaker:
// инфраструктурные сбои (таймаут, 5xx) открывают breaker, бизнес-ошибки
// (404, 409, отклонённый платёж) — нет.
// При открытом breaker возвращает ErrOpen, не вызывая fn.
func (b *Breaker) Execute(fn func() error, isFailure func(error) bool) error {
	var fnErr error

	_, cbErr := b.cb.Execute(func() (any, error) {
		fnErr = fn()
		if fnErr != nil && isFailure(fnErr) {
			return nil, fnErr
		}
		// Успех или бизнес-ошибка — для breaker это успех.
		return nil, nil
	})

	if errors.Is(cbErr, gobreaker.ErrOpenState) || errors.Is(cbErr, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}

	return fnErr
}
