package domain

import (
	"errors"
	"fmt"
)

// Доменные ошибки Payments Service.
var (
	// ErrAuthorizationNotFound — авторизация не найдена.
	ErrAuthorizationNotFound = errors.New("авторизация не найдена")

	// ErrAlreadyCaptured — платёж уже списан, void невозможен.
	ErrAlreadyCaptured = errors.New("платёж уже списан")

	// ErrAlreadyVoided — авторизация уже отменена, capture невозможен.
	ErrAlreadyVoided = errors.New("авторизация уже отменена")

	// ErrGatewayUnavailable — платёжный шлюз недоступен (retryable).
	ErrGatewayUnavailable = errors.New("платёжный шлюз недоступен")
)

// DeclinedError — платёж отклонён шлюзом. Не retryable.
type DeclinedError struct {
	Code    string // Код отклонения (insufficient_funds, expired_card, ...)
	Message string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("платёж отклонён: %s", e.Code)
}

// AsDeclined возвращает DeclinedError, если err им является.
func AsDeclined(err error) (*DeclinedError, bool) {
	var de *DeclinedError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
