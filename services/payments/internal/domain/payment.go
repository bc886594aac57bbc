// Package domain содержит бизнес-сущности и доменные ошибки Payments Service.
package domain

import (
	"time"
)

// Status — статус авторизации платежа.
type Status string

const (
	// StatusAuthorized — средства захолдированы, можно списать или отменить.
	StatusAuthorized Status = "AUTHORIZED"

	// StatusCaptured — средства списаны. Терминальный статус.
	StatusCaptured Status = "CAPTURED"

	// StatusVoided — холд отменён. Терминальный статус.
	StatusVoided Status = "VOIDED"
)

// Authorization — авторизация платежа.
// Каждая мутация (authorize/capture/void) несёт собственный идемпотентный
// ключ; повтор с тем же ключом возвращает сохранённый результат.
type Authorization struct {
	ID             string  // authorization_id (UUID)
	UserID         string  // ID пользователя
	AmountCents    int64   // Сумма в центах
	Currency       string  // ISO 4217
	Status         Status  // AUTHORIZED / CAPTURED / VOIDED
	IdempotencyKey string  // Ключ авторизации (уникален)
	CaptureKey     *string // Ключ операции capture (nil до списания)
	VoidKey        *string // Ключ операции void (nil до отмены)
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Capture списывает авторизованный платёж.
// Повтор с тем же ключом — no-op. CAPTURED с другим ключом — ErrAlreadyCaptured,
// VOIDED — ErrAlreadyVoided: переходы между терминальными статусами запрещены.
func (a *Authorization) Capture(idempotencyKey string) error {
	switch a.Status {
	case StatusCaptured:
		if a.CaptureKey != nil && *a.CaptureKey == idempotencyKey {
			return nil
		}
		return ErrAlreadyCaptured
	case StatusVoided:
		return ErrAlreadyVoided
	default:
		a.Status = StatusCaptured
		a.CaptureKey = &idempotencyKey
		a.UpdatedAt = time.Now().UTC()
		return nil
	}
}

// Void отменяет авторизацию. Семантика идемпотентности как у Capture.
func (a *Authorization) Void(idempotencyKey string) error {
	switch a.Status {
	case StatusVoided:
		if a.VoidKey != nil && *a.VoidKey == idempotencyKey {
			return nil
		}
		return ErrAlreadyVoided
	case StatusCaptured:
		return ErrAlreadyCaptured
	default:
		a.Status = StatusVoided
		a.VoidKey = &idempotencyKey
		a.UpdatedAt = time.Now().UTC()
		return nil
	}
}
