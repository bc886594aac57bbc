// Package service содержит бизнес-логику Payments Service.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/services/payments/internal/domain"
	"example.com/order-pipeline/services/payments/internal/repository"
)

// Gateway — интерфейс платёжного шлюза.
type Gateway interface {
	Authorize(ctx context.Context, token string) error
}

// AuthorizeInput — входные данные авторизации.
type AuthorizeInput struct {
	UserID         string
	AmountCents    int64
	Currency       string
	PaymentToken   string
	IdempotencyKey string
}

// PaymentService реализует операции авторизации, списания и отмены.
type PaymentService struct {
	repo    repository.AuthorizationRepository
	gateway Gateway
}

// NewPaymentService создаёт сервис платежей.
func NewPaymentService(repo repository.AuthorizationRepository, gateway Gateway) *PaymentService {
	return &PaymentService{repo: repo, gateway: gateway}
}

// Authorize холдирует средства по токену карты.
// Идемпотентна по IdempotencyKey: повтор возвращает сохранённую авторизацию
// без обращения к шлюзу. Отклонения НЕ сохраняются — повтор после decline
// снова идёт в шлюз.
func (s *PaymentService) Authorize(ctx context.Context, in AuthorizeInput) (*domain.Authorization, error) {
	log := logger.FromContext(ctx)

	existing, err := s.repo.GetByIdempotencyKey(ctx, in.IdempotencyKey)
	if err == nil {
		log.Info().
			Str("authorization_id", existing.ID).
			Str("idempotency_key", in.IdempotencyKey).
			Msg("Повторная авторизация, возвращаем сохранённый результат")
		return existing, nil
	}
	if !errors.Is(err, domain.ErrAuthorizationNotFound) {
		return nil, err
	}

	if err := s.gateway.Authorize(ctx, in.PaymentToken); err != nil {
		return nil, err
	}

	auth := &domain.Authorization{
		ID:             uuid.New().String(),
		UserID:         in.UserID,
		AmountCents:    in.AmountCents,
		Currency:       in.Currency,
		Status:         domain.StatusAuthorized,
		IdempotencyKey: in.IdempotencyKey,
	}

	if err := s.repo.Create(ctx, auth); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Гонка: параллельный запрос с тем же ключом вставил первым.
			return s.repo.GetByIdempotencyKey(ctx, in.IdempotencyKey)
		}
		return nil, err
	}

	log.Info().
		Str("authorization_id", auth.ID).
		Int64("amount_cents", auth.AmountCents).
		Msg("Платёж авторизован")
	return auth, nil
}

// Capture списывает авторизованный платёж.
func (s *PaymentService) Capture(ctx context.Context, authorizationID, idempotencyKey string) (*domain.Authorization, error) {
	return s.mutate(ctx, authorizationID, func(a *domain.Authorization) error {
		return a.Capture(idempotencyKey)
	})
}

// Void отменяет авторизацию.
func (s *PaymentService) Void(ctx context.Context, authorizationID, idempotencyKey string) (*domain.Authorization, error) {
	return s.mutate(ctx, authorizationID, func(a *domain.Authorization) error {
		return a.Void(idempotencyKey)
	})
}

// GetByID возвращает авторизацию.
func (s *PaymentService) GetByID(ctx context.Context, authorizationID string) (*domain.Authorization, error) {
	return s.repo.GetByID(ctx, authorizationID)
}

// mutate применяет доменный переход и условно сохраняет результат.
// При проигрыше гонки (статус в БД сменился между чтением и записью)
// перечитывает запись и повторяет переход: идемпотентный повтор пройдёт,
// конфликтующий получит доменную ошибку.
func (s *PaymentService) mutate(ctx context.Context, id string, transition func(*domain.Authorization) error) (*domain.Authorization, error) {
	for attempt := 0; attempt < 2; attempt++ {
		auth, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		fromStatus := auth.Status
		if err := transition(auth); err != nil {
			return nil, err
		}

		if auth.Status == fromStatus {
			// Повтор с тем же ключом: состояние не изменилось.
			return auth, nil
		}

		err = s.repo.UpdateState(ctx, auth, fromStatus)
		if err == nil {
			return auth, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, domain.ErrAuthorizationNotFound
}
