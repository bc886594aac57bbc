// Package service содержит бизнес-логику Edge API: идемпотентный приём
// заказа по схеме authorise-then-persist с ко-вставкой outbox события.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"example.com/order-pipeline/pkg/ledger"
	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/pkg/outbox"
	"example.com/order-pipeline/services/edge/internal/client"
)

// Ошибки сервиса Edge API.
var (
	// ErrDuplicateRequest — идемпотентный ключ уже связан с записью леджера.
	ErrDuplicateRequest = errors.New("повторный запрос")

	// ErrNotFound — запись леджера не найдена.
	ErrNotFound = errors.New("запись не найдена")
)

// PaymentsGateway — интерфейс клиента платежей.
type PaymentsGateway interface {
	Authorize(ctx context.Context, req client.AuthorizeRequest) (*client.AuthorizeResponse, error)
}

// OutboxNotifier — уведомление о новой outbox записи после коммита.
type OutboxNotifier interface {
	Publish(ctx context.Context)
}

// CreateOrderInput — входные данные создания заказа.
type CreateOrderInput struct {
	ClientRequestID string // Idempotency-Key заголовка
	UserID          string
	Email           string
	Currency        string
	PaymentToken    string
	Items           []CreateOrderItem
}

// CreateOrderItem — позиция запроса.
type CreateOrderItem struct {
	ProductID      string
	Quantity       int32
	UnitPriceCents int64
}

// OrderService реализует приём и чтение заказов.
type OrderService struct {
	repo     ledger.Repository
	payments PaymentsGateway
	notifier OutboxNotifier
}

// NewOrderService создаёт сервис Edge API.
func NewOrderService(repo ledger.Repository, payments PaymentsGateway, notifier OutboxNotifier) *OrderService {
	return &OrderService{repo: repo, payments: payments, notifier: notifier}
}

// CreateOrder принимает заказ.
// Порядок строгий: проверка дубликата, авторизация платежа, затем
// атомарная вставка леджера, позиций и outbox события. Отклонение
// пишется в леджер как AUTHORIZATION_FAILED для аудита, без события.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*ledger.OrderLedger, error) {
	log := logger.FromContext(ctx)

	existing, err := s.repo.GetByClientRequestID(ctx, in.ClientRequestID)
	if err == nil {
		log.Info().
			Str("order_ledger_id", existing.ID).
			Str("client_request_id", in.ClientRequestID).
			Msg("Повторный запрос, возвращаем существующую запись")
		return existing, ErrDuplicateRequest
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	entry := s.buildLedger(in)

	authResp, err := s.payments.Authorize(ctx, client.AuthorizeRequest{
		UserID:         in.UserID,
		AmountCents:    entry.TotalAmountCents,
		Currency:       in.Currency,
		PaymentToken:   in.PaymentToken,
		IdempotencyKey: in.ClientRequestID,
	})
	if err != nil {
		var declined *client.DeclinedError
		if errors.As(err, &declined) {
			s.auditDecline(ctx, entry, declined)
			return nil, err
		}
		// Gateway error: ничего не персистим, клиент может повторить.
		return nil, err
	}

	entry.Status = ledger.StatusAuthorized
	entry.PaymentAuthorizationID = &authResp.AuthorizationID

	event, err := ledger.NewOrderAuthorizedEvent(entry)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateWithOutbox(ctx, entry, event); err != nil {
		if errors.Is(err, ledger.ErrDuplicateRequest) {
			// Гонка: конкурирующий запрос с тем же ключом вставил первым.
			winner, getErr := s.repo.GetByClientRequestID(ctx, in.ClientRequestID)
			if getErr != nil {
				return nil, getErr
			}
			return winner, ErrDuplicateRequest
		}
		return nil, err
	}

	// После коммита будим цикл опроса outbox. Best-effort.
	s.notifier.Publish(ctx)

	log.Info().
		Str("order_ledger_id", entry.ID).
		Int64("total_amount_cents", entry.TotalAmountCents).
		Msg("Заказ принят, платёж авторизован")
	return entry, nil
}

// GetOrder возвращает запись леджера.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*ledger.OrderLedger, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

// buildLedger собирает запись леджера из входных данных.
func (s *OrderService) buildLedger(in CreateOrderInput) *ledger.OrderLedger {
	id := uuid.New().String()
	items := make([]ledger.OrderLedgerItem, len(in.Items))
	for i, item := range in.Items {
		items[i] = ledger.OrderLedgerItem{
			ID:             uuid.New().String(),
			OrderLedgerID:  id,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}

	return &ledger.OrderLedger{
		ID:               id,
		ClientRequestID:  in.ClientRequestID,
		UserID:           in.UserID,
		Email:            in.Email,
		Status:           ledger.StatusAwaitingAuthorization,
		TotalAmountCents: ledger.TotalFromItems(items),
		Currency:         in.Currency,
		Items:            items,
	}
}

// auditDecline пишет запись AUTHORIZATION_FAILED без outbox события.
// Ошибка записи аудита не меняет ответ клиенту.
func (s *OrderService) auditDecline(ctx context.Context, entry *ledger.OrderLedger, declined *client.DeclinedError) {
	reason := declined.Code
	entry.Status = ledger.StatusAuthorizationFailed
	entry.FailureReason = &reason

	var noEvent *outbox.Event
	if err := s.repo.CreateWithOutbox(ctx, entry, noEvent); err != nil {
		lg := logger.FromContext(ctx)
		lg.Error().Err(err).
			Str("client_request_id", entry.ClientRequestID).
			Msg("Не удалось записать аудит отклонённой авторизации")
	}
}
