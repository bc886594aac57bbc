// Package poller реализует цикл опроса transactional outbox.
// Опрос объединяет фиксированный интервал с пробуждением по Redis
// уведомлению; события захватываются атомарным claim-запросом, так что
// несколько экземпляров оркестратора конкурируют безопасно.
package poller

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"example.com/order-pipeline/pkg/kafka"
	"example.com/order-pipeline/pkg/logger"
	"example.com/order-pipeline/pkg/metrics"
	"example.com/order-pipeline/pkg/outbox"
	"example.com/order-pipeline/services/orchestrator/internal/saga"
)

// Настройки очистки outbox.
const (
	// cleanupInterval — период запуска удаления обработанных событий.
	cleanupInterval = time.Hour

	// cleanupRetention — сколько хранить обработанные события.
	cleanupRetention = 7 * 24 * time.Hour
)

// Config — настройки цикла опроса.
type Config struct {
	Interval  time.Duration // Период фонового опроса
	BatchSize int           // Максимум событий на claim
	Workers   int           // Конкурентные обработчики событий
}

// TerminalPublisher публикует терминальные интеграционные события.
type TerminalPublisher interface {
	SendMessage(ctx context.Context, msg *kafka.Message) error
}

// Poller забирает события outbox и передаёт их исполнителю саги.
type Poller struct {
	repo     outbox.Repository
	executor *saga.Executor
	listener *outbox.Listener
	producer TerminalPublisher
	cfg      Config
}

// New создаёт Poller. producer может быть nil — терминальные события
// тогда не публикуются.
func New(repo outbox.Repository, executor *saga.Executor, listener *outbox.Listener, producer TerminalPublisher, cfg Config) *Poller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Poller{
		repo:     repo,
		executor: executor,
		listener: listener,
		producer: producer,
		cfg:      cfg,
	}
}

// Run запускает цикл опроса. Блокирует до отмены контекста.
func (p *Poller) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Dur("interval", p.cfg.Interval).
		Int("batch_size", p.cfg.BatchSize).
		Int("workers", p.cfg.Workers).
		Msg("Запуск цикла опроса outbox")

	if p.listener != nil {
		go p.listener.Run(ctx)
	}
	go p.runCleanup(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var wake <-chan struct{}
	if p.listener != nil {
		wake = p.listener.Notifications()
	}

	for {
		p.pollOnce(ctx)

		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка цикла опроса outbox")
			return
		case <-ticker.C:
		case <-wake:
			// Уведомление — только подсказка; claim решает, что обрабатывать.
		}
	}
}

// pollOnce захватывает пачку событий и обрабатывает её воркерами.
func (p *Poller) pollOnce(ctx context.Context) {
	log := logger.FromContext(ctx)

	events, err := p.repo.ClaimDue(ctx, p.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка захвата событий outbox")
		return
	}
	if len(events) == 0 {
		return
	}

	log.Debug().Int("claimed", len(events)).Msg("События outbox захвачены")

	sem := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup
	for _, event := range events {
		wg.Add(1)
		sem <- struct{}{}
		go func(e *outbox.Event) {
			defer wg.Done()
			defer func() { <-sem }()
			p.process(ctx, e)
		}(event)
	}
	wg.Wait()
}

// process прогоняет сагу для события и применяет правила финализации.
func (p *Poller) process(ctx context.Context, event *outbox.Event) {
	ctx = logger.NewContextWithIDs(ctx, "", event.AggregateID)
	log := logger.FromContext(ctx).With().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Logger()

	result := p.executor.Execute(ctx, event)

	switch result.Outcome {
	case saga.OutcomeCompleted:
		p.markProcessed(ctx, event, "completed")
		p.publishTerminal(ctx, kafka.TopicOrderCompleted, result)

	case saga.OutcomeFailed:
		log.Warn().Str("reason", result.Reason).Msg("Сага завершилась отказом без повтора")
		p.markProcessed(ctx, event, "failed")

	case saga.OutcomeCompensated:
		log.Warn().Str("reason", result.Reason).Msg("Сага компенсирована")
		p.markProcessed(ctx, event, "compensated")
		p.publishTerminal(ctx, kafka.TopicOrderFailed, result)

	case saga.OutcomeRequiresRetry:
		if err := p.repo.ScheduleRetry(ctx, event.ID, result.NextRetryAt); err != nil {
			log.Error().Err(err).Msg("Не удалось запланировать повтор события")
			return
		}
		metrics.OutboxEventsTotal.WithLabelValues("retry_scheduled").Inc()
		log.Info().
			Time("next_retry_at", result.NextRetryAt).
			Int("retry_count", event.RetryCount+1).
			Msg("Повтор события запланирован")
	}
}

// markProcessed финализирует событие и пишет метрику исхода.
func (p *Poller) markProcessed(ctx context.Context, event *outbox.Event, outcome string) {
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		lg := logger.FromContext(ctx)
		lg.Error().Err(err).
			Str("event_id", event.ID).
			Msg("Не удалось пометить событие обработанным")
		return
	}
	metrics.OutboxEventsTotal.WithLabelValues(outcome).Inc()
}

// terminalEvent — тело терминального интеграционного события.
type terminalEvent struct {
	OrderLedgerID    string  `json:"order_ledger_id"`
	Status           string  `json:"status"`
	OrderID          *string `json:"order_id,omitempty"`
	TotalAmountCents int64   `json:"total_amount_cents"`
	Currency         string  `json:"currency"`
	FailureReason    *string `json:"failure_reason,omitempty"`
	OccurredAt       string  `json:"occurred_at"`
}

// publishTerminal отправляет терминальное событие в Kafka. Best-effort:
// доставка at-least-once обеспечивается идемпотентностью потребителей,
// а ошибка публикации не откатывает финализацию outbox.
func (p *Poller) publishTerminal(ctx context.Context, topic string, result saga.Result) {
	if p.producer == nil || result.Ledger == nil {
		return
	}

	led := result.Ledger
	payload, err := json.Marshal(terminalEvent{
		OrderLedgerID:    led.ID,
		Status:           string(led.Status),
		OrderID:          led.OrderID,
		TotalAmountCents: led.TotalAmountCents,
		Currency:         led.Currency,
		FailureReason:    led.FailureReason,
		OccurredAt:       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		lg := logger.FromContext(ctx)
		lg.Error().Err(err).Msg("Не удалось сериализовать терминальное событие")
		return
	}

	msg := &kafka.Message{
		Topic: topic,
		Key:   []byte(led.ID),
		Value: payload,
		Headers: map[string]string{
			kafka.HeaderCorrelationID: led.ID,
		},
	}
	if err := p.producer.SendMessage(ctx, msg); err != nil {
		lg := logger.FromContext(ctx)
		lg.Error().Err(err).
			Str("topic", topic).
			Msg("Не удалось опубликовать терминальное событие")
	}
}

// runCleanup периодически удаляет давно обработанные события.
func (p *Poller) runCleanup(ctx context.Context) {
	log := logger.FromContext(ctx)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := p.repo.DeleteProcessedBefore(ctx, time.Now().UTC().Add(-cleanupRetention))
			if err != nil {
				log.Error().Err(err).Msg("Ошибка очистки outbox")
				continue
			}
			if deleted > 0 {
				log.Info().Int64("deleted", deleted).Msg("Очистка outbox выполнена")
			}
		}
	}
}
