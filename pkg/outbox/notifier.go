package outbox

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"example.com/order-pipeline/pkg/logger"
)

// ChannelEvents — Redis канал уведомлений о новых записях outbox.
// Уведомление — только подсказка для пробуждения цикла опроса;
// источником правды остаётся claim-запрос к БД.
const ChannelEvents = "outbox:events"

// Notifier публикует уведомление после коммита транзакции с outbox записью.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier создаёт Notifier.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish отправляет уведомление о новой записи. Best-effort:
// при недоступности Redis событие заберёт периодический опрос.
func (n *Notifier) Publish(ctx context.Context) {
	if err := n.rdb.Publish(ctx, ChannelEvents, "1").Err(); err != nil {
		lg := logger.FromContext(ctx)
		lg.Warn().Err(err).Msg("Не удалось опубликовать уведомление outbox")
	}
}

// signalQueue — неограниченная SPSC очередь сигналов между соединением
// подписки и циклом опроса. Сигналы не несут данных, поэтому очередь
// хранит только счётчик.
type signalQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending int
	closed  bool
}

func newSignalQueue() *signalQueue {
	q := &signalQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push добавляет сигнал. Никогда не блокирует — очередь неограничена.
func (q *signalQueue) push() {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()
	q.cond.Signal()
}

// pop забирает сигнал, блокируясь до его появления.
// Возвращает false, если очередь закрыта.
func (q *signalQueue) pop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.pending == 0 {
		return false
	}
	q.pending--
	return true
}

func (q *signalQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Listener подписывается на канал уведомлений и превращает сообщения
// в сигналы пробуждения для цикла опроса outbox.
type Listener struct {
	rdb   *redis.Client
	queue *signalQueue
	out   chan struct{}
}

// NewListener создаёт Listener.
func NewListener(rdb *redis.Client) *Listener {
	return &Listener{
		rdb:   rdb,
		queue: newSignalQueue(),
		out:   make(chan struct{}),
	}
}

// Notifications возвращает канал сигналов пробуждения.
func (l *Listener) Notifications() <-chan struct{} {
	return l.out
}

// Run запускает подписку. Блокирует до отмены контекста.
func (l *Listener) Run(ctx context.Context) {
	log := logger.FromContext(ctx)

	pubsub := l.rdb.Subscribe(ctx, ChannelEvents)
	defer func() {
		if err := pubsub.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия подписки Redis")
		}
	}()

	log.Info().Str("channel", ChannelEvents).Msg("Подписка на уведомления outbox запущена")

	// Producer: сообщения подписки -> очередь.
	go func() {
		for range pubsub.Channel() {
			l.queue.push()
		}
		l.queue.close()
	}()

	// Consumer: очередь -> канал пробуждения цикла опроса.
	go func() {
		for l.queue.pop() {
			select {
			case l.out <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Остановка подписки на уведомления outbox")
}
