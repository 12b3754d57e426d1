package events

import (
	"log/slog"
	"sync"
	"time"

	"berth/internal/logging"
	"berth/internal/queue"
)

// Type identifies what happened to a queue item.
type Type string

const (
	TypeAdded     Type = "queue:added"
	TypeUpdated   Type = "queue:updated"
	TypeCompleted Type = "queue:completed"
	TypeImported  Type = "queue:imported"
	TypeFailed    Type = "queue:failed"
	TypeRemoved   Type = "queue:removed"
)

// Event is one queue lifecycle notification.
type Event struct {
	Type Type
	Item *queue.Item
	// Previous holds the status the item left, when known.
	Previous queue.Status
	// Message carries the failure or removal reason for those event types.
	Message string
	// Stats is a queue snapshot taken when the event fired.
	Stats queue.Stats
	At    time.Time
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must return quickly.
type Handler func(Event)

// Bus fans queue events out to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int64]Handler
	nextID   int64
	logger   *slog.Logger
}

// NewBus constructs an event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		handlers: make(map[int64]Handler),
		logger:   logging.NewComponentLogger(logger, "events"),
	}
}

// Subscribe registers a handler and returns a function that removes it.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish delivers the event to every subscriber. A panicking handler is
// logged and evicted; remaining handlers still run.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.RLock()
	ids := make([]int64, 0, len(b.handlers))
	handlers := make([]Handler, 0, len(b.handlers))
	for id, handler := range b.handlers {
		ids = append(ids, id)
		handlers = append(handlers, handler)
	}
	b.mu.RUnlock()

	for i, handler := range handlers {
		b.deliver(ids[i], handler, event)
	}
}

func (b *Bus) deliver(id int64, handler Handler, event Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			b.logger.Error("event handler panicked, evicting subscriber",
				logging.String(logging.FieldEventType, string(event.Type)),
				logging.Any("panic", recovered))
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		}
	}()
	handler(event)
}

// SubscriberCount reports how many handlers are registered.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
