package events

import (
	"context"
	"log/slog"
	"sync"
)

// Emitter publishes events to registered handlers.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// InMemoryEmitter dispatches events to in-process handlers. Handler errors
// are logged, not returned: notification delivery must never fail the
// operation that produced the event.
type InMemoryEmitter struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *slog.Logger
}

// NewInMemoryEmitter creates a new InMemoryEmitter.
func NewInMemoryEmitter(logger *slog.Logger) *InMemoryEmitter {
	return &InMemoryEmitter{
		handlers: make([]Handler, 0),
		logger:   logger.With("component", "event_emitter"),
	}
}

var _ Emitter = (*InMemoryEmitter)(nil)

// Register adds a handler to receive future events.
func (e *InMemoryEmitter) Register(handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered event handler", "handler_count", len(e.handlers))
}

// Emit publishes the event to every registered handler.
func (e *InMemoryEmitter) Emit(ctx context.Context, event Event) {
	e.mu.RLock()
	handlers := make([]Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("event handler failed",
				"error", err,
				"event_id", event.ID,
				"event_type", event.Type,
				"user_id", event.UserID,
			)
		}
	}
}
