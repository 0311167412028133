package workflow

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// EventHandler consumes events delivered by a SimpleEventBus.
type EventHandler func(Event)

// SimpleEventBus is an asynchronous EventSink with per-kind subscriptions.
// Events are dispatched on a background goroutine; each handler runs in its
// own goroutine with panic recovery, so a misbehaving subscriber cannot stall
// the scheduler. When the internal buffer is full, events are dropped.
type SimpleEventBus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[string]EventHandler
	events   chan Event
	done     chan struct{}
	stopOnce sync.Once
	subSeq   atomic.Int64
	logger   *zap.Logger
}

// NewEventBus creates and starts a SimpleEventBus. A nil logger falls back
// to a no-op logger.
func NewEventBus(logger *zap.Logger) *SimpleEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	bus := &SimpleEventBus{
		handlers: make(map[EventType]map[string]EventHandler),
		events:   make(chan Event, 100),
		done:     make(chan struct{}),
		logger:   logger.With(zap.String("component", "event_bus")),
	}
	go bus.dispatch()
	return bus
}

// Emit implements EventSink. It never blocks; events are dropped when the
// buffer is full or the bus is stopped.
func (b *SimpleEventBus) Emit(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	default:
		b.logger.Debug("event buffer full, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("execution_id", event.ExecutionID),
		)
	}
}

// Subscribe registers a handler for one event kind and returns a
// subscription ID for Unsubscribe.
func (b *SimpleEventBus) Subscribe(eventType EventType, handler EventHandler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]EventHandler)
	}
	id := fmt.Sprintf("%s-%d", eventType, b.subSeq.Add(1))
	b.handlers[eventType][id] = handler
	return id
}

// Unsubscribe removes a subscription by ID.
func (b *SimpleEventBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, handlers := range b.handlers {
		if _, ok := handlers[subscriptionID]; ok {
			delete(handlers, subscriptionID)
			if len(handlers) == 0 {
				delete(b.handlers, eventType)
			}
			return
		}
	}
}

func (b *SimpleEventBus) dispatch() {
	for {
		select {
		case event := <-b.events:
			b.mu.RLock()
			src := b.handlers[event.Type]
			handlers := make([]EventHandler, 0, len(src))
			for _, h := range src {
				handlers = append(handlers, h)
			}
			b.mu.RUnlock()

			for _, handler := range handlers {
				h := handler
				go func() {
					defer func() {
						if r := recover(); r != nil {
							b.logger.Error("event handler panicked", zap.Any("recover", r))
						}
					}()
					h(event)
				}()
			}
		case <-b.done:
			return
		}
	}
}

// Stop shuts down the dispatch loop. Safe to call more than once.
func (b *SimpleEventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
}
