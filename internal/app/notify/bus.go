package notify

import (
	"context"
	"fmt"
	"log/slog"
	"robocomp/internal/domain/model"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Handler receives a published event.
type Handler func(ctx context.Context, ev model.Event)

type subscription struct {
	id      string
	handler Handler
}

// Bus is a synchronous in-process emitter. Handlers run on the emitting
// goroutine; a panicking handler is logged and skipped.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // event type or "*" -> subscriptions
	nextID        atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subscriptions: make(map[string][]subscription)}
}

// Subscribe registers handler for one event type and returns its id.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := fmt.Sprintf("sub-%d", b.nextID.Add(1))
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{id: id, handler: handler})
	return id
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe("*", handler)
}

func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				b.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Emit dispatches ev to handlers of its type first, then to wildcard handlers,
// each group in registration order.
func (b *Bus) Emit(ctx context.Context, ev model.Event) {
	ev = Prepare(ev, time.Now().UTC())

	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subscriptions[ev.Type])+len(b.subscriptions["*"]))
	subs = append(subs, b.subscriptions[ev.Type]...)
	subs = append(subs, b.subscriptions["*"]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.safeCall(ctx, sub.handler, ev)
	}
}

func (b *Bus) safeCall(ctx context.Context, handler Handler, ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event handler panicked",
				"event_type", ev.Type, "event_id", ev.ID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	handler(ctx, ev)
}
