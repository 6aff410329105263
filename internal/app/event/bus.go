/*
Package event implements the in-process publish/subscribe bus that decouples
room state changes from their observers.

Handlers register per event type or globally for every event, each with a
priority. Publication merges both sets, orders them by priority descending,
runs synchronous handlers inline in that order, dispatches asynchronous
handlers concurrently, and waits for all of them before returning. A failing
or panicking handler never prevents the remaining handlers from running.
*/
package event

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"omokhub/internal/pkg/logx"
)

// Type identifies a kind of event.
type Type string

// Event is anything that can be published on the bus.
type Event interface {
	EventType() Type
	RoomID() string
	OccurredAt() time.Time
}

// HandlerFunc consumes one event. A returned error is logged, not propagated.
type HandlerFunc func(Event) error

// subscription is one registered handler.
type subscription struct {
	// id is the handle returned to the subscriber, used for removal.
	id uint64

	// eventType is the subscribed type; ignored for global subscriptions.
	eventType Type

	// global marks a handler that receives every event regardless of type.
	global bool

	// priority orders handlers at publication, higher first.
	priority int

	// async handlers run concurrently; sync handlers run inline in order.
	async bool

	fn HandlerFunc
}

// Bus routes published events to their subscribers.
type Bus struct {
	// mu protects concurrent access to handlers and globals.
	mu sync.RWMutex

	// nextID generates subscription handles.
	nextID uint64

	// handlers holds per-type subscriptions in registration order.
	handlers map[Type][]subscription

	// globals holds subscriptions that receive every event.
	globals []subscription

	// structured logger with Bus context.
	logger zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscription),
		logger:   logx.Logger().With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a synchronous handler for one event type and returns
// its handle. Higher priority handlers run earlier; equal priorities run in
// registration order.
func (b *Bus) Subscribe(t Type, priority int, fn HandlerFunc) uint64 {
	return b.add(subscription{eventType: t, priority: priority, fn: fn})
}

// SubscribeAsync registers a handler for one event type that runs
// concurrently with the other asynchronous handlers of the same publication.
func (b *Bus) SubscribeAsync(t Type, priority int, fn HandlerFunc) uint64 {
	return b.add(subscription{eventType: t, priority: priority, async: true, fn: fn})
}

// SubscribeGlobal registers a synchronous handler that receives every event.
func (b *Bus) SubscribeGlobal(priority int, fn HandlerFunc) uint64 {
	return b.add(subscription{global: true, priority: priority, fn: fn})
}

// SubscribeGlobalAsync registers an asynchronous handler that receives every event.
func (b *Bus) SubscribeGlobalAsync(priority int, fn HandlerFunc) uint64 {
	return b.add(subscription{global: true, priority: priority, async: true, fn: fn})
}

func (b *Bus) add(sub subscription) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub.id = b.nextID

	if sub.global {
		b.globals = append(b.globals, sub)
	} else {
		b.handlers[sub.eventType] = append(b.handlers[sub.eventType], sub)
	}

	return sub.id
}

// Unsubscribe removes the subscription with the given handle.
// It returns false when no such subscription exists.
func (b *Bus) Unsubscribe(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.handlers {
		for i, sub := range subs {
			if sub.id == id {
				b.handlers[t] = append(subs[:i:i], subs[i+1:]...)
				if len(b.handlers[t]) == 0 {
					delete(b.handlers, t)
				}
				return true
			}
		}
	}

	for i, sub := range b.globals {
		if sub.id == id {
			b.globals = append(b.globals[:i:i], b.globals[i+1:]...)
			return true
		}
	}

	return false
}

// Clear removes every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[Type][]subscription)
	b.globals = nil
}

// HandlerCount returns how many handlers are subscribed to the given type,
// not counting globals.
func (b *Bus) HandlerCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers[t])
}

// GlobalCount returns how many global handlers are subscribed.
func (b *Bus) GlobalCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.globals)
}

// Publish delivers the event to all matching handlers and returns once every
// handler, including the asynchronous ones, has completed. Synchronous
// handlers run inline in priority order; asynchronous handlers are started in
// that same order but run concurrently.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	typed := b.handlers[e.EventType()]
	merged := make([]subscription, 0, len(typed)+len(b.globals))
	merged = append(merged, typed...)
	merged = append(merged, b.globals...)
	b.mu.RUnlock()

	if len(merged) == 0 {
		return
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].priority > merged[j].priority
	})

	var wg sync.WaitGroup
	for _, sub := range merged {
		if sub.async {
			wg.Add(1)
			go func(sub subscription) {
				defer wg.Done()
				b.invoke(sub, e)
			}(sub)
		} else {
			b.invoke(sub, e)
		}
	}
	wg.Wait()
}

// invoke runs one handler, containing its error or panic so the remaining
// handlers of the same publication still run.
func (b *Bus) invoke(sub subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("event_type", string(e.EventType())).
				Str("room_id", e.RoomID()).
				Uint64("subscription_id", sub.id).
				Msg("Event handler panicked")
		}
	}()

	if err := sub.fn(e); err != nil {
		b.logger.Error().
			Err(err).
			Str("event_type", string(e.EventType())).
			Str("room_id", e.RoomID()).
			Uint64("subscription_id", sub.id).
			Msg("Event handler failed")
	}
}
