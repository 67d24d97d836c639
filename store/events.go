// ABOUTME: Change-notification feed for store mutations
// ABOUTME: Synchronous fan-out in mutation order with per-subscriber panic isolation
package store

import (
	"go.uber.org/zap"

	"github.com/copainapp/copain/models"
)

type EventType string

const (
	EventAdd    EventType = "add"
	EventUpdate EventType = "update"
	EventRemove EventType = "remove"
	EventLoad   EventType = "load"
	EventClear  EventType = "clear"
	EventBulk   EventType = "bulk_update"
)

// Event carries either the single changed contact or, for load/bulk, the
// whole batch.
type Event struct {
	Type    EventType
	Contact *models.Contact
	Batch   []models.Contact
}

// Subscribe registers a callback for store changes and returns its
// unsubscribe function. Callbacks fire synchronously in mutation order.
func (r *Repository) Subscribe(fn func(Event)) func() {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	id := r.nextSubID
	r.nextSubID++
	r.subs[id] = fn

	return func() {
		r.subsMu.Lock()
		defer r.subsMu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Repository) publish(ev Event) {
	r.subsMu.Lock()
	callbacks := make([]func(Event), 0, len(r.subs))
	for _, fn := range r.subs {
		callbacks = append(callbacks, fn)
	}
	r.subsMu.Unlock()

	for _, fn := range callbacks {
		r.dispatch(fn, ev)
	}
}

// dispatch isolates each subscriber: a panic in one callback must not affect
// the others or the mutation path.
func (r *Repository) dispatch(fn func(Event), ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("subscriber panicked", zap.Any("panic", rec), zap.String("event", string(ev.Type)))
		}
	}()
	fn(ev)
}
