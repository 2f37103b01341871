// Package realtime fans change events out to connected observers.
//
// Every observer gets a bounded queue drained by its own goroutine, so one
// slow viewer never delays a mutation or another viewer. A full queue drops
// the event for that observer only. A delivery error removes the observer.
package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bridgetrack/bridgetrack/internal/core"
)

// DefaultQueueSize applies when NewRegistry is given a non-positive size.
const DefaultQueueSize = 64

// Observer receives events. Deliver is only ever called from the
// observer's own goroutine, one event at a time. Returning an error ends
// the membership.
type Observer interface {
	Deliver(ev core.Event) error
}

type member struct {
	obs   Observer
	queue chan core.Event
	done  chan struct{}
}

// Registry tracks connected observers.
type Registry struct {
	queueSize int

	mu      sync.RWMutex
	members map[Observer]*member

	dropped atomic.Int64
}

// NewRegistry creates an empty registry with per-observer queues of queueSize.
func NewRegistry(queueSize int) *Registry {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Registry{
		queueSize: queueSize,
		members:   make(map[Observer]*member),
	}
}

// Register adds obs and starts its delivery goroutine. The returned
// channel is closed once obs has left the registry and its goroutine has
// exited. Registering the same observer twice returns the existing channel.
func (r *Registry) Register(obs Observer) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.members[obs]; ok {
		return m.done
	}
	m := &member{
		obs:   obs,
		queue: make(chan core.Event, r.queueSize),
		done:  make(chan struct{}),
	}
	r.members[obs] = m
	go r.run(m)

	slog.Debug("observer registered", "observers", len(r.members))
	return m.done
}

func (r *Registry) run(m *member) {
	defer close(m.done)
	for ev := range m.queue {
		if err := m.obs.Deliver(ev); err != nil {
			slog.Debug("observer delivery failed, removing", "error", err)
			r.remove(m.obs)
			return
		}
	}
}

// remove deletes obs and closes its queue. It reports whether obs was present.
func (r *Registry) remove(obs Observer) (*member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[obs]
	if !ok {
		return nil, false
	}
	delete(r.members, obs)
	close(m.queue)
	return m, true
}

// Unregister removes obs and waits for its goroutine to stop. Removing an
// unknown or already removed observer is a no-op. It must not be called
// from inside Deliver.
func (r *Registry) Unregister(obs Observer) {
	if m, ok := r.remove(obs); ok {
		<-m.done
		slog.Debug("observer unregistered", "observers", r.Len())
	}
}

// Publish enqueues ev for every current member without blocking and
// returns how many queues accepted it.
func (r *Registry) Publish(ev core.Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, m := range r.members {
		select {
		case m.queue <- ev:
			delivered++
		default:
			// Observer is slow, skip this event for it
			r.dropped.Add(1)
			slog.Warn("observer queue full, event dropped",
				"kind", ev.Kind,
				"event_id", ev.ID,
				"queue_size", r.queueSize,
			)
		}
	}
	return delivered
}

// Len returns the number of registered observers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Dropped returns how many deliveries were skipped because a queue was full.
func (r *Registry) Dropped() int64 {
	return r.dropped.Load()
}

// Close unregisters every observer.
func (r *Registry) Close() {
	r.mu.RLock()
	obs := make([]Observer, 0, len(r.members))
	for o := range r.members {
		obs = append(obs, o)
	}
	r.mu.RUnlock()

	for _, o := range obs {
		r.Unregister(o)
	}
}
