package core

import (
	"sync"
	"time"
)

// ImportTimeout is the maximum duration for a bulk import.
var ImportTimeout = 10 * time.Minute

// Service provides the bridge record operations.
//
// All mutations, the clear step of an import, and each import row run
// under one mutex. Events are handed to the notifier before the mutex is
// released. Reads go straight to the store.
type Service struct {
	store    Store
	notifier Notifier
	limiter  *ImportLimiter

	mu sync.Mutex

	health healthState
}

// Option configures a Service.
type Option func(*Service)

// WithImportLimiter bounds concurrent imports.
func WithImportLimiter(l *ImportLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// NewService creates a Service over store. A nil notifier discards events.
func NewService(store Store, notifier Notifier, opts ...Option) *Service {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	s := &Service{
		store:    store,
		notifier: notifier,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.health.set(HealthStatus{Healthy: true, CheckedAt: time.Now().UTC()})
	return s
}

// ImportLimiter returns the configured limiter, or nil.
func (s *Service) ImportLimiter() *ImportLimiter {
	return s.limiter
}

// notify must be called with s.mu held.
func (s *Service) notify(kind EventKind, payload any) {
	s.notifier.Notify(NewEvent(kind, payload))
}
