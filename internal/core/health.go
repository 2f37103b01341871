package core

// health.go runs the background store health monitor.
//
// The monitor pings the store once on start and then every interval. The
// last result is cached so /healthz never waits on a slow store. Failed
// pings are logged but never stop the monitor.

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PingTimeout bounds a single health ping.
var PingTimeout = 5 * time.Second

// HealthStatus is the outcome of the latest store ping.
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

type healthState struct {
	mu sync.RWMutex
	st HealthStatus
}

func (h *healthState) set(st HealthStatus) {
	h.mu.Lock()
	h.st = st
	h.mu.Unlock()
}

func (h *healthState) get() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.st
}

// Health returns the cached result of the last ping.
func (s *Service) Health() HealthStatus {
	return s.health.get()
}

// CheckHealth pings the store now and caches the result.
func (s *Service) CheckHealth(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	start := time.Now()
	err := s.store.Ping(ctx)
	st := HealthStatus{
		Healthy:   err == nil,
		LatencyMs: time.Since(start).Milliseconds(),
		CheckedAt: time.Now().UTC(),
	}
	if err != nil {
		st.Error = MapError(classify("ping", "", err)).Message
	}

	prev := s.health.get()
	s.health.set(st)

	switch {
	case err != nil && prev.Healthy:
		slog.Error("store health check failed", "error", err)
	case err == nil && !prev.Healthy:
		slog.Info("store health restored", "latency_ms", st.LatencyMs)
	default:
		slog.Debug("store health check", "healthy", st.Healthy, "latency_ms", st.LatencyMs)
	}
	return st
}

// StartHealthMonitor pings the store every interval until ctx is cancelled.
func (s *Service) StartHealthMonitor(ctx context.Context, interval time.Duration) {
	slog.Info("health monitor started", "interval", interval)

	s.CheckHealth(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("health monitor stopped")
			return
		case <-ticker.C:
			s.CheckHealth(ctx)
		}
	}
}
