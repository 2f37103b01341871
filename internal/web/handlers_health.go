package web

import (
	"net/http"

	"github.com/bridgetrack/bridgetrack/internal/core"
)

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status    string                    `json:"status"`
	Store     core.HealthStatus         `json:"store"`
	Observers int                       `json:"observers"`
	Dropped   int64                     `json:"dropped_events"`
	Imports   *core.ImportLimiterStatus `json:"imports,omitempty"`
}

// handleHealth reports the cached store health. It never touches the store
// itself; the background monitor keeps the status fresh.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Store:     s.service.Health(),
		Observers: s.registry.Len(),
		Dropped:   s.registry.Dropped(),
	}
	if l := s.service.ImportLimiter(); l != nil {
		st := l.Status()
		resp.Imports = &st
	}

	status := http.StatusOK
	if !resp.Store.Healthy {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
