package web

import (
	"net/http"

	"github.com/bridgetrack/bridgetrack/internal/core"
)

// handleBridgesGeoJSON returns every bridge as a Point feature for the map
// viewer. Properties are the bridge's JSON fields including status.
func (s *Server) handleBridgesGeoJSON(w http.ResponseWriter, r *http.Request) {
	bridges, err := s.service.List(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	writeJSON(w, http.StatusOK, core.FeatureCollection(bridges))
}
