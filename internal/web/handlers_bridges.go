package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bridgetrack/bridgetrack/internal/core"
)

// maxPayloadSize bounds create and patch bodies.
const maxPayloadSize = 1 << 20

// handleListBridges returns every bridge in insertion order.
func (s *Server) handleListBridges(w http.ResponseWriter, r *http.Request) {
	bridges, err := s.service.List(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if bridges == nil {
		bridges = []core.Bridge{}
	}
	writeJSON(w, http.StatusOK, bridges)
}

func (s *Server) handleCountBridges(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.Count(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (s *Server) handleGetBridge(w http.ResponseWriter, r *http.Request) {
	b, err := s.service.Get(r.Context(), chi.URLParam(r, "bin"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCreateBridge(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	b, err := s.service.Create(r.Context(), p)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handlePatchBridge(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	b, err := s.service.Patch(r.Context(), chi.URLParam(r, "bin"), p)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Bridge updated successfully",
		"data":    b,
	})
}

func (s *Server) handleDeleteBridge(w http.ResponseWriter, r *http.Request) {
	bin := chi.URLParam(r, "bin")
	if err := s.service.Delete(r.Context(), bin); err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Bridge deleted successfully",
		"bin":     bin,
	})
}

// decodePayload reads a JSON object body. Numbers are kept as json.Number
// so text fields like spans keep their exact spelling.
func decodePayload(w http.ResponseWriter, r *http.Request) (core.Payload, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	dec.UseNumber()

	var p core.Payload
	err := dec.Decode(&p)
	if errors.Is(err, io.EOF) {
		// An empty body is reported by the service as "No data provided".
		return core.Payload{}, nil
	}
	if err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			return nil, fmt.Errorf("%w: %w", errFileTooLarge, err)
		}
		return nil, fmt.Errorf("%w: %w", errBadJSON, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", errBadJSON)
	}
	return p, nil
}
