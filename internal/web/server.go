// Package web serves the bridge JSON API and the live change streams.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/bridgetrack/bridgetrack/internal/config"
	"github.com/bridgetrack/bridgetrack/internal/core"
	"github.com/bridgetrack/bridgetrack/internal/realtime"
	mw "github.com/bridgetrack/bridgetrack/internal/web/middleware"
)

// Server is the HTTP front end of the bridge tracker.
type Server struct {
	service  *core.Service
	registry *realtime.Registry
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	upgrader websocket.Upgrader
	limiter  *mw.RateLimiter
}

// NewServer wires the routes for svc. Events published through reg are
// streamed to WebSocket and SSE clients.
func NewServer(svc *core.Service, reg *realtime.Registry, cfg *config.Config) *Server {
	s := &Server{
		service:  svc,
		registry: reg,
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(cfg.Realtime.AllowedOrigins),
	}
	s.setupMiddleware()
	s.setupRoutes()

	sc := cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}
	// Event streams never go idle on their own.
	s.server.RegisterOnShutdown(reg.Close)
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.limiter = mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.Burst)
		s.router.Use(s.limiter.Middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Plain JSON endpoints get compression and a request deadline.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/bridges", s.handleListBridges)
			r.Get("/bridges.geojson", s.handleBridgesGeoJSON)
			r.Get("/bridges/count", s.handleCountBridges)
			r.Get("/bridges/{bin}", s.handleGetBridge)
			r.Post("/bridges", s.handleCreateBridge)
			r.Patch("/bridges/{bin}", s.handlePatchBridge)
			r.Delete("/bridges/{bin}", s.handleDeleteBridge)
		})

		// Imports run under their own timeout.
		r.Post("/import", s.handleImport)

		// Live change streams stay open for the life of the client.
		r.Get("/events", s.handleEventsWebSocket)
		r.Get("/events/stream", s.handleEventsSSE)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, disconnects every observer and waits
// for active requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status. A Content-Type set by the
// caller is kept. Encoding errors are logged since the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "error", err)
	}
}
