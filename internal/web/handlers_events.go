package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bridgetrack/bridgetrack/internal/core"
	"github.com/bridgetrack/bridgetrack/internal/logging"
)

// wsObserver writes events to one WebSocket connection as JSON text frames.
type wsObserver struct {
	conn         *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
}

func (o *wsObserver) Deliver(ev core.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conn.SetWriteDeadline(time.Now().Add(o.writeTimeout))
	return o.conn.WriteJSON(ev)
}

func (o *wsObserver) ping() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(o.writeTimeout))
}

// handleEventsWebSocket upgrades the request and streams every change
// event until the client goes away. Messages from the client are ignored.
func (s *Server) handleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	rc := s.cfg.Realtime
	obs := &wsObserver{conn: conn, writeTimeout: rc.WriteTimeout}
	done := s.registry.Register(obs)
	defer s.registry.Unregister(obs)
	logger.Info("observer connected", "transport", "websocket", "observers", s.registry.Len())

	// A peer that stops answering pings is dropped after two intervals.
	readWait := 2 * rc.PingInterval
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(rc.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-done:
				// Removed after a failed delivery; unblock the reader.
				conn.Close()
				return
			case <-ticker.C:
				if err := obs.ping(); err != nil {
					logger.Debug("websocket ping failed", "error", err)
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket closed", "error", err)
			}
			break
		}
	}
	logger.Info("observer disconnected", "transport", "websocket")
}

// sseObserver writes events to one Server-Sent Events response.
type sseObserver struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	mu           sync.Mutex
	writeTimeout time.Duration
}

func (o *sseObserver) Deliver(ev core.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return o.write(func() error {
		_, err := fmt.Fprintf(o.w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Kind, data)
		return err
	})
}

func (o *sseObserver) comment(text string) error {
	return o.write(func() error {
		_, err := fmt.Fprintf(o.w, ": %s\n\n", text)
		return err
	})
}

func (o *sseObserver) write(fn func() error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	// Recorders and some proxies do not support deadlines.
	_ = o.rc.SetWriteDeadline(time.Now().Add(o.writeTimeout))
	if err := fn(); err != nil {
		return err
	}
	return o.rc.Flush()
}

// handleEventsSSE streams change events as Server-Sent Events. The event
// name is the change kind and the data is the full event JSON.
func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := s.cfg.Realtime
	obs := &sseObserver{w: w, rc: http.NewResponseController(w), writeTimeout: rc.WriteTimeout}
	if err := obs.comment("connected"); err != nil {
		respondError(w, r, fmt.Errorf("streaming not supported: %w", err), http.StatusInternalServerError)
		return
	}

	done := s.registry.Register(obs)
	defer s.registry.Unregister(obs)
	logger.Info("observer connected", "transport", "sse", "observers", s.registry.Len())

	ticker := time.NewTicker(rc.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Info("observer disconnected", "transport", "sse")
			return
		case <-done:
			logger.Info("observer removed", "transport", "sse")
			return
		case <-ticker.C:
			if err := obs.comment("keepalive"); err != nil {
				return
			}
		}
	}
}

// checkOrigin allows same-host origins plus any listed in allowed. A "*"
// entry allows everything.
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
