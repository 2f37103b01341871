package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bridgetrack/bridgetrack/internal/config"
	"github.com/bridgetrack/bridgetrack/internal/core"
	"github.com/bridgetrack/bridgetrack/internal/realtime"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Import.MaxFileSize = 1 << 20
	cfg.Realtime.QueueSize = 16
	cfg.Realtime.WriteTimeout = 2 * time.Second
	cfg.Realtime.PingInterval = time.Second
	cfg.Security.EnableCSP = true
	return cfg
}

type testEnv struct {
	srv   *Server
	svc   *core.Service
	reg   *realtime.Registry
	store *core.MemoryStore
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	reg := realtime.NewRegistry(cfg.Realtime.QueueSize)
	store := core.NewMemoryStore()
	svc := core.NewService(store, realtime.NewNotifier(reg), core.WithImportLimiter(core.NewImportLimiter(1, 50*time.Millisecond)))
	srv := NewServer(svc, reg, cfg)
	t.Cleanup(func() {
		reg.Close()
		srv.Shutdown(context.Background())
	})
	return &testEnv{srv: srv, svc: svc, reg: reg, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestBridgeLifecycle(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/bridges", `{"bin":"12345","lat":40.7,"lon":-74.0,"county":"Kings"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	created := decode[map[string]any](t, rec)
	if created["status"] != "Assigned" || created["county"] != "Kings" || created["lat"] != 40.7 {
		t.Errorf("created = %v", created)
	}

	rec = env.do(t, http.MethodPatch, "/api/bridges/12345", `{"completed":"2024-01-15"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body)
	}
	patched := decode[struct {
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}](t, rec)
	if patched.Message != "Bridge updated successfully" {
		t.Errorf("message = %q", patched.Message)
	}
	if patched.Data["status"] != "Inspected" || patched.Data["county"] != "Kings" {
		t.Errorf("data = %v", patched.Data)
	}

	rec = env.do(t, http.MethodGet, "/api/bridges/count", "")
	if got := decode[map[string]int](t, rec)["count"]; got != 1 {
		t.Errorf("count = %d, want 1", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/bridges/12345", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["bin"]; got != "12345" {
		t.Errorf("deleted bin = %q", got)
	}

	rec = env.do(t, http.MethodGet, "/api/bridges/12345", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "BRG001" || got.Message != "Bridge not found" {
		t.Errorf("error = %+v", got)
	}
}

func TestBridgeErrors(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.do(t, http.MethodPost, "/api/bridges", `{"bin":"1"}`)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		wantErr  string
		wantMsg  string
	}{
		{"empty body", http.MethodPost, "/api/bridges", "", 400, "VAL001", "No data provided"},
		{"empty object", http.MethodPost, "/api/bridges", "{}", 400, "VAL001", "No data provided"},
		{"not json", http.MethodPost, "/api/bridges", "bin=1", 400, "VAL001", "request body must be a JSON object"},
		{"array body", http.MethodPost, "/api/bridges", `[1]`, 400, "VAL001", "request body must be a JSON object"},
		{"trailing junk", http.MethodPost, "/api/bridges", `{"bin":"3"} junk`, 400, "VAL001", "request body must be a JSON object"},
		{"two objects", http.MethodPost, "/api/bridges", `{"bin":"3"}{"bin":"4"}`, 400, "VAL001", "request body must be a JSON object"},
		{"missing bin", http.MethodPost, "/api/bridges", `{"county":"X"}`, 400, "VAL001", "BIN is required"},
		{"bad latitude", http.MethodPost, "/api/bridges", `{"bin":"2","lat":"north"}`, 400, "VAL001", "Invalid latitude value"},
		{"duplicate", http.MethodPost, "/api/bridges", `{"bin":"1"}`, 409, "BRG002", "Bridge already exists"},
		{"patch missing", http.MethodPatch, "/api/bridges/nope", `{"week":"W1"}`, 404, "BRG001", "Bridge not found"},
		{"patch bin change", http.MethodPatch, "/api/bridges/1", `{"bin":"9"}`, 400, "VAL001", "BIN cannot be changed"},
		{"delete missing", http.MethodDelete, "/api/bridges/nope", "", 404, "BRG001", "Bridge not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			got := decode[ErrorResponse](t, rec)
			if got.Code != tt.wantErr || got.Message != tt.wantMsg {
				t.Errorf("error = %+v, want code %s message %q", got, tt.wantErr, tt.wantMsg)
			}
		})
	}

	if n, _ := env.svc.Count(t.Context()); n != 1 {
		t.Errorf("store has %d bridges after rejected requests, want 1", n)
	}
}

func TestListAndGeoJSON(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/api/bridges", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list = %s, want []", rec.Body)
	}

	env.do(t, http.MethodPost, "/api/bridges", `{"bin":"B","lat":42.5,"lon":-73.75,"week":"Week 3"}`)
	env.do(t, http.MethodPost, "/api/bridges", `{"bin":"A"}`)

	list := decode[[]map[string]any](t, env.do(t, http.MethodGet, "/api/bridges", ""))
	if len(list) != 2 || list[0]["bin"] != "B" || list[1]["bin"] != "A" {
		t.Errorf("list = %v, want insertion order B, A", list)
	}

	rec = env.do(t, http.MethodGet, "/api/bridges.geojson", "")
	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q", ct)
	}
	fc := decode[struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}](t, rec)
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("geojson = %+v", fc)
	}
	first := fc.Features[0]
	if c := first.Geometry.Coordinates; len(c) != 2 || c[0] != -73.75 || c[1] != 42.5 {
		t.Errorf("coordinates = %v, want [-73.75 42.5]", c)
	}
	if first.Properties["status"] != "Scheduled" || first.Properties["week"] != "Week 3" {
		t.Errorf("properties = %v", first.Properties)
	}
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, filename, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestImport(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.do(t, http.MethodPost, "/api/bridges", `{"bin":"OLD"}`)
	env.do(t, http.MethodPost, "/api/bridges", `{"bin":"1001","region":"R1"}`)

	csv := "BIN,County,Latitude,Longitude\n1001,Albany,42.6,-73.7\n1002,Greene,bad,\n"

	rec := env.upload(t, "bridges.csv", csv, map[string]string{"dry_run": "true"})
	if rec.Code != http.StatusOK {
		t.Fatalf("dry run status = %d, body %s", rec.Code, rec.Body)
	}
	dry := decode[core.ImportResult](t, rec)
	if !dry.DryRun || dry.Imported != 1 || dry.Updated != 1 {
		t.Errorf("dry run = %+v", dry)
	}
	if n, _ := env.svc.Count(t.Context()); n != 2 {
		t.Fatalf("dry run changed the store: count = %d", n)
	}

	rec = env.upload(t, "bridges.csv", csv, nil)
	res := decode[core.ImportResult](t, rec)
	if rec.Code != http.StatusOK || !res.Success || res.Imported != 1 || res.Updated != 1 || res.ImportID == "" {
		t.Fatalf("import status = %d, result %+v", rec.Code, res)
	}
	b, _ := env.svc.Get(t.Context(), "1001")
	if b.County != "Albany" || b.Region != "R1" || b.Lat != 42.6 {
		t.Errorf("merged = %+v", b)
	}
	b, _ = env.svc.Get(t.Context(), "1002")
	if b.Lat != 0 {
		t.Errorf("bad latitude imported as %v, want 0", b.Lat)
	}

	rec = env.upload(t, "bridges.csv", csv, map[string]string{"clear_existing": "on"})
	res = decode[core.ImportResult](t, rec)
	if res.Cleared != 3 || res.Imported != 2 {
		t.Errorf("clear import = %+v", res)
	}
	if _, err := env.svc.Get(t.Context(), "OLD"); err == nil {
		t.Error("OLD survived clear_existing")
	}
}

func TestImportErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxFileSize = 512
	env := newTestEnv(t, cfg)

	tests := []struct {
		name     string
		filename string
		content  string
		wantCode int
		wantErr  string
	}{
		{"no file", "", "", 400, "IMP002"},
		{"unsupported", "bridges.pdf", "BIN\n1\n", 400, "IMP003"},
		{"no header", "bridges.csv", "County\nAlbany\n", 400, "IMP005"},
		{"too large", "bridges.csv", "BIN\n" + strings.Repeat("1\n", 600), 413, "IMP004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.upload(t, tt.filename, tt.content, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantErr {
				t.Errorf("code = %s, want %s", got.Code, tt.wantErr)
			}
		})
	}
}

func TestImportLimiterBusy(t *testing.T) {
	env := newTestEnv(t, testConfig())
	l := env.svc.ImportLimiter()
	if !l.TryAcquire() {
		t.Fatal("TryAcquire() = false on idle limiter")
	}
	defer l.Release()

	rec := env.upload(t, "a.csv", "BIN\n1\n", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "IMP001" {
		t.Errorf("code = %s, want IMP001", got.Code)
	}
}

func waitForObservers(t *testing.T, reg *realtime.Registry, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("observers = %d, want %d", reg.Len(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventsWebSocket(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	waitForObservers(t, env.reg, 1)

	if _, err := env.svc.Create(t.Context(), core.Payload{"bin": "77", "county": "Ulster"}); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Delete(t.Context(), "77"); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		ID      string          `json:"id"`
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Kind != "created" || ev.ID == "" || !strings.Contains(string(ev.Payload), `"county":"Ulster"`) {
		t.Errorf("first event = %s %s", ev.Kind, ev.Payload)
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Kind != "deleted" || string(ev.Payload) != `{"bin":"77"}` {
		t.Errorf("second event = %s %s", ev.Kind, ev.Payload)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitForObservers(t, env.reg, 0)
}

func TestEventsWebSocket_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("Dial() with foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestEventsSSE(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events/stream")
	if err != nil {
		t.Fatalf("GET stream error = %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	lines := make(chan string, 32)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	next := func() string {
		select {
		case l, ok := <-lines:
			if !ok {
				t.Fatal("stream closed")
			}
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("timed out reading stream")
		}
		return ""
	}

	if got := next(); got != ": connected" {
		t.Fatalf("first line = %q", got)
	}
	waitForObservers(t, env.reg, 1)

	if _, err := env.svc.Create(t.Context(), core.Payload{"bin": "88"}); err != nil {
		t.Fatal(err)
	}

	var event, data string
	for event == "" || data == "" {
		l := next()
		switch {
		case strings.HasPrefix(l, "event: "):
			event = strings.TrimPrefix(l, "event: ")
		case strings.HasPrefix(l, "data: "):
			data = strings.TrimPrefix(l, "data: ")
		}
	}
	if event != "created" || !strings.Contains(data, `"bin":"88"`) {
		t.Errorf("event = %q data = %s", event, data)
	}

	resp.Body.Close()
	waitForObservers(t, env.reg, 0)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	h := decode[HealthResponse](t, rec)
	if h.Status != "ok" || h.Imports == nil || h.Imports.MaxConcurrent != 1 {
		t.Errorf("health = %+v", h)
	}

	env.store.Close()
	env.svc.CheckHealth(t.Context())

	rec = env.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after store close = %d, want 503", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/bridges", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("list status = %d, want 503", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "DB001" || strings.Contains(got.Message, "closed") {
		t.Errorf("error = %+v, want sanitized DB001", got)
	}
}

func TestRateLimitAndHeaders(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 1
	cfg.Rate.Burst = 1
	env := newTestEnv(t, cfg)

	rec := env.do(t, http.MethodGet, "/api/bridges", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("security headers missing: %v", rec.Header())
	}

	rec = env.do(t, http.MethodGet, "/api/bridges", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "RATE001" {
		t.Errorf("code = %s, want RATE001", got.Code)
	}
}
