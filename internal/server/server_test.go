package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/drift/internal/feed"
	"github.com/lazypower/drift/internal/logger"
	"github.com/lazypower/drift/internal/store"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testServer(t *testing.T, opts ...Option) (*Server, *store.DB) {
	t.Helper()
	logger.Init(logger.Options{Level: "off"})
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	params := feed.DefaultParams()
	params.Randomness = 0
	svc, err := feed.NewService(db, params,
		feed.WithClock(func() time.Time { return testNow }),
		feed.WithJitter(feed.NoJitter()),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(db, svc, "test-version", opts...), db
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func seedGenerator(t *testing.T, db *store.DB) *store.Generator {
	t.Helper()
	g := &store.Generator{Name: "haiku", Type: "text"}
	if err := db.CreateGenerator(context.Background(), g); err != nil {
		t.Fatalf("CreateGenerator: %v", err)
	}
	return g
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	srv, _ := testServer(t, WithCORS("https://drift.example"))

	req := httptest.NewRequest("OPTIONS", "/api/feed", nil)
	req.Header.Set("Origin", "https://drift.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://drift.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := testServer(t)
	if w := do(t, srv, "GET", "/api/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
