package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthReportsSessionDir(t *testing.T) {
	h := New("/var/lib/ashtraa/AudioStream")

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Status     string `json:"status"`
		SessionDir string `json:"session_dir"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.SessionDir != "/var/lib/ashtraa/AudioStream" {
		t.Errorf("session_dir = %q", body.SessionDir)
	}
}

func TestReadyzAllChecksPass(t *testing.T) {
	h := New("dir",
		Checker{Name: "sessions", Check: func(context.Context) error { return nil }},
		Checker{Name: "tts", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body readyResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Checks["sessions"] != "ok" || body.Checks["tts"] != "ok" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestReadyzFailingCheck(t *testing.T) {
	h := New("dir",
		Checker{Name: "sessions", Check: func(context.Context) error { return nil }},
		Checker{Name: "tts", Check: func(context.Context) error { return errors.New("breaker open") }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body readyResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["tts"] != "fail: breaker open" {
		t.Errorf("tts check = %q", body.Checks["tts"])
	}
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New("dir").Register(mux)

	for _, path := range []string{"/health", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}
