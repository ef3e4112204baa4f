package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/akhilsonga/ASHTRAA/internal/health"
	"github.com/akhilsonga/ASHTRAA/internal/observe"
	"github.com/akhilsonga/ASHTRAA/internal/pipeline"
	"github.com/akhilsonga/ASHTRAA/internal/resilience"
	"github.com/akhilsonga/ASHTRAA/internal/session"
	llmmock "github.com/akhilsonga/ASHTRAA/pkg/provider/llm/mock"
	ttsmock "github.com/akhilsonga/ASHTRAA/pkg/provider/tts/mock"
)

func newTestServer(t *testing.T, reply string) (http.Handler, *session.Store, string) {
	t.Helper()
	root := t.TempDir()
	store, err := session.NewStore(root)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	sess, err := store.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	orch, err := pipeline.New(pipeline.Config{
		LLM:     &llmmock.Provider{Response: reply},
		TTS:     &ttsmock.Synthesizer{},
		Store:   store,
		Session: sess,
		Metrics: metrics,
		BaseURL: "http://localhost:5011",
		Retry:   resilience.RetryPolicy{Attempts: 1},
	})
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}
	srv := New(orch, store, health.New(root), metrics)
	return srv.Handler(), store, sess.ID()
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	h, _, sessID := newTestServer(t, "<voice1>Welcome back</voice1>")

	rec := postChat(t, h, `{"message":"do an episode on coffee"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		ResponseText  string                  `json:"responseed_text"`
		AudioSegments []session.SegmentRecord `json:"audio_segments"`
		FolderName    string                  `json:"folder_name"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ResponseText != "<voice1>Welcome back</voice1>" {
		t.Errorf("responseed_text = %q", resp.ResponseText)
	}
	if resp.FolderName != sessID {
		t.Errorf("folder_name = %q, want %q", resp.FolderName, sessID)
	}
	if len(resp.AudioSegments) != 1 || resp.AudioSegments[0].Filename != "voice1-1.mp3" {
		t.Errorf("audio_segments = %+v", resp.AudioSegments)
	}
}

func TestChatEmptyInputIs400(t *testing.T) {
	h, _, _ := newTestServer(t, "<voice1>x</voice1>")

	rec := postChat(t, h, `{"message":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == "" {
		t.Error("error field empty")
	}
}

func TestChatBadAttachmentIs400(t *testing.T) {
	h, _, _ := newTestServer(t, "<voice1>x</voice1>")

	rec := postChat(t, h, `{"message":"hi","file_data":"aGk=","file_type":"application/zip"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body)
	}
}

func TestChatMalformedJSONIs400(t *testing.T) {
	h, _, _ := newTestServer(t, "x")

	rec := postChat(t, h, `{"message":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatNoSegmentsReturnsEmptyArray(t *testing.T) {
	h, _, _ := newTestServer(t, "plain prose, no tags")

	rec := postChat(t, h, `{"message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"audio_segments":[]`) {
		t.Errorf("body = %s, want empty audio_segments array", rec.Body)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	h, _, sessID := newTestServer(t, "<voice1>hello</voice1><voice2>hi</voice2>")

	if rec := postChat(t, h, `{"message":"greetings episode"}`); rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /history status = %d", rec.Code)
	}
	var summaries []session.Summary
	if err := json.NewDecoder(rec.Body).Decode(&summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != sessID || summaries[0].Title != "greetings episode" {
		t.Errorf("summaries = %+v", summaries)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/"+sessID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /history/%s status = %d", sessID, rec.Code)
	}
	var meta session.Metadata
	if err := json.NewDecoder(rec.Body).Decode(&meta); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if len(meta.Segments) != 2 {
		t.Errorf("segments = %d, want 2", len(meta.Segments))
	}
}

func TestHistoryUnknownSessionIs404(t *testing.T) {
	h, _, _ := newTestServer(t, "x")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/conversation999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Session not found") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestAudioEndpoint(t *testing.T) {
	h, _, sessID := newTestServer(t, "<voice1>clip</voice1>")

	if rec := postChat(t, h, `{"message":"hi"}`); rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audio/"+sessID+"/voice1-1.mp3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "audio:clip" {
		t.Errorf("body = %q", rec.Body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audio/"+sessID+"/missing.mp3", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing audio status = %d, want 404", rec.Code)
	}
}

func TestAssetEndpoint(t *testing.T) {
	h, store, _ := newTestServer(t, "x")
	if err := os.WriteFile(filepath.Join(store.Root(), "intro.mp3"), []byte("jingle"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/intro.mp3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "jingle" {
		t.Errorf("body = %q", rec.Body)
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	h, store, _ := newTestServer(t, "x")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), store.Root()) {
		t.Errorf("health body = %s, want session_dir %q", rec.Body, store.Root())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics status = %d", rec.Code)
	}
}

func TestCORSHeadersAndPreflight(t *testing.T) {
	h, _, _ := newTestServer(t, "x")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/chat", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}
