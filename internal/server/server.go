// Package server exposes the podcast pipeline over HTTP.
//
// Routes use a stock [http.ServeMux] with method-qualified patterns. All
// JSON error responses carry a single {"error": ...} field. CORS headers are
// set on every response; the browser frontend lives on a different origin.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akhilsonga/ASHTRAA/internal/attach"
	"github.com/akhilsonga/ASHTRAA/internal/health"
	"github.com/akhilsonga/ASHTRAA/internal/observe"
	"github.com/akhilsonga/ASHTRAA/internal/pipeline"
	"github.com/akhilsonga/ASHTRAA/internal/session"
)

// chatRequest is the POST /chat body.
type chatRequest struct {
	Message  string `json:"message"`
	FileData string `json:"file_data"`
	FileType string `json:"file_type"`
}

// chatResponse is the POST /chat reply. Field names are the wire contract
// with the existing frontend and must not change.
type chatResponse struct {
	ResponseText  string                  `json:"responseed_text"`
	AudioSegments []session.SegmentRecord `json:"audio_segments"`
	FolderName    string                  `json:"folder_name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	orch    *pipeline.Orchestrator
	store   *session.Store
	health  *health.Handler
	metrics *observe.Metrics
}

// New assembles a Server around one orchestrator and its session store.
func New(orch *pipeline.Orchestrator, store *session.Store, h *health.Handler, m *observe.Metrics) *Server {
	return &Server{orch: orch, store: store, health: h, metrics: m}
}

// Handler builds the full route table wrapped in CORS and the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /history/{sessionId}", s.handleSession)
	mux.HandleFunc("GET /audio/{sessionId}/{filename}", s.handleAudio)
	mux.HandleFunc("GET /assets/{filename}", s.handleAsset)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	return observe.Middleware(s.metrics)(cors(mux))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.orch.Chat(r.Context(), pipeline.ChatRequest{
		Message:  req.Message,
		FileData: req.FileData,
		FileType: req.FileType,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrNoInput) || errors.Is(err, attach.ErrBadFile) {
			status = http.StatusBadRequest
		}
		observe.Logger(r.Context()).Error("chat turn failed", "error", err)
		writeError(w, status, err.Error())
		return
	}

	segments := res.Segments
	if segments == nil {
		segments = []session.SegmentRecord{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		ResponseText:  res.Text,
		AudioSegments: segments,
		FolderName:    res.SessionID,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.List()
	if err != nil {
		observe.Logger(r.Context()).Error("session listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list sessions")
		return
	}
	if summaries == nil {
		summaries = []session.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	meta, err := s.store.Load(r.PathValue("sessionId"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		observe.Logger(r.Context()).Error("session load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	path, err := s.store.AudioPath(r.PathValue("sessionId"), r.PathValue("filename"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Audio not found")
			return
		}
		observe.Logger(r.Context()).Error("audio lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not resolve audio")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, path)
}

// handleAsset serves loose files placed directly in the session root, e.g.
// pre-rendered intro clips.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	path, err := s.store.AssetPath(r.PathValue("filename"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Asset not found")
			return
		}
		observe.Logger(r.Context()).Error("asset lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not resolve asset")
		return
	}
	http.ServeFile(w, r, path)
}

// cors sets permissive cross-origin headers and short-circuits preflight.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
