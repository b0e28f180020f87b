// Package api exposes the capture, listen-session, dictionary and practice
// operations over HTTP.
//
// Routes use net/http ServeMux patterns and are wrapped in the observe
// middleware, so every request gets a span, a correlation id and a duration
// histogram sample. The caller is identified by the X-Owner-ID header, or the
// owner query parameter when the header is absent.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/app"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/capture"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/health"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/listen"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/reward"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/vocab"
)

const (
	// ownerHeader carries the id of the learner making the request.
	ownerHeader = "X-Owner-ID"

	// defaultMaxAudioBytes caps a single audio upload.
	defaultMaxAudioBytes = 1 << 20

	// maxJSONBytes caps JSON request bodies.
	maxJSONBytes = 4 << 20
)

// Option configures a [Server].
type Option func(*Server)

// WithMaxAudioBytes caps the body of a single audio upload. Default: 1 MiB.
func WithMaxAudioBytes(n int64) Option {
	return func(s *Server) { s.maxAudioBytes = n }
}

// WithMetricsHandler serves h on GET /metrics. Default: the Prometheus
// default registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// Server routes HTTP requests to an [app.App].
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	handler        http.Handler
	maxAudioBytes  int64
	metricsHandler http.Handler
}

// New builds the route table for a.
func New(a *app.App, opts ...Option) *Server {
	s := &Server{
		app:           a,
		mux:           http.NewServeMux(),
		maxAudioBytes: defaultMaxAudioBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metricsHandler == nil {
		s.metricsHandler = promhttp.Handler()
	}
	s.routes()
	s.handler = observe.Middleware(a.Metrics())(tagOwner(s.mux))
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	health.New(s.app.HealthCheckers()...).Register(s.mux)
	s.mux.Handle("GET /metrics", s.metricsHandler)

	s.mux.HandleFunc("POST /v1/capture", s.handleStartCapture)
	s.mux.HandleFunc("GET /v1/capture", s.handleListCaptures)
	s.mux.HandleFunc("POST /v1/capture/{id}/start", s.handleRestartCapture)
	s.mux.HandleFunc("POST /v1/capture/{id}/audio", s.handleAudio)
	s.mux.HandleFunc("POST /v1/capture/{id}/bookmarks/{entryID}", s.handleToggleBookmark)
	s.mux.HandleFunc("POST /v1/capture/{id}/ack", s.handleAcknowledge)
	s.mux.HandleFunc("POST /v1/capture/{id}/stop", s.handleStopCapture)
	s.mux.HandleFunc("GET /v1/capture/{id}/feed", s.handleFeed)

	s.mux.HandleFunc("GET /v1/listen-sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /v1/listen-sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("POST /v1/listen-sessions/{id}/enrich", s.handleEnrichSession)

	s.mux.HandleFunc("POST /v1/harvest", s.handleHarvest)
	s.mux.HandleFunc("POST /v1/dictionary/unlock-tense", s.handleUnlockTense)
	s.mux.HandleFunc("POST /v1/dictionary/complete", s.handleCompleteEntry)
	s.mux.HandleFunc("GET /v1/dictionary/events", s.handleDictionaryEvents)
	s.mux.HandleFunc("POST /v1/practice/answers", s.handlePracticeAnswer)
	s.mux.HandleFunc("GET /v1/xp", s.handleBalance)
	s.mux.HandleFunc("POST /v1/xp", s.handleAddXP)
}

// tagOwner puts the caller's id on the request context so that logs and
// spans of the request carry it.
func tagOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := requestOwner(r); id != "" {
			r = r.WithContext(observe.WithOwner(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func requestOwner(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(ownerHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("owner"))
}

// ownerID returns the caller's id, or writes a 400 and returns "".
func ownerID(w http.ResponseWriter, r *http.Request) string {
	id := requestOwner(r)
	if id == "" {
		respondMessage(w, http.StatusBadRequest, "missing "+ownerHeader+" header or owner parameter")
	}
	return id
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrCaptureNotFound),
		errors.Is(err, listen.ErrNotFound),
		errors.Is(err, vocab.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrInvalidState),
		errors.Is(err, capture.ErrAbandoned),
		errors.Is(err, vocab.ErrTenseUnlocked):
		return http.StatusConflict
	case errors.Is(err, app.ErrNoTranscriber),
		errors.Is(err, vocab.ErrNoExtractor),
		errors.Is(err, vocab.ErrNoCompleter),
		errors.Is(err, listen.ErrNoEnricher):
		return http.StatusServiceUnavailable
	case errors.Is(err, reward.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("api: request failed", "path", r.URL.Path, "err", err)
	}
	respondMessage(w, status, err.Error())
}

func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// respondJSON encodes v as JSON and writes it with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
