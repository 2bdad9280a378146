// Package server exposes sensegate over HTTP and WebSocket: the chunked
// batch transcription endpoint, the streaming recognition socket, and the
// status, health, and metrics surfaces.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openspeechlab/sensegate/internal/config"
	"github.com/openspeechlab/sensegate/internal/engine"
	"github.com/openspeechlab/sensegate/internal/health"
	"github.com/openspeechlab/sensegate/internal/hotword"
	"github.com/openspeechlab/sensegate/internal/observe"
	"github.com/openspeechlab/sensegate/pkg/asr"
)

// Server wires the transport endpoints to the engine's models.
type Server struct {
	cfg       *config.Config
	engine    *engine.Service
	metrics   *observe.Metrics
	logger    *slog.Logger
	health    *health.Handler
	corrector *hotword.Corrector
	started   time.Time

	stats connStats
}

// connStats aggregates connection counters for the status endpoint.
type connStats struct {
	active       atomic.Int64
	total        atomic.Int64
	messages     atomic.Int64
	chunks       atomic.Int64
	recognitions atomic.Int64
	errors       atomic.Int64
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the logger used by the handlers.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metric instruments. Defaults to the package-level
// instance from the global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server over the given engine.
func New(cfg *config.Config, eng *engine.Service, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		engine:  eng,
		logger:  slog.Default(),
		started: time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.health = health.New().Add("engine", eng.Warm)
	if len(cfg.Hotwords) > 0 {
		s.corrector = hotword.New(cfg.Hotwords)
	}
	return s
}

// correct applies the configured hotword corrector to a committed result.
// No-op without hotwords.
func (s *Server) correct(res *asr.Result) {
	if s.corrector == nil || res.Text == "" {
		return
	}
	corrected, corrections := s.corrector.Correct(res.Text)
	if len(corrections) > 0 {
		s.logger.Debug("hotword corrections applied", "count", len(corrections))
	}
	res.Text = corrected
}

// Handler returns the root HTTP handler. The WebSocket route bypasses the
// observability middleware because the wrapped writer cannot be hijacked.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/asr", s.handleBatch)
	api.HandleFunc("GET /api/v1/status", s.handleStatus)
	s.health.Register(api)
	api.Handle("GET /metrics", promhttp.Handler())

	root := http.NewServeMux()
	root.HandleFunc("GET /ws/asr", s.handleWS)
	root.Handle("/", observe.Middleware(s.metrics)(api))
	return root
}

// statusResponse is the JSON body of GET /api/v1/status.
type statusResponse struct {
	Engine        engine.Status `json:"engine"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Connections   struct {
		Active int64 `json:"active"`
		Total  int64 `json:"total"`
	} `json:"connections"`
	Messages     int64 `json:"messages"`
	Chunks       int64 `json:"chunks"`
	Recognitions int64 `json:"recognitions"`
	Errors       int64 `json:"errors"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var resp statusResponse
	resp.Engine = s.engine.Status()
	resp.UptimeSeconds = time.Since(s.started).Seconds()
	resp.Connections.Active = s.stats.active.Load()
	resp.Connections.Total = s.stats.total.Load()
	resp.Messages = s.stats.messages.Load()
	resp.Chunks = s.stats.chunks.Load()
	resp.Recognitions = s.stats.recognitions.Load()
	resp.Errors = s.stats.errors.Load()
	writeJSON(w, http.StatusOK, resp)
}

// errorResponse is the JSON body of failed HTTP requests.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
