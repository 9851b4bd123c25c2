// Package api exposes the analyzer over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sls-log-analyzer/analyzer"
)

type Config struct {
	UploadDir       string
	MaxUploadSize   int64
	DefaultPageSize int
	// Location applies to startTime/endTime values without an offset.
	Location *time.Location
}

// Handler serves the upload, session and log endpoints.
type Handler struct {
	cfg      Config
	pipeline *analyzer.Pipeline
	queries  *analyzer.QueryEngine
	times    *analyzer.TimestampNormalizer
	logger   log.Logger
	now      func() time.Time
}

func NewHandler(cfg Config, pipeline *analyzer.Pipeline, queries *analyzer.QueryEngine, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = analyzer.DefaultPageSize
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 50 << 20
	}
	return &Handler{
		cfg:      cfg,
		pipeline: pipeline,
		queries:  queries,
		times:    analyzer.NewTimestampNormalizer(cfg.Location),
		logger:   logger,
		now:      time.Now,
	}
}

// NewRouter wires every route. gatherer may be nil, in which case /metrics
// is not served.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/api/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/api/upload", h.upload).Methods(http.MethodPost)
	r.HandleFunc("/api/upload/sessions", h.listSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/logs", h.queryLogs).Methods(http.MethodGet)
	r.HandleFunc("/api/logs/{id}", h.getLog).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		level.Debug(h.logger).Log("msg", "http request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

// Server runs the router until Shutdown.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
