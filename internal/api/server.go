package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/escapeSeq/spacecore-orbits/internal/auth"
	"github.com/escapeSeq/spacecore-orbits/internal/engine"
	"github.com/escapeSeq/spacecore-orbits/internal/health"
	"github.com/escapeSeq/spacecore-orbits/internal/httputil"
	"github.com/escapeSeq/spacecore-orbits/internal/logging"
	"github.com/escapeSeq/spacecore-orbits/internal/metrics"
	"github.com/escapeSeq/spacecore-orbits/internal/stream"
	"github.com/escapeSeq/spacecore-orbits/internal/tle"
	"github.com/google/uuid"
)

// maxCoverageTotal caps concurrent coverage computations across all clients.
const maxCoverageTotal = 64

// Config holds HTTP server settings.
type Config struct {
	Addr             string
	Auth             auth.Config
	TrustProxy       bool
	MaxCoveragePerIP int
	MaxStreamsPerIP  int
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server over eng. Uploaded catalogs
// are written to archive when it is non-nil.
func NewServer(cfg Config, eng *engine.Engine, archive *tle.Archive, logger *slog.Logger) *Server {
	h := &handlers{
		engine:     eng,
		archive:    archive,
		limiter:    httputil.NewLimiter(cfg.MaxCoveragePerIP, maxCoverageTotal),
		trustProxy: cfg.TrustProxy,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(eng.Store()))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/satellites", h.listSatellites)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}", h.getSatellite)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}/state", h.getState)
	mux.HandleFunc("POST /api/v1/satellites/{norad_id}/coverage", h.setCoverage)
	mux.HandleFunc("GET /api/v1/coverage", h.getCoverage)
	mux.HandleFunc("POST /api/v1/tle", h.uploadCatalog)

	streams := stream.NewHandler(eng, stream.Config{
		MaxConcurrentPerIP: cfg.MaxStreamsPerIP,
		KeepaliveInterval:  30 * time.Second,
		TrustProxy:         cfg.TrustProxy,
	}, logger)
	mux.HandleFunc("GET /api/v1/stream/coverage", streams.HandleCoverage)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// loggingMiddleware tags each request with an ID, stores a request-scoped
// logger in the context and logs the outcome.
func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			reqLogger := logger.With("request_id", requestID)
			r = r.WithContext(logging.NewContext(r.Context(), reqLogger))

			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			reqLogger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
