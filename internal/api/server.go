// Package api serves the sensor, its passes and the orbital element status
// over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dirtyharryiv/iss-spotter/internal/auth"
	"github.com/dirtyharryiv/iss-spotter/internal/health"
	"github.com/dirtyharryiv/iss-spotter/internal/httputil"
	"github.com/dirtyharryiv/iss-spotter/internal/metrics"
	"github.com/dirtyharryiv/iss-spotter/internal/sensor"
	"github.com/dirtyharryiv/iss-spotter/internal/tle"
)

// SensorSource is the sensor adapter as seen by the API.
type SensorSource interface {
	Snapshot() *sensor.Snapshot
	Trigger() bool
}

// ElementsSource reports the orbital elements in use.
type ElementsSource interface {
	Metadata() (tle.Metadata, bool)
}

// Options wires the server to the rest of the service.
type Options struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool // take the client IP from X-Forwarded-For / X-Real-IP

	Sensor   SensorSource
	Elements ElementsSource
	Finder   sensor.PassFinder
	// Stream serves live sensor updates; nil disables the route.
	Stream http.Handler
	// Defaults fill in ad-hoc /api/v1/passes queries.
	Defaults sensor.Settings
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(opts Options, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           newHandler(opts, logger),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Ad-hoc predictions over a long window take a few seconds.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

func newHandler(opts Options, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool { return opts.Sensor.Snapshot() != nil }))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/sensor", sensorHandler(opts.Sensor))
	if opts.Stream != nil {
		mux.Handle("GET /api/v1/sensor/stream", opts.Stream)
	}
	mux.HandleFunc("GET /api/v1/passes", passesHandler(opts, logger))
	mux.HandleFunc("GET /api/v1/tle/metadata", tleMetadataHandler(opts.Elements))
	mux.HandleFunc("POST /api/v1/refresh", refreshHandler(opts.Sensor, logger))

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(opts.Auth)(handler)
	handler = loggingMiddleware(logger, opts.TrustProxy)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
