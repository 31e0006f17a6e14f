package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/impactsim/internal/auth"
	"github.com/star/impactsim/internal/geodesy"
	"github.com/star/impactsim/internal/health"
	"github.com/star/impactsim/internal/metrics"
	"github.com/star/impactsim/internal/runs"
	"github.com/star/impactsim/internal/scenario"
	"github.com/star/impactsim/internal/stream"
)

// Deps are the services the HTTP API exposes.
type Deps struct {
	Scenarios *scenario.Store
	Runs      *runs.Manager
	Converter *geodesy.Converter
	Stream    *stream.Handler
	Web       fs.FS // optional static frontend
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(health.Check{
		Name: "scenarios",
		Fn: func() error {
			if deps.Scenarios.Len() == 0 {
				return errors.New("no scenarios loaded")
			}
			return nil
		},
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/scenarios", listScenariosHandler(deps.Scenarios))
	mux.HandleFunc("GET /api/v1/scenarios/{name}", getScenarioHandler(deps.Scenarios))
	mux.HandleFunc("PUT /api/v1/scenarios/{name}", putScenarioHandler(logger, deps.Scenarios))
	mux.HandleFunc("GET /api/v1/tracks.kml", tracksKMLHandler(logger, deps.Scenarios, deps.Converter))

	mux.HandleFunc("POST /api/v1/runs", startRunHandler(logger, deps.Scenarios, deps.Runs))
	mux.HandleFunc("GET /api/v1/runs", listRunsHandler(logger, deps.Runs))
	mux.HandleFunc("GET /api/v1/runs/{id}", getRunHandler(logger, deps.Runs))
	mux.HandleFunc("DELETE /api/v1/runs/{id}", cancelRunHandler(logger, deps.Runs))
	mux.HandleFunc("GET /api/v1/runs/{id}/grid", gridHandler(logger, deps.Runs))
	mux.HandleFunc("GET /api/v1/runs/{id}/kml", runKMLHandler(logger, deps.Runs, deps.Converter))
	mux.HandleFunc("GET /api/v1/runs/{id}/heatmap.png", heatmapHandler(logger, deps.Runs))

	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/runs/{id}", deps.Stream.HandleRun)
	}
	if deps.Web != nil {
		mux.Handle("GET /", http.FileServerFS(deps.Web))
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Rendering large grids as KML or PNG can take a while.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root handler including middleware.
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

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
