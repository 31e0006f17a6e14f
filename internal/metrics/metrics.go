package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "impactsim_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "impactsim_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	runsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "impactsim_runs_started_total",
		Help: "Monte Carlo runs started.",
	})

	runsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "impactsim_runs_finished_total",
			Help: "Monte Carlo runs finished, by final state.",
		},
		[]string{"state"},
	)

	runDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "impactsim_run_duration_seconds",
		Help:    "Wall-clock duration of Monte Carlo runs.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	})

	iterationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "impactsim_iterations_total",
			Help: "Simulated trajectories, by outcome.",
		},
		[]string{"outcome"},
	)

	workersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "impactsim_workers_active",
		Help: "Monte Carlo worker goroutines currently running.",
	})

	sensitivityDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "impactsim_sensitivity_duration_seconds",
		Help:    "Duration of the nominal and one-sigma track pass.",
		Buckets: prometheus.DefBuckets,
	})

	resultsCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "impactsim_results_cache_total",
			Help: "Finished-run lookups, by where they were served from.",
		},
		[]string{"source"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "impactsim_stream_connections_total",
			Help: "Progress stream connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "impactsim_streams_active",
		Help: "Open progress streams.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "impactsim_stream_messages_total",
		Help: "Progress stream messages sent.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "impactsim_stream_bytes_total",
		Help: "Progress stream bytes sent.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "impactsim_stream_errors_total",
			Help: "Progress stream errors, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(runsStartedTotal)
	prometheus.MustRegister(runsFinishedTotal)
	prometheus.MustRegister(runDurationSeconds)
	prometheus.MustRegister(iterationsTotal)
	prometheus.MustRegister(workersActive)
	prometheus.MustRegister(sensitivityDurationSeconds)
	prometheus.MustRegister(resultsCacheTotal)
	prometheus.MustRegister(streamConnectionsTotal)
	prometheus.MustRegister(streamsActive)
	prometheus.MustRegister(streamMessagesTotal)
	prometheus.MustRegister(streamBytesTotal)
	prometheus.MustRegister(streamErrorsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncRunsStarted counts a started run.
func IncRunsStarted() { runsStartedTotal.Inc() }

// RecordRun records the outcome of a finished run.
func RecordRun(state string, d time.Duration, completed, skipped int) {
	runsFinishedTotal.WithLabelValues(state).Inc()
	runDurationSeconds.Observe(d.Seconds())
	iterationsTotal.WithLabelValues("completed").Add(float64(completed))
	iterationsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// AddActiveWorkers adjusts the running worker gauge.
func AddActiveWorkers(n int) { workersActive.Add(float64(n)) }

// ObserveSensitivity records one nominal/one-sigma pass.
func ObserveSensitivity(d time.Duration) { sensitivityDurationSeconds.Observe(d.Seconds()) }

// IncResultsLookup counts a finished-run lookup served from source
// ("memory", "disk" or "miss").
func IncResultsLookup(source string) { resultsCacheTotal.WithLabelValues(source).Inc() }

func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }
func IncStreamsActive()                 { streamsActive.Inc() }
func DecStreamsActive()                 { streamsActive.Dec() }
func IncStreamMessages()                { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64)            { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string)     { streamErrorsTotal.WithLabelValues(reason).Inc() }

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/":                  true,
	"/healthz":           true,
	"/readyz":            true,
	"/metrics":           true,
	"/app.js":            true,
	"/styles.css":        true,
	"/api/v1/runs":       true,
	"/api/v1/scenarios":  true,
	"/api/v1/tracks.kml": true,
}

// runSuffixes are the sub-resources of a run.
var runSuffixes = map[string]bool{
	"grid":        true,
	"kml":         true,
	"heatmap.png": true,
}

// normalizeRoute collapses parameterized paths so run IDs and scenario names
// do not create one label each.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "/api/v1/stream/runs/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/stream/runs/{id}"
	}

	if rest, ok := strings.CutPrefix(path, "/api/v1/scenarios/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/scenarios/{name}"
	}

	if rest, ok := strings.CutPrefix(path, "/api/v1/runs/"); ok && rest != "" {
		id, sub, nested := strings.Cut(rest, "/")
		switch {
		case id == "":
			return "other"
		case !nested:
			return "/api/v1/runs/{id}"
		case runSuffixes[sub]:
			return "/api/v1/runs/{id}/" + sub
		}
	}

	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through to the wrapped writer so SSE works behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
