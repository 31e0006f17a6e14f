// Package stream implements Server-Sent Events (SSE) progress streaming for
// Monte Carlo runs. Clients connect via GET /api/v1/stream/runs/{id}.
//
// SSE message format:
//
//	event: progress
//	data: {"type":"progress","completed":12000,"skipped":3,"total":1000000,"fraction":0.012}
//
// The first message is always the run status (type "run"). Progress
// messages follow at Config.Interval while the run is live, and a final
// "done" message carries the terminal status before the server closes the
// stream. Keep-alive comments (:\n\n) are sent every KeepaliveInterval.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/star/impactsim/internal/httputil"
	"github.com/star/impactsim/internal/metrics"
	"github.com/star/impactsim/internal/runs"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxConcurrent      int           // Max concurrent streams overall (default: 1000).
	Interval           time.Duration // Progress message interval (default: 1s).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Honour X-Forwarded-For for the per-IP limit.
}

// Runs is the view of the run manager the stream needs.
type Runs interface {
	Lookup(id string) (*runs.Run, bool)
	Get(id string) (runs.Status, error)
}

// Handler manages SSE streaming connections.
type Handler struct {
	runs    Runs
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(rs Runs, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		runs:    rs,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
	}
}

// HandleRun serves the SSE progress stream of one run.
// GET /api/v1/stream/runs/{id}
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, err := h.runs.Get(id)
	if err != nil {
		if errors.Is(err, runs.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "run not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	// Rate limiting: enforce concurrent stream limits.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if ok, limit := h.limiter.acquire(ip); !ok {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"component", "stream",
			"remote_ip", ip,
			"limit", limit,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"component", "stream",
		"remote_ip", ip,
		"run_id", id,
		"user_agent", r.Header.Get("User-Agent"),
	)

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"component", "stream",
			"remote_ip", ip,
			"run_id", id,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) against reconnection storms.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.IntN(4000))
	flusher.Flush()

	if err := c.sendEvent("run", statusMessage{Type: "run", Run: st}); err != nil {
		h.sendFailed(ip, err)
		return
	}

	live, ok := h.runs.Lookup(id)
	if !ok {
		// Archived, possibly after st was read.
		if final, err := h.runs.Get(id); err == nil {
			st = final
		}
		if err := c.sendEvent("done", statusMessage{Type: "done", Run: st}); err != nil {
			h.sendFailed(ip, err)
		}
		return
	}

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-live.Done():
			if err := c.sendEvent("done", statusMessage{Type: "done", Run: live.Status()}); err != nil {
				h.sendFailed(ip, err)
			}
			return

		case <-ticker.C:
			if err := c.sendEvent("progress", buildProgressMessage(live.Status())); err != nil {
				h.sendFailed(ip, err)
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "component", "stream", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

func (h *Handler) sendFailed(ip string, err error) {
	metrics.IncStreamErrors("send_error")
	h.logger.Warn("stream send error", "component", "stream", "remote_ip", ip, "error", err)
}

func buildProgressMessage(st runs.Status) progressMessage {
	return progressMessage{
		Type:           "progress",
		Completed:      st.Completed,
		Skipped:        st.Skipped,
		Total:          st.Total,
		Fraction:       st.Fraction,
		ElapsedSeconds: st.DurationSeconds,
	}
}

// SSE message payload types.

type statusMessage struct {
	Type string      `json:"type"`
	Run  runs.Status `json:"run"`
}

type progressMessage struct {
	Type           string  `json:"type"`
	Completed      int     `json:"completed"`
	Skipped        int     `json:"skipped"`
	Total          int     `json:"total"`
	Fraction       float64 `json:"fraction"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}
