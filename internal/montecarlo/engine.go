// Package montecarlo runs the randomized trajectory simulation on a fixed
// worker pool and accumulates impact points into a shared grid.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/star/impactsim/internal/metrics"
	"github.com/star/impactsim/internal/stats"
	"github.com/star/impactsim/internal/trajectory"
)

// DefaultBatchSize is the number of iterations a worker runs between
// publishing progress and checking for cancellation.
const DefaultBatchSize = 100

// ErrTooFewIterations is returned when the iteration count is below the worker count.
var ErrTooFewIterations = errors.New("fewer iterations than workers")

// Config holds worker pool configuration.
type Config struct {
	Workers   int // Worker pool size (default: runtime.NumCPU())
	BatchSize int // Iterations between lock acquisitions (default: 100)
}

// Engine starts Monte Carlo runs.
type Engine struct {
	config Config
	logger *slog.Logger
}

// NewEngine creates an engine with the given pool configuration.
func NewEngine(config Config, logger *slog.Logger) *Engine {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &Engine{config: config, logger: logger}
}

// Config returns the effective pool configuration.
func (e *Engine) Config() Config { return e.config }

// Start validates params, centres a fresh grid on nominal and launches the
// workers. workers <= 0 uses the engine default. The iteration count is
// rounded down to a multiple of the worker count. Cancelling ctx cancels
// the run.
func (e *Engine) Start(ctx context.Context, params *Parameters, nominal trajectory.Point2, workers int) (*Run, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = e.config.Workers
	}
	perWorker := params.Iterations / workers
	if perWorker == 0 {
		return nil, fmt.Errorf("%d iterations on %d workers: %w", params.Iterations, workers, ErrTooFewIterations)
	}

	grid, err := CenteredOn(nominal, params.GridCols, params.GridRows, params.CellSize)
	if err != nil {
		return nil, err
	}

	srcs := stats.WorkerSources(params.Seed, workers)
	samplers := make([]*sampler, workers)
	for i := range samplers {
		s, err := newSampler(params, srcs[i])
		if err != nil {
			return nil, err
		}
		samplers[i] = s
	}

	r := &Run{
		grid:      grid,
		total:     perWorker * workers,
		perWorker: perWorker,
		workers:   workers,
		batchSize: e.config.BatchSize,
		state:     StateRunning,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}

	e.logger.Info("monte carlo run starting",
		"component", "montecarlo",
		"iterations", r.total,
		"workers", workers,
		"batch_size", r.batchSize,
		"grid_cols", grid.Cols,
		"grid_rows", grid.Rows,
		"cell_size", grid.CellSize,
	)
	metrics.IncRunsStarted()
	metrics.AddActiveWorkers(workers)

	stop := context.AfterFunc(ctx, r.Cancel)

	// Iteration failures are counted, not returned, so workers cannot fail.
	var wg sync.WaitGroup
	for _, s := range samplers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer metrics.AddActiveWorkers(-1)
			r.work(s)
		}()
	}

	go func() {
		wg.Wait()
		stop()
		r.finish()

		st := r.Poll()
		metrics.RecordRun(st.State.String(), st.Duration(), st.Completed, st.Skipped)
		e.logger.Info("monte carlo run finished",
			"component", "montecarlo",
			"state", st.State.String(),
			"completed", st.Completed,
			"skipped", st.Skipped,
			"total", st.Total,
			"duration_ms", st.Duration().Milliseconds(),
		)
	}()

	return r, nil
}

// worker-local batch, flushed under the run lock.
type batch struct {
	hits      []int
	completed int
	skipped   int
}

func (b *batch) size() int { return b.completed + b.skipped }

func (b *batch) reset() {
	b.hits = b.hits[:0]
	b.completed = 0
	b.skipped = 0
}

// work runs one worker's share of iterations.
func (r *Run) work(s *sampler) {
	b := &batch{hits: make([]int, 0, r.batchSize)}
	for i := 0; i < r.perWorker; i++ {
		impact, err := s.iterate()
		if err != nil {
			b.skipped++
		} else {
			b.completed++
			if idx, ok := r.grid.Index(impact.XY()); ok {
				b.hits = append(b.hits, idx)
			}
		}

		if b.size() >= r.batchSize {
			if r.flush(b) {
				return
			}
		}
	}
	r.flush(b)
}
