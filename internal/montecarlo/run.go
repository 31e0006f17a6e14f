package montecarlo

import (
	"context"
	"sync"
	"time"
)

// State is the lifecycle state of a run.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "not_started"
	}
}

// Terminal reports whether the run has stopped.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Status is a consistent snapshot of a run.
type Status struct {
	State      State
	Completed  int
	Skipped    int
	Total      int
	Workers    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the elapsed run time so far, or the total once finished.
func (s Status) Duration() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Fraction returns completed/total in [0, 1].
func (s Status) Fraction() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}

// Run is the handle of one Monte Carlo run. A zero Run reports
// StateNotStarted. All methods are safe for concurrent use.
type Run struct {
	// Immutable after Start.
	perWorker int
	workers   int
	batchSize int
	total     int
	startedAt time.Time
	done      chan struct{}

	// mu guards everything below, including grid cells.
	mu              sync.Mutex
	grid            *Grid
	completed       int
	skipped         int
	cancelRequested bool
	state           State
	finishedAt      time.Time
}

// Cancel asks the workers to stop. It does not wait for them; each worker
// notices at its next batch boundary.
func (r *Run) Cancel() {
	r.mu.Lock()
	r.cancelRequested = true
	r.mu.Unlock()
}

// Progress returns the completed and total iteration counts.
func (r *Run) Progress() (completed, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed, r.total
}

// Poll returns the current state and counters.
func (r *Run) Poll() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		State:      r.state,
		Completed:  r.completed,
		Skipped:    r.skipped,
		Total:      r.total,
		Workers:    r.workers,
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
	}
}

// Done is closed once every worker has exited.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run stops or ctx is done.
func (r *Run) Wait(ctx context.Context) (Status, error) {
	if r.done == nil {
		return r.Poll(), nil
	}
	select {
	case <-r.done:
		return r.Poll(), nil
	case <-ctx.Done():
		return r.Poll(), ctx.Err()
	}
}

// Grid returns a copy of the grid as it stands.
func (r *Run) Grid() *Grid {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grid == nil {
		return nil
	}
	return r.grid.Clone()
}

// flush publishes a worker batch and reports whether the worker should stop.
func (r *Run) flush(b *batch) bool {
	r.mu.Lock()
	for _, idx := range b.hits {
		r.grid.Cells[idx]++
	}
	r.completed += b.completed
	r.skipped += b.skipped
	stop := r.cancelRequested
	r.mu.Unlock()

	b.reset()
	return stop
}

// finish moves the run into its terminal state and releases waiters.
func (r *Run) finish() {
	r.mu.Lock()
	if r.cancelRequested && r.completed+r.skipped < r.total {
		r.state = StateCancelled
	} else {
		r.state = StateCompleted
	}
	r.finishedAt = time.Now()
	r.mu.Unlock()
	close(r.done)
}
