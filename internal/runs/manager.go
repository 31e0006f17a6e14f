// Package runs owns the lifecycle of Monte Carlo runs: reference tracks,
// the randomized run itself and archiving of the finished result.
package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/results"
	"github.com/star/impactsim/internal/scenario"
	"github.com/star/impactsim/internal/sensitivity"
)

var (
	// ErrAlreadyRunning is returned when the scenario has a run in progress.
	ErrAlreadyRunning = errors.New("scenario already has a run in progress")
	// ErrNotFound is returned for unknown run ids.
	ErrNotFound = errors.New("run not found")
	// ErrTooManyIterations is returned when a scenario exceeds the configured cap.
	ErrTooManyIterations = errors.New("iteration count exceeds limit")
)

// Config holds manager limits.
type Config struct {
	MaxIterations int // 0 means no limit
}

// Status is the externally visible state of a run, live or archived.
type Status struct {
	ID              string    `json:"id"`
	Scenario        string    `json:"scenario"`
	State           string    `json:"state"`
	Completed       int       `json:"completed"`
	Skipped         int       `json:"skipped"`
	Total           int       `json:"total"`
	Workers         int       `json:"workers"`
	Fraction        float64   `json:"fraction"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Run is a live run.
type Run struct {
	ID        string
	Scenario  string
	Reference *sensitivity.Result
	mc        *montecarlo.Run
}

// Status returns the current status of the run.
func (r *Run) Status() Status {
	st := r.mc.Poll()
	return Status{
		ID:              r.ID,
		Scenario:        r.Scenario,
		State:           st.State.String(),
		Completed:       st.Completed,
		Skipped:         st.Skipped,
		Total:           st.Total,
		Workers:         st.Workers,
		Fraction:        st.Fraction(),
		StartedAt:       st.StartedAt,
		FinishedAt:      st.FinishedAt,
		DurationSeconds: st.Duration().Seconds(),
	}
}

// Done is closed when the Monte Carlo workers have all exited.
func (r *Run) Done() <-chan struct{} { return r.mc.Done() }

// Result returns a snapshot of the run as it stands.
func (r *Run) Result() *results.Result {
	st := r.mc.Poll()
	return &results.Result{
		ID:         r.ID,
		Scenario:   r.Scenario,
		State:      st.State.String(),
		Completed:  st.Completed,
		Skipped:    st.Skipped,
		Total:      st.Total,
		Workers:    st.Workers,
		StartedAt:  st.StartedAt,
		FinishedAt: st.FinishedAt,
		Reference:  r.Reference,
		Grid:       r.mc.Grid(),
	}
}

func statusOf(r *results.Result) Status {
	st := Status{
		ID:         r.ID,
		Scenario:   r.Scenario,
		State:      r.State,
		Completed:  r.Completed,
		Skipped:    r.Skipped,
		Total:      r.Total,
		Workers:    r.Workers,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Total > 0 {
		st.Fraction = float64(r.Completed) / float64(r.Total)
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		st.DurationSeconds = r.FinishedAt.Sub(r.StartedAt).Seconds()
	}
	return st
}

// Manager starts runs and tracks them until they are archived.
type Manager struct {
	ctx    context.Context
	engine *montecarlo.Engine
	store  *results.Store
	config Config
	logger *slog.Logger
	wg     sync.WaitGroup

	mu     sync.Mutex
	live   map[string]*Run     // by run id
	active map[string]struct{} // scenario names with a run starting or running
}

// NewManager returns a Manager whose runs are cancelled when ctx is done.
func NewManager(ctx context.Context, engine *montecarlo.Engine, store *results.Store, config Config, logger *slog.Logger) *Manager {
	return &Manager{
		ctx:    ctx,
		engine: engine,
		store:  store,
		config: config,
		logger: logger,
		live:   make(map[string]*Run),
		active: make(map[string]struct{}),
	}
}

// Start builds sc, computes its reference tracks and launches the Monte
// Carlo run centred on the nominal impact. workers <= 0 uses the
// scenario's worker count, then the engine default.
func (m *Manager) Start(sc *scenario.Scenario, workers int) (*Run, error) {
	params, err := scenario.Build(sc)
	if err != nil {
		return nil, err
	}
	if m.config.MaxIterations > 0 && params.Iterations > m.config.MaxIterations {
		return nil, fmt.Errorf("%d > %d: %w", params.Iterations, m.config.MaxIterations, ErrTooManyIterations)
	}
	if workers <= 0 {
		workers = sc.Workers
	}
	if workers <= 0 {
		workers = m.engine.Config().Workers
	}

	name := sc.Name
	m.mu.Lock()
	if _, busy := m.active[name]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("%q: %w", name, ErrAlreadyRunning)
	}
	m.active[name] = struct{}{}
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		delete(m.active, name)
		m.mu.Unlock()
	}

	ref, err := sensitivity.Compute(m.ctx, params, workers)
	if err != nil {
		release()
		return nil, fmt.Errorf("reference tracks: %w", err)
	}

	mc, err := m.engine.Start(m.ctx, params, ref.Impact.XY(), workers)
	if err != nil {
		release()
		return nil, err
	}

	r := &Run{
		ID:        uuid.NewString(),
		Scenario:  name,
		Reference: ref,
		mc:        mc,
	}

	m.mu.Lock()
	m.live[r.ID] = r
	m.mu.Unlock()

	m.logger.Info("run started",
		"component", "runs",
		"id", r.ID,
		"scenario", name,
		"workers", workers,
		"iterations", params.Iterations,
	)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		<-r.Done()
		m.finalize(r)
		release()
	}()

	return r, nil
}

func (m *Manager) finalize(r *Run) {
	res := r.Result()
	if err := m.store.Put(res); err != nil {
		m.logger.Error("failed to archive run", "component", "runs", "id", r.ID, "error", err)
	}

	m.mu.Lock()
	delete(m.live, r.ID)
	m.mu.Unlock()

	m.logger.Info("run archived",
		"component", "runs",
		"id", r.ID,
		"state", res.State,
		"completed", res.Completed,
		"skipped", res.Skipped,
	)
}

// Lookup returns a live run.
func (m *Manager) Lookup(id string) (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.live[id]
	return r, ok
}

// Get returns the status of a live or archived run.
func (m *Manager) Get(id string) (Status, error) {
	if r, ok := m.Lookup(id); ok {
		return r.Status(), nil
	}
	res, err := m.store.Get(id)
	if err != nil {
		if errors.Is(err, results.ErrNotFound) {
			return Status{}, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return Status{}, err
	}
	return statusOf(res), nil
}

// Result returns the result of a run. Live runs return a snapshot of the
// grid so far.
func (m *Manager) Result(id string) (*results.Result, error) {
	if r, ok := m.Lookup(id); ok {
		return r.Result(), nil
	}
	res, err := m.store.Get(id)
	if err != nil {
		if errors.Is(err, results.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return res, nil
}

// Cancel requests cancellation of a live run. Cancelling a finished run is
// not an error.
func (m *Manager) Cancel(id string) error {
	if r, ok := m.Lookup(id); ok {
		r.mc.Cancel()
		m.logger.Info("run cancel requested", "component", "runs", "id", id)
		return nil
	}
	_, err := m.Get(id)
	return err
}

// List returns live runs followed by archived ones, each newest first.
func (m *Manager) List() ([]Status, error) {
	m.mu.Lock()
	live := make([]Status, 0, len(m.live))
	seen := make(map[string]bool, len(m.live))
	for id, r := range m.live {
		live = append(live, r.Status())
		seen[id] = true
	}
	m.mu.Unlock()
	sort.Slice(live, func(i, j int) bool {
		return live[i].StartedAt.After(live[j].StartedAt)
	})

	archived, err := m.store.List()
	if err != nil {
		return nil, err
	}
	out := live
	for _, s := range archived {
		if seen[s.ID] {
			continue
		}
		out = append(out, Status{
			ID:         s.ID,
			Scenario:   s.Scenario,
			State:      s.State,
			Completed:  s.Completed,
			Total:      s.Total,
			FinishedAt: s.FinishedAt,
		})
	}
	return out, nil
}

// Active returns the number of live runs.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Wait blocks until every started run has been archived.
func (m *Manager) Wait() {
	m.wg.Wait()
}
