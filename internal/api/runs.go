package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"gonum.org/v1/plot/vg"

	"github.com/star/impactsim/internal/geodesy"
	"github.com/star/impactsim/internal/heatmap"
	"github.com/star/impactsim/internal/httputil"
	"github.com/star/impactsim/internal/kml"
	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/runs"
	"github.com/star/impactsim/internal/scenario"
	"github.com/star/impactsim/internal/trajectory"
)

// runRequest starts a run of a stored scenario, or of an inline definition
// overlaid on the built-in data set.
type runRequest struct {
	Scenario   string          `json:"scenario"`
	Definition json.RawMessage `json:"definition,omitempty"`
	Workers    int             `json:"workers,omitempty"`
	Iterations int             `json:"iterations,omitempty"`
	Seed       uint64          `json:"seed,omitempty"`
}

func (req runRequest) resolve(store *scenario.Store) (*scenario.Scenario, int, error) {
	if len(req.Definition) > 0 {
		sc, err := scenario.Decode(req.Definition)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		sc.Name = req.Scenario
		if sc.Name == "" {
			sc.Name = "inline"
		}
		return sc, 0, nil
	}

	name := req.Scenario
	if name == "" {
		name = scenario.DefaultName
	}
	sc, ok := store.Get(name)
	if !ok {
		return nil, http.StatusNotFound, errors.New("scenario not found")
	}
	return sc, 0, nil
}

// runErrorStatus maps a run start error onto an HTTP status.
func runErrorStatus(err error) int {
	switch {
	case errors.Is(err, runs.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, runs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, runs.ErrTooManyIterations),
		errors.Is(err, scenario.ErrInvalid),
		errors.Is(err, montecarlo.ErrTooFewIterations),
		errors.Is(err, montecarlo.ErrInvalidParameters),
		errors.Is(err, montecarlo.ErrInvalidGrid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func startRunHandler(logger *slog.Logger, store *scenario.Store, manager *runs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxScenarioBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Workers < 0 || req.Iterations < 0 {
			httputil.WriteError(w, http.StatusBadRequest, "workers and iterations must not be negative")
			return
		}

		sc, status, err := req.resolve(store)
		if err != nil {
			httputil.WriteError(w, status, err.Error())
			return
		}
		if req.Iterations > 0 {
			sc.Iterations = req.Iterations
		}
		if req.Seed != 0 {
			sc.Seed = req.Seed
		}

		run, err := manager.Start(sc, req.Workers)
		if err != nil {
			status := runErrorStatus(err)
			if status == http.StatusInternalServerError {
				logger.Error("run start failed", "component", "api", "scenario", sc.Name, "error", err)
			}
			httputil.WriteError(w, status, err.Error())
			return
		}

		w.Header().Set("Location", "/api/v1/runs/"+run.ID)
		httputil.WriteJSON(w, http.StatusAccepted, run.Status())
	}
}

func listRunsHandler(logger *slog.Logger, manager *runs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := manager.List()
		if err != nil {
			logger.Error("listing runs failed", "component", "api", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"runs":   list,
			"active": manager.Active(),
		})
	}
}

func getRunHandler(logger *slog.Logger, manager *runs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := manager.Get(r.PathValue("id"))
		if err != nil {
			writeLookupError(w, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, st)
	}
}

func cancelRunHandler(logger *slog.Logger, manager *runs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := manager.Cancel(id); err != nil {
			writeLookupError(w, logger, err)
			return
		}
		st, err := manager.Get(id)
		if err != nil {
			writeLookupError(w, logger, err)
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, st)
	}
}

func writeLookupError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if errors.Is(err, runs.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "run not found")
		return
	}
	logger.Error("run lookup failed", "component", "api", "error", err)
	httputil.WriteError(w, http.StatusInternalServerError, "failed to load run")
}

// gridResponse is the JSON view of a run's grid.
type gridResponse struct {
	ID      string             `json:"id"`
	State   string             `json:"state"`
	Impact  *trajectory.Point3 `json:"nominal_impact,omitempty"`
	Max     float64            `json:"max"`
	Sum     float64            `json:"sum"`
	Buckets []int              `json:"buckets"`
	*montecarlo.Grid
}

func gridHandler(logger *slog.Logger, manager *runs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := manager.Result(r.PathValue("id"))
		if err != nil {
			writeLookupError(w, logger, err)
			return
		}
		if res.Grid == nil {
			httputil.WriteError(w, http.StatusNotFound, "run has no grid")
			return
		}

		g := res.Grid
		peak := g.Max()
		buckets := make([]int, len(g.Cells))
		for row := range g.Rows {
			for col := range g.Cols {
				buckets[col+row*g.Cols] = int(g.Classify(col, row, peak))
			}
		}
		resp := gridResponse{
			ID:      res.ID,
			State:   res.State,
			Max:     peak,
			Sum:     g.Sum(),
			Buckets: buckets,
			Grid:    g,
		}
		if res.Reference != nil {
			resp.Impact = &res.Reference.Impact
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

func runKMLHandler(logger *slog.Logger, manager *runs.Manager, conv *geodesy.Converter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		res, err := manager.Result(id)
		if err != nil {
			writeLookupError(w, logger, err)
			return
		}

		kw := kml.NewWriter(conv, res.Scenario+" "+id)
		if res.Reference != nil {
			if err := res.Reference.Emit(kw); err != nil {
				logger.Error("kml tracks failed", "component", "api", "run_id", id, "error", err)
				httputil.WriteError(w, http.StatusInternalServerError, "failed to build kml")
				return
			}
		}
		if res.Grid != nil {
			if err := kw.WriteGrid(res.Grid); err != nil {
				logger.Error("kml grid failed", "component", "api", "run_id", id, "error", err)
				httputil.WriteError(w, http.StatusInternalServerError, "failed to build kml")
				return
			}
		}
		writeKML(w, logger, kw, "run-"+id+".kml")
	}
}

// heatmapHandler renders the run grid as a PNG.
// GET /api/v1/runs/{id}/heatmap.png?size=8 (inches, 2-20)
func heatmapHandler(logger *slog.Logger, manager *runs.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		size := 8
		if v := r.URL.Query().Get("size"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 2 || n > 20 {
				httputil.WriteError(w, http.StatusBadRequest, "invalid size parameter, must be 2-20")
				return
			}
			size = n
		}

		id := r.PathValue("id")
		res, err := manager.Result(id)
		if err != nil {
			writeLookupError(w, logger, err)
			return
		}
		if res.Grid == nil {
			httputil.WriteError(w, http.StatusNotFound, "run has no grid")
			return
		}

		opts := heatmap.Options{
			Title:  res.Scenario,
			Width:  vg.Length(size) * vg.Inch,
			Height: vg.Length(size) * vg.Inch,
		}
		if res.Reference != nil {
			opts.Track = res.Reference.Nominal
			opts.Impact = &res.Reference.Impact
		}

		var buf bytes.Buffer
		if err := heatmap.Render(&buf, res.Grid, opts); err != nil {
			logger.Error("heatmap render failed", "component", "api", "run_id", id, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to render heatmap")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		buf.WriteTo(w)
	}
}
