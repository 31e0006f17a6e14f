// Command impactcli runs one scenario to completion and writes the
// reference tracks, the impact grid as KML, a heat map and a result archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/star/impactsim/internal/geodesy"
	"github.com/star/impactsim/internal/heatmap"
	"github.com/star/impactsim/internal/kml"
	"github.com/star/impactsim/internal/logging"
	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/results"
	"github.com/star/impactsim/internal/scenario"
	"github.com/star/impactsim/internal/sensitivity"
)

func main() {
	cfg := NewConfig()
	fs := flag.NewFlagSet("impactcli", flag.ExitOnError)
	cfg.Bind(fs)
	fs.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, stderr io.Writer) error {
	logger, closer, err := logging.New(logging.Config{Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	defer closer.Close()

	sc := scenario.Default()
	if cfg.Scenario != "" {
		if sc, err = scenario.ReadFile(cfg.Scenario); err != nil {
			return err
		}
	}
	if cfg.Iterations > 0 {
		sc.Iterations = cfg.Iterations
	}
	if cfg.Seed != 0 {
		sc.Seed = cfg.Seed
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = sc.Workers
	}

	params, err := scenario.Build(sc)
	if err != nil {
		return err
	}
	conv, err := geodesy.NewConverter(geodesy.DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return err
	}

	ref, err := sensitivity.Compute(ctx, params, workers)
	if err != nil {
		return fmt.Errorf("reference tracks: %w", err)
	}
	for _, b := range ref.Bands {
		if b.Error != "" {
			fmt.Fprintf(stderr, "skipped %s: %s\n", b.Name, b.Error)
		}
	}
	fmt.Fprintf(stderr, "nominal impact: %.0f E %.0f N (grid)\n", ref.Impact.X, ref.Impact.Y)

	tracks := kml.NewWriter(conv, sc.Name+" reference tracks")
	if err := ref.Emit(tracks); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(cfg.OutDir, "tracks.kml"), tracks.Encode); err != nil {
		return err
	}
	if cfg.TracksOnly {
		return nil
	}

	engine := montecarlo.NewEngine(montecarlo.Config{Workers: workers, BatchSize: cfg.BatchSize}, logger)
	mc, err := engine.Start(ctx, params, ref.Impact.XY(), 0)
	if err != nil {
		return err
	}

	st := waitWithProgress(mc, cfg.Progress, stderr)
	fmt.Fprintf(stderr, "%s: %d completed, %d skipped of %d in %s\n",
		st.State, st.Completed, st.Skipped, st.Total, st.Duration().Round(time.Millisecond))

	grid := mc.Grid()
	res := &results.Result{
		ID:         uuid.NewString(),
		Scenario:   sc.Name,
		State:      st.State.String(),
		Completed:  st.Completed,
		Skipped:    st.Skipped,
		Total:      st.Total,
		Workers:    st.Workers,
		StartedAt:  st.StartedAt,
		FinishedAt: st.FinishedAt,
		Reference:  ref,
		Grid:       grid,
	}

	full := kml.NewWriter(conv, sc.Name+" impact grid")
	if err := ref.Emit(full); err != nil {
		return err
	}
	if err := full.WriteGrid(grid); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(cfg.OutDir, "grid.kml"), full.Encode); err != nil {
		return err
	}

	err = writeFile(filepath.Join(cfg.OutDir, "heatmap.png"), func(w io.Writer) error {
		return heatmap.Render(w, grid, heatmap.Options{
			Title:  sc.Name,
			Track:  ref.Nominal,
			Impact: &ref.Impact,
		})
	})
	if err != nil {
		return err
	}

	archive := fmt.Sprintf("run_%d_%s.msgpack.zst", res.FinishedAt.Unix(), res.ID)
	if err := writeFile(filepath.Join(cfg.OutDir, archive), func(w io.Writer) error {
		return results.Encode(w, res)
	}); err != nil {
		return err
	}

	fmt.Fprintf(stderr, "wrote tracks.kml, grid.kml, heatmap.png and %s to %s\n", archive, cfg.OutDir)
	return nil
}

// waitWithProgress blocks until the run stops, reporting progress every
// interval. Cancellation of the run follows the context passed to Start.
func waitWithProgress(mc *montecarlo.Run, interval time.Duration, w io.Writer) montecarlo.Status {
	if interval <= 0 {
		st, _ := mc.Wait(context.Background())
		return st
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	printed := false
	for {
		select {
		case <-mc.Done():
			if printed {
				fmt.Fprintln(w)
			}
			return mc.Poll()
		case <-ticker.C:
			st := mc.Poll()
			fmt.Fprintf(w, "\r%6.2f%% %d/%d", 100*st.Fraction(), st.Completed, st.Total)
			if st.Skipped > 0 {
				fmt.Fprintf(w, " (%d skipped)", st.Skipped)
			}
			printed = true
		}
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
