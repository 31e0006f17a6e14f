// Package sensitivity computes the nominal trajectory and, for every
// uncertain input, the trajectories one standard deviation either side of
// its mean with all other inputs held at their means.
package sensitivity

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/star/impactsim/internal/metrics"
	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/trajectory"
)

// Sink receives the reference geometry in emission order.
type Sink interface {
	Track(name string, track trajectory.Track) error
	Point(name string, p trajectory.Point3) error
	Polygon(name string, ring trajectory.Track) error
}

// Band is the area swept between the nominal track and one perturbed track.
type Band struct {
	Variable montecarlo.Variable `json:"-"`
	Name     string              `json:"name"`
	Sigma    float64             `json:"sigma"`
	Impact   trajectory.Point3   `json:"impact"`
	// Ring is the nominal track followed by the perturbed track reversed.
	Ring  trajectory.Track `json:"-"`
	Error string           `json:"error,omitempty"`
}

// Result holds the nominal trajectory and the one-sigma bands.
type Result struct {
	Nominal trajectory.Track  `json:"-"`
	Impact  trajectory.Point3 `json:"impact"`
	Bands   []Band            `json:"bands"`
}

// Compute runs the nominal trajectory and 2×len(montecarlo.Variables)
// perturbed ones, at most workers at a time. workers <= 0 uses NumCPU.
// Perturbed tracks that fail are reported in their Band; a failing nominal
// track fails the whole pass.
func Compute(ctx context.Context, params *montecarlo.Parameters, workers int) (*Result, error) {
	start := time.Now()
	defer func() { metrics.ObserveSensitivity(time.Since(start)) }()

	in, err := params.Inputs(montecarlo.VarNone, 0)
	if err != nil {
		return nil, fmt.Errorf("nominal inputs: %w", err)
	}
	var nominal trajectory.Track
	impact, err := trajectory.Integrate(in, &nominal)
	if err != nil {
		return nil, fmt.Errorf("nominal track: %w", err)
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	bands := make([]Band, 0, 2*len(montecarlo.Variables))
	for _, v := range montecarlo.Variables {
		for _, k := range []float64{1, -1} {
			bands = append(bands, Band{Variable: v, Name: bandName(v, k), Sigma: k})
		}
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range bands {
		b := &bands[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				b.Error = "cancelled"
				return nil
			}
			perturbed, p, err := perturb(params, b.Variable, b.Sigma)
			if err != nil {
				b.Error = err.Error()
				return nil
			}
			b.Impact = p
			b.Ring = nominal.Concat(perturbed.Reversed())
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Result{Nominal: nominal, Impact: impact, Bands: bands}, nil
}

func perturb(params *montecarlo.Parameters, v montecarlo.Variable, k float64) (trajectory.Track, trajectory.Point3, error) {
	in, err := params.Inputs(v, k)
	if err != nil {
		return nil, trajectory.Point3{}, err
	}
	var track trajectory.Track
	p, err := trajectory.Integrate(in, &track)
	if err != nil {
		return nil, trajectory.Point3{}, err
	}
	return track, p, nil
}

func bandName(v montecarlo.Variable, k float64) string {
	if k >= 0 {
		return fmt.Sprintf("%s +%gσ", v, k)
	}
	return fmt.Sprintf("%s %gσ", v, k)
}

// Emit hands the geometry to sink: the nominal track, the nominal impact,
// then every band that was computed, in variable order.
func (r *Result) Emit(sink Sink) error {
	if err := sink.Track("Nominal track", r.Nominal); err != nil {
		return err
	}
	if err := sink.Point("Nominal impact", r.Impact); err != nil {
		return err
	}
	for _, b := range r.Bands {
		if b.Error != "" {
			continue
		}
		if err := sink.Polygon(b.Name, b.Ring); err != nil {
			return err
		}
	}
	return nil
}
