package sensitivity

import (
	"context"
	"strings"
	"testing"

	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/scenario"
	"github.com/star/impactsim/internal/trajectory"
)

func defaultParams(t *testing.T) *montecarlo.Parameters {
	t.Helper()
	p, err := scenario.Build(scenario.Default())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

type recorder struct {
	calls []string
	rings map[string]trajectory.Track
}

func (r *recorder) Track(name string, track trajectory.Track) error {
	r.calls = append(r.calls, "track:"+name)
	return nil
}

func (r *recorder) Point(name string, p trajectory.Point3) error {
	r.calls = append(r.calls, "point:"+name)
	return nil
}

func (r *recorder) Polygon(name string, ring trajectory.Track) error {
	r.calls = append(r.calls, "polygon:"+name)
	if r.rings == nil {
		r.rings = make(map[string]trajectory.Track)
	}
	r.rings[name] = ring
	return nil
}

func TestComputeBands(t *testing.T) {
	p := defaultParams(t)
	res, err := Compute(context.Background(), p, 4)
	if err != nil {
		t.Fatal(err)
	}

	nominal, err := p.Nominal()
	if err != nil {
		t.Fatal(err)
	}
	if res.Impact != nominal {
		t.Errorf("impact = %v, want nominal %v", res.Impact, nominal)
	}
	if res.Nominal.Last() != nominal {
		t.Errorf("track end = %v, want %v", res.Nominal.Last(), nominal)
	}

	if len(res.Bands) != 2*len(montecarlo.Variables) {
		t.Fatalf("bands = %d, want %d", len(res.Bands), 2*len(montecarlo.Variables))
	}
	for _, b := range res.Bands {
		if b.Error != "" {
			t.Errorf("%s failed: %s", b.Name, b.Error)
			continue
		}
		if len(b.Ring) < len(res.Nominal) {
			t.Errorf("%s ring shorter than nominal track", b.Name)
		}
		if b.Ring[0] != res.Nominal[0] {
			t.Errorf("%s ring does not start on the nominal track", b.Name)
		}
	}
	if res.Bands[0].Name != "fix range +1σ" || res.Bands[1].Name != "fix range -1σ" {
		t.Errorf("first bands = %q, %q", res.Bands[0].Name, res.Bands[1].Name)
	}
}

func TestPerturbedImpactsDiffer(t *testing.T) {
	res, err := Compute(context.Background(), defaultParams(t), 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range res.Bands {
		if b.Impact == res.Impact {
			t.Errorf("%s impact equals nominal", b.Name)
		}
	}
}

func TestEmitOrder(t *testing.T) {
	res, err := Compute(context.Background(), defaultParams(t), 2)
	if err != nil {
		t.Fatal(err)
	}
	var rec recorder
	if err := res.Emit(&rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 2+2*len(montecarlo.Variables) {
		t.Fatalf("calls = %d: %v", len(rec.calls), rec.calls)
	}
	if rec.calls[0] != "track:Nominal track" || rec.calls[1] != "point:Nominal impact" {
		t.Errorf("first calls = %v", rec.calls[:2])
	}
	if !strings.HasPrefix(rec.calls[2], "polygon:fix range") {
		t.Errorf("third call = %q", rec.calls[2])
	}
}

func TestFailedBandSkipped(t *testing.T) {
	// One sigma early puts the impact before the fix.
	sc := scenario.Default()
	sc.CrashTime.StdDev = 300
	p, err := scenario.Build(sc)
	if err != nil {
		t.Fatal(err)
	}

	res, err := Compute(context.Background(), p, 2)
	if err != nil {
		t.Fatal(err)
	}
	var failed int
	for _, b := range res.Bands {
		if b.Error != "" {
			failed++
			if b.Variable != montecarlo.VarElapsed || b.Sigma != -1 {
				t.Errorf("unexpected failure in %s: %s", b.Name, b.Error)
			}
		}
	}
	if failed != 1 {
		t.Errorf("failed bands = %d, want 1", failed)
	}

	var rec recorder
	res.Emit(&rec)
	if _, ok := rec.rings["time to impact -1σ"]; ok {
		t.Error("failed band was emitted")
	}
}

func TestComputeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Compute(ctx, defaultParams(t), 1); err == nil {
		t.Error("expected error from cancelled context")
	}
}
