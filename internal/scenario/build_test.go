package scenario

import (
	"errors"
	"math"
	"testing"

	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/profile"
	"github.com/star/impactsim/internal/stats"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"19:36:00", 70560, false},
		{"00:00:01", 1, false},
		{" 23:59:59 ", 86399, false},
		{"7pm", 0, true},
		{"25:00:00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildDefault(t *testing.T) {
	p, err := Build(Default())
	if err != nil {
		t.Fatal(err)
	}

	if p.Tower.X != 90345 || p.Tower.Y != 69908-100000 {
		t.Errorf("tower = %v, want (90345, -30092)", p.Tower)
	}
	if p.Iterations != 1_000_000 {
		t.Errorf("iterations = %d, want 1000000", p.Iterations)
	}
	if p.GridCols != 50 || p.GridRows != 50 || p.CellSize != 1000 || p.TimeStep != 1 {
		t.Errorf("grid %dx%d cell %v step %v", p.GridCols, p.GridRows, p.CellSize, p.TimeStep)
	}

	if !approx(p.Elapsed.Mean(), 207) || p.Elapsed.StdDev() != 35 {
		t.Errorf("elapsed = %v", p.Elapsed)
	}
	if !approx(p.Range.Mean(), 88896) || !approx(p.Range.StdDev(), 926) {
		t.Errorf("range = %v", p.Range)
	}
	wantBearing := (320 + 11.63) * math.Pi / 180
	if !approx(p.Bearing.Mean(), wantBearing) {
		t.Errorf("bearing mean = %v, want %v", p.Bearing.Mean(), wantBearing)
	}
	wantWindFrom := (230 + 11.63) * math.Pi / 180
	if !approx(p.WindHeading.Mean(), wantWindFrom) {
		t.Errorf("wind direction mean = %v, want %v", p.WindHeading.Mean(), wantWindFrom)
	}
	if !approx(p.SpeedStart.Mean(), 145*1852.0/3600) {
		t.Errorf("initial speed = %v", p.SpeedStart)
	}

	wantAlt := []profile.Point{{X: 0, Y: 2590.8}, {X: 99, Y: 2286}, {X: 149, Y: 1981.2}, {X: 207, Y: 1676.4}}
	got := p.Altitude.Points()
	if len(got) != len(wantAlt) {
		t.Fatalf("altitude points = %v", got)
	}
	for i := range got {
		if !approx(got[i].X, wantAlt[i].X) || !approx(got[i].Y, wantAlt[i].Y) {
			t.Errorf("altitude[%d] = %v, want %v", i, got[i], wantAlt[i])
		}
	}

	wind := p.Wind.Entries()
	if len(wind) != 2 || !approx(wind[0].X, 1828.8) || !approx(wind[1].X, 2438.4) {
		t.Errorf("wind levels = %v", wind)
	}
}

func TestBuildNominalLandsNearFix(t *testing.T) {
	p, err := Build(Default())
	if err != nil {
		t.Fatal(err)
	}
	impact, err := p.Nominal()
	if err != nil {
		t.Fatal(err)
	}
	in, _ := p.Inputs(montecarlo.VarNone, 0)
	start := in.Start()
	// About 3.5 minutes at 85-145 kn plus wind covers well under 20 km.
	if d := math.Hypot(impact.X-start.X, impact.Y-start.Y); d < 5000 || d > 20000 {
		t.Errorf("nominal track length %.0f m", d)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr error
	}{
		{"missing name", func(s *Scenario) { s.Name = "" }, ErrInvalid},
		{"bad fix time", func(s *Scenario) { s.FixTime = "noon" }, ErrInvalid},
		{"negative spread", func(s *Scenario) { s.HeadingDeg.StdDev = -1 }, stats.ErrNegativeStdDev},
		{"altitudes out of order", func(s *Scenario) {
			s.KnownAltitudes[1], s.KnownAltitudes[2] = s.KnownAltitudes[2], s.KnownAltitudes[1]
		}, profile.ErrOutOfOrder},
		{"wind out of order", func(s *Scenario) { s.Wind[0].AltitudeFt = 9000 }, profile.ErrOutOfOrder},
		{"no wind", func(s *Scenario) { s.Wind = nil }, ErrInvalid},
		{"zero cells", func(s *Scenario) { s.GridCells = 0 }, montecarlo.ErrInvalidGrid},
		{"huge exponent", func(s *Scenario) { s.IterationsExp = 12 }, ErrInvalid},
		{"zero step", func(s *Scenario) { s.TimeStep = 0 }, montecarlo.ErrInvalidParameters},
		{"step too small to finish", func(s *Scenario) { s.TimeStep = 1e-14 }, montecarlo.ErrInvalidParameters},
		{"step needs too many steps", func(s *Scenario) { s.TimeStep = 1e-9 }, montecarlo.ErrInvalidParameters},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := Default()
			tt.mutate(sc)
			_, err := Build(sc)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestCrashTimePastMidnight(t *testing.T) {
	sc := Default()
	sc.FixTime = "23:59:00"
	sc.CrashTime.Mean = "00:02:00"
	sc.KnownAltitudes = []AltitudeFix{{Time: "23:59:00", AltitudeFt: 8500}, {Time: "00:01:00", AltitudeFt: 6000}}
	p, err := Build(sc)
	if err != nil {
		t.Fatal(err)
	}
	if p.Elapsed.Mean() != 180 {
		t.Errorf("elapsed = %v, want 180", p.Elapsed.Mean())
	}
}

func TestIterationsOverride(t *testing.T) {
	sc := Default()
	sc.Iterations = 1234
	n, err := sc.TotalIterations()
	if err != nil || n != 1234 {
		t.Errorf("TotalIterations = %d, %v", n, err)
	}
	sc.Iterations = 0
	sc.IterationsExp = 3
	if n, _ := sc.TotalIterations(); n != 1000 {
		t.Errorf("10^3 = %d", n)
	}
}
