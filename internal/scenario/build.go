package scenario

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/star/impactsim/internal/geodesy"
	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/profile"
	"github.com/star/impactsim/internal/stats"
	"github.com/star/impactsim/internal/trajectory"
)

// ErrInvalid wraps every scenario validation failure.
var ErrInvalid = errors.New("invalid scenario")

const (
	maxIterationsExp = 9
	secondsPerDay    = 24 * 60 * 60
)

// ParseClock parses "HH:MM:SS" into seconds after midnight.
func ParseClock(s string) (float64, error) {
	t, err := time.Parse("15:04:05", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("clock time %q: %w", s, err)
	}
	return float64(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
}

// sinceFix returns the seconds from the fix to clock time s, wrapping past
// midnight.
func sinceFix(fix float64, s string) (float64, error) {
	t, err := ParseClock(s)
	if err != nil {
		return 0, err
	}
	d := t - fix
	if d < 0 {
		d += secondsPerDay
	}
	return d, nil
}

// TotalIterations returns the requested iteration count.
func (sc *Scenario) TotalIterations() (int, error) {
	if sc.Iterations > 0 {
		return sc.Iterations, nil
	}
	if sc.IterationsExp < 0 || sc.IterationsExp > maxIterationsExp {
		return 0, fmt.Errorf("iterations exponent %d outside 0..%d: %w", sc.IterationsExp, maxIterationsExp, ErrInvalid)
	}
	return int(math.Round(math.Pow(10, float64(sc.IterationsExp)))), nil
}

// Validate checks the scenario without building parameters.
func (sc *Scenario) Validate() error {
	_, err := Build(sc)
	return err
}

// Build converts the scenario into simulation parameters in grid metres,
// seconds and radians.
func Build(sc *Scenario) (*montecarlo.Parameters, error) {
	if strings.TrimSpace(sc.Name) == "" {
		return nil, fmt.Errorf("missing name: %w", ErrInvalid)
	}
	if len(sc.KnownAltitudes) == 0 {
		return nil, fmt.Errorf("no known altitudes: %w", ErrInvalid)
	}
	if len(sc.Wind) == 0 {
		return nil, fmt.Errorf("no wind levels: %w", ErrInvalid)
	}

	fix, err := ParseClock(sc.FixTime)
	if err != nil {
		return nil, fmt.Errorf("fix time: %w", errors.Join(err, ErrInvalid))
	}

	alt := &profile.Table{}
	for _, k := range sc.KnownAltitudes {
		t, err := sinceFix(fix, k.Time)
		if err != nil {
			return nil, fmt.Errorf("known altitude: %w", errors.Join(err, ErrInvalid))
		}
		if err := alt.AddPoint(t, geodesy.FeetToMetres(k.AltitudeFt)); err != nil {
			return nil, fmt.Errorf("known altitude at %s: %w", k.Time, errors.Join(err, ErrInvalid))
		}
	}

	crash, err := sinceFix(fix, sc.CrashTime.Mean)
	if err != nil {
		return nil, fmt.Errorf("crash time: %w", errors.Join(err, ErrInvalid))
	}

	iterations, err := sc.TotalIterations()
	if err != nil {
		return nil, err
	}

	var b builder
	mag := sc.GridToMagnetic
	p := &montecarlo.Parameters{
		Tower: trajectory.Point2{
			X: sc.TowerEasting,
			Y: sc.TowerNorthing + geodesy.SquareNorthingAdjustment(sc.TowerSquare),
		},
		TimeStep:    sc.TimeStep,
		Altitude:    alt,
		Range:       b.dist("fix range", geodesy.NMToMetres(sc.FixRangeNM.Mean), geodesy.NMToMetres(sc.FixRangeNM.StdDev)),
		Bearing:     b.dist("fix bearing", geodesy.DegToRad(sc.FixBearingDeg.Mean+mag), geodesy.DegToRad(sc.FixBearingDeg.StdDev)),
		Elapsed:     b.dist("crash time", crash, sc.CrashTime.StdDev),
		Heading:     b.dist("heading", geodesy.DegToRad(sc.HeadingDeg.Mean+mag), geodesy.DegToRad(sc.HeadingDeg.StdDev)),
		SpeedStart:  b.dist("initial speed", geodesy.KnotsToMPS(sc.SpeedStartKn.Mean), geodesy.KnotsToMPS(sc.SpeedStartKn.StdDev)),
		SpeedFinish: b.dist("final speed", geodesy.KnotsToMPS(sc.SpeedFinishKn.Mean), geodesy.KnotsToMPS(sc.SpeedFinishKn.StdDev)),
		BankRate:    b.dist("bank rate", geodesy.DegToRad(sc.BankRateDeg.Mean), geodesy.DegToRad(sc.BankRateDeg.StdDev)),
		BankAccel:   b.dist("bank acceleration", geodesy.DegToRad(sc.BankAccelDeg.Mean), geodesy.DegToRad(sc.BankAccelDeg.StdDev)),
		WindHeading: b.dist("wind direction", geodesy.DegToRad(sc.WindFromDeg.Mean+mag), geodesy.DegToRad(sc.WindFromDeg.StdDev)),
		Iterations:  iterations,
		GridCols:    sc.GridCells,
		GridRows:    sc.GridCells,
		CellSize:    sc.CellSize,
		Seed:        sc.Seed,
	}
	for _, w := range sc.Wind {
		p.Wind.Add(geodesy.FeetToMetres(w.AltitudeFt),
			b.dist(fmt.Sprintf("wind at %gft", w.AltitudeFt), geodesy.KnotsToMPS(w.SpeedKn.Mean), geodesy.KnotsToMPS(w.SpeedKn.StdDev)))
	}
	if b.err != nil {
		return nil, errors.Join(b.err, ErrInvalid)
	}

	if err := p.Validate(); err != nil {
		return nil, errors.Join(err, ErrInvalid)
	}
	return p, nil
}

// builder collects the first distribution error.
type builder struct {
	err error
}

func (b *builder) dist(name string, mean, std float64) stats.Distribution {
	d, err := stats.NewDistribution(mean, std)
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("%s: %w", name, err)
	}
	return d
}
