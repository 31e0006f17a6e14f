package montecarlo

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/star/impactsim/internal/profile"
	"github.com/star/impactsim/internal/stats"
	"github.com/star/impactsim/internal/trajectory"
)

// ErrInvalidParameters wraps every parameter validation failure.
var ErrInvalidParameters = errors.New("invalid simulation parameters")

// Variable names one uncertain simulation input.
type Variable int

const (
	VarNone Variable = iota
	VarRange
	VarBearing
	VarElapsed
	VarHeading
	VarSpeedStart
	VarSpeedFinish
	VarBankRate
	VarBankAccel
	VarWindHeading
	VarWindSpeed
)

// Variables lists every uncertain input in display order.
var Variables = []Variable{
	VarRange, VarBearing, VarElapsed, VarHeading, VarSpeedStart,
	VarSpeedFinish, VarBankRate, VarBankAccel, VarWindHeading, VarWindSpeed,
}

var variableNames = map[Variable]string{
	VarNone:        "nominal",
	VarRange:       "fix range",
	VarBearing:     "fix bearing",
	VarElapsed:     "time to impact",
	VarHeading:     "heading",
	VarSpeedStart:  "initial speed",
	VarSpeedFinish: "final speed",
	VarBankRate:    "bank rate",
	VarBankAccel:   "bank acceleration",
	VarWindHeading: "wind direction",
	VarWindSpeed:   "wind speed",
}

func (v Variable) String() string {
	if s, ok := variableNames[v]; ok {
		return s
	}
	return fmt.Sprintf("variable(%d)", int(v))
}

// Parameters is the complete input of one run. It is read-only once a run
// starts and is shared by every worker without locking.
type Parameters struct {
	Tower    trajectory.Point2
	TimeStep float64
	Altitude *profile.Table // time since fix → altitude

	Range       stats.Distribution
	Bearing     stats.Distribution
	Elapsed     stats.Distribution
	Heading     stats.Distribution
	SpeedStart  stats.Distribution
	SpeedFinish stats.Distribution
	BankRate    stats.Distribution
	BankAccel   stats.Distribution
	WindHeading stats.Distribution
	Wind        profile.DistributionSet // altitude → wind speed

	Iterations int
	GridCols   int
	GridRows   int
	CellSize   float64
	Seed       uint64 // 0 picks a time-based seed
}

// Validate checks the construction-time invariants.
func (p *Parameters) Validate() error {
	switch {
	case !(p.TimeStep > 0):
		return fmt.Errorf("time step %v: %w", p.TimeStep, ErrInvalidParameters)
	case p.Altitude == nil || p.Altitude.Len() == 0:
		return fmt.Errorf("altitude profile is empty: %w", ErrInvalidParameters)
	case p.Wind.Len() == 0:
		return fmt.Errorf("wind profile is empty: %w", ErrInvalidParameters)
	case !(p.Elapsed.Mean() > 0):
		return fmt.Errorf("time to impact %v: %w", p.Elapsed.Mean(), ErrInvalidParameters)
	case p.Elapsed.Mean()/p.TimeStep > trajectory.MaxSteps:
		return fmt.Errorf("time step %v needs more than %g steps for %v s: %w",
			p.TimeStep, trajectory.MaxSteps, p.Elapsed.Mean(), ErrInvalidParameters)
	case p.Iterations <= 0:
		return fmt.Errorf("iterations %d: %w", p.Iterations, ErrInvalidParameters)
	}
	if err := p.Altitude.Validate(); err != nil {
		return fmt.Errorf("altitude profile: %w", err)
	}
	if _, err := p.Wind.Mean(); err != nil {
		return fmt.Errorf("wind profile: %w", err)
	}
	if _, err := NewGrid(p.GridCols, p.GridRows, p.CellSize, trajectory.Point2{}); err != nil {
		return err
	}
	return nil
}

// Inputs resolves the parameters deterministically: every input takes its
// mean except v, which is offset by k standard deviations.
func (p *Parameters) Inputs(v Variable, k float64) (*trajectory.Inputs, error) {
	at := func(d stats.Distribution, this Variable) float64 {
		if v == this {
			return d.Offset(k)
		}
		return d.Mean()
	}

	wk := 0.0
	if v == VarWindSpeed {
		wk = k
	}
	wind, err := p.Wind.OffsetMean(wk)
	if err != nil {
		return nil, fmt.Errorf("wind profile: %w", err)
	}

	elapsed := at(p.Elapsed, VarElapsed)
	speed, err := profile.NewTable(
		profile.Point{X: 0, Y: at(p.SpeedStart, VarSpeedStart)},
		profile.Point{X: elapsed, Y: at(p.SpeedFinish, VarSpeedFinish)},
	)
	if err != nil {
		return nil, fmt.Errorf("airspeed profile: %w", err)
	}

	return &trajectory.Inputs{
		Tower:       p.Tower,
		Range:       at(p.Range, VarRange),
		Bearing:     at(p.Bearing, VarBearing),
		TimeStep:    p.TimeStep,
		Elapsed:     elapsed,
		Heading:     at(p.Heading, VarHeading),
		BankRate:    at(p.BankRate, VarBankRate),
		BankAccel:   at(p.BankAccel, VarBankAccel),
		WindHeading: at(p.WindHeading, VarWindHeading),
		Altitude:    p.Altitude,
		WindSpeed:   wind,
		Airspeed:    speed,
	}, nil
}

// Nominal integrates the all-means trajectory and returns its impact point.
func (p *Parameters) Nominal() (trajectory.Point3, error) {
	in, err := p.Inputs(VarNone, 0)
	if err != nil {
		return trajectory.Point3{}, err
	}
	return trajectory.Integrate(in, nil)
}

// sampler owns the per-worker mutable tables re-sampled every iteration.
type sampler struct {
	params *Parameters
	src    rand.Source
	in     trajectory.Inputs
}

func newSampler(p *Parameters, src rand.Source) (*sampler, error) {
	in, err := p.Inputs(VarNone, 0)
	if err != nil {
		return nil, err
	}
	return &sampler{params: p, src: src, in: *in}, nil
}

// sample draws a fresh value for every input.
func (s *sampler) sample() error {
	p, src, in := s.params, s.src, &s.in

	in.Range = p.Range.Sample(src)
	in.Bearing = p.Bearing.Sample(src)
	in.Elapsed = p.Elapsed.Sample(src)
	in.Heading = p.Heading.Sample(src)
	in.BankRate = p.BankRate.Sample(src)
	in.BankAccel = p.BankAccel.Sample(src)
	in.WindHeading = p.WindHeading.Sample(src)

	in.Airspeed.SetY(0, p.SpeedStart.Sample(src))
	in.Airspeed.SetX(1, in.Elapsed)
	in.Airspeed.SetY(1, p.SpeedFinish.Sample(src))
	if err := in.Airspeed.Validate(); err != nil {
		return fmt.Errorf("airspeed profile: %w", err)
	}

	return p.Wind.SampleInto(in.WindSpeed, src)
}

// iterate samples and integrates once. Panics are converted to errors so a
// single bad draw cannot take down a worker.
func (s *sampler) iterate() (impact trajectory.Point3, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("iteration panicked: %v", r)
		}
	}()
	if err := s.sample(); err != nil {
		return trajectory.Point3{}, err
	}
	return trajectory.Integrate(&s.in, nil)
}
