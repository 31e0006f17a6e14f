// Package trajectory implements the fixed-step forward simulation of an
// aircraft from a range/bearing fix to its impact point.
//
// Angles are radians measured clockwise from grid north. Internally headings
// are converted with hdg = π/2 − heading to the x/y frame where +x is east
// and +y is grid north.
package trajectory

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/star/impactsim/internal/profile"
)

// MaxSteps bounds the integration steps of one trajectory. Below it the
// clock always advances: t never grows large enough for t+step to round
// back to t.
const MaxSteps = 1e7

var (
	// ErrNonFinite is returned when the simulated position is NaN or infinite.
	ErrNonFinite = errors.New("trajectory produced a non-finite position")
	// ErrInvalidStep is returned for a non-positive time step.
	ErrInvalidStep = errors.New("time step must be positive")
	// ErrMissingProfile is returned when a profile table is nil.
	ErrMissingProfile = errors.New("profile table is nil")
	// ErrTooManySteps is returned when Elapsed/TimeStep exceeds MaxSteps.
	ErrTooManySteps = errors.New("trajectory needs too many steps")
)

// Inputs is one fully realized set of simulation inputs.
type Inputs struct {
	Tower       Point2  // reference point of the fix
	Range       float64 // metres from the tower
	Bearing     float64 // bearing of the aircraft from the tower
	TimeStep    float64 // seconds
	Elapsed     float64 // seconds from the fix to impact
	Heading     float64 // initial aircraft heading
	BankRate    float64 // initial turn rate, rad/s
	BankAccel   float64 // turn-rate change, rad/s²
	WindHeading float64 // direction the wind blows from

	Altitude  *profile.Table // time → altitude (m)
	WindSpeed *profile.Table // altitude → wind speed (m/s)
	Airspeed  *profile.Table // time → airspeed (m/s)
}

// Start returns the position of the fix.
func (in *Inputs) Start() Point3 {
	return Point3{
		X: in.Tower.X + in.Range*math.Sin(in.Bearing),
		Y: in.Tower.Y + in.Range*math.Cos(in.Bearing),
	}
}

func (in *Inputs) validate() error {
	if in.Altitude == nil || in.WindSpeed == nil || in.Airspeed == nil {
		return ErrMissingProfile
	}
	if in.Elapsed > 0 && !(in.TimeStep > 0) {
		return fmt.Errorf("step %v: %w", in.TimeStep, ErrInvalidStep)
	}
	if in.Elapsed/in.TimeStep > MaxSteps {
		return fmt.Errorf("%v s at step %v: %w", in.Elapsed, in.TimeStep, ErrTooManySteps)
	}
	return nil
}

// Integrate runs the simulation and returns the impact position. When track
// is non-nil it is reset and receives every intermediate position.
func Integrate(in *Inputs, track *Track) (Point3, error) {
	if err := in.validate(); err != nil {
		return Point3{}, err
	}
	if track != nil {
		track.Reset()
	}

	last := in.Start()
	err := walk(in, func(p Point3) bool {
		last = p
		if track != nil {
			track.Append(p)
		}
		return true
	})
	if err != nil {
		return last, err
	}

	if !last.Finite() {
		return last, fmt.Errorf("impact (%v, %v, %v): %w", last.X, last.Y, last.Z, ErrNonFinite)
	}
	return last, nil
}

// Path returns the simulated positions lazily. Each range over the sequence
// restarts the simulation from the fix. Invalid inputs yield nothing.
func Path(in *Inputs) iter.Seq[Point3] {
	return func(yield func(Point3) bool) {
		if in.validate() != nil {
			return
		}
		walk(in, yield)
	}
}

// walk feeds every position to yield until impact or until yield returns
// false.
func walk(in *Inputs, yield func(Point3) bool) error {
	pos := in.Start()
	heading := in.Heading
	bankRate := in.BankRate

	// Wind direction is where the wind comes from, so displacement runs
	// opposite to it.
	wind := -math.Pi/2 - in.WindHeading
	sinWind, cosWind := math.Sin(wind), math.Cos(wind)

	t := 0.0
	for t < in.Elapsed {
		step := in.TimeStep
		next := t + step
		if next > in.Elapsed {
			step = in.Elapsed - t
			next = in.Elapsed
		}
		t = next

		altitude := in.Altitude.Interpolate(t)
		windSpeed := in.WindSpeed.Interpolate(altitude)
		airspeed := in.Airspeed.Interpolate(t)

		heading += bankRate * step
		bankRate += in.BankAccel * step
		hdg := math.Pi/2 - heading

		pos.Z = altitude
		pos.X += step * (airspeed*math.Cos(hdg) + windSpeed*cosWind)
		pos.Y += step * (airspeed*math.Sin(hdg) + windSpeed*sinWind)

		if !yield(pos) {
			return nil
		}
	}
	return nil
}
