// Package stats provides the scalar random variables that drive the impact
// simulation.
package stats

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrNegativeStdDev is returned when a distribution is built with a negative spread.
	ErrNegativeStdDev = errors.New("standard deviation must not be negative")
	// ErrNonFinite is returned when a distribution parameter is NaN or infinite.
	ErrNonFinite = errors.New("distribution parameter is not finite")
)

// Distribution is a Gaussian random variable. The zero value is a constant 0.
// Immutable after construction; safe for concurrent use.
type Distribution struct {
	mean   float64
	stddev float64
}

// NewDistribution returns Normal(mean, stddev).
func NewDistribution(mean, stddev float64) (Distribution, error) {
	if math.IsNaN(mean) || math.IsInf(mean, 0) || math.IsNaN(stddev) || math.IsInf(stddev, 0) {
		return Distribution{}, fmt.Errorf("mean %v stddev %v: %w", mean, stddev, ErrNonFinite)
	}
	if stddev < 0 {
		return Distribution{}, fmt.Errorf("stddev %v: %w", stddev, ErrNegativeStdDev)
	}
	return Distribution{mean: mean, stddev: stddev}, nil
}

// Fixed returns a distribution with no spread.
func Fixed(value float64) Distribution {
	return Distribution{mean: value}
}

// Mean returns the distribution mean.
func (d Distribution) Mean() float64 { return d.mean }

// StdDev returns the standard deviation.
func (d Distribution) StdDev() float64 { return d.stddev }

// Offset returns mean + k*stddev.
func (d Distribution) Offset(k float64) float64 {
	return d.mean + k*d.stddev
}

// Sample draws one value. A nil src uses the process-wide generator.
func (d Distribution) Sample(src rand.Source) float64 {
	if d.stddev == 0 {
		return d.mean
	}
	n := distuv.Normal{Mu: d.mean, Sigma: d.stddev, Src: src}
	return n.Rand()
}

// String implements fmt.Stringer.
func (d Distribution) String() string {
	return fmt.Sprintf("N(%g, %g)", d.mean, d.stddev)
}
