package trajectory

import "math"

// Point2 is a ground position in grid metres (+X east, +Y grid north).
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point3 is a position in grid metres with altitude in metres.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// XY drops the altitude.
func (p Point3) XY() Point2 { return Point2{X: p.X, Y: p.Y} }

// Finite reports whether every coordinate is a finite number.
func (p Point3) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

// Track is an ordered sequence of simulated positions.
type Track []Point3

// Reset empties the track, keeping capacity.
func (t *Track) Reset() { *t = (*t)[:0] }

// Append adds a point.
func (t *Track) Append(p Point3) { *t = append(*t, p) }

// Last returns the final point, or the zero point for an empty track.
func (t Track) Last() Point3 {
	if len(t) == 0 {
		return Point3{}
	}
	return t[len(t)-1]
}

// Reversed returns a reversed copy.
func (t Track) Reversed() Track {
	out := make(Track, len(t))
	for i, p := range t {
		out[len(t)-1-i] = p
	}
	return out
}

// Concat returns t followed by the given tracks in a new slice.
func (t Track) Concat(others ...Track) Track {
	n := len(t)
	for _, o := range others {
		n += len(o)
	}
	out := make(Track, 0, n)
	out = append(out, t...)
	for _, o := range others {
		out = append(out, o...)
	}
	return out
}
