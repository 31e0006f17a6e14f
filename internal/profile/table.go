// Package profile holds piecewise-linear profiles (time to altitude, time to
// airspeed, altitude to wind speed) and their random counterparts.
package profile

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrOutOfOrder is returned when a point does not extend the table to the right.
var ErrOutOfOrder = errors.New("profile points must have strictly increasing x")

// Point is one control point of a profile.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Table is an ordered set of control points with strictly increasing X.
// Not safe for concurrent mutation; each worker owns its own tables.
type Table struct {
	points []Point
}

// NewTable builds a table from points given in increasing X order.
func NewTable(points ...Point) (*Table, error) {
	t := &Table{points: make([]Point, 0, len(points))}
	for _, p := range points {
		if err := t.AddPoint(p.X, p.Y); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddPoint appends (x, y). x must be greater than the last x.
func (t *Table) AddPoint(x, y float64) error {
	if n := len(t.points); n > 0 && !(x > t.points[n-1].X) {
		return fmt.Errorf("x=%v after x=%v: %w", x, t.points[n-1].X, ErrOutOfOrder)
	}
	t.points = append(t.points, Point{X: x, Y: y})
	return nil
}

// Len returns the number of control points.
func (t *Table) Len() int { return len(t.points) }

// At returns the i-th control point.
func (t *Table) At(i int) Point { return t.points[i] }

// SetY replaces the y of the i-th point in place.
func (t *Table) SetY(i int, y float64) { t.points[i].Y = y }

// SetX replaces the x of the i-th point in place. Callers re-sampling a
// table keep the ordering invariant themselves; Validate checks it.
func (t *Table) SetX(i int, x float64) { t.points[i].X = x }

// Validate reports ErrOutOfOrder if in-place edits broke the ordering.
func (t *Table) Validate() error {
	for i := 1; i < len(t.points); i++ {
		if !(t.points[i].X > t.points[i-1].X) {
			return fmt.Errorf("point %d x=%v after x=%v: %w", i, t.points[i].X, t.points[i-1].X, ErrOutOfOrder)
		}
	}
	return nil
}

// Points returns a copy of the control points.
func (t *Table) Points() []Point {
	out := make([]Point, len(t.points))
	copy(out, t.points)
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	return &Table{points: t.Points()}
}

// Reset removes every point, keeping capacity.
func (t *Table) Reset() { t.points = t.points[:0] }

// Interpolate returns y at x, extrapolating linearly from the nearest
// segment outside the table's domain. An empty table yields NaN.
func (t *Table) Interpolate(x float64) float64 {
	n := len(t.points)
	switch n {
	case 0:
		return math.NaN()
	case 1:
		return t.points[0].Y
	case 2:
		return lerp(t.points[0], t.points[1], x)
	}

	i := sort.Search(n, func(i int) bool { return t.points[i].X >= x })
	switch {
	case i == n:
		return lerp(t.points[n-2], t.points[n-1], x)
	case t.points[i].X == x:
		return t.points[i].Y
	case i == 0:
		return lerp(t.points[0], t.points[1], x)
	default:
		return lerp(t.points[i-1], t.points[i], x)
	}
}

func lerp(a, b Point, x float64) float64 {
	return a.Y + (b.Y-a.Y)/(b.X-a.X)*(x-a.X)
}
