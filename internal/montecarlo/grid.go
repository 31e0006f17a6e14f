package montecarlo

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/star/impactsim/internal/trajectory"
)

// ErrInvalidGrid is returned for a grid with no cells or a non-positive cell size.
var ErrInvalidGrid = errors.New("grid needs positive dimensions and cell size")

// Grid is a 2-D histogram of impact positions. Cells are stored row-major:
// index = col + row*Cols.
type Grid struct {
	Cols     int               `json:"cols" msgpack:"cols"`
	Rows     int               `json:"rows" msgpack:"rows"`
	Origin   trajectory.Point2 `json:"origin" msgpack:"origin"`
	CellSize float64           `json:"cell_size" msgpack:"cell_size"`
	Cells    []float64         `json:"cells" msgpack:"cells"`
}

// NewGrid returns an empty grid with its origin at the given corner.
func NewGrid(cols, rows int, cellSize float64, origin trajectory.Point2) (*Grid, error) {
	if cols <= 0 || rows <= 0 || !(cellSize > 0) {
		return nil, fmt.Errorf("%dx%d cells of %v m: %w", cols, rows, cellSize, ErrInvalidGrid)
	}
	return &Grid{
		Cols:     cols,
		Rows:     rows,
		Origin:   origin,
		CellSize: cellSize,
		Cells:    make([]float64, cols*rows),
	}, nil
}

// CenteredOn returns an empty grid whose extent is centred on p.
func CenteredOn(p trajectory.Point2, cols, rows int, cellSize float64) (*Grid, error) {
	origin := trajectory.Point2{
		X: p.X - float64(cols)*cellSize*0.5,
		Y: p.Y - float64(rows)*cellSize*0.5,
	}
	return NewGrid(cols, rows, cellSize, origin)
}

// Cell returns the column and row holding p, and whether it lies in the grid.
func (g *Grid) Cell(p trajectory.Point2) (col, row int, ok bool) {
	fc := math.Round((p.X - g.Origin.X) / g.CellSize)
	fr := math.Round((p.Y - g.Origin.Y) / g.CellSize)
	if !(fc >= 0 && fr >= 0 && fc < float64(g.Cols) && fr < float64(g.Rows)) {
		return 0, 0, false
	}
	return int(fc), int(fr), true
}

// Index returns the flat index of the cell holding p.
func (g *Grid) Index(p trajectory.Point2) (int, bool) {
	col, row, ok := g.Cell(p)
	if !ok {
		return 0, false
	}
	return col + row*g.Cols, true
}

// Add increments the cell holding p and reports whether p was inside.
func (g *Grid) Add(p trajectory.Point2) bool {
	idx, ok := g.Index(p)
	if ok {
		g.Cells[idx]++
	}
	return ok
}

// At returns the count in a cell.
func (g *Grid) At(col, row int) float64 {
	return g.Cells[col+row*g.Cols]
}

// Corner returns the lower-left corner of a cell.
func (g *Grid) Corner(col, row int) trajectory.Point2 {
	return trajectory.Point2{
		X: g.Origin.X + float64(col)*g.CellSize,
		Y: g.Origin.Y + float64(row)*g.CellSize,
	}
}

// Max returns the largest cell count.
func (g *Grid) Max() float64 {
	if len(g.Cells) == 0 {
		return 0
	}
	return floats.Max(g.Cells)
}

// Sum returns the total count across all cells.
func (g *Grid) Sum() float64 {
	return floats.Sum(g.Cells)
}

// Reset zeroes every cell.
func (g *Grid) Reset() {
	clear(g.Cells)
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Cells = make([]float64, len(g.Cells))
	copy(c.Cells, g.Cells)
	return &c
}

// Bucket is the display class of a grid cell.
type Bucket int

const (
	BucketEmpty Bucket = iota
	BucketQuartile1
	BucketQuartile2
	BucketQuartile3
	BucketQuartile4
	BucketOrigin
)

var bucketNames = map[Bucket]string{
	BucketEmpty:     "empty_cell",
	BucketQuartile1: "cell_25",
	BucketQuartile2: "cell_50",
	BucketQuartile3: "cell_75",
	BucketQuartile4: "cell_100",
	BucketOrigin:    "origin_cell",
}

// String returns the style name used for the bucket.
func (b Bucket) String() string {
	if s, ok := bucketNames[b]; ok {
		return s
	}
	return fmt.Sprintf("bucket(%d)", int(b))
}

// Level returns round(4*count/max), or 0 when max is not positive.
func Level(count, max float64) int {
	if !(max > 0) {
		return 0
	}
	return int(math.Round(4 * count / max))
}

// Classify buckets a cell count against the grid maximum. Small non-zero
// counts can round to the empty bucket; the origin cell is marked instead.
func Classify(count, max float64, origin bool) Bucket {
	switch l := Level(count, max); l {
	case 1, 2, 3, 4:
		return Bucket(l)
	default:
		if origin {
			return BucketOrigin
		}
		return BucketEmpty
	}
}

// Classify returns the bucket of one cell of g given the grid maximum.
func (g *Grid) Classify(col, row int, max float64) Bucket {
	return Classify(g.At(col, row), max, col == 0 && row == 0)
}
