package heatmap

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"gonum.org/v1/plot/vg"

	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/trajectory"
)

func testGrid(t *testing.T) *montecarlo.Grid {
	t.Helper()
	g, err := montecarlo.CenteredOn(trajectory.Point2{X: 1000, Y: 2000}, 10, 8, 100)
	if err != nil {
		t.Fatal(err)
	}
	for i := range 20 {
		g.Add(trajectory.Point2{X: 1000 + float64(i%3)*100, Y: 2000})
	}
	return g
}

func TestRenderPNG(t *testing.T) {
	impact := trajectory.Point3{X: 1000, Y: 2000}
	var buf bytes.Buffer
	err := Render(&buf, testGrid(t), Options{
		Title:  "impacts",
		Width:  4 * vg.Inch,
		Height: 3 * vg.Inch,
		Track:  trajectory.Track{{X: 600, Y: 1700}, {X: 800, Y: 1900}, impact},
		Impact: &impact,
	})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width <= cfg.Height {
		t.Errorf("image %dx%d, want landscape", cfg.Width, cfg.Height)
	}
}

func TestRenderEmptyGrid(t *testing.T) {
	g, err := montecarlo.NewGrid(4, 4, 50, trajectory.Point2{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, g, Options{}); err != nil {
		t.Fatalf("all-zero grid: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("no output")
	}
}

func TestRenderNoGrid(t *testing.T) {
	if err := Render(&bytes.Buffer{}, nil, Options{}); !errors.Is(err, ErrNoGrid) {
		t.Errorf("Render(nil) = %v, want ErrNoGrid", err)
	}
}

func TestGridXYZ(t *testing.T) {
	g := testGrid(t)
	xyz := gridXYZ{g}
	c, r := xyz.Dims()
	if c != 10 || r != 8 {
		t.Fatalf("dims = %d, %d", c, r)
	}
	col, row, ok := g.Cell(trajectory.Point2{X: 1000, Y: 2000})
	if !ok {
		t.Fatal("centre not in grid")
	}
	if xyz.X(col) != 1000 || xyz.Y(row) != 2000 {
		t.Errorf("centre cell at (%v, %v)", xyz.X(col), xyz.Y(row))
	}
	if xyz.Z(col, row) == 0 {
		t.Error("centre cell empty")
	}
}
