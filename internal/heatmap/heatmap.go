// Package heatmap renders impact grids as PNG images.
package heatmap

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/trajectory"
)

// ErrNoGrid is returned when there is nothing to draw.
var ErrNoGrid = errors.New("no grid")

// Options controls the rendered image.
type Options struct {
	Title  string
	Width  vg.Length // default 8in
	Height vg.Length // default 8in
	Levels int       // palette size, default 255

	// Track, when set, is drawn over the grid.
	Track trajectory.Track
	// Impact, when non-nil, is marked over the grid.
	Impact *trajectory.Point3
}

func (o *Options) defaults() {
	if o.Width <= 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 8 * vg.Inch
	}
	if o.Levels <= 1 {
		o.Levels = 255
	}
}

// gridXYZ adapts a Grid to plotter.GridXYZ. X and Y are cell centres in
// grid metres.
type gridXYZ struct{ g *montecarlo.Grid }

func (x gridXYZ) Dims() (c, r int)   { return x.g.Cols, x.g.Rows }
func (x gridXYZ) Z(c, r int) float64 { return x.g.At(c, r) }
func (x gridXYZ) X(c int) float64    { return x.g.Origin.X + float64(c)*x.g.CellSize }
func (x gridXYZ) Y(r int) float64    { return x.g.Origin.Y + float64(r)*x.g.CellSize }

// Plot builds the heat map plot for g.
func Plot(g *montecarlo.Grid, opts Options) (*plot.Plot, error) {
	if g == nil || len(g.Cells) == 0 {
		return nil, ErrNoGrid
	}
	opts.defaults()

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "easting (m)"
	p.Y.Label.Text = "northing (m)"

	cm := moreland.ExtendedBlackBody()
	cm.SetMax(1)
	hm := plotter.NewHeatMap(gridXYZ{g}, cm.Palette(opts.Levels))
	hm.Min = 0
	hm.Max = max(g.Max(), 1)
	p.Add(hm)

	if len(opts.Track) > 0 {
		xys := make(plotter.XYs, len(opts.Track))
		for i, pt := range opts.Track {
			xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("track: %w", err)
		}
		line.Color = color.RGBA{R: 40, G: 160, B: 255, A: 220}
		line.Width = vg.Points(1.2)
		p.Add(line)
		p.Legend.Add("nominal track", line)
	}

	if opts.Impact != nil {
		sc, err := plotter.NewScatter(plotter.XYs{{X: opts.Impact.X, Y: opts.Impact.Y}})
		if err != nil {
			return nil, fmt.Errorf("impact: %w", err)
		}
		sc.GlyphStyle.Color = color.RGBA{R: 40, G: 160, B: 255, A: 255}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("nominal impact", sc)
	}

	half := g.CellSize / 2
	p.X.Min = g.Origin.X - half
	p.X.Max = g.Origin.X + float64(g.Cols)*g.CellSize - half
	p.Y.Min = g.Origin.Y - half
	p.Y.Max = g.Origin.Y + float64(g.Rows)*g.CellSize - half

	return p, nil
}

// Render writes g as a PNG image to w.
func Render(w io.Writer, g *montecarlo.Grid, opts Options) error {
	p, err := Plot(g, opts)
	if err != nil {
		return err
	}
	opts.defaults()
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return fmt.Errorf("creating png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("writing png: %w", err)
	}
	return nil
}
