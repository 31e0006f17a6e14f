// Package kml renders reference tracks and impact grids as KML documents
// in WGS84 longitude/latitude.
package kml

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	gokml "github.com/twpayne/go-kml"

	"github.com/star/impactsim/internal/geodesy"
	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/sensitivity"
	"github.com/star/impactsim/internal/trajectory"
)

// ErrEmptyGeometry is returned for tracks or rings with no points.
var ErrEmptyGeometry = errors.New("empty geometry")

// KML colours are aabbggrr.
func abgr(v uint32) color.Color {
	return color.RGBA{
		A: uint8(v >> 24),
		B: uint8(v >> 16),
		G: uint8(v >> 8),
		R: uint8(v),
	}
}

const trackStyle = "std_tracks"

var cellFill = map[montecarlo.Bucket]uint32{
	montecarlo.BucketOrigin:    0x80ffffff,
	montecarlo.BucketQuartile1: 0x8000ff00,
	montecarlo.BucketQuartile2: 0x80ff0000,
	montecarlo.BucketQuartile3: 0x800080ff,
	montecarlo.BucketQuartile4: 0x800000ff,
}

func styles() []gokml.Element {
	out := []gokml.Element{
		gokml.SharedStyle(trackStyle,
			gokml.LineStyle(gokml.Color(abgr(0xffffffff))),
			gokml.PolyStyle(gokml.Color(abgr(0xa0ffffff)), gokml.Fill(true), gokml.Outline(false)),
		),
		gokml.SharedStyle(montecarlo.BucketEmpty.String(),
			gokml.LineStyle(gokml.Color(abgr(0xffa0a0a0))),
			gokml.PolyStyle(gokml.Fill(false), gokml.Outline(true)),
		),
	}
	for _, b := range []montecarlo.Bucket{
		montecarlo.BucketOrigin,
		montecarlo.BucketQuartile1,
		montecarlo.BucketQuartile2,
		montecarlo.BucketQuartile3,
		montecarlo.BucketQuartile4,
	} {
		out = append(out, gokml.SharedStyle(b.String(),
			gokml.LineStyle(gokml.Color(abgr(0xffa0a0a0))),
			gokml.PolyStyle(gokml.Color(abgr(cellFill[b]))),
		))
	}
	return out
}

// Writer accumulates placemarks into a "Tracks" and a "Grid" folder. It
// implements sensitivity.Sink. A Writer is not safe for concurrent use.
type Writer struct {
	name   string
	conv   *geodesy.Converter
	tracks []gokml.Element
	grid   []gokml.Element
}

var _ sensitivity.Sink = (*Writer)(nil)

// NewWriter returns a Writer for a document called name.
func NewWriter(conv *geodesy.Converter, name string) *Writer {
	return &Writer{name: name, conv: conv}
}

func (w *Writer) coords(pts ...trajectory.Point3) ([]gokml.Coordinate, error) {
	out := make([]gokml.Coordinate, 0, len(pts))
	for _, p := range pts {
		lon, lat, err := w.conv.LonLat(p.XY())
		if err != nil {
			return nil, err
		}
		out = append(out, gokml.Coordinate{Lon: lon, Lat: lat, Alt: p.Z})
	}
	return out, nil
}

// Track adds a line string following the track at its simulated altitude.
func (w *Writer) Track(name string, track trajectory.Track) error {
	if len(track) == 0 {
		return fmt.Errorf("track %q: %w", name, ErrEmptyGeometry)
	}
	cs, err := w.coords(track...)
	if err != nil {
		return fmt.Errorf("track %q: %w", name, err)
	}
	w.tracks = append(w.tracks, gokml.Placemark(
		gokml.Name(name),
		gokml.StyleURL("#"+trackStyle),
		gokml.LineString(
			gokml.AltitudeMode(gokml.AltitudeModeAbsolute),
			gokml.Coordinates(cs...),
		),
	))
	return nil
}

// Point adds a single placemark.
func (w *Writer) Point(name string, p trajectory.Point3) error {
	cs, err := w.coords(p)
	if err != nil {
		return fmt.Errorf("point %q: %w", name, err)
	}
	w.tracks = append(w.tracks, gokml.Placemark(
		gokml.Name(name),
		gokml.StyleURL("#"+trackStyle),
		gokml.Point(gokml.Coordinates(cs...)),
	))
	return nil
}

// Polygon adds a filled polygon. The ring is closed if it is not already.
func (w *Writer) Polygon(name string, ring trajectory.Track) error {
	if len(ring) == 0 {
		return fmt.Errorf("polygon %q: %w", name, ErrEmptyGeometry)
	}
	if ring[0] != ring.Last() {
		ring = ring.Concat(trajectory.Track{ring[0]})
	}
	cs, err := w.coords(ring...)
	if err != nil {
		return fmt.Errorf("polygon %q: %w", name, err)
	}
	w.tracks = append(w.tracks, gokml.Placemark(
		gokml.Name(name),
		gokml.StyleURL("#"+trackStyle),
		gokml.Polygon(
			gokml.AltitudeMode(gokml.AltitudeModeAbsolute),
			gokml.OuterBoundaryIs(gokml.LinearRing(gokml.Coordinates(cs...))),
		),
	))
	return nil
}

// WriteGrid adds one square placemark per cell, styled by its bucket.
func (w *Writer) WriteGrid(g *montecarlo.Grid) error {
	peak := g.Max()
	for row := range g.Rows {
		for col := range g.Cols {
			c := g.Corner(col, row)
			s := g.CellSize
			cs, err := w.coords(
				trajectory.Point3{X: c.X, Y: c.Y},
				trajectory.Point3{X: c.X + s, Y: c.Y},
				trajectory.Point3{X: c.X + s, Y: c.Y + s},
				trajectory.Point3{X: c.X, Y: c.Y + s},
				trajectory.Point3{X: c.X, Y: c.Y},
			)
			if err != nil {
				return fmt.Errorf("cell (%d, %d): %w", col, row, err)
			}
			w.grid = append(w.grid, gokml.Placemark(
				gokml.Name(fmt.Sprintf("%g", g.At(col, row))),
				gokml.StyleURL("#"+g.Classify(col, row, peak).String()),
				gokml.Polygon(gokml.OuterBoundaryIs(gokml.LinearRing(gokml.Coordinates(cs...)))),
			))
		}
	}
	return nil
}

// Encode writes the document. Empty folders are omitted.
func (w *Writer) Encode(out io.Writer) error {
	doc := append([]gokml.Element{gokml.Name(w.name)}, styles()...)
	if len(w.tracks) > 0 {
		doc = append(doc, gokml.Folder(append([]gokml.Element{gokml.Name("Tracks")}, w.tracks...)...))
	}
	if len(w.grid) > 0 {
		doc = append(doc, gokml.Folder(append([]gokml.Element{gokml.Name("Grid")}, w.grid...)...))
	}
	return gokml.KML(gokml.Document(doc...)).WriteIndent(out, "", "  ")
}
