package kml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"github.com/star/impactsim/internal/geodesy"
	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/trajectory"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	conv, err := geodesy.NewConverter(geodesy.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return NewWriter(conv, "test")
}

// count parses the document and counts elements by local name.
func count(t *testing.T, doc []byte) map[string]int {
	t.Helper()
	n := make(map[string]int)
	dec := xml.NewDecoder(bytes.NewReader(doc))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if se, ok := tok.(xml.StartElement); ok {
			n[se.Name.Local]++
		}
	}
	return n
}

func TestWriterTracks(t *testing.T) {
	w := newTestWriter(t)
	track := trajectory.Track{
		{X: 90000, Y: -30000, Z: 2000},
		{X: 90100, Y: -30100, Z: 1500},
		{X: 90200, Y: -30200, Z: 1000},
	}
	if err := w.Track("Nominal track", track); err != nil {
		t.Fatal(err)
	}
	if err := w.Point("Nominal impact", track.Last()); err != nil {
		t.Fatal(err)
	}
	if err := w.Polygon("heading +1σ", track.Concat(track.Reversed())); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := w.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	n := count(t, buf.Bytes())

	if n["Placemark"] != 3 {
		t.Errorf("placemarks = %d, want 3", n["Placemark"])
	}
	if n["Folder"] != 1 {
		t.Errorf("folders = %d, want 1 (no grid)", n["Folder"])
	}
	if n["Style"] != 7 {
		t.Errorf("styles = %d, want 7", n["Style"])
	}
	for _, want := range []string{"Tracks", "Nominal track", "#std_tracks", "cell_100", "origin_cell"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestWriterEmptyGeometry(t *testing.T) {
	w := newTestWriter(t)
	if err := w.Track("x", nil); !errors.Is(err, ErrEmptyGeometry) {
		t.Errorf("Track(nil) = %v", err)
	}
	if err := w.Polygon("x", trajectory.Track{}); !errors.Is(err, ErrEmptyGeometry) {
		t.Errorf("Polygon(empty) = %v", err)
	}
}

func TestWriteGrid(t *testing.T) {
	g, err := montecarlo.CenteredOn(trajectory.Point2{X: 90000, Y: -30000}, 3, 2, 500)
	if err != nil {
		t.Fatal(err)
	}
	for range 4 {
		g.Add(trajectory.Point2{X: 90000, Y: -30000})
	}
	g.Add(trajectory.Point2{X: 89500, Y: -30000})

	w := newTestWriter(t)
	if err := w.WriteGrid(g); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := w.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	n := count(t, buf.Bytes())
	if n["Placemark"] != 6 {
		t.Errorf("placemarks = %d, want 6", n["Placemark"])
	}
	if n["Polygon"] != 6 {
		t.Errorf("polygons = %d, want 6", n["Polygon"])
	}
	s := buf.String()
	if !strings.Contains(s, "<name>Grid</name>") {
		t.Error("missing Grid folder")
	}
	if !strings.Contains(s, "#cell_100") || !strings.Contains(s, "#cell_25") {
		t.Errorf("expected full and quarter cells:\n%s", s)
	}
}

func TestColourOrder(t *testing.T) {
	r, g, b, a := abgr(0x800080ff).RGBA()
	if r>>8 != 0xff || g>>8 != 0x80 || b>>8 != 0x00 || a>>8 != 0x80 {
		t.Errorf("abgr(0x800080ff) = %x %x %x %x", r>>8, g>>8, b>>8, a>>8)
	}
}
