package geodesy

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom/proj"

	"github.com/star/impactsim/internal/trajectory"
)

// Config describes how local grid coordinates map onto UTM.
type Config struct {
	Zone  int  // UTM zone (default: 56)
	South bool // southern hemisphere
	// DatumShift is added to grid coordinates to move from the map datum to
	// WGS84 (AGD66: +112 E, +183 N).
	DatumShift trajectory.Point2
	// SquareOffset is added after the datum shift to turn square-relative
	// coordinates into full UTM coordinates.
	SquareOffset trajectory.Point2
}

// DefaultConfig is AGD66 map grid in MGRS square 56HLJ.
func DefaultConfig() Config {
	return Config{
		Zone:         56,
		South:        true,
		DatumShift:   trajectory.Point2{X: 112, Y: 183},
		SquareOffset: trajectory.Point2{X: 300000, Y: 6400000},
	}
}

// squareNorthing holds northing corrections for map squares whose local
// northings wrap at 100 km.
var squareNorthing = map[string]float64{
	"56HLJ": -100000,
}

// SquareNorthingAdjustment returns the northing correction for an MGRS
// square identifier.
func SquareNorthingAdjustment(square string) float64 {
	return squareNorthing[strings.ToUpper(strings.TrimSpace(square))]
}

// Converter projects grid positions to WGS84 longitude/latitude. Safe for
// concurrent use.
type Converter struct {
	config Config
	toGeo  proj.Transformer
}

// NewConverter builds the UTM to geographic transform for cfg.
func NewConverter(cfg Config) (*Converter, error) {
	if cfg.Zone < 1 || cfg.Zone > 60 {
		return nil, fmt.Errorf("utm zone %d out of range", cfg.Zone)
	}
	def := fmt.Sprintf("+proj=utm +zone=%d +ellps=WGS84 +datum=WGS84 +units=m +no_defs", cfg.Zone)
	if cfg.South {
		def = fmt.Sprintf("+proj=utm +zone=%d +south +ellps=WGS84 +datum=WGS84 +units=m +no_defs", cfg.Zone)
	}
	utm, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("parsing utm projection: %w", err)
	}
	geo, err := proj.Parse("+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs")
	if err != nil {
		return nil, fmt.Errorf("parsing geographic projection: %w", err)
	}
	t, err := utm.NewTransform(geo)
	if err != nil {
		return nil, fmt.Errorf("building utm transform: %w", err)
	}
	return &Converter{config: cfg, toGeo: t}, nil
}

// UTM returns full WGS84 UTM coordinates for a grid position.
func (c *Converter) UTM(p trajectory.Point2) trajectory.Point2 {
	return trajectory.Point2{
		X: p.X + c.config.DatumShift.X + c.config.SquareOffset.X,
		Y: p.Y + c.config.DatumShift.Y + c.config.SquareOffset.Y,
	}
}

// LonLat returns WGS84 longitude and latitude in degrees.
func (c *Converter) LonLat(p trajectory.Point2) (lon, lat float64, err error) {
	u := c.UTM(p)
	lon, lat, err = c.toGeo(u.X, u.Y)
	if err != nil {
		return 0, 0, fmt.Errorf("projecting (%v, %v): %w", u.X, u.Y, err)
	}
	return lon, lat, nil
}
