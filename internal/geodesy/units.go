// Package geodesy converts between the user-facing units and datums of a
// scenario and the grid metres used by the simulation.
package geodesy

import "math"

const (
	metresPerFoot = 0.3048
	metresPerNM   = 1852.0
)

func FeetToMetres(ft float64) float64 { return ft * metresPerFoot }
func MetresToFeet(m float64) float64  { return m / metresPerFoot }
func NMToMetres(nm float64) float64   { return nm * metresPerNM }
func MetresToNM(m float64) float64    { return m / metresPerNM }
func KnotsToMPS(kn float64) float64   { return kn * metresPerNM / 3600.0 }
func MPSToKnots(mps float64) float64  { return mps * 3600.0 / metresPerNM }
func DegToRad(deg float64) float64    { return deg * math.Pi / 180.0 }
func RadToDeg(rad float64) float64    { return rad * 180.0 / math.Pi }
