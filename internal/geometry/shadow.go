package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Radii used by the conical shadow model (km).
const (
	earthRadiusKm = 6378.137
	sunRadiusKm   = 696000.0
)

// ShadowDepth returns how deep the object sits in Earth's umbra, in radians.
// Positive values mean the solar disc is completely hidden by the Earth.
// Both vectors are geocentric and share a frame and units.
//
// The angular semi-diameters of Earth and Sun are compared against the
// Earth-Sun separation as seen from the object.
func ShadowDepth(object, sun r3.Vec) float64 {
	objDist := r3.Norm(object)
	if objDist <= earthRadiusKm {
		return math.Pi
	}

	sdEarth := math.Asin(earthRadiusKm / objDist)
	toSun := r3.Sub(sun, object)
	sdSun := math.Asin(sunRadiusKm / r3.Norm(toSun))

	toEarth := r3.Scale(-1, object)
	sep := math.Acos(clamp(r3.Cos(toSun, toEarth), -1, 1))

	return sdEarth - sdSun - sep
}

// Sunlit reports whether any part of the solar disc is visible from the object.
// Penumbra counts as sunlit.
func Sunlit(object, sun r3.Vec) bool {
	return ShadowDepth(object, sun) < 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
