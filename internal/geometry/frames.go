// Package geometry computes where the tracked object and the Sun appear from
// a ground observer, and whether the object is lit.
//
// Frames: SGP4 outputs TEME (True Equator Mean Equinox). TEME is rotated to
// ECEF using GMST only (TEME -> PEF ~ ECEF), ignoring polar motion and the
// equation of the equinoxes. The error is tens of meters, far below what
// minute-level pass prediction needs.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package geometry

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// JulianDate converts a time.Time to Julian Date (UTC).
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	h := float64(t.Hour())
	min := float64(t.Minute())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9

	// Jan/Feb count as months 13/14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5
	jd += (h + min/60.0 + s/3600.0) / 24.0
	return jd
}

// julianCenturies returns Julian centuries since J2000.0.
func julianCenturies(t time.Time) float64 {
	return (JulianDate(t) - j2000) / 36525.0
}

// GMST returns Greenwich Mean Sidereal Time in radians (IAU-82, Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
func GMST(t time.Time) float64 {
	tUT1 := julianCenturies(t)

	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// TEMEToECEF rotates a TEME position about Z by GMST. Units are preserved.
//
//	r_ECEF = R3(θ) * r_TEME
func TEMEToECEF(teme r3.Vec, gmst float64) r3.Vec {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)
	return r3.Vec{
		X: teme.X*cosG + teme.Y*sinG,
		Y: -teme.X*sinG + teme.Y*cosG,
		Z: teme.Z,
	}
}

func deg2rad(d float64) float64 { return d * math.Pi / 180.0 }
func rad2deg(r float64) float64 { return r * 180.0 / math.Pi }

// normalize360 wraps an angle in degrees into [0, 360).
func normalize360(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}
