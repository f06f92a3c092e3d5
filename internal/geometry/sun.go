package geometry

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// auKm is one astronomical unit in kilometers.
const auKm = 149597870.7

// SunPosition returns the apparent geocentric position of the Sun in the
// equator-of-date frame (km), which is close enough to TEME for darkness and
// shadow tests.
//
// Low-precision solar ephemeris from the Astronomical Almanac; about 0.01°
// in longitude, well inside the tolerance of a -6° twilight threshold.
func SunPosition(t time.Time) r3.Vec {
	T := julianCenturies(t)

	// Mean longitude and mean anomaly (degrees).
	l0 := normalize360(280.46646 + 36000.76983*T + 0.0003032*T*T)
	m := normalize360(357.52911 + 35999.05029*T - 0.0001537*T*T)
	mRad := deg2rad(m)

	// Equation of center.
	c := (1.914602-0.004817*T-0.000014*T*T)*math.Sin(mRad) +
		(0.019993-0.000101*T)*math.Sin(2*mRad) +
		0.000289*math.Sin(3*mRad)

	trueLon := l0 + c
	trueAnomaly := deg2rad(m + c)

	// Radius vector (AU).
	e := 0.016708634 - 0.000042037*T - 0.0000001267*T*T
	r := 1.000001018 * (1 - e*e) / (1 + e*math.Cos(trueAnomaly))

	// Apparent longitude, corrected for aberration and nutation.
	omega := deg2rad(125.04 - 1934.136*T)
	lambda := deg2rad(trueLon - 0.00569 - 0.00478*math.Sin(omega))

	// Obliquity of the ecliptic, corrected.
	eps0 := 23.439291 - 0.0130042*T - 0.00000016*T*T + 0.000000504*T*T*T
	eps := deg2rad(eps0 + 0.00256*math.Cos(omega))

	ra := math.Atan2(math.Cos(eps)*math.Sin(lambda), math.Cos(lambda))
	dec := math.Asin(math.Sin(eps) * math.Sin(lambda))

	dist := r * auKm
	return r3.Vec{
		X: dist * math.Cos(dec) * math.Cos(ra),
		Y: dist * math.Cos(dec) * math.Sin(ra),
		Z: dist * math.Sin(dec),
	}
}

// SunLookAngles returns where the Sun appears from the observer at t.
func SunLookAngles(obs Observer, t time.Time) LookAngles {
	return obs.LookAt(TEMEToECEF(SunPosition(t), GMST(t)))
}
