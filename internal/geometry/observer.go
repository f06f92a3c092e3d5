package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84AKm = 6378.137              // semi-major axis (km)
	wgs84F   = 1.0 / 298.257223563   // flattening
	wgs84E2  = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Observer is a ground location. Its ECEF position is precomputed once so it
// can be reused across the thousands of samples of a prediction run.
type Observer struct {
	LatitudeDeg  float64 `json:"latitude"`
	LongitudeDeg float64 `json:"longitude"`
	ElevationM   float64 `json:"elevation"`

	latRad, lonRad float64
	ecef           r3.Vec // km
}

// NewObserver validates the coordinates and precomputes the WGS-84 ECEF position.
func NewObserver(latDeg, lonDeg, elevationM float64) (Observer, error) {
	if math.IsNaN(latDeg) || latDeg < -90 || latDeg > 90 {
		return Observer{}, fmt.Errorf("latitude %v out of range [-90, 90]", latDeg)
	}
	if math.IsNaN(lonDeg) || lonDeg < -180 || lonDeg > 180 {
		return Observer{}, fmt.Errorf("longitude %v out of range [-180, 180]", lonDeg)
	}
	if math.IsNaN(elevationM) || math.IsInf(elevationM, 0) {
		return Observer{}, fmt.Errorf("elevation %v is not finite", elevationM)
	}

	lat := deg2rad(latDeg)
	lon := deg2rad(lonDeg)
	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	n := wgs84AKm / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	altKm := elevationM / 1000.0

	return Observer{
		LatitudeDeg:  latDeg,
		LongitudeDeg: lonDeg,
		ElevationM:   elevationM,
		latRad:       lat,
		lonRad:       lon,
		ecef: r3.Vec{
			X: (n + altKm) * cosLat * math.Cos(lon),
			Y: (n + altKm) * cosLat * math.Sin(lon),
			Z: (n*(1-wgs84E2) + altKm) * sinLat,
		},
	}, nil
}

// MustObserver is NewObserver for fixed, known-good coordinates.
func MustObserver(latDeg, lonDeg, elevationM float64) Observer {
	obs, err := NewObserver(latDeg, lonDeg, elevationM)
	if err != nil {
		panic(err)
	}
	return obs
}

// ECEF returns the observer position in ECEF km.
func (o Observer) ECEF() r3.Vec {
	return o.ecef
}

// LookAngles holds azimuth, elevation, and range from observer to target.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// LookAt computes look angles from the observer to a target given in ECEF km.
//
// Uses the SEZ (South-East-Zenith) topocentric rotation per Vallado Section 4.4.
func (o Observer) LookAt(target r3.Vec) LookAngles {
	rho := r3.Sub(target, o.ecef)

	sinLat := math.Sin(o.latRad)
	cosLat := math.Cos(o.latRad)
	sinLon := math.Sin(o.lonRad)
	cosLon := math.Cos(o.lonRad)

	south := sinLat*cosLon*rho.X + sinLat*sinLon*rho.Y - cosLat*rho.Z
	east := -sinLon*rho.X + cosLon*rho.Y
	zenith := cosLat*cosLon*rho.X + cosLat*sinLon*rho.Y + sinLat*rho.Z

	rng := r3.Norm(rho)

	// North is -South in SEZ.
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   rad2deg(az),
		ElevationDeg: rad2deg(math.Asin(zenith / rng)),
		RangeKm:      rng,
	}
}
