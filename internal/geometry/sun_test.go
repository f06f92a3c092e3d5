package geometry

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

func declinationDeg(v r3.Vec) float64 {
	return rad2deg(math.Asin(v.Z / r3.Norm(v)))
}

func TestSunPositionDeclination(t *testing.T) {
	tests := []struct {
		name    string
		time    time.Time
		wantDec float64
	}{
		{"june solstice", time.Date(2024, 6, 20, 20, 51, 0, 0, time.UTC), 23.44},
		{"december solstice", time.Date(2024, 12, 21, 9, 20, 0, 0, time.UTC), -23.44},
		{"march equinox", time.Date(2025, 3, 20, 9, 1, 0, 0, time.UTC), 0},
		{"september equinox", time.Date(2025, 9, 22, 18, 19, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := declinationDeg(SunPosition(tt.time))
			if math.Abs(got-tt.wantDec) > 0.05 {
				t.Errorf("declination = %.3f deg, want %.2f", got, tt.wantDec)
			}
		})
	}
}

func TestSunPositionDistance(t *testing.T) {
	// Perihelion in early January, aphelion in early July.
	peri := r3.Norm(SunPosition(time.Date(2025, 1, 4, 13, 0, 0, 0, time.UTC))) / auKm
	aph := r3.Norm(SunPosition(time.Date(2025, 7, 3, 20, 0, 0, 0, time.UTC))) / auKm

	if math.Abs(peri-0.9833) > 0.001 {
		t.Errorf("perihelion distance = %.4f AU, want ~0.9833", peri)
	}
	if math.Abs(aph-1.0167) > 0.001 {
		t.Errorf("aphelion distance = %.4f AU, want ~1.0167", aph)
	}
}

func TestSunLookAnglesFreiburg(t *testing.T) {
	obs := MustObserver(48.0, 7.85, 278)

	// Local solar noon near the June solstice: 90 - 48 + 23.4.
	noon := SunLookAngles(obs, time.Date(2024, 6, 21, 11, 31, 0, 0, time.UTC))
	if math.Abs(noon.ElevationDeg-65.4) > 1.0 {
		t.Errorf("solar noon altitude = %.2f deg, want ~65.4", noon.ElevationDeg)
	}
	if math.Abs(noon.AzimuthDeg-180) > 3 {
		t.Errorf("solar noon azimuth = %.2f deg, want ~180", noon.AzimuthDeg)
	}

	// Solar midnight: -(90 - 48 - 23.4).
	midnight := SunLookAngles(obs, time.Date(2024, 6, 21, 23, 31, 0, 0, time.UTC))
	if math.Abs(midnight.ElevationDeg+18.6) > 1.0 {
		t.Errorf("solar midnight altitude = %.2f deg, want ~-18.6", midnight.ElevationDeg)
	}
}
