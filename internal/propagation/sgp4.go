// Package propagation wraps the SGP4 model for the tracked object.
package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, explicit TEME output, and its GSTimeFromDate is used to cross-check our GMST.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. Failures are detected by checking the output for NaN/Inf and
// non-physical position magnitudes. The library only accepts whole seconds, which
// bounds our time resolution to 1 s.

// Radius bounds (km) for a physically reasonable Earth-orbiting position.
const (
	minRadiusKm = 6200.0
	maxRadiusKm = 50000.0
)

// SGP4Propagator wraps the go-satellite library for a single satellite.
// Immutable after construction; safe for concurrent use.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Propagator creates an SGP4 propagator from TLE lines.
// Returns an error if the TLE cannot be parsed or the SGP4 model fails to initialize.
//
// Pre-validates TLE format before passing to the library, because go-satellite
// calls log.Fatal on malformed input.
func NewSGP4Propagator(line1, line2 string, noradID int) (*SGP4Propagator, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)
	if err := ValidateLines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", noradID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", noradID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: noradID}, nil
}

// ValidateLines performs basic format validation on TLE lines: length,
// line numbers and the modulo-10 checksum in column 69.
func ValidateLines(line1, line2 string) error {
	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("catalog number mismatch: %q vs %q", line1[2:7], line2[2:7])
	}
	for i, line := range []string{line1, line2} {
		if got, want := checksum(line[:68]), line[68]; want != ' ' && got != want {
			return fmt.Errorf("line%d checksum %c, computed %c", i+1, want, got)
		}
	}
	return nil
}

// checksum sums digits, counting '-' as 1, modulo 10.
func checksum(s string) byte {
	sum := 0
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return byte('0' + sum%10)
}

// NORADID returns the catalog number the propagator was built for.
func (p *SGP4Propagator) NORADID() int {
	return p.noradID
}

// PositionAt computes the satellite position in the TEME frame (km) at t.
// Sub-second parts of t are truncated.
func (p *SGP4Propagator) PositionAt(t time.Time) (r3.Vec, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return r3.Vec{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", p.noradID)
	}

	v := r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z}
	if mag := r3.Norm(v); mag < minRadiusKm || mag > maxRadiusKm {
		return r3.Vec{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", p.noradID, mag)
	}
	return v, nil
}
