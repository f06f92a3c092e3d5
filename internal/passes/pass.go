// Package passes finds the intervals during which the ISS is optically
// visible from an observer: above a minimum elevation, lit by the Sun and
// seen against a dark enough sky.
package passes

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
)

// Window is the half-open search interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow returns a window of the given number of days starting at start.
func NewWindow(start time.Time, days int) Window {
	return Window{Start: start, End: start.AddDate(0, 0, days)}
}

// Request holds the parameters of one prediction run.
type Request struct {
	Observer                geometry.Observer
	Window                  Window
	MinElevationDeg         float64
	MinDuration             time.Duration
	SunAltitudeThresholdDeg float64
}

// Validate rejects requests that cannot produce a meaningful search.
func (r Request) Validate() error {
	if !r.Window.End.After(r.Window.Start) {
		return errors.New("window end must be after window start")
	}
	if math.IsNaN(r.MinElevationDeg) || r.MinElevationDeg < -90 || r.MinElevationDeg > 90 {
		return fmt.Errorf("minimum elevation %v out of range [-90, 90]", r.MinElevationDeg)
	}
	if math.IsNaN(r.SunAltitudeThresholdDeg) {
		return errors.New("sun altitude threshold is NaN")
	}
	if r.MinDuration < 0 {
		return fmt.Errorf("minimum duration %s is negative", r.MinDuration)
	}
	return nil
}

// Pass is one finalized visible pass.
type Pass struct {
	RiseTime         time.Time `json:"rise_time"`
	RiseAzimuthDeg   float64   `json:"rise_azimuth"`
	RiseElevationDeg float64   `json:"rise_elevation"`
	CultTime         time.Time `json:"culmination_time"`
	CultElevationDeg float64   `json:"culmination_elevation"`
	CultAzimuthDeg   float64   `json:"culmination_azimuth"`
	SetTime          time.Time `json:"set_time"`
	SetAzimuthDeg    float64   `json:"set_azimuth"`
	SetElevationDeg  float64   `json:"set_elevation"`
	DurationSeconds  float64   `json:"duration_seconds"`
}

// Duration returns the visible span of the pass.
func (p Pass) Duration() time.Duration {
	return p.SetTime.Sub(p.RiseTime)
}

// PredictionResult is the outcome of one run. Passes are ordered by rise
// time and never overlap.
type PredictionResult struct {
	Observer                geometry.Observer `json:"observer"`
	Window                  Window            `json:"window"`
	MinElevationDeg         float64           `json:"min_elevation"`
	MinDurationSeconds      float64           `json:"min_duration_seconds"`
	SunAltitudeThresholdDeg float64           `json:"sun_altitude_threshold"`
	ElementsEpoch           time.Time         `json:"elements_epoch,omitempty"`
	Passes                  []Pass            `json:"passes"`
}

// Next returns the earliest pass, if any.
func (r *PredictionResult) Next() (Pass, bool) {
	if r == nil || len(r.Passes) == 0 {
		return Pass{}, false
	}
	return r.Passes[0], true
}
