package sensor

import (
	"fmt"
	"math"
	"time"

	"github.com/dirtyharryiv/iss-spotter/internal/crew"
	"github.com/dirtyharryiv/iss-spotter/internal/passes"
)

// StateUnavailable is reported when no qualifying pass exists or the
// prediction failed.
const StateUnavailable = "unavailable"

// Sighting is one pass as exposed to Home Assistant.
type Sighting struct {
	Date               string  `json:"date"`
	Duration           string  `json:"duration"`
	DurationSeconds    float64 `json:"duration_seconds"`
	MaxElevation       float64 `json:"max_elevation"`
	Appear             string  `json:"appear"`
	AppearAzimuth      float64 `json:"appear_azimuth"`
	Culminate          string  `json:"culminate"`
	CulminateAzimuth   float64 `json:"culminate_azimuth"`
	CulminateElevation float64 `json:"culminate_elevation"`
	Disappear          string  `json:"disappear"`
	DisappearAzimuth   float64 `json:"disappear_azimuth"`
}

// Attributes are the sensor's extra state attributes. The next pass is
// flattened into the top level; every pass of the window is listed under
// all_sightings.
type Attributes struct {
	*Sighting

	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	Elevation      float64    `json:"elevation"`
	AllSightings   []Sighting `json:"all_sightings"`
	AstronautCount *int       `json:"astronaut_count,omitempty"`
	AstronautNames []string   `json:"astronaut_names,omitempty"`
	ElementsEpoch  string     `json:"elements_epoch,omitempty"`
	LastUpdated    string     `json:"last_updated"`
}

// stateTime formats an instant as the sensor state: truncated to the minute,
// RFC 3339 in the presentation zone.
func stateTime(t time.Time, loc *time.Location) string {
	return t.Truncate(time.Minute).In(loc).Format(time.RFC3339)
}

func newSighting(p passes.Pass, loc *time.Location) Sighting {
	return Sighting{
		Date:               stateTime(p.RiseTime, loc),
		Duration:           humanDuration(p.Duration()),
		DurationSeconds:    p.DurationSeconds,
		MaxElevation:       round1(p.CultElevationDeg),
		Appear:             Compass(p.RiseAzimuthDeg),
		AppearAzimuth:      round1(p.RiseAzimuthDeg),
		Culminate:          Compass(p.CultAzimuthDeg),
		CulminateAzimuth:   round1(p.CultAzimuthDeg),
		CulminateElevation: round1(p.CultElevationDeg),
		Disappear:          Compass(p.SetAzimuthDeg),
		DisappearAzimuth:   round1(p.SetAzimuthDeg),
	}
}

func newAttributes(res *passes.PredictionResult, roster *crew.Roster, loc *time.Location, now time.Time) Attributes {
	attrs := Attributes{
		Latitude:     res.Observer.LatitudeDeg,
		Longitude:    res.Observer.LongitudeDeg,
		Elevation:    res.Observer.ElevationM,
		AllSightings: make([]Sighting, 0, len(res.Passes)),
		LastUpdated:  now.In(loc).Format(time.RFC3339),
	}
	if !res.ElementsEpoch.IsZero() {
		attrs.ElementsEpoch = res.ElementsEpoch.UTC().Format(time.RFC3339)
	}
	for _, p := range res.Passes {
		attrs.AllSightings = append(attrs.AllSightings, newSighting(p, loc))
	}
	if len(attrs.AllSightings) > 0 {
		next := attrs.AllSightings[0]
		attrs.Sighting = &next
	}
	if roster != nil {
		count := roster.Count
		attrs.AstronautCount = &count
		attrs.AstronautNames = roster.Names
	}
	return attrs
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Compass maps an azimuth in degrees to one of 16 compass points, each
// covering 22.5 degrees centred on its bearing.
func Compass(azimuthDeg float64) string {
	az := math.Mod(azimuthDeg, 360)
	if az < 0 {
		az += 360
	}
	return compassPoints[int(math.Floor(az/22.5+0.5))%16]
}

// humanDuration renders whole minutes, the way the sightings table shows them.
// Passes under a minute read "less than 1 min".
func humanDuration(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes < 1 {
		return "less than 1 min"
	}
	return fmt.Sprintf("%d min", minutes)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
