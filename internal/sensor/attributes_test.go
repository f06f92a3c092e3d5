package sensor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirtyharryiv/iss-spotter/internal/crew"
	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
	"github.com/dirtyharryiv/iss-spotter/internal/passes"
)

func TestCompass(t *testing.T) {
	tests := []struct {
		az   float64
		want string
	}{
		{0, "N"},
		{11.24, "N"},
		{11.25, "NNE"},
		{45, "NE"},
		{90, "E"},
		{168.75, "S"},
		{180, "S"},
		{247.5, "WSW"},
		{348.74, "NNW"},
		{348.75, "N"},
		{359.9, "N"},
		{360, "N"},
		{-90, "W"},
		{725, "N"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compass(tt.az), "Compass(%v)", tt.az)
	}
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "less than 1 min", humanDuration(59*time.Second))
	assert.Equal(t, "1 min", humanDuration(time.Minute))
	assert.Equal(t, "4 min", humanDuration(4*time.Minute+59*time.Second))
	assert.Equal(t, "11 min", humanDuration(11*time.Minute))
}

func TestStateTimeTruncatesToMinute(t *testing.T) {
	rise := time.Date(2025, 3, 1, 19, 4, 37, 0, time.UTC)
	assert.Equal(t, "2025-03-01T19:04:00Z", stateTime(rise, time.UTC))

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T20:04:00+01:00", stateTime(rise, berlin))
}

func samplePass(rise time.Time, length time.Duration) passes.Pass {
	return passes.Pass{
		RiseTime:         rise,
		RiseAzimuthDeg:   247.3,
		RiseElevationDeg: 20,
		CultTime:         rise.Add(length / 2),
		CultElevationDeg: 63.47,
		CultAzimuthDeg:   181.2,
		SetTime:          rise.Add(length),
		SetAzimuthDeg:    92.04,
		SetElevationDeg:  20,
		DurationSeconds:  length.Seconds(),
	}
}

func TestNewAttributes(t *testing.T) {
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	res := &passes.PredictionResult{
		Observer:      geometry.MustObserver(48.001, 7.481, 278),
		ElementsEpoch: time.Date(2025, 2, 28, 4, 19, 40, 0, time.UTC),
		Passes: []passes.Pass{
			samplePass(now.Add(time.Hour+37*time.Second), 4*time.Minute+30*time.Second),
			samplePass(now.Add(25*time.Hour), 40*time.Second),
		},
	}
	roster := &crew.Roster{Count: 2, Names: []string{"Sunita Williams", "Butch Wilmore"}}

	attrs := newAttributes(res, roster, time.UTC, now)

	require.NotNil(t, attrs.Sighting)
	assert.Equal(t, "2025-03-01T19:00:00Z", attrs.Date)
	assert.Equal(t, "4 min", attrs.Duration)
	assert.Equal(t, 63.5, attrs.MaxElevation)
	assert.Equal(t, "WSW", attrs.Appear)
	assert.Equal(t, "S", attrs.Culminate)
	assert.Equal(t, "E", attrs.Disappear)
	assert.Equal(t, 92.0, attrs.DisappearAzimuth)
	require.Len(t, attrs.AllSightings, 2)
	assert.Equal(t, "less than 1 min", attrs.AllSightings[1].Duration)
	assert.Equal(t, 48.001, attrs.Latitude)
	assert.Equal(t, "2025-02-28T04:19:40Z", attrs.ElementsEpoch)
	require.NotNil(t, attrs.AstronautCount)
	assert.Equal(t, 2, *attrs.AstronautCount)
	assert.Equal(t, "2025-03-01T18:00:00Z", attrs.LastUpdated)
}

func TestAttributesJSONFlattensNextPass(t *testing.T) {
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	res := &passes.PredictionResult{
		Observer: geometry.MustObserver(48.001, 7.481, 0),
		Passes:   []passes.Pass{samplePass(now.Add(time.Hour), 3*time.Minute)},
	}

	raw, err := json.Marshal(newAttributes(res, nil, time.UTC, now))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "2025-03-01T19:00:00Z", got["date"])
	assert.Equal(t, "3 min", got["duration"])
	assert.Contains(t, got, "all_sightings")
	assert.NotContains(t, got, "astronaut_count")
	assert.NotContains(t, got, "elements_epoch")
}

func TestAttributesJSONWithoutPasses(t *testing.T) {
	res := &passes.PredictionResult{Observer: geometry.MustObserver(0, 0, 0)}

	raw, err := json.Marshal(newAttributes(res, nil, time.UTC, time.Now()))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.NotContains(t, got, "date")
	assert.Equal(t, []any{}, got["all_sightings"])
}
