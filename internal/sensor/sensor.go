// Package sensor turns pass predictions into a Home Assistant style sensor:
// a timestamp state for the next visible pass plus structured attributes.
package sensor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dirtyharryiv/iss-spotter/internal/crew"
	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
	"github.com/dirtyharryiv/iss-spotter/internal/metrics"
	"github.com/dirtyharryiv/iss-spotter/internal/passes"
)

// PassFinder runs one prediction. *passes.Finder implements it.
type PassFinder interface {
	Find(ctx context.Context, req passes.Request) (*passes.PredictionResult, error)
}

// CrewSource returns the current ISS crew. *crew.Fetcher implements it.
type CrewSource interface {
	Fetch(ctx context.Context) (crew.Roster, error)
}

// Sink receives every new snapshot, for example an MQTT publisher.
type Sink interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

// Settings configure the adapter.
type Settings struct {
	Observer                geometry.Observer
	MinElevationDeg         float64
	MinDuration             time.Duration
	SunAltitudeThresholdDeg float64
	WindowDays              int
	ScanInterval            time.Duration  // default: 60s
	GracePeriod             time.Duration  // default: 60m
	Location                *time.Location // presentation zone; default: UTC
}

func (s Settings) withDefaults() Settings {
	if s.WindowDays <= 0 {
		s.WindowDays = 5
	}
	if s.ScanInterval <= 0 {
		s.ScanInterval = 60 * time.Second
	}
	if s.GracePeriod <= 0 {
		s.GracePeriod = 60 * time.Minute
	}
	if s.Location == nil {
		s.Location = time.UTC
	}
	return s
}

// Snapshot is the published sensor value. Snapshots are immutable once
// stored.
type Snapshot struct {
	Available  bool       `json:"available"`
	State      string     `json:"state"`
	Attributes Attributes `json:"attributes"`
	UpdatedAt  time.Time  `json:"updated_at"`
	// Cached is set when a failed refresh is covered by the grace period.
	Cached    bool   `json:"cached,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	result *passes.PredictionResult
}

// Result returns the prediction the snapshot was built from, if any.
func (s *Snapshot) Result() *passes.PredictionResult {
	return s.result
}

// Adapter periodically predicts passes and publishes sensor snapshots.
type Adapter struct {
	finder   PassFinder
	crew     CrewSource
	sinks    []Sink
	settings Settings
	logger   *slog.Logger
	now      func() time.Time

	current atomic.Pointer[Snapshot]
	trigger chan struct{}

	mu         sync.Mutex // serializes Refresh
	lastGood   *passes.PredictionResult
	lastGoodAt time.Time
	lastRoster *crew.Roster
}

// New creates an Adapter. crewSource may be nil.
func New(finder PassFinder, crewSource CrewSource, settings Settings, logger *slog.Logger, sinks ...Sink) *Adapter {
	return &Adapter{
		finder:   finder,
		crew:     crewSource,
		sinks:    sinks,
		settings: settings.withDefaults(),
		logger:   logger,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
}

// Snapshot returns the latest snapshot, or nil before the first refresh.
func (a *Adapter) Snapshot() *Snapshot {
	return a.current.Load()
}

// Trigger requests an out-of-schedule refresh. It never blocks; requests
// arriving while one is pending are coalesced.
func (a *Adapter) Trigger() bool {
	select {
	case a.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run refreshes immediately, then on every scan interval and on every
// trigger, until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) {
	ticker := time.NewTicker(a.settings.ScanInterval)
	defer ticker.Stop()

	a.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-a.trigger:
		}
		a.Refresh(ctx)
	}
}

// Refresh runs one prediction, maps it to a snapshot, stores it and hands it
// to the sinks. Prediction failures never escape: they become an unavailable
// snapshot, or the last good prediction while inside the grace period.
func (a *Adapter) Refresh(ctx context.Context) *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	req := passes.Request{
		Observer:                a.settings.Observer,
		Window:                  passes.NewWindow(now, a.settings.WindowDays),
		MinElevationDeg:         a.settings.MinElevationDeg,
		MinDuration:             a.settings.MinDuration,
		SunAltitudeThresholdDeg: a.settings.SunAltitudeThresholdDeg,
	}

	var (
		wg     sync.WaitGroup
		roster *crew.Roster
	)
	if a.crew != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			roster = a.fetchCrew(ctx)
		}()
	}
	res, err := a.finder.Find(ctx, req)
	wg.Wait()

	if roster != nil {
		a.lastRoster = roster
	}

	var snap *Snapshot
	switch {
	case err == nil:
		a.lastGood, a.lastGoodAt = res, now
		snap = a.build(res, now)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// Shutting down; keep whatever is published.
		return a.current.Load()
	default:
		a.logFailure(err, now)
		snap = a.fallback(err, now)
	}

	a.current.Store(snap)
	metrics.SetSensorAvailable(snap.Available)
	for _, s := range a.sinks {
		if err := s.Publish(ctx, snap); err != nil {
			a.logger.Warn("sink publish failed", "error", err)
		}
	}
	return snap
}

func (a *Adapter) build(res *passes.PredictionResult, now time.Time) *Snapshot {
	loc := a.settings.Location
	snap := &Snapshot{
		State:      StateUnavailable,
		Attributes: newAttributes(res, a.lastRoster, loc, now),
		UpdatedAt:  now,
		result:     res,
	}
	if next, ok := res.Next(); ok {
		snap.Available = true
		snap.State = stateTime(next.RiseTime, loc)
	}
	return snap
}

// fallback serves the last good prediction while it is younger than the
// grace period, minus the passes that have already risen. The state never
// shows a rise time in the past.
func (a *Adapter) fallback(err error, now time.Time) *Snapshot {
	if a.lastGood != nil && now.Sub(a.lastGoodAt) <= a.settings.GracePeriod {
		pruned := *a.lastGood
		pruned.Passes = make([]passes.Pass, 0, len(a.lastGood.Passes))
		for _, p := range a.lastGood.Passes {
			if !p.RiseTime.Before(now) {
				pruned.Passes = append(pruned.Passes, p)
			}
		}
		a.logger.Info("serving last good prediction within grace period",
			"last_success", a.lastGoodAt.Format(time.RFC3339),
			"remaining_passes", len(pruned.Passes),
		)
		snap := a.build(&pruned, now)
		snap.Cached = true
		snap.Error = err.Error()
		snap.ErrorKind = geometry.ErrorKind(err)
		return snap
	}

	obs := a.settings.Observer
	return &Snapshot{
		State: StateUnavailable,
		Attributes: Attributes{
			Latitude:     obs.LatitudeDeg,
			Longitude:    obs.LongitudeDeg,
			Elevation:    obs.ElevationM,
			AllSightings: []Sighting{},
			LastUpdated:  now.In(a.settings.Location).Format(time.RFC3339),
		},
		UpdatedAt: now,
		Error:     err.Error(),
		ErrorKind: geometry.ErrorKind(err),
	}
}

// logFailure logs each failure class distinctly so operators can tell a
// network outage from old elements or a broken element set.
func (a *Adapter) logFailure(err error, now time.Time) {
	var (
		unavailable *geometry.UnavailableError
		stale       *geometry.StaleEphemerisError
		propagation *geometry.PropagationError
	)
	switch {
	case errors.As(err, &stale):
		a.logger.Warn("orbital elements too old, sensor unavailable",
			"epoch", stale.Epoch.Format(time.RFC3339),
			"age_hours", stale.Age().Hours(),
			"max_age_hours", stale.MaxAge.Hours(),
		)
	case errors.As(err, &unavailable):
		a.logger.Warn("orbital elements unavailable, sensor unavailable",
			"reason", unavailable.Reason,
			"error", err,
		)
	case errors.As(err, &propagation):
		a.logger.Error("propagation failed, sensor unavailable", "error", err)
	default:
		a.logger.Error("prediction failed, sensor unavailable", "error", err, "at", now.Format(time.RFC3339))
	}
}

func (a *Adapter) fetchCrew(ctx context.Context) *crew.Roster {
	roster, err := a.crew.Fetch(ctx)
	if err != nil {
		a.logger.Warn("crew roster unavailable", "error", err)
		return nil
	}
	return &roster
}
