package sensor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirtyharryiv/iss-spotter/internal/crew"
	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
	"github.com/dirtyharryiv/iss-spotter/internal/passes"
)

var t0 = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

type finderFunc func(ctx context.Context, req passes.Request) (*passes.PredictionResult, error)

func (f finderFunc) Find(ctx context.Context, req passes.Request) (*passes.PredictionResult, error) {
	return f(ctx, req)
}

type crewFunc func(ctx context.Context) (crew.Roster, error)

func (f crewFunc) Fetch(ctx context.Context) (crew.Roster, error) { return f(ctx) }

type recordingSink struct {
	mu    sync.Mutex
	snaps []*Snapshot
	err   error
}

func (s *recordingSink) Publish(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings() Settings {
	return Settings{
		Observer:                geometry.MustObserver(48.001, 7.481, 278),
		MinElevationDeg:         20,
		MinDuration:             2 * time.Minute,
		SunAltitudeThresholdDeg: -6,
		WindowDays:              5,
	}
}

// scripted returns the queued outcomes in order, repeating the last one.
type scripted struct {
	mu       sync.Mutex
	results  []*passes.PredictionResult
	errs     []error
	requests []passes.Request
}

func (s *scripted) Find(_ context.Context, req passes.Request) (*passes.PredictionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	if i >= len(s.errs) {
		i = len(s.errs) - 1
	}
	s.requests = append(s.requests, req)
	if s.errs[i] != nil {
		return nil, s.errs[i]
	}
	res := *s.results[i]
	res.Observer = req.Observer
	res.Window = req.Window
	return &res, nil
}

func newTestAdapter(f PassFinder, c CrewSource, sinks ...Sink) (*Adapter, *time.Time) {
	a := New(f, c, testSettings(), testLogger(), sinks...)
	now := t0
	a.now = func() time.Time { return now }
	return a, &now
}

func TestRefreshNextPass(t *testing.T) {
	f := &scripted{
		results: []*passes.PredictionResult{{
			Passes: []passes.Pass{
				samplePass(t0.Add(time.Hour+4*time.Minute+37*time.Second), 5*time.Minute),
				samplePass(t0.Add(26*time.Hour), 3*time.Minute),
			},
		}},
		errs: []error{nil},
	}
	sink := &recordingSink{}
	a, _ := newTestAdapter(f, nil, sink)

	snap := a.Refresh(context.Background())

	require.NotNil(t, snap)
	assert.True(t, snap.Available)
	assert.Equal(t, "2025-03-01T19:04:00Z", snap.State)
	assert.Len(t, snap.Attributes.AllSightings, 2)
	assert.Empty(t, snap.Error)
	assert.Same(t, snap, a.Snapshot())
	require.Len(t, sink.snaps, 1)
	assert.Same(t, snap, sink.snaps[0])

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, t0, req.Window.Start)
	assert.Equal(t, t0.AddDate(0, 0, 5), req.Window.End)
	assert.Equal(t, 20.0, req.MinElevationDeg)
	assert.Equal(t, 2*time.Minute, req.MinDuration)
	assert.Equal(t, -6.0, req.SunAltitudeThresholdDeg)
}

func TestRefreshPresentationZone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	f := &scripted{
		results: []*passes.PredictionResult{{Passes: []passes.Pass{samplePass(t0.Add(time.Hour+30*time.Second), 3*time.Minute)}}},
		errs:    []error{nil},
	}
	settings := testSettings()
	settings.Location = berlin
	a := New(f, nil, settings, testLogger())
	a.now = func() time.Time { return t0 }

	snap := a.Refresh(context.Background())
	assert.Equal(t, "2025-03-01T20:00:00+01:00", snap.State)
	assert.Equal(t, "2025-03-01T19:00:00+01:00", snap.Attributes.LastUpdated)
}

func TestRefreshNoPasses(t *testing.T) {
	f := &scripted{results: []*passes.PredictionResult{{}}, errs: []error{nil}}
	a, _ := newTestAdapter(f, nil)

	snap := a.Refresh(context.Background())

	assert.False(t, snap.Available)
	assert.Equal(t, StateUnavailable, snap.State)
	assert.Nil(t, snap.Attributes.Sighting)
	assert.Empty(t, snap.Attributes.AllSightings)
	assert.Empty(t, snap.ErrorKind)
}

func TestRefreshFailureWithoutHistory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"unavailable", &geometry.UnavailableError{Reason: "no cache"}, "unavailable"},
		{"stale", &geometry.StaleEphemerisError{Epoch: t0.Add(-20 * 24 * time.Hour), AsOf: t0, MaxAge: 14 * 24 * time.Hour}, "stale"},
		{"propagation", &geometry.PropagationError{Err: errors.New("decayed")}, "propagation"},
		{"other", errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAdapter(&scripted{errs: []error{tt.err}}, nil)

			snap := a.Refresh(context.Background())

			assert.False(t, snap.Available)
			assert.False(t, snap.Cached)
			assert.Equal(t, StateUnavailable, snap.State)
			assert.Equal(t, tt.kind, snap.ErrorKind)
			assert.Equal(t, tt.err.Error(), snap.Error)
			assert.Equal(t, 48.001, snap.Attributes.Latitude)
		})
	}
}

func TestRefreshGracePeriod(t *testing.T) {
	early := samplePass(t0.Add(10*time.Minute), 5*time.Minute)
	later := samplePass(t0.Add(2*time.Hour), 4*time.Minute)
	f := &scripted{
		results: []*passes.PredictionResult{{Passes: []passes.Pass{early, later}}, nil},
		errs:    []error{nil, &geometry.UnavailableError{Reason: "network down"}},
	}
	a, now := newTestAdapter(f, nil)

	first := a.Refresh(context.Background())
	require.True(t, first.Available)
	assert.Equal(t, stateTime(early.RiseTime, time.UTC), first.State)

	// Inside the grace period the ended pass is dropped and the later one
	// becomes the state.
	*now = t0.Add(30 * time.Minute)
	cached := a.Refresh(context.Background())
	assert.True(t, cached.Available)
	assert.True(t, cached.Cached)
	assert.Equal(t, stateTime(later.RiseTime, time.UTC), cached.State)
	assert.Len(t, cached.Attributes.AllSightings, 1)
	assert.Equal(t, "unavailable", cached.ErrorKind)

	// The original result is untouched.
	assert.Len(t, first.Result().Passes, 2)

	*now = t0.Add(61 * time.Minute)
	expired := a.Refresh(context.Background())
	assert.False(t, expired.Available)
	assert.False(t, expired.Cached)
	assert.Equal(t, StateUnavailable, expired.State)
}

func TestRefreshGracePeriodDropsRisenPass(t *testing.T) {
	running := samplePass(t0.Add(20*time.Minute), 10*time.Minute)
	upcoming := samplePass(t0.Add(3*time.Hour), 4*time.Minute)
	f := &scripted{
		results: []*passes.PredictionResult{{Passes: []passes.Pass{running, upcoming}}, nil},
		errs:    []error{nil, &geometry.StaleEphemerisError{}},
	}
	a, now := newTestAdapter(f, nil)
	require.True(t, a.Refresh(context.Background()).Available)

	// The first pass is visible right now but its rise lies in the past.
	*now = t0.Add(25 * time.Minute)
	cached := a.Refresh(context.Background())
	require.True(t, cached.Available)
	assert.True(t, cached.Cached)
	assert.Equal(t, stateTime(upcoming.RiseTime, time.UTC), cached.State)
	require.Len(t, cached.Attributes.AllSightings, 1)
	assert.Equal(t, "stale", cached.ErrorKind)
}

func TestRefreshCrew(t *testing.T) {
	res := &passes.PredictionResult{Passes: []passes.Pass{samplePass(t0.Add(time.Hour), 3*time.Minute)}}

	t.Run("roster attached", func(t *testing.T) {
		c := crewFunc(func(context.Context) (crew.Roster, error) {
			return crew.Roster{Count: 3, Names: []string{"A", "B", "C"}}, nil
		})
		a, _ := newTestAdapter(&scripted{results: []*passes.PredictionResult{res}, errs: []error{nil}}, c)

		snap := a.Refresh(context.Background())
		require.NotNil(t, snap.Attributes.AstronautCount)
		assert.Equal(t, 3, *snap.Attributes.AstronautCount)
		assert.Equal(t, []string{"A", "B", "C"}, snap.Attributes.AstronautNames)
	})

	t.Run("failure leaves the state alone", func(t *testing.T) {
		c := crewFunc(func(context.Context) (crew.Roster, error) {
			return crew.Roster{}, errors.New("open-notify down")
		})
		a, _ := newTestAdapter(&scripted{results: []*passes.PredictionResult{res}, errs: []error{nil}}, c)

		snap := a.Refresh(context.Background())
		assert.True(t, snap.Available)
		assert.Nil(t, snap.Attributes.AstronautCount)
	})

	t.Run("last roster survives a failed fetch", func(t *testing.T) {
		calls := 0
		c := crewFunc(func(context.Context) (crew.Roster, error) {
			calls++
			if calls == 1 {
				return crew.Roster{Count: 1, Names: []string{"A"}}, nil
			}
			return crew.Roster{}, errors.New("timeout")
		})
		a, _ := newTestAdapter(&scripted{results: []*passes.PredictionResult{res}, errs: []error{nil}}, c)

		a.Refresh(context.Background())
		snap := a.Refresh(context.Background())
		require.NotNil(t, snap.Attributes.AstronautCount)
		assert.Equal(t, 1, *snap.Attributes.AstronautCount)
	})
}

func TestRefreshSinkErrorIsNotFatal(t *testing.T) {
	f := &scripted{results: []*passes.PredictionResult{{}}, errs: []error{nil}}
	failing := &recordingSink{err: errors.New("broker gone")}
	ok := &recordingSink{}
	a, _ := newTestAdapter(f, nil, failing, ok)

	snap := a.Refresh(context.Background())
	require.NotNil(t, snap)
	assert.Len(t, failing.snaps, 1)
	assert.Len(t, ok.snaps, 1)
}

func TestRefreshCancelledKeepsSnapshot(t *testing.T) {
	f := &scripted{
		results: []*passes.PredictionResult{{Passes: []passes.Pass{samplePass(t0.Add(time.Hour), 3*time.Minute)}}, nil},
		errs:    []error{nil, context.Canceled},
	}
	a, _ := newTestAdapter(f, nil)
	first := a.Refresh(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := a.Refresh(ctx)
	assert.Same(t, first, got)
	assert.Same(t, first, a.Snapshot())
}

func TestTriggerCoalesces(t *testing.T) {
	a := New(&scripted{results: []*passes.PredictionResult{{}}, errs: []error{nil}}, nil, testSettings(), testLogger())
	assert.True(t, a.Trigger())
	assert.False(t, a.Trigger())
}

func TestRunRefreshesOnTrigger(t *testing.T) {
	calls := make(chan struct{}, 8)
	f := finderFunc(func(_ context.Context, req passes.Request) (*passes.PredictionResult, error) {
		calls <- struct{}{}
		return &passes.PredictionResult{Observer: req.Observer, Window: req.Window}, nil
	})
	settings := testSettings()
	settings.ScanInterval = time.Hour
	a := New(f, nil, settings, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	waitCall := func() {
		t.Helper()
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatal("refresh did not run")
		}
	}

	waitCall()
	require.Eventually(t, func() bool { return a.Snapshot() != nil }, 5*time.Second, 10*time.Millisecond)
	a.Trigger()
	waitCall()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{}.withDefaults()
	assert.Equal(t, 60*time.Second, s.ScanInterval)
	assert.Equal(t, 60*time.Minute, s.GracePeriod)
	assert.Equal(t, 5, s.WindowDays)
	assert.Equal(t, time.UTC, s.Location)
}
