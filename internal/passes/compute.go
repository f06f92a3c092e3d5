package passes

import (
	"context"
	"time"

	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
)

const (
	coarseStep    = 30 * time.Second // window scan
	cultStep      = 10 * time.Second // culmination sampling
	resolution    = time.Second      // bisection and ternary search stop here
	minPassLength = 2 * time.Second  // shortest span with an interior culmination
)

// Evaluator computes the sky state for an observer at an instant.
// *geometry.Engine is the production implementation.
type Evaluator interface {
	Evaluate(obs geometry.Observer, t time.Time) (geometry.SampleEvent, error)
}

// Compute scans req.Window for visible passes. It performs no I/O and is
// deterministic for a given evaluator and request.
//
// The window is sampled every 30 s and each change of the visibility
// predicate is bisected to the second. A pass starts at the first visible
// second and ends at the last one. Passes already in progress at the window
// edges are clipped to the window.
//
// ctx is only consulted between passes. On cancellation the passes found so
// far are returned together with ctx.Err(). Evaluator errors abort the run.
func Compute(ctx context.Context, ev Evaluator, req Request) (*PredictionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s := &scanner{ev: ev, req: req}
	res := &PredictionResult{
		Observer:                req.Observer,
		Window:                  req.Window,
		MinElevationDeg:         req.MinElevationDeg,
		MinDurationSeconds:      req.MinDuration.Seconds(),
		SunAltitudeThresholdDeg: req.SunAltitudeThresholdDeg,
		Passes:                  []Pass{},
	}

	start := req.Window.Start.UTC().Truncate(time.Second)
	if start.Before(req.Window.Start) {
		start = start.Add(time.Second)
	}
	last := req.Window.End.UTC().Add(-time.Nanosecond).Truncate(time.Second)
	if last.Before(start) {
		return res, nil
	}

	cur, err := s.sample(start)
	if err != nil {
		return nil, err
	}
	var (
		inPass bool
		rise   geometry.SampleEvent
	)
	if s.visible(cur) {
		inPass, rise = true, cur
	}

	for cur.Time.Before(last) {
		if !inPass {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		t := cur.Time.Add(coarseStep)
		if t.After(last) {
			t = last
		}
		next, err := s.sample(t)
		if err != nil {
			return nil, err
		}

		switch vis := s.visible(next); {
		case !inPass && vis:
			_, first, err := s.bisect(cur, next)
			if err != nil {
				return nil, err
			}
			inPass, rise = true, first
		case inPass && !vis:
			lastVisible, _, err := s.bisect(cur, next)
			if err != nil {
				return nil, err
			}
			inPass = false
			if err := s.finish(res, rise, lastVisible); err != nil {
				return nil, err
			}
		}
		cur = next
	}

	if inPass {
		if err := s.finish(res, rise, cur); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type scanner struct {
	ev  Evaluator
	req Request
}

func (s *scanner) sample(t time.Time) (geometry.SampleEvent, error) {
	e, err := s.ev.Evaluate(s.req.Observer, t)
	e.Time = t
	return e, err
}

func (s *scanner) visible(e geometry.SampleEvent) bool {
	return e.ObjectAltitudeDeg >= s.req.MinElevationDeg &&
		e.SunAltitudeDeg < s.req.SunAltitudeThresholdDeg &&
		e.ObjectSunlit
}

// bisect narrows a bracket whose ends disagree on visibility down to two
// adjacent seconds and returns them.
func (s *scanner) bisect(lo, hi geometry.SampleEvent) (geometry.SampleEvent, geometry.SampleEvent, error) {
	loVisible := s.visible(lo)
	for hi.Time.Sub(lo.Time) > resolution {
		mid := lo.Time.Add(hi.Time.Sub(lo.Time) / 2).Truncate(time.Second)
		m, err := s.sample(mid)
		if err != nil {
			return lo, hi, err
		}
		if s.visible(m) == loVisible {
			lo = m
		} else {
			hi = m
		}
	}
	return lo, hi, nil
}

// finish applies the duration filters, locates the culmination and appends
// the pass.
func (s *scanner) finish(res *PredictionResult, rise, set geometry.SampleEvent) error {
	span := set.Time.Sub(rise.Time)
	if span < minPassLength || span < s.req.MinDuration {
		return nil
	}

	cult, err := s.culminate(rise.Time.Add(resolution), set.Time.Add(-resolution))
	if err != nil {
		return err
	}

	res.Passes = append(res.Passes, Pass{
		RiseTime:         rise.Time,
		RiseAzimuthDeg:   rise.ObjectAzimuthDeg,
		RiseElevationDeg: rise.ObjectAltitudeDeg,
		CultTime:         cult.Time,
		CultElevationDeg: cult.ObjectAltitudeDeg,
		CultAzimuthDeg:   cult.ObjectAzimuthDeg,
		SetTime:          set.Time,
		SetAzimuthDeg:    set.ObjectAzimuthDeg,
		SetElevationDeg:  set.ObjectAltitudeDeg,
		DurationSeconds:  span.Seconds(),
	})
	return nil
}

// culminate finds the highest sample in [lo, hi]: a 10 s sweep followed by a
// ternary search around the best sweep sample. Ties keep the earliest instant.
func (s *scanner) culminate(lo, hi time.Time) (geometry.SampleEvent, error) {
	best, err := s.sample(lo)
	if err != nil {
		return best, err
	}
	higher := func(t time.Time) error {
		e, err := s.sample(t)
		if err != nil {
			return err
		}
		if e.ObjectAltitudeDeg > best.ObjectAltitudeDeg ||
			(e.ObjectAltitudeDeg == best.ObjectAltitudeDeg && e.Time.Before(best.Time)) {
			best = e
		}
		return nil
	}

	for t := lo.Add(cultStep); t.Before(hi); t = t.Add(cultStep) {
		if err := higher(t); err != nil {
			return best, err
		}
	}
	if hi.After(lo) {
		if err := higher(hi); err != nil {
			return best, err
		}
	}

	a, b := best.Time.Add(-cultStep), best.Time.Add(cultStep)
	if a.Before(lo) {
		a = lo
	}
	if b.After(hi) {
		b = hi
	}
	for b.Sub(a) > 2*resolution {
		third := (b.Sub(a) / 3).Truncate(resolution)
		m1, err := s.sample(a.Add(third))
		if err != nil {
			return best, err
		}
		m2, err := s.sample(b.Add(-third))
		if err != nil {
			return best, err
		}
		if m1.ObjectAltitudeDeg < m2.ObjectAltitudeDeg {
			a = m1.Time
		} else {
			b = m2.Time
		}
	}
	for t := a; !t.After(b); t = t.Add(resolution) {
		if err := higher(t); err != nil {
			return best, err
		}
	}
	return best, nil
}
