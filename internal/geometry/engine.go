package geometry

import (
	"time"

	"github.com/dirtyharryiv/iss-spotter/internal/propagation"
)

// SampleEvent is the state of the sky at one instant for one observer.
type SampleEvent struct {
	Time              time.Time
	ObjectAltitudeDeg float64
	ObjectAzimuthDeg  float64
	ObjectRangeKm     float64
	SunAltitudeDeg    float64
	ObjectSunlit      bool
}

// Config holds Geometry Engine settings.
type Config struct {
	MaxElementsAge time.Duration // default: DefaultMaxElementsAge
}

// Engine evaluates sky geometry against one fixed elements snapshot.
// It holds no mutable state; Evaluate is safe for concurrent use and
// deterministic for a given (observer, instant).
type Engine struct {
	elements OrbitalElements
	prop     *propagation.SGP4Propagator
}

// NewEngine binds an elements snapshot to the reference time of a prediction
// run. Staleness is judged once, against asOf.
func NewEngine(el OrbitalElements, asOf time.Time, cfg Config) (*Engine, error) {
	maxAge := cfg.MaxElementsAge
	if maxAge <= 0 {
		maxAge = DefaultMaxElementsAge
	}

	if age := el.AgeAt(asOf); age > maxAge || age < -maxAge {
		return nil, &StaleEphemerisError{Epoch: el.Epoch, AsOf: asOf, MaxAge: maxAge}
	}

	prop, err := propagation.NewSGP4Propagator(el.Line1, el.Line2, el.NORADID)
	if err != nil {
		return nil, &PropagationError{Err: err}
	}

	return &Engine{elements: el, prop: prop}, nil
}

// Elements returns the snapshot the engine was built from.
func (e *Engine) Elements() OrbitalElements {
	return e.elements
}

// Evaluate computes the object's topocentric position, the Sun's altitude and
// the object's illumination for obs at t.
func (e *Engine) Evaluate(obs Observer, t time.Time) (SampleEvent, error) {
	t = t.UTC()
	teme, err := e.prop.PositionAt(t)
	if err != nil {
		return SampleEvent{}, &PropagationError{At: t, Err: err}
	}

	gmst := GMST(t)
	sun := SunPosition(t)

	look := obs.LookAt(TEMEToECEF(teme, gmst))
	sunLook := obs.LookAt(TEMEToECEF(sun, gmst))

	return SampleEvent{
		Time:              t,
		ObjectAltitudeDeg: look.ElevationDeg,
		ObjectAzimuthDeg:  look.AzimuthDeg,
		ObjectRangeKm:     look.RangeKm,
		SunAltitudeDeg:    sunLook.ElevationDeg,
		ObjectSunlit:      Sunlit(teme, sun),
	}, nil
}
