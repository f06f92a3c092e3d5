package geometry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UnavailableError reports that no orbital elements could be obtained,
// neither from the in-memory snapshot, the disk cache nor a fresh fetch.
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("orbital elements unavailable: %s: %v", e.Reason, e.Err)
	}
	return "orbital elements unavailable: " + e.Reason
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// StaleEphemerisError reports elements whose age exceeds the configured maximum.
type StaleEphemerisError struct {
	Epoch  time.Time
	AsOf   time.Time
	MaxAge time.Duration
}

// Age returns how far the reference time lies from the element epoch.
func (e *StaleEphemerisError) Age() time.Duration {
	return e.AsOf.Sub(e.Epoch)
}

func (e *StaleEphemerisError) Error() string {
	return fmt.Sprintf("orbital elements stale: epoch %s is %s from %s (max %s)",
		e.Epoch.UTC().Format(time.RFC3339), e.Age().Round(time.Minute),
		e.AsOf.UTC().Format(time.RFC3339), e.MaxAge)
}

// PropagationError reports a failed or diverging position computation.
// At is zero when the failure happened while initialising the model.
type PropagationError struct {
	At  time.Time
	Err error
}

func (e *PropagationError) Error() string {
	if e.At.IsZero() {
		return fmt.Sprintf("propagation: %v", e.Err)
	}
	return fmt.Sprintf("propagation at %s: %v", e.At.UTC().Format(time.RFC3339), e.Err)
}

func (e *PropagationError) Unwrap() error { return e.Err }

// ErrorKind classifies err into a short label for logs and metric labels.
func ErrorKind(err error) string {
	var (
		unavailable *UnavailableError
		stale       *StaleEphemerisError
		propagation *PropagationError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &stale):
		return "stale"
	case errors.As(err, &propagation):
		return "propagation"
	case errors.As(err, &unavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
