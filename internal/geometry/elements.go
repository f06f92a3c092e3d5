package geometry

import (
	"context"
	"time"
)

// ISSNoradID is the catalog number of the tracked object.
const ISSNoradID = 25544

// DefaultMaxElementsAge is the age beyond which ISS elements are unreliable.
const DefaultMaxElementsAge = 14 * 24 * time.Hour

// OrbitalElements is an immutable two-line element snapshot for one object.
type OrbitalElements struct {
	Name      string    `json:"name"`
	NORADID   int       `json:"norad_id"`
	Epoch     time.Time `json:"epoch"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2"`
	FetchedAt time.Time `json:"fetched_at"`
}

// AgeAt returns the age of the elements relative to t.
func (el OrbitalElements) AgeAt(t time.Time) time.Duration {
	return t.Sub(el.Epoch)
}

// ElementsProvider supplies the current orbital elements. Implementations
// return *UnavailableError when no snapshot exists and none can be obtained.
type ElementsProvider interface {
	CurrentElements(ctx context.Context) (OrbitalElements, error)
}
