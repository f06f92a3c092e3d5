package tle

import (
	"time"

	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
)

// Entry is one named two-line element set from a 3-line feed.
type Entry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Elements converts the entry into an immutable elements snapshot.
func (e Entry) Elements(fetchedAt time.Time) geometry.OrbitalElements {
	return geometry.OrbitalElements{
		Name:      e.Name,
		NORADID:   e.NORADID,
		Epoch:     e.Epoch,
		Line1:     e.Line1,
		Line2:     e.Line2,
		FetchedAt: fetchedAt,
	}
}

// Snapshot is the unit swapped into the Store: the elements in use and the
// source they were read from (a URL, or "cache").
type Snapshot struct {
	Elements geometry.OrbitalElements
	Source   string
}

// Metadata summarises the current snapshot for the API.
type Metadata struct {
	Name       string    `json:"name"`
	NORADID    int       `json:"norad_id"`
	Epoch      time.Time `json:"epoch"`
	FetchedAt  time.Time `json:"fetched_at"`
	Source     string    `json:"source"`
	AgeSeconds float64   `json:"age_seconds"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2"`
}
