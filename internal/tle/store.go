package tle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store holds the current snapshot. Readers load a pointer and never see a
// partially written snapshot; writers replace the whole value.
type Store struct {
	snap atomic.Pointer[Snapshot]
	mu   sync.Mutex // serializes refreshes
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current snapshot, or nil if none has been loaded.
func (s *Store) Get() *Snapshot {
	return s.snap.Load()
}

// Set atomically replaces the current snapshot.
func (s *Store) Set(snap *Snapshot) {
	s.snap.Store(snap)
}

// FetchAge returns how long ago the current snapshot was fetched.
// Returns -1 if no snapshot is loaded.
func (s *Store) FetchAge(now time.Time) time.Duration {
	snap := s.snap.Load()
	if snap == nil {
		return -1
	}
	return now.Sub(snap.Elements.FetchedAt)
}

// Lock acquires the refresh mutex.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the refresh mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
