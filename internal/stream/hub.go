// Package stream pushes sensor snapshots to dashboards over Server-Sent
// Events. Clients connect to GET /api/v1/sensor/stream and receive the
// current snapshot immediately, then every new one as the sensor refreshes.
//
// SSE message format:
//
//	event: sensor
//	data: {"type":"sensor","available":true,"state":"2025-03-01T19:04:00Z",...}
//
// Keep-alive comments (":\n\n") are sent every KeepaliveInterval while the
// sensor is quiet.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dirtyharryiv/iss-spotter/internal/sensor"
)

// Config holds streaming limits.
type Config struct {
	MaxConcurrentPerIP int           // default: 5
	MaxTotal           int           // default: 100
	KeepaliveInterval  time.Duration // default: 30s
	TrustProxy         bool          // limit by forwarded client IP
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentPerIP <= 0 {
		c.MaxConcurrentPerIP = 5
	}
	if c.MaxTotal <= 0 {
		c.MaxTotal = 100
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 30 * time.Second
	}
	return c
}

// Hub fans sensor snapshots out to connected streams. It implements
// sensor.Sink, so the adapter publishes to it like any other sink.
type Hub struct {
	cfg     Config
	limiter *streamLimiter
	logger  *slog.Logger

	mu     sync.Mutex
	latest *sensor.Snapshot
	subs   map[chan *sensor.Snapshot]struct{}
}

// NewHub creates a Hub with no subscribers.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		cfg:     cfg,
		limiter: newStreamLimiter(cfg.MaxConcurrentPerIP, cfg.MaxTotal),
		logger:  logger,
		subs:    make(map[chan *sensor.Snapshot]struct{}),
	}
}

// Publish records snap as the latest snapshot and hands it to every
// subscriber. A slow subscriber only ever holds the newest snapshot; older
// undelivered ones are dropped.
func (h *Hub) Publish(_ context.Context, snap *sensor.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = snap
	for ch := range h.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return nil
}

// subscribe registers a subscriber and returns the snapshot to send first.
func (h *Hub) subscribe() (<-chan *sensor.Snapshot, *sensor.Snapshot, func()) {
	ch := make(chan *sensor.Snapshot, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	latest := h.latest
	h.mu.Unlock()

	return ch, latest, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// Subscribers returns the number of connected streams.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
