// Package tle fetches, caches and serves the orbital elements of the tracked
// object.
package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dirtyharryiv/iss-spotter/internal/geometry"
	"github.com/dirtyharryiv/iss-spotter/internal/metrics"
)

const tracerName = "github.com/dirtyharryiv/iss-spotter/internal/tle"

// ErrNotInFeed reports a payload that parsed but did not carry the tracked object.
var ErrNotInFeed = errors.New("tracked object not in feed")

// Config controls refresh scheduling.
type Config struct {
	NORADID         int           // default: geometry.ISSNoradID
	RefreshInterval time.Duration // default: 12h
	CheckInterval   time.Duration // how often Run looks at the snapshot age; default: 10m
	MaxAttempts     uint          // fetch attempts per refresh; default: 5
	InitialBackoff  time.Duration // default: 2s
	MaxBackoff      time.Duration // default: 2m
}

func (c Config) withDefaults() Config {
	if c.NORADID == 0 {
		c.NORADID = geometry.ISSNoradID
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 12 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 10 * time.Minute
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 2 * time.Minute
	}
	return c
}

// Provider implements geometry.ElementsProvider over a Fetcher, a disk Cache
// and an atomic Store.
type Provider struct {
	fetcher *Fetcher
	cache   *Cache
	store   *Store
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewProvider creates a Provider. cache may be nil to disable persistence.
func NewProvider(fetcher *Fetcher, cache *Cache, cfg Config, logger *slog.Logger) *Provider {
	return &Provider{
		fetcher: fetcher,
		cache:   cache,
		store:   NewStore(),
		cfg:     cfg.withDefaults(),
		logger:  logger,
		now:     time.Now,
	}
}

// CurrentElements returns the current snapshot. With an empty store it falls
// back to the disk cache, then to one synchronous fetch.
func (p *Provider) CurrentElements(ctx context.Context) (geometry.OrbitalElements, error) {
	if snap := p.store.Get(); snap != nil {
		return snap.Elements, nil
	}

	if err := p.LoadCache(); err == nil {
		return p.store.Get().Elements, nil
	}

	if err := p.Refresh(ctx); err != nil {
		return geometry.OrbitalElements{}, &geometry.UnavailableError{
			Reason: "no cached elements and fetch failed",
			Err:    err,
		}
	}
	return p.store.Get().Elements, nil
}

// LoadCache installs the newest cached payload that carries the tracked object.
func (p *Provider) LoadCache() error {
	if p.cache == nil {
		return errNoCache
	}

	err := p.cache.Newest(func(data []byte, ts time.Time) bool {
		entries, err := Parse(bytes.NewReader(data), p.logger)
		if err != nil {
			return false
		}
		e, ok := Select(entries, p.cfg.NORADID)
		if !ok {
			return false
		}
		p.store.Set(&Snapshot{Elements: e.Elements(ts), Source: "cache"})
		p.logger.Info("loaded elements from cache",
			"norad_id", e.NORADID,
			"epoch", e.Epoch.Format(time.RFC3339),
			"cached_at", ts.Format(time.RFC3339),
		)
		return true
	})
	if err != nil {
		return fmt.Errorf("loading cache from %s: %w", p.cache.Dir(), err)
	}
	return nil
}

// Refresh fetches a new payload, selects the tracked object, persists the
// payload and swaps the snapshot. Concurrent calls are serialized.
func (p *Provider) Refresh(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "tle/refresh")
	defer span.End()

	p.store.Lock()
	defer p.store.Unlock()

	start := p.now()
	data, err := p.fetcher.Fetch(ctx)
	if err != nil {
		metrics.ElementsFetched("error")
		span.RecordError(err)
		return err
	}
	metrics.ElementsFetched("ok")

	entries, err := Parse(bytes.NewReader(data), p.logger)
	if err != nil {
		span.RecordError(err)
		return err
	}
	e, ok := Select(entries, p.cfg.NORADID)
	if !ok {
		err := fmt.Errorf("%w: norad %d among %d entries", ErrNotInFeed, p.cfg.NORADID, len(entries))
		span.RecordError(err)
		return err
	}

	fetchedAt := p.now().UTC()
	if p.cache != nil {
		if err := p.cache.Write(data, fetchedAt); err != nil {
			p.logger.Warn("failed to write TLE cache", "error", err)
		}
	}

	p.store.Set(&Snapshot{Elements: e.Elements(fetchedAt), Source: p.fetcher.SourceURL()})
	span.SetAttributes(
		attribute.Int("norad_id", e.NORADID),
		attribute.String("epoch", e.Epoch.Format(time.RFC3339)),
	)
	p.logger.Info("refreshed elements",
		"norad_id", e.NORADID,
		"name", e.Name,
		"epoch", e.Epoch.Format(time.RFC3339),
		"entries", len(entries),
		"duration_ms", p.now().Sub(start).Milliseconds(),
	)
	return nil
}

// Run keeps the snapshot fresh until ctx is cancelled. The snapshot is
// refreshed whenever its fetch age reaches the refresh interval, retrying
// with exponential backoff.
func (p *Provider) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		if p.due() {
			if err := p.refreshWithRetry(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("elements refresh failed", "error", err, "attempts", p.cfg.MaxAttempts)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Provider) due() bool {
	age := p.store.FetchAge(p.now())
	return age < 0 || age >= p.cfg.RefreshInterval
}

func (p *Provider) refreshWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialBackoff
	b.MaxInterval = p.cfg.MaxBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := p.Refresh(ctx)
		if errors.Is(err, ErrNotInFeed) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Warn("elements fetch failed, retrying", "error", err, "retry_in", next.String())
		}),
	)
	return err
}

// Metadata describes the current snapshot; ok is false when none is loaded.
func (p *Provider) Metadata() (Metadata, bool) {
	snap := p.store.Get()
	if snap == nil {
		return Metadata{}, false
	}
	el := snap.Elements
	return Metadata{
		Name:       el.Name,
		NORADID:    el.NORADID,
		Epoch:      el.Epoch,
		FetchedAt:  el.FetchedAt,
		Source:     snap.Source,
		AgeSeconds: el.AgeAt(p.now()).Seconds(),
		Line1:      el.Line1,
		Line2:      el.Line2,
	}, true
}
