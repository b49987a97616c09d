package routing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stream-router/internal/platform/metrics"

	"golang.org/x/sync/singleflight"
)

const (
	// StatusTTL is how long a fetched snapshot may be reused.
	StatusTTL = 10 * time.Second

	// DefaultFetchTimeout bounds a single remote status fetch.
	DefaultFetchTimeout = 3 * time.Second
)

// StatusFetcher queries a provider's live connection status.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, p Provider) (ProviderStatus, error)
}

// SnapshotSource is what the resolver needs from a status cache.
type SnapshotSource interface {
	Snapshot(ctx context.Context, p Provider) (CapacitySnapshot, error)
}

// StatusCache absorbs repeated status lookups for a provider within StatusTTL.
// Failed fetches are never cached: every call on a failing provider goes
// back to the fetcher, and the caller gets an ErrUpstreamUnreachable error.
type StatusCache struct {
	fetcher StatusFetcher
	store   SnapshotStore
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	sf      singleflight.Group
}

// NewStatusCache returns a StatusCache backed by store. If store is nil an
// in-memory store is used; if fetchTimeout <= 0, DefaultFetchTimeout is used.
func NewStatusCache(fetcher StatusFetcher, store SnapshotStore, fetchTimeout time.Duration, log *slog.Logger, m *metrics.Metrics) *StatusCache {
	if store == nil {
		store = NewMemorySnapshotStore()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &StatusCache{
		fetcher: fetcher,
		store:   store,
		timeout: fetchTimeout,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Snapshot returns a fresh capacity snapshot for p, fetching it if the cached
// one is missing or older than StatusTTL.
func (c *StatusCache) Snapshot(ctx context.Context, p Provider) (CapacitySnapshot, error) {
	if snap, ok := c.cached(ctx, p.ID); ok {
		c.metrics.ObserveStatusLookup(true)
		return snap, nil
	}
	c.metrics.ObserveStatusLookup(false)

	ch := c.sf.DoChan(string(p.ID), func() (any, error) {
		return c.refresh(ctx, p)
	})

	// A fetcher that ignores its context must not hold the caller past the timeout.
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return CapacitySnapshot{}, res.Err
		}
		return res.Val.(CapacitySnapshot), nil
	case <-timer.C:
		return CapacitySnapshot{}, fmt.Errorf("%w: provider %s: %w", ErrUpstreamUnreachable, p.ID, context.DeadlineExceeded)
	case <-ctx.Done():
		return CapacitySnapshot{}, fmt.Errorf("%w: provider %s: %w", ErrUpstreamUnreachable, p.ID, ctx.Err())
	}
}

func (c *StatusCache) cached(ctx context.Context, id ProviderID) (CapacitySnapshot, bool) {
	snap, ok, err := c.store.Load(ctx, id)
	if err != nil {
		c.log.Warn("status store load failed", slog.String("provider_id", string(id)), slog.String("error", err.Error()))
		return CapacitySnapshot{}, false
	}
	if !ok {
		return CapacitySnapshot{}, false
	}
	age := c.now().Sub(snap.FetchedAt)
	if age < 0 || age >= StatusTTL {
		return CapacitySnapshot{}, false
	}
	return snap, true
}

// refresh runs once per provider at a time. The fetch outlives a cancelled
// caller so collapsed waiters still get a result, but never its own timeout.
func (c *StatusCache) refresh(ctx context.Context, p Provider) (CapacitySnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	st, err := c.fetcher.FetchStatus(fetchCtx, p)
	if err != nil {
		c.metrics.IncStatusFetchFailures()
		c.log.Warn("provider status fetch failed",
			slog.String("provider_id", string(p.ID)),
			slog.String("error", err.Error()))
		return CapacitySnapshot{}, fmt.Errorf("%w: provider %s: %w", ErrUpstreamUnreachable, p.ID, err)
	}

	snap := newSnapshot(p.ID, st, c.now())
	if err := c.store.Save(fetchCtx, snap, StatusTTL); err != nil {
		c.log.Warn("status store save failed", slog.String("provider_id", string(p.ID)), slog.String("error", err.Error()))
	}
	return snap, nil
}
