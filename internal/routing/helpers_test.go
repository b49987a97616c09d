package routing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

var errProviderDown = errors.New("provider down")

type fakeFetcher struct {
	mu       sync.Mutex
	statuses map[ProviderID]ProviderStatus
	failing  map[ProviderID]bool
	calls    map[ProviderID]int
	delay    time.Duration
	release  chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		statuses: make(map[ProviderID]ProviderStatus),
		failing:  make(map[ProviderID]bool),
		calls:    make(map[ProviderID]int),
	}
}

func (f *fakeFetcher) set(id ProviderID, active, max int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = ProviderStatus{ActiveConnections: active, MaxConnections: max}
}

func (f *fakeFetcher) fail(id ProviderID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[id] = true
}

func (f *fakeFetcher) callCount(id ProviderID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeFetcher) FetchStatus(ctx context.Context, p Provider) (ProviderStatus, error) {
	f.mu.Lock()
	f.calls[p.ID]++
	st, ok := f.statuses[p.ID]
	failing := f.failing[p.ID]
	delay, release := f.delay, f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ProviderStatus{}, ctx.Err()
		}
	}
	if failing || !ok {
		return ProviderStatus{}, errProviderDown
	}
	return st, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(f StatusFetcher, clock *fakeClock) *StatusCache {
	c := NewStatusCache(f, nil, 200*time.Millisecond, discardLogger(), nil)
	c.now = clock.Now
	return c
}
