package routing

import (
	"context"
	"sync"
	"time"
)

// SnapshotStore is the storage abstraction behind the status cache.
// Implementations can be in-memory or shared (Redis); the StatusCache
// applies its own freshness check on every load regardless of backend.
type SnapshotStore interface {
	Load(ctx context.Context, id ProviderID) (CapacitySnapshot, bool, error)
	Save(ctx context.Context, s CapacitySnapshot, ttl time.Duration) error
}

// MemorySnapshotStore is a concurrency-safe in-memory SnapshotStore.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[ProviderID]CapacitySnapshot
}

// NewMemorySnapshotStore returns an empty in-memory store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		snapshots: make(map[ProviderID]CapacitySnapshot),
	}
}

// Load implements SnapshotStore.Load.
func (s *MemorySnapshotStore) Load(_ context.Context, id ProviderID) (CapacitySnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	return snap, ok, nil
}

// Save implements SnapshotStore.Save. Entries are overwritten, never evicted;
// staleness is decided by the reader.
func (s *MemorySnapshotStore) Save(_ context.Context, snap CapacitySnapshot, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.ProviderID] = snap
	return nil
}
