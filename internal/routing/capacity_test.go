package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHasHeadroom_unlimited(t *testing.T) {
	for _, active := range []int{0, 1, 50, 10000} {
		s := CapacitySnapshot{ActiveConnections: active, MaxConnections: 0}
		assert.True(t, s.HasHeadroom(), "active=%d", active)
		assert.False(t, s.IsOverLimit(), "active=%d", active)
	}
}

func TestHasHeadroom_negatesOverLimitForFiniteCapacity(t *testing.T) {
	for max := 1; max <= 6; max++ {
		for active := 0; active <= 8; active++ {
			s := CapacitySnapshot{ActiveConnections: active, MaxConnections: max}
			assert.Equal(t, !s.IsOverLimit(), s.HasHeadroom(), "active=%d max=%d", active, max)
		}
	}
}

func TestHasHeadroom_atLimit(t *testing.T) {
	assert.False(t, CapacitySnapshot{ActiveConnections: 5, MaxConnections: 5}.HasHeadroom())
	assert.True(t, CapacitySnapshot{ActiveConnections: 4, MaxConnections: 5}.HasHeadroom())
}

func TestConnectionsLabel(t *testing.T) {
	assert.Equal(t, "2/5", CapacitySnapshot{ActiveConnections: 2, MaxConnections: 5}.ConnectionsLabel())
	assert.Equal(t, "3/∞", CapacitySnapshot{ActiveConnections: 3}.ConnectionsLabel())
}

func TestExpiresWithin(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, CapacitySnapshot{}.ExpiresWithin(now, 24*time.Hour), "unknown expiry")
	assert.True(t, CapacitySnapshot{ExpiresAt: now.Add(2 * time.Hour)}.ExpiresWithin(now, 24*time.Hour))
	assert.True(t, CapacitySnapshot{ExpiresAt: now.Add(-time.Hour)}.ExpiresWithin(now, 24*time.Hour), "already expired")
	assert.False(t, CapacitySnapshot{ExpiresAt: now.Add(72 * time.Hour)}.ExpiresWithin(now, 24*time.Hour))
}

func TestNewSnapshot_clampsNegativeCounts(t *testing.T) {
	s := newSnapshot("p1", ProviderStatus{ActiveConnections: -2, MaxConnections: -1}, time.Time{})
	assert.Equal(t, 0, s.ActiveConnections)
	assert.Equal(t, 0, s.MaxConnections)
}
