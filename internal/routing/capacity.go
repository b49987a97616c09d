package routing

import (
	"strconv"
	"time"
)

// HasHeadroom reports whether the provider can take one more connection.
func (s CapacitySnapshot) HasHeadroom() bool {
	return s.MaxConnections == 0 || s.ActiveConnections < s.MaxConnections
}

// IsOverLimit reports whether a finite limit has been reached or exceeded.
// Unlimited providers are never over limit.
func (s CapacitySnapshot) IsOverLimit() bool {
	return s.MaxConnections > 0 && s.ActiveConnections >= s.MaxConnections
}

// ConnectionsLabel renders usage as "active/max", with ∞ for unlimited providers.
func (s CapacitySnapshot) ConnectionsLabel() string {
	limit := "∞"
	if s.MaxConnections > 0 {
		limit = strconv.Itoa(s.MaxConnections)
	}
	return strconv.Itoa(s.ActiveConnections) + "/" + limit
}

// ExpiresWithin reports whether the account expires within d of now.
// An unknown expiry never reports true.
func (s CapacitySnapshot) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return s.ExpiresAt.Sub(now) <= d
}

func newSnapshot(id ProviderID, st ProviderStatus, fetchedAt time.Time) CapacitySnapshot {
	return CapacitySnapshot{
		ProviderID:        id,
		ActiveConnections: max(st.ActiveConnections, 0),
		MaxConnections:    max(st.MaxConnections, 0),
		ExpiresAt:         st.ExpiresAt,
		FetchedAt:         fetchedAt,
	}
}
