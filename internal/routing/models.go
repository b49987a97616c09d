package routing

import (
	"fmt"
	"strings"
	"time"
)

// ProviderID identifies an upstream provider account.
type ProviderID string

// AliasID identifies an alias registration.
type AliasID string

// ContentKind is the type of a routable content item.
type ContentKind string

const (
	KindChannel ContentKind = "channel"
	KindEpisode ContentKind = "episode"
)

// ParseContentKind validates s as a ContentKind.
func ParseContentKind(s string) (ContentKind, error) {
	switch k := ContentKind(strings.ToLower(s)); k {
	case KindChannel, KindEpisode:
		return k, nil
	default:
		return "", fmt.Errorf("unknown content kind %q", s)
	}
}

// ContentRef points at a content item of a given kind.
type ContentRef struct {
	Kind ContentKind `json:"type"`
	ID   string      `json:"id"`
}

func (r ContentRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// ContentItem is a channel or an episode that can be streamed.
type ContentItem struct {
	Ref        ContentRef
	Name       string
	CustomName string
	LogoURL    string

	// URL is the canonical upstream URL as imported from the primary provider.
	URL string
	// CustomURL, when set, is returned verbatim and bypasses alias resolution.
	CustomURL string

	ProviderID ProviderID
}

// Provider is an upstream account able to serve media and report its connection limit.
type Provider struct {
	ID        ProviderID
	Name      string
	ServerURL string
	Username  string
	Password  string

	// Upstream names another provider whose capacity governs this account.
	Upstream ProviderID
}

// Alias is an alternate account registered against a primary provider.
type Alias struct {
	ID         AliasID
	PrimaryID  ProviderID
	ProviderID ProviderID
	Priority   int
	Enabled    bool
}

// CapacitySnapshot is a point-in-time view of a provider's connection usage.
// MaxConnections == 0 means the provider does not enforce a limit.
type CapacitySnapshot struct {
	ProviderID        ProviderID `json:"provider_id"`
	ActiveConnections int        `json:"active_connections"`
	MaxConnections    int        `json:"max_connections"`
	ExpiresAt         time.Time  `json:"expires_at,omitempty"`
	FetchedAt         time.Time  `json:"fetched_at"`
}

// ProviderStatus is what a StatusFetcher reports for a provider.
type ProviderStatus struct {
	ActiveConnections int
	MaxConnections    int
	ExpiresAt         time.Time
}
