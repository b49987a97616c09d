package routing

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog resolves content ownership and alias registrations.
// The admin application owns this data; the router only reads it.
type Catalog interface {
	// Content returns the content item for ref, or ErrNotFound.
	Content(ctx context.Context, ref ContentRef) (ContentItem, error)

	// Provider returns the provider with the given id, or ErrNotFound.
	Provider(ctx context.Context, id ProviderID) (Provider, error)

	// Aliases returns every alias registered against primary, enabled or not,
	// in no particular order.
	Aliases(ctx context.Context, primary ProviderID) ([]Alias, error)
}

// InMemoryCatalog is a concurrency-safe in-memory Catalog.
type InMemoryCatalog struct {
	mu        sync.RWMutex
	providers map[ProviderID]Provider
	aliases   map[ProviderID][]Alias
	content   map[ContentRef]ContentItem
}

// NewInMemoryCatalog returns an empty catalog.
func NewInMemoryCatalog() *InMemoryCatalog {
	return &InMemoryCatalog{
		providers: make(map[ProviderID]Provider),
		aliases:   make(map[ProviderID][]Alias),
		content:   make(map[ContentRef]ContentItem),
	}
}

// PutProvider adds or replaces a provider.
func (c *InMemoryCatalog) PutProvider(p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[p.ID] = p
}

// PutAlias adds or replaces an alias under its primary.
func (c *InMemoryCatalog) PutAlias(a Alias) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.aliases[a.PrimaryID]
	for i := range list {
		if list[i].ID == a.ID {
			list[i] = a
			return
		}
	}
	c.aliases[a.PrimaryID] = append(list, a)
}

// PutContent adds or replaces a content item.
func (c *InMemoryCatalog) PutContent(item ContentItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content[item.Ref] = item
}

// Content implements Catalog.Content.
func (c *InMemoryCatalog) Content(_ context.Context, ref ContentRef) (ContentItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.content[ref]
	if !ok {
		return ContentItem{}, fmt.Errorf("content %s: %w", ref, ErrNotFound)
	}
	return item, nil
}

// Provider implements Catalog.Provider.
func (c *InMemoryCatalog) Provider(_ context.Context, id ProviderID) (Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[id]
	if !ok {
		return Provider{}, fmt.Errorf("provider %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// Aliases implements Catalog.Aliases. The returned slice is a copy.
func (c *InMemoryCatalog) Aliases(_ context.Context, primary ProviderID) ([]Alias, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := c.aliases[primary]
	out := make([]Alias, len(list))
	copy(out, list)
	return out, nil
}

type catalogFile struct {
	Providers []struct {
		ID        string `yaml:"id"`
		Name      string `yaml:"name"`
		ServerURL string `yaml:"server_url"`
		Username  string `yaml:"username"`
		Password  string `yaml:"password"`
		Upstream  string `yaml:"upstream"`
	} `yaml:"providers"`
	Aliases []struct {
		ID       string `yaml:"id"`
		Primary  string `yaml:"primary"`
		Provider string `yaml:"provider"`
		Priority int    `yaml:"priority"`
		Enabled  *bool  `yaml:"enabled"`
	} `yaml:"aliases"`
	Content []struct {
		Kind       string `yaml:"kind"`
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		CustomName string `yaml:"custom_name"`
		Logo       string `yaml:"logo"`
		URL        string `yaml:"url"`
		CustomURL  string `yaml:"custom_url"`
		Provider   string `yaml:"provider"`
	} `yaml:"content"`
}

// LoadCatalogFile reads a YAML catalog. Aliases default to enabled.
func LoadCatalogFile(path string) (*InMemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog builds a catalog from YAML. Duplicate ids and aliases whose
// primary is unknown are rejected; an alias pointing at an unknown account
// is kept and skipped at resolution time.
func ParseCatalog(data []byte) (*InMemoryCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := NewInMemoryCatalog()
	for _, p := range f.Providers {
		id := ProviderID(p.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog: provider without id")
		}
		if _, dup := c.providers[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate provider %q", id)
		}
		c.providers[id] = Provider{
			ID:        id,
			Name:      p.Name,
			ServerURL: p.ServerURL,
			Username:  p.Username,
			Password:  p.Password,
			Upstream:  ProviderID(p.Upstream),
		}
	}

	seen := make(map[AliasID]bool, len(f.Aliases))
	for _, a := range f.Aliases {
		id := AliasID(a.ID)
		if id == "" || seen[id] {
			return nil, fmt.Errorf("catalog: missing or duplicate alias id %q", id)
		}
		seen[id] = true
		primary := ProviderID(a.Primary)
		if _, ok := c.providers[primary]; !ok {
			return nil, fmt.Errorf("catalog: alias %q references unknown primary %q", id, primary)
		}
		enabled := a.Enabled == nil || *a.Enabled
		c.aliases[primary] = append(c.aliases[primary], Alias{
			ID:         id,
			PrimaryID:  primary,
			ProviderID: ProviderID(a.Provider),
			Priority:   a.Priority,
			Enabled:    enabled,
		})
	}

	for _, it := range f.Content {
		kind, err := ParseContentKind(it.Kind)
		if err != nil {
			return nil, fmt.Errorf("catalog: content %q: %w", it.ID, err)
		}
		ref := ContentRef{Kind: kind, ID: it.ID}
		if _, dup := c.content[ref]; dup {
			return nil, fmt.Errorf("catalog: duplicate content %s", ref)
		}
		c.content[ref] = ContentItem{
			Ref:        ref,
			Name:       it.Name,
			CustomName: it.CustomName,
			LogoURL:    it.Logo,
			URL:        it.URL,
			CustomURL:  it.CustomURL,
			ProviderID: ProviderID(it.Provider),
		}
	}

	return c, nil
}
