package routing

// ProviderContext is a provider a content item can be streamed through.
type ProviderContext interface {
	// ContextID identifies the context to callers, e.g. "provider:1" or "alias:7".
	ContextID() string
	// StatusProvider is the account whose capacity governs this context.
	StatusProvider() Provider
	// TransformURL returns the playable URL for item through this context.
	// Custom URLs are handled by Transform before this is called.
	TransformURL(item ContentItem) string
}

// PrimaryContext is the content item's owning provider.
type PrimaryContext struct {
	Provider  Provider
	Effective Provider
}

func (c PrimaryContext) ContextID() string        { return "provider:" + string(c.Provider.ID) }
func (c PrimaryContext) StatusProvider() Provider { return c.Effective }

// TransformURL returns the canonical URL unchanged.
func (c PrimaryContext) TransformURL(item ContentItem) string {
	return item.URL
}

// AliasContext routes a primary's content through an alternate account.
type AliasContext struct {
	Alias   Alias
	Primary Provider
	// Account is the provider the alias points at; its server and
	// credentials replace the primary's in rewritten URLs.
	Account Provider
	// Effective is Account after following Upstream links.
	Effective Provider
}

func (c AliasContext) ContextID() string        { return "alias:" + string(c.Alias.ID) }
func (c AliasContext) StatusProvider() Provider { return c.Effective }

// TransformURL rewrites the canonical URL onto the alias account.
func (c AliasContext) TransformURL(item ContentItem) string {
	return rewriteURL(item.URL, c.Primary, c.Account)
}
