package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"stream-router/internal/platform/metrics"
)

// maxUpstreamDepth bounds Provider.Upstream chains.
const maxUpstreamDepth = 8

// Resolution is the outcome of routing a content item.
type Resolution struct {
	URL string
	// Context is nil only for custom URL items without a resolvable owner.
	Context ProviderContext
	// Fallback is set when nothing had headroom and the primary was returned anyway.
	Fallback bool
	// Item is the content item that was resolved.
	Item ContentItem
}

// ContextID returns the selected context's id, or "" when there is none.
func (r Resolution) ContextID() string {
	if r.Context == nil {
		return ""
	}
	return r.Context.ContextID()
}

// Resolver picks the provider a content item should be streamed through.
type Resolver struct {
	catalog Catalog
	status  SnapshotSource
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewResolver returns a Resolver reading ownership from catalog and capacity from status.
func NewResolver(catalog Catalog, status SnapshotSource, log *slog.Logger, m *metrics.Metrics) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{catalog: catalog, status: status, log: log, metrics: m}
}

// ResolveOptimalStream looks up ref and resolves it. A missing item is ErrNotFound.
func (r *Resolver) ResolveOptimalStream(ctx context.Context, ref ContentRef) (Resolution, error) {
	item, err := r.catalog.Content(ctx, ref)
	if err != nil {
		return Resolution{}, err
	}
	return r.ResolveOptimal(ctx, item)
}

// ResolveOptimal returns the URL and provider context item should be played
// through. The primary is used whenever it has headroom; otherwise the first
// enabled alias by (priority, id) with headroom wins; if none has headroom
// the primary is returned with Fallback set. A provider whose status cannot
// be fetched counts as having no headroom.
func (r *Resolver) ResolveOptimal(ctx context.Context, item ContentItem) (Resolution, error) {
	res, err := r.resolveOptimal(ctx, item)
	if err != nil {
		return Resolution{}, err
	}
	res.Item = item
	return res, nil
}

func (r *Resolver) resolveOptimal(ctx context.Context, item ContentItem) (Resolution, error) {
	if item.CustomURL != "" {
		return r.resolveCustom(ctx, item), nil
	}

	primary, err := r.primaryContext(ctx, item)
	if err != nil {
		return Resolution{}, err
	}

	if r.hasHeadroom(ctx, primary) {
		r.metrics.IncResolution(metrics.OutcomePrimary)
		return Resolution{URL: Transform(item, primary), Context: primary}, nil
	}

	for _, alias := range r.enabledAliases(ctx, primary.Provider.ID) {
		ac, err := r.aliasContext(ctx, primary.Provider, alias)
		if err != nil {
			r.log.Warn("skipping alias without effective provider",
				slog.String("alias_id", string(alias.ID)),
				slog.String("error", err.Error()))
			continue
		}
		if r.hasHeadroom(ctx, ac) {
			r.metrics.IncResolution(metrics.OutcomeAlias)
			r.log.Debug("routed to alias",
				slog.String("content", item.Ref.String()),
				slog.String("alias_id", string(alias.ID)))
			return Resolution{URL: Transform(item, ac), Context: ac}, nil
		}
	}

	r.metrics.IncResolution(metrics.OutcomeFallback)
	r.log.Info("no provider with headroom, falling back to primary",
		slog.String("content", item.Ref.String()),
		slog.String("provider_id", string(primary.Provider.ID)))
	return Resolution{URL: Transform(item, primary), Context: primary, Fallback: true}, nil
}

// resolveCustom never consults capacity; the owner is attached only for reporting.
func (r *Resolver) resolveCustom(ctx context.Context, item ContentItem) Resolution {
	r.metrics.IncResolution(metrics.OutcomeCustom)
	res := Resolution{URL: item.CustomURL}
	if primary, err := r.primaryContext(ctx, item); err == nil {
		res.Context = primary
	}
	return res
}

func (r *Resolver) primaryContext(ctx context.Context, item ContentItem) (PrimaryContext, error) {
	if item.ProviderID == "" {
		return PrimaryContext{}, fmt.Errorf("content %s: %w", item.Ref, ErrNoEffectiveProvider)
	}
	p, err := r.catalog.Provider(ctx, item.ProviderID)
	if err != nil {
		return PrimaryContext{}, fmt.Errorf("content %s: %w: %w", item.Ref, ErrNoEffectiveProvider, err)
	}
	eff, err := r.effective(ctx, p)
	if err != nil {
		return PrimaryContext{}, fmt.Errorf("content %s: %w", item.Ref, err)
	}
	return PrimaryContext{Provider: p, Effective: eff}, nil
}

func (r *Resolver) aliasContext(ctx context.Context, primary Provider, a Alias) (AliasContext, error) {
	if a.ProviderID == "" {
		return AliasContext{}, ErrNoEffectiveProvider
	}
	account, err := r.catalog.Provider(ctx, a.ProviderID)
	if err != nil {
		return AliasContext{}, fmt.Errorf("%w: %w", ErrNoEffectiveProvider, err)
	}
	eff, err := r.effective(ctx, account)
	if err != nil {
		return AliasContext{}, err
	}
	return AliasContext{Alias: a, Primary: primary, Account: account, Effective: eff}, nil
}

// effective follows Upstream links until a provider without one.
func (r *Resolver) effective(ctx context.Context, p Provider) (Provider, error) {
	seen := map[ProviderID]bool{p.ID: true}
	for depth := 0; p.Upstream != ""; depth++ {
		if depth >= maxUpstreamDepth || seen[p.Upstream] {
			return Provider{}, fmt.Errorf("provider %s: upstream chain loops or is too deep: %w", p.ID, ErrNoEffectiveProvider)
		}
		next, err := r.catalog.Provider(ctx, p.Upstream)
		if err != nil {
			return Provider{}, fmt.Errorf("provider %s upstream: %w: %w", p.ID, ErrNoEffectiveProvider, err)
		}
		seen[next.ID] = true
		p = next
	}
	return p, nil
}

// enabledAliases returns primary's enabled aliases sorted by priority then id.
// A listing failure leaves the primary as the only candidate.
func (r *Resolver) enabledAliases(ctx context.Context, primary ProviderID) []Alias {
	all, err := r.catalog.Aliases(ctx, primary)
	if err != nil {
		r.log.Warn("alias lookup failed", slog.String("provider_id", string(primary)), slog.String("error", err.Error()))
		return nil
	}
	out := make([]Alias, 0, len(all))
	for _, a := range all {
		if a.Enabled {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Resolver) hasHeadroom(ctx context.Context, pc ProviderContext) bool {
	snap, err := r.status.Snapshot(ctx, pc.StatusProvider())
	if err != nil {
		if !errors.Is(err, ErrUpstreamUnreachable) {
			r.log.Warn("capacity lookup failed", slog.String("context", pc.ContextID()), slog.String("error", err.Error()))
		}
		return false
	}
	return snap.HasHeadroom()
}

// ProviderStatus returns the capacity snapshot of provider id, read through
// its upstream chain. An unknown id is ErrNotFound.
func (r *Resolver) ProviderStatus(ctx context.Context, id ProviderID) (Provider, CapacitySnapshot, error) {
	p, err := r.catalog.Provider(ctx, id)
	if err != nil {
		return Provider{}, CapacitySnapshot{}, err
	}
	eff, err := r.effective(ctx, p)
	if err != nil {
		return p, CapacitySnapshot{}, err
	}
	snap, err := r.status.Snapshot(ctx, eff)
	if err != nil {
		return p, CapacitySnapshot{}, err
	}
	return p, snap, nil
}
