package monitor

import (
	"context"

	"stream-router/internal/routing"
)

// MetadataLookup returns display metadata for a content reference, if any.
type MetadataLookup interface {
	Lookup(ctx context.Context, ref routing.ContentRef) (Metadata, bool)
}

// KindLookupFunc resolves metadata for one content kind.
type KindLookupFunc func(ctx context.Context, id string) (Metadata, bool)

// KindDispatch routes lookups by content kind. Unknown kinds yield no metadata.
type KindDispatch map[routing.ContentKind]KindLookupFunc

// Lookup implements MetadataLookup.
func (d KindDispatch) Lookup(ctx context.Context, ref routing.ContentRef) (Metadata, bool) {
	fn, ok := d[ref.Kind]
	if !ok || ref.ID == "" {
		return Metadata{}, false
	}
	return fn(ctx, ref.ID)
}

// CatalogLookup builds a KindDispatch reading channels and episodes from catalog.
// Channels prefer their custom name; episodes use their own name.
func CatalogLookup(catalog routing.Catalog) KindDispatch {
	return KindDispatch{
		routing.KindChannel: func(ctx context.Context, id string) (Metadata, bool) {
			item, err := catalog.Content(ctx, routing.ContentRef{Kind: routing.KindChannel, ID: id})
			if err != nil {
				return Metadata{}, false
			}
			title := item.CustomName
			if title == "" {
				title = item.Name
			}
			return metadataOf(title, item.LogoURL)
		},
		routing.KindEpisode: func(ctx context.Context, id string) (Metadata, bool) {
			item, err := catalog.Content(ctx, routing.ContentRef{Kind: routing.KindEpisode, ID: id})
			if err != nil {
				return Metadata{}, false
			}
			return metadataOf(item.Name, item.LogoURL)
		},
	}
}

// metadataOf returns nothing when there is neither a title nor a logo.
func metadataOf(title, logo string) (Metadata, bool) {
	if title == "" && logo == "" {
		return Metadata{}, false
	}
	if title == "" {
		title = "N/A"
	}
	return Metadata{Title: title, Logo: logo}, true
}
