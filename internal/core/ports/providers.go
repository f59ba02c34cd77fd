package ports

import (
	"context"

	"github.com/rentsignal/aircomps/internal/core/domain"
)

// SearchProvider runs a stays search against the external data source. The
// returned records are opaque and keep the upstream's order; failures must
// wrap domain.ErrUpstreamUnavailable.
type SearchProvider interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.RawListing, error)
}

// ListingProvider fetches single-listing data from the external source by
// classic room identifier.
type ListingProvider interface {
	Details(ctx context.Context, roomID string) (map[string]any, error)
	Quote(ctx context.Context, roomID, checkIn, checkOut string, adults int) (map[string]any, error)
	Calendar(ctx context.Context, roomID, checkIn, checkOut string) (map[string]any, error)
}
