package ports

import (
	"context"

	"github.com/rentsignal/aircomps/internal/core/domain"
)

// SearchLogRepository persists performed searches and their normalized
// results for the comps history endpoint.
type SearchLogRepository interface {
	Insert(ctx context.Context, log *domain.SearchLog, listings []domain.Listing) error
	Recent(ctx context.Context, offset, limit int) ([]domain.SearchLog, error)
	Count(ctx context.Context) (int, error)
}
