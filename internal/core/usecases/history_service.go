package usecases

import (
	"context"
	"fmt"

	"github.com/rentsignal/aircomps/internal/core/domain"
	"github.com/rentsignal/aircomps/internal/core/ports"
)

// HistoryService serves the recent-searches endpoint.
type HistoryService struct {
	repo ports.SearchLogRepository
}

// NewHistoryService creates a HistoryService. repo may be nil when the
// database is disabled.
func NewHistoryService(repo ports.SearchLogRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// Recent returns the most recent search logs, newest first.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]domain.SearchLog, error) {
	logs, _, err := s.Page(ctx, 0, limit)
	return logs, err
}

// Page returns one window of the history plus the total row count, so
// callers can paginate past the first window.
func (s *HistoryService) Page(ctx context.Context, offset, limit int) ([]domain.SearchLog, int, error) {
	if s.repo == nil {
		return nil, 0, fmt.Errorf("search history disabled: %w", domain.ErrNotFound)
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	logs, err := s.repo.Recent(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
