package ports

import (
	"context"

	"github.com/rentsignal/aircomps/internal/core/domain"
)

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishSearchPerformed(ctx context.Context, ev *domain.SearchEvent) error
	PublishBroadcast(ctx context.Context, data []byte) error
}
