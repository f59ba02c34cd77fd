package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rentsignal/aircomps/internal/core/domain"
	"github.com/rentsignal/aircomps/internal/core/ports"
	"github.com/rentsignal/aircomps/internal/pkg/metrics"
)

// defaultAdults matches the upstream quote default for a comps lookup.
const defaultAdults = 2

// ListingService fetches single-listing availability, details and pricing.
type ListingService struct {
	provider ports.ListingProvider
	cache    ports.CacheService
	cacheTTL int
}

// NewListingService creates a ListingService. cache may be nil.
func NewListingService(provider ports.ListingProvider, cache ports.CacheService, cacheTTLSeconds int) *ListingService {
	if cacheTTLSeconds <= 0 {
		cacheTTLSeconds = 600
	}
	return &ListingService{provider: provider, cache: cache, cacheTTL: cacheTTLSeconds}
}

// Availability returns the upstream's details, nightly-rate quote and
// availability calendar for one classic room id and stay range.
func (s *ListingService) Availability(ctx context.Context, roomID, checkIn, checkOut string) (*domain.ListingSnapshot, error) {
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	in, err := time.Parse("2006-01-02", checkIn)
	if err != nil {
		return nil, fmt.Errorf("%w: check_in must be YYYY-MM-DD", domain.ErrInvalidQuery)
	}
	out, err := time.Parse("2006-01-02", checkOut)
	if err != nil {
		return nil, fmt.Errorf("%w: check_out must be YYYY-MM-DD", domain.ErrInvalidQuery)
	}
	if !out.After(in) {
		return nil, fmt.Errorf("%w: check_out must be after check_in", domain.ErrInvalidQuery)
	}

	cacheKey := fmt.Sprintf("listing:%s:%s:%s", roomID, checkIn, checkOut)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var snap domain.ListingSnapshot
			if err := decodeCached(data, &snap); err == nil {
				metrics.CacheHits.WithLabelValues("listing").Inc()
				return &snap, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("listing").Inc()
	}

	details, err := s.provider.Details(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("listing details: %w", err)
	}
	pricing, err := s.provider.Quote(ctx, roomID, checkIn, checkOut, defaultAdults)
	if err != nil {
		return nil, fmt.Errorf("listing quote: %w", err)
	}
	calendar, err := s.provider.Calendar(ctx, roomID, checkIn, checkOut)
	if err != nil {
		return nil, fmt.Errorf("listing calendar: %w", err)
	}

	snap := &domain.ListingSnapshot{
		RoomID:   roomID,
		Details:  details,
		Pricing:  pricing,
		Calendar: calendar,
	}

	if s.cache != nil {
		if data, err := json.Marshal(snap); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	return snap, nil
}

func validateRoomID(roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: room id is required", domain.ErrInvalidQuery)
	}
	for _, r := range roomID {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: room id must be numeric", domain.ErrInvalidQuery)
		}
	}
	return nil
}
