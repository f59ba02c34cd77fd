package usecases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rentsignal/aircomps/internal/core/domain"
	"github.com/rentsignal/aircomps/internal/core/normalize"
	"github.com/rentsignal/aircomps/internal/core/ports"
	"github.com/rentsignal/aircomps/internal/pkg/geospatial"
	"github.com/rentsignal/aircomps/internal/pkg/metrics"
)

// Box policies for the radius-to-bounding-box conversion.
const (
	BoxPolicyFlat      = "flat"
	BoxPolicyCorrected = "corrected"
)

// CompsConfig carries the search tunables from configuration.
type CompsConfig struct {
	BoxPolicy       string  // "flat" or "corrected"
	MaxRadiusMiles  float64 // upper bound on accepted radii
	CacheTTLSeconds int
	Currency        string
	Locale          string
	Zoom            int
}

// SearchOptions are the optional per-request filters.
type SearchOptions struct {
	CheckIn  string // YYYY-MM-DD
	CheckOut string // YYYY-MM-DD
	PriceMin int
	PriceMax int
}

// CompsService runs comparable-listing searches: bounding box from the
// radius, upstream stays search, normalization, distance annotation.
type CompsService struct {
	provider ports.SearchProvider
	cache    ports.CacheService
	events   ports.EventPublisher
	history  ports.SearchLogRepository
	cfg      CompsConfig
}

// NewCompsService creates a CompsService. cache, events and history may be
// nil; the search degrades gracefully without them.
func NewCompsService(provider ports.SearchProvider, cache ports.CacheService,
	events ports.EventPublisher, history ports.SearchLogRepository, cfg CompsConfig) *CompsService {

	if cfg.BoxPolicy == "" {
		cfg.BoxPolicy = BoxPolicyCorrected
	}
	if cfg.MaxRadiusMiles <= 0 {
		cfg.MaxRadiusMiles = 50
	}
	if cfg.CacheTTLSeconds <= 0 {
		cfg.CacheTTLSeconds = 300
	}
	if cfg.Zoom == 0 {
		cfg.Zoom = 12
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}
	return &CompsService{provider: provider, cache: cache, events: events, history: history, cfg: cfg}
}

// Search returns the comps around center within radiusMiles. Listings keep
// the upstream order; no dedup, no re-sort.
func (s *CompsService) Search(ctx context.Context, center domain.GeoPoint, radiusMiles float64, opts SearchOptions) (*domain.SearchResult, error) {
	if err := s.validate(center, radiusMiles, opts); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("comps:%s:%.4f:%.4f:%.1f:%s:%s:%d:%d",
		s.cfg.BoxPolicy, center.Lat, center.Lon, radiusMiles,
		opts.CheckIn, opts.CheckOut, opts.PriceMin, opts.PriceMax)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var res domain.SearchResult
			if err := decodeCached(data, &res); err == nil {
				metrics.CacheHits.WithLabelValues("comps").Inc()
				return &res, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("comps").Inc()
	}

	q := domain.SearchQuery{
		Box:      s.box(center, radiusMiles),
		CheckIn:  opts.CheckIn,
		CheckOut: opts.CheckOut,
		PriceMin: opts.PriceMin,
		PriceMax: opts.PriceMax,
		Currency: s.cfg.Currency,
		Locale:   s.cfg.Locale,
		Zoom:     s.cfg.Zoom,
	}

	start := time.Now()
	raws, err := s.provider.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("comps search: %w", err)
	}

	listings := make([]domain.Listing, 0, len(raws))
	for _, raw := range raws {
		l := normalize.Listing(raw)
		for _, f := range normalize.MissingFields(l) {
			metrics.NormalizerFieldMisses.WithLabelValues(f).Inc()
		}
		if l.Lat != nil && l.Lon != nil {
			d := geospatial.HaversineMiles(center.Lat, center.Lon, *l.Lat, *l.Lon)
			l.DistanceMi = &d
		}
		listings = append(listings, l)
	}

	result := &domain.SearchResult{
		Center:      center,
		RadiusMiles: radiusMiles,
		Count:       len(listings),
		Listings:    listings,
	}
	metrics.SearchListingsReturned.Observe(float64(result.Count))

	if s.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cfg.CacheTTLSeconds)
		}
	}

	s.record(ctx, result, opts, time.Since(start))

	return result, nil
}

// record publishes the search event and appends the history row. Both are
// best-effort: a broker or database outage never fails the search.
func (s *CompsService) record(ctx context.Context, res *domain.SearchResult, opts SearchOptions, took time.Duration) {
	if s.events != nil {
		ev := &domain.SearchEvent{
			Center:      res.Center,
			RadiusMiles: res.RadiusMiles,
			Count:       res.Count,
			At:          time.Now().UTC(),
		}
		if err := s.events.PublishSearchPerformed(ctx, ev); err != nil {
			slog.Warn("publish search event", "error", err)
		}
	}

	if s.history != nil {
		log := &domain.SearchLog{
			Center:      res.Center,
			RadiusMiles: res.RadiusMiles,
			CheckIn:     opts.CheckIn,
			CheckOut:    opts.CheckOut,
			Count:       res.Count,
			DurationMS:  took.Milliseconds(),
		}
		if err := s.history.Insert(ctx, log, res.Listings); err != nil {
			slog.Warn("persist search log", "error", err)
		}
	}
}

// decodeCached decodes a cached payload the same way the upstream decoder
// does: numbers stay json.Number, so the 19-20 digit ids inside the loose
// pass-through fields survive a cache hit without float64 rounding.
func decodeCached(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func (s *CompsService) box(center domain.GeoPoint, radiusMiles float64) domain.Bounds {
	if s.cfg.BoxPolicy == BoxPolicyFlat {
		return geospatial.FlatBox(center, radiusMiles)
	}
	return geospatial.CorrectedBox(center, radiusMiles)
}

// validate rejects degenerate input instead of producing zero-size or
// inverted boxes.
func (s *CompsService) validate(center domain.GeoPoint, radiusMiles float64, opts SearchOptions) error {
	if math.IsNaN(center.Lat) || math.IsInf(center.Lat, 0) ||
		math.IsNaN(center.Lon) || math.IsInf(center.Lon, 0) {
		return fmt.Errorf("%w: coordinates must be finite", domain.ErrInvalidQuery)
	}
	if center.Lat < -90 || center.Lat > 90 {
		return fmt.Errorf("%w: lat must be in [-90, 90], got %v", domain.ErrInvalidQuery, center.Lat)
	}
	if center.Lon < -180 || center.Lon > 180 {
		return fmt.Errorf("%w: lon must be in [-180, 180], got %v", domain.ErrInvalidQuery, center.Lon)
	}
	if math.IsNaN(radiusMiles) || radiusMiles <= 0 {
		return fmt.Errorf("%w: radius must be > 0 miles, got %v", domain.ErrInvalidQuery, radiusMiles)
	}
	if radiusMiles > s.cfg.MaxRadiusMiles {
		return fmt.Errorf("%w: radius must be <= %v miles, got %v", domain.ErrInvalidQuery, s.cfg.MaxRadiusMiles, radiusMiles)
	}
	if s.cfg.BoxPolicy != BoxPolicyFlat && math.Abs(center.Lat) > geospatial.MaxCorrectedLat {
		return fmt.Errorf("%w: |lat| must be <= %v under the corrected box policy", domain.ErrInvalidQuery, geospatial.MaxCorrectedLat)
	}

	if (opts.CheckIn == "") != (opts.CheckOut == "") {
		return fmt.Errorf("%w: check_in and check_out must be supplied together", domain.ErrInvalidQuery)
	}
	if opts.CheckIn != "" {
		in, err := time.Parse("2006-01-02", opts.CheckIn)
		if err != nil {
			return fmt.Errorf("%w: check_in must be YYYY-MM-DD", domain.ErrInvalidQuery)
		}
		out, err := time.Parse("2006-01-02", opts.CheckOut)
		if err != nil {
			return fmt.Errorf("%w: check_out must be YYYY-MM-DD", domain.ErrInvalidQuery)
		}
		if !out.After(in) {
			return fmt.Errorf("%w: check_out must be after check_in", domain.ErrInvalidQuery)
		}
	}

	if opts.PriceMin < 0 || opts.PriceMax < 0 {
		return fmt.Errorf("%w: price bounds must be >= 0", domain.ErrInvalidQuery)
	}
	if opts.PriceMin > 0 && opts.PriceMax > 0 && opts.PriceMin > opts.PriceMax {
		return fmt.Errorf("%w: price_min must be <= price_max", domain.ErrInvalidQuery)
	}

	return nil
}
