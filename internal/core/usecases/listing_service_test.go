package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rentsignal/aircomps/internal/core/domain"
	"github.com/rentsignal/aircomps/internal/core/usecases"
)

type fakeListingProvider struct {
	detailsFn  func(ctx context.Context, roomID string) (map[string]any, error)
	quoteFn    func(ctx context.Context, roomID, checkIn, checkOut string, adults int) (map[string]any, error)
	calendarFn func(ctx context.Context, roomID, checkIn, checkOut string) (map[string]any, error)
	calls      int
}

func (f *fakeListingProvider) Details(ctx context.Context, roomID string) (map[string]any, error) {
	f.calls++
	if f.detailsFn != nil {
		return f.detailsFn(ctx, roomID)
	}
	return map[string]any{}, nil
}

func (f *fakeListingProvider) Quote(ctx context.Context, roomID, checkIn, checkOut string, adults int) (map[string]any, error) {
	if f.quoteFn != nil {
		return f.quoteFn(ctx, roomID, checkIn, checkOut, adults)
	}
	return map[string]any{}, nil
}

func (f *fakeListingProvider) Calendar(ctx context.Context, roomID, checkIn, checkOut string) (map[string]any, error) {
	if f.calendarFn != nil {
		return f.calendarFn(ctx, roomID, checkIn, checkOut)
	}
	return map[string]any{}, nil
}

func TestAvailabilityValidation(t *testing.T) {
	svc := usecases.NewListingService(&fakeListingProvider{}, nil, 0)

	cases := []struct {
		name                     string
		room, checkIn, checkOut string
	}{
		{"empty room", "", "2026-09-01", "2026-09-05"},
		{"non-numeric room", "abc123", "2026-09-01", "2026-09-05"},
		{"room with url", "rooms/27955738", "2026-09-01", "2026-09-05"},
		{"missing check_in", "27955738", "", "2026-09-05"},
		{"bad check_out", "27955738", "2026-09-01", "sept 5"},
		{"check_out before check_in", "27955738", "2026-09-05", "2026-09-01"},
		{"zero-night stay", "27955738", "2026-09-01", "2026-09-01"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Availability(context.Background(), tc.room, tc.checkIn, tc.checkOut)
			if !errors.Is(err, domain.ErrInvalidQuery) {
				t.Errorf("err = %v, want ErrInvalidQuery", err)
			}
		})
	}
}

func TestAvailabilityAssemblesSnapshot(t *testing.T) {
	provider := &fakeListingProvider{
		detailsFn: func(ctx context.Context, roomID string) (map[string]any, error) {
			if roomID != "27955738" {
				t.Errorf("roomID = %q", roomID)
			}
			return map[string]any{"title": "Cozy Loft"}, nil
		},
		quoteFn: func(ctx context.Context, roomID, checkIn, checkOut string, adults int) (map[string]any, error) {
			if adults != 2 {
				t.Errorf("adults = %d, want 2", adults)
			}
			return map[string]any{"total": "480.00"}, nil
		},
		calendarFn: func(ctx context.Context, roomID, checkIn, checkOut string) (map[string]any, error) {
			if checkIn != "2026-09-01" || checkOut != "2026-09-05" {
				t.Errorf("dates = %s..%s", checkIn, checkOut)
			}
			return map[string]any{"calendarMonths": []any{"sep"}}, nil
		},
	}
	svc := usecases.NewListingService(provider, nil, 0)

	snap, err := svc.Availability(context.Background(), "27955738", "2026-09-01", "2026-09-05")
	if err != nil {
		t.Fatal(err)
	}
	if snap.RoomID != "27955738" {
		t.Errorf("room_id = %q", snap.RoomID)
	}
	if snap.Details["title"] != "Cozy Loft" {
		t.Errorf("details = %v", snap.Details)
	}
	if snap.Pricing["total"] != "480.00" {
		t.Errorf("pricing = %v", snap.Pricing)
	}
	if snap.Calendar["calendarMonths"] == nil {
		t.Errorf("calendar = %v", snap.Calendar)
	}
}

func TestAvailabilityProviderErrorWrapped(t *testing.T) {
	provider := &fakeListingProvider{
		detailsFn: func(ctx context.Context, roomID string) (map[string]any, error) {
			return nil, fmt.Errorf("%w: upstream returned 404", domain.ErrNotFound)
		},
	}
	svc := usecases.NewListingService(provider, nil, 0)

	_, err := svc.Availability(context.Background(), "999", "2026-09-01", "2026-09-05")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAvailabilityCached(t *testing.T) {
	provider := &fakeListingProvider{}
	cache := newFakeCache()
	svc := usecases.NewListingService(provider, cache, 600)

	if _, err := svc.Availability(context.Background(), "27955738", "2026-09-01", "2026-09-05"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Availability(context.Background(), "27955738", "2026-09-01", "2026-09-05"); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}

	// A different range misses the cache.
	if _, err := svc.Availability(context.Background(), "27955738", "2026-09-02", "2026-09-06"); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 2 {
		t.Errorf("provider called %d times, want 2", provider.calls)
	}
}

// The snapshot's details, pricing and calendar are opaque upstream payloads
// decoded with UseNumber, so they can carry ids wider than float64. Serving
// from cache must not round them: the cached snapshot has to serialize byte
// for byte like the fresh one.
func TestAvailabilityCacheHitPreservesLongNumbers(t *testing.T) {
	provider := &fakeListingProvider{
		detailsFn: func(ctx context.Context, roomID string) (map[string]any, error) {
			return map[string]any{"listingId": json.Number("1109983338215838509")}, nil
		},
		quoteFn: func(ctx context.Context, roomID, checkIn, checkOut string, adults int) (map[string]any, error) {
			return map[string]any{"productId": json.Number("9876543210987654321")}, nil
		},
	}
	cache := newFakeCache()
	svc := usecases.NewListingService(provider, cache, 600)

	first, err := svc.Availability(context.Background(), "27955738", "2026-09-01", "2026-09-05")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Availability(context.Background(), "27955738", "2026-09-01", "2026-09-05")
	if err != nil {
		t.Fatal(err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider called %d times, want 1", provider.calls)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("cached snapshot differs from fresh snapshot:\nfresh:  %s\ncached: %s", a, b)
	}
	if !strings.Contains(string(b), "1109983338215838509") {
		t.Errorf("long listing id rounded on cache hit: %s", b)
	}
}

func TestHistoryDisabled(t *testing.T) {
	svc := usecases.NewHistoryService(nil)

	_, err := svc.Recent(context.Background(), 10)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHistoryLimitClamped(t *testing.T) {
	history := &clampHistory{}
	svc := usecases.NewHistoryService(history)

	for _, limit := range []int{0, -5, 500} {
		if _, err := svc.Recent(context.Background(), limit); err != nil {
			t.Fatal(err)
		}
		if history.lastLimit != 20 {
			t.Errorf("limit %d clamped to %d, want 20", limit, history.lastLimit)
		}
	}

	if _, err := svc.Recent(context.Background(), 50); err != nil {
		t.Fatal(err)
	}
	if history.lastLimit != 50 {
		t.Errorf("limit 50 passed as %d", history.lastLimit)
	}
}

// The offset reaches the repository untouched, so deep pages work, and the
// reported total is the table count rather than the fetched window.
func TestHistoryPageOffsetAndTotal(t *testing.T) {
	history := &clampHistory{total: 200}
	svc := usecases.NewHistoryService(history)

	_, total, err := svc.Page(context.Background(), 90, 20)
	if err != nil {
		t.Fatal(err)
	}
	if history.lastOffset != 90 || history.lastLimit != 20 {
		t.Errorf("repo got offset=%d limit=%d, want 90/20", history.lastOffset, history.lastLimit)
	}
	if total != 200 {
		t.Errorf("total = %d, want 200", total)
	}

	if _, _, err := svc.Page(context.Background(), -3, 20); err != nil {
		t.Fatal(err)
	}
	if history.lastOffset != 0 {
		t.Errorf("negative offset passed as %d, want 0", history.lastOffset)
	}
}

type clampHistory struct {
	lastOffset int
	lastLimit  int
	total      int
}

func (c *clampHistory) Insert(ctx context.Context, log *domain.SearchLog, listings []domain.Listing) error {
	return nil
}

func (c *clampHistory) Recent(ctx context.Context, offset, limit int) ([]domain.SearchLog, error) {
	c.lastOffset = offset
	c.lastLimit = limit
	return nil, nil
}

func (c *clampHistory) Count(ctx context.Context) (int, error) {
	return c.total, nil
}
