package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/rentsignal/aircomps/internal/adapters/http"
	"github.com/rentsignal/aircomps/internal/core/domain"
	"github.com/rentsignal/aircomps/internal/core/usecases"
)

// ---- Mock providers ----

type mockSearchProvider struct {
	searchFn func(ctx context.Context, q domain.SearchQuery) ([]domain.RawListing, error)
}

func (m *mockSearchProvider) Search(ctx context.Context, q domain.SearchQuery) ([]domain.RawListing, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return nil, nil
}

type mockListingProvider struct {
	detailsFn  func(ctx context.Context, roomID string) (map[string]any, error)
	quoteFn    func(ctx context.Context, roomID, checkIn, checkOut string, adults int) (map[string]any, error)
	calendarFn func(ctx context.Context, roomID, checkIn, checkOut string) (map[string]any, error)
}

func (m *mockListingProvider) Details(ctx context.Context, roomID string) (map[string]any, error) {
	if m.detailsFn != nil {
		return m.detailsFn(ctx, roomID)
	}
	return map[string]any{}, nil
}
func (m *mockListingProvider) Quote(ctx context.Context, roomID, checkIn, checkOut string, adults int) (map[string]any, error) {
	if m.quoteFn != nil {
		return m.quoteFn(ctx, roomID, checkIn, checkOut, adults)
	}
	return map[string]any{}, nil
}
func (m *mockListingProvider) Calendar(ctx context.Context, roomID, checkIn, checkOut string) (map[string]any, error) {
	if m.calendarFn != nil {
		return m.calendarFn(ctx, roomID, checkIn, checkOut)
	}
	return map[string]any{}, nil
}

type mockHistoryRepo struct {
	insertFn func(ctx context.Context, log *domain.SearchLog, listings []domain.Listing) error
	recentFn func(ctx context.Context, offset, limit int) ([]domain.SearchLog, error)
	countFn  func(ctx context.Context) (int, error)
}

func (m *mockHistoryRepo) Insert(ctx context.Context, log *domain.SearchLog, listings []domain.Listing) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, log, listings)
	}
	return nil
}
func (m *mockHistoryRepo) Recent(ctx context.Context, offset, limit int) ([]domain.SearchLog, error) {
	if m.recentFn != nil {
		return m.recentFn(ctx, offset, limit)
	}
	return nil, nil
}
func (m *mockHistoryRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

// seededHistoryRepo backs the pagination tests with n in-memory rows,
// newest first, ids "1"..."n".
func seededHistoryRepo(n int) *mockHistoryRepo {
	logs := make([]domain.SearchLog, n)
	for i := range logs {
		logs[i] = domain.SearchLog{ID: fmt.Sprintf("%d", i+1), Count: i}
	}
	return &mockHistoryRepo{
		recentFn: func(ctx context.Context, offset, limit int) ([]domain.SearchLog, error) {
			if offset >= len(logs) {
				return nil, nil
			}
			end := offset + limit
			if end > len(logs) {
				end = len(logs)
			}
			return logs[offset:end], nil
		},
		countFn: func(ctx context.Context) (int, error) {
			return len(logs), nil
		},
	}
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Comps:              usecases.NewCompsService(&mockSearchProvider{}, nil, nil, nil, usecases.CompsConfig{}),
		Listings:           usecases.NewListingService(&mockListingProvider{}, nil, 0),
		History:            usecases.NewHistoryService(nil),
		DefaultRadiusMiles: 5,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func rawListing(id, title string, lat, lon float64) domain.RawListing {
	return domain.RawListing{
		"listing": map[string]any{
			"id":   id,
			"name": title,
			"coordinates": map[string]any{
				"latitude":  lat,
				"longitude": lon,
			},
		},
	}
}

// ---- Comps handler tests ----

func TestComps_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Comps = usecases.NewCompsService(&mockSearchProvider{
			searchFn: func(ctx context.Context, q domain.SearchQuery) ([]domain.RawListing, error) {
				return []domain.RawListing{
					rawListing("27955738", "Cozy Loft", 35.84, -78.64),
					rawListing("31000001", "Garden Studio", 35.85, -78.65),
				}, nil
			},
		}, nil, nil, nil, usecases.CompsConfig{})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/comps?lat=35.8378&lon=-78.6424&radius=5", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result domain.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Count != 2 || len(result.Listings) != 2 {
		t.Fatalf("expected 2 listings, got count=%d len=%d", result.Count, len(result.Listings))
	}
	// Upstream order preserved
	if *result.Listings[0].Title != "Cozy Loft" {
		t.Errorf("first listing = %q, want Cozy Loft", *result.Listings[0].Title)
	}
	if result.Listings[0].DistanceMi == nil {
		t.Error("expected distance_mi to be computed")
	}
}

func TestComps_MissingParams(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/comps?radius=5", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Status int    `json:"status"`
		Code   string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request error, got %s", apiErr.Code)
	}
}

func TestComps_InvalidRadius(t *testing.T) {
	app := setupApp(makeDeps())

	for _, radius := range []string{"0", "-3", "9999"} {
		req := httptest.NewRequest("GET", "/v1/comps?lat=35.83&lon=-78.64&radius="+radius, nil)
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 400 {
			t.Errorf("radius=%s: expected 400, got %d", radius, resp.StatusCode)
		}
	}
}

func TestComps_UpstreamDown(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Comps = usecases.NewCompsService(&mockSearchProvider{
			searchFn: func(ctx context.Context, q domain.SearchQuery) ([]domain.RawListing, error) {
				return nil, fmt.Errorf("%w: upstream returned 503", domain.ErrUpstreamUnavailable)
			},
		}, nil, nil, nil, usecases.CompsConfig{})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/comps?lat=35.83&lon=-78.64&radius=5", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 502 {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_gateway" {
		t.Errorf("expected bad_gateway error, got %s", apiErr.Code)
	}
}

func TestComps_AuthToken(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.AuthToken = "s3cret"
	})
	app := setupApp(deps)

	// No token
	req := httptest.NewRequest("GET", "/v1/comps?lat=35.83&lon=-78.64", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 401 {
		t.Fatalf("no token: expected 401, got %d", resp.StatusCode)
	}

	// Wrong token
	req = httptest.NewRequest("GET", "/v1/comps?lat=35.83&lon=-78.64&token=nope", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 401 {
		t.Fatalf("wrong token: expected 401, got %d", resp.StatusCode)
	}

	// Bearer header
	req = httptest.NewRequest("GET", "/v1/comps?lat=35.83&lon=-78.64", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("bearer token: expected 200, got %d", resp.StatusCode)
	}

	// Legacy query param
	req = httptest.NewRequest("GET", "/v1/comps?lat=35.83&lon=-78.64&token=s3cret", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("query token: expected 200, got %d", resp.StatusCode)
	}

	// Health stays open
	req = httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("health with auth enabled: expected 200, got %d", resp.StatusCode)
	}
}

// ---- Availability handler tests ----

func TestAvailability_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Listings = usecases.NewListingService(&mockListingProvider{
			detailsFn: func(ctx context.Context, roomID string) (map[string]any, error) {
				return map[string]any{"title": "Cozy Loft"}, nil
			},
			quoteFn: func(ctx context.Context, roomID, checkIn, checkOut string, adults int) (map[string]any, error) {
				if adults != 2 {
					t.Errorf("adults = %d, want default 2", adults)
				}
				return map[string]any{"total": "480.00"}, nil
			},
			calendarFn: func(ctx context.Context, roomID, checkIn, checkOut string) (map[string]any, error) {
				return map[string]any{"calendarMonths": []any{}}, nil
			},
		}, nil, 0)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/listings/27955738/availability?check_in=2026-09-01&check_out=2026-09-05", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var snap domain.ListingSnapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	if snap.RoomID != "27955738" {
		t.Errorf("room_id = %q", snap.RoomID)
	}
	if snap.Details["title"] != "Cozy Loft" {
		t.Errorf("details = %v", snap.Details)
	}
}

func TestAvailability_MissingDates(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/listings/27955738/availability", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAvailability_BadRoomID(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/listings/not-a-room/availability?check_in=2026-09-01&check_out=2026-09-05", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAvailability_NotFound(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Listings = usecases.NewListingService(&mockListingProvider{
			detailsFn: func(ctx context.Context, roomID string) (map[string]any, error) {
				return nil, fmt.Errorf("%w: upstream returned 404", domain.ErrNotFound)
			},
		}, nil, 0)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/listings/999/availability?check_in=2026-09-01&check_out=2026-09-05", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// ---- History handler tests ----

func TestRecentSearches_Disabled(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/searches/recent", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404 when history disabled, got %d", resp.StatusCode)
	}
}

func TestRecentSearches_Pagination(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.History = usecases.NewHistoryService(seededHistoryRepo(5))
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/searches/recent?offset=2&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.SearchLog `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data) != 2 {
		t.Errorf("expected 2 logs in page, got %d", len(result.Data))
	}
	if result.Data[0].ID != "3" {
		t.Errorf("first log id = %q, want 3", result.Data[0].ID)
	}
	if result.Pagination.Total != 5 {
		t.Errorf("total = %d, want 5", result.Pagination.Total)
	}
	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="prev"`) {
		t.Errorf("expected prev link header, got %q", link)
	}
	if !strings.Contains(link, `offset=4&limit=2>; rel="next"`) {
		t.Errorf("expected next link header, got %q", link)
	}
}

// Offsets past the default window must still page through the full table,
// and total must describe the whole table, not the fetched window.
func TestRecentSearches_DeepOffset(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.History = usecases.NewHistoryService(seededHistoryRepo(200))
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/searches/recent?offset=90&limit=20", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.SearchLog `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data) != 20 {
		t.Fatalf("expected 20 logs at offset 90, got %d", len(result.Data))
	}
	if result.Data[0].ID != "91" {
		t.Errorf("first log id = %q, want 91", result.Data[0].ID)
	}
	if result.Pagination.Total != 200 {
		t.Errorf("total = %d, want 200", result.Pagination.Total)
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, `offset=110&limit=20>; rel="next"`) {
		t.Errorf("expected next link header, got %q", link)
	}

	// The first page advertises a next page when more rows exist.
	req = httptest.NewRequest("GET", "/v1/searches/recent?offset=0&limit=20", nil)
	resp, _ = app.Test(req, -1)
	if link := resp.Header.Get("Link"); !strings.Contains(link, `rel="next"`) {
		t.Errorf("expected next link on first page, got %q", link)
	}
}

// ---- Legacy route tests ----

func TestLegacySearch_Envelope(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Comps = usecases.NewCompsService(&mockSearchProvider{
			searchFn: func(ctx context.Context, q domain.SearchQuery) ([]domain.RawListing, error) {
				return []domain.RawListing{rawListing("27955738", "Loft", 35.84, -78.64)}, nil
			},
		}, nil, nil, nil, usecases.CompsConfig{})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/search?lat=35.8378&lon=-78.6424", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header on legacy route")
	}
	if resp.Header.Get("Sunset") == "" {
		t.Error("expected Sunset header on legacy route")
	}

	var envelope map[string]json.RawMessage
	json.NewDecoder(resp.Body).Decode(&envelope)
	// The legacy envelope spells it "centre".
	if _, ok := envelope["centre"]; !ok {
		t.Errorf("expected centre key, got keys %v", keys(envelope))
	}
	if _, ok := envelope["count"]; !ok {
		t.Error("expected count key")
	}
}

func TestLegacyCalendar_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Listings = usecases.NewListingService(&mockListingProvider{}, nil, 0)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/calendar?room=27955738&check_in=2026-09-01&check_out=2026-09-05", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var envelope map[string]json.RawMessage
	json.NewDecoder(resp.Body).Decode(&envelope)
	for _, k := range []string{"calendar", "details", "pricing"} {
		if _, ok := envelope[k]; !ok {
			t.Errorf("expected %s key in legacy calendar envelope", k)
		}
	}
}

func TestLegacyCalendar_MissingRoom(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/calendar?check_in=2026-09-01&check_out=2026-09-05", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- GraphQL tests ----

func TestGraphQL_Comps(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Comps = usecases.NewCompsService(&mockSearchProvider{
			searchFn: func(ctx context.Context, q domain.SearchQuery) ([]domain.RawListing, error) {
				return []domain.RawListing{rawListing("27955738", "Loft", 35.84, -78.64)}, nil
			},
		}, nil, nil, nil, usecases.CompsConfig{})
	})
	app := setupApp(deps)

	query := `{"query": "{ comps(lat: 35.8378, lon: -78.6424, radius: 5) { count listings { id title distance_mi } } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Comps struct {
				Count    int `json:"count"`
				Listings []struct {
					ID    *string `json:"id"`
					Title *string `json:"title"`
				} `json:"listings"`
			} `json:"comps"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	if result.Data.Comps.Count != 1 {
		t.Errorf("count = %d, want 1", result.Data.Comps.Count)
	}
	if len(result.Data.Comps.Listings) != 1 || *result.Data.Comps.Listings[0].ID != "27955738" {
		t.Errorf("listings = %+v", result.Data.Comps.Listings)
	}
}

// ---- Health tests ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var health struct {
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&health)
	if health.Status != "healthy" {
		t.Errorf("status = %q", health.Status)
	}
}

func TestReady_NoOptionalDeps(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	// Nothing configured is still ready; optional deps only fail readiness
	// when configured and broken.
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

// ---- Docs tests ----

// The OpenAPI document is compiled into the binary, so /docs must serve it
// no matter where the process was started from.
func TestDocs_OpenAPIServed(t *testing.T) {
	wd, _ := os.Getwd()
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/docs/openapi.yaml", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "openapi:") {
		t.Error("expected an OpenAPI document in the response body")
	}
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
