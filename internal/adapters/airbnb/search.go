package airbnb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rentsignal/aircomps/internal/core/domain"
)

const (
	itemsPerGrid   = 50
	maxSearchPages = 10
)

// Search runs the map-area stays search, following pagination cursors until
// the upstream reports no further page. Results come back as raw maps in
// upstream order; normalization is the caller's job.
func (c *Client) Search(ctx context.Context, q domain.SearchQuery) ([]domain.RawListing, error) {
	apiKey, err := c.APIKey(ctx)
	if err != nil {
		return nil, err
	}

	var all []domain.RawListing
	cursor := ""
	for page := 0; page < maxSearchPages; page++ {
		body, err := c.searchPage(ctx, apiKey, q, cursor)
		if err != nil {
			return nil, err
		}

		results, next := extractSearchPage(body)
		all = append(all, results...)
		if next == "" {
			break
		}
		cursor = next
	}

	return all, nil
}

func (c *Client) searchPage(ctx context.Context, apiKey string, q domain.SearchQuery, cursor string) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/api/v3/StaysSearch/%s?%s", c.baseURL, staysSearchHash, url.Values{
		"operationName": {"StaysSearch"},
		"locale":        {q.Locale},
		"currency":      {q.Currency},
	}.Encode())

	payload, err := json.Marshal(searchPayload(q, cursor))
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	c.apiHeaders(req, apiKey)

	resp, err := c.do("search", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeBody(resp.Body)
}

// searchPayload assembles the persisted-query body. The upstream encodes
// every filter as a rawParams name/values pair.
func searchPayload(q domain.SearchQuery, cursor string) map[string]any {
	params := []map[string]any{
		rawParam("neLat", formatCoord(q.Box.NELat)),
		rawParam("neLng", formatCoord(q.Box.NELon)),
		rawParam("swLat", formatCoord(q.Box.SWLat)),
		rawParam("swLng", formatCoord(q.Box.SWLon)),
		rawParam("zoomLevel", strconv.Itoa(q.Zoom)),
		rawParam("searchByMap", "true"),
		rawParam("itemsPerGrid", strconv.Itoa(itemsPerGrid)),
		rawParam("refinementPaths", "/homes"),
		rawParam("cdnCacheSafe", "false"),
		rawParam("channel", "EXPLORE"),
		rawParam("version", "1.8.3"),
	}
	if q.CheckIn != "" {
		params = append(params,
			rawParam("checkin", q.CheckIn),
			rawParam("checkout", q.CheckOut),
		)
	}
	if q.PriceMin > 0 {
		params = append(params, rawParam("priceFilterMin", strconv.Itoa(q.PriceMin)))
	}
	if q.PriceMax > 0 {
		params = append(params, rawParam("priceFilterMax", strconv.Itoa(q.PriceMax)))
	}

	request := map[string]any{
		"metadataOnly": false,
		"searchType":   "user_map_move",
		"rawParams":    params,
	}
	if cursor != "" {
		request["cursor"] = cursor
	}

	return map[string]any{
		"operationName": "StaysSearch",
		"variables": map[string]any{
			"staysSearchRequest": request,
		},
		"extensions": map[string]any{
			"persistedQuery": map[string]any{
				"version":    1,
				"sha256Hash": staysSearchHash,
			},
		},
	}
}

func rawParam(name, value string) map[string]any {
	return map[string]any{"filterName": name, "filterValues": []string{value}}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// extractSearchPage pulls the listing entries and the next-page cursor out
// of one response. An unrecognized shape yields an empty page rather than
// an error; schema drift in the envelope shows up as zero results, not a
// crash.
func extractSearchPage(body map[string]any) ([]domain.RawListing, string) {
	results, ok := dig(body, "data", "presentation", "staysSearch", "results")
	if !ok {
		return nil, ""
	}
	page, ok := results.(map[string]any)
	if !ok {
		return nil, ""
	}

	var listings []domain.RawListing
	if entries, ok := page["searchResults"].([]any); ok {
		for _, e := range entries {
			if m, ok := e.(map[string]any); ok {
				listings = append(listings, domain.RawListing(m))
			}
		}
	}

	cursor := ""
	if next, ok := dig(page, "paginationInfo", "nextPageCursor"); ok {
		if s, ok := next.(string); ok {
			cursor = s
		}
	}

	return listings, cursor
}
