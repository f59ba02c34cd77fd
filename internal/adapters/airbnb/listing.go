package airbnb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// productID wraps a classic room id into the opaque listing id the GraphQL
// endpoints expect.
func productID(roomID string) string {
	return base64.StdEncoding.EncodeToString([]byte("StayListing:" + roomID))
}

// Details returns the product-detail sections for one room.
func (c *Client) Details(ctx context.Context, roomID string) (map[string]any, error) {
	body, err := c.pdpSections(ctx, "details", roomID, "", "", 0)
	if err != nil {
		return nil, err
	}
	return pdpPayload(body), nil
}

// Quote returns the stay pricing for one room and date range.
func (c *Client) Quote(ctx context.Context, roomID, checkIn, checkOut string, adults int) (map[string]any, error) {
	body, err := c.pdpSections(ctx, "quote", roomID, checkIn, checkOut, adults)
	if err != nil {
		return nil, err
	}
	return pdpPayload(body), nil
}

// pdpPayload unwraps the product-detail envelope, falling back to the whole
// body when the envelope shape has drifted.
func pdpPayload(body map[string]any) map[string]any {
	if page, ok := dig(body, "data", "presentation", "stayProductDetailPage"); ok {
		if m, ok := page.(map[string]any); ok {
			return m
		}
	}
	return body
}

func (c *Client) pdpSections(ctx context.Context, op, roomID, checkIn, checkOut string, adults int) (map[string]any, error) {
	apiKey, err := c.APIKey(ctx)
	if err != nil {
		return nil, err
	}

	request := map[string]any{
		"id":       productID(roomID),
		"layouts":  []string{"SIDEBAR", "SINGLE_COLUMN"},
		"currency": c.currency,
	}
	if checkIn != "" {
		request["checkIn"] = checkIn
		request["checkOut"] = checkOut
		request["adults"] = adults
	}

	variables, err := json.Marshal(map[string]any{
		"id":                 productID(roomID),
		"pdpSectionsRequest": request,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal pdp variables: %w", err)
	}
	extensions, err := json.Marshal(map[string]any{
		"persistedQuery": map[string]any{"version": 1, "sha256Hash": pdpSectionsHash},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal pdp extensions: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v3/StaysPdpSections/%s?%s", c.baseURL, pdpSectionsHash, url.Values{
		"operationName": {"StaysPdpSections"},
		"locale":        {c.language},
		"currency":      {c.currency},
		"variables":     {string(variables)},
		"extensions":    {string(extensions)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build pdp request: %w", err)
	}
	c.apiHeaders(req, apiKey)

	resp, err := c.do(op, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeBody(resp.Body)
}

// Calendar returns the availability months spanning the stay range.
func (c *Client) Calendar(ctx context.Context, roomID, checkIn, checkOut string) (map[string]any, error) {
	apiKey, err := c.APIKey(ctx)
	if err != nil {
		return nil, err
	}

	start, err := time.Parse("2006-01-02", checkIn)
	if err != nil {
		start = time.Now()
	}
	months := monthSpan(checkIn, checkOut)

	variables, err := json.Marshal(map[string]any{
		"request": map[string]any{
			"count":     months,
			"listingId": roomID,
			"month":     int(start.Month()),
			"year":      start.Year(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal calendar variables: %w", err)
	}
	extensions, err := json.Marshal(map[string]any{
		"persistedQuery": map[string]any{"version": 1, "sha256Hash": calendarHash},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal calendar extensions: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v3/PdpAvailabilityCalendar/%s?%s", c.baseURL, calendarHash, url.Values{
		"operationName": {"PdpAvailabilityCalendar"},
		"locale":        {c.language},
		"currency":      {c.currency},
		"variables":     {string(variables)},
		"extensions":    {string(extensions)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build calendar request: %w", err)
	}
	c.apiHeaders(req, apiKey)

	resp, err := c.do("calendar", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp.Body)
	if err != nil {
		return nil, err
	}

	if cal, ok := dig(body, "data", "merlin", "pdpAvailabilityCalendar"); ok {
		if m, ok := cal.(map[string]any); ok {
			return m, nil
		}
	}
	return body, nil
}

// monthSpan counts the calendar months touched by the stay, clamped to a
// year of data.
func monthSpan(checkIn, checkOut string) int {
	in, err := time.Parse("2006-01-02", checkIn)
	if err != nil {
		return 3
	}
	out, err := time.Parse("2006-01-02", checkOut)
	if err != nil {
		return 3
	}
	span := (out.Year()-in.Year())*12 + int(out.Month()) - int(in.Month()) + 1
	if span < 1 {
		span = 1
	}
	if span > 12 {
		span = 12
	}
	return span
}
