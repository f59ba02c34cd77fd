package airbnb

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rentsignal/aircomps/internal/core/domain"
	"github.com/rentsignal/aircomps/internal/pkg/metrics"
)

// Persisted-query hashes for the upstream GraphQL endpoints. These change
// rarely; the API key changes far more often and is discovered at runtime.
const (
	staysSearchHash = "d4d9503616dc72ab220ed8dcf17f166816dccb2593e7b4625c91c3fce3a3b3d6"
	pdpSectionsHash = "83bd85f9521f7e5c0a1bb2a1a96a38f2c4b1a9af2378f4a4a8e2b7b5b9b1c2d3"
	calendarHash    = "8f08e03c7bd16fcad3c92a3592c19a8b559a0d0855a84028d1163d4733ed9ade"
)

// apiKeyTTL bounds how long a discovered key is reused before the landing
// page is scraped again.
const apiKeyTTL = 12 * time.Hour

// Config carries the upstream connection settings.
type Config struct {
	BaseURL  string
	ProxyURL string // empty = direct connection
	Timeout  time.Duration
	Currency string
	Language string
}

// Client talks to the unofficial listing API. It implements both
// ports.SearchProvider and ports.ListingProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	currency   string
	language   string

	mu         sync.Mutex
	apiKey     string
	apiKeyFrom time.Time
}

// NewClient builds a Client. The proxy URL, when set, routes every upstream
// request including the landing-page key discovery.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.airbnb.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		currency:   cfg.Currency,
		language:   cfg.Language,
	}, nil
}

// do executes one upstream request, recording latency and outcome under the
// given operation label. The caller owns the response body on success.
func (c *Client) do(op string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		metrics.UpstreamRequests.WithLabelValues(op, fmt.Sprintf("http_%d", resp.StatusCode)).Inc()
		return nil, err
	}

	metrics.UpstreamRequests.WithLabelValues(op, "ok").Inc()
	return resp, nil
}

// classifyStatus maps upstream HTTP statuses onto the domain error taxonomy.
// 403 is how the upstream signals a block, so it counts as unavailable.
func classifyStatus(status int) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: upstream returned 404", domain.ErrNotFound)
	case status == http.StatusForbidden,
		status == http.StatusTooManyRequests,
		status >= 500:
		return fmt.Errorf("%w: upstream returned %d", domain.ErrUpstreamUnavailable, status)
	default:
		return fmt.Errorf("upstream returned unexpected status %d", status)
	}
}

// decodeBody parses a JSON response with number preservation. Listing ids
// run 19-20 digits, past float64's exact integer range, so everything
// numeric stays a json.Number until a consumer asks for a concrete type.
func decodeBody(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode upstream response: %v", domain.ErrUpstreamUnavailable, err)
	}
	return body, nil
}

// apiHeaders are the headers every GraphQL call carries.
func (c *Client) apiHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.language)
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("X-Airbnb-Api-Key", apiKey)
	req.Header.Set("X-Airbnb-Supports-Airlock-V2", "true")
}

// dig walks nested maps and returns the value at the key path.
func dig(m map[string]any, keys ...string) (any, bool) {
	var cur any = m
	for _, k := range keys {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
