package airbnb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/rentsignal/aircomps/internal/core/domain"
	"github.com/rentsignal/aircomps/internal/pkg/metrics"
)

// The public API key is embedded in the landing page markup inside the
// bootstrap config blob. The pattern survives both pretty-printed and
// minified pages.
var apiKeyPattern = regexp.MustCompile(`"api_config":\{"key":"(.+?)"`)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// browserHeaders make the landing-page fetch look like a navigation. The
// page serves a challenge instead of markup without them.
var browserHeaders = map[string]string{
	"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9," +
		"image/avif,image/webp,image/apng,*/*;q=0.8," +
		"application/signed-exchange;v=b3;q=0.7",
	"Accept-Language":           "en",
	"Cache-Control":             "no-cache",
	"Pragma":                    "no-cache",
	"Sec-Ch-Ua":                 `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"Windows"`,
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Upgrade-Insecure-Requests": "1",
	"User-Agent":                browserUserAgent,
}

// APIKey returns the cached upstream API key, scraping the landing page
// when the cache is empty or stale.
func (c *Client) APIKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.apiKey != "" && time.Since(c.apiKeyFrom) < apiKeyTTL {
		return c.apiKey, nil
	}

	key, err := c.fetchAPIKey(ctx)
	if err != nil {
		metrics.APIKeyRefreshes.WithLabelValues("error").Inc()
		// Keep serving a stale key over no key at all.
		if c.apiKey != "" {
			return c.apiKey, nil
		}
		return "", err
	}

	metrics.APIKeyRefreshes.WithLabelValues("ok").Inc()
	c.apiKey = key
	c.apiKeyFrom = time.Now()
	return key, nil
}

// InvalidateAPIKey drops the cached key so the next call rediscovers it.
func (c *Client) InvalidateAPIKey() {
	c.mu.Lock()
	c.apiKey = ""
	c.mu.Unlock()
}

func (c *Client) fetchAPIKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return "", fmt.Errorf("build landing page request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.do("apikey", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read landing page: %v", domain.ErrUpstreamUnavailable, err)
	}

	m := apiKeyPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("%w: api key not found, landing page markup may have changed", domain.ErrUpstreamUnavailable)
	}
	return string(m[1]), nil
}
