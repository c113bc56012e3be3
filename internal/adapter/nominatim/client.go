// Package nominatim implements forward geocoding against an OpenStreetMap
// Nominatim search endpoint.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.ngs.io/nearest-api/internal/geocode"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Client queries the /search endpoint. It implements geocode.Geocoder.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a Nominatim client. The usage policy requires an
// identifying User-Agent.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the first candidate for q. An empty result set is
// geocode.ErrNoMatch; 4xx responses other than 429 wrap geocode.ErrRejected.
func (c *Client) Geocode(ctx context.Context, q geocode.Query) (geocode.Place, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 1
	}

	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("format", "jsonv2")
	params.Set("limit", strconv.Itoa(limit))
	if len(q.CountryCodes) > 0 {
		params.Set("countrycodes", strings.ToLower(strings.Join(q.CountryCodes, ",")))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), http.NoBody)
	if err != nil {
		return geocode.Place{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geocode.Place{}, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return geocode.Place{}, fmt.Errorf("nominatim HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return geocode.Place{}, fmt.Errorf("%w: HTTP %d: %s", geocode.ErrRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geocode.Place{}, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return geocode.Place{}, geocode.ErrNoMatch
	}

	best := results[0]
	lat, err := strconv.ParseFloat(best.Lat, 64)
	if err != nil {
		return geocode.Place{}, fmt.Errorf("invalid latitude %q: %w", best.Lat, err)
	}
	lon, err := strconv.ParseFloat(best.Lon, 64)
	if err != nil {
		return geocode.Place{}, fmt.Errorf("invalid longitude %q: %w", best.Lon, err)
	}

	return geocode.Place{Lat: lat, Lon: lon, Display: best.DisplayName}, nil
}
