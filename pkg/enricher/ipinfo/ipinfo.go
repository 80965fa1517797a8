// pkg/enricher/ipinfo/ipinfo.go - IP geolocation lookups

package ipinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	baseURL = "https://ipinfo.io"
	// free tier allows 50k lookups a month with no per-second cap
	defaultRequestsPerSecond = 20
)

// Response is the body of GET /{ip}/json
type Response struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Postal   string `json:"postal"`
	Timezone string `json:"timezone"`
	Bogon    bool   `json:"bogon"`
}

// Client resolves IP addresses to coordinates
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient creates an ipinfo client. An empty base keeps the public API.
func NewClient(base string, timeout time.Duration) *Client {
	if base == "" {
		base = baseURL
	}
	if timeout <= 0 {
		timeout = enricher.DefaultTimeout
	}
	return &Client{
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		limiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
	}
}

// Fetch implements enricher.Fetcher for KindIP identifiers. The credential
// token, when set, is sent as a bearer token.
func (c *Client) Fetch(ctx context.Context, id enricher.Identifier, cred enricher.Credential) enricher.Outcome {
	ip := strings.TrimSpace(id.Value)
	if ip == "" {
		return enricher.NotFound(fmt.Errorf("empty ip: %w", enricher.ErrNotFound))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return enricher.NotFound(err)
	}

	req := c.http.R().SetContext(ctx).SetPathParam("ip", ip)
	if cred.Token != "" {
		req.SetAuthToken(cred.Token)
	}
	resp, err := req.Get("/{ip}/json")
	if err != nil {
		return enricher.NotFound(fmt.Errorf("ipinfo request failed: %w", err))
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return enricher.NotFound(fmt.Errorf("ipinfo returned status %d: %w", resp.StatusCode(), enricher.ErrRateLimit))
	case http.StatusNotFound:
		return enricher.NotFound(fmt.Errorf("ipinfo returned status %d: %w", resp.StatusCode(), enricher.ErrNotFound))
	default:
		return enricher.NotFound(fmt.Errorf("ipinfo returned status %d: %w", resp.StatusCode(), enricher.ErrAPIError))
	}

	var body Response
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return enricher.NotFound(fmt.Errorf("failed to parse JSON response: %w", err))
	}
	if body.Bogon {
		return enricher.NotFound(fmt.Errorf("%s is a bogon address: %w", ip, enricher.ErrNotFound))
	}

	lat, lon, err := ParseLoc(body.Loc)
	if err != nil {
		return enricher.NotFound(err)
	}

	return enricher.Found(enricher.GeoInfo{
		Lat:     lat,
		Lon:     lon,
		City:    body.City,
		Region:  body.Region,
		Country: body.Country,
	})
}

// ParseLoc splits an ipinfo "lat,lon" pair
func ParseLoc(loc string) (float64, float64, error) {
	parts := strings.Split(loc, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed loc %q: %w", loc, enricher.ErrNotFound)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed latitude in %q: %w", loc, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed longitude in %q: %w", loc, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("coordinates out of range in %q: %w", loc, enricher.ErrNotFound)
	}
	return lat, lon, nil
}
