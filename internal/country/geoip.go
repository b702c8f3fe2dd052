package country

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-vat/internal/resilience"
)

// GeoClient resolves countries from IPs via an external geolocation service.
// Lookups ride the shared resilient HTTP client so a slow or flapping
// provider cannot stall checkout.
type GeoClient struct {
	HTTP    *resilience.HTTPClient
	BaseURL string
}

type geoResponse struct {
	Country string `json:"country"`
}

// CountryForIP queries the provider. An unplaceable address yields an empty
// country, not an error.
func (c GeoClient) CountryForIP(ctx context.Context, ip string) (string, error) {
	if c.HTTP == nil || strings.TrimSpace(c.BaseURL) == "" {
		return "", nil
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+"/"+ip, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("country: geoip status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	var parsed geoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	return Normalize(parsed.Country), nil
}

// NewGeoClient builds a client with conservative retry settings.
func NewGeoClient(baseURL string) GeoClient {
	return GeoClient{
		HTTP: &resilience.HTTPClient{
			Client:      &http.Client{Timeout: 2 * time.Second, Transport: otelhttp.NewTransport(nil)},
			Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second),
			BaseBackoff: 50 * time.Millisecond,
			MaxAttempts: 2,
			Timeout:     2 * time.Second,
		},
		BaseURL: baseURL,
	}
}
