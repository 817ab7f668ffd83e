// Package google adapts the Google Directions web service to the driver
// module. Each FetchRoute call is exactly one HTTP round trip; there is no
// retry.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/polyline"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com"
	directionsPath = "/maps/api/directions/json"
	maxBodyBytes   = 4 << 20
)

// BuildAPIKey is the last-resort key, set at link time with
// -ldflags "-X github.com/bahromnajmiddinov/food-delivery/module/driver/internal/directions/google.BuildAPIKey=...".
var BuildAPIKey string

// ErrConfiguration means no API key could be resolved. The request is never
// sent.
var ErrConfiguration = errors.New("directions: google maps api key not provided")

// TransportError covers a request that did not complete or came back with a
// non-2xx status.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("directions: request failed: %d", e.StatusCode)
	}
	return fmt.Sprintf("directions: request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Config struct {
	BaseURL string
	// APIKey is the key from environment configuration.
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ResolveAPIKey picks the explicit key, then the configured one, then the
// build-time one.
func (c *Client) ResolveAPIKey(explicit string) (string, error) {
	for _, k := range []string{explicit, c.apiKey, BuildAPIKey} {
		if k != "" {
			return k, nil
		}
	}
	return "", ErrConfiguration
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		Legs []struct {
			Duration          *textValue `json:"duration"`
			DurationInTraffic *textValue `json:"duration_in_traffic"`
			Distance          *textValue `json:"distance"`
		} `json:"legs"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

type textValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

// FetchRoute asks the directions service for a driving route. A response
// without routes or legs yields an empty Route and no error; callers treat
// that like a failure.
func (c *Client) FetchRoute(ctx context.Context, origin, destination domain.Coordinate, apiKey string) (*domain.Route, error) {
	key, err := c.ResolveAPIKey(apiKey)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("origin", formatCoordinate(origin))
	q.Set("destination", formatCoordinate(destination))
	q.Set("key", key)
	q.Set("mode", "driving")
	q.Set("departure_time", "now")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+directionsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("directions: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &TransportError{StatusCode: resp.StatusCode}
	}

	var data directionsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&data); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("decode response: %w", err)}
	}

	return toRoute(&data)
}

func toRoute(data *directionsResponse) (*domain.Route, error) {
	route := &domain.Route{Path: []domain.Coordinate{}}
	if len(data.Routes) == 0 {
		return route, nil
	}

	r := data.Routes[0]
	if len(r.Legs) == 0 {
		return route, nil
	}

	leg := r.Legs[0]
	switch {
	case leg.DurationInTraffic != nil:
		route.DurationSeconds = intPtr(leg.DurationInTraffic.Value)
	case leg.Duration != nil:
		route.DurationSeconds = intPtr(leg.Duration.Value)
	}
	if leg.Distance != nil {
		route.DistanceMeters = intPtr(leg.Distance.Value)
	}

	if r.OverviewPolyline.Points != "" {
		path, err := polyline.Decode(r.OverviewPolyline.Points)
		if err != nil {
			return nil, &TransportError{Err: fmt.Errorf("decode polyline: %w", err)}
		}
		route.Path = path
	}
	return route, nil
}

func formatCoordinate(c domain.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

func intPtr(v int) *int {
	return &v
}
