// Package homeassistant resolves the home location from a Home Assistant
// instance's REST API.
package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Location is the subset of /api/config used for pass prediction.
type Location struct {
	Name      string  `json:"location_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
	TimeZone  string  `json:"time_zone"`
}

// TimeLocation loads the configured time zone, falling back to UTC when
// Home Assistant reports none.
func (l Location) TimeLocation() (*time.Location, error) {
	if l.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(l.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", l.TimeZone, err)
	}
	return loc, nil
}

// Client talks to the Home Assistant REST API with a long-lived access token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for baseURL (for example http://homeassistant.local:8123).
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Location fetches the home location and time zone.
func (c *Client) Location(ctx context.Context) (Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/config", nil)
	if err != nil {
		return Location{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("fetching home assistant config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("unexpected status code %d from home assistant", resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&loc); err != nil {
		return Location{}, fmt.Errorf("decoding home assistant config: %w", err)
	}
	return loc, nil
}
