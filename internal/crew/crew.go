// Package crew reads the current ISS crew from the Open Notify API.
package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultURL   = "http://api.open-notify.org/astros.json"
	issCraft     = "ISS"
	maxBodyBytes = 1 << 20
)

// Roster is the crew currently aboard the ISS.
type Roster struct {
	Count int      `json:"count"`
	Names []string `json:"names"`
}

type astrosResponse struct {
	Message string `json:"message"`
	Number  int    `json:"number"`
	People  []struct {
		Name  string `json:"name"`
		Craft string `json:"craft"`
	} `json:"people"`
}

// Fetcher queries the astros endpoint.
type Fetcher struct {
	url        string
	httpClient *http.Client
}

// NewFetcher creates a Fetcher; an empty url selects DefaultURL.
func NewFetcher(url string) *Fetcher {
	if url == "" {
		url = DefaultURL
	}
	return &Fetcher{
		url:        url,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// Fetch returns the people whose craft is the ISS, in feed order.
func (f *Fetcher) Fetch(ctx context.Context) (Roster, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Roster{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Roster{}, fmt.Errorf("fetching crew: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Roster{}, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.url)
	}

	var body astrosResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return Roster{}, fmt.Errorf("decoding crew: %w", err)
	}
	if body.Message != "success" {
		return Roster{}, fmt.Errorf("crew API reported %q", body.Message)
	}

	roster := Roster{Names: []string{}}
	for _, p := range body.People {
		if p.Craft == issCraft {
			roster.Names = append(roster.Names, p.Name)
		}
	}
	roster.Count = len(roster.Names)
	return roster, nil
}
