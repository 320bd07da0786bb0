// Package geocode resolves site names to coordinates via the Open-Meteo
// geocoding API. Used at startup for configured sites that carry no
// coordinates; the analysis core never geocodes.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Result is one resolved place.
type Result struct {
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
	Elevation float64
}

// Geocoder resolves a place name to coordinates. An unknown place returns a
// zero Result and no error.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (Result, error)
}

// Client implements Geocoder against the Open-Meteo geocoding API, which
// requires no API key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a geocoding client.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://geocoding-api.open-meteo.com/v1/search",
		logger:  logger,
	}
}

// Geocode resolves a place name to its best-ranked match.
func (c *Client) Geocode(ctx context.Context, name string) (Result, error) {
	params := url.Values{
		"name":   {name},
		"count":  {"1"},
		"format": {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("geocoding API error: status %d: %s", resp.StatusCode, body)
	}

	var apiResp response
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Results) == 0 {
		return Result{}, nil
	}

	r := apiResp.Results[0]
	return Result{
		Name:      r.Name,
		Country:   r.Country,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Elevation: r.Elevation,
	}, nil
}

// Open-Meteo API response types.

type response struct {
	Results []result `json:"results"`
}

type result struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}
