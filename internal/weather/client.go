// Package weather provides a minimal OpenWeatherMap client for current
// conditions. Any transport, status, or decode failure surfaces as a single
// error; callers decide how to report it and never retry here.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// defaultBaseURL is the OpenWeatherMap current-weather endpoint.
const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

const defaultTimeout = 10 * time.Second

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests and for compatible
// self-hosted services.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client queries current weather conditions. Safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New creates a Client authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("weather: apiKey must not be empty")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// response mirrors the subset of the OpenWeatherMap payload we consume.
type response struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

// Current returns the current description and temperature (°C, metric units)
// for city.
func (c *Client) Current(ctx context.Context, city string) (string, float64, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("weather: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("weather: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("weather: unexpected status %s for city %q", resp.Status, city)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("weather: decode response: %w", err)
	}

	description := "unknown"
	if len(body.Weather) > 0 {
		description = body.Weather[0].Description
	}
	return description, body.Main.Temp, nil
}
