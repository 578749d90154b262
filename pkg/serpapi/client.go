// Package serpapi provides a client for the SerpAPI search endpoints used
// for lead discovery: Google Maps local results and Yelp listings.
package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/lenilani/leadscout/internal/resilience"
)

const defaultBaseURL = "https://serpapi.com"

// Client performs SerpAPI search operations.
type Client interface {
	// MapsSearch runs a Google Maps local search for businesses.
	MapsSearch(ctx context.Context, query, location string) (*MapsResponse, error)

	// YelpSearch runs a Yelp listing search for businesses.
	YelpSearch(ctx context.Context, query, location string) (*YelpResponse, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit for SerpAPI calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(2, 2), // metered plan allowance
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// apiError is the error envelope SerpAPI returns with a 200 status.
type apiError struct {
	Error string `json:"error"`
}

// search performs a GET against /search with the given engine parameters and
// decodes the response into out. Retryable HTTP statuses are wrapped as
// transient so callers can retry them.
func (c *httpClient) search(ctx context.Context, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "serpapi: rate limit")
	}

	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "serpapi: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "serpapi: send request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	// SerpAPI reports some failures as an error field with a 200 status.
	var apiErr apiError
	if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Error != "" {
		return eris.Errorf("serpapi: %s", apiErr.Error)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "serpapi: unmarshal response")
	}

	return nil
}
