// Package market fetches the current probability of a prediction market.
package market

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/electionneedle/needle/internal/model"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
)

// Config controls the quote API client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	InsecureTLS bool
	UserAgent   string
}

// Client performs GET <BaseURL><slug> and extracts the probability field.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// quote is the subset of the API response the device cares about.
type quote struct {
	Probability *float64 `json:"probability"`
}

// NewClient builds a client. An empty BaseURL falls back to the Manifold slug endpoint.
func NewClient(cfg Config) *Client {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = model.DefaultAPIBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // device ships without a CA bundle
	}

	return &Client{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: timeout, Transport: transport},
	}
}

// FetchProbability returns the market's current probability.
// Errors wrap model.ErrValidation, model.ErrNetwork or model.ErrParse.
func (c *Client) FetchProbability(ctx context.Context, slug string) (float64, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return 0, fmt.Errorf("market: %w: empty slug", model.ErrValidation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+url.PathEscape(slug), nil)
	if err != nil {
		return 0, fmt.Errorf("market: %w: build request: %v", model.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("market: %w: %v", model.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return 0, fmt.Errorf("market: %w: %s returned %d", model.ErrNetwork, slug, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, fmt.Errorf("market: %w: read body: %v", model.ErrNetwork, err)
	}
	return parseProbability(body)
}

// Validate checks that slug resolves to a market with a usable probability.
func (c *Client) Validate(ctx context.Context, slug string) error {
	_, err := c.FetchProbability(ctx, slug)
	return err
}

func parseProbability(body []byte) (float64, error) {
	var q quote
	if err := json.Unmarshal(body, &q); err != nil {
		return 0, fmt.Errorf("market: %w: %v", model.ErrParse, err)
	}
	if q.Probability == nil {
		return 0, fmt.Errorf("market: %w: probability field missing", model.ErrParse)
	}
	p := *q.Probability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("market: %w: probability %v out of range", model.ErrParse, p)
	}
	return p, nil
}
