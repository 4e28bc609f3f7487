// Package oracle obtains pool price/reserve snapshots for asset pairs.
// Snapshots resolve through a three-tier chain: live oracle query, then the
// in-memory cache while younger than the TTL, then an estimate synthesized
// from an injected static USD price table. The chain guarantees the
// calculator always receives a usable value; unavailability of one pair
// never fails assessment of other vaults.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrUnavailable marks oracle failures: connectivity errors, timeouts,
// non-OK statuses, and unknown pairs. It triggers the fallback chain and is
// never surfaced to the scheduler as fatal.
var ErrUnavailable = errors.New("oracle unavailable")

// API is the external oracle request/response interface, keyed by asset pair.
type API interface {
	// FetchPair queries the oracle for one asset pair.
	FetchPair(ctx context.Context, assetA, assetB string) (*PairData, error)
}

// PairData is the oracle's raw answer for one pair.
type PairData struct {
	Price     float64 `json:"price"`     // asset B per asset A
	PriceAUSD float64 `json:"priceAUsd"` // USD price of asset A
	PriceBUSD float64 `json:"priceBUsd"` // USD price of asset B
	ReserveA  float64 `json:"reserveA"`
	ReserveB  float64 `json:"reserveB"`
	TVL       float64 `json:"tvl"`
	Volume24h float64 `json:"volume24h"`
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
}

// DefaultHTTPTimeout bounds one oracle request.
const DefaultHTTPTimeout = 10 * time.Second

// HTTPClient implements API over the oracle's REST endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// NewHTTPClient creates an oracle REST client.
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPair queries GET {base}/v1/pairs/{assetA}-{assetB}.
func (c *HTTPClient) FetchPair(ctx context.Context, assetA, assetB string) (*PairData, error) {
	endpoint := fmt.Sprintf("%s/v1/pairs/%s-%s",
		c.baseURL, url.PathEscape(assetA), url.PathEscape(assetB))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: pair %s/%s not listed", ErrUnavailable, assetA, assetB)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var data PairData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrUnavailable, err)
	}

	if data.Price <= 0 {
		return nil, fmt.Errorf("%w: non-positive price %f for %s/%s", ErrUnavailable, data.Price, assetA, assetB)
	}

	return &data, nil
}

// Verify interface compliance at compile time.
var _ API = (*HTTPClient)(nil)
