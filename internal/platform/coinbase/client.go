// Package coinbase is a read-only REST client for the public Coinbase
// Exchange market-data API. No authentication is required for the endpoints
// used here.
package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is the REST client for the Coinbase Exchange public API.
type Client struct {
	baseURL    string
	productID  string
	httpClient *http.Client
}

// NewClient creates a Coinbase client for a single product.
//
// baseURL is the API root, e.g. "https://api.exchange.coinbase.com".
// productID is the trading pair, e.g. "BTC-USD".
func NewClient(baseURL, productID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		productID: productID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ProductID returns the trading pair the client is bound to.
func (c *Client) ProductID() string {
	return c.productID
}

// GetTicker returns the current ticker snapshot: last trade price and size
// plus the rolling 24h volume.
func (c *Client) GetTicker(ctx context.Context) (Ticker, error) {
	path := fmt.Sprintf("/products/%s/ticker", url.PathEscape(c.productID))

	body, err := c.doRequest(ctx, path)
	if err != nil {
		return Ticker{}, fmt.Errorf("coinbase: get ticker %s: %w", c.productID, err)
	}

	var t Ticker
	if err := json.Unmarshal(body, &t); err != nil {
		return Ticker{}, fmt.Errorf("coinbase: decode ticker: %w", err)
	}

	return t, nil
}

// GetOrderBook returns the level-1 order book snapshot: the best bid and ask
// with their resting sizes.
func (c *Client) GetOrderBook(ctx context.Context) (Book, error) {
	path := fmt.Sprintf("/products/%s/book?level=1", url.PathEscape(c.productID))

	body, err := c.doRequest(ctx, path)
	if err != nil {
		return Book{}, fmt.Errorf("coinbase: get book %s: %w", c.productID, err)
	}

	var b Book
	if err := json.Unmarshal(body, &b); err != nil {
		return Book{}, fmt.Errorf("coinbase: decode book: %w", err)
	}

	return b, nil
}

// doRequest builds, sends, and reads an unauthenticated GET against the API.
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	fullURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("coinbase: product not found: %s", apiErr.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("coinbase: rate limited: %s", apiErr.Message)
	default:
		return fmt.Errorf("coinbase: HTTP %d: %s", statusCode, apiErr.Message)
	}
}

// parseFloat parses one of the exchange's numeric-string fields.
func parseFloat(field, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("coinbase: parse %s %q: %w", field, value, err)
	}
	return f, nil
}
