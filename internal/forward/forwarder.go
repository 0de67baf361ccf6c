// Package forward pushes each observation to an optional downstream HTTP
// sink. Delivery is best-effort: failures are returned as data and never
// interrupt the tick that produced the observation.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/marketpulse/btctracker/internal/domain"
)

// Forwarder delivers observations to the configured sink endpoint.
type Forwarder struct {
	client *http.Client
	logger *slog.Logger
}

// NewForwarder creates a Forwarder whose HTTP calls are bounded by timeout.
func NewForwarder(timeout time.Duration, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		client: &http.Client{Timeout: timeout},
		logger: logger.With(slog.String("component", "forwarder")),
	}
}

// Forward serializes the observation as the fixed 6-element array
// [bid_price, bid_size, ask_price, ask_size, trade_price, trade_size] and
// POSTs it to the configured endpoint. Volume and timestamp are not part of
// the sink contract.
//
// When forwarding is disabled or no endpoint is configured, the result is
// Skipped and no network call is made. Any network error, timeout, or non-2xx
// response yields Failed with the cause; Forward never returns an error.
func (f *Forwarder) Forward(ctx context.Context, obs domain.Observation, cfg domain.ForwardingConfig) domain.ForwardResult {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return domain.ForwardResult{Status: domain.ForwardSkipped}
	}

	payload := [6]float64{
		obs.BidPrice,
		obs.BidSize,
		obs.AskPrice,
		obs.AskSize,
		obs.TradePrice,
		obs.TradeSize,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return f.failed(ctx, cfg.Endpoint, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return f.failed(ctx, cfg.Endpoint, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return f.failed(ctx, cfg.Endpoint, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return f.failed(ctx, cfg.Endpoint, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody)))
	}

	f.logger.DebugContext(ctx, "observation forwarded",
		slog.String("endpoint", cfg.Endpoint),
		slog.Int("status", resp.StatusCode),
	)
	return domain.ForwardResult{Status: domain.ForwardSent}
}

// failed logs the cause and wraps it into a Failed result.
func (f *Forwarder) failed(ctx context.Context, endpoint string, err error) domain.ForwardResult {
	f.logger.WarnContext(ctx, "forward failed",
		slog.String("endpoint", endpoint),
		slog.String("error", err.Error()),
	)
	return domain.ForwardResult{
		Status: domain.ForwardFailed,
		Error:  err.Error(),
	}
}
