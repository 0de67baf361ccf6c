// Package domain defines the core types shared across the tracker: market
// observations, derived display metrics, forwarding configuration, and
// per-tick outcomes.
package domain

import "time"

// Observation is a single BTC/USD market snapshot: the last trade, the top of
// the order book, and the rolling 24h volume, all captured at Timestamp.
// Observations are immutable once constructed.
type Observation struct {
	Timestamp  time.Time `json:"timestamp"`
	TradePrice float64   `json:"trade_price"`
	TradeSize  float64   `json:"trade_size"`
	BidPrice   float64   `json:"bid_price"`
	BidSize    float64   `json:"bid_size"`
	AskPrice   float64   `json:"ask_price"`
	AskSize    float64   `json:"ask_size"`
	Volume     float64   `json:"volume"`
}

// Spread returns the absolute bid/ask spread of the observation.
func (o Observation) Spread() float64 {
	return o.AskPrice - o.BidPrice
}

// Metrics is the ephemeral set of display values derived from the most recent
// one or two observations. It is recomputed on every tick and never stored.
type Metrics struct {
	// Available is false when there is no history to derive from; all other
	// fields are zero in that case.
	Available bool `json:"available"`

	TradePrice float64 `json:"trade_price"`
	TradeSize  float64 `json:"trade_size"`
	Volume     float64 `json:"volume"`

	BidPrice float64 `json:"bid_price"`
	BidSize  float64 `json:"bid_size"`
	AskPrice float64 `json:"ask_price"`
	AskSize  float64 `json:"ask_size"`

	// PriceChange fields compare the latest trade price against the previous
	// observation. With fewer than two observations both are zero.
	PriceChange    float64 `json:"price_change"`
	PriceChangePct float64 `json:"price_change_pct"`

	// Spread fields are computed from the latest observation alone. The
	// percentage is 0 when the trade price is 0.
	Spread    float64 `json:"spread"`
	SpreadPct float64 `json:"spread_pct"`
}

// ForwardingConfig controls the optional downstream sink. It is process-wide
// mutable state owned by the orchestrator; the pipeline reads a snapshot of it
// once per tick.
type ForwardingConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// ForwardStatus classifies the outcome of a forward attempt.
type ForwardStatus string

const (
	// ForwardSkipped means forwarding was disabled or unconfigured. Not an error.
	ForwardSkipped ForwardStatus = "skipped"
	// ForwardSent means the sink acknowledged the payload with a 2xx.
	ForwardSent ForwardStatus = "sent"
	// ForwardFailed means the request errored, timed out, or got a non-2xx.
	ForwardFailed ForwardStatus = "failed"
)

// ForwardResult is the outcome of a single forward attempt. Failures are
// carried as data; a failed forward never aborts the tick that produced it.
type ForwardResult struct {
	Status ForwardStatus `json:"status"`
	// Error holds the failure cause when Status is ForwardFailed.
	Error string `json:"error,omitempty"`
}

// TickOutcome reports one complete fetch→append→derive→forward cycle.
type TickOutcome struct {
	// TickID correlates log lines and stream events for one tick.
	TickID  string    `json:"tick_id"`
	Time    time.Time `json:"time"`
	FetchOK bool      `json:"fetch_ok"`
	// FetchError holds the fetch failure cause when FetchOK is false.
	FetchError string        `json:"fetch_error,omitempty"`
	Forward    ForwardResult `json:"forward"`
}
