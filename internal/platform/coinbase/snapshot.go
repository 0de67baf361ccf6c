package coinbase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/marketpulse/btctracker/internal/domain"
)

// Snapshot fetches the ticker and the level-1 order book and combines them
// into one Observation. Both calls must succeed; a failure of either yields
// an error and no partial observation. The capture timestamp is assigned
// locally when the combined result is assembled, not taken from either
// response body.
func (c *Client) Snapshot(ctx context.Context) (domain.Observation, error) {
	ticker, err := c.GetTicker(ctx)
	if err != nil {
		return domain.Observation{}, err
	}

	book, err := c.GetOrderBook(ctx)
	if err != nil {
		return domain.Observation{}, err
	}

	tradePrice, err := parseFloat("price", ticker.Price)
	if err != nil {
		return domain.Observation{}, err
	}
	tradeSize, err := parseFloat("size", ticker.Size)
	if err != nil {
		return domain.Observation{}, err
	}
	volume, err := parseFloat("volume", ticker.Volume)
	if err != nil {
		return domain.Observation{}, err
	}

	obs := domain.Observation{
		Timestamp:  time.Now(),
		TradePrice: tradePrice,
		TradeSize:  tradeSize,
		Volume:     volume,
	}

	// Level 1 gives at most one entry per side. A side with no resting
	// orders is reported as price=0, size=0 rather than a failure.
	if len(book.Bids) > 0 {
		obs.BidPrice = book.Bids[0].Price
		obs.BidSize = book.Bids[0].Size
	}
	if len(book.Asks) > 0 {
		obs.AskPrice = book.Asks[0].Price
		obs.AskSize = book.Asks[0].Size
	}

	if err := validate(obs); err != nil {
		return domain.Observation{}, err
	}

	return obs, nil
}

// validate rejects observations with negative or non-finite numeric fields.
func validate(o domain.Observation) error {
	fields := map[string]float64{
		"trade_price": o.TradePrice,
		"trade_size":  o.TradeSize,
		"bid_price":   o.BidPrice,
		"bid_size":    o.BidSize,
		"ask_price":   o.AskPrice,
		"ask_size":    o.AskSize,
		"volume":      o.Volume,
	}
	for name, v := range fields {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("coinbase: field %s out of range: %v", name, v)
		}
	}
	return nil
}
