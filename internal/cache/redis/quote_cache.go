package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketpulse/btctracker/internal/domain"
)

// quotesChannel is the pub/sub channel each new observation is published on.
const quotesChannel = "quotes"

// QuoteCache stores the most recent observation for a product as a Redis
// hash at key "quote:{productID}" and publishes each new observation as JSON
// on the "quotes" channel.
type QuoteCache struct {
	rdb       *redis.Client
	productID string
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client, productID string) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), productID: productID}
}

func (qc *QuoteCache) key() string {
	return "quote:" + qc.productID
}

// SetLatest writes the observation into the product's quote hash and
// publishes it for live subscribers.
func (qc *QuoteCache) SetLatest(ctx context.Context, obs domain.Observation) error {
	fields := map[string]interface{}{
		"trade_price": formatFloat(obs.TradePrice),
		"trade_size":  formatFloat(obs.TradeSize),
		"bid_price":   formatFloat(obs.BidPrice),
		"bid_size":    formatFloat(obs.BidSize),
		"ask_price":   formatFloat(obs.AskPrice),
		"ask_size":    formatFloat(obs.AskSize),
		"volume":      formatFloat(obs.Volume),
		"ts":          strconv.FormatInt(obs.Timestamp.UnixNano(), 10),
	}
	if err := qc.rdb.HSet(ctx, qc.key(), fields).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", qc.productID, err)
	}

	payload, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s: %w", qc.productID, err)
	}
	if err := qc.rdb.Publish(ctx, quotesChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish quote %s: %w", qc.productID, err)
	}
	return nil
}

// GetLatest reads the product's quote hash back into an Observation. It
// returns domain.ErrNotFound when no quote has been stored.
func (qc *QuoteCache) GetLatest(ctx context.Context) (domain.Observation, error) {
	vals, err := qc.rdb.HGetAll(ctx, qc.key()).Result()
	if err != nil {
		return domain.Observation{}, fmt.Errorf("redis: get quote %s: %w", qc.productID, err)
	}
	if len(vals) == 0 {
		return domain.Observation{}, domain.ErrNotFound
	}

	var obs domain.Observation
	read := func(field string, dst *float64) error {
		s, ok := vals[field]
		if !ok {
			return domain.ErrNotFound
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("redis: parse %s: %w", field, err)
		}
		*dst = f
		return nil
	}

	for field, dst := range map[string]*float64{
		"trade_price": &obs.TradePrice,
		"trade_size":  &obs.TradeSize,
		"bid_price":   &obs.BidPrice,
		"bid_size":    &obs.BidSize,
		"ask_price":   &obs.AskPrice,
		"ask_size":    &obs.AskSize,
		"volume":      &obs.Volume,
	} {
		if err := read(field, dst); err != nil {
			return domain.Observation{}, err
		}
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return domain.Observation{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("redis: parse ts: %w", err)
	}
	obs.Timestamp = time.Unix(0, tsNano)

	return obs, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
