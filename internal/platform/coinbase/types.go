package coinbase

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Ticker is the response of GET /products/{id}/ticker. The exchange reports
// all numeric fields as strings.
type Ticker struct {
	TradeID int64  `json:"trade_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Bid     string `json:"bid"`
	Ask     string `json:"ask"`
	Volume  string `json:"volume"`
	Time    string `json:"time"`
}

// Book is the response of GET /products/{id}/book?level=1: the single best
// bid and ask level per side.
type Book struct {
	Sequence int64       `json:"sequence"`
	Bids     []BookLevel `json:"bids"`
	Asks     []BookLevel `json:"asks"`
}

// BookLevel is one order-book level. On the wire it is a heterogeneous array
// [price, size, num_orders] where price and size are strings.
type BookLevel struct {
	Price     float64
	Size      float64
	NumOrders int64
}

// UnmarshalJSON decodes the [price, size, num_orders] array form.
func (l *BookLevel) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("book level: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("book level: want at least 2 elements, got %d", len(raw))
	}

	var err error
	if l.Price, err = parseWireFloat(raw[0]); err != nil {
		return fmt.Errorf("book level price: %w", err)
	}
	if l.Size, err = parseWireFloat(raw[1]); err != nil {
		return fmt.Errorf("book level size: %w", err)
	}

	if len(raw) > 2 {
		// num_orders is a plain JSON number; tolerate its absence.
		if err := json.Unmarshal(raw[2], &l.NumOrders); err != nil {
			return fmt.Errorf("book level num_orders: %w", err)
		}
	}
	return nil
}

// MarshalJSON re-encodes the level in its wire form.
func (l BookLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{
		strconv.FormatFloat(l.Price, 'f', -1, 64),
		strconv.FormatFloat(l.Size, 'f', -1, 64),
		l.NumOrders,
	})
}

// parseWireFloat accepts both a JSON string ("42.5") and a bare JSON number
// (42.5), which is how exchange payloads tend to drift between versions.
func parseWireFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", s, err)
		}
		return f, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse %s: %w", string(raw), err)
	}
	return f, nil
}
