// Package metrics derives the display values shown alongside the live quote
// stream. Derivation is a pure function of the last one or two observations;
// nothing here is stored between ticks.
package metrics

import "github.com/marketpulse/btctracker/internal/domain"

// Derive computes display metrics from the buffer's tail, oldest first. It
// expects the result of Buffer.Latest(2): zero, one, or two observations.
//
// With no observations the result is unavailable. With one, the price-change
// fields are zero and the spread fields come from that single entry. With
// two, the change fields compare the latest trade price against the previous
// one. All percentage divisions are guarded: a zero denominator yields 0.
func Derive(tail []domain.Observation) domain.Metrics {
	if len(tail) == 0 {
		return domain.Metrics{}
	}

	latest := tail[len(tail)-1]

	m := domain.Metrics{
		Available:  true,
		TradePrice: latest.TradePrice,
		TradeSize:  latest.TradeSize,
		Volume:     latest.Volume,
		BidPrice:   latest.BidPrice,
		BidSize:    latest.BidSize,
		AskPrice:   latest.AskPrice,
		AskSize:    latest.AskSize,
		Spread:     latest.Spread(),
	}

	if latest.TradePrice != 0 {
		m.SpreadPct = m.Spread / latest.TradePrice * 100
	}

	if len(tail) >= 2 {
		previous := tail[len(tail)-2]
		m.PriceChange = latest.TradePrice - previous.TradePrice
		if previous.TradePrice != 0 {
			m.PriceChangePct = m.PriceChange / previous.TradePrice * 100
		}
	}

	return m
}
