// Package mdg generates synthetic market data ticks: deterministic,
// round-robin quotes across a fixed symbol set, used by the synthetic
// ingress feed for tests and paper-trading demos.
package mdg

import (
	"time"

	"marketmaker/internal/errors"
	"marketmaker/internal/schema"
)

// Generator produces deterministic synthetic quotes across a fixed symbol
// set, round-robin.
type Generator struct {
	symbols   []string
	basePrice float64
	baseSize  float64
	spread    float64
	index     int
}

// NewGenerator creates a generator over symbols. spread is the half-spread
// applied around basePrice; basePrice and spread must be non-negative.
func NewGenerator(symbols []string, basePrice, baseSize, spread float64) (*Generator, error) {
	if len(symbols) == 0 {
		return nil, errors.New("generator requires at least one symbol")
	}
	if baseSize <= 0 {
		baseSize = 1
	}
	if spread < 0 {
		spread = 0
	}
	cp := make([]string, len(symbols))
	copy(cp, symbols)
	return &Generator{symbols: cp, basePrice: basePrice, baseSize: baseSize, spread: spread}, nil
}

// Next produces the next quote in round-robin order. A symbol's mid is
// basePrice plus the symbol's position in the set, so every quote for a
// given symbol carries the same price; prices do not move between cycles.
func (g *Generator) Next(now time.Time) schema.Quote {
	symbol := g.symbols[g.index]
	cycle := g.index
	g.index = (g.index + 1) % len(g.symbols)

	mid := g.basePrice + float64(cycle)
	return schema.Quote{
		Symbol:  symbol,
		Bid:     schema.Price(mid - g.spread),
		Ask:     schema.Price(mid + g.spread),
		BidSize: schema.Quantity(g.baseSize),
		AskSize: schema.Quantity(g.baseSize),
		Ts:      now,
	}
}
