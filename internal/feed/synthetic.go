// Package feed implements market-data ingress adapters: concrete producers
// feeding a market-data handler's on_quote entry point. Synthetic wraps the
// deterministic round-robin generator; WSSource dials a generic WebSocket
// quote feed using the same subscribe/wait handshake idiom the reference
// stack's exchange integrations use, stripped of any venue-specific wire
// format.
package feed

import (
	"context"
	"time"

	"marketmaker/internal/mdg"
	"marketmaker/internal/schema"
)

// QuoteSink receives quotes as they are produced, the market-data
// handler's on_quote entry point.
type QuoteSink interface {
	OnQuote(q schema.Quote)
}

// Synthetic drives a mdg.Generator on a fixed interval, for tests and
// paper-trading demos.
type Synthetic struct {
	gen      *mdg.Generator
	sink     QuoteSink
	interval time.Duration
}

// NewSynthetic creates a synthetic feed over symbols, pushing into sink
// every interval.
func NewSynthetic(symbols []string, basePrice, baseSize, spread float64, interval time.Duration, sink QuoteSink) (*Synthetic, error) {
	gen, err := mdg.NewGenerator(symbols, basePrice, baseSize, spread)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Synthetic{gen: gen, sink: sink, interval: interval}, nil
}

// Run pushes quotes until ctx is cancelled.
func (s *Synthetic) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticker.C:
			s.sink.OnQuote(s.gen.Next(t))
		}
	}
}
