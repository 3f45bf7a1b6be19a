package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketmaker/internal/boundary"
	"marketmaker/internal/feed"
	"marketmaker/internal/maker"
	"marketmaker/internal/ops"
	"marketmaker/internal/risk"
	"marketmaker/internal/schema"
)

type recordingSink struct {
	mu     sync.Mutex
	orders []schema.Order
}

func (s *recordingSink) Send(order schema.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	return nil
}

func (s *recordingSink) Cancel(string) error { return nil }

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func testLoaded() ops.Loaded {
	return ops.Loaded{
		Risk: map[string]risk.Limits{
			"AAPL": {
				MaxOrderSize:     1000,
				MaxNetPosition:   10000,
				MaxGrossPosition: 20000,
				MaxDailyTrades:   1_000_000,
			},
		},
		Maker: map[string]maker.Params{
			"AAPL": {
				SpreadPct:    0.001,
				BaseSize:     100,
				SkewFactor:   0.1,
				TickSize:     0.01,
				Levels:       2,
				LevelSpacing: 0.5,
			},
		},
	}
}

func TestStartStopIsIdempotentAndJoins(t *testing.T) {
	sink := &recordingSink{}
	var feedBuilt feed.QuoteSink
	factory := func(s feed.QuoteSink) feed.Runnable {
		feedBuilt = s
		f, err := feed.NewSynthetic([]string{"AAPL"}, 100, 10, 0.1, time.Millisecond, s)
		if err != nil {
			t.Fatalf("new synthetic: %v", err)
		}
		return f
	}

	sup := New(DefaultConfig(), testLoaded(), sink, factory)
	if feedBuilt == nil {
		t.Fatalf("expected feed factory to receive a quote sink")
	}

	ctx := context.Background()
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	// second Start is a no-op
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for sink.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	sup.Stop()
	sup.Stop() // idempotent

	if sink.len() == 0 {
		t.Fatalf("expected at least one order submitted to the sink")
	}
}

func TestAddStrategyConfiguresNewSymbol(t *testing.T) {
	sink := &recordingSink{}
	sup := New(DefaultConfig(), ops.Loaded{}, sink, nil)

	sup.AddStrategy("GOOGL", risk.Limits{
		MaxOrderSize:     500,
		MaxNetPosition:   5000,
		MaxGrossPosition: 8000,
		MaxDailyTrades:   1000,
	}, maker.Params{
		SpreadPct: 0.002,
		BaseSize:  50,
		TickSize:  0.01,
		Levels:    1,
	})

	sup.mdHandler.OnQuote(schema.Quote{Symbol: "GOOGL", Bid: 99, Ask: 101, BidSize: 10, AskSize: 10})

	deadline := time.Now().Add(200 * time.Millisecond)
	sup.Start(context.Background())
	defer sup.Stop()
	for sink.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sink.len() == 0 {
		t.Fatalf("expected the added GOOGL strategy to submit at least one order")
	}
}

var _ boundary.Sink = (*recordingSink)(nil)
