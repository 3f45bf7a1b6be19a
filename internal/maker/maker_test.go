package maker

import (
	"testing"
	"time"

	"marketmaker/internal/schema"
)

type recordingSubmitter struct {
	orders   []schema.Order
	canceled []string
}

func (s *recordingSubmitter) SubmitOrder(order schema.Order) (schema.RiskDecision, bool) {
	s.orders = append(s.orders, order)
	return schema.RiskDecision{Action: schema.RiskActionAllow}, true
}

func (s *recordingSubmitter) CancelOrder(orderID string) error {
	s.canceled = append(s.canceled, orderID)
	return nil
}

type fixedPosition struct {
	qty schema.Quantity
}

func (f fixedPosition) Position(string) (schema.Quantity, schema.Price, bool) {
	return f.qty, 0, f.qty != 0
}

func TestRoundToTick(t *testing.T) {
	cases := []struct {
		p, t, want float64
	}{
		{99.904, 0.01, 99.90},
		{99.905, 0.01, 99.91},
		{-99.905, 0.01, -99.91},
		{100.0, 0.01, 100.0},
	}
	for _, c := range cases {
		got := roundToTick(c.p, c.t)
		if diff := got - c.want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("roundToTick(%v, %v) = %v, want %v", c.p, c.t, got, c.want)
		}
	}
}

func TestUpdateQuotesFlatInventory(t *testing.T) {
	sub := &recordingSubmitter{}
	m := New(sub, fixedPosition{qty: 0})
	m.ConfigureSymbol("AAPL", Params{
		SpreadPct: 0.001, BaseSize: 100, SkewFactor: 0, TickSize: 0.01, Levels: 3, LevelSpacing: 0.5,
	})

	// A single quote leaves volatility at 0 (no log return exists yet).
	m.UpdateQuotes(schema.Quote{Symbol: "AAPL", Bid: 100.00, Ask: 100.00})

	if len(sub.orders) != 6 {
		t.Fatalf("expected 6 orders (3 levels x 2 sides), got %d", len(sub.orders))
	}

	wantBids := []float64{99.90, 99.85, 99.80}
	wantAsks := []float64{100.10, 100.15, 100.20}
	wantSizes := []float64{100, 50, 25}

	for l := 0; l < 3; l++ {
		bid := sub.orders[l*2]
		ask := sub.orders[l*2+1]
		if float64(bid.Price) != wantBids[l] {
			t.Fatalf("level %d bid = %v, want %v", l, bid.Price, wantBids[l])
		}
		if float64(ask.Price) != wantAsks[l] {
			t.Fatalf("level %d ask = %v, want %v", l, ask.Price, wantAsks[l])
		}
		if float64(bid.Quantity) != wantSizes[l] || float64(ask.Quantity) != wantSizes[l] {
			t.Fatalf("level %d size = %v/%v, want %v", l, bid.Quantity, ask.Quantity, wantSizes[l])
		}
	}
}

func TestUpdateQuotesInventorySkew(t *testing.T) {
	sub := &recordingSubmitter{}
	m := New(sub, fixedPosition{qty: 50})
	m.ConfigureSymbol("AAPL", Params{
		SpreadPct: 0.001, BaseSize: 100, SkewFactor: 0.2, TickSize: 0.01, Levels: 3, LevelSpacing: 0.5,
	})

	m.UpdateQuotes(schema.Quote{Symbol: "AAPL", Bid: 100.00, Ask: 100.00})

	wantBids := []float64{89.90, 89.85, 89.80}
	wantAsks := []float64{90.10, 90.15, 90.20}
	for l := 0; l < 3; l++ {
		bid := sub.orders[l*2]
		ask := sub.orders[l*2+1]
		if float64(bid.Price) != wantBids[l] {
			t.Fatalf("level %d bid = %v, want %v", l, bid.Price, wantBids[l])
		}
		if float64(ask.Price) != wantAsks[l] {
			t.Fatalf("level %d ask = %v, want %v", l, ask.Price, wantAsks[l])
		}
	}
}

func TestUpdateQuotesSkipsUnconfiguredSymbol(t *testing.T) {
	sub := &recordingSubmitter{}
	m := New(sub, fixedPosition{})
	m.UpdateQuotes(schema.Quote{Symbol: "UNKNOWN", Bid: 100, Ask: 100})
	if len(sub.orders) != 0 {
		t.Fatalf("expected no orders for unconfigured symbol, got %d", len(sub.orders))
	}
}

// loopbackSubmitter mimics ordermgr.Manager's real call shape: every
// SubmitOrder call reads the maker's WorkingQuantity for the order's
// symbol before accepting it, the same way the order manager's risk check
// does. A maker that held its lock across the submitter call would
// deadlock here.
type loopbackSubmitter struct {
	maker *Maker
}

func (s *loopbackSubmitter) SubmitOrder(order schema.Order) (schema.RiskDecision, bool) {
	_ = s.maker.WorkingQuantity(order.Symbol)
	return schema.RiskDecision{Action: schema.RiskActionAllow}, true
}

func (s *loopbackSubmitter) CancelOrder(orderID string) error { return nil }

func TestUpdateQuotesDoesNotDeadlockOnWorkingQuantityLoopback(t *testing.T) {
	sub := &loopbackSubmitter{}
	m := New(sub, fixedPosition{})
	sub.maker = m
	m.ConfigureSymbol("AAPL", Params{SpreadPct: 0.001, BaseSize: 100, TickSize: 0.01, Levels: 2})

	done := make(chan struct{})
	go func() {
		m.UpdateQuotes(schema.Quote{Symbol: "AAPL", Bid: 100, Ask: 100})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("UpdateQuotes deadlocked on a submitter callback into WorkingQuantity")
	}

	if got := m.WorkingQuantity("AAPL"); got != 4*100 {
		t.Fatalf("expected active orders committed after update, got working quantity %v", got)
	}
}

func TestUpdateQuotesCancelsOutstandingOrders(t *testing.T) {
	sub := &recordingSubmitter{}
	m := New(sub, fixedPosition{})
	m.ConfigureSymbol("AAPL", Params{SpreadPct: 0.001, BaseSize: 100, TickSize: 0.01, Levels: 1})

	m.UpdateQuotes(schema.Quote{Symbol: "AAPL", Bid: 100, Ask: 100})
	firstCount := len(sub.orders)
	m.UpdateQuotes(schema.Quote{Symbol: "AAPL", Bid: 101, Ask: 101})

	if len(sub.canceled) != firstCount {
		t.Fatalf("expected %d cancels before re-quoting, got %d", firstCount, len(sub.canceled))
	}
}
