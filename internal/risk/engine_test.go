package risk

import (
	"testing"
	"time"

	"marketmaker/internal/book"
	"marketmaker/internal/schema"
)

func TestCheckOrderFailsClosedWithoutLimits(t *testing.T) {
	e := New(book.New())
	d := e.CheckOrder(schema.Order{Symbol: "AAPL", Quantity: 10, IsBuy: true}, 0)
	if d.Allowed() {
		t.Fatalf("expected deny when no limits configured")
	}
	if d.Reason != schema.RiskReasonNoLimitsConfigured {
		t.Fatalf("expected no-limits-configured reason, got %v", d.Reason)
	}
}

func TestCheckOrderMaxOrderSize(t *testing.T) {
	e := New(book.New())
	e.SetLimits("AAPL", Limits{MaxOrderSize: 100, MaxNetPosition: 1000})
	d := e.CheckOrder(schema.Order{Symbol: "AAPL", Quantity: 150, IsBuy: true}, 0)
	if d.Allowed() || d.Reason != schema.RiskReasonMaxOrderSize {
		t.Fatalf("expected max_order_size rejection, got %+v", d)
	}
}

func TestCheckOrderNetPositionRejection(t *testing.T) {
	e := New(book.New())
	e.SetLimits("AAPL", Limits{MaxOrderSize: 1000, MaxNetPosition: 100})
	e.UpdatePosition(schema.Trade{Symbol: "AAPL", Price: 10, Quantity: 90, IsBuy: true, Ts: time.Now()})

	d := e.CheckOrder(schema.Order{Symbol: "AAPL", Quantity: 20, IsBuy: true}, 0)
	if d.Allowed() {
		t.Fatalf("expected rejection: 90+20 > 100")
	}
	if d.Reason != schema.RiskReasonNetPosition {
		t.Fatalf("expected net_position reason, got %v", d.Reason)
	}
}

func TestCheckOrderVaRGate(t *testing.T) {
	e := New(book.New())
	e.SetLimits("AAPL", Limits{MaxOrderSize: 10000, MaxNetPosition: 10000, VaRLimit: 30})

	// Feed returns to produce sigma ~ 0.056 over six log returns.
	for _, p := range []float64{100, 102, 98, 103, 97, 104, 96} {
		e.UpdatePosition(schema.Trade{Symbol: "AAPL", Price: schema.Price(p), Quantity: 1, IsBuy: true, Ts: time.Now()})
	}

	// Position after is 7+900 = 907, so VaR ~ 907 * 0.056 * 1.645 ~ 84 > 30.
	d := e.CheckOrder(schema.Order{Symbol: "AAPL", Quantity: 900, IsBuy: true}, 0)
	if d.Allowed() || d.Reason != schema.RiskReasonVaR {
		t.Fatalf("expected var_limit rejection, got %+v", d)
	}
}

func TestUpdatePositionVWAPSameSide(t *testing.T) {
	e := New(book.New())
	e.UpdatePosition(schema.Trade{Symbol: "AAPL", Price: 100, Quantity: 10, IsBuy: true, Ts: time.Now()})
	e.UpdatePosition(schema.Trade{Symbol: "AAPL", Price: 110, Quantity: 10, IsBuy: true, Ts: time.Now()})

	qty, vwap, set := e.Position("AAPL")
	if qty != 20 {
		t.Fatalf("expected position 20, got %v", qty)
	}
	if !set || vwap != 105 {
		t.Fatalf("expected vwap 105, got %v (set=%v)", vwap, set)
	}
}

func TestUpdatePositionCrossZeroResetsVWAP(t *testing.T) {
	e := New(book.New())
	e.UpdatePosition(schema.Trade{Symbol: "AAPL", Price: 100, Quantity: 10, IsBuy: true, Ts: time.Now()})
	// Sell 20: closes the 10 long then opens a fresh 10 short at 90.
	e.UpdatePosition(schema.Trade{Symbol: "AAPL", Price: 90, Quantity: 20, IsBuy: false, Ts: time.Now()})

	qty, vwap, set := e.Position("AAPL")
	if qty != -10 {
		t.Fatalf("expected position -10 after crossing zero, got %v", qty)
	}
	if !set || vwap != 90 {
		t.Fatalf("expected vwap reseeded at 90, got %v (set=%v)", vwap, set)
	}
}

func TestUpdatePositionReducePreservesVWAP(t *testing.T) {
	e := New(book.New())
	e.UpdatePosition(schema.Trade{Symbol: "AAPL", Price: 100, Quantity: 10, IsBuy: true, Ts: time.Now()})
	e.UpdatePosition(schema.Trade{Symbol: "AAPL", Price: 120, Quantity: 4, IsBuy: false, Ts: time.Now()})

	qty, vwap, set := e.Position("AAPL")
	if qty != 6 {
		t.Fatalf("expected position 6, got %v", qty)
	}
	if !set || vwap != 100 {
		t.Fatalf("expected vwap unchanged at 100, got %v (set=%v)", vwap, set)
	}
}

func TestCheckOrderDailyTradesLimit(t *testing.T) {
	e := New(book.New())
	e.SetLimits("AAPL", Limits{MaxOrderSize: 1000, MaxNetPosition: 1000, MaxDailyTrades: 1})
	e.UpdatePosition(schema.Trade{Symbol: "AAPL", Price: 100, Quantity: 1, IsBuy: true, Ts: time.Now()})

	d := e.CheckOrder(schema.Order{Symbol: "AAPL", Quantity: 1, IsBuy: true}, 0)
	if d.Allowed() || d.Reason != schema.RiskReasonDailyTrades {
		t.Fatalf("expected daily_trades rejection, got %+v", d)
	}
}

func TestCheckOrderPositionDurationExemptOnReduce(t *testing.T) {
	e := New(book.New())
	e.SetLimits("AAPL", Limits{MaxOrderSize: 1000, MaxNetPosition: 1000, MaxPositionDuration: time.Millisecond})
	e.UpdatePosition(schema.Trade{Symbol: "AAPL", Price: 100, Quantity: 10, IsBuy: true, Ts: time.Now()})
	time.Sleep(2 * time.Millisecond)

	// A reducing order is exempt even though the position is stale.
	d := e.CheckOrder(schema.Order{Symbol: "AAPL", Quantity: 5, IsBuy: false}, 0)
	if !d.Allowed() {
		t.Fatalf("expected reducing order to be exempt from duration limit, got %+v", d)
	}

	// An increasing order is not exempt.
	d = e.CheckOrder(schema.Order{Symbol: "AAPL", Quantity: 5, IsBuy: true}, 0)
	if d.Allowed() || d.Reason != schema.RiskReasonPositionDuration {
		t.Fatalf("expected position_duration rejection, got %+v", d)
	}
}
