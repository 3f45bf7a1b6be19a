package mdg

import (
	"testing"
	"time"
)

func TestNewGeneratorRequiresSymbols(t *testing.T) {
	if _, err := NewGenerator(nil, 100, 1, 0.01); err == nil {
		t.Fatalf("expected error with no symbols")
	}
}

func TestNextRoundRobins(t *testing.T) {
	g, err := NewGenerator([]string{"AAPL", "GOOGL"}, 100, 10, 0.5)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	now := time.Now()
	q1 := g.Next(now)
	q2 := g.Next(now)
	q3 := g.Next(now)

	if q1.Symbol != "AAPL" || q2.Symbol != "GOOGL" || q3.Symbol != "AAPL" {
		t.Fatalf("expected round-robin AAPL, GOOGL, AAPL; got %s, %s, %s", q1.Symbol, q2.Symbol, q3.Symbol)
	}
	if q1.Bid >= q1.Ask {
		t.Fatalf("expected bid < ask, got %+v", q1)
	}
}
