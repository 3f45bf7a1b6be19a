package risk

import (
	"time"

	"marketmaker/internal/ring"
	"marketmaker/internal/schema"
)

// recentTradesCap is the size of the bounded recent-trades FIFO.
const recentTradesCap = 1000

// position is the per-symbol bookkeeping the risk engine mutates on every
// fill. vwap is undefined (vwapSet == false) whenever position == 0.
type position struct {
	quantity schema.Quantity
	vwap     schema.Price
	vwapSet  bool

	realizedPnL   float64
	unrealizedPnL float64
	peakEquity    float64

	recentTrades *ring.Buffer[schema.Trade]
	lastUpdate   time.Time
	openedAt     time.Time
	hasOpenedAt  bool

	dailyTradeCount  int
	dailyRealizedPnL float64
	dayKey           string // "2006-01-02" UTC, resets the daily counters
}

func newPosition() *position {
	return &position{recentTrades: ring.New[schema.Trade](recentTradesCap)}
}

func dayKeyOf(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

func (p *position) rollDayIfNeeded(ts time.Time) {
	key := dayKeyOf(ts)
	if p.dayKey == "" {
		p.dayKey = key
		return
	}
	if key != p.dayKey {
		p.dayKey = key
		p.dailyTradeCount = 0
		p.dailyRealizedPnL = 0
	}
}

// applyTrade folds a fill into the position, handling same-side, reducing
// and zero-crossing trades, updating the tracker in place.
func (p *position) applyTrade(trade schema.Trade) {
	p.rollDayIfNeeded(trade.Ts)

	signedQty := trade.Quantity
	if !trade.IsBuy {
		signedQty = -signedQty
	}

	prevQty := p.quantity
	sameSign := prevQty == 0 || (prevQty > 0) == (signedQty > 0)

	switch {
	case prevQty == 0:
		// Opening trade from flat: seed vwap fresh.
		p.vwap = trade.Price
		p.vwapSet = true
		p.openedAt = trade.Ts
		p.hasOpenedAt = true

	case sameSign:
		// Same-side increase: value-weighted average against the new size.
		oldAbs := absQty(prevQty)
		addAbs := absQty(trade.Quantity)
		totalAbs := oldAbs + addAbs
		if p.vwapSet && totalAbs > 0 {
			p.vwap = schema.Price((float64(p.vwap)*float64(oldAbs) + float64(trade.Price)*float64(addAbs)) / float64(totalAbs))
		} else {
			p.vwap = trade.Price
			p.vwapSet = true
		}

	default:
		// Opposite side: reduces, or reduces-then-crosses zero.
		reduceAbs := absQty(trade.Quantity)
		posAbs := absQty(prevQty)
		if reduceAbs <= posAbs {
			// Pure reduction: vwap unchanged, realize PnL on the closed slice.
			if p.vwapSet {
				realized := realizedOnClose(prevQty, trade.Price, p.vwap, reduceAbs)
				p.realizedPnL += realized
				p.dailyRealizedPnL += realized
			}
		} else {
			// Crosses zero: close out the old side entirely, then open
			// fresh on the residual at the trade price.
			if p.vwapSet {
				realized := realizedOnClose(prevQty, trade.Price, p.vwap, posAbs)
				p.realizedPnL += realized
				p.dailyRealizedPnL += realized
			}
			p.vwap = trade.Price
			p.vwapSet = true
			p.openedAt = trade.Ts
			p.hasOpenedAt = true
		}
	}

	p.quantity = prevQty + signedQty
	if p.quantity == 0 {
		p.vwapSet = false
		p.hasOpenedAt = false
	}

	if p.vwapSet {
		p.unrealizedPnL = (float64(trade.Price) - float64(p.vwap)) * float64(p.quantity)
	} else {
		p.unrealizedPnL = 0
	}

	equity := p.realizedPnL + p.unrealizedPnL
	if equity > p.peakEquity {
		p.peakEquity = equity
	}

	p.recentTrades.Push(trade)
	p.dailyTradeCount++
	p.lastUpdate = trade.Ts
}

// realizedOnClose computes the PnL realized by closing closedAbs units of a
// position held at vwap, against a trade executed at price.
func realizedOnClose(prevQty schema.Quantity, price, vwap schema.Price, closedAbs schema.Quantity) float64 {
	if prevQty > 0 {
		// Was long, now selling: profit if exit price > entry vwap.
		return (float64(price) - float64(vwap)) * float64(closedAbs)
	}
	// Was short, now buying to cover: profit if entry vwap > exit price.
	return (float64(vwap) - float64(price)) * float64(closedAbs)
}

func (p *position) drawdown() float64 {
	return p.peakEquity - (p.realizedPnL + p.unrealizedPnL)
}

func (p *position) positionAge(now time.Time) time.Duration {
	if !p.hasOpenedAt {
		return 0
	}
	return now.Sub(p.openedAt)
}

func absQty(q schema.Quantity) schema.Quantity {
	if q < 0 {
		return -q
	}
	return q
}
