// Package risk implements the pre-trade check and position/PnL bookkeeping
// described for the risk engine: a single coarse lock guards the per-symbol
// map of positions, the same shape the reference stack uses for its own position
// state, generalized here to carry VWAP, realized/unrealized PnL, VaR/ES
// gating and the daily and duration-based limits.
package risk

import (
	"sync"
	"time"

	"marketmaker/internal/book"
	"marketmaker/internal/schema"
	"marketmaker/internal/vol"
)

// Z95 is the one-sided 95% normal quantile used by the VaR formula.
const Z95 = 1.645

// ESMultiplier approximates expected shortfall as a fixed multiple of VaR.
// This is a documented simplification, not a precise tail-conditional estimate.
const ESMultiplier = 1.2

// Limits are the per-symbol hard ceilings a pre-trade check enforces. The
// zero value of any field means "not enforced" for that specific check;
// an entirely absent Limits entry for a symbol means fail-closed.
type Limits struct {
	MaxOrderSize         schema.Quantity
	MaxNetPosition       schema.Quantity
	MaxGrossPosition     schema.Quantity
	MaxDollarExposure    float64
	VaRLimit             float64
	ESLimit              float64
	MaxDrawdownLimit     float64
	MaxPositionDuration  time.Duration
	MaxDailyLoss         float64
	MaxDailyTrades       int
}

// Engine evaluates pre-trade checks and applies post-trade position updates.
// One Engine instance is shared by the order manager and the market maker;
// its internal lock is coarse because contention is not expected on the hot
// path (order submission rate, not quote rate).
type Engine struct {
	mu        sync.Mutex
	limits    map[string]Limits
	positions map[string]*position
	book      *book.Registry
	vols      map[string]*vol.Estimator
	now       func() time.Time
}

// New allocates an engine with no configured limits (every symbol fails
// closed until SetLimits is called for it).
func New(bk *book.Registry) *Engine {
	return &Engine{
		limits:    make(map[string]Limits),
		positions: make(map[string]*position),
		book:      bk,
		vols:      make(map[string]*vol.Estimator),
		now:       time.Now,
	}
}

// SetLimits configures (or replaces) the risk limits for a symbol.
func (e *Engine) SetLimits(symbol string, limits Limits) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limits[symbol] = limits
}

func (e *Engine) positionFor(symbol string) *position {
	p, ok := e.positions[symbol]
	if !ok {
		p = newPosition()
		e.positions[symbol] = p
	}
	return p
}

func (e *Engine) volFor(symbol string) *vol.Estimator {
	v, ok := e.vols[symbol]
	if !ok {
		v = vol.New(vol.DefaultWindowSize)
		e.vols[symbol] = v
	}
	return v
}

// CheckOrder runs the pre-trade checks for a candidate order against a
// symbol's configured limits and current state. workingQty is the sum of
// quantities of this symbol's currently-working orders, used for the gross
// exposure check; callers that don't track working orders may pass 0.
func (e *Engine) CheckOrder(order schema.Order, workingQty schema.Quantity) schema.RiskDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	decision := schema.RiskDecision{
		OrderID:     order.OrderID,
		Symbol:      order.Symbol,
		Action:      schema.RiskActionAllow,
		Reason:      schema.RiskReasonNone,
		ProposedQty: order.Quantity,
	}

	limits, ok := e.limits[order.Symbol]
	if !ok {
		decision.Action = schema.RiskActionDeny
		decision.Reason = schema.RiskReasonNoLimitsConfigured
		return decision
	}

	pos := e.positionFor(order.Symbol)
	decision.CurrentPos = pos.quantity

	if limits.MaxOrderSize > 0 && order.Quantity > limits.MaxOrderSize {
		decision.Action = schema.RiskActionDeny
		decision.Reason = schema.RiskReasonMaxOrderSize
		return decision
	}

	signedQty := order.Quantity
	if !order.IsBuy {
		signedQty = -signedQty
	}
	positionAfter := pos.quantity + signedQty
	increasesPosition := absQty(positionAfter) > absQty(pos.quantity)

	if limits.MaxNetPosition > 0 && absQty(positionAfter) > limits.MaxNetPosition {
		decision.Action = schema.RiskActionDeny
		decision.Reason = schema.RiskReasonNetPosition
		return decision
	}

	if limits.MaxGrossPosition > 0 {
		gross := absQty(positionAfter) + workingQty
		if gross > limits.MaxGrossPosition {
			decision.Action = schema.RiskActionDeny
			decision.Reason = schema.RiskReasonGrossPosition
			return decision
		}
	}

	refPrice, haveRef := e.referencePrice(order)

	if limits.MaxDollarExposure > 0 && haveRef {
		dollarExposure := float64(absQty(positionAfter)) * float64(refPrice)
		if dollarExposure > limits.MaxDollarExposure {
			decision.Action = schema.RiskActionDeny
			decision.Reason = schema.RiskReasonDollarExposure
			return decision
		}
	}

	sigma := e.volFor(order.Symbol).Volatility()
	if limits.VaRLimit > 0 {
		if computeVaR(positionAfter, sigma) > limits.VaRLimit {
			decision.Action = schema.RiskActionDeny
			decision.Reason = schema.RiskReasonVaR
			return decision
		}
	}
	if limits.ESLimit > 0 {
		if computeES(positionAfter, sigma) > limits.ESLimit {
			decision.Action = schema.RiskActionDeny
			decision.Reason = schema.RiskReasonExpectedShortfall
			return decision
		}
	}

	if limits.MaxDrawdownLimit > 0 && haveRef {
		if pos.drawdown() > limits.MaxDrawdownLimit {
			decision.Action = schema.RiskActionDeny
			decision.Reason = schema.RiskReasonDrawdown
			return decision
		}
	}

	now := e.now()
	pos.rollDayIfNeeded(now)
	if limits.MaxPositionDuration > 0 && increasesPosition {
		if pos.positionAge(now) > limits.MaxPositionDuration {
			decision.Action = schema.RiskActionDeny
			decision.Reason = schema.RiskReasonPositionDuration
			return decision
		}
	}

	if limits.MaxDailyLoss > 0 && increasesPosition {
		if pos.dailyRealizedPnL <= -limits.MaxDailyLoss {
			decision.Action = schema.RiskActionDeny
			decision.Reason = schema.RiskReasonDailyLoss
			return decision
		}
	}

	if limits.MaxDailyTrades > 0 && pos.dailyTradeCount >= limits.MaxDailyTrades {
		decision.Action = schema.RiskActionDeny
		decision.Reason = schema.RiskReasonDailyTrades
		return decision
	}

	return decision
}

// referencePrice resolves the price used by the dollar-exposure and
// drawdown checks: the order's own price if positive, else the book's
// current mid. Returns ok=false when neither is available, in which case
// callers skip (not reject) the checks that need it.
func (e *Engine) referencePrice(order schema.Order) (schema.Price, bool) {
	if order.Price > 0 {
		return order.Price, true
	}
	if e.book == nil {
		return 0, false
	}
	q, ok := e.book.Top(order.Symbol)
	if !ok {
		return 0, false
	}
	return q.Mid(), true
}

// computeVaR returns the parametric 95% one-sided value-at-risk for a
// hypothetical position, |position| * sigma * Z95.
func computeVaR(position schema.Quantity, sigma float64) float64 {
	return float64(absQty(position)) * sigma * Z95
}

// computeES approximates expected shortfall as ESMultiplier * VaR.
func computeES(position schema.Quantity, sigma float64) float64 {
	return computeVaR(position, sigma) * ESMultiplier
}

// UpdatePosition applies a fill to the position tracker and feeds the
// symbol's volatility estimator the trade price.
func (e *Engine) UpdatePosition(trade schema.Trade) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos := e.positionFor(trade.Symbol)
	pos.applyTrade(trade)
	e.volFor(trade.Symbol).Update(float64(trade.Price))
}

// Position returns a read-only snapshot view of the current position state
// for a symbol, for observability and the market maker's inventory skew.
func (e *Engine) Position(symbol string) (quantity schema.Quantity, vwap schema.Price, vwapSet bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.positions[symbol]
	if !ok {
		return 0, 0, false
	}
	return pos.quantity, pos.vwap, pos.vwapSet
}

// Volatility returns the current volatility estimate for a symbol.
func (e *Engine) Volatility(symbol string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volFor(symbol).Volatility()
}
