// Package maker implements the market maker: the per-symbol quote-ladder
// generator that cancels and re-quotes on each market update, submitting
// orders through the order manager. Order IDs come from a process-global
// monotonically increasing counter with a fixed prefix, the same "global
// counter, no lock, opaque string IDs" idiom the reference stack uses.
package maker

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"marketmaker/internal/schema"
	"marketmaker/internal/vol"
)

// Params are the per-symbol market-making parameters.
type Params struct {
	SpreadPct    float64
	BaseSize     float64
	SkewFactor   float64
	TickSize     float64
	Levels       int
	LevelSpacing float64
}

// Submitter is the order-manager seam the market maker submits through.
type Submitter interface {
	SubmitOrder(order schema.Order) (schema.RiskDecision, bool)
	CancelOrder(orderID string) error
}

// PositionReader exposes the risk engine's current position for a symbol,
// used for the inventory-skew calculation.
type PositionReader interface {
	Position(symbol string) (quantity schema.Quantity, vwap schema.Price, vwapSet bool)
}

var orderSeq atomic.Uint64

func nextOrderID() string {
	return fmt.Sprintf("MM_%d", orderSeq.Add(1))
}

type symbolState struct {
	params       Params
	vol          *vol.Estimator
	activeOrders []string
}

// Maker generates and maintains quote ladders for every configured symbol.
type Maker struct {
	mu        sync.Mutex
	symbols   map[string]*symbolState
	submitter Submitter
	positions PositionReader
}

// New allocates a maker with no configured symbols.
func New(submitter Submitter, positions PositionReader) *Maker {
	return &Maker{
		symbols:   make(map[string]*symbolState),
		submitter: submitter,
		positions: positions,
	}
}

// ConfigureSymbol registers or replaces the market-making parameters for a
// symbol. It allocates the symbol's independent volatility estimator copy.
func (m *Maker) ConfigureSymbol(symbol string, params Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.symbols[symbol]
	if !ok {
		st = &symbolState{vol: vol.New(vol.DefaultWindowSize)}
		m.symbols[symbol] = st
	}
	st.params = params
}

// WorkingQuantity implements ordermgr.WorkingQuantity: the sum of this
// symbol's currently-resting order quantities, for the gross-exposure check.
// Since the active-orders list holds order IDs rather than quantities, this
// returns the count-weighted estimate using the configured base size; a
// caller needing exact quantities should track them alongside the IDs.
func (m *Maker) WorkingQuantity(symbol string) schema.Quantity {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.symbols[symbol]
	if !ok {
		return 0
	}
	return schema.Quantity(len(st.activeOrders)) * schema.Quantity(st.params.BaseSize)
}

// UpdateQuotes implements mdhandler.QuoteConsumer. It is the market maker's
// reaction to a fresh top-of-book quote: recompute the ladder and re-quote.
//
// The submitter call chain loops back into WorkingQuantity (the order
// manager's risk check reads this maker's active-order count), so m.mu
// must never be held across a call into m.submitter: doing so would
// deadlock the first order of every re-quote cycle against its own
// WorkingQuantity lookup. UpdateQuotes therefore snapshots state under
// the lock, cancels and submits with the lock released, and only
// reacquires it to commit the rebuilt active-order list.
func (m *Maker) UpdateQuotes(quote schema.Quote) {
	m.mu.Lock()
	st, ok := m.symbols[quote.Symbol]
	if !ok {
		m.mu.Unlock()
		return
	}

	mid := float64(quote.Mid())
	st.vol.Update(mid)
	sigma := st.vol.Volatility()
	params := st.params
	staleOrders := st.activeOrders
	st.activeOrders = nil
	m.mu.Unlock()

	var position schema.Quantity
	if m.positions != nil {
		position, _, _ = m.positions.Position(quote.Symbol)
	}

	baseSize := params.BaseSize
	if baseSize <= 0 {
		return
	}
	inventoryRatio := float64(position) / baseSize
	adjustedSpread := params.SpreadPct * (1 + inventoryRatio*params.SkewFactor*sigma)

	for _, id := range staleOrders {
		_ = m.submitter.CancelOrder(id)
	}

	levels := params.Levels
	if levels < 1 {
		levels = 1
	}
	fresh := make([]string, 0, levels*2)
	for l := 0; l < levels; l++ {
		mult := 1 + float64(l)*params.LevelSpacing
		bidPx := roundToTick(mid*(1-adjustedSpread*mult-inventoryRatio*params.SkewFactor), params.TickSize)
		askPx := roundToTick(mid*(1+adjustedSpread*mult-inventoryRatio*params.SkewFactor), params.TickSize)
		size := baseSize / math.Pow(2, float64(l))

		if id, ok := m.submitOrder(quote.Symbol, bidPx, size, true); ok {
			fresh = append(fresh, id)
		}
		if id, ok := m.submitOrder(quote.Symbol, askPx, size, false); ok {
			fresh = append(fresh, id)
		}
	}

	m.mu.Lock()
	if st, ok := m.symbols[quote.Symbol]; ok {
		st.activeOrders = append(st.activeOrders, fresh...)
	}
	m.mu.Unlock()
}

func (m *Maker) submitOrder(symbol string, price, size float64, isBuy bool) (string, bool) {
	id := nextOrderID()
	order := schema.Order{
		OrderID:  id,
		Symbol:   symbol,
		Price:    schema.Price(price),
		Quantity: schema.Quantity(size),
		IsBuy:    isBuy,
	}
	_, accepted := m.submitter.SubmitOrder(order)
	return id, accepted
}

// roundToTick rounds p to the nearest multiple of t, half-away-from-zero.
// The tick count is divided by 1/t rather than multiplied by t, so that for
// ticks such as 0.01 the result is the float nearest the decimal price
// (100.1, not 100.10000000000001).
func roundToTick(p, t float64) float64 {
	if t <= 0 {
		return p
	}
	n := p / t
	if n >= 0 {
		return math.Floor(n+0.5) / (1 / t)
	}
	return math.Ceil(n-0.5) / (1 / t)
}
