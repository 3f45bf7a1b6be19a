package schema

import "time"

// Price is a trade or quote price. The quote-ladder and risk math is
// transcendental (log returns, sqrt, tick rounding), so unlike the scaled
// fixed-point integers a pure matching-engine schema would use, prices and
// quantities here are plain floats.
type Price float64

// Quantity is a signed or unsigned size, in whatever units the venue quotes.
type Quantity float64

// Notional is price times quantity, in quote-currency units.
type Notional float64

// OrderSide describes order direction.
type OrderSide uint8

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

// IsBuy reports whether the side represents a buy.
func (s OrderSide) IsBuy() bool { return s == OrderSideBuy }

// SideOf converts the spec's `is_buy` boolean into an OrderSide.
func SideOf(isBuy bool) OrderSide {
	if isBuy {
		return OrderSideBuy
	}
	return OrderSideSell
}

// Quote is a top-of-book market data tick. Immutable once published.
type Quote struct {
	Symbol  string
	Bid     Price
	Ask     Price
	BidSize Quantity
	AskSize Quantity
	Ts      time.Time
}

// Mid returns the mid price, (bid+ask)/2.
func (q Quote) Mid() Price { return (q.Bid + q.Ask) / 2 }

// Valid reports whether the quote satisfies the spec's bid<=ask, non-negative invariant.
func (q Quote) Valid() bool {
	return q.Bid >= 0 && q.Ask >= 0 && q.Bid <= q.Ask
}

// Trade is a report of an execution on this participant's behalf.
type Trade struct {
	Symbol   string
	Price    Price
	Quantity Quantity
	IsBuy    bool
	Ts       time.Time
}

// OrderStatus is the externally-visible lifecycle state of an order.
type OrderStatus uint8

const (
	OrderStatusNew OrderStatus = iota
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusNew:
		return "NEW"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCancelled:
		return "CANCELLED"
	case OrderStatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Order is a single resting or working order.
type Order struct {
	OrderID  string
	Symbol   string
	Price    Price
	Quantity Quantity
	IsBuy    bool
	Ts       time.Time
	Status   OrderStatus
}

// RiskAction is the outcome of a risk decision.
type RiskAction uint8

const (
	RiskActionUnknown RiskAction = iota
	RiskActionAllow
	RiskActionDeny
)

// RiskReason is a coarse reason code for risk decisions.
type RiskReason uint8

const (
	RiskReasonNone RiskReason = iota
	RiskReasonNoLimitsConfigured
	RiskReasonMaxOrderSize
	RiskReasonNetPosition
	RiskReasonGrossPosition
	RiskReasonDollarExposure
	RiskReasonVaR
	RiskReasonExpectedShortfall
	RiskReasonDrawdown
	RiskReasonPositionDuration
	RiskReasonDailyLoss
	RiskReasonDailyTrades
)

func (r RiskReason) String() string {
	switch r {
	case RiskReasonNone:
		return "none"
	case RiskReasonNoLimitsConfigured:
		return "no_limits_configured"
	case RiskReasonMaxOrderSize:
		return "max_order_size"
	case RiskReasonNetPosition:
		return "max_net_position"
	case RiskReasonGrossPosition:
		return "max_gross_position"
	case RiskReasonDollarExposure:
		return "max_dollar_exposure"
	case RiskReasonVaR:
		return "var_limit"
	case RiskReasonExpectedShortfall:
		return "es_limit"
	case RiskReasonDrawdown:
		return "max_drawdown_limit"
	case RiskReasonPositionDuration:
		return "max_position_duration"
	case RiskReasonDailyLoss:
		return "max_daily_loss"
	case RiskReasonDailyTrades:
		return "max_daily_trades"
	default:
		return "unknown"
	}
}

// RiskDecision is the result of a pre-trade check, suitable for logging/metrics.
type RiskDecision struct {
	OrderID     string
	Symbol      string
	Action      RiskAction
	Reason      RiskReason
	ProposedQty Quantity
	CurrentPos  Quantity
}

// Allowed reports whether the decision permits the order.
func (d RiskDecision) Allowed() bool { return d.Action == RiskActionAllow }
