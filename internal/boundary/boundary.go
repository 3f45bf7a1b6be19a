package boundary

import (
	"errors"
	"sync/atomic"

	"marketmaker/internal/schema"
)

// ErrDisconnected is returned by Send/Cancel when the boundary's sink is
// currently disconnected; the order is still tracked for resend.
var ErrDisconnected = errors.New("execution sink disconnected")

// Sink is the pluggable destination for outbound orders. The source's
// exchange/broker connectivity is an out-of-scope external collaborator;
// Sink is the seam where that connectivity would plug in.
type Sink interface {
	Send(order schema.Order) error
	Cancel(orderID string) error
}

// NoopSink accepts every order without doing anything, for tests and
// paper-trading demos.
type NoopSink struct{}

func (NoopSink) Send(schema.Order) error { return nil }
func (NoopSink) Cancel(string) error     { return nil }

// Config controls resend-on-reconnect behavior.
type Config struct {
	ResendOnReconnect bool
}

// Boundary is the execution boundary: it forwards orders to a Sink and
// tracks their lifecycle, independent of whether the sink is currently
// reachable.
type Boundary struct {
	cfg       Config
	sink      Sink
	state     *StateMachine
	connected atomic.Bool
}

// New creates a boundary wired to sink.
func New(sink Sink, cfg Config) *Boundary {
	b := &Boundary{
		cfg:   cfg,
		sink:  sink,
		state: NewStateMachine(),
	}
	b.connected.Store(true)
	return b
}

// State exposes the underlying order state machine for observability.
func (b *Boundary) State() *StateMachine { return b.state }

// Send registers the order with the lifecycle tracker and forwards it to
// the sink. The order is tracked regardless of connectivity so it can be
// resent on reconnect.
func (b *Boundary) Send(order schema.Order) error {
	if _, err := b.state.ApplySend(order); err != nil {
		return err
	}
	if !b.connected.Load() {
		return ErrDisconnected
	}
	if err := b.sink.Send(order); err != nil {
		_, _ = b.state.ApplyAck(order.OrderID, false)
		return err
	}
	return nil
}

// Cancel forwards a cancellation to the sink and marks the order cancelled.
func (b *Boundary) Cancel(orderID string) error {
	if !b.connected.Load() {
		return ErrDisconnected
	}
	if err := b.sink.Cancel(orderID); err != nil {
		return err
	}
	_, err := b.state.ApplyCancel(orderID)
	return err
}

// OnAck records a sink acknowledgment.
func (b *Boundary) OnAck(orderID string, accepted bool) error {
	_, err := b.state.ApplyAck(orderID, accepted)
	return err
}

// OnFill records a fill reported by the sink.
func (b *Boundary) OnFill(orderID string, fillQty schema.Quantity) (schema.Order, error) {
	return b.state.ApplyFill(orderID, fillQty)
}

// Disconnect marks the sink unreachable; outstanding orders remain tracked.
func (b *Boundary) Disconnect() {
	b.connected.Store(false)
}

// Reconnect marks the sink reachable again and, if configured, resends
// every pending (non-terminal) order. This is the one piece of
// reconciliation policy this implementation takes a position on: fills and
// cancels that raced with the disconnect are not reconciled here, they are
// left to arrive as ordinary OnAck/OnFill calls once connectivity resumes.
func (b *Boundary) Reconnect() []schema.Order {
	b.connected.Store(true)
	if !b.cfg.ResendOnReconnect {
		return nil
	}
	pending := b.state.Pending()
	for _, o := range pending {
		_ = b.sink.Send(o)
	}
	return pending
}
