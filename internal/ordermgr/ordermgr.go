// Package ordermgr implements the order manager: it accepts orders from the
// market maker, re-checks risk, and hands accepted orders to the execution
// boundary from a dedicated consumer goroutine draining a bounded SPSC
// queue. Orders that fail the risk check, or that cannot be enqueued
// because the queue is full, are rejected immediately with no retry.
package ordermgr

import (
	"sync"
	"sync/atomic"
	"time"

	"marketmaker/internal/boundary"
	"marketmaker/internal/bus"
	"marketmaker/internal/obs"
	"marketmaker/internal/risk"
	"marketmaker/internal/schema"
	"marketmaker/internal/spsc"
)

const (
	idlePollInterval = time.Millisecond
	spinIterations   = 64
)

// WorkingQuantity reports the sum of currently-working order quantities for
// a symbol, used by the risk engine's gross-exposure check. The market
// maker's active-orders map satisfies this.
type WorkingQuantity interface {
	WorkingQuantity(symbol string) schema.Quantity
}

// Manager owns one bounded order queue and a consumer goroutine that
// forwards accepted orders to the execution boundary.
type Manager struct {
	queue     *spsc.Queue[schema.Order]
	risk      *risk.Engine
	boundary  *boundary.Boundary
	working   WorkingQuantity
	telemetry *bus.Queue
	tracer    *obs.TraceGenerator

	running atomic.Bool
	stop    atomic.Bool
	wg      sync.WaitGroup

	rejected atomic.Uint64
	dropped  atomic.Uint64
	seq      atomic.Uint64
}

// SetTelemetry wires an ambient event bus that receives an EventRiskDecision
// notification for every risk check this manager performs, independent of
// the hot-path order queue.
func (m *Manager) SetTelemetry(telemetry *bus.Queue) {
	m.telemetry = telemetry
}

// SetTracer wires a shared trace-ID generator so every published risk
// decision carries a trace ID correlating it with the rest of the
// pipeline's events.
func (m *Manager) SetTracer(tracer *obs.TraceGenerator) {
	m.tracer = tracer
}

// New allocates a manager with the given queue capacity.
func New(capacity int, riskEngine *risk.Engine, exec *boundary.Boundary, working WorkingQuantity) *Manager {
	return &Manager{
		queue:    spsc.New[schema.Order](capacity),
		risk:     riskEngine,
		boundary: exec,
		working:  working,
	}
}

// SetWorkingSource installs the working-quantity source after
// construction, breaking the constructor cycle between the order manager
// and the market maker (each needs the other as a collaborator).
func (m *Manager) SetWorkingSource(working WorkingQuantity) {
	m.working = working
}

// Rejected returns the number of orders rejected by the risk check.
func (m *Manager) Rejected() uint64 { return m.rejected.Load() }

// Dropped returns the number of orders dropped because the queue was full.
func (m *Manager) Dropped() uint64 { return m.dropped.Load() }

// SubmitOrder re-checks risk synchronously and, if accepted, enqueues the
// order for the consumer goroutine to forward. It never blocks and never
// retries a full queue.
func (m *Manager) SubmitOrder(order schema.Order) (schema.RiskDecision, bool) {
	var working schema.Quantity
	if m.working != nil {
		working = m.working.WorkingQuantity(order.Symbol)
	}
	decision := m.risk.CheckOrder(order, working)
	m.publishDecision()
	if !decision.Allowed() {
		m.rejected.Add(1)
		return decision, false
	}
	if !m.queue.TryPush(order) {
		m.dropped.Add(1)
		return decision, false
	}
	return decision, true
}

func (m *Manager) publishDecision() {
	if m.telemetry == nil {
		return
	}
	now := time.Now().UTC().UnixNano()
	header := schema.NewHeader(schema.EventRiskDecision, 0, m.seq.Add(1), now, now)
	if m.tracer != nil {
		header.TraceID = m.tracer.Next()
	}
	_ = m.telemetry.TryPublish(bus.Event{Header: header})
}

// CancelOrder forwards a cancellation directly to the execution boundary;
// cancels bypass the queue since they are rare and latency-insensitive
// relative to new-order flow.
func (m *Manager) CancelOrder(orderID string) error {
	return m.boundary.Cancel(orderID)
}

// Start spawns the consumer goroutine. Calling Start twice is a no-op.
func (m *Manager) Start() {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	m.stop.Store(false)
	m.wg.Add(1)
	go m.run()
}

// Stop signals the consumer to exit and blocks until it has joined.
func (m *Manager) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	m.stop.Store(true)
	m.wg.Wait()
}

func (m *Manager) run() {
	defer m.wg.Done()
	spins := 0
	for {
		order, ok := m.queue.TryPop()
		if !ok {
			if m.stop.Load() {
				return
			}
			spins++
			if spins < spinIterations {
				continue
			}
			time.Sleep(idlePollInterval)
			continue
		}
		spins = 0
		_ = m.boundary.Send(order)
	}
}
