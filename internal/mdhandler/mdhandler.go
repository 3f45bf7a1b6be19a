// Package mdhandler implements the market-data handler: a single bounded
// SPSC quote queue per ingress feeding a consumer goroutine that updates
// the order book registry and notifies the market maker.
package mdhandler

import (
	"sync"
	"sync/atomic"
	"time"

	"marketmaker/internal/book"
	"marketmaker/internal/bus"
	"marketmaker/internal/obs"
	"marketmaker/internal/schema"
	"marketmaker/internal/spsc"
)

// QuoteConsumer is notified of every quote after the order book has been
// updated. The market maker implements this.
type QuoteConsumer interface {
	UpdateQuotes(quote schema.Quote)
}

// idlePollInterval is how often the consumer goroutine re-checks the queue
// and the shutdown flag once it finds the queue empty.
const idlePollInterval = time.Millisecond

// spinIterations is the number of empty polls tried before the handler
// backs off to idlePollInterval, trading CPU for latency on the hot path.
const spinIterations = 64

// Handler owns one SPSC quote queue and a consumer goroutine.
type Handler struct {
	queue     *spsc.Queue[schema.Quote]
	book      *book.Registry
	consumer  QuoteConsumer
	telemetry *bus.Queue
	tracer    *obs.TraceGenerator

	running atomic.Bool
	stop    atomic.Bool
	dropped atomic.Uint64
	seq     atomic.Uint64

	wg sync.WaitGroup
}

// New allocates a handler with the given queue capacity.
func New(capacity int, bk *book.Registry, consumer QuoteConsumer) *Handler {
	return &Handler{
		queue:    spsc.New[schema.Quote](capacity),
		book:     bk,
		consumer: consumer,
	}
}

// SetTelemetry wires an ambient event bus that receives a lightweight
// EventQuote notification for every processed quote, independent of the
// hot-path SPSC queue. Telemetry is best-effort: a full bus drops the
// notification rather than applying backpressure to the market-data path.
func (h *Handler) SetTelemetry(telemetry *bus.Queue) {
	h.telemetry = telemetry
}

// SetTracer wires a shared trace-ID generator so every published event
// carries a trace ID correlating it with other events from the same
// pipeline run, independent of each component's own monotonic sequence
// counter.
func (h *Handler) SetTracer(tracer *obs.TraceGenerator) {
	h.tracer = tracer
}

// OnQuote is the producer-side entry point. It is non-blocking: a full
// queue drops the quote and increments a counter rather than retrying.
func (h *Handler) OnQuote(q schema.Quote) {
	if !h.queue.TryPush(q) {
		h.dropped.Add(1)
	}
}

// Dropped returns the number of quotes dropped due to a full queue.
func (h *Handler) Dropped() uint64 { return h.dropped.Load() }

// Start spawns the consumer goroutine. Calling Start twice is a no-op.
func (h *Handler) Start() {
	if !h.running.CompareAndSwap(false, true) {
		return
	}
	h.stop.Store(false)
	h.wg.Add(1)
	go h.run()
}

// Stop signals the consumer to exit and blocks until it has joined.
func (h *Handler) Stop() {
	if !h.running.CompareAndSwap(true, false) {
		return
	}
	h.stop.Store(true)
	h.wg.Wait()
}

func (h *Handler) run() {
	defer h.wg.Done()
	spins := 0
	for {
		q, ok := h.queue.TryPop()
		if !ok {
			if h.stop.Load() {
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
		h.processQuote(q)
	}
}

func (h *Handler) processQuote(q schema.Quote) {
	if !q.Valid() {
		return
	}
	if h.book != nil {
		h.book.Update(q)
	}
	if h.consumer != nil {
		h.consumer.UpdateQuotes(q)
	}
	if h.telemetry != nil {
		now := time.Now().UTC().UnixNano()
		header := schema.NewHeader(schema.EventQuote, 0, h.seq.Add(1), now, now)
		if h.tracer != nil {
			header.TraceID = h.tracer.Next()
		}
		_ = h.telemetry.TryPublish(bus.Event{Header: header})
	}
}
