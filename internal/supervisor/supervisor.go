// Package supervisor wires the market-making pipeline together and owns
// its lifecycle: start every component in dependency order, join every
// goroutine cleanly on stop, and keep Start/Stop idempotent so the
// entrypoint can call Stop from both a signal handler and a deferred
// cleanup without double-closing anything.
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"marketmaker/internal/book"
	"marketmaker/internal/boundary"
	"marketmaker/internal/bus"
	"marketmaker/internal/feed"
	"marketmaker/internal/maker"
	"marketmaker/internal/mdhandler"
	"marketmaker/internal/obs"
	"marketmaker/internal/ops"
	"marketmaker/internal/ordermgr"
	"marketmaker/internal/risk"
)

// Config controls queue sizing and how often the memory reporter logs.
type Config struct {
	MDQueueCapacity      int
	OrderQueueCapacity   int
	TelemetryBusCapacity int
	MemoryLogInterval    time.Duration
}

// DefaultConfig returns the queue sizes and memory-log interval the CLI
// runs with. A zero Config is not equivalent: zero queue capacities fall
// back to each package's own default (1024 for the SPSC queues, 1 for the
// telemetry bus), and a zero MemoryLogInterval disables the memory reporter.
func DefaultConfig() Config {
	return Config{
		MDQueueCapacity:      4096,
		OrderQueueCapacity:   1024,
		TelemetryBusCapacity: 1024,
		MemoryLogInterval:    30 * time.Second,
	}
}

// FeedFactory builds the market-data feed once the supervisor's own
// quote sink (its market-data handler) is ready to receive ticks. It lets
// New construct the handler before the feed without either package
// importing the other's concrete type.
type FeedFactory func(sink feed.QuoteSink) feed.Runnable

// Supervisor owns every long-lived component of the pipeline: the book,
// risk engine, market maker, market-data handler, order manager, the
// configured feed, and the memory reporter. One process builds exactly
// one Supervisor; AddStrategy configures an additional symbol without
// restarting anything already running.
type Supervisor struct {
	cfg Config

	book      *book.Registry
	risk      *risk.Engine
	boundary  *boundary.Boundary
	maker     *maker.Maker
	mdHandler *mdhandler.Handler
	orderMgr  *ordermgr.Manager
	telemetry *bus.Queue
	metrics   *obs.Metrics
	memory    *obs.MemoryReporter

	runner feed.Runnable

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Supervisor from resolved configuration, an execution sink,
// and a feed factory. The market maker and the order manager need each
// other as collaborators (the maker submits through the manager, the
// manager estimates working quantity from the maker's active orders), so
// New resolves that cycle with ordermgr.Manager.SetWorkingSource after
// both are constructed.
func New(cfg Config, loaded ops.Loaded, sink boundary.Sink, newFeed FeedFactory) *Supervisor {
	bk := book.New()
	riskEngine := risk.New(bk)
	for symbol, limits := range loaded.Risk {
		riskEngine.SetLimits(symbol, limits)
	}

	bnd := boundary.New(sink, boundary.Config{ResendOnReconnect: true})
	orderMgr := ordermgr.New(cfg.OrderQueueCapacity, riskEngine, bnd, nil)
	mkr := maker.New(orderMgr, riskEngine)
	orderMgr.SetWorkingSource(mkr)
	for symbol, params := range loaded.Maker {
		mkr.ConfigureSymbol(symbol, params)
	}

	mdHandler := mdhandler.New(cfg.MDQueueCapacity, bk, mkr)

	telemetry := bus.NewQueue(cfg.TelemetryBusCapacity)
	mdHandler.SetTelemetry(telemetry)
	orderMgr.SetTelemetry(telemetry)

	tracer := obs.NewTraceGenerator(0)
	mdHandler.SetTracer(tracer)
	orderMgr.SetTracer(tracer)

	s := &Supervisor{
		cfg:       cfg,
		book:      bk,
		risk:      riskEngine,
		boundary:  bnd,
		maker:     mkr,
		mdHandler: mdHandler,
		orderMgr:  orderMgr,
		telemetry: telemetry,
		metrics:   obs.NewMetrics(),
		memory:    &obs.MemoryReporter{},
	}
	if newFeed != nil {
		s.runner = newFeed(mdHandler)
	}
	return s
}

// AddStrategy registers risk limits and market-making parameters for an
// additional symbol without restarting the pipeline. It is safe to call
// before or after Start.
func (s *Supervisor) AddStrategy(symbol string, limits risk.Limits, params maker.Params) {
	s.risk.SetLimits(symbol, limits)
	s.maker.ConfigureSymbol(symbol, params)
	logs.Infof("supervisor: strategy added, symbol: %s", symbol)
}

// Start launches every component goroutine and begins driving the
// configured feed. Start is idempotent: a second call while already
// running is a no-op.
func (s *Supervisor) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mdHandler.Start()
	s.orderMgr.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.telemetry.Run(runCtx, func(e bus.Event) {
			s.metrics.ObserveEvent(e.Header)
		})
	}()

	if s.cfg.MemoryLogInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.memory.Run(runCtx, s.cfg.MemoryLogInterval)
		}()
	}

	if s.runner != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.runner.Run(runCtx); err != nil && runCtx.Err() == nil {
				logs.Errorf("supervisor: feed run failed, err: %s", err.Error())
			}
		}()
	}

	logs.Infof("supervisor: started")
	return nil
}

// Stop cancels every component goroutine and blocks until they have all
// joined. Stop is idempotent: calling it more than once (from a signal
// handler and a deferred cleanup, for instance) is safe.
func (s *Supervisor) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.mdHandler.Stop()
	s.orderMgr.Stop()
	s.wg.Wait()

	snap := s.metrics.Snapshot()
	logs.Infof("supervisor: stopped, event_counts: %+v, risk_reasons: %+v, queue_drops: %d",
		snap.EventCounts, snap.RiskReasonCounts, snap.QueueDrops)
}

// Metrics exposes the supervisor's metrics collector for external
// reporting (an HTTP handler, a periodic log line, a CLI exit summary).
func (s *Supervisor) Metrics() *obs.Metrics { return s.metrics }

// Book exposes the top-of-book registry for read-only inspection.
func (s *Supervisor) Book() *book.Registry { return s.book }
