package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yanun0323/logs"

	"marketmaker/internal/boundary"
	"marketmaker/internal/feed"
	"marketmaker/internal/ops"
	"marketmaker/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config (registry, risk limits, maker params, features)")
	runFor := flag.Duration("run-for", 0, "Stop automatically after this duration (0=run until signaled)")
	ingress := flag.String("ingress", "synthetic", "Market-data ingress: synthetic|ws")
	wsURL := flag.String("ws-url", "", "WebSocket URL when -ingress=ws")
	basePrice := flag.Float64("synthetic-base-price", 100, "Base price for the synthetic feed")
	baseSize := flag.Float64("synthetic-base-size", 10, "Base size for the synthetic feed")
	syntheticSpread := flag.Float64("synthetic-spread", 0.5, "Spread for the synthetic feed")
	syntheticInterval := flag.Duration("synthetic-interval", 50*time.Millisecond, "Tick interval for the synthetic feed")
	pyroscopeAddr := flag.String("pyroscope-address", "http://localhost:4040", "Pyroscope server address")
	flag.Parse()

	if *configPath == "" {
		logs.Errorf("marketmaker: -config is required")
		os.Exit(2)
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("marketmaker: config load failed, err: %s", err.Error())
		os.Exit(1)
	}

	symbols := make([]string, 0, loaded.Registry.SymbolCount())
	for i := 0; i < loaded.Registry.SymbolCount(); i++ {
		sym, ok := loaded.Registry.SymbolAt(i)
		if ok {
			symbols = append(symbols, sym.Name)
		}
	}

	if loaded.Features.EnableProfiling {
		stop, err := supervisor.StartProfiling("marketmaker", *pyroscopeAddr, "local")
		if err != nil {
			logs.Errorf("marketmaker: profiler start failed, err: %s", err.Error())
		} else {
			defer stop()
		}
	}

	factory := buildFeedFactory(*ingress, *wsURL, symbols, *basePrice, *baseSize, *syntheticSpread, *syntheticInterval)

	sup := supervisor.New(supervisor.DefaultConfig(), loaded, boundary.NoopSink{}, factory)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *runFor)
		defer cancel()
	}

	if err := sup.Start(ctx); err != nil {
		logs.Errorf("marketmaker: start failed, err: %s", err.Error())
		os.Exit(1)
	}

	<-ctx.Done()
	sup.Stop()

	snap := sup.Metrics().Snapshot()
	logs.Infof("marketmaker: exiting, event_counts: %+v, risk_reasons: %+v, queue_drops: %d, queue_closed: %d",
		snap.EventCounts, snap.RiskReasonCounts, snap.QueueDrops, snap.QueueClosed)
}

func buildFeedFactory(ingress, wsURL string, symbols []string, basePrice, baseSize, spread float64, interval time.Duration) supervisor.FeedFactory {
	switch ingress {
	case "ws":
		return func(sink feed.QuoteSink) feed.Runnable {
			return feed.NewWSSource(context.Background(), wsURL, symbols, sink)
		}
	default:
		return func(sink feed.QuoteSink) feed.Runnable {
			f, err := feed.NewSynthetic(symbols, basePrice, baseSize, spread, interval, sink)
			if err != nil {
				logs.Errorf("marketmaker: synthetic feed init failed, err: %s", err.Error())
				return noopRunnable{}
			}
			return f
		}
	}
}

type noopRunnable struct{}

func (noopRunnable) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
