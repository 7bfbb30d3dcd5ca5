// botsim is a stand-in trading bot used to exercise the telemetry write
// path during development. It emits fake ticks, signals, cycles, and
// errors so that botmon and telemetryctl have live data to consume.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/tickerbeat/telemetry/collector"
	"github.com/tickerbeat/telemetry/config"
	"github.com/tickerbeat/telemetry/schema"
	"github.com/tickerbeat/telemetry/storage"
	"github.com/tickerbeat/telemetry/tracing"
)

var pairs = []string{"BTC-USD", "ETH-USD", "SOL-USD"}

func main() {
	defaults := config.Default()

	// Flag names are viper keys so changed flags override the file and env.
	fs := pflag.NewFlagSet("botsim", pflag.ExitOnError)
	configPath := fs.String("config", "", "Optional telemetry config file")
	fs.String("data_dir", defaults.DataDir, "Telemetry directory")
	fs.Bool("compress", defaults.Compress, "Gzip persisted documents")
	fs.Duration("persist_interval", defaults.PersistInterval, "Snapshot debounce interval")
	tickInterval := fs.Duration("tick", 250*time.Millisecond, "Simulated tick interval")
	fs.Parse(os.Args[1:])

	cfg, err := config.LoadWithFlags(*configPath, fs)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	defer provider.Shutdown(context.Background())

	persister, err := storage.NewPersister(schema.NewLayout(cfg.DataDir), storage.PersisterOptions{
		Compress: cfg.Compress,
		Retention: storage.RetentionPolicy{
			MaxSignals:  cfg.Retention.MaxSignals,
			MaxCycles:   cfg.Retention.MaxCycles,
			MaxErrors:   cfg.Retention.MaxErrors,
			CompressOld: cfg.Retention.CompressOld,
		},
		Guard:  cfg.GuardWriter,
		Tracer: provider.Tracer(),
	})
	if err != nil {
		log.Fatalf("open telemetry directory: %v", err)
	}
	defer persister.Close()

	coll := collector.New(persister, collector.Options{
		Disabled:        !cfg.Enabled,
		WindowSize:      cfg.Buffers.Window,
		EventCapacity:   cfg.Buffers.Events,
		SignalCapacity:  cfg.Buffers.Signals,
		CycleCapacity:   cfg.Buffers.Cycles,
		ErrorCapacity:   cfg.Buffers.Errors,
		PersistInterval: cfg.PersistInterval,
	})

	go persister.Maintain(ctx, cfg.RotationInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	log.WithField("data_dir", cfg.DataDir).Info("botsim started")

	ticker := time.NewTicker(*tickInterval)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-sigCh:
			coll.WriteState(map[string]any{"status": "stopped", "cycles": cycle})
			coll.Persist(ctx, true)
			log.Info("botsim stopped")
			return
		case <-ticker.C:
			cycle++
			simulateCycle(coll, cycle)
			coll.Persist(ctx, false)
		}
	}
}

func simulateCycle(coll *collector.Collector, cycle int) {
	sw := coll.StartTimer("cycle.duration", nil)

	pair := pairs[rand.Intn(len(pairs))]
	tags := schema.T("pair", pair)

	coll.Increment("ticks.processed", 1, nil)
	coll.RecordValue("tick.spread_bps", rand.Float64()*12, tags)
	coll.SetGauge("position.size", rand.Float64()*2-1, tags)
	coll.SetGauge("equity.usd", 100_000+rand.Float64()*5_000, nil)

	if rand.Float64() < 0.15 {
		side := "long"
		if rand.Intn(2) == 0 {
			side = "short"
		}
		coll.Increment("signals.generated", 1, schema.T("side", side))
		coll.RecordSignal(map[string]any{
			"pair":     pair,
			"side":     side,
			"strength": rand.Float64(),
		})
	}

	if rand.Float64() < 0.02 {
		coll.Increment("errors.feed", 1, nil)
		coll.RecordError(map[string]any{
			"pair":   pair,
			"reason": "stale tick",
		})
	}

	// Cycles run fast; pad a little so the timer window is not all zeros.
	time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
	elapsed := sw.Stop()

	coll.RecordCycle(map[string]any{
		"cycle":      cycle,
		"pair":       pair,
		"elapsed_ms": elapsed.Seconds() * 1000,
	})

	coll.WriteState(map[string]any{
		"status": "running",
		"cycles": cycle,
		"pair":   pair,
	})
}
