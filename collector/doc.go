// Package collector implements the in-process metric store for the bot
// process: counters, gauges, bounded histograms and timers, plus ring
// buffers of structured events, signals, cycles, and errors.
//
// # Lifetime
//
// Construct one [Collector] at startup and pass the handle to every
// component that records telemetry:
//
//	persister, err := storage.NewPersister(schema.NewLayout(cfg.DataDir), storage.PersisterOptions{})
//	if err != nil { ... }
//	tele := collector.New(persister, collector.Options{})
//
//	tele.Increment("signals.long", 1, schema.T("pair", "BTC-USD"))
//	tele.SetGauge("portfolio.value", 10231.44, nil)
//
//	sw := tele.StartTimer("cycle.duration", nil)
//	// ... one trading cycle ...
//	sw.Stop()
//
// # Addressing
//
// Metrics are addressed by name plus a canonical sorted tag string (see
// [schema.Key]); the order tags are passed in never affects the series a
// sample lands in.
//
// # Persistence
//
// [Collector.Persist] snapshots the store under its mutex, then writes
// metrics.json, new record files, and the manifest with the lock released.
// Calls are debounced (default 5 minutes) unless forced. A separate
// monitoring process consumes the files through the reader package; the
// two sides share nothing but the on-disk schema.
package collector
