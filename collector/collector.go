package collector

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tickerbeat/telemetry/schema"
	"github.com/tickerbeat/telemetry/storage"
)

// Defaults for ring capacities, the stats window, and the persist debounce.
// Policy values, not contract: override them through Options.
const (
	DefaultWindowSize      = 1000
	DefaultEventCapacity   = 1000
	DefaultSignalCapacity  = 500
	DefaultCycleCapacity   = 100
	DefaultErrorCapacity   = 200
	DefaultPersistInterval = 5 * time.Minute
)

// Options configures a Collector.
type Options struct {
	// Disabled turns every mutating method into a no-op. Reads return
	// zero values.
	Disabled bool
	// WindowSize bounds each histogram/timer to its most recent values.
	WindowSize int
	// Ring capacities per record category.
	EventCapacity  int
	SignalCapacity int
	CycleCapacity  int
	ErrorCapacity  int
	// PersistInterval debounces Persist calls; force bypasses it.
	PersistInterval time.Duration
	// Logger defaults to the logrus standard logger.
	Logger *log.Logger
	// Clock is a test seam for record timestamps.
	Clock func() time.Time
}

func (o *Options) fill() {
	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.EventCapacity <= 0 {
		o.EventCapacity = DefaultEventCapacity
	}
	if o.SignalCapacity <= 0 {
		o.SignalCapacity = DefaultSignalCapacity
	}
	if o.CycleCapacity <= 0 {
		o.CycleCapacity = DefaultCycleCapacity
	}
	if o.ErrorCapacity <= 0 {
		o.ErrorCapacity = DefaultErrorCapacity
	}
	if o.PersistInterval <= 0 {
		o.PersistInterval = DefaultPersistInterval
	}
	if o.Logger == nil {
		o.Logger = log.StandardLogger()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Collector is the in-process metric store for one bot process. Construct
// it once at startup and hand the same instance to every component that
// records telemetry; it is safe for concurrent use from any goroutine.
//
// Every public method takes one process-wide mutex for its read-modify-
// write, so each call is atomic relative to other goroutines. The lock is
// held for in-memory work only; Persist snapshots under the lock and does
// file I/O after releasing it.
type Collector struct {
	mu       sync.Mutex
	disabled bool
	logger   *log.Logger
	clock    func() time.Time

	counters   map[string]*counter
	gauges     map[string]*gauge
	histograms map[string]*window
	timers     map[string]*window
	windowSize int

	events  *ring
	signals *ring
	cycles  *ring
	errors  *ring

	// Records not yet flushed to their category directories.
	pendingSignals []schema.Record
	pendingCycles  []schema.Record
	pendingErrors  []schema.Record

	// Cumulative totals for the manifest; never reset by eviction.
	totalSignals int
	totalCycles  int
	totalErrors  int

	persister *storage.Persister
	limiter   *rate.Limiter
}

// New creates a Collector. The persister may be nil for a purely in-memory
// store (Persist then reports failure without side effects).
func New(persister *storage.Persister, opts Options) *Collector {
	opts.fill()
	return &Collector{
		disabled:   opts.Disabled,
		logger:     opts.Logger,
		clock:      opts.Clock,
		counters:   make(map[string]*counter),
		gauges:     make(map[string]*gauge),
		histograms: make(map[string]*window),
		timers:     make(map[string]*window),
		windowSize: opts.WindowSize,
		events:     newRing(opts.EventCapacity),
		signals:    newRing(opts.SignalCapacity),
		cycles:     newRing(opts.CycleCapacity),
		errors:     newRing(opts.ErrorCapacity),
		persister:  persister,
		limiter:    rate.NewLimiter(rate.Every(opts.PersistInterval), 1),
	}
}

// Increment adds delta to a counter, creating it at zero on first use.
// Counters are monotonic; a non-positive delta is ignored.
func (c *Collector) Increment(name string, delta float64, tags schema.Tags) {
	if c.disabled || delta <= 0 {
		return
	}
	key := schema.Key(name, tags)
	c.mu.Lock()
	defer c.mu.Unlock()
	ctr, ok := c.counters[key]
	if !ok {
		ctr = &counter{name: name, tags: tags}
		c.counters[key] = ctr
	}
	ctr.value += delta
}

// Counter reads a counter's current value; an unknown key reads as 0.
func (c *Collector) Counter(name string, tags schema.Tags) float64 {
	if c.disabled {
		return 0
	}
	key := schema.Key(name, tags)
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[key]; ok {
		return ctr.value
	}
	return 0
}

// SetGauge sets a gauge to value, last writer wins.
func (c *Collector) SetGauge(name string, value float64, tags schema.Tags) {
	if c.disabled {
		return
	}
	key := schema.Key(name, tags)
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.gauges[key]
	if !ok {
		g = &gauge{name: name, tags: tags}
		c.gauges[key] = g
	}
	g.value = value
}

// Gauge reads a gauge's current value; an unknown key reads as 0.
func (c *Collector) Gauge(name string, tags schema.Tags) float64 {
	if c.disabled {
		return 0
	}
	key := schema.Key(name, tags)
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.gauges[key]; ok {
		return g.value
	}
	return 0
}

// RecordValue appends a sample to a histogram's bounded window.
func (c *Collector) RecordValue(name string, value float64, tags schema.Tags) {
	if c.disabled {
		return
	}
	key := schema.Key(name, tags)
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.histograms[key]
	if !ok {
		w = newWindow(name, tags, c.windowSize)
		c.histograms[key] = w
	}
	w.push(value)
}

// HistogramStats summarizes a histogram's retained window. Unknown keys
// return the fixed shape with zero defaults.
func (c *Collector) HistogramStats(name string, tags schema.Tags) schema.DistributionDoc {
	key := schema.Key(name, tags)
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.histograms[key]; ok {
		return w.distribution("histogram")
	}
	return schema.DistributionDoc{Name: name, Type: "histogram", Tags: tags.Map()}
}

// RecordTiming appends a duration sample, stored in seconds.
func (c *Collector) RecordTiming(name string, d time.Duration, tags schema.Tags) {
	if c.disabled {
		return
	}
	key := schema.Key(name, tags)
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.timers[key]
	if !ok {
		w = newWindow(name, tags, c.windowSize)
		c.timers[key] = w
	}
	w.push(d.Seconds())
}

// TimerStats summarizes a timer's retained window, same shape as a
// histogram minus percentiles.
func (c *Collector) TimerStats(name string, tags schema.Tags) schema.DistributionDoc {
	key := schema.Key(name, tags)
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.timers[key]; ok {
		return w.distribution("timer")
	}
	return schema.DistributionDoc{Name: name, Type: "timer", Tags: tags.Map()}
}

// Stopwatch brackets one timed operation started by StartTimer.
type Stopwatch struct {
	c     *Collector
	name  string
	tags  schema.Tags
	start time.Time
}

// StartTimer begins wall-clock bracketing for a timer sample. Call Stop on
// the returned Stopwatch to record the elapsed time.
func (c *Collector) StartTimer(name string, tags schema.Tags) *Stopwatch {
	return &Stopwatch{c: c, name: name, tags: tags, start: c.clock()}
}

// Stop records the elapsed duration and returns it.
func (s *Stopwatch) Stop() time.Duration {
	elapsed := s.c.clock().Sub(s.start)
	s.c.RecordTiming(s.name, elapsed, s.tags)
	return elapsed
}

// record stamps and shallow-copies a payload into a ring.
func (c *Collector) record(fields map[string]any) schema.Record {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return schema.Record{
		ID:        ulid.Make().String(),
		Timestamp: schema.FormatTime(c.clock()),
		Fields:    copied,
	}
}

// RecordEvent appends a structured event record.
func (c *Collector) RecordEvent(fields map[string]any) {
	if c.disabled {
		return
	}
	rec := c.record(fields)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events.push(rec)
}

// RecordSignal appends a trading-signal record, queued for persistence.
func (c *Collector) RecordSignal(fields map[string]any) {
	if c.disabled {
		return
	}
	rec := c.record(fields)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals.push(rec)
	c.pendingSignals = append(c.pendingSignals, rec)
	c.totalSignals++
}

// RecordCycle appends a trading-cycle record, queued for persistence.
func (c *Collector) RecordCycle(fields map[string]any) {
	if c.disabled {
		return
	}
	rec := c.record(fields)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycles.push(rec)
	c.pendingCycles = append(c.pendingCycles, rec)
	c.totalCycles++
}

// RecordError appends an error record, queued for persistence.
func (c *Collector) RecordError(fields map[string]any) {
	if c.disabled {
		return
	}
	rec := c.record(fields)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors.push(rec)
	c.pendingErrors = append(c.pendingErrors, rec)
	c.totalErrors++
}

// RecentEvents returns up to limit events, newest first.
func (c *Collector) RecentEvents(limit int) []schema.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events.recent(limit)
}

// RecentSignals returns up to limit signals, newest first.
func (c *Collector) RecentSignals(limit int) []schema.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signals.recent(limit)
}

// RecentCycles returns up to limit cycles, newest first.
func (c *Collector) RecentCycles(limit int) []schema.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycles.recent(limit)
}

// RecentErrors returns up to limit errors, newest first.
func (c *Collector) RecentErrors(limit int) []schema.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors.recent(limit)
}

// Summary reports sizes of the internal collections in O(1).
func (c *Collector) Summary() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]int{
		"counters":   len(c.counters),
		"gauges":     len(c.gauges),
		"histograms": len(c.histograms),
		"timers":     len(c.timers),
		"events":     c.events.len(),
		"signals":    c.signals.len(),
		"cycles":     c.cycles.len(),
		"errors":     c.errors.len(),
	}
}

// Reset clears all in-memory state. Intended for test isolation only; it
// does not touch files already persisted.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = make(map[string]*counter)
	c.gauges = make(map[string]*gauge)
	c.histograms = make(map[string]*window)
	c.timers = make(map[string]*window)
	c.events.reset()
	c.signals.reset()
	c.cycles.reset()
	c.errors.reset()
	c.pendingSignals = nil
	c.pendingCycles = nil
	c.pendingErrors = nil
	c.totalSignals = 0
	c.totalCycles = 0
	c.totalErrors = 0
}
