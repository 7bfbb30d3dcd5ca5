package collector

import (
	"context"

	"github.com/tickerbeat/telemetry/schema"
	"github.com/tickerbeat/telemetry/storage"
)

// snapshot is everything Persist needs after releasing the mutex.
type snapshot struct {
	metrics      *schema.MetricsDocument
	signals      []schema.Record
	cycles       []schema.Record
	errors       []schema.Record
	totalSignals int
	totalCycles  int
	totalErrors  int
}

// Persist flushes the store to disk: metrics.json, one dated file per
// signal/cycle/error recorded since the previous flush, and the manifest.
// Calls are debounced to the configured interval unless force is set.
//
// Returns true when a flush ran and every document landed. Failures are
// logged and reported as false, never raised into the caller; the next
// scheduled persist is the retry.
func (c *Collector) Persist(ctx context.Context, force bool) bool {
	if c.disabled || c.persister == nil {
		return false
	}
	if !force && !c.limiter.Allow() {
		return false
	}

	c.mu.Lock()
	snap := snapshot{
		metrics:      c.snapshotMetricsLocked(),
		signals:      c.pendingSignals,
		cycles:       c.pendingCycles,
		errors:       c.pendingErrors,
		totalSignals: c.totalSignals,
		totalCycles:  c.totalCycles,
		totalErrors:  c.totalErrors,
	}
	c.pendingSignals = nil
	c.pendingCycles = nil
	c.pendingErrors = nil
	c.mu.Unlock()

	// All I/O happens outside the lock so disk latency never stalls the
	// trading loop.
	ok := true
	if err := c.persister.WriteMetrics(ctx, snap.metrics); err != nil {
		c.logger.WithError(err).Warn("telemetry: metrics persist failed")
		ok = false
	}
	written := c.persister.AppendRecords(ctx, schema.CategorySignals, snap.signals)
	written += c.persister.AppendRecords(ctx, schema.CategoryCycles, snap.cycles)
	written += c.persister.AppendRecords(ctx, schema.CategoryErrors, snap.errors)
	if written < len(snap.signals)+len(snap.cycles)+len(snap.errors) {
		ok = false
	}
	if err := c.persister.WriteManifest(snap.totalSignals, snap.totalCycles, snap.totalErrors); err != nil {
		c.logger.WithError(err).Warn("telemetry: manifest persist failed")
		ok = false
	}
	return ok
}

// WriteState replaces state.json with bot-defined status fields. The
// contents are opaque to the telemetry layer.
func (c *Collector) WriteState(fields map[string]any) bool {
	if c.disabled || c.persister == nil {
		return false
	}
	if err := c.persister.WriteState(fields); err != nil {
		c.logger.WithError(err).Warn("telemetry: state write failed")
		return false
	}
	return true
}

// ExportJSON dumps the full store, including every retained ring-buffer
// record, to a single document at path. Returns false on failure; never
// panics into the caller.
func (c *Collector) ExportJSON(path string) bool {
	if c.disabled {
		return false
	}

	c.mu.Lock()
	doc := map[string]any{
		"metrics":     c.snapshotMetricsLocked(),
		"events":      c.events.oldestFirst(),
		"signals":     c.signals.oldestFirst(),
		"cycles":      c.cycles.oldestFirst(),
		"errors":      c.errors.oldestFirst(),
		"exported_at": schema.FormatTime(c.clock()),
	}
	c.mu.Unlock()

	if err := storage.WriteJSON(path, doc, false); err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("telemetry: export failed")
		return false
	}
	return true
}

// snapshotMetricsLocked builds the metrics document. Caller holds c.mu.
func (c *Collector) snapshotMetricsLocked() *schema.MetricsDocument {
	doc := schema.EmptyMetrics()
	for key, ctr := range c.counters {
		doc.Counters[key] = schema.CounterDoc{Name: ctr.name, Value: ctr.value, Tags: ctr.tags.Map()}
	}
	for key, g := range c.gauges {
		doc.Gauges[key] = schema.GaugeDoc{Name: g.name, Value: g.value, Tags: g.tags.Map()}
	}
	for key, w := range c.histograms {
		doc.Histograms[key] = w.distribution("histogram")
	}
	for key, w := range c.timers {
		doc.Timers[key] = w.distribution("timer")
	}
	doc.Timestamp = schema.FormatTime(c.clock())
	return doc
}
