package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tickerbeat/telemetry/schema"
)

// RetentionPolicy bounds how many record files each category keeps on disk.
type RetentionPolicy struct {
	MaxSignals  int
	MaxCycles   int
	MaxErrors   int
	CompressOld bool
}

// DefaultRetention keeps a few hundred recent records per category and
// compresses the older kept files.
func DefaultRetention() RetentionPolicy {
	return RetentionPolicy{MaxSignals: 500, MaxCycles: 200, MaxErrors: 200, CompressOld: true}
}

func (p RetentionPolicy) maxFor(c schema.Category) int {
	switch c {
	case schema.CategorySignals:
		return p.MaxSignals
	case schema.CategoryCycles:
		return p.MaxCycles
	case schema.CategoryErrors:
		return p.MaxErrors
	}
	return 0
}

// PersisterOptions configures a Persister.
type PersisterOptions struct {
	// Compress gzips newly written record files (".json.gz"). The fixed
	// snapshot names (metrics.json, state.json, manifest.json) always stay
	// plain so readers can resolve them without negotiation.
	Compress bool
	// Retention bounds per-category history. Zero values fall back to
	// DefaultRetention.
	Retention RetentionPolicy
	// Guard acquires an advisory flock under the root so a second writer
	// started by mistake is detected. Readers never take the lock.
	Guard bool
	// Tracer emits spans around persist and rotate work. Nil disables.
	Tracer trace.Tracer
	// Logger defaults to the logrus standard logger.
	Logger *log.Logger
}

// Persister owns the write side of the on-disk schema for one process:
// document writes, record filename sequencing, the manifest's monotonic
// clock, and background rotation.
type Persister struct {
	layout    schema.Layout
	compress  bool
	retention RetentionPolicy
	tracer    trace.Tracer
	logger    *log.Logger

	mu        sync.Mutex
	lastStamp string
	seq       int
	lastTouch time.Time
	guard     *flock.Flock
}

// NewPersister creates a Persister rooted at the layout's directory.
func NewPersister(layout schema.Layout, opts PersisterOptions) (*Persister, error) {
	retention := opts.Retention
	if retention == (RetentionPolicy{}) {
		retention = DefaultRetention()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("telemetry")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	p := &Persister{
		layout:    layout,
		compress:  opts.Compress,
		retention: retention,
		tracer:    tracer,
		logger:    logger,
	}

	if opts.Guard {
		if err := p.acquireGuard(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Persister) acquireGuard() error {
	if err := os.MkdirAll(p.layout.Root, 0o755); err != nil {
		return fmt.Errorf("telemetry root: %w", err)
	}
	guard := flock.New(filepath.Join(p.layout.Root, ".writer.lock"))
	locked, err := guard.TryLock()
	if err != nil {
		return fmt.Errorf("writer lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("writer lock: another process is writing to %s", p.layout.Root)
	}
	p.guard = guard
	return nil
}

// Close releases the writer guard if one was taken.
func (p *Persister) Close() error {
	if p.guard == nil {
		return nil
	}
	return p.guard.Unlock()
}

// Layout returns the directory schema this persister writes into.
func (p *Persister) Layout() schema.Layout { return p.layout }

// WriteMetrics replaces metrics.json.
func (p *Persister) WriteMetrics(ctx context.Context, doc *schema.MetricsDocument) error {
	_, span := p.tracer.Start(ctx, "telemetry.write_metrics")
	defer span.End()
	return WriteJSON(p.layout.MetricsPath(), doc, false)
}

// WriteState replaces state.json with bot-defined free-form status fields.
func (p *Persister) WriteState(fields map[string]any) error {
	return WriteJSON(p.layout.StatePath(), fields, false)
}

// WriteManifest replaces manifest.json. The last_updated stamp never moves
// backwards for a single writer, even across wall-clock adjustments.
func (p *Persister) WriteManifest(signals, cycles, errors int) error {
	p.mu.Lock()
	now := time.Now().UTC()
	if now.Before(p.lastTouch) {
		now = p.lastTouch
	}
	p.lastTouch = now
	p.mu.Unlock()

	m := schema.Manifest{
		SignalCount: signals,
		CycleCount:  cycles,
		ErrorCount:  errors,
		LastUpdated: schema.FormatTime(now),
	}
	return WriteJSON(p.layout.ManifestPath(), m, false)
}

// AppendRecords writes one dated file per record into the category's
// directory. A failed record is logged and skipped; the batch continues.
// Returns the number of records written.
func (p *Persister) AppendRecords(ctx context.Context, category schema.Category, records []schema.Record) int {
	if len(records) == 0 {
		return 0
	}
	_, span := p.tracer.Start(ctx, "telemetry.append_records",
		trace.WithAttributes(
			attribute.String("category", string(category)),
			attribute.Int("count", len(records)),
		))
	defer span.End()

	written := 0
	for _, rec := range records {
		path := p.nextRecordPath(category)
		if p.compress {
			path += ".gz"
		}
		if err := WriteJSON(path, rec, p.compress); err != nil {
			p.logger.WithError(err).WithFields(log.Fields{
				"category": category,
				"path":     path,
			}).Warn("telemetry: record write failed")
			continue
		}
		written++
	}
	return written
}

// nextRecordPath hands out dated filenames, bumping the 3-digit sequence
// for records that land within the same second.
func (p *Persister) nextRecordPath(category schema.Category) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	stamp := now.Format(schema.FilenameTimeFormat)
	if stamp == p.lastStamp {
		p.seq++
	} else {
		p.lastStamp = stamp
		p.seq = 0
	}
	return p.layout.RecordPath(category, now, p.seq)
}

// RotateAll applies the retention policy to every record category.
func (p *Persister) RotateAll(ctx context.Context) {
	_, span := p.tracer.Start(ctx, "telemetry.rotate")
	defer span.End()

	for _, category := range schema.Categories {
		dir := p.layout.CategoryDir(category)
		if err := Rotate(dir, category.Pattern(), p.retention.maxFor(category), p.retention.CompressOld); err != nil {
			p.logger.WithError(err).WithField("dir", dir).Warn("telemetry: rotation failed")
		}
	}
}

// Maintain runs rotation on a fixed tick until the context is cancelled.
// Intended for a background goroutine so directory scans stay off the
// trading hot path.
func (p *Persister) Maintain(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.RotateAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}
