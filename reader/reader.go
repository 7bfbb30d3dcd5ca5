// Package reader implements the monitoring-process side of the telemetry
// schema: a read-only, cache-backed view over the files one bot process
// writes. It shares no locks with the writer; consistency rests on the
// writer's atomic renames plus tolerance for reading the last completed
// snapshot. Intended usage is a poll loop, typically once per second:
//
//	r := reader.New(cfg.DataDir, reader.Options{})
//	for range ticker.C {
//		if !r.HasUpdates() {
//			continue
//		}
//		metrics := r.Metrics(false)
//		// render ...
//	}
package reader

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/tickerbeat/telemetry/schema"
	"github.com/tickerbeat/telemetry/storage"
)

// Options configures a Reader.
type Options struct {
	// Logger defaults to the logrus standard logger.
	Logger *log.Logger
}

// loadStatus distinguishes the three outcomes of a file load.
type loadStatus int

const (
	loadOK loadStatus = iota
	loadAbsent
	loadFailed
)

// entry is one mtime-keyed cache slot. raw holds the serialized bytes for
// gjson lookups; doc holds the parsed form handed back to callers.
type entry struct {
	mtime time.Time
	raw   []byte
	doc   any
}

// Reader is a read-only consumer of a telemetry directory. Safe for use
// from multiple goroutines in the monitoring process.
type Reader struct {
	layout schema.Layout
	logger *log.Logger

	mu            sync.Mutex
	cache         map[string]*entry
	manifestMtime time.Time
}

// New creates a Reader over the given telemetry root.
func New(root string, opts Options) *Reader {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Reader{
		layout: schema.NewLayout(root),
		logger: logger,
		cache:  make(map[string]*entry),
	}
}

// Layout exposes the directory schema this reader observes.
func (r *Reader) Layout() schema.Layout { return r.layout }

// load returns the cached entry for path, hitting the disk only when the
// file's mtime changed or force is set. Caller holds r.mu. parse converts
// fresh bytes into the cached document form.
func (r *Reader) load(path string, force bool, parse func([]byte) (any, error)) (*entry, loadStatus) {
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.WithError(err).WithField("path", path).Warn("telemetry: stat failed")
		}
		delete(r.cache, path)
		return nil, loadAbsent
	}

	if cached, ok := r.cache[path]; ok && !force && cached.mtime.Equal(info.ModTime()) {
		return cached, loadOK
	}

	raw, err := storage.ReadDocument(path)
	if err != nil {
		r.logger.WithError(err).WithField("path", path).Warn("telemetry: read failed")
		return nil, loadFailed
	}
	doc, err := parse(raw)
	if err != nil {
		r.logger.WithError(err).WithField("path", path).Warn("telemetry: parse failed")
		return nil, loadFailed
	}

	fresh := &entry{mtime: info.ModTime(), raw: raw, doc: doc}
	r.cache[path] = fresh
	return fresh, loadOK
}

// Metrics returns the current metrics document. Unchanged files are served
// from the cache with a single stat and zero reads; a missing or unreadable
// file yields an empty document, never an error.
func (r *Reader) Metrics(forceRefresh bool) *schema.MetricsDocument {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, status := r.load(r.layout.MetricsPath(), forceRefresh, func(raw []byte) (any, error) {
		doc := schema.EmptyMetrics()
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, err
		}
		return doc, nil
	})
	if status != loadOK {
		return schema.EmptyMetrics()
	}
	return e.doc.(*schema.MetricsDocument)
}

// State returns the bot's free-form status document, empty when absent.
func (r *Reader) State(forceRefresh bool) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, status := r.load(r.layout.StatePath(), forceRefresh, func(raw []byte) (any, error) {
		doc := map[string]any{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		return doc, nil
	})
	if status != loadOK {
		return map[string]any{}
	}
	return e.doc.(map[string]any)
}

// Manifest returns the writer's aggregate counts, zeroed when absent.
func (r *Reader) Manifest(forceRefresh bool) *schema.Manifest {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.layout.ManifestPath()
	e, status := r.load(path, forceRefresh, func(raw []byte) (any, error) {
		var m schema.Manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return &m, nil
	})
	if status != loadOK {
		return &schema.Manifest{}
	}
	r.manifestMtime = e.mtime
	return e.doc.(*schema.Manifest)
}

// HasUpdates reports whether the manifest changed since it was last read,
// comparing mtimes only: no bytes are read or parsed. A missing manifest
// reports false; a never-read manifest reports true.
func (r *Reader) HasUpdates() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := os.Stat(r.layout.ManifestPath())
	if err != nil {
		return false
	}
	return !info.ModTime().Equal(r.manifestMtime)
}

// Counter resolves a counter's persisted value using the same composite
// key derivation the collector applies on write. Unknown keys read as 0.
func (r *Reader) Counter(name string, tags schema.Tags) float64 {
	return r.metricValue("counters", name, tags)
}

// Gauge resolves a gauge's persisted value; unknown keys read as 0.
func (r *Reader) Gauge(name string, tags schema.Tags) float64 {
	return r.metricValue("gauges", name, tags)
}

func (r *Reader) metricValue(section, name string, tags schema.Tags) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, status := r.load(r.layout.MetricsPath(), false, func(raw []byte) (any, error) {
		doc := schema.EmptyMetrics()
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, err
		}
		return doc, nil
	})
	if status != loadOK {
		return 0
	}

	key := schema.Key(name, tags)
	return gjson.GetBytes(e.raw, section+"."+escapePath(key)+".value").Float()
}

// escapePath escapes gjson path metacharacters in a composite key, which
// routinely contains dots ("signals.long").
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ClearCache drops every cached document; the next read of any kind hits
// the disk.
func (r *Reader) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*entry)
	r.manifestMtime = time.Time{}
}
