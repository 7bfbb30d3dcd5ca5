package reader_test

import (
	"os"
	"testing"
	"time"

	"github.com/tickerbeat/telemetry/reader"
	"github.com/tickerbeat/telemetry/schema"
	"github.com/tickerbeat/telemetry/storage"
)

// bumpMtime moves a file's mtime forward far enough that a cache keyed on
// it must invalidate.
func bumpMtime(t *testing.T, path string) {
	t.Helper()
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
}

func writeMetrics(t *testing.T, layout schema.Layout, doc *schema.MetricsDocument) {
	t.Helper()
	if err := storage.WriteJSON(layout.MetricsPath(), doc, false); err != nil {
		t.Fatal(err)
	}
}

func TestMetricsCacheHitReturnsSameDocument(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	doc := schema.EmptyMetrics()
	doc.Counters["ticks"] = schema.CounterDoc{Name: "ticks", Value: 7}
	writeMetrics(t, layout, doc)

	r := reader.New(layout.Root, reader.Options{})

	first := r.Metrics(false)
	second := r.Metrics(false)
	if first != second {
		t.Error("unchanged file should be served as the identical cached document")
	}
	if first.Counters["ticks"].Value != 7 {
		t.Errorf("counter = %v", first.Counters["ticks"])
	}
}

func TestMetricsCacheInvalidatesOnMtimeChange(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	doc := schema.EmptyMetrics()
	doc.Counters["ticks"] = schema.CounterDoc{Name: "ticks", Value: 1}
	writeMetrics(t, layout, doc)

	r := reader.New(layout.Root, reader.Options{})
	if got := r.Metrics(false).Counters["ticks"].Value; got != 1 {
		t.Fatalf("initial read = %v", got)
	}

	doc.Counters["ticks"] = schema.CounterDoc{Name: "ticks", Value: 2}
	writeMetrics(t, layout, doc)
	bumpMtime(t, layout.MetricsPath())

	if got := r.Metrics(false).Counters["ticks"].Value; got != 2 {
		t.Errorf("after write, read = %v, expected 2", got)
	}
}

func TestForceRefreshBypassesCache(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	writeMetrics(t, layout, schema.EmptyMetrics())

	r := reader.New(layout.Root, reader.Options{})
	first := r.Metrics(false)
	forced := r.Metrics(true)
	if first == forced {
		t.Error("force refresh should reload even with an unchanged mtime")
	}
}

func TestClearCacheForcesReload(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	writeMetrics(t, layout, schema.EmptyMetrics())

	r := reader.New(layout.Root, reader.Options{})
	first := r.Metrics(false)
	r.ClearCache()
	second := r.Metrics(false)
	if first == second {
		t.Error("ClearCache should force the next read to hit disk")
	}
}

func TestMissingFilesReturnEmptyDocuments(t *testing.T) {
	r := reader.New(t.TempDir(), reader.Options{})

	if m := r.Metrics(false); m == nil || len(m.Counters) != 0 {
		t.Errorf("missing metrics should read empty, got %+v", m)
	}
	if s := r.State(false); s == nil || len(s) != 0 {
		t.Errorf("missing state should read empty, got %v", s)
	}
	if m := r.Manifest(false); m == nil || m.SignalCount != 0 {
		t.Errorf("missing manifest should read zeroed, got %+v", m)
	}
	if r.Counter("anything", nil) != 0 || r.Gauge("anything", nil) != 0 {
		t.Error("missing metrics should read zero values")
	}
}

func TestCorruptDocumentReadsEmpty(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.MetricsPath(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := reader.New(layout.Root, reader.Options{})
	if m := r.Metrics(false); len(m.Counters) != 0 {
		t.Errorf("corrupt metrics should read empty, got %+v", m)
	}
}

func TestCounterGaugeLookupSharesKeyDerivation(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	doc := schema.EmptyMetrics()
	key := schema.Key("orders.filled", schema.T("side", "buy", "venue", "paper"))
	doc.Counters[key] = schema.CounterDoc{Name: "orders.filled", Value: 12, Tags: map[string]string{"side": "buy", "venue": "paper"}}
	doc.Counters["signals.long"] = schema.CounterDoc{Name: "signals.long", Value: 3}
	doc.Gauges["portfolio.value"] = schema.GaugeDoc{Name: "portfolio.value", Value: 99.5}
	writeMetrics(t, layout, doc)

	r := reader.New(layout.Root, reader.Options{})

	// Reversed tag order must resolve the same series.
	if got := r.Counter("orders.filled", schema.T("venue", "paper", "side", "buy")); got != 12 {
		t.Errorf("tagged counter = %v, expected 12", got)
	}
	// Dotted names must survive the path lookup.
	if got := r.Counter("signals.long", nil); got != 3 {
		t.Errorf("dotted counter = %v, expected 3", got)
	}
	if got := r.Gauge("portfolio.value", nil); got != 99.5 {
		t.Errorf("gauge = %v, expected 99.5", got)
	}
	if got := r.Counter("unknown", nil); got != 0 {
		t.Errorf("unknown counter = %v, expected 0", got)
	}
}

func TestHasUpdates(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	r := reader.New(layout.Root, reader.Options{})

	if r.HasUpdates() {
		t.Error("no manifest on disk: HasUpdates should be false")
	}

	if err := storage.WriteJSON(layout.ManifestPath(), schema.Manifest{SignalCount: 1}, false); err != nil {
		t.Fatal(err)
	}
	if !r.HasUpdates() {
		t.Error("unread manifest should report updates")
	}

	r.Manifest(false)
	if r.HasUpdates() {
		t.Error("freshly read manifest should report no updates")
	}

	bumpMtime(t, layout.ManifestPath())
	if !r.HasUpdates() {
		t.Error("touched manifest should report updates")
	}
}

func TestEndToEndWriterReader(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	if err := storage.WriteJSON(layout.StatePath(), map[string]any{"status": "running"}, false); err != nil {
		t.Fatal(err)
	}

	r := reader.New(layout.Root, reader.Options{})
	if got := r.State(false)["status"]; got != "running" {
		t.Errorf("state = %v", got)
	}

	// state.json replaced atomically; reader picks up the new content once
	// the mtime moves.
	if err := storage.WriteJSON(layout.StatePath(), map[string]any{"status": "halted"}, false); err != nil {
		t.Fatal(err)
	}
	bumpMtime(t, layout.StatePath())
	if got := r.State(false)["status"]; got != "halted" {
		t.Errorf("state after rewrite = %v", got)
	}
}
