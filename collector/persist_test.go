package collector_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tickerbeat/telemetry/collector"
	"github.com/tickerbeat/telemetry/schema"
	"github.com/tickerbeat/telemetry/storage"
)

func newPersistedCollector(t *testing.T, opts collector.Options) (*collector.Collector, schema.Layout) {
	t.Helper()
	layout := schema.NewLayout(t.TempDir())
	p, err := storage.NewPersister(layout, storage.PersisterOptions{})
	if err != nil {
		t.Fatalf("NewPersister: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return collector.New(p, opts), layout
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := storage.ReadDocument(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
}

func TestPersistWritesSchema(t *testing.T) {
	c, layout := newPersistedCollector(t, collector.Options{})

	c.Increment("signals.long", 3, nil)
	c.SetGauge("portfolio.value", 150.0, nil)
	c.RecordValue("spread", 1.5, nil)
	c.RecordSignal(map[string]any{"pair": "BTC-USD", "side": "long"})
	c.RecordCycle(map[string]any{"n": 1})
	c.RecordError(map[string]any{"what": "feed timeout"})

	if !c.Persist(context.Background(), true) {
		t.Fatal("forced persist should succeed")
	}

	var metrics schema.MetricsDocument
	readJSON(t, layout.MetricsPath(), &metrics)
	if metrics.Counters["signals.long"].Value != 3 {
		t.Errorf("persisted counter = %v", metrics.Counters["signals.long"])
	}
	if metrics.Gauges["portfolio.value"].Value != 150.0 {
		t.Errorf("persisted gauge = %v", metrics.Gauges["portfolio.value"])
	}
	if metrics.Histograms["spread"].Stats.Count != 1 {
		t.Errorf("persisted histogram = %+v", metrics.Histograms["spread"])
	}
	if metrics.Timestamp == "" {
		t.Error("metrics document missing timestamp")
	}

	var manifest schema.Manifest
	readJSON(t, layout.ManifestPath(), &manifest)
	if manifest.SignalCount != 1 || manifest.CycleCount != 1 || manifest.ErrorCount != 1 {
		t.Errorf("manifest = %+v", manifest)
	}

	for _, category := range schema.Categories {
		entries, err := os.ReadDir(layout.CategoryDir(category))
		if err != nil {
			t.Fatalf("%s dir: %v", category, err)
		}
		if len(entries) != 1 {
			t.Errorf("%s: expected 1 record file, got %d", category, len(entries))
		}
	}
}

func TestPersistDebounce(t *testing.T) {
	c, layout := newPersistedCollector(t, collector.Options{PersistInterval: time.Hour})

	c.Increment("a", 1, nil)
	if !c.Persist(context.Background(), false) {
		t.Fatal("first persist should pass the debounce")
	}
	c.Increment("a", 1, nil)
	if c.Persist(context.Background(), false) {
		t.Error("second persist within the interval should be suppressed")
	}
	if !c.Persist(context.Background(), true) {
		t.Error("forced persist should bypass the debounce")
	}

	var metrics schema.MetricsDocument
	readJSON(t, layout.MetricsPath(), &metrics)
	if metrics.Counters["a"].Value != 2 {
		t.Errorf("forced persist wrote stale counter: %v", metrics.Counters["a"])
	}
}

func TestPersistFlushesRecordsOnce(t *testing.T) {
	c, layout := newPersistedCollector(t, collector.Options{})

	c.RecordSignal(map[string]any{"n": 1})
	c.Persist(context.Background(), true)
	c.RecordSignal(map[string]any{"n": 2})
	c.Persist(context.Background(), true)
	c.Persist(context.Background(), true) // nothing new

	entries, err := os.ReadDir(layout.CategoryDir(schema.CategorySignals))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected exactly 2 signal files, got %d", len(entries))
	}

	var manifest schema.Manifest
	readJSON(t, layout.ManifestPath(), &manifest)
	if manifest.SignalCount != 2 {
		t.Errorf("manifest signal_count = %d, expected cumulative 2", manifest.SignalCount)
	}
}

func TestWriteState(t *testing.T) {
	c, layout := newPersistedCollector(t, collector.Options{})

	if !c.WriteState(map[string]any{"status": "running", "pair": "BTC-USD"}) {
		t.Fatal("WriteState failed")
	}

	var state map[string]any
	readJSON(t, layout.StatePath(), &state)
	if state["status"] != "running" {
		t.Errorf("state = %v", state)
	}
}

func TestExportReload(t *testing.T) {
	c, _ := newPersistedCollector(t, collector.Options{})

	c.Increment("signals.long", 3, nil)
	c.RecordEvent(map[string]any{"label": "tick"})
	c.RecordSignal(map[string]any{"pair": "BTC-USD"})

	path := filepath.Join(t.TempDir(), "export.json")
	if !c.ExportJSON(path) {
		t.Fatal("export failed")
	}

	var dump struct {
		Metrics schema.MetricsDocument `json:"metrics"`
		Events  []schema.Record        `json:"events"`
		Signals []schema.Record        `json:"signals"`
	}
	readJSON(t, path, &dump)

	if dump.Metrics.Counters["signals.long"].Value != 3 {
		t.Errorf("reloaded counter = %v, expected 3", dump.Metrics.Counters["signals.long"].Value)
	}
	if len(dump.Events) != 1 || len(dump.Signals) != 1 {
		t.Errorf("reloaded records: %d events, %d signals", len(dump.Events), len(dump.Signals))
	}
}

func TestExportFailureReturnsFalse(t *testing.T) {
	c := collector.New(nil, collector.Options{})
	c.Increment("a", 1, nil)

	if c.ExportJSON(filepath.Join(string([]byte{0}), "bad", "path.json")) {
		t.Error("export to an invalid path should report false")
	}
}

func TestPersistWithoutPersister(t *testing.T) {
	c := collector.New(nil, collector.Options{})
	c.Increment("a", 1, nil)
	if c.Persist(context.Background(), true) {
		t.Error("persist without a persister should report false")
	}
}
