package storage_test

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/tickerbeat/telemetry/schema"
	"github.com/tickerbeat/telemetry/storage"
)

func newTestPersister(t *testing.T, opts storage.PersisterOptions) *storage.Persister {
	t.Helper()
	p, err := storage.NewPersister(schema.NewLayout(t.TempDir()), opts)
	if err != nil {
		t.Fatalf("NewPersister: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestAppendRecordsSequencesFilenames(t *testing.T) {
	p := newTestPersister(t, storage.PersisterOptions{})

	records := make([]schema.Record, 5)
	for i := range records {
		records[i] = schema.Record{
			ID:        "r",
			Timestamp: "2026-03-14T09:00:00Z",
			Fields:    map[string]any{"i": i},
		}
	}
	if n := p.AppendRecords(context.Background(), schema.CategorySignals, records); n != 5 {
		t.Fatalf("wrote %d records, expected 5", n)
	}

	dir := p.Layout().CategoryDir(schema.CategorySignals)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 files, got %d", len(entries))
	}
	seen := map[string]bool{}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "signal_") || !strings.HasSuffix(e.Name(), ".json") {
			t.Errorf("unexpected filename %q", e.Name())
		}
		if _, _, err := schema.ParseRecordName(e.Name()); err != nil {
			t.Errorf("unparseable filename %q: %v", e.Name(), err)
		}
		if seen[e.Name()] {
			t.Errorf("duplicate filename %q", e.Name())
		}
		seen[e.Name()] = true
	}
}

func TestManifestMonotonic(t *testing.T) {
	p := newTestPersister(t, storage.PersisterOptions{})

	var prev string
	for i := 0; i < 3; i++ {
		if err := p.WriteManifest(i, i, i); err != nil {
			t.Fatalf("WriteManifest: %v", err)
		}
		data, err := storage.ReadDocument(p.Layout().ManifestPath())
		if err != nil {
			t.Fatal(err)
		}
		var m schema.Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatal(err)
		}
		if m.SignalCount != i {
			t.Errorf("signal_count = %d, expected %d", m.SignalCount, i)
		}
		if prev != "" && m.LastUpdated < prev {
			t.Errorf("last_updated went backwards: %s after %s", m.LastUpdated, prev)
		}
		prev = m.LastUpdated
	}
}

func TestCompressedRecordsReadBack(t *testing.T) {
	p := newTestPersister(t, storage.PersisterOptions{Compress: true})

	rec := schema.Record{ID: "01A", Timestamp: "2026-03-14T09:00:00Z", Fields: map[string]any{"pair": "BTC-USD"}}
	if n := p.AppendRecords(context.Background(), schema.CategoryErrors, []schema.Record{rec}); n != 1 {
		t.Fatal("record not written")
	}

	dir := p.Layout().CategoryDir(schema.CategoryErrors)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".json.gz") {
		t.Fatalf("expected one .json.gz file, got %v", entries)
	}

	data, err := storage.ReadDocument(dir + "/" + entries[0].Name())
	if err != nil {
		t.Fatal(err)
	}
	var got schema.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Fields["pair"] != "BTC-USD" {
		t.Errorf("round-trip fields = %v", got.Fields)
	}
}

func TestWriterGuardRejectsSecondWriter(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())

	first, err := storage.NewPersister(layout, storage.PersisterOptions{Guard: true})
	if err != nil {
		t.Fatalf("first persister: %v", err)
	}
	defer first.Close()

	if _, err := storage.NewPersister(layout, storage.PersisterOptions{Guard: true}); err == nil {
		t.Error("second guarded persister should fail while the lock is held")
	}
}
