package reader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tickerbeat/telemetry/reader"
	"github.com/tickerbeat/telemetry/schema"
	"github.com/tickerbeat/telemetry/storage"
)

// writeRecord drops one record file with a controlled mtime.
func writeRecord(t *testing.T, dir, name string, rec schema.Record, mtime time.Time, compress bool) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := storage.WriteJSON(path, rec, compress); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestRecentSignalsNewestFirst(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	dir := layout.CategoryDir(schema.CategorySignals)
	base := time.Now().Add(-time.Hour)

	for i, label := range []string{"oldest", "middle", "newest"} {
		name := "signal_20260314_09000" + string(rune('0'+i)) + "_000.json"
		rec := schema.Record{ID: label, Fields: map[string]any{"label": label}}
		writeRecord(t, dir, name, rec, base.Add(time.Duration(i)*time.Minute), false)
	}

	r := reader.New(layout.Root, reader.Options{})
	got := r.RecentSignals(2)
	if len(got) != 2 {
		t.Fatalf("len = %d, expected 2", len(got))
	}
	if got[0].ID != "newest" || got[1].ID != "middle" {
		t.Errorf("order = [%s %s], expected [newest middle]", got[0].ID, got[1].ID)
	}
}

func TestRecentRecordsDecompressAndSkipCorrupt(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	dir := layout.CategoryDir(schema.CategoryErrors)
	base := time.Now().Add(-time.Hour)

	writeRecord(t, dir, "error_20260314_090000_000.json.gz",
		schema.Record{ID: "zipped", Fields: map[string]any{"what": "feed down"}}, base, true)

	// A torn or garbage file must not poison the batch.
	bad := filepath.Join(dir, "error_20260314_090001_000.json")
	if err := os.WriteFile(bad, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	mt := base.Add(time.Minute)
	if err := os.Chtimes(bad, mt, mt); err != nil {
		t.Fatal(err)
	}

	writeRecord(t, dir, "error_20260314_090002_000.json",
		schema.Record{ID: "plain", Fields: map[string]any{"what": "timeout"}}, base.Add(2*time.Minute), false)

	r := reader.New(layout.Root, reader.Options{})
	got := r.RecentErrors(10)
	if len(got) != 2 {
		t.Fatalf("len = %d, expected 2 (corrupt file skipped)", len(got))
	}
	if got[0].ID != "plain" || got[1].ID != "zipped" {
		t.Errorf("order = [%s %s], expected [plain zipped]", got[0].ID, got[1].ID)
	}
	if got[1].Fields["what"] != "feed down" {
		t.Errorf("gz record fields = %v", got[1].Fields)
	}
}

func TestRecentRecordsIgnoreForeignFiles(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	dir := layout.CategoryDir(schema.CategoryCycles)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeRecord(t, dir, "cycle_20260314_090000_000.json",
		schema.Record{ID: "c1", Fields: map[string]any{}}, time.Now(), false)

	r := reader.New(layout.Root, reader.Options{})
	if got := r.RecentCycles(10); len(got) != 1 || got[0].ID != "c1" {
		t.Errorf("got %v, expected just the cycle record", got)
	}
}

func TestRecentRecordsMissingDir(t *testing.T) {
	r := reader.New(t.TempDir(), reader.Options{})
	if got := r.RecentSignals(5); got != nil {
		t.Errorf("missing directory should read empty, got %v", got)
	}
}

// Full pipeline: collector records -> persist -> rotate -> reader lists.
func TestReaderSeesPersistedRecords(t *testing.T) {
	layout := schema.NewLayout(t.TempDir())
	p, err := storage.NewPersister(layout, storage.PersisterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	records := []schema.Record{
		{ID: "s1", Timestamp: "2026-03-14T09:00:00Z", Fields: map[string]any{"pair": "BTC-USD"}},
		{ID: "s2", Timestamp: "2026-03-14T09:00:01Z", Fields: map[string]any{"pair": "ETH-USD"}},
	}
	if n := p.AppendRecords(context.Background(), schema.CategorySignals, records); n != 2 {
		t.Fatalf("wrote %d", n)
	}
	p.RotateAll(context.Background())

	r := reader.New(layout.Root, reader.Options{})
	got := r.RecentSignals(10)
	if len(got) != 2 {
		t.Fatalf("reader saw %d records, expected 2", len(got))
	}
}
