package reader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tickerbeat/telemetry/schema"
	"github.com/tickerbeat/telemetry/storage"
)

// RecentSignals returns up to limit signal records, newest first by file
// modification time.
func (r *Reader) RecentSignals(limit int) []schema.Record {
	return r.recentRecords(schema.CategorySignals, limit)
}

// RecentCycles returns up to limit cycle records, newest first.
func (r *Reader) RecentCycles(limit int) []schema.Record {
	return r.recentRecords(schema.CategoryCycles, limit)
}

// RecentErrors returns up to limit error records, newest first.
func (r *Reader) RecentErrors(limit int) []schema.Record {
	return r.recentRecords(schema.CategoryErrors, limit)
}

// recentRecords lists a category directory by mtime descending, takes the
// first limit files, and parses each as one record, gunzipping ".gz"
// members transparently. A file that fails to read or parse is logged and
// skipped; the batch continues.
func (r *Reader) recentRecords(category schema.Category, limit int) []schema.Record {
	if limit <= 0 {
		return nil
	}

	dir := r.layout.CategoryDir(category)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.WithError(err).WithField("dir", dir).Warn("telemetry: list failed")
		}
		return nil
	}

	type candidate struct {
		path  string
		mtime time.Time
	}
	var files []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".gz")
		if ok, _ := filepath.Match(category.Pattern(), name); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{path: filepath.Join(dir, entry.Name()), mtime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime.After(files[j].mtime) })
	if len(files) > limit {
		files = files[:limit]
	}

	records := make([]schema.Record, 0, len(files))
	for _, f := range files {
		raw, err := storage.ReadDocument(f.path)
		if err != nil {
			r.logger.WithError(err).WithField("path", f.path).Warn("telemetry: record read failed")
			continue
		}
		var rec schema.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			r.logger.WithError(err).WithField("path", f.path).Warn("telemetry: record parse failed")
			continue
		}
		records = append(records, rec)
	}
	return records
}
