// Package schema defines the on-disk contract shared by the telemetry
// writer (the bot process) and any readers (dashboards, CLIs). The fixed
// directory layout, the composite metric key, the record filename format,
// and the serialized document shapes are the only coupling between the two
// processes; there is no handshake or version negotiation.
package schema

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Category identifies one of the per-record subdirectories.
type Category string

const (
	CategorySignals Category = "signals"
	CategoryCycles  Category = "cycles"
	CategoryErrors  Category = "errors"
)

// Categories lists every per-record subdirectory in a stable order.
var Categories = []Category{CategorySignals, CategoryCycles, CategoryErrors}

// Prefix returns the filename prefix used for records in this category.
func (c Category) Prefix() string {
	switch c {
	case CategorySignals:
		return "signal"
	case CategoryCycles:
		return "cycle"
	case CategoryErrors:
		return "error"
	}
	return string(c)
}

// Pattern returns the glob pattern matching uncompressed record files in
// this category. Compressed variants carry a trailing ".gz".
func (c Category) Pattern() string {
	return c.Prefix() + "_*.json"
}

// Layout resolves paths under a telemetry root directory.
type Layout struct {
	Root string
}

// DefaultRoot is the directory used when no root is configured.
const DefaultRoot = "telemetry_data"

func NewLayout(root string) Layout {
	if root == "" {
		root = DefaultRoot
	}
	return Layout{Root: root}
}

func (l Layout) MetricsPath() string  { return filepath.Join(l.Root, "metrics.json") }
func (l Layout) StatePath() string    { return filepath.Join(l.Root, "state.json") }
func (l Layout) ManifestPath() string { return filepath.Join(l.Root, "manifest.json") }

// CategoryDir returns the subdirectory holding one file per record.
func (l Layout) CategoryDir(c Category) string {
	return filepath.Join(l.Root, string(c))
}

// RecordPath builds the dated filename for a record. The sequence number
// disambiguates records written within the same second.
func (l Layout) RecordPath(c Category, ts time.Time, seq int) string {
	name := fmt.Sprintf("%s_%s_%03d.json", c.Prefix(), ts.UTC().Format(FilenameTimeFormat), seq)
	return filepath.Join(l.CategoryDir(c), name)
}

// FilenameTimeFormat is the UTC-to-the-second stamp embedded in record
// filenames.
const FilenameTimeFormat = "20060102_150405"

// ParseRecordName splits a record filename (with or without a ".gz"
// suffix) into its timestamp and sequence number.
func ParseRecordName(name string) (ts time.Time, seq int, err error) {
	base := strings.TrimSuffix(filepath.Base(name), ".gz")
	base = strings.TrimSuffix(base, ".json")
	parts := strings.Split(base, "_")
	if len(parts) != 4 {
		return time.Time{}, 0, fmt.Errorf("malformed record name %q", name)
	}
	ts, err = time.Parse(FilenameTimeFormat, parts[1]+"_"+parts[2])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed record name %q: %w", name, err)
	}
	if _, err := fmt.Sscanf(parts[3], "%d", &seq); err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed record name %q: %w", name, err)
	}
	return ts.UTC(), seq, nil
}

// Tag is one metric dimension. Tags travel as an explicit ordered slice so
// call sites never depend on map iteration order.
type Tag struct {
	Key   string
	Value string
}

// Tags is an ordered set of metric dimensions.
type Tags []Tag

// T is a convenience constructor: T("side", "long", "venue", "paper").
// Odd trailing keys are dropped.
func T(pairs ...string) Tags {
	tags := make(Tags, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		tags = append(tags, Tag{Key: pairs[i], Value: pairs[i+1]})
	}
	return tags
}

// Map converts tags to a plain map for serialization.
func (t Tags) Map() map[string]string {
	if len(t) == 0 {
		return nil
	}
	m := make(map[string]string, len(t))
	for _, tag := range t {
		m[tag.Key] = tag.Value
	}
	return m
}

// Key derives the canonical composite key for a metric: the bare name, or
// "name:k1=v1,k2=v2" with tag keys sorted lexicographically. Both the
// collector and the reader address metrics through this single function so
// call-site tag ordering never affects the derived key.
func Key(name string, tags Tags) string {
	if len(tags) == 0 {
		return name
	}
	sorted := make(Tags, len(tags))
	copy(sorted, tags)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(':')
	for i, tag := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(tag.Key)
		b.WriteByte('=')
		b.WriteString(tag.Value)
	}
	return b.String()
}

// TimeFormat is the ISO-8601 UTC layout used for every serialized
// timestamp.
const TimeFormat = time.RFC3339

// FormatTime renders a timestamp in the canonical serialized form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}
