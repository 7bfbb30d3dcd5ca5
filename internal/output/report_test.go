package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tickerbeat/telemetry/internal/output"
	"github.com/tickerbeat/telemetry/schema"
)

func sampleMetrics() *schema.MetricsDocument {
	doc := schema.EmptyMetrics()
	doc.Counters["signals.long"] = schema.CounterDoc{Name: "signals.long", Value: 3}
	doc.Counters["signals.short"] = schema.CounterDoc{Name: "signals.short", Value: 9}
	doc.Gauges["portfolio.value"] = schema.GaugeDoc{Name: "portfolio.value", Value: 10250.5}
	doc.Histograms["spread"] = schema.DistributionDoc{
		Name: "spread", Type: "histogram",
		Stats: schema.DistStats{Count: 4, Min: 1, Max: 4, Mean: 2.5, Median: 2.5, Stddev: 1.29},
		P50:   3, P90: 4, P95: 4, P99: 4,
	}
	doc.Timers["cycle.duration"] = schema.DistributionDoc{
		Name: "cycle.duration", Type: "timer",
		Stats: schema.DistStats{Count: 2, Min: 0.2, Max: 0.4, Mean: 0.3, Median: 0.3},
	}
	doc.Timestamp = "2026-03-14T09:00:00Z"
	return doc
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	output.PrintReport(&buf, sampleMetrics(), &schema.Manifest{
		SignalCount: 12, CycleCount: 5, ErrorCount: 1, LastUpdated: "2026-03-14T09:00:00Z",
	})
	got := buf.String()

	for _, want := range []string{
		"Signals:           12",
		"signals.short: 9",
		"portfolio.value: 10250.5",
		"count=4",
		"p99=4",
		"cycle.duration",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}

	// Counters sorted by descending value.
	if strings.Index(got, "signals.short") > strings.Index(got, "signals.long") {
		t.Error("counters should be sorted by descending value")
	}
	// Timers carry no percentile columns.
	timerLine := got[strings.Index(got, "cycle.duration"):]
	if strings.Contains(timerLine[:strings.Index(timerLine, "\n")], "p99") {
		t.Error("timer line should not include percentiles")
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := output.PrintJSONReport(&buf, sampleMetrics()); err != nil {
		t.Fatalf("PrintJSONReport: %v", err)
	}
	var parsed schema.MetricsDocument
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed.Counters["signals.long"].Value != 3 {
		t.Errorf("round-trip counter = %v", parsed.Counters["signals.long"])
	}
}

func TestPrintRecords(t *testing.T) {
	var buf bytes.Buffer
	output.PrintRecords(&buf, []schema.Record{
		{ID: "01A", Timestamp: "2026-03-14T09:00:00Z", Fields: map[string]any{"pair": "BTC-USD"}},
		{ID: "01B", Timestamp: "2026-03-14T09:00:01Z", Fields: map[string]any{"pair": "ETH-USD"}},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "01A") || !strings.Contains(lines[0], "BTC-USD") {
		t.Errorf("line = %q", lines[0])
	}
}
