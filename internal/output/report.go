package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/tickerbeat/telemetry/schema"
)

// PrintReport outputs a human-readable summary of a telemetry directory.
func PrintReport(w io.Writer, metrics *schema.MetricsDocument, manifest *schema.Manifest) {
	fmt.Fprintln(w, "\n--- Telemetry Report ---")
	fmt.Fprintf(w, "Signals:           %d\n", manifest.SignalCount)
	fmt.Fprintf(w, "Cycles:            %d\n", manifest.CycleCount)
	fmt.Fprintf(w, "Errors:            %d\n", manifest.ErrorCount)
	if manifest.LastUpdated != "" {
		fmt.Fprintf(w, "Last Updated:      %s\n", manifest.LastUpdated)
	}
	if metrics.Timestamp != "" {
		fmt.Fprintf(w, "Metrics Snapshot:  %s\n", metrics.Timestamp)
	}

	if len(metrics.Counters) > 0 {
		fmt.Fprintln(w, "\nCounters:")
		for _, key := range sortedByValue(metrics.Counters) {
			fmt.Fprintf(w, "  - %s: %.6g\n", key, metrics.Counters[key].Value)
		}
	}

	if len(metrics.Gauges) > 0 {
		fmt.Fprintln(w, "\nGauges:")
		keys := make([]string, 0, len(metrics.Gauges))
		for key := range metrics.Gauges {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "  - %s: %.6g\n", key, metrics.Gauges[key].Value)
		}
	}

	if len(metrics.Histograms) > 0 {
		fmt.Fprintln(w, "\nHistograms:")
		writeDistributions(w, metrics.Histograms, true)
	}
	if len(metrics.Timers) > 0 {
		fmt.Fprintln(w, "\nTimers:")
		writeDistributions(w, metrics.Timers, false)
	}
}

// PrintJSONReport outputs the metrics document as indented JSON.
func PrintJSONReport(w io.Writer, metrics *schema.MetricsDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(metrics)
}

// PrintRecords outputs records one per line, for the tail command.
func PrintRecords(w io.Writer, records []schema.Record) {
	for _, rec := range records {
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			fields = []byte("{}")
		}
		fmt.Fprintf(w, "%s  %s  %s\n", rec.Timestamp, rec.ID, fields)
	}
}

func writeDistributions(w io.Writer, dists map[string]schema.DistributionDoc, percentiles bool) {
	keys := make([]string, 0, len(dists))
	for key := range dists {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		d := dists[key]
		fmt.Fprintf(
			w,
			"  - %s: count=%d, min=%.6g, max=%.6g, mean=%.6g, median=%.6g, stddev=%.6g",
			key, d.Stats.Count, d.Stats.Min, d.Stats.Max, d.Stats.Mean, d.Stats.Median, d.Stats.Stddev,
		)
		if percentiles {
			fmt.Fprintf(w, ", p50=%.6g, p90=%.6g, p95=%.6g, p99=%.6g", d.P50, d.P90, d.P95, d.P99)
		}
		fmt.Fprintln(w)
	}
}

func sortedByValue(counters map[string]schema.CounterDoc) []string {
	keys := make([]string, 0, len(counters))
	for key := range counters {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counters[keys[i]].Value == counters[keys[j]].Value {
			return keys[i] < keys[j]
		}
		return counters[keys[i]].Value > counters[keys[j]].Value
	})
	return keys
}
