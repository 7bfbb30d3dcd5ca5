package schema

// CounterDoc is the serialized form of a counter series.
type CounterDoc struct {
	Name  string            `json:"name"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// GaugeDoc is the serialized form of a gauge series.
type GaugeDoc struct {
	Name  string            `json:"name"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// DistStats is the fixed-shape summary of a histogram or timer window.
// Absent data serializes as zeroes, never as missing fields.
type DistStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Stddev float64 `json:"stddev"`
}

// DistributionDoc is the serialized form of a histogram or timer series.
// Percentile fields are populated for histograms only.
type DistributionDoc struct {
	Name  string            `json:"name"`
	Type  string            `json:"type"`
	Tags  map[string]string `json:"tags,omitempty"`
	Stats DistStats         `json:"stats"`
	P50   float64           `json:"p50,omitempty"`
	P90   float64           `json:"p90,omitempty"`
	P95   float64           `json:"p95,omitempty"`
	P99   float64           `json:"p99,omitempty"`
}

// MetricsDocument is the full contents of metrics.json.
type MetricsDocument struct {
	Counters   map[string]CounterDoc      `json:"counters"`
	Gauges     map[string]GaugeDoc        `json:"gauges"`
	Histograms map[string]DistributionDoc `json:"histograms"`
	Timers     map[string]DistributionDoc `json:"timers"`
	Timestamp  string                     `json:"timestamp"`
}

// EmptyMetrics returns a metrics document with every collection allocated,
// the safe default when metrics.json is absent or unreadable.
func EmptyMetrics() *MetricsDocument {
	return &MetricsDocument{
		Counters:   map[string]CounterDoc{},
		Gauges:     map[string]GaugeDoc{},
		Histograms: map[string]DistributionDoc{},
		Timers:     map[string]DistributionDoc{},
	}
}

// Manifest is the contents of manifest.json: aggregate counts plus a
// last-updated stamp, cheap for readers to poll.
type Manifest struct {
	SignalCount int    `json:"signal_count"`
	CycleCount  int    `json:"cycle_count"`
	ErrorCount  int    `json:"error_count"`
	LastUpdated string `json:"last_updated"`
}

// Record is one structured telemetry record: an immutable field map with a
// writer-assigned id and timestamp. Signals, cycles, and errors each
// serialize to their own dated file; events stay in memory.
type Record struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Fields    map[string]any `json:"fields"`
}
