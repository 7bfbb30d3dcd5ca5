package collector

import (
	"math"
	"sort"

	"github.com/tickerbeat/telemetry/schema"
)

// counter is a monotonic accumulator addressed by composite key.
type counter struct {
	name  string
	tags  schema.Tags
	value float64
}

// gauge is a last-writer-wins scalar addressed by composite key.
type gauge struct {
	name  string
	tags  schema.Tags
	value float64
}

// window holds the M most recent values for a histogram or timer as a
// circular arena. Older values are overwritten in place.
type window struct {
	name   string
	tags   schema.Tags
	values []float64
	next   int
	count  int
}

func newWindow(name string, tags schema.Tags, size int) *window {
	if size < 1 {
		size = 1
	}
	return &window{name: name, tags: tags, values: make([]float64, size)}
}

func (w *window) push(v float64) {
	w.values[w.next] = v
	w.next = (w.next + 1) % len(w.values)
	if w.count < len(w.values) {
		w.count++
	}
}

// snapshot copies the retained values, order-independent.
func (w *window) snapshot() []float64 {
	out := make([]float64, w.count)
	copy(out, w.values[:w.count])
	return out
}

// distribution summarizes a window into the fixed serialized shape.
// Percentile fields are filled for histograms only.
func (w *window) distribution(kind string) schema.DistributionDoc {
	doc := schema.DistributionDoc{
		Name: w.name,
		Type: kind,
		Tags: w.tags.Map(),
	}
	values := w.snapshot()
	if len(values) == 0 {
		return doc
	}

	sort.Float64s(values)
	doc.Stats = summarize(values)
	if kind == "histogram" {
		doc.P50 = nearestRank(values, 50)
		doc.P90 = nearestRank(values, 90)
		doc.P95 = nearestRank(values, 95)
		doc.P99 = nearestRank(values, 99)
	}
	return doc
}

// summarize computes the fixed stats block over a sorted window.
func summarize(sorted []float64) schema.DistStats {
	n := len(sorted)
	stats := schema.DistStats{
		Count: n,
		Min:   sorted[0],
		Max:   sorted[n-1],
	}

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	stats.Mean = sum / float64(n)

	if n%2 == 1 {
		stats.Median = sorted[n/2]
	} else {
		stats.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	if n > 1 {
		var sq float64
		for _, v := range sorted {
			d := v - stats.Mean
			sq += d * d
		}
		stats.Stddev = math.Sqrt(sq / float64(n-1))
	}
	return stats
}

// nearestRank indexes a sorted window at floor(p/100*n), clamped to n-1.
// No interpolation.
func nearestRank(sorted []float64, p float64) float64 {
	idx := int(math.Floor(p / 100 * float64(len(sorted))))
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
