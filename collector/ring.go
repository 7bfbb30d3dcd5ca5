package collector

import "github.com/tickerbeat/telemetry/schema"

// ring is a fixed-capacity FIFO of records backed by a preallocated arena:
// one slice, a head index, and a count. Pushing past capacity overwrites
// the oldest element in O(1) with no reallocation.
type ring struct {
	buf   []schema.Record
	head  int
	count int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]schema.Record, capacity)}
}

func (r *ring) push(rec schema.Record) {
	if r.count == len(r.buf) {
		r.buf[r.head] = rec
		r.head = (r.head + 1) % len(r.buf)
		return
	}
	r.buf[(r.head+r.count)%len(r.buf)] = rec
	r.count++
}

func (r *ring) len() int { return r.count }

// recent returns up to limit records, newest first.
func (r *ring) recent(limit int) []schema.Record {
	if limit <= 0 || r.count == 0 {
		return nil
	}
	if limit > r.count {
		limit = r.count
	}
	out := make([]schema.Record, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.head + r.count - 1 - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// oldestFirst returns every retained record in insertion order, for export.
func (r *ring) oldestFirst() []schema.Record {
	out := make([]schema.Record, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

func (r *ring) reset() {
	r.head = 0
	r.count = 0
}
