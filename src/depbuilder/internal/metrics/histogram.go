package metrics

import (
	"time"

	tally "github.com/uber-go/tally/v4"
	"github.com/uber/depbuilder/src/depbuilder/entity"
)

var _bounds = []time.Duration{
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

var _tallyBuckets = tally.DurationBuckets(_bounds)

// histogram is a fixed bucket latency histogram. Callers synchronize access.
type histogram struct {
	count    int64
	failures int64
	total    time.Duration
	min      time.Duration
	max      time.Duration
	// counts has one slot per bound plus an overflow slot.
	counts []int64
}

func newHistogram() *histogram {
	return &histogram{counts: make([]int64, len(_bounds)+1)}
}

func (h *histogram) observe(d time.Duration, failed bool) {
	if d < 0 {
		d = 0
	}
	if h.count == 0 || d < h.min {
		h.min = d
	}
	if d > h.max {
		h.max = d
	}
	h.count++
	h.total += d
	if failed {
		h.failures++
	}
	h.counts[bucketIndex(d)]++
}

func bucketIndex(d time.Duration) int {
	for i, bound := range _bounds {
		if d <= bound {
			return i
		}
	}
	return len(_bounds)
}

func (h *histogram) snapshot() entity.LatencySnapshot {
	buckets := make([]entity.BucketCount, len(h.counts))
	for i, n := range h.counts {
		var upper time.Duration
		if i < len(_bounds) {
			upper = _bounds[i]
		}
		buckets[i] = entity.BucketCount{UpperBound: upper, Count: n}
	}
	return entity.LatencySnapshot{
		Count:    h.count,
		Failures: h.failures,
		Total:    h.total,
		Min:      h.min,
		Max:      h.max,
		Buckets:  buckets,
	}
}
