package entity

import (
	"encoding/json"
	"time"
)

// PoolMetricsSnapshot is a point-in-time copy of the collector's counters.
// Distinct counters may be read a few increments apart from each other.
type PoolMetricsSnapshot struct {
	TakenAt time.Time `json:"takenAt"`

	Acquires            int64 `json:"acquires"`
	Releases            int64 `json:"releases"`
	Timeouts            int64 `json:"timeouts"`
	PoolExhausted       int64 `json:"poolExhausted"`
	Restarts            int64 `json:"restarts"`
	HealthCheckFailures int64 `json:"healthCheckFailures"`
	IdleEvictions       int64 `json:"idleEvictions"`
	Retries             int64 `json:"retries"`
	DiscardedResponses  int64 `json:"discardedResponses"`

	CacheHits      int64 `json:"cacheHits"`
	CacheMisses    int64 `json:"cacheMisses"`
	CacheStale     int64 `json:"cacheStale"`
	CacheEvictions int64 `json:"cacheEvictions"`

	// Latency is keyed by method name.
	Latency map[string]LatencySnapshot `json:"latency"`
}

// HitRate is the fraction of cache lookups that were hits, or 0 with no lookups.
func (s PoolMetricsSnapshot) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// LatencySnapshot summarizes the latency histogram of one method.
// It is encoded with durations in milliseconds.
type LatencySnapshot struct {
	Count    int64
	Failures int64
	Total    time.Duration
	Min      time.Duration
	Max      time.Duration
	Buckets  []BucketCount
}

type latencyJSON struct {
	Count    int64         `json:"count"`
	Failures int64         `json:"failures"`
	TotalMs  float64       `json:"totalMs"`
	MinMs    float64       `json:"minMs"`
	MaxMs    float64       `json:"maxMs"`
	MeanMs   float64       `json:"meanMs"`
	Buckets  []BucketCount `json:"buckets"`
}

// MarshalJSON implements json.Marshaler.
func (l LatencySnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(latencyJSON{
		Count:    l.Count,
		Failures: l.Failures,
		TotalMs:  Milliseconds(l.Total),
		MinMs:    Milliseconds(l.Min),
		MaxMs:    Milliseconds(l.Max),
		MeanMs:   Milliseconds(l.Mean()),
		Buckets:  l.Buckets,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *LatencySnapshot) UnmarshalJSON(data []byte) error {
	var w latencyJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*l = LatencySnapshot{
		Count:    w.Count,
		Failures: w.Failures,
		Total:    FromMilliseconds(w.TotalMs),
		Min:      FromMilliseconds(w.MinMs),
		Max:      FromMilliseconds(w.MaxMs),
		Buckets:  w.Buckets,
	}
	return nil
}

// Mean is the average observed latency, or 0 with no observations.
func (l LatencySnapshot) Mean() time.Duration {
	if l.Count == 0 {
		return 0
	}
	return l.Total / time.Duration(l.Count)
}

// SuccessRate is the fraction of observations that did not fail.
func (l LatencySnapshot) SuccessRate() float64 {
	if l.Count == 0 {
		return 0
	}
	return float64(l.Count-l.Failures) / float64(l.Count)
}

// BucketCount is the number of observations at or below UpperBound and above the previous bound.
// The last bucket has a zero UpperBound and counts everything above the largest bound.
type BucketCount struct {
	UpperBound time.Duration
	Count      int64
}

type bucketJSON struct {
	UpperBoundMs float64 `json:"upperBoundMs"`
	Count        int64   `json:"count"`
}

// MarshalJSON implements json.Marshaler.
func (b BucketCount) MarshalJSON() ([]byte, error) {
	return json.Marshal(bucketJSON{UpperBoundMs: Milliseconds(b.UpperBound), Count: b.Count})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BucketCount) UnmarshalJSON(data []byte) error {
	var w bucketJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = BucketCount{UpperBound: FromMilliseconds(w.UpperBoundMs), Count: w.Count}
	return nil
}
