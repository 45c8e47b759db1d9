// Package metrics counts pool, dispatch and cache events and exposes them as an immutable snapshot.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	tally "github.com/uber-go/tally/v4"
	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/clock"
	"go.uber.org/fx"
)

// Module provides a Collector reporting under the "depbuilder" sub scope.
var Module = fx.Provide(func(stats tally.Scope, c clock.Clock) *Collector {
	return New(stats.SubScope("depbuilder"), c)
})

// Collector is safe for concurrent use. Every recording method is also mirrored to the tally scope.
type Collector struct {
	stats tally.Scope
	clock clock.Clock

	acquires            atomic.Int64
	releases            atomic.Int64
	timeouts            atomic.Int64
	poolExhausted       atomic.Int64
	restarts            atomic.Int64
	healthCheckFailures atomic.Int64
	idleEvictions       atomic.Int64
	retries             atomic.Int64
	discardedResponses  atomic.Int64

	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	cacheStale     atomic.Int64
	cacheEvictions atomic.Int64

	mu        sync.Mutex
	latencies map[string]*histogram
}

// New creates a Collector. A nil scope disables mirroring.
func New(stats tally.Scope, c clock.Clock) *Collector {
	if stats == nil {
		stats = tally.NoopScope
	}
	if c == nil {
		c = clock.New()
	}
	return &Collector{
		stats:     stats,
		clock:     c,
		latencies: make(map[string]*histogram),
	}
}

// Acquire counts a granted lease.
func (c *Collector) Acquire() {
	c.acquires.Add(1)
	c.stats.Counter("acquires").Inc(1)
}

// Release counts a returned lease by outcome.
func (c *Collector) Release(outcome entity.Outcome) {
	c.releases.Add(1)
	c.stats.Tagged(map[string]string{"outcome": outcome.String()}).Counter("releases").Inc(1)
}

// Timeout counts a call that exceeded its per-call deadline.
func (c *Collector) Timeout() {
	c.timeouts.Add(1)
	c.stats.Counter("timeouts").Inc(1)
}

// PoolExhausted counts an Acquire that gave up.
func (c *Collector) PoolExhausted() {
	c.poolExhausted.Add(1)
	c.stats.Counter("pool_exhausted").Inc(1)
}

// Restart counts a handle replaced by a fresh process.
func (c *Collector) Restart() {
	c.restarts.Add(1)
	c.stats.Counter("restarts").Inc(1)
}

// HealthCheckFailure counts a probe that found a dead or unresponsive handle.
func (c *Collector) HealthCheckFailure() {
	c.healthCheckFailures.Add(1)
	c.stats.Counter("health_check_failures").Inc(1)
}

// IdleEviction counts a handle retired for being unused too long.
func (c *Collector) IdleEviction() {
	c.idleEvictions.Add(1)
	c.stats.Counter("idle_evictions").Inc(1)
}

// Retry counts a query retried after a transient failure.
func (c *Collector) Retry() {
	c.retries.Add(1)
	c.stats.Counter("retries").Inc(1)
}

// DiscardedResponse counts a server response nobody was waiting for.
func (c *Collector) DiscardedResponse() {
	c.discardedResponses.Add(1)
	c.stats.Counter("discarded_responses").Inc(1)
}

// CacheHit counts a cache lookup served from a fresh entry.
func (c *Collector) CacheHit() {
	c.cacheHits.Add(1)
	c.stats.Counter("cache_hits").Inc(1)
}

// CacheMiss counts a cache lookup with no usable entry.
func (c *Collector) CacheMiss() {
	c.cacheMisses.Add(1)
	c.stats.Counter("cache_misses").Inc(1)
}

// CacheStale counts an entry purged because its file changed. It is always accompanied by a miss.
func (c *Collector) CacheStale() {
	c.cacheStale.Add(1)
	c.stats.Counter("cache_stale").Inc(1)
}

// CacheEviction counts an entry dropped to honor capacity.
func (c *Collector) CacheEviction() {
	c.cacheEvictions.Add(1)
	c.stats.Counter("cache_evictions").Inc(1)
}

// HandleStates publishes the current number of handles in each state as gauges.
func (c *Collector) HandleStates(handles []entity.HandleInfo) {
	counts := make(map[entity.HandleState]int)
	for _, h := range handles {
		counts[h.State]++
	}
	for _, s := range []entity.HandleState{entity.HandleStarting, entity.HandleReady, entity.HandleBusy, entity.HandleUnhealthy, entity.HandleTerminated} {
		c.stats.Tagged(map[string]string{"state": s.String()}).Gauge("handles").Update(float64(counts[s]))
	}
}

// Latency records how long one call to method took and whether it failed.
func (c *Collector) Latency(method string, d time.Duration, failed bool) {
	c.mu.Lock()
	h, ok := c.latencies[method]
	if !ok {
		h = newHistogram()
		c.latencies[method] = h
	}
	h.observe(d, failed)
	c.mu.Unlock()

	scope := c.stats.Tagged(map[string]string{"method": method})
	scope.Histogram("latency", _tallyBuckets).RecordDuration(d)
	if failed {
		scope.Counter("failures").Inc(1)
	}
}

// Snapshot returns a copy of every counter. It never blocks recorders for longer than a map copy.
func (c *Collector) Snapshot() entity.PoolMetricsSnapshot {
	s := entity.PoolMetricsSnapshot{
		TakenAt:             c.clock.Now(),
		Acquires:            c.acquires.Load(),
		Releases:            c.releases.Load(),
		Timeouts:            c.timeouts.Load(),
		PoolExhausted:       c.poolExhausted.Load(),
		Restarts:            c.restarts.Load(),
		HealthCheckFailures: c.healthCheckFailures.Load(),
		IdleEvictions:       c.idleEvictions.Load(),
		Retries:             c.retries.Load(),
		DiscardedResponses:  c.discardedResponses.Load(),
		CacheHits:           c.cacheHits.Load(),
		CacheMisses:         c.cacheMisses.Load(),
		CacheStale:          c.cacheStale.Load(),
		CacheEvictions:      c.cacheEvictions.Load(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s.Latency = make(map[string]entity.LatencySnapshot, len(c.latencies))
	for method, h := range c.latencies {
		s.Latency[method] = h.snapshot()
	}
	return s
}
