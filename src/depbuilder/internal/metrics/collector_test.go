package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tally "github.com/uber-go/tally/v4"
	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/clock"
)

func TestCollectorCounters(t *testing.T) {
	testScope := tally.NewTestScope("testing", make(map[string]string, 0))
	c := New(testScope, clock.New())

	c.Acquire()
	c.Acquire()
	c.Release(entity.OutcomeSuccess)
	c.Release(entity.OutcomeTimeout)
	c.Timeout()
	c.PoolExhausted()
	c.Restart()
	c.HealthCheckFailure()
	c.IdleEviction()
	c.Retry()
	c.DiscardedResponse()
	c.CacheHit()
	c.CacheMiss()
	c.CacheStale()
	c.CacheEviction()

	s := c.Snapshot()
	assert.Equal(t, int64(2), s.Acquires)
	assert.Equal(t, int64(2), s.Releases)
	assert.Equal(t, int64(1), s.Timeouts)
	assert.Equal(t, int64(1), s.PoolExhausted)
	assert.Equal(t, int64(1), s.Restarts)
	assert.Equal(t, int64(1), s.HealthCheckFailures)
	assert.Equal(t, int64(1), s.IdleEvictions)
	assert.Equal(t, int64(1), s.Retries)
	assert.Equal(t, int64(1), s.DiscardedResponses)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(1), s.CacheMisses)
	assert.Equal(t, int64(1), s.CacheStale)
	assert.Equal(t, int64(1), s.CacheEvictions)
	assert.False(t, s.TakenAt.IsZero())

	counters := testScope.Snapshot().Counters()
	assert.Equal(t, int64(2), counters["testing.acquires+"].Value())
	assert.Equal(t, int64(1), counters["testing.releases+outcome=timeout"].Value())
}

func TestCollectorLatency(t *testing.T) {
	c := New(nil, nil)

	c.Latency("lookupSymbol", 5*time.Millisecond, false)
	c.Latency("lookupSymbol", 300*time.Millisecond, true)
	c.Latency("lookupSymbol", time.Minute, false)
	c.Latency("findReferences", 20*time.Millisecond, false)

	s := c.Snapshot()
	require.Len(t, s.Latency, 2)

	l := s.Latency["lookupSymbol"]
	assert.Equal(t, int64(3), l.Count)
	assert.Equal(t, int64(1), l.Failures)
	assert.Equal(t, 5*time.Millisecond, l.Min)
	assert.Equal(t, time.Minute, l.Max)
	require.Len(t, l.Buckets, len(_bounds)+1)
	assert.Equal(t, int64(1), l.Buckets[0].Count)
	assert.Equal(t, int64(1), l.Buckets[4].Count)
	assert.Equal(t, int64(1), l.Buckets[len(_bounds)].Count)
	assert.Zero(t, l.Buckets[len(_bounds)].UpperBound)

	refs := s.Latency["findReferences"]
	assert.Equal(t, int64(1), refs.Buckets[1].Count)
}

func TestSnapshotIsImmutable(t *testing.T) {
	c := New(nil, nil)
	c.Latency("typeDefinition", time.Millisecond, false)
	c.CacheHit()

	before := c.Snapshot()
	c.Latency("typeDefinition", time.Millisecond, false)
	c.CacheHit()

	assert.Equal(t, int64(1), before.CacheHits)
	assert.Equal(t, int64(1), before.Latency["typeDefinition"].Count)
	assert.Equal(t, int64(2), c.Snapshot().Latency["typeDefinition"].Count)
}

func TestCollectorConcurrent(t *testing.T) {
	c := New(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Acquire()
				c.Latency("callHierarchy", time.Duration(j)*time.Millisecond, j%10 == 0)
				_ = c.Snapshot()
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	assert.Equal(t, int64(800), s.Acquires)
	assert.Equal(t, int64(800), s.Latency["callHierarchy"].Count)
	assert.Equal(t, int64(80), s.Latency["callHierarchy"].Failures)
}

func TestHandleStates(t *testing.T) {
	testScope := tally.NewTestScope("testing", make(map[string]string, 0))
	c := New(testScope, nil)

	c.HandleStates([]entity.HandleInfo{
		{Slot: 0, State: entity.HandleReady},
		{Slot: 1, State: entity.HandleBusy},
		{Slot: 2, State: entity.HandleReady},
	})

	gauges := testScope.Snapshot().Gauges()
	assert.Equal(t, float64(2), gauges["testing.handles+state=ready"].Value())
	assert.Equal(t, float64(1), gauges["testing.handles+state=busy"].Value())
	assert.Equal(t, float64(0), gauges["testing.handles+state=unhealthy"].Value())
}
