// Package cache stores query results keyed by file content, evicting the least recently used entry when full.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/clock"
	"github.com/uber/depbuilder/src/depbuilder/internal/metrics"
	"github.com/uber/depbuilder/src/depbuilder/mapper"
	"github.com/uber/depbuilder/src/depbuilder/model"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params defines the dependencies that will be available to the cache.
type Params struct {
	fx.In

	Config  config.Provider
	Logger  *zap.SugaredLogger
	Metrics *metrics.Collector
	Clock   clock.Clock
}

// FetchFunc computes the value for a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Repository is a bounded store of encoded query results.
type Repository interface {
	// Get returns a copy of the value stored under key. An entry for the same query
	// but different content is purged and reported as a miss.
	Get(ctx context.Context, key entity.CacheKey) ([]byte, bool)

	// Put stores a copy of value under key, replacing any entry for the same query.
	Put(ctx context.Context, key entity.CacheKey, value []byte)

	// InvalidateFile drops every entry for path and returns how many were dropped.
	InvalidateFile(ctx context.Context, path string) int

	// Purge drops every entry.
	Purge(ctx context.Context)

	// Fetch returns the cached value for key, or calls fetch and caches its result.
	// Failed fetches are not cached.
	Fetch(ctx context.Context, key entity.CacheKey, fetch FetchFunc) (value []byte, cached bool, err error)

	// Len is the number of entries.
	Len() int

	// Stats describes the current occupancy.
	Stats() entity.CacheStats
}

type repository struct {
	capacity int
	metrics  *metrics.Collector
	clock    clock.Clock

	mu      sync.Mutex
	order   list.List
	entries map[model.CacheSlot]*list.Element
	byPath  map[string]map[model.CacheSlot]struct{}
}

// New creates the cache from the "cache" configuration block.
func New(p Params) (Repository, error) {
	cfg, err := LoadConfig(p.Config)
	if err != nil {
		return nil, err
	}
	warnings, _ := cfg.Validate()
	for _, w := range warnings {
		p.Logger.Warnw("cache configuration", "warning", w)
	}
	return NewRepository(cfg.Capacity, p.Metrics, p.Clock), nil
}

// LoadConfig reads and validates the cache configuration.
func LoadConfig(provider config.Provider) (entity.CacheConfig, error) {
	var cfg entity.CacheConfig
	if err := provider.Get(entity.CacheConfigKey).Populate(&cfg); err != nil {
		return cfg, fmt.Errorf("getting configuration for %q: %w", entity.CacheConfigKey, err)
	}
	cfg = cfg.WithDefaults()
	if _, err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// NewRepository returns an empty cache holding at most capacity entries.
func NewRepository(capacity int, collector *metrics.Collector, clk clock.Clock) Repository {
	if capacity < 1 {
		capacity = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	if collector == nil {
		collector = metrics.New(nil, clk)
	}
	return &repository{
		capacity: capacity,
		metrics:  collector,
		clock:    clk,
		entries:  make(map[model.CacheSlot]*list.Element),
		byPath:   make(map[string]map[model.CacheSlot]struct{}),
	}
}

// Get implements Repository.
func (r *repository) Get(ctx context.Context, key entity.CacheKey) ([]byte, bool) {
	slot := mapper.CacheKeyToSlot(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.entries[slot]
	if !ok {
		r.metrics.CacheMiss()
		return nil, false
	}
	entry := elem.Value.(*model.CacheEntry)
	if entry.ContentHash != key.ContentHash {
		r.removeLocked(elem)
		r.metrics.CacheStale()
		r.metrics.CacheMiss()
		return nil, false
	}

	entry.LastAccess = r.clock.Now()
	r.order.MoveToFront(elem)
	r.metrics.CacheHit()
	return clone(entry.Value), true
}

// Put implements Repository.
func (r *repository) Put(ctx context.Context, key entity.CacheKey, value []byte) {
	slot := mapper.CacheKeyToSlot(key)
	now := r.clock.Now()
	entry := &model.CacheEntry{
		Slot:        slot,
		ContentHash: key.ContentHash,
		Value:       clone(value),
		StoredAt:    now,
		LastAccess:  now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.entries[slot]; ok {
		elem.Value = entry
		r.order.MoveToFront(elem)
		return
	}

	for r.order.Len() >= r.capacity {
		r.removeLocked(r.order.Back())
		r.metrics.CacheEviction()
	}

	r.entries[slot] = r.order.PushFront(entry)
	slots, ok := r.byPath[slot.Path]
	if !ok {
		slots = make(map[model.CacheSlot]struct{})
		r.byPath[slot.Path] = slots
	}
	slots[slot] = struct{}{}
}

// InvalidateFile implements Repository.
func (r *repository) InvalidateFile(ctx context.Context, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots := r.byPath[path]
	n := 0
	for slot := range slots {
		if elem, ok := r.entries[slot]; ok {
			r.removeLocked(elem)
			n++
		}
	}
	return n
}

// Purge implements Repository.
func (r *repository) Purge(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order.Init()
	r.entries = make(map[model.CacheSlot]*list.Element)
	r.byPath = make(map[string]map[model.CacheSlot]struct{})
}

// Fetch implements Repository.
func (r *repository) Fetch(ctx context.Context, key entity.CacheKey, fetch FetchFunc) ([]byte, bool, error) {
	if value, ok := r.Get(ctx, key); ok {
		return value, true, nil
	}
	value, err := fetch(ctx)
	if err != nil {
		return nil, false, err
	}
	r.Put(ctx, key, value)
	return value, false, nil
}

// Len implements Repository.
func (r *repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

// Stats implements Repository.
func (r *repository) Stats() entity.CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return entity.CacheStats{
		Entries:  r.order.Len(),
		Capacity: r.capacity,
		Files:    len(r.byPath),
	}
}

func (r *repository) removeLocked(elem *list.Element) {
	entry := r.order.Remove(elem).(*model.CacheEntry)
	delete(r.entries, entry.Slot)
	if slots, ok := r.byPath[entry.Slot.Path]; ok {
		delete(slots, entry.Slot)
		if len(slots) == 0 {
			delete(r.byPath, entry.Slot.Path)
		}
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
