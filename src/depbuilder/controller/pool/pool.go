// Package pool keeps a fixed number of language server connections and leases them out one caller at a time.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/gateway/langserver"
	"github.com/uber/depbuilder/src/depbuilder/internal/clock"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"github.com/uber/depbuilder/src/depbuilder/internal/metrics"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const _nameKey = "pool"

// Params defines the dependencies that will be available to the pool.
type Params struct {
	fx.In

	Config  config.Provider
	Spawner langserver.Spawner
	Logger  *zap.SugaredLogger
	Metrics *metrics.Collector
	Clock   clock.Clock
}

// Pool leases language server connections.
type Pool interface {
	// Start warms every slot up concurrently and starts the background sweep.
	// It fails only when no slot could be started. Calling it again is a no-op.
	Start(ctx context.Context) error

	// Acquire blocks until a connection is leased, timeout elapses (PoolExhausted) or ctx ends (Cancelled).
	// A zero timeout uses the configured acquire timeout.
	Acquire(ctx context.Context, timeout time.Duration) (*Lease, error)

	// Release returns a lease to the pool. Releasing the same lease twice is a no-op.
	Release(lease *Lease, outcome entity.Outcome)

	// HealthCheck probes every Ready handle and retires the ones that do not answer.
	// Busy handles are never probed. Idle handles past the idle timeout are evicted.
	HealthCheck(ctx context.Context) error

	// Shutdown fails pending waiters with Cancelled and stops every process.
	Shutdown(ctx context.Context) error

	// Handles returns a snapshot of every slot.
	Handles() []entity.HandleInfo

	// ServerVersion is the version reported by any live server, or empty if none is running.
	ServerVersion() string
}

type pool struct {
	cfg          entity.PoolConfig
	probeMethod  string
	probeTimeout time.Duration
	spawner      langserver.Spawner
	logger       *zap.SugaredLogger
	metrics      *metrics.Collector
	clock        clock.Clock

	mu       sync.Mutex
	handles  []*handle
	waiters  waitQueue
	closed   bool
	leaseSeq uint64

	started   atomic.Bool
	stopSweep chan struct{}
	// wg tracks the sweeper and asynchronous terminations.
	wg sync.WaitGroup
}

// New creates a pool from the "pool" and "langserver" configuration blocks.
func New(p Params) (Pool, error) {
	cfg, err := LoadConfig(p.Config)
	if err != nil {
		return nil, err
	}
	ls, err := langserver.LoadConfig(p.Config)
	if err != nil {
		return nil, err
	}

	warnings, _ := cfg.Validate()
	for _, w := range warnings {
		p.Logger.Warnw("pool configuration", "warning", w)
	}

	return newPool(cfg, ls.HealthProbeMethod, p.Spawner, p.Logger, p.Metrics, p.Clock), nil
}

// LoadConfig reads and validates the pool configuration.
func LoadConfig(provider config.Provider) (entity.PoolConfig, error) {
	var cfg entity.PoolConfig
	if err := provider.Get(entity.PoolConfigKey).Populate(&cfg); err != nil {
		return cfg, fmt.Errorf("getting configuration for %q: %w", entity.PoolConfigKey, err)
	}
	cfg = cfg.WithDefaults()
	if _, err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newPool(cfg entity.PoolConfig, probeMethod string, spawner langserver.Spawner, logger *zap.SugaredLogger, collector *metrics.Collector, clk clock.Clock) *pool {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if collector == nil {
		collector = metrics.New(nil, clk)
	}
	if clk == nil {
		clk = clock.New()
	}

	p := &pool{
		cfg:          cfg,
		probeMethod:  probeMethod,
		probeTimeout: cfg.HealthCheckTimeout,
		spawner:      spawner,
		logger:       logger.Named(_nameKey),
		metrics:      collector,
		clock:        clk,
		handles:      make([]*handle, cfg.Size),
		stopSweep:    make(chan struct{}),
	}
	for i := range p.handles {
		p.handles[i] = &handle{slot: i, state: entity.HandleTerminated}
	}
	return p
}

// Start implements Pool.
func (p *pool) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.Newf(errors.Cancelled, "pool is shut down")
	}
	var slots []int
	for _, h := range p.handles {
		if h.available() {
			p.reserveLocked(h)
			slots = append(slots, h.slot)
		}
	}
	p.mu.Unlock()

	// One failed spawn must not cancel the others, so the group carries no context.
	var g errgroup.Group
	errs := make([]error, len(slots))
	for i, slot := range slots {
		i, slot := i, slot
		g.Go(func() error {
			if _, err := p.fill(ctx, slot, false); err != nil {
				errs[i] = fmt.Errorf("slot %d: %w", slot, err)
				return errs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		failed := multierr.Combine(errs...)
		if len(multierr.Errors(failed)) == len(slots) {
			return errors.Wrap(errors.PoolExhausted, fmt.Errorf("starting %s: %w", p.spawner.Describe(), failed))
		}
		p.logger.Warnw("some handles failed to start", "error", failed)
	}

	if p.cfg.HealthCheckInterval > 0 {
		p.wg.Add(1)
		go p.sweep()
	}
	p.logger.Infow("pool started", "size", p.cfg.Size, "server", p.spawner.Describe())
	return nil
}

// Acquire implements Pool.
func (p *pool) Acquire(ctx context.Context, timeout time.Duration) (*Lease, error) {
	if timeout <= 0 {
		timeout = p.cfg.AcquireTimeout
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.FromContext(ctx)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.Newf(errors.Cancelled, "pool is shut down")
	}
	g, ok := p.grantLocked()
	var w *waiter
	if !ok {
		if p.waiters.len() >= p.cfg.MaxWaiters {
			p.mu.Unlock()
			p.metrics.PoolExhausted()
			return nil, errors.Newf(errors.PoolExhausted, "wait queue is full (%d waiters)", p.cfg.MaxWaiters)
		}
		w = p.waiters.push()
	}
	p.mu.Unlock()

	if ok {
		return p.complete(ctx, g)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case g := <-w.ch:
		return p.complete(ctx, g)
	case <-timer.C:
		p.abandon(w)
		p.metrics.PoolExhausted()
		return nil, errors.Newf(errors.PoolExhausted, "no handle available within %v", timeout)
	case <-ctx.Done():
		p.abandon(w)
		return nil, errors.FromContext(ctx)
	}
}

// Release implements Pool.
func (p *pool) Release(lease *Lease, outcome entity.Outcome) {
	if lease == nil || !lease.released.CompareAndSwap(false, true) {
		return
	}
	p.metrics.Release(outcome)
	if outcome == entity.OutcomeTimeout {
		p.metrics.Timeout()
	}

	dead := !lease.conn.Alive()
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.handles[lease.slot]
	if h.gen != lease.gen || h.state != entity.HandleBusy {
		// The slot was reclaimed while leased, e.g. by Shutdown.
		return
	}
	h.served++
	h.lastActivity = p.clock.Now()

	if outcome.Retires() || dead {
		p.logger.Infow("retiring handle", "slot", h.slot, "conn", lease.conn.ID(), "outcome", outcome, "alive", !dead)
		p.retireLocked(h, entity.HandleUnhealthy)
		p.vacateLocked(h)
		return
	}

	h.suspect = outcome == entity.OutcomeTimeout || outcome == entity.OutcomeCancelled
	p.readyLocked(h)
}

// HealthCheck implements Pool.
func (p *pool) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	now := p.clock.Now()
	var (
		probes []*handle
		gens   []uint64
	)
	for _, h := range p.handles {
		if h.state != entity.HandleReady {
			continue
		}
		if h.expired(now, p.cfg.IdleTimeout) {
			p.logger.Infow("evicting idle handle", "slot", h.slot, "conn", h.conn.ID(), "idle", now.Sub(h.lastActivity))
			p.metrics.IdleEviction()
			p.retireLocked(h, entity.HandleTerminated)
			continue
		}
		// Probing holds the handle like a lease so that Acquire skips it.
		h.state = entity.HandleBusy
		probes = append(probes, h)
		gens = append(gens, h.gen)
	}
	p.mu.Unlock()

	results := make([]error, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range probes {
		i, conn := i, h.conn
		g.Go(func() error {
			results[i] = conn.Ping(gctx, p.probeMethod, p.probeTimeout)
			return nil
		})
	}
	_ = g.Wait()

	var failed error
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, h := range probes {
		err := results[i]
		if h.gen != gens[i] || h.state != entity.HandleBusy {
			// Shutdown took the slot while it was probed.
			continue
		}
		if err == nil || (errors.Is(err, errors.Cancelled) && h.conn.Alive()) {
			if err == nil {
				h.suspect = false
			}
			p.readyLocked(h)
			continue
		}
		p.logger.Warnw("health check failed", "slot", h.slot, "conn", h.conn.ID(), "error", err)
		p.metrics.HealthCheckFailure()
		failed = multierr.Append(failed, fmt.Errorf("slot %d: %w", h.slot, err))
		p.retireLocked(h, entity.HandleUnhealthy)
		p.vacateLocked(h)
	}
	p.metrics.HandleStates(p.infosLocked())
	return failed
}

// Shutdown implements Pool.
func (p *pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stopSweep)
	waiters := p.waiters.drain()
	var conns []*langserver.Conn
	for _, h := range p.handles {
		if h.conn != nil {
			conns = append(conns, h.conn)
		}
		h.conn = nil
		h.gen++
		h.state = entity.HandleTerminated
		h.suspect = false
	}
	p.mu.Unlock()

	for _, w := range waiters {
		w.ch <- grant{err: errors.Newf(errors.Cancelled, "pool is shutting down")}
	}

	var (
		errMu sync.Mutex
		err   error
	)
	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn *langserver.Conn) {
			defer wg.Done()
			if cerr := conn.Close(ctx, p.cfg.ShutdownGrace, p.cfg.KillGrace); cerr != nil {
				errMu.Lock()
				err = multierr.Append(err, fmt.Errorf("closing %s: %w", conn.ID(), cerr))
				errMu.Unlock()
			}
		}(conn)
	}
	wg.Wait()
	p.wg.Wait()

	p.logger.Infow("pool shut down", "closed", len(conns), "waiters", len(waiters))
	return err
}

// Handles implements Pool.
func (p *pool) Handles() []entity.HandleInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.infosLocked()
}

// ServerVersion implements Pool.
func (p *pool) ServerVersion() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.handles {
		if h.conn == nil {
			continue
		}
		if v := h.conn.ServerVersion(); v != "" {
			return v
		}
	}
	return ""
}

func (p *pool) infosLocked() []entity.HandleInfo {
	infos := make([]entity.HandleInfo, len(p.handles))
	for i, h := range p.handles {
		infos[i] = h.info()
	}
	return infos
}

// grantLocked picks a handle for an immediate Acquire: an idle fresh handle first, then an
// expired one to recycle, then an empty slot to spawn into.
func (p *pool) grantLocked() (grant, bool) {
	now := p.clock.Now()
	var suspect, expired, empty *handle
	for _, h := range p.handles {
		switch {
		case h.state == entity.HandleReady && h.expired(now, p.cfg.IdleTimeout):
			if expired == nil {
				expired = h
			}
		case h.state == entity.HandleReady && h.suspect:
			if suspect == nil {
				suspect = h
			}
		case h.state == entity.HandleReady:
			return grant{lease: p.leaseLocked(h)}, true
		case h.available():
			if empty == nil {
				empty = h
			}
		}
	}

	switch {
	case suspect != nil:
		return grant{lease: p.leaseLocked(suspect)}, true
	case expired != nil:
		p.logger.Infow("recycling idle handle", "slot", expired.slot, "conn", expired.conn.ID())
		p.metrics.IdleEviction()
		p.retireLocked(expired, entity.HandleTerminated)
		p.reserveLocked(expired)
		return grant{slot: expired.slot, spawn: true}, true
	case empty != nil:
		p.reserveLocked(empty)
		return grant{slot: empty.slot, spawn: true}, true
	}
	return grant{}, false
}

func (p *pool) leaseLocked(h *handle) *Lease {
	p.leaseSeq++
	h.state = entity.HandleBusy
	return &Lease{
		id:         p.leaseSeq,
		slot:       h.slot,
		gen:        h.gen,
		conn:       h.conn,
		acquiredAt: p.clock.Now(),
	}
}

// reserveLocked claims an empty slot for a spawn. The new generation fences off the old process.
func (p *pool) reserveLocked(h *handle) {
	h.gen++
	h.state = entity.HandleStarting
	h.suspect = false
}

// readyLocked hands h to the head waiter, or parks it as Ready.
func (p *pool) readyLocked(h *handle) {
	if w := p.waiters.pop(); w != nil {
		w.ch <- grant{lease: p.leaseLocked(h)}
		return
	}
	h.state = entity.HandleReady
}

// vacateLocked hands an empty slot to the head waiter to spawn into. With nobody waiting
// the slot stays empty until the next Acquire.
func (p *pool) vacateLocked(h *handle) {
	if w := p.waiters.pop(); w != nil {
		p.reserveLocked(h)
		w.ch <- grant{slot: h.slot, spawn: true}
	}
}

// retireLocked detaches the process from h and terminates it in the background.
func (p *pool) retireLocked(h *handle, state entity.HandleState) {
	conn, gen := h.conn, h.gen
	h.conn = nil
	h.state = state
	h.suspect = false
	if conn == nil {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := conn.Close(context.Background(), p.cfg.ShutdownGrace, p.cfg.KillGrace); err != nil {
			p.logger.Debugw("terminating handle", "conn", conn.ID(), "error", err)
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if h.gen == gen && h.state == entity.HandleUnhealthy {
			h.state = entity.HandleTerminated
		}
	}()
}

// complete turns a grant into a lease, spawning into the granted slot if needed.
func (p *pool) complete(ctx context.Context, g grant) (*Lease, error) {
	if g.err != nil {
		return nil, g.err
	}
	if !g.spawn {
		p.metrics.Acquire()
		return g.lease, nil
	}

	lease, err := p.fill(ctx, g.slot, true)
	if err != nil {
		return nil, err
	}
	p.metrics.Acquire()
	return lease, nil
}

// fill spawns a process into a reserved slot. With leased set the new handle is returned
// leased to the caller, otherwise it is parked as Ready.
func (p *pool) fill(ctx context.Context, slot int, leased bool) (*Lease, error) {
	conn, err := p.spawner.Spawn(ctx)

	p.mu.Lock()
	h := p.handles[slot]
	if err != nil {
		stale := h.state != entity.HandleStarting
		if !stale {
			h.state = entity.HandleTerminated
			p.vacateLocked(h)
		}
		p.mu.Unlock()

		p.logger.Warnw("spawning language server failed", "slot", slot, "error", err)
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx)
		}
		return nil, errors.Wrap(errors.PoolExhausted, fmt.Errorf("spawning %s: %w", p.spawner.Describe(), err))
	}

	if p.closed || h.state != entity.HandleStarting {
		p.mu.Unlock()
		conn.Close(context.Background(), 0, p.cfg.KillGrace)
		return nil, errors.Newf(errors.Cancelled, "pool is shut down")
	}

	h.conn = conn
	h.lastActivity = p.clock.Now()
	if h.spawned {
		p.metrics.Restart()
	}
	h.spawned = true

	var lease *Lease
	if leased {
		lease = p.leaseLocked(h)
	} else {
		p.readyLocked(h)
	}
	p.mu.Unlock()

	p.logger.Infow("handle started", "slot", slot, "conn", conn.ID(), "pid", conn.PID())
	return lease, nil
}

// abandon withdraws a waiter that gave up. If a grant raced in, it is passed on.
func (p *pool) abandon(w *waiter) {
	p.mu.Lock()
	removed := p.waiters.remove(w)
	p.mu.Unlock()
	if removed {
		return
	}

	g := <-w.ch
	switch {
	case g.err != nil:
	case g.spawn:
		p.mu.Lock()
		h := p.handles[g.slot]
		if h.state == entity.HandleStarting {
			h.state = entity.HandleTerminated
			p.vacateLocked(h)
		}
		p.mu.Unlock()
	default:
		p.mu.Lock()
		h := p.handles[g.lease.slot]
		if h.gen == g.lease.gen && h.state == entity.HandleBusy {
			p.readyLocked(h)
		}
		p.mu.Unlock()
	}
}

// sweep runs HealthCheck periodically until Shutdown.
func (p *pool) sweep() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.probeTimeout+time.Second)
			if err := p.HealthCheck(ctx); err != nil {
				p.logger.Warnw("health sweep", "error", err)
			}
			cancel()
		}
	}
}
