// Package dependency is the query façade used by the analysis pipeline.
// It validates and resolves inputs, serves repeated queries from the cache and
// dispatches misses to a pooled language server.
package dependency

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/uber/depbuilder/src/depbuilder/controller/dispatcher"
	"github.com/uber/depbuilder/src/depbuilder/controller/filewatch"
	"github.com/uber/depbuilder/src/depbuilder/controller/pool"
	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/gateway/langserver"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"github.com/uber/depbuilder/src/depbuilder/internal/executor"
	"github.com/uber/depbuilder/src/depbuilder/internal/fs"
	"github.com/uber/depbuilder/src/depbuilder/internal/metrics"
	"github.com/uber/depbuilder/src/depbuilder/repository/cache"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	_nameKey = "dependency"

	_errShutdown = "service is shut down"
)

// Service answers code-intelligence queries for one workspace.
type Service interface {
	// LookupSymbol resolves the definition of the symbol at a position, with the source text of the first definition.
	LookupSymbol(ctx context.Context, path string, pos entity.Position) (*entity.SymbolResult, error)
	// CallHierarchy lists the callers and callees of the function at a position.
	CallHierarchy(ctx context.Context, path string, pos entity.Position) (*entity.CallHierarchyResult, error)
	// FindReferences lists every reference to the symbol at a position, including its declaration.
	FindReferences(ctx context.Context, path string, pos entity.Position) (*entity.ReferencesResult, error)
	// TypeDefinition resolves the type of the symbol at a position.
	TypeDefinition(ctx context.Context, path string, pos entity.Position) (*entity.TypeDefinitionResult, error)
	// WorkspaceSymbols searches symbols across the workspace. Results are never cached.
	WorkspaceSymbols(ctx context.Context, query string) (*entity.WorkspaceSymbolsResult, error)
	// DocumentSymbols lists the symbols declared in a file, flattened in document order.
	DocumentSymbols(ctx context.Context, path string) (*entity.DocumentSymbolsResult, error)

	// Dependencies expands the callees and callers of the function at a position, level calls deep.
	Dependencies(ctx context.Context, path string, pos entity.Position, level int) (*entity.DependencyResult, error)
	// ComponentDependencies is Dependencies for the first symbol named name in a file.
	ComponentDependencies(ctx context.Context, path, name string, level int) (*entity.DependencyResult, error)
	// RangeDependencies is Dependencies for every function declared across a span of lines.
	// A negative endLine extends the span to the end of the file.
	RangeDependencies(ctx context.Context, path string, startLine, endLine, level int) (*entity.RangeDependenciesResult, error)

	// InvalidateFile drops cached results for path and returns how many were dropped.
	InvalidateFile(ctx context.Context, path string) (int, error)
	// HealthStatus reports the server binary, the pool slots and the cache occupancy.
	HealthStatus(ctx context.Context) (*entity.HealthStatus, error)
	// MetricsSnapshot returns a copy of every counter and latency histogram.
	MetricsSnapshot() entity.PoolMetricsSnapshot
	// Shutdown stops the watcher and the pool and clears the cache.
	// Later calls, and queries issued after it, fail with Cancelled.
	Shutdown(ctx context.Context) error
}

// Params are inbound parameters to initialize a new service.
type Params struct {
	fx.In

	Config     config.Provider
	Lifecycle  fx.Lifecycle
	Pool       pool.Pool
	Dispatcher dispatcher.Dispatcher
	Cache      cache.Repository
	Hasher     *cache.Hasher
	Watcher    filewatch.Watcher
	FS         fs.FS
	Executor   executor.Executor
	Metrics    *metrics.Collector
	Logger     *zap.SugaredLogger
}

type service struct {
	root     string
	server   entity.LangServerConfig
	deps     entity.DependencyConfig
	warnings []string

	pool       pool.Pool
	dispatcher dispatcher.Dispatcher
	cache      cache.Repository
	hasher     *cache.Hasher
	watcher    filewatch.Watcher
	fs         fs.FS
	executor   executor.Executor
	metrics    *metrics.Collector
	logger     *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
}

// New creates the service. The pool is warmed up when the application starts and
// everything is shut down when it stops.
func New(p Params) (Service, error) {
	server, err := langserver.LoadConfig(p.Config)
	if err != nil {
		return nil, err
	}
	deps, err := LoadConfig(p.Config)
	if err != nil {
		return nil, err
	}
	root, err := langserver.WorkspaceRoot(p.Config)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	if resolved, err := p.FS.EvalSymlinks(root); err == nil {
		root = resolved
	}

	s := &service{
		root:       filepath.Clean(root),
		server:     server,
		deps:       deps,
		warnings:   configWarnings(p.Config),
		pool:       p.Pool,
		dispatcher: p.Dispatcher,
		cache:      p.Cache,
		hasher:     p.Hasher,
		watcher:    p.Watcher,
		fs:         p.FS,
		executor:   p.Executor,
		metrics:    p.Metrics,
		logger:     p.Logger.Named(_nameKey),
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.logger.Infow("starting language server pool", "workspaceRoot", s.root, "command", s.server.Command)
			return s.pool.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			if err := s.Shutdown(ctx); err != nil && !errors.Is(err, errors.Cancelled) {
				return err
			}
			return nil
		},
	})
	return s, nil
}

// Shutdown implements Service.
func (s *service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.Newf(errors.Cancelled, _errShutdown)
	}
	s.closed = true
	s.mu.Unlock()

	var err error
	err = multierr.Append(err, s.watcher.Close())
	err = multierr.Append(err, s.pool.Shutdown(ctx))
	s.cache.Purge(ctx)

	snapshot := s.metrics.Snapshot()
	s.logger.Infow("shut down",
		"acquires", snapshot.Acquires,
		"cacheHits", snapshot.CacheHits,
		"cacheMisses", snapshot.CacheMisses,
		"restarts", snapshot.Restarts,
		"error", err,
	)
	return err
}

// MetricsSnapshot implements Service.
func (s *service) MetricsSnapshot() entity.PoolMetricsSnapshot {
	return s.metrics.Snapshot()
}

func (s *service) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.Newf(errors.Cancelled, _errShutdown)
	}
	return nil
}

// configWarnings collects the non-fatal findings of every configuration block.
func configWarnings(provider config.Provider) []string {
	var warnings []string
	if cfg, err := pool.LoadConfig(provider); err == nil {
		w, _ := cfg.Validate()
		warnings = append(warnings, w...)
	}
	if cfg, err := langserver.LoadConfig(provider); err == nil {
		w, _ := cfg.Validate()
		warnings = append(warnings, w...)
	}
	if cfg, err := cache.LoadConfig(provider); err == nil {
		w, _ := cfg.Validate()
		warnings = append(warnings, w...)
	}
	if cfg, err := LoadConfig(provider); err == nil {
		w, _ := cfg.Validate()
		warnings = append(warnings, w...)
	}
	return warnings
}

// LoadConfig reads the dependency expansion limits.
func LoadConfig(provider config.Provider) (entity.DependencyConfig, error) {
	var cfg entity.DependencyConfig
	if err := provider.Get(entity.DependencyConfigKey).Populate(&cfg); err != nil {
		return cfg, fmt.Errorf("getting configuration for %q: %w", entity.DependencyConfigKey, err)
	}
	cfg = cfg.WithDefaults()
	if _, err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
