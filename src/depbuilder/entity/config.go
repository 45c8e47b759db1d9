package entity

import (
	"fmt"
	"runtime"
	"time"
)

// Configuration keys for each block of the YAML configuration.
const (
	PoolConfigKey       = "pool"
	LangServerConfigKey = "langserver"
	CacheConfigKey      = "cache"
	WorkspaceConfigKey  = "workspace"
	DependencyConfigKey = "dependency"
)

const (
	_defaultPoolSize            = 3
	_defaultAcquireTimeout      = 10 * time.Second
	_defaultIdleTimeout         = 300 * time.Second
	_defaultHealthCheckInterval = 60 * time.Second
	_defaultHealthCheckTimeout  = 5 * time.Second
	_defaultMaxWaitersPerHandle = 16
	_defaultShutdownGrace       = 3 * time.Second
	_defaultKillGrace           = 2 * time.Second

	_defaultCommand           = "ccls"
	_defaultLanguageID        = "cpp"
	_defaultCacheDirectory    = ".ccls-cache"
	_defaultStartupTimeout    = 30 * time.Second
	_defaultRequestTimeout    = 30 * time.Second
	_defaultHealthProbeMethod = "$/depbuilder/ping"

	_defaultCacheCapacity = 256
	_defaultDebounce      = 10 * time.Millisecond

	_defaultMaxDepth         = 10
	_defaultMaxNodesPerLevel = 200
	_maxReasonableDepth      = 50
	_minNodesPerLevel        = 10

	_maxReasonablePoolSize = 16
	_minRequestTimeout     = 5 * time.Second
	_minCacheCapacity      = 16
)

// PoolConfig configures the connection pool.
type PoolConfig struct {
	Size           int           `yaml:"size"`
	AcquireTimeout time.Duration `yaml:"acquireTimeout"`
	// IdleTimeout recycles handles unused for longer than this. Negative disables idle eviction.
	IdleTimeout time.Duration `yaml:"idleTimeout"`
	// HealthCheckInterval is the period of the background sweep. Negative disables the sweep.
	HealthCheckInterval time.Duration `yaml:"healthCheckInterval"`
	HealthCheckTimeout  time.Duration `yaml:"healthCheckTimeout"`
	// MaxWaiters bounds the FIFO queue of callers blocked in Acquire.
	MaxWaiters    int           `yaml:"maxWaiters"`
	ShutdownGrace time.Duration `yaml:"shutdownGrace"`
	KillGrace     time.Duration `yaml:"killGrace"`
}

// WithDefaults returns a copy with zero fields set to their defaults.
func (c PoolConfig) WithDefaults() PoolConfig {
	if c.Size == 0 {
		c.Size = _defaultPoolSize
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = _defaultAcquireTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = _defaultIdleTimeout
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = _defaultHealthCheckInterval
	}
	if c.HealthCheckTimeout == 0 {
		c.HealthCheckTimeout = _defaultHealthCheckTimeout
	}
	if c.MaxWaiters == 0 {
		c.MaxWaiters = c.Size * _defaultMaxWaitersPerHandle
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = _defaultShutdownGrace
	}
	if c.KillGrace == 0 {
		c.KillGrace = _defaultKillGrace
	}
	return c
}

// Validate returns an error for unusable values and warnings for suspicious ones.
func (c PoolConfig) Validate() (warnings []string, err error) {
	if c.Size < 1 {
		return nil, fmt.Errorf("pool size must be >= 1, got %d", c.Size)
	}
	if c.AcquireTimeout <= 0 {
		return nil, fmt.Errorf("pool acquireTimeout must be positive, got %v", c.AcquireTimeout)
	}
	if c.MaxWaiters < 0 {
		return nil, fmt.Errorf("pool maxWaiters must be >= 0, got %d", c.MaxWaiters)
	}
	if c.Size > _maxReasonablePoolSize {
		warnings = append(warnings, fmt.Sprintf("pool size=%d is very high, each handle is a full language server", c.Size))
	}
	if c.IdleTimeout > 0 && c.HealthCheckInterval > 0 && c.IdleTimeout < c.HealthCheckInterval {
		warnings = append(warnings, fmt.Sprintf("pool idleTimeout=%v is shorter than healthCheckInterval=%v", c.IdleTimeout, c.HealthCheckInterval))
	}
	return warnings, nil
}

// LangServerConfig configures how server processes are launched and talked to.
type LangServerConfig struct {
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
	Env        []string `yaml:"env"`
	LanguageID string   `yaml:"languageId"`
	// CacheDirectory is the server's index cache, relative to the workspace root unless absolute.
	CacheDirectory string `yaml:"cacheDirectory"`
	// IndexThreads is passed to the server. Zero uses one per CPU.
	IndexThreads      int           `yaml:"indexThreads"`
	StartupTimeout    time.Duration `yaml:"startupTimeout"`
	RequestTimeout    time.Duration `yaml:"requestTimeout"`
	HealthProbeMethod string        `yaml:"healthProbeMethod"`
}

// WithDefaults returns a copy with zero fields set to their defaults.
func (c LangServerConfig) WithDefaults() LangServerConfig {
	if c.Command == "" {
		c.Command = _defaultCommand
	}
	if c.LanguageID == "" {
		c.LanguageID = _defaultLanguageID
	}
	if c.CacheDirectory == "" {
		c.CacheDirectory = _defaultCacheDirectory
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = _defaultStartupTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = _defaultRequestTimeout
	}
	if c.HealthProbeMethod == "" {
		c.HealthProbeMethod = _defaultHealthProbeMethod
	}
	return c
}

// EffectiveIndexThreads is the thread count handed to the server.
func (c LangServerConfig) EffectiveIndexThreads() int {
	if c.IndexThreads > 0 {
		return c.IndexThreads
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 2
}

// Validate returns an error for unusable values and warnings for suspicious ones.
func (c LangServerConfig) Validate() (warnings []string, err error) {
	if c.Command == "" {
		return nil, fmt.Errorf("langserver command is required")
	}
	if c.RequestTimeout <= 0 {
		return nil, fmt.Errorf("langserver requestTimeout must be positive, got %v", c.RequestTimeout)
	}
	if c.StartupTimeout <= 0 {
		return nil, fmt.Errorf("langserver startupTimeout must be positive, got %v", c.StartupTimeout)
	}
	if c.RequestTimeout < _minRequestTimeout {
		warnings = append(warnings, fmt.Sprintf("langserver requestTimeout=%v is very low", c.RequestTimeout))
	}
	return warnings, nil
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Capacity int `yaml:"capacity"`
	// Watch enables proactive invalidation from file system events.
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// WithDefaults returns a copy with zero fields set to their defaults.
func (c CacheConfig) WithDefaults() CacheConfig {
	if c.Capacity == 0 {
		c.Capacity = _defaultCacheCapacity
	}
	if c.Debounce == 0 {
		c.Debounce = _defaultDebounce
	}
	return c
}

// Validate returns an error for unusable values and warnings for suspicious ones.
func (c CacheConfig) Validate() (warnings []string, err error) {
	if c.Capacity < 1 {
		return nil, fmt.Errorf("cache capacity must be >= 1, got %d", c.Capacity)
	}
	if c.Capacity < _minCacheCapacity {
		warnings = append(warnings, fmt.Sprintf("cache capacity=%d is very low", c.Capacity))
	}
	return warnings, nil
}

// WorkspaceConfig identifies the source tree served by the language servers.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// DependencyConfig bounds the expansion of dependency graphs.
type DependencyConfig struct {
	// MaxDepth caps the level a caller may ask for.
	MaxDepth int `yaml:"maxDepth"`
	// MaxNodesPerLevel caps the functions collected at one level of one direction.
	MaxNodesPerLevel int `yaml:"maxNodesPerLevel"`
}

// WithDefaults returns a copy with zero fields set to their defaults.
func (c DependencyConfig) WithDefaults() DependencyConfig {
	if c.MaxDepth == 0 {
		c.MaxDepth = _defaultMaxDepth
	}
	if c.MaxNodesPerLevel == 0 {
		c.MaxNodesPerLevel = _defaultMaxNodesPerLevel
	}
	return c
}

// Validate returns an error for unusable values and warnings for suspicious ones.
func (c DependencyConfig) Validate() (warnings []string, err error) {
	if c.MaxDepth < 1 {
		return nil, fmt.Errorf("dependency maxDepth must be >= 1, got %d", c.MaxDepth)
	}
	if c.MaxNodesPerLevel < 1 {
		return nil, fmt.Errorf("dependency maxNodesPerLevel must be >= 1, got %d", c.MaxNodesPerLevel)
	}
	if c.MaxDepth > _maxReasonableDepth {
		warnings = append(warnings, fmt.Sprintf("dependency maxDepth=%d is very high and may use a lot of memory", c.MaxDepth))
	}
	if c.MaxNodesPerLevel < _minNodesPerLevel {
		warnings = append(warnings, fmt.Sprintf("dependency maxNodesPerLevel=%d is very low", c.MaxNodesPerLevel))
	}
	return warnings, nil
}
