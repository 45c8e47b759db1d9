package entity

import (
	"math"
	"time"
)

// Range is a span between two positions in a file.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a range within a file identified by absolute path.
type Location struct {
	Path  string `json:"path"`
	Range Range  `json:"range"`
}

// ResultMeta is attached to every query result. Durations are numbers of milliseconds on the wire.
type ResultMeta struct {
	Cached    bool    `json:"cached"`
	ElapsedMs float64 `json:"elapsedMs"`
}

// NewResultMeta returns the meta of a result obtained in elapsed.
func NewResultMeta(cached bool, elapsed time.Duration) ResultMeta {
	return ResultMeta{Cached: cached, ElapsedMs: Milliseconds(elapsed)}
}

// Milliseconds converts d into fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FromMilliseconds is the inverse of Milliseconds.
func FromMilliseconds(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}

// SymbolResult is the output of lookupSymbol.
type SymbolResult struct {
	ResultMeta
	Path        string     `json:"path"`
	Position    Position   `json:"position"`
	Definitions []Location `json:"definitions"`
	// Snippet is the source text of the first definition's range, when readable.
	Snippet string `json:"snippet,omitempty"`
}

// CallHierarchyItem is one function node in a call hierarchy.
type CallHierarchyItem struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Detail   string   `json:"detail,omitempty"`
	Location Location `json:"location"`
	// Body spans the whole definition, Location.Range only its name.
	Body Range `json:"body"`
}

// CallSite is a caller or callee of the root item, with the ranges of the calls.
type CallSite struct {
	Item   CallHierarchyItem `json:"item"`
	Ranges []Range           `json:"ranges"`
}

// CallHierarchyResult is the output of callHierarchy. Item is nil when the position is not a callable.
type CallHierarchyResult struct {
	ResultMeta
	Item     *CallHierarchyItem `json:"item"`
	Incoming []CallSite         `json:"incoming"`
	Outgoing []CallSite         `json:"outgoing"`
}

// ReferencesResult is the output of findReferences.
type ReferencesResult struct {
	ResultMeta
	Locations []Location `json:"locations"`
}

// TypeDefinitionResult is the output of typeDefinition.
type TypeDefinitionResult struct {
	ResultMeta
	Definitions []Location `json:"definitions"`
}

// Symbol is one workspace symbol match.
type Symbol struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Container string   `json:"container,omitempty"`
	Location  Location `json:"location"`
}

// WorkspaceSymbolsResult is the output of workspaceSymbols.
type WorkspaceSymbolsResult struct {
	ResultMeta
	Query   string   `json:"query"`
	Symbols []Symbol `json:"symbols"`
}

// DocumentSymbol is one symbol declared in a file. Container names the enclosing symbol, if any.
type DocumentSymbol struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Detail    string   `json:"detail,omitempty"`
	Container string   `json:"container,omitempty"`
	Range     Range    `json:"range"`
	Selection Position `json:"selection"`
	Callable  bool     `json:"callable"`
}

// DocumentSymbolsResult is the output of documentSymbols.
type DocumentSymbolsResult struct {
	ResultMeta
	Path    string           `json:"path"`
	Symbols []DocumentSymbol `json:"symbols"`
}

// DependencyNode is a function reached while expanding a dependency graph.
// Level 1 holds the direct callees or callers of the root.
type DependencyNode struct {
	Item       CallHierarchyItem `json:"item"`
	Level      int               `json:"level"`
	Definition string            `json:"definition,omitempty"`
}

// DependencyResult is the output of dependencies and componentDependencies.
// Successors are functions the root calls, transitively; Predecessors call it.
type DependencyResult struct {
	ResultMeta
	Root         *CallHierarchyItem `json:"root"`
	Definition   string             `json:"definition,omitempty"`
	Level        int                `json:"level"`
	Successors   []DependencyNode   `json:"successors"`
	Predecessors []DependencyNode   `json:"predecessors"`
	// Truncated is set when a level hit the per-level node limit.
	Truncated bool `json:"truncated"`
}

// RangeDependenciesResult is the output of rangeDependencies: one graph per callable symbol in the lines.
type RangeDependenciesResult struct {
	ResultMeta
	Path       string             `json:"path"`
	StartLine  int                `json:"startLine"`
	EndLine    int                `json:"endLine"`
	Components []DependencyResult `json:"components"`
}

// HealthStatus reports the state of the service and its pool.
type HealthStatus struct {
	Healthy       bool                `json:"healthy"`
	ServerCommand string              `json:"serverCommand"`
	ServerVersion string              `json:"serverVersion,omitempty"`
	WorkspaceRoot string              `json:"workspaceRoot"`
	Handles       []HandleInfo        `json:"handles"`
	CacheEntries  int                 `json:"cacheEntries"`
	CacheCapacity int                 `json:"cacheCapacity"`
	Metrics       PoolMetricsSnapshot `json:"metrics"`
	Warnings      []string            `json:"warnings,omitempty"`
}

// InvalidateResult is the output of invalidateFile.
type InvalidateResult struct {
	Path        string `json:"path"`
	Invalidated int    `json:"invalidated"`
}
