package dependency

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
)

const (
	_methodDependencies          = "dependencies"
	_methodComponentDependencies = "componentDependencies"
	_methodRangeDependencies     = "rangeDependencies"
)

// direction selects which side of a call hierarchy a dependency graph follows.
type direction func(*entity.CallHierarchyResult) []entity.CallSite

func successors(r *entity.CallHierarchyResult) []entity.CallSite   { return r.Outgoing }
func predecessors(r *entity.CallHierarchyResult) []entity.CallSite { return r.Incoming }

// expansion is one side of a dependency graph.
type expansion struct {
	nodes     []entity.DependencyNode
	truncated bool
	cached    bool
}

// Dependencies implements Service.
// Every node is expanded through CallHierarchy, so repeated graphs are served from the cache.
func (s *service) Dependencies(ctx context.Context, path string, pos entity.Position, level int) (*entity.DependencyResult, error) {
	start := time.Now()
	level = s.clampLevel(level)

	root, err := s.CallHierarchy(ctx, path, pos)
	if err != nil {
		return nil, err
	}
	result := &entity.DependencyResult{
		Level:        level,
		Successors:   []entity.DependencyNode{},
		Predecessors: []entity.DependencyNode{},
	}
	if root.Item == nil {
		result.ResultMeta = entity.NewResultMeta(root.Cached, time.Since(start))
		return result, nil
	}
	result.Root = root.Item
	result.Definition = s.definition(*root.Item)

	down, err := s.expand(ctx, root, level, successors)
	if err != nil {
		return nil, errors.WithQuery(err, _methodDependencies, path, positionLabel(pos))
	}
	up, err := s.expand(ctx, root, level, predecessors)
	if err != nil {
		return nil, errors.WithQuery(err, _methodDependencies, path, positionLabel(pos))
	}

	result.Successors = down.nodes
	result.Predecessors = up.nodes
	result.Truncated = down.truncated || up.truncated
	result.ResultMeta = entity.NewResultMeta(root.Cached && down.cached && up.cached, time.Since(start))

	s.logger.Debugw("expanded dependencies",
		"root", root.Item.Name,
		"level", level,
		"successors", len(result.Successors),
		"predecessors", len(result.Predecessors),
		"truncated", result.Truncated,
	)
	return result, nil
}

// expand walks one direction breadth first. A function is listed once, at the first level it is reached.
func (s *service) expand(ctx context.Context, root *entity.CallHierarchyResult, level int, next direction) (expansion, error) {
	out := expansion{nodes: []entity.DependencyNode{}, cached: true}
	seen := map[string]struct{}{nodeKey(*root.Item): {}}
	frontier := []*entity.CallHierarchyResult{root}

	for depth := 1; depth <= level && len(frontier) > 0; depth++ {
		var items []entity.CallHierarchyItem
	collect:
		for _, r := range frontier {
			for _, site := range next(r) {
				key := nodeKey(site.Item)
				if _, ok := seen[key]; ok {
					continue
				}
				if len(items) == s.deps.MaxNodesPerLevel {
					out.truncated = true
					break collect
				}
				seen[key] = struct{}{}
				items = append(items, site.Item)
			}
		}

		frontier = nil
		for _, item := range items {
			out.nodes = append(out.nodes, entity.DependencyNode{Item: item, Level: depth, Definition: s.definition(item)})
			if depth == level {
				continue
			}

			expanded, err := s.CallHierarchy(ctx, item.Location.Path, item.Location.Range.Start)
			if err != nil {
				if !skippable(err) {
					return out, err
				}
				s.logger.Debugw("not expanding dependency", "name", item.Name, "file", item.Location.Path, "error", err)
				continue
			}
			out.cached = out.cached && expanded.Cached
			if expanded.Item != nil {
				frontier = append(frontier, expanded)
			}
		}
	}
	return out, nil
}

// ComponentDependencies implements Service.
func (s *service) ComponentDependencies(ctx context.Context, path, name string, level int) (*entity.DependencyResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.WithQuery(errors.Newf(errors.InvalidRequest, "component name must not be blank"),
			_methodComponentDependencies, path, "")
	}

	symbols, err := s.DocumentSymbols(ctx, path)
	if err != nil {
		return nil, err
	}
	for _, sym := range symbols.Symbols {
		if sym.Name == name {
			return s.Dependencies(ctx, symbols.Path, sym.Selection, level)
		}
	}
	return nil, errors.WithQuery(errors.Wrap(errors.InvalidRequest, &errors.SymbolNotFoundError{Name: name, Path: symbols.Path}),
		_methodComponentDependencies, symbols.Path, "")
}

// RangeDependencies implements Service.
func (s *service) RangeDependencies(ctx context.Context, path string, startLine, endLine, level int) (*entity.RangeDependenciesResult, error) {
	start := time.Now()
	if startLine < 0 || (endLine >= 0 && endLine < startLine) {
		return nil, errors.WithQuery(errors.Newf(errors.InvalidRequest, "invalid line range [%d, %d]", startLine, endLine),
			_methodRangeDependencies, path, "")
	}
	last := endLine
	if last < 0 {
		last = math.MaxInt
	}

	symbols, err := s.DocumentSymbols(ctx, path)
	if err != nil {
		return nil, err
	}
	result := &entity.RangeDependenciesResult{
		Path:       symbols.Path,
		StartLine:  startLine,
		EndLine:    endLine,
		Components: []entity.DependencyResult{},
	}
	cached := symbols.Cached
	for _, sym := range symbols.Symbols {
		if !sym.Callable || sym.Range.End.Line < startLine || sym.Range.Start.Line > last {
			continue
		}
		deps, err := s.Dependencies(ctx, symbols.Path, sym.Selection, level)
		if err != nil {
			return nil, err
		}
		if deps.Root == nil {
			continue
		}
		cached = cached && deps.Cached
		result.Components = append(result.Components, *deps)
	}
	result.ResultMeta = entity.NewResultMeta(cached, time.Since(start))
	return result, nil
}

// clampLevel maps a requested level into [1, MaxDepth].
func (s *service) clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > s.deps.MaxDepth {
		return s.deps.MaxDepth
	}
	return level
}

// definition returns the source of an item's whole body.
func (s *service) definition(item entity.CallHierarchyItem) string {
	return s.snippet(entity.Location{Path: item.Location.Path, Range: item.Body})
}

// skippable reports whether a node that failed to expand can be left as a leaf.
// Functions outside the workspace, in files that are gone, or that the server cannot
// prepare do not abort the whole graph.
func skippable(err error) bool {
	return errors.Is(err, errors.InvalidRequest) || errors.Is(err, errors.ProtocolError)
}

func nodeKey(item entity.CallHierarchyItem) string {
	start := item.Location.Range.Start
	return fmt.Sprintf("%s:%d:%d:%s", item.Location.Path, start.Line, start.Character, item.Name)
}

func positionLabel(pos entity.Position) string {
	return fmt.Sprintf("%d:%d", pos.Line, pos.Character)
}
