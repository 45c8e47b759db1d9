package dependency

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"github.com/uber/depbuilder/src/depbuilder/mapper"
	"go.lsp.dev/protocol"
)

// callGraph scripts the call hierarchy of a small program on the fake server:
//
//	main -> answer -> compute -> main
//	main -> printf (declared outside the workspace)
type callGraph struct {
	items   map[string]protocol.CallHierarchyItem
	callees map[string][]string
}

func newCallGraph(f *fixture) *callGraph {
	item := func(name, path string, line uint32) protocol.CallHierarchyItem {
		selection := protocol.Position{Line: line, Character: 4}
		return protocol.CallHierarchyItem{
			Name:           name,
			Kind:           protocol.SymbolKindFunction,
			URI:            mapper.PathToURI(path),
			Range:          protocol.Range{Start: protocol.Position{Line: line}, End: protocol.Position{Line: line + 2, Character: 1}},
			SelectionRange: protocol.Range{Start: selection, End: selection},
		}
	}
	return &callGraph{
		items: map[string]protocol.CallHierarchyItem{
			"main":    item("main", f.source, 2),
			"answer":  item("answer", f.header, 2),
			"compute": item("compute", f.header, 0),
			"printf":  item("printf", filepath.Join(filepath.Dir(f.root), "stdio.h"), 0),
		},
		callees: map[string][]string{
			"main":    {"answer", "printf"},
			"answer":  {"compute"},
			"compute": {"main"},
		},
	}
}

func (g *callGraph) install(f *fixture) {
	f.server.Handle(protocol.MethodTextDocumentPrepareCallHierarchy, func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var params protocol.CallHierarchyPrepareParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, err
		}
		for _, item := range g.items {
			if item.URI == params.TextDocument.URI && item.SelectionRange.Start.Line == params.Position.Line {
				return []protocol.CallHierarchyItem{item}, nil
			}
		}
		return []protocol.CallHierarchyItem{}, nil
	})
	f.server.Handle(protocol.MethodCallHierarchyOutgoingCalls, func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var params protocol.CallHierarchyOutgoingCallsParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, err
		}
		calls := []protocol.CallHierarchyOutgoingCall{}
		for _, name := range g.callees[params.Item.Name] {
			calls = append(calls, protocol.CallHierarchyOutgoingCall{To: g.items[name]})
		}
		return calls, nil
	})
	f.server.Handle(protocol.MethodCallHierarchyIncomingCalls, func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var params protocol.CallHierarchyIncomingCallsParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, err
		}
		calls := []protocol.CallHierarchyIncomingCall{}
		for caller, callees := range g.callees {
			for _, callee := range callees {
				if callee == params.Item.Name {
					calls = append(calls, protocol.CallHierarchyIncomingCall{From: g.items[caller]})
				}
			}
		}
		return calls, nil
	})
	f.server.Reply(protocol.MethodTextDocumentDocumentSymbol, []protocol.DocumentSymbol{
		{
			Name:           "Config",
			Kind:           protocol.SymbolKindStruct,
			Range:          protocol.Range{End: protocol.Position{Line: 0, Character: 10}},
			SelectionRange: protocol.Range{Start: protocol.Position{Character: 2}},
		},
		{
			Name:           "main",
			Kind:           protocol.SymbolKindFunction,
			Range:          g.items["main"].Range,
			SelectionRange: g.items["main"].SelectionRange,
		},
	})
}

func names(nodes []entity.DependencyNode) map[string]int {
	out := make(map[string]int, len(nodes))
	for _, n := range nodes {
		out[n.Item.Name] = n.Level
	}
	return out
}

func TestDependencies(t *testing.T) {
	f := newFixture(t, options{})
	newCallGraph(f).install(f)
	mainPos := entity.Position{Line: 2, Character: 4}

	result, err := f.service.Dependencies(context.Background(), f.source, mainPos, 2)
	require.NoError(t, err)
	require.NotNil(t, result.Root)
	assert.Equal(t, "main", result.Root.Name)
	assert.Equal(t, 2, result.Level)
	assert.Equal(t, "int main() {\n  return answer();\n}", result.Definition)
	assert.Equal(t, map[string]int{"answer": 1, "printf": 1, "compute": 2}, names(result.Successors))
	assert.Equal(t, map[string]int{"compute": 1, "answer": 2}, names(result.Predecessors))
	assert.False(t, result.Truncated)
	assert.False(t, result.Cached)

	for _, n := range result.Successors {
		if n.Item.Name == "answer" {
			assert.Equal(t, "int answer() {\n  return 42;\n}", n.Definition)
		}
		if n.Item.Name == "printf" {
			assert.Empty(t, n.Definition, "unreadable sources have no definition")
		}
	}

	// main, answer and compute were prepared once each; printf is outside the workspace.
	prepared := f.server.Calls(protocol.MethodTextDocumentPrepareCallHierarchy)
	assert.Equal(t, 3, prepared)

	again, err := f.service.Dependencies(context.Background(), f.source, mainPos, 2)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, result.Successors, again.Successors)
	assert.Equal(t, prepared, f.server.Calls(protocol.MethodTextDocumentPrepareCallHierarchy))
}

func TestDependenciesLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     int
		wantLevel int
		want      map[string]int
	}{
		{name: "zero means direct calls", level: 0, wantLevel: 1, want: map[string]int{"answer": 1, "printf": 1}},
		{name: "cycles are listed once", level: 3, wantLevel: 3, want: map[string]int{"answer": 1, "printf": 1, "compute": 2}},
		{name: "clamped to the configured depth", level: 99, wantLevel: 4, want: map[string]int{"answer": 1, "printf": 1, "compute": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, options{})
			newCallGraph(f).install(f)

			result, err := f.service.Dependencies(context.Background(), f.source, entity.Position{Line: 2, Character: 4}, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, result.Level)
			assert.Equal(t, tt.want, names(result.Successors))
		})
	}
}

func TestDependenciesTruncated(t *testing.T) {
	f := newFixture(t, options{nodesPerLevel: 1})
	newCallGraph(f).install(f)

	result, err := f.service.Dependencies(context.Background(), f.source, entity.Position{Line: 2, Character: 4}, 2)
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Equal(t, map[string]int{"answer": 1, "compute": 2}, names(result.Successors))
}

func TestDependenciesNotCallable(t *testing.T) {
	f := newFixture(t, options{})
	newCallGraph(f).install(f)

	result, err := f.service.Dependencies(context.Background(), f.source, entity.Position{Line: 0, Character: 0}, 2)
	require.NoError(t, err)
	assert.Nil(t, result.Root)
	assert.Empty(t, result.Successors)
	assert.Empty(t, result.Predecessors)
}

func TestDependenciesAbortOnCancel(t *testing.T) {
	f := newFixture(t, options{})
	newCallGraph(f).install(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.service.Dependencies(ctx, f.source, entity.Position{Line: 2, Character: 4}, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Cancelled), "got %v", err)
}

func TestComponentDependencies(t *testing.T) {
	f := newFixture(t, options{})
	newCallGraph(f).install(f)

	result, err := f.service.ComponentDependencies(context.Background(), f.source, "main", 1)
	require.NoError(t, err)
	require.NotNil(t, result.Root)
	assert.Equal(t, "main", result.Root.Name)
	assert.Equal(t, map[string]int{"answer": 1, "printf": 1}, names(result.Successors))

	_, err = f.service.ComponentDependencies(context.Background(), f.source, "missing", 1)
	require.Error(t, err)
	assert.True(t, errors.IsBadRequest(err), "got %v", err)
	var notFound *errors.SymbolNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "missing", notFound.Name)

	_, err = f.service.ComponentDependencies(context.Background(), f.source, " ", 1)
	assert.True(t, errors.IsBadRequest(err), "got %v", err)

	// The symbol list of an unchanged file is served from the cache.
	assert.Equal(t, 1, f.server.Calls(protocol.MethodTextDocumentDocumentSymbol))
}

func TestRangeDependencies(t *testing.T) {
	f := newFixture(t, options{})
	newCallGraph(f).install(f)

	tests := []struct {
		name      string
		start     int
		end       int
		wantRoots []string
		wantErr   bool
	}{
		{name: "whole file", start: 0, end: -1, wantRoots: []string{"main"}},
		{name: "inside the body", start: 3, end: 3, wantRoots: []string{"main"}},
		{name: "before any function", start: 0, end: 1, wantRoots: []string{}},
		{name: "negative start", start: -1, end: 2, wantErr: true},
		{name: "reversed", start: 4, end: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.service.RangeDependencies(context.Background(), f.source, tt.start, tt.end, 1)
			if tt.wantErr {
				assert.True(t, errors.IsBadRequest(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, f.source, result.Path)
			assert.Equal(t, tt.end, result.EndLine)
			roots := []string{}
			for _, c := range result.Components {
				roots = append(roots, c.Root.Name)
			}
			assert.Equal(t, tt.wantRoots, roots)
		})
	}
}

func TestDocumentSymbols(t *testing.T) {
	f := newFixture(t, options{})
	newCallGraph(f).install(f)

	result, err := f.service.DocumentSymbols(context.Background(), f.source)
	require.NoError(t, err)
	assert.Equal(t, f.source, result.Path)
	require.Len(t, result.Symbols, 2)
	assert.False(t, result.Symbols[0].Callable)
	assert.True(t, result.Symbols[1].Callable)
	assert.Equal(t, entity.Position{Line: 2, Character: 4}, result.Symbols[1].Selection)

	cached, err := f.service.DocumentSymbols(context.Background(), f.source)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, 1, f.server.Calls(protocol.MethodTextDocumentDocumentSymbol))
}
