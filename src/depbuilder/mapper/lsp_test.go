package mapper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/factory"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"go.lsp.dev/protocol"
)

func TestURIRoundTrip(t *testing.T) {
	u := PathToURI("/ws/src/a b.cc")
	assert.Equal(t, protocol.DocumentURI("file:///ws/src/a%20b.cc"), u)
	assert.Equal(t, "/ws/src/a b.cc", URIToPath(u))

	assert.Equal(t, "untitled:1", URIToPath("untitled:1"))
	assert.Equal(t, "%%%", URIToPath("%%%"))
}

func TestRequestToLSP(t *testing.T) {
	req := &entity.Request{Path: "/ws/a.cc", Position: entity.Position{Line: 3, Character: 7}}
	tests := []struct {
		method     entity.Method
		lspMethod  string
		wantParams interface{}
	}{
		{
			method:    entity.MethodSymbolLookup,
			lspMethod: protocol.MethodTextDocumentDefinition,
			wantParams: &protocol.DefinitionParams{
				TextDocumentPositionParams: RequestToPositionParams(req),
			},
		},
		{
			method:    entity.MethodReferences,
			lspMethod: protocol.MethodTextDocumentReferences,
			wantParams: &protocol.ReferenceParams{
				TextDocumentPositionParams: RequestToPositionParams(req),
				Context:                    protocol.ReferenceContext{IncludeDeclaration: true},
			},
		},
		{
			method:    entity.MethodTypeDefinition,
			lspMethod: protocol.MethodTextDocumentTypeDefinition,
			wantParams: &protocol.TypeDefinitionParams{
				TextDocumentPositionParams: RequestToPositionParams(req),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			r := *req
			r.Method = tt.method
			method, params, err := RequestToLSP(&r)
			require.NoError(t, err)
			assert.Equal(t, tt.lspMethod, method)
			assert.Equal(t, tt.wantParams, params)
		})
	}

	t.Run("workspace symbol", func(t *testing.T) {
		method, params, err := RequestToLSP(&entity.Request{Method: entity.MethodWorkspaceSymbol, Query: "Foo"})
		require.NoError(t, err)
		assert.Equal(t, protocol.MethodWorkspaceSymbol, method)
		assert.Equal(t, &protocol.WorkspaceSymbolParams{Query: "Foo"}, params)
	})

	t.Run("document symbol", func(t *testing.T) {
		method, params, err := RequestToLSP(&entity.Request{Method: entity.MethodDocumentSymbol, Path: "/ws/a.cc"})
		require.NoError(t, err)
		assert.Equal(t, protocol.MethodTextDocumentDocumentSymbol, method)
		assert.Equal(t, &protocol.DocumentSymbolParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: PathToURI("/ws/a.cc")},
		}, params)
	})

	t.Run("call hierarchy is not a single call", func(t *testing.T) {
		_, _, err := RequestToLSP(&entity.Request{Method: entity.MethodCallHierarchy})
		assert.True(t, errors.IsBadRequest(err))
	})

	pos := RequestToPositionParams(req)
	assert.Equal(t, uint32(3), pos.Position.Line)
	assert.Equal(t, uint32(7), pos.Position.Character)
}

func TestDecodeLocations(t *testing.T) {
	loc := factory.Location("/ws/b.h")
	single, err := json.Marshal(loc)
	require.NoError(t, err)
	many, err := json.Marshal([]protocol.Location{loc, factory.Location("/ws/c.h")})
	require.NoError(t, err)
	links, err := json.Marshal([]protocol.LocationLink{{
		TargetURI:            PathToURI("/ws/d.h"),
		TargetRange:          factory.Range(),
		TargetSelectionRange: loc.Range,
	}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
		want    []string
		wantErr bool
	}{
		{name: "null", payload: "null", want: []string{}},
		{name: "empty", payload: "", want: []string{}},
		{name: "single", payload: string(single), want: []string{"/ws/b.h"}},
		{name: "array", payload: string(many), want: []string{"/ws/b.h", "/ws/c.h"}},
		{name: "links", payload: string(links), want: []string{"/ws/d.h"}},
		{name: "empty array", payload: "[]", want: []string{}},
		{name: "garbage", payload: `"nope"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeLocations(json.RawMessage(tt.payload))
			if tt.wantErr {
				assert.True(t, errors.Is(err, errors.ProtocolError), "got %v", err)
				return
			}
			require.NoError(t, err)
			paths := make([]string, 0, len(got))
			for _, l := range got {
				paths = append(paths, l.Path)
			}
			assert.Equal(t, tt.want, paths)
		})
	}

	got, err := DecodeLocations(single)
	require.NoError(t, err)
	assert.Equal(t, ProtocolToRange(loc.Range), got[0].Range)
}

func TestDecodeSymbols(t *testing.T) {
	payload, err := json.Marshal([]protocol.SymbolInformation{factory.SymbolInformation("Widget", "ui", "/ws/w.h")})
	require.NoError(t, err)

	symbols, err := DecodeSymbols(payload)
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "Widget", symbols[0].Name)
	assert.Equal(t, "Class", symbols[0].Kind)
	assert.Equal(t, "ui", symbols[0].Container)
	assert.Equal(t, "/ws/w.h", symbols[0].Location.Path)

	symbols, err = DecodeSymbols(json.RawMessage("null"))
	require.NoError(t, err)
	assert.Empty(t, symbols)

	_, err = DecodeSymbols(json.RawMessage("{"))
	assert.True(t, errors.Is(err, errors.ProtocolError))
}

func TestDecodeCallHierarchy(t *testing.T) {
	root := factory.CallHierarchyItem("run", "/ws/a.cc")
	caller := factory.CallHierarchyItem("main", "/ws/main.cc")
	callee := factory.CallHierarchyItem("step", "/ws/b.cc")
	payload, err := json.Marshal(CallHierarchyPayload{
		Item:     &root,
		Incoming: []protocol.CallHierarchyIncomingCall{{From: caller, FromRanges: []protocol.Range{factory.Range()}}},
		Outgoing: []protocol.CallHierarchyOutgoingCall{{To: callee, FromRanges: []protocol.Range{factory.Range(), factory.Range()}}},
	})
	require.NoError(t, err)

	result, err := DecodeCallHierarchy(payload)
	require.NoError(t, err)
	require.NotNil(t, result.Item)
	assert.Equal(t, "run", result.Item.Name)
	assert.Equal(t, "Function", result.Item.Kind)
	assert.Equal(t, "/ws/a.cc", result.Item.Location.Path)
	assert.Equal(t, ProtocolToRange(root.Range), result.Item.Body)
	require.Len(t, result.Incoming, 1)
	assert.Equal(t, "main", result.Incoming[0].Item.Name)
	assert.Len(t, result.Incoming[0].Ranges, 1)
	require.Len(t, result.Outgoing, 1)
	assert.Equal(t, "step", result.Outgoing[0].Item.Name)
	assert.Len(t, result.Outgoing[0].Ranges, 2)

	empty, err := DecodeCallHierarchy(json.RawMessage(`{"item":null}`))
	require.NoError(t, err)
	assert.Nil(t, empty.Item)
	assert.Empty(t, empty.Incoming)

	_, err = DecodeCallHierarchy(json.RawMessage(`[`))
	assert.True(t, errors.Is(err, errors.ProtocolError))
}

func TestDecodeDocumentSymbols(t *testing.T) {
	method := protocol.DocumentSymbol{
		Name:           "run",
		Kind:           protocol.SymbolKindMethod,
		Range:          protocol.Range{Start: protocol.Position{Line: 4}, End: protocol.Position{Line: 9}},
		SelectionRange: protocol.Range{Start: protocol.Position{Line: 4, Character: 9}},
	}
	hierarchical, err := json.Marshal([]protocol.DocumentSymbol{{
		Name:           "Runner",
		Kind:           protocol.SymbolKindClass,
		Range:          protocol.Range{Start: protocol.Position{Line: 2}, End: protocol.Position{Line: 10}},
		SelectionRange: protocol.Range{Start: protocol.Position{Line: 2, Character: 6}},
		Children:       []protocol.DocumentSymbol{method},
	}})
	require.NoError(t, err)

	symbols, err := DecodeDocumentSymbols(hierarchical)
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, "Runner", symbols[0].Name)
	assert.False(t, symbols[0].Callable)
	assert.Empty(t, symbols[0].Container)
	assert.Equal(t, entity.DocumentSymbol{
		Name:      "run",
		Kind:      "Method",
		Container: "Runner",
		Range:     entity.Range{Start: entity.Position{Line: 4}, End: entity.Position{Line: 9}},
		Selection: entity.Position{Line: 4, Character: 9},
		Callable:  true,
	}, symbols[1])

	info := protocol.SymbolInformation{
		Name:          "helper",
		Kind:          protocol.SymbolKindFunction,
		Location:      protocol.Location{URI: PathToURI("/ws/a.cc"), Range: protocol.Range{Start: protocol.Position{Line: 12, Character: 5}}},
		ContainerName: "ns",
	}
	flat, err := json.Marshal([]protocol.SymbolInformation{info})
	require.NoError(t, err)
	symbols, err = DecodeDocumentSymbols(flat)
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "ns", symbols[0].Container)
	assert.Equal(t, entity.Position{Line: 12, Character: 5}, symbols[0].Selection)
	assert.True(t, symbols[0].Callable)

	symbols, err = DecodeDocumentSymbols(json.RawMessage("null"))
	require.NoError(t, err)
	assert.Empty(t, symbols)

	_, err = DecodeDocumentSymbols(json.RawMessage(`"nope"`))
	assert.True(t, errors.Is(err, errors.ProtocolError))
}
