// Package mapper converts between entities, storage models and wire types.
package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// CallHierarchyPayload is the combined answer of the prepare, incoming and outgoing call hierarchy requests.
type CallHierarchyPayload struct {
	Item     *protocol.CallHierarchyItem           `json:"item"`
	Incoming []protocol.CallHierarchyIncomingCall `json:"incoming"`
	Outgoing []protocol.CallHierarchyOutgoingCall `json:"outgoing"`
}

// PathToURI converts an absolute path to a file URI.
func PathToURI(path string) protocol.DocumentURI {
	return uri.File(path)
}

// URIToPath converts a file URI back to a path. Other URIs are returned unchanged.
func URIToPath(u protocol.DocumentURI) string {
	parsed, err := url.ParseRequestURI(string(u))
	if err != nil || parsed.Scheme != uri.FileScheme {
		return string(u)
	}
	return filepath.FromSlash(parsed.Path)
}

// PositionToProtocol converts a validated, non-negative position.
func PositionToProtocol(p entity.Position) protocol.Position {
	return protocol.Position{Line: uint32(p.Line), Character: uint32(p.Character)}
}

// ProtocolToPosition converts a wire position.
func ProtocolToPosition(p protocol.Position) entity.Position {
	return entity.Position{Line: int(p.Line), Character: int(p.Character)}
}

// ProtocolToRange converts a wire range.
func ProtocolToRange(r protocol.Range) entity.Range {
	return entity.Range{Start: ProtocolToPosition(r.Start), End: ProtocolToPosition(r.End)}
}

// ProtocolToLocation converts a wire location.
func ProtocolToLocation(l protocol.Location) entity.Location {
	return entity.Location{Path: URIToPath(l.URI), Range: ProtocolToRange(l.Range)}
}

// RequestToPositionParams builds the document position shared by all file-scoped requests.
func RequestToPositionParams(req *entity.Request) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: PathToURI(req.Path)},
		Position:     PositionToProtocol(req.Position),
	}
}

// RequestToLSP maps a single-call request to its LSP method and params.
// Call hierarchy takes several calls and is not handled here.
func RequestToLSP(req *entity.Request) (string, interface{}, error) {
	switch req.Method {
	case entity.MethodSymbolLookup:
		return protocol.MethodTextDocumentDefinition, &protocol.DefinitionParams{
			TextDocumentPositionParams: RequestToPositionParams(req),
		}, nil
	case entity.MethodReferences:
		return protocol.MethodTextDocumentReferences, &protocol.ReferenceParams{
			TextDocumentPositionParams: RequestToPositionParams(req),
			Context:                    protocol.ReferenceContext{IncludeDeclaration: true},
		}, nil
	case entity.MethodTypeDefinition:
		return protocol.MethodTextDocumentTypeDefinition, &protocol.TypeDefinitionParams{
			TextDocumentPositionParams: RequestToPositionParams(req),
		}, nil
	case entity.MethodWorkspaceSymbol:
		return protocol.MethodWorkspaceSymbol, &protocol.WorkspaceSymbolParams{Query: req.Query}, nil
	case entity.MethodDocumentSymbol:
		return protocol.MethodTextDocumentDocumentSymbol, &protocol.DocumentSymbolParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: PathToURI(req.Path)},
		}, nil
	}
	return "", nil, errors.Wrap(errors.InvalidRequest, &errors.UnsupportedMethodError{Method: req.Method.String()})
}

// locationOrLink decodes either shape a definition result element can take.
type locationOrLink struct {
	URI         protocol.DocumentURI `json:"uri"`
	Range       protocol.Range       `json:"range"`
	TargetURI   protocol.DocumentURI `json:"targetUri"`
	TargetRange protocol.Range       `json:"targetSelectionRange"`
}

func (l locationOrLink) location() entity.Location {
	if l.TargetURI != "" {
		return ProtocolToLocation(protocol.Location{URI: l.TargetURI, Range: l.TargetRange})
	}
	return ProtocolToLocation(protocol.Location{URI: l.URI, Range: l.Range})
}

// DecodeLocations decodes a definition, type definition or references payload.
// The payload may be null, a single Location, or an array of Location or LocationLink.
func DecodeLocations(payload json.RawMessage) ([]entity.Location, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []entity.Location{}, nil
	}

	if trimmed[0] == '{' {
		var one locationOrLink
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, wrapErrDecode("location", err)
		}
		return []entity.Location{one.location()}, nil
	}

	var many []locationOrLink
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return nil, wrapErrDecode("locations", err)
	}
	locations := make([]entity.Location, 0, len(many))
	for _, l := range many {
		locations = append(locations, l.location())
	}
	return locations, nil
}

// DecodeSymbols decodes a workspace symbol payload.
func DecodeSymbols(payload json.RawMessage) ([]entity.Symbol, error) {
	var infos []protocol.SymbolInformation
	if err := json.Unmarshal(payload, &infos); err != nil {
		return nil, wrapErrDecode("symbols", err)
	}
	symbols := make([]entity.Symbol, 0, len(infos))
	for _, info := range infos {
		symbols = append(symbols, entity.Symbol{
			Name:      info.Name,
			Kind:      info.Kind.String(),
			Container: info.ContainerName,
			Location:  ProtocolToLocation(info.Location),
		})
	}
	return symbols, nil
}

// documentSymbolOrInfo decodes either element shape of a document symbol answer.
// Location is only set by the flat SymbolInformation shape.
type documentSymbolOrInfo struct {
	Name           string                 `json:"name"`
	Detail         string                 `json:"detail"`
	Kind           protocol.SymbolKind    `json:"kind"`
	Range          protocol.Range         `json:"range"`
	SelectionRange protocol.Range         `json:"selectionRange"`
	Children       []documentSymbolOrInfo `json:"children"`
	Location       *protocol.Location     `json:"location"`
	ContainerName  string                 `json:"containerName"`
}

// DecodeDocumentSymbols decodes a document symbol payload into a flat list in document order.
// Hierarchical answers are flattened depth first, each child naming its parent as container.
func DecodeDocumentSymbols(payload json.RawMessage) ([]entity.DocumentSymbol, error) {
	var elems []documentSymbolOrInfo
	if err := json.Unmarshal(payload, &elems); err != nil {
		return nil, wrapErrDecode("document symbols", err)
	}
	symbols := make([]entity.DocumentSymbol, 0, len(elems))
	return appendDocumentSymbols(symbols, elems, ""), nil
}

func appendDocumentSymbols(out []entity.DocumentSymbol, elems []documentSymbolOrInfo, container string) []entity.DocumentSymbol {
	for _, e := range elems {
		sym := entity.DocumentSymbol{
			Name:      e.Name,
			Kind:      e.Kind.String(),
			Detail:    e.Detail,
			Container: container,
			Range:     ProtocolToRange(e.Range),
			Selection: ProtocolToPosition(e.SelectionRange.Start),
			Callable:  IsCallable(e.Kind),
		}
		if e.Location != nil {
			sym.Container = e.ContainerName
			sym.Range = ProtocolToRange(e.Location.Range)
			sym.Selection = sym.Range.Start
		}
		out = append(out, sym)
		out = appendDocumentSymbols(out, e.Children, e.Name)
	}
	return out
}

// IsCallable reports whether symbols of kind k can root a call hierarchy.
func IsCallable(k protocol.SymbolKind) bool {
	switch k {
	case protocol.SymbolKindFunction, protocol.SymbolKindMethod, protocol.SymbolKindConstructor:
		return true
	}
	return false
}

// DecodeCallHierarchy decodes a CallHierarchyPayload into the result shape.
func DecodeCallHierarchy(payload json.RawMessage) (*entity.CallHierarchyResult, error) {
	var p CallHierarchyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, wrapErrDecode("call hierarchy", err)
	}

	result := &entity.CallHierarchyResult{
		Incoming: make([]entity.CallSite, 0, len(p.Incoming)),
		Outgoing: make([]entity.CallSite, 0, len(p.Outgoing)),
	}
	if p.Item == nil {
		return result, nil
	}
	item := CallHierarchyItemToEntity(*p.Item)
	result.Item = &item
	for _, call := range p.Incoming {
		result.Incoming = append(result.Incoming, entity.CallSite{
			Item:   CallHierarchyItemToEntity(call.From),
			Ranges: rangesToEntity(call.FromRanges),
		})
	}
	for _, call := range p.Outgoing {
		result.Outgoing = append(result.Outgoing, entity.CallSite{
			Item:   CallHierarchyItemToEntity(call.To),
			Ranges: rangesToEntity(call.FromRanges),
		})
	}
	return result, nil
}

// CallHierarchyItemToEntity converts a wire call hierarchy item.
func CallHierarchyItemToEntity(item protocol.CallHierarchyItem) entity.CallHierarchyItem {
	return entity.CallHierarchyItem{
		Name:   item.Name,
		Kind:   item.Kind.String(),
		Detail: item.Detail,
		Location: entity.Location{
			Path:  URIToPath(item.URI),
			Range: ProtocolToRange(item.SelectionRange),
		},
		Body: ProtocolToRange(item.Range),
	}
}

func rangesToEntity(ranges []protocol.Range) []entity.Range {
	out := make([]entity.Range, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, ProtocolToRange(r))
	}
	return out
}

func wrapErrDecode(what string, err error) error {
	return errors.Wrap(errors.ProtocolError, fmt.Errorf("decoding %s: %w", what, err))
}
