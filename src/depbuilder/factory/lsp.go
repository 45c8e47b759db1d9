package factory

import (
	"math/rand"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// Range returns a random protocol.Range.
func Range() protocol.Range {
	start := protocol.Position{Line: uint32(rand.Intn(100)), Character: uint32(rand.Intn(100))}
	end := protocol.Position{Line: start.Line + uint32(rand.Intn(100)), Character: uint32(rand.Intn(100))}

	if start.Line == end.Line && start.Character > end.Character {
		end.Character = start.Character + uint32(rand.Intn(100))
	}

	return protocol.Range{
		Start: start,
		End:   end,
	}
}

// Location returns a protocol.Location in path with a random range.
func Location(path string) protocol.Location {
	return protocol.Location{URI: uri.File(path), Range: Range()}
}

// CallHierarchyItem returns a function item named name, declared in path.
func CallHierarchyItem(name, path string) protocol.CallHierarchyItem {
	r := Range()
	return protocol.CallHierarchyItem{
		Name:           name,
		Kind:           protocol.SymbolKindFunction,
		Detail:         "void " + name + "()",
		URI:            uri.File(path),
		Range:          r,
		SelectionRange: r,
	}
}

// SymbolInformation returns a workspace symbol named name, declared in path.
func SymbolInformation(name, container, path string) protocol.SymbolInformation {
	return protocol.SymbolInformation{
		Name:          name,
		Kind:          protocol.SymbolKindClass,
		Location:      Location(path),
		ContainerName: container,
	}
}
