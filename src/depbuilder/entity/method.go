package entity

import "fmt"

// Method is a supported query kind.
type Method int

const (
	// MethodUnknown is the zero value and never valid.
	MethodUnknown Method = iota
	// MethodSymbolLookup resolves the definition of the symbol at a position.
	MethodSymbolLookup
	// MethodCallHierarchy lists callers and callees of the function at a position.
	MethodCallHierarchy
	// MethodReferences lists every reference to the symbol at a position.
	MethodReferences
	// MethodTypeDefinition resolves the type of the symbol at a position.
	MethodTypeDefinition
	// MethodWorkspaceSymbol searches symbols across the workspace by name.
	MethodWorkspaceSymbol
	// MethodDocumentSymbol lists the symbols declared in a file.
	MethodDocumentSymbol
)

var _methodNames = map[Method]string{
	MethodSymbolLookup:    "lookupSymbol",
	MethodCallHierarchy:   "callHierarchy",
	MethodReferences:      "findReferences",
	MethodTypeDefinition:  "typeDefinition",
	MethodWorkspaceSymbol: "workspaceSymbols",
	MethodDocumentSymbol:  "documentSymbols",
}

// Methods returns all supported methods.
func Methods() []Method {
	return []Method{
		MethodSymbolLookup,
		MethodCallHierarchy,
		MethodReferences,
		MethodTypeDefinition,
		MethodWorkspaceSymbol,
		MethodDocumentSymbol,
	}
}

// ParseMethod maps a public method name back to its Method.
func ParseMethod(name string) (Method, bool) {
	for m, n := range _methodNames {
		if n == name {
			return m, true
		}
	}
	return MethodUnknown, false
}

func (m Method) String() string {
	if name, ok := _methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Valid reports whether m is a supported method.
func (m Method) Valid() bool {
	_, ok := _methodNames[m]
	return ok
}

// RequiresDocument reports whether the method targets a single file, which is opened on the server first.
func (m Method) RequiresDocument() bool {
	return m.Valid() && m != MethodWorkspaceSymbol
}

// RequiresPosition reports whether the method targets a file position.
func (m Method) RequiresPosition() bool {
	return m.RequiresDocument() && m != MethodDocumentSymbol
}

// Cacheable reports whether results can be keyed by file content.
// Workspace-wide searches do not depend on a single file and are never cached.
func (m Method) Cacheable() bool {
	return m.RequiresDocument()
}
