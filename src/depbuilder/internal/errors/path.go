package errors

import (
	"fmt"
)

// FileNotFoundError indicates that a queried file does not exist.
type FileNotFoundError struct {
	Path string
}

// Error is an implementation of the error interface.
func (n *FileNotFoundError) Error() string {
	return fmt.Sprintf("file %q not found", n.Path)
}

// OutsideWorkspaceError indicates that a queried path resolves outside the workspace root.
type OutsideWorkspaceError struct {
	Path          string
	WorkspaceRoot string
}

// Error is an implementation of the error interface.
func (n *OutsideWorkspaceError) Error() string {
	return fmt.Sprintf("path %q is outside workspace root %q", n.Path, n.WorkspaceRoot)
}

// UnsupportedMethodError indicates that a query method is not one of the supported kinds.
type UnsupportedMethodError struct {
	Method string
}

// Error is an implementation of the error interface.
func (n *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported method %q", n.Method)
}

// SymbolNotFoundError indicates that no symbol of the given name is declared in a file.
type SymbolNotFoundError struct {
	Name string
	Path string
}

// Error is an implementation of the error interface.
func (n *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("symbol %q not found in %q", n.Name, n.Path)
}
