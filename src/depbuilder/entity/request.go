package entity

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
)

// Position is a zero-based line and character offset within a file.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Valid reports whether both fields are non-negative.
func (p Position) Valid() bool {
	return p.Line >= 0 && p.Character >= 0
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Request is a single validated query against a language server.
type Request struct {
	// CorrelationID is assigned at dispatch time and links the request to its response.
	CorrelationID string
	Method        Method
	// Path is normalized and absolute. Empty for workspace symbol search.
	Path     string
	Position Position
	// Query is the search text for workspace symbol search.
	Query string
}

// Validate checks the structural rules of a request. File existence is checked by the caller.
func (r *Request) Validate() error {
	if !r.Method.Valid() {
		return errors.Wrap(errors.InvalidRequest, &errors.UnsupportedMethodError{Method: r.Method.String()})
	}

	if r.Method == MethodWorkspaceSymbol {
		if strings.TrimSpace(r.Query) == "" {
			return errors.Newf(errors.InvalidRequest, "empty workspace symbol query")
		}
		return nil
	}

	if !r.Position.Valid() {
		return errors.Newf(errors.InvalidRequest, "position %s must be non-negative", r.Position)
	}
	if r.Path == "" || !filepath.IsAbs(r.Path) {
		return errors.Newf(errors.InvalidRequest, "path %q must be absolute", r.Path)
	}
	if filepath.Clean(r.Path) != r.Path {
		return errors.Newf(errors.InvalidRequest, "path %q is not normalized", r.Path)
	}
	return nil
}

// PositionLabel is the position formatted for logs and errors, or empty when not applicable.
func (r *Request) PositionLabel() string {
	if !r.Method.RequiresPosition() {
		return ""
	}
	return r.Position.String()
}
