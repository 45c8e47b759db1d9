package mapper

import (
	"encoding/json"
	"fmt"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"go.lsp.dev/jsonrpc2"
)

// QueryParams are the params of every inbound query method.
type QueryParams struct {
	Path      string `json:"path,omitempty"`
	Line      int    `json:"line"`
	Character int    `json:"character"`
	Query     string `json:"query,omitempty"`

	// Name selects a component by its declared name.
	Name string `json:"name,omitempty"`
	// Level is how many calls deep a dependency graph is expanded.
	Level     int  `json:"level,omitempty"`
	StartLine int  `json:"startLine,omitempty"`
	EndLine   *int `json:"endLine,omitempty"`
}

// Position is the queried position.
func (p *QueryParams) Position() entity.Position {
	return entity.Position{Line: p.Line, Character: p.Character}
}

// LastLine is the inclusive end of a line range, or -1 for the end of the file.
func (p *QueryParams) LastLine() int {
	if p.EndLine == nil {
		return -1
	}
	return *p.EndLine
}

// RequestToQueryParams maps the parameters from a jsonrpc2.Request into QueryParams.
func RequestToQueryParams(req jsonrpc2.Request) (*QueryParams, error) {
	params := QueryParams{}
	if len(req.Params()) == 0 {
		return &params, nil
	}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return nil, wrapErrParse(err)
	}
	return &params, nil
}

func wrapErrParse(err error) error {
	return fmt.Errorf("%s: %w", jsonrpc2.ErrParse, err)
}
