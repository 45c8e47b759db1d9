package mapper

import (
	"encoding/json"

	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"go.lsp.dev/jsonrpc2"
)

// JSON-RPC server error codes for each failure category.
const (
	CodePoolExhausted  jsonrpc2.Code = -32001
	CodeConnectionLost jsonrpc2.Code = -32002
	CodeRequestTimeout jsonrpc2.Code = -32003
	CodeProtocolError  jsonrpc2.Code = -32004
	CodeCancelled      jsonrpc2.Code = -32005
)

var _categoryCodes = map[errors.Category]jsonrpc2.Code{
	errors.InvalidRequest: jsonrpc2.InvalidParams,
	errors.PoolExhausted:  CodePoolExhausted,
	errors.ConnectionLost: CodeConnectionLost,
	errors.RequestTimeout: CodeRequestTimeout,
	errors.ProtocolError:  CodeProtocolError,
	errors.Cancelled:      CodeCancelled,
}

// ErrorToJSONRPC maps a service error to a JSON-RPC error carrying the category name as data.
// Uncategorized errors become InternalError.
func ErrorToJSONRPC(err error) *jsonrpc2.Error {
	if err == nil {
		return nil
	}
	c, ok := errors.CategoryOf(err)
	if !ok {
		return jsonrpc2.NewError(jsonrpc2.InternalError, err.Error())
	}

	e := jsonrpc2.NewError(_categoryCodes[c], err.Error())
	data, _ := json.Marshal(c.String())
	raw := json.RawMessage(data)
	e.Data = &raw
	return e
}
