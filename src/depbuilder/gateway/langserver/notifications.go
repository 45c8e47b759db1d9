package langserver

import (
	"encoding/json"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// Notifications specific to ccls.
const (
	MethodSkippedRanges     = "$ccls/publishSkippedRanges"
	MethodSemanticHighlight = "$ccls/publishSemanticHighlight"
)

// progressValue is the union of the begin, report and end progress payloads.
type progressValue struct {
	Kind       protocol.WorkDoneProgressKind `json:"kind"`
	Title      string                        `json:"title,omitempty"`
	Message    string                        `json:"message,omitempty"`
	Percentage uint32                        `json:"percentage,omitempty"`
}

type progressParams struct {
	Token protocol.ProgressToken `json:"token"`
	Value progressValue          `json:"value"`
}

func (c *Conn) handleNotification(n *jsonrpc2.Notification) {
	switch n.Method() {
	case protocol.MethodProgress:
		var p progressParams
		if err := json.Unmarshal(n.Params(), &p); err != nil {
			c.logger.Debugw("undecodable progress notification", "error", err)
			return
		}
		switch p.Value.Kind {
		case protocol.WorkDoneProgressKindBegin:
			c.logger.Infow("server progress started", "token", p.Token.String(), "title", p.Value.Title)
		case protocol.WorkDoneProgressKindEnd:
			c.logger.Infow("server progress finished", "token", p.Token.String(), "message", p.Value.Message)
		default:
			c.logger.Debugw("server progress", "token", p.Token.String(), "message", p.Value.Message, "percentage", p.Value.Percentage)
		}

	case protocol.MethodWindowLogMessage, protocol.MethodWindowShowMessage:
		var p protocol.LogMessageParams
		if err := json.Unmarshal(n.Params(), &p); err != nil {
			c.logger.Debugw("undecodable log message", "error", err)
			return
		}
		switch p.Type {
		case protocol.MessageTypeError:
			c.logger.Errorw("server message", "message", p.Message)
		case protocol.MessageTypeWarning:
			c.logger.Warnw("server message", "message", p.Message)
		default:
			c.logger.Debugw("server message", "message", p.Message)
		}

	case MethodSkippedRanges, MethodSemanticHighlight, protocol.MethodTextDocumentPublishDiagnostics:
		// Editor decorations, not needed for queries.

	default:
		c.logger.Debugw("unhandled server notification", "method", n.Method())
	}
}
