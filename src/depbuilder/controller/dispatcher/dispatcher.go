// Package dispatcher sends one query over a leased language server connection and collects its answer.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uber/depbuilder/src/depbuilder/controller/pool"
	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/gateway/langserver"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"github.com/uber/depbuilder/src/depbuilder/internal/metrics"
	"github.com/uber/depbuilder/src/depbuilder/mapper"
	"github.com/uber/depbuilder/src/depbuilder/repository/cache"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const _nameKey = "dispatcher"

// Params defines the dependencies that will be available to the dispatcher.
type Params struct {
	fx.In

	Config  config.Provider
	Logger  *zap.SugaredLogger
	Metrics *metrics.Collector
}

// Dispatcher runs queries against leased connections.
type Dispatcher interface {
	// Dispatch sends req over the leased connection and waits for the answer.
	// File-scoped queries first make doc visible to the server.
	// A server error reply is returned as a Response with a Failure.
	// The caller keeps ownership of the lease and must release it with OutcomeFor(err).
	Dispatch(ctx context.Context, lease *pool.Lease, req *entity.Request, doc *cache.Content) (*entity.Response, error)
}

type dispatcher struct {
	languageID string
	timeout    time.Duration
	logger     *zap.SugaredLogger
	metrics    *metrics.Collector
}

// New creates a dispatcher using the "langserver" configuration block.
func New(p Params) (Dispatcher, error) {
	cfg, err := langserver.LoadConfig(p.Config)
	if err != nil {
		return nil, err
	}
	return NewDispatcher(cfg, p.Logger, p.Metrics), nil
}

// NewDispatcher creates a dispatcher for cfg.
func NewDispatcher(cfg entity.LangServerConfig, logger *zap.SugaredLogger, collector *metrics.Collector) Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if collector == nil {
		collector = metrics.New(nil, nil)
	}
	return &dispatcher{
		languageID: cfg.LanguageID,
		timeout:    cfg.RequestTimeout,
		logger:     logger.Named(_nameKey),
		metrics:    collector,
	}
}

// Dispatch implements Dispatcher.
func (d *dispatcher) Dispatch(ctx context.Context, lease *pool.Lease, req *entity.Request, doc *cache.Content) (*entity.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if lease == nil || lease.Released() {
		return nil, errors.Newf(errors.InvalidRequest, "dispatching %s without a lease", req.Method)
	}
	conn := lease.Conn()
	start := time.Now()

	if req.Method.RequiresDocument() {
		if doc == nil || doc.Path != req.Path {
			return nil, errors.Newf(errors.InvalidRequest, "no content for %s", req.Path)
		}
		if err := conn.SyncDocument(ctx, langserver.Document{
			URI:        mapper.PathToURI(req.Path),
			LanguageID: d.languageID,
			Hash:       doc.Hash,
			Text:       string(doc.Data),
		}); err != nil {
			return nil, err
		}
	}

	var (
		resp *entity.Response
		err  error
	)
	if req.Method == entity.MethodCallHierarchy {
		resp, err = d.callHierarchy(ctx, conn, req)
	} else {
		resp, err = d.call(ctx, conn, req)
	}
	elapsed := time.Since(start)
	d.metrics.Latency(req.Method.String(), elapsed, err != nil || (resp != nil && resp.Failure != nil))
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}

	req.CorrelationID = resp.CorrelationID
	resp.Elapsed = elapsed
	d.logger.Debugw("dispatched",
		"method", req.Method.String(),
		"correlationID", resp.CorrelationID,
		"conn", conn.ID(),
		"elapsed", elapsed,
		"failed", resp.Failure != nil,
	)
	return resp, nil
}

func (d *dispatcher) call(ctx context.Context, conn *langserver.Conn, req *entity.Request) (*entity.Response, error) {
	method, params, err := mapper.RequestToLSP(req)
	if err != nil {
		return nil, err
	}
	return conn.Call(ctx, method, params, d.timeout)
}

// callHierarchy prepares the item at the position, then collects incoming and outgoing calls
// of the first item. Each step has its own timeout.
func (d *dispatcher) callHierarchy(ctx context.Context, conn *langserver.Conn, req *entity.Request) (*entity.Response, error) {
	prepared, err := conn.Call(ctx, protocol.MethodTextDocumentPrepareCallHierarchy, &protocol.CallHierarchyPrepareParams{
		TextDocumentPositionParams: mapper.RequestToPositionParams(req),
	}, d.timeout)
	if err != nil || prepared.Failure != nil {
		return prepared, err
	}

	var items []protocol.CallHierarchyItem
	if err := json.Unmarshal(prepared.Payload, &items); err != nil {
		return nil, errors.Wrap(errors.ProtocolError, fmt.Errorf("decoding call hierarchy items: %w", err))
	}

	payload := mapper.CallHierarchyPayload{
		Incoming: []protocol.CallHierarchyIncomingCall{},
		Outgoing: []protocol.CallHierarchyOutgoingCall{},
	}
	if len(items) > 0 {
		payload.Item = &items[0]

		incoming, err := conn.Call(ctx, protocol.MethodCallHierarchyIncomingCalls, &protocol.CallHierarchyIncomingCallsParams{Item: items[0]}, d.timeout)
		if err != nil || incoming.Failure != nil {
			return incoming, err
		}
		if err := decodeCalls(incoming.Payload, &payload.Incoming); err != nil {
			return nil, err
		}

		outgoing, err := conn.Call(ctx, protocol.MethodCallHierarchyOutgoingCalls, &protocol.CallHierarchyOutgoingCallsParams{Item: items[0]}, d.timeout)
		if err != nil || outgoing.Failure != nil {
			return outgoing, err
		}
		if err := decodeCalls(outgoing.Payload, &payload.Outgoing); err != nil {
			return nil, err
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ProtocolError, fmt.Errorf("encoding call hierarchy: %w", err))
	}
	return entity.NewSuccessResponse(prepared.CorrelationID, data, 0), nil
}

// decodeCalls decodes a list of calls, leaving dst untouched for a null payload.
func decodeCalls(payload json.RawMessage, dst interface{}) error {
	if string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return errors.Wrap(errors.ProtocolError, fmt.Errorf("decoding calls: %w", err))
	}
	return nil
}
