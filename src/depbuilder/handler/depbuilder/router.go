package depbuilder

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"github.com/uber/depbuilder/src/depbuilder/controller/dependency"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"github.com/uber/depbuilder/src/depbuilder/mapper"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Inbound methods.
const (
	MethodLookupSymbol     = "depbuilder/lookupSymbol"
	MethodCallHierarchy    = "depbuilder/callHierarchy"
	MethodFindReferences   = "depbuilder/findReferences"
	MethodTypeDefinition   = "depbuilder/typeDefinition"
	MethodWorkspaceSymbols = "depbuilder/workspaceSymbols"
	MethodDocumentSymbols  = "depbuilder/documentSymbols"
	MethodInvalidateFile   = "depbuilder/invalidateFile"
	MethodMetrics          = "depbuilder/metrics"
	MethodHealth           = "depbuilder/health"
	MethodShutdown         = "depbuilder/shutdown"

	MethodDependencies          = "depbuilder/dependencies"
	MethodComponentDependencies = "depbuilder/componentDependencies"
	MethodRangeDependencies     = "depbuilder/rangeDependencies"
)

// methodFunc answers one inbound method.
type methodFunc func(ctx context.Context, params *mapper.QueryParams) (interface{}, error)

type jsonRPCRouter struct {
	service    dependency.Service
	shutdowner fx.Shutdowner
	uuid       uuid.UUID
	stats      tally.Scope
	logger     *zap.SugaredLogger

	// ctx ends when the connection is removed.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// HandleReq handles routing for a single request.
// Queries run concurrently so that one slow query does not hold up the rest of the connection.
func (r *jsonRPCRouter) HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	case MethodLookupSymbol:
		return r.serve(ctx, reply, req, r.LookupSymbol)

	case MethodCallHierarchy:
		return r.serve(ctx, reply, req, r.CallHierarchy)

	case MethodFindReferences:
		return r.serve(ctx, reply, req, r.FindReferences)

	case MethodTypeDefinition:
		return r.serve(ctx, reply, req, r.TypeDefinition)

	case MethodWorkspaceSymbols:
		return r.serve(ctx, reply, req, r.WorkspaceSymbols)

	case MethodDocumentSymbols:
		return r.serve(ctx, reply, req, r.DocumentSymbols)

	case MethodDependencies:
		return r.serve(ctx, reply, req, r.Dependencies)

	case MethodComponentDependencies:
		return r.serve(ctx, reply, req, r.ComponentDependencies)

	case MethodRangeDependencies:
		return r.serve(ctx, reply, req, r.RangeDependencies)

	case MethodInvalidateFile:
		return r.serve(ctx, reply, req, r.InvalidateFile)

	case MethodHealth:
		return r.serve(ctx, reply, req, r.Health)

	case MethodMetrics:
		return r.Metrics(ctx, reply, req)

	case MethodShutdown:
		return r.Shutdown(ctx, reply, req)

	default:
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
}

func (r *jsonRPCRouter) UUID() uuid.UUID {
	return r.uuid
}

// serve decodes the params and answers req from a new goroutine.
func (r *jsonRPCRouter) serve(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, fn methodFunc) error {
	params, err := mapper.RequestToQueryParams(req)
	if err != nil {
		return reply(ctx, nil, mapper.ErrorToJSONRPC(errors.Wrap(errors.InvalidRequest, err)))
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		start := time.Now()
		scope := r.stats.Tagged(map[string]string{"method": req.Method()})
		result, err := fn(r.ctx, params)
		scope.Timer("latency").Record(time.Since(start))
		if err != nil {
			scope.Counter("errors").Inc(1)
			err = mapper.ErrorToJSONRPC(err)
			result = nil
		}

		if replyErr := reply(ctx, result, err); replyErr != nil {
			r.logger.Warnw("failed to reply", "method", req.Method(), "error", replyErr)
		}
	}()
	return nil
}

// close cancels the queries still running for this connection and waits for them to return.
func (r *jsonRPCRouter) close() {
	r.cancel()
	r.wg.Wait()
}
