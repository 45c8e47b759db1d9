package depbuilder

import (
	"context"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/mapper"
	"go.lsp.dev/jsonrpc2"
)

func (r *jsonRPCRouter) LookupSymbol(ctx context.Context, params *mapper.QueryParams) (interface{}, error) {
	return r.service.LookupSymbol(ctx, params.Path, params.Position())
}

func (r *jsonRPCRouter) CallHierarchy(ctx context.Context, params *mapper.QueryParams) (interface{}, error) {
	return r.service.CallHierarchy(ctx, params.Path, params.Position())
}

func (r *jsonRPCRouter) FindReferences(ctx context.Context, params *mapper.QueryParams) (interface{}, error) {
	return r.service.FindReferences(ctx, params.Path, params.Position())
}

func (r *jsonRPCRouter) TypeDefinition(ctx context.Context, params *mapper.QueryParams) (interface{}, error) {
	return r.service.TypeDefinition(ctx, params.Path, params.Position())
}

func (r *jsonRPCRouter) WorkspaceSymbols(ctx context.Context, params *mapper.QueryParams) (interface{}, error) {
	return r.service.WorkspaceSymbols(ctx, params.Query)
}

func (r *jsonRPCRouter) DocumentSymbols(ctx context.Context, params *mapper.QueryParams) (interface{}, error) {
	return r.service.DocumentSymbols(ctx, params.Path)
}

func (r *jsonRPCRouter) Dependencies(ctx context.Context, params *mapper.QueryParams) (interface{}, error) {
	return r.service.Dependencies(ctx, params.Path, params.Position(), params.Level)
}

func (r *jsonRPCRouter) ComponentDependencies(ctx context.Context, params *mapper.QueryParams) (interface{}, error) {
	return r.service.ComponentDependencies(ctx, params.Path, params.Name, params.Level)
}

func (r *jsonRPCRouter) RangeDependencies(ctx context.Context, params *mapper.QueryParams) (interface{}, error) {
	return r.service.RangeDependencies(ctx, params.Path, params.StartLine, params.LastLine(), params.Level)
}

func (r *jsonRPCRouter) InvalidateFile(ctx context.Context, params *mapper.QueryParams) (interface{}, error) {
	n, err := r.service.InvalidateFile(ctx, params.Path)
	if err != nil {
		return nil, err
	}
	return &entity.InvalidateResult{Path: params.Path, Invalidated: n}, nil
}

func (r *jsonRPCRouter) Health(ctx context.Context, _ *mapper.QueryParams) (interface{}, error) {
	return r.service.HealthStatus(ctx)
}

func (r *jsonRPCRouter) Metrics(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	return reply(ctx, r.service.MetricsSnapshot(), nil)
}

// Shutdown stops the service, answers, and then asks the application to exit.
func (r *jsonRPCRouter) Shutdown(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	if err := r.service.Shutdown(ctx); err != nil {
		return reply(ctx, nil, mapper.ErrorToJSONRPC(err))
	}
	if err := reply(ctx, nil, nil); err != nil {
		return err
	}

	if r.shutdowner != nil {
		if err := r.shutdowner.Shutdown(); err != nil {
			r.logger.Warnw("failed to request application shutdown", "error", err)
		}
	}
	return nil
}
