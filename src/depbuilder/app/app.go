package app

import (
	"context"
	"time"

	tally "github.com/uber-go/tally/v4"
	"github.com/uber/depbuilder/src/depbuilder/gateway"
	"github.com/uber/depbuilder/src/depbuilder/handler"
	"github.com/uber/depbuilder/src/depbuilder/internal/clock"
	"github.com/uber/depbuilder/src/depbuilder/internal/core"
	"github.com/uber/depbuilder/src/depbuilder/internal/executor"
	"github.com/uber/depbuilder/src/depbuilder/internal/fs"
	"github.com/uber/depbuilder/src/depbuilder/internal/jsonrpcfx"
	"github.com/uber/depbuilder/src/depbuilder/internal/metrics"
	"github.com/uber/depbuilder/src/depbuilder/internal/serverinfofile"
	"go.uber.org/fx"
)

// Module defines the depbuilder application module.
var Module = fx.Options(
	gateway.Module, // outbounds
	handler.Module, // inbounds
	jsonrpcfx.Module,
	fs.Module,
	executor.Module,
	serverinfofile.Module,
	clock.Module,
	metrics.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(func(lc fx.Lifecycle) tally.Scope {
		rs, closer := tally.NewRootScope(tally.ScopeOptions{
			Tags: map[string]string{
				"service": "depbuilder",
			},
		}, 1*time.Second)

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})

		return rs
	}),
	fx.Decorate(decorateEnvContext),
	fx.Decorate(decorateConfigProvider),
	fx.Provide(func() Context {
		return Context{
			Environment:        EnvLocal,
			RuntimeEnvironment: EnvLocal,
		}
	}),
)
