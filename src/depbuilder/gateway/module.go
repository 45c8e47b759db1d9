package gateway

import (
	"github.com/uber/depbuilder/src/depbuilder/gateway/langserver"
	"go.uber.org/fx"
)

// Module provides the outbound language server gateway.
var Module = fx.Options(
	fx.Provide(langserver.NewSpawner),
)
