package handler

import (
	controller "github.com/uber/depbuilder/src/depbuilder/controller"
	handler "github.com/uber/depbuilder/src/depbuilder/handler/depbuilder"
	"go.uber.org/fx"
)

// Module provides the depbuilder JSON-RPC handlers into an Fx application.
var Module = fx.Options(
	controller.Module,
	fx.Provide(handler.New),
	fx.Invoke(func(h handler.Handler) {}),
)
