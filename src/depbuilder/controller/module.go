package controller

import (
	"github.com/uber/depbuilder/src/depbuilder/controller/dependency"
	"github.com/uber/depbuilder/src/depbuilder/controller/dispatcher"
	"github.com/uber/depbuilder/src/depbuilder/controller/filewatch"
	"github.com/uber/depbuilder/src/depbuilder/controller/pool"
	"github.com/uber/depbuilder/src/depbuilder/repository/cache"
	"go.uber.org/fx"
)

// Module provides the query service and the components it is built from.
var Module = fx.Options(
	fx.Provide(pool.New),
	fx.Provide(dispatcher.New),
	fx.Provide(cache.New),
	fx.Provide(cache.NewHasher),
	fx.Provide(filewatch.New),
	fx.Provide(dependency.New),
)
