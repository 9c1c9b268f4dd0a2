package registry

import (
	"go.uber.org/fx"

	"trade_router/internal/modules/registry/service"
	"trade_router/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("registry",
		fx.Provide(
			service.NewRegistry,
			service.NewRouter,
		),
		fx.Invoke(func(r *service.Registry) {
			logger.Info("routing table: %v", r.Table())
		}),
	)
}
