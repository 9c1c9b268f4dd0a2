package dispatcher

import (
	"go.uber.org/fx"

	"trade_router/internal/modules/config"
	"trade_router/internal/modules/dispatcher/service"
	journalsvc "trade_router/internal/modules/journal/service"
	"trade_router/internal/modules/positionfeed"
	registrysvc "trade_router/internal/modules/registry/service"
	trading "trade_router/internal/modules/trading/service"
	"trade_router/internal/notify"
)

func Module() fx.Option {
	return fx.Module("dispatcher",
		fx.Provide(
			func(
				cfg *config.Config,
				router *registrysvc.Router,
				clients trading.Clients,
				feeds positionfeed.Feeds,
				journal journalsvc.Journal,
				notifier notify.Notifier,
			) *service.Dispatcher {
				placers := make(map[string]service.Placer, len(clients))
				for name, client := range clients {
					placers[name] = client
				}
				return service.NewDispatcher(cfg, router, placers, feeds, journal, notifier)
			},
		),
	)
}
