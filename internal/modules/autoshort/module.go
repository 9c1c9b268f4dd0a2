package autoshort

import (
	"context"

	"go.uber.org/fx"

	"trade_router/internal/modules/autoshort/service"
	"trade_router/internal/modules/config"
	journalsvc "trade_router/internal/modules/journal/service"
	"trade_router/internal/modules/positionfeed"
	registrysvc "trade_router/internal/modules/registry/service"
	trading "trade_router/internal/modules/trading/service"
	"trade_router/internal/notify"
)

func Module() fx.Option {
	return fx.Module("autoshort",
		fx.Provide(
			func(
				cfg *config.Config,
				registry *registrysvc.Registry,
				feeds positionfeed.Feeds,
				clients trading.Clients,
				journal journalsvc.Journal,
				notifier notify.Notifier,
			) *service.Controller {
				submitters := make(map[string]service.Submitter, len(clients))
				for name, client := range clients {
					submitters[name] = client
				}
				return service.NewController(registry, feeds, submitters, journal, notifier, cfg.Global.PositionPoll)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Controller) {
			loopCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go c.Run(loopCtx)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
