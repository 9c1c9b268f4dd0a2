package trading

import (
	"go.uber.org/fx"

	"trade_router/internal/modules/trading/service"
)

func Module() fx.Option {
	return fx.Module("trading",
		fx.Provide(
			service.NewClients,
		),
	)
}
