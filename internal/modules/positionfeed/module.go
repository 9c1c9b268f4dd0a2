package positionfeed

import (
	"context"

	"go.uber.org/fx"

	"trade_router/internal/modules/config"
	"trade_router/internal/modules/positionfeed/service"
	trading "trade_router/internal/modules/trading/service"
)

// Feeds maps account name to its streaming feed.
type Feeds map[string]*service.Feed

func NewFeeds(cfg *config.Config, clients trading.Clients) Feeds {
	settings := service.Settings{
		Heartbeat:         cfg.Global.Heartbeat,
		ReconnectDelay:    cfg.Global.ReconnectDelay,
		MaxReconnectDelay: cfg.Global.MaxReconnectDelay,
		QueueSize:         cfg.Global.BidQueueSize,
	}
	dialer := service.NewDialer(cfg.Global.HTTPTimeout)

	feeds := make(Feeds, len(cfg.Accounts))
	for _, acc := range cfg.Accounts {
		feeds[acc.Name] = service.NewFeed(acc, clients[acc.Name], dialer, settings)
	}
	return feeds
}

func Module() fx.Option {
	return fx.Module("positionfeed",
		fx.Provide(
			NewFeeds,
		),
		fx.Invoke(func(lc fx.Lifecycle, feeds Feeds) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					for _, feed := range feeds {
						feed.Start(context.Background())
					}
					return nil
				},
				OnStop: func(ctx context.Context) error {
					for _, feed := range feeds {
						feed.Stop()
					}
					return nil
				},
			})
		}),
	)
}
