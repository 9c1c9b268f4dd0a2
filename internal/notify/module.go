package notify

import (
	"context"

	"go.uber.org/fx"

	"trade_router/internal/modules/config"
	"trade_router/internal/modules/positionfeed"
	"trade_router/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config, feeds positionfeed.Feeds) (Notifier, error) {
				if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
					logger.Info("telegram not configured, alerts go to the log")
					return Stdout{}, nil
				}

				tg, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, feeds)
				if err != nil {
					return nil, err
				}

				loopCtx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						go tg.Start(loopCtx)
						return nil
					},
					OnStop: func(context.Context) error {
						cancel()
						return nil
					},
				})
				return tg, nil
			},
		),
	)
}
