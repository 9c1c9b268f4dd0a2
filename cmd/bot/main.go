package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"trade_router/internal/modules/autoshort"
	"trade_router/internal/modules/config"
	"trade_router/internal/modules/dispatcher"
	"trade_router/internal/modules/journal"
	"trade_router/internal/modules/positionfeed"
	"trade_router/internal/modules/registry"
	"trade_router/internal/modules/trading"
	"trade_router/internal/modules/webhook"
	"trade_router/internal/notify"
	"trade_router/pkg/logger"
	"trade_router/pkg/tracing"
)

const serviceName = "trade_router"

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			if err := logger.Init(cfg.LogLevel); err != nil {
				return err
			}
			logger.SetServiceName(serviceName)
			tracing.SetServiceName(serviceName)

			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Enabled: cfg.Tracing.Enabled,
				Host:    cfg.Tracing.Host,
				Port:    cfg.Tracing.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					logger.Sync()
					return nil
				},
			})
			return nil
		}),
		registry.Module(),
		journal.Module(),
		trading.Module(),
		positionfeed.Module(),
		notify.Module(),
		dispatcher.Module(),
		autoshort.Module(),
		webhook.Module(),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}
