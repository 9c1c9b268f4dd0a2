package journal

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"trade_router/internal/modules/config"
	"trade_router/internal/modules/journal/service"
	"trade_router/internal/modules/journal/service/pg"
	"trade_router/pkg/db"
	"trade_router/pkg/logger"
)

// Module provides the Journal. Without a DSN the journal is a no-op so the
// engine runs fine without postgres.
func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config) (service.Journal, error) {
				if cfg.DB == "" {
					logger.Info("journal disabled: no db_dsn configured")
					return service.Noop{}, nil
				}

				ctx := context.Background()
				pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB})
				if err != nil {
					return nil, fmt.Errorf("failed to create pool: %w", err)
				}
				if err := pool.Ping(ctx); err != nil {
					return nil, err
				}

				manager := db.NewPgTxManager(pool)
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						manager.Close()
						return nil
					},
				})

				return service.NewPgJournal(pg.NewRepo(manager)), nil
			},
		),
	)
}
