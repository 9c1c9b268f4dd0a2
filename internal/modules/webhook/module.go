package webhook

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/fx"

	"trade_router/internal/modules/config"
	"trade_router/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("webhook",
		fx.Provide(
			NewServer,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, s *Server) {
			srv := &http.Server{
				Handler: s.Mux(),
			}
			addr := fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.PublicPort)

			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					ln, err := net.Listen("tcp", addr)
					if err != nil {
						return fmt.Errorf("listen %s: %w", addr, err)
					}
					logger.Info("webhook listening on %s", addr)
					go func() {
						if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
							logger.Error("http server: %v", err)
						}
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return srv.Shutdown(ctx)
				},
			})
		}),
	)
}
