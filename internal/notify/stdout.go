package notify

import (
	"context"
	"fmt"

	"trade_router/pkg/logger"
)

// Stdout is the fallback notifier used when telegram is not configured.
type Stdout struct{}

func (Stdout) Send(_ context.Context, text string) {
	logger.Info("notify: %s", text)
}

func (Stdout) Sendf(ctx context.Context, format string, args ...any) {
	Stdout{}.Send(ctx, fmt.Sprintf(format, args...))
}
