package notify

import "context"

// Notifier pushes operational alerts to the operators. Best effort only:
// a failed delivery is logged and never propagated.
type Notifier interface {
	Send(ctx context.Context, text string)
	Sendf(ctx context.Context, format string, args ...any)
}
