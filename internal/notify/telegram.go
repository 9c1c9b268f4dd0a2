package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trade_router/internal/modules/positionfeed"
	"trade_router/pkg/logger"
)

// Telegram sends alerts to a fixed chat and answers /positions with the
// live per-account snapshots.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	feeds  positionfeed.Feeds
}

func NewTelegram(token string, chatID int64, feeds positionfeed.Feeds) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, feeds: feeds}, nil
}

func (t *Telegram) Send(ctx context.Context, text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		logger.Error("telegram send: %v", err)
	}
}

func (t *Telegram) Sendf(ctx context.Context, format string, args ...any) {
	t.Send(ctx, fmt.Sprintf(format, args...))
}

// Start runs the long-poll command loop until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			switch update.Message.Command() {
			case "positions":
				t.Send(ctx, t.positionsReport())
			case "state":
				t.Send(ctx, t.stateReport())
			}
		}
	}
}

func (t *Telegram) positionsReport() string {
	var b strings.Builder
	for _, name := range sortedKeys(t.feeds) {
		fmt.Fprintf(&b, "%s:\n", name)
		snapshot := t.feeds[name].Store().Snapshot()
		if len(snapshot) == 0 {
			b.WriteString("  (no positions)\n")
			continue
		}
		for _, symbol := range sortedKeys(snapshot) {
			p := snapshot[symbol]
			fmt.Fprintf(&b, "  %s: %v\n", symbol, p.Quantity)
		}
	}
	if b.Len() == 0 {
		return "no accounts"
	}
	return b.String()
}

func (t *Telegram) stateReport() string {
	var b strings.Builder
	for _, name := range sortedKeys(t.feeds) {
		fmt.Fprintf(&b, "%s: %s\n", name, t.feeds[name].State())
	}
	if b.Len() == 0 {
		return "no accounts"
	}
	return b.String()
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
