package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"trade_router/internal/helper"
	"trade_router/internal/models"
	"trade_router/internal/modules/config"
	"trade_router/internal/modules/positionfeed"
	registrysvc "trade_router/internal/modules/registry/service"
	trading "trade_router/internal/modules/trading/service"
	"trade_router/internal/notify"
	"trade_router/pkg/logger"
)

// InvalidSignalError rejects a signal before it reaches the venue.
type InvalidSignalError struct {
	Reason string
}

func (e *InvalidSignalError) Error() string { return "invalid signal: " + e.Reason }

// ThrottledError drops a duplicate signal inside the per-pair window.
type ThrottledError struct {
	Account string
	Pair    string
	Wait    time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled: %s/%s, retry in %s", e.Account, e.Pair, e.Wait)
}

// Placer is the retrying order path of a trading client.
type Placer interface {
	PlaceOrder(ctx context.Context, order *trading.OrderRequest) (*models.OrderOutcome, error)
	Account() *models.AccountConfig
}

// Journal is the subset of the journal the dispatcher writes to.
type Journal interface {
	Signal(ctx context.Context, sig models.Signal, outcome *models.OrderOutcome)
}

// Dispatcher validates inbound signals, routes them by timeframe and turns
// them into venue orders. Throttling is keyed per account and pair; only
// accepted signals advance the throttle clock, so a burst of rejects never
// blocks the next good signal.
type Dispatcher struct {
	global   config.Global
	validTF  map[string]bool
	router   *registrysvc.Router
	clients  map[string]Placer
	feeds    positionfeed.Feeds
	journal  Journal
	notifier notify.Notifier

	now func() time.Time

	mu   sync.Mutex
	last map[string]time.Time // account + "/" + pair -> last accepted
}

func NewDispatcher(
	cfg *config.Config,
	router *registrysvc.Router,
	clients map[string]Placer,
	feeds positionfeed.Feeds,
	journal Journal,
	notifier notify.Notifier,
) *Dispatcher {
	validTF := make(map[string]bool, len(cfg.Global.ValidTimeframes))
	for _, tf := range cfg.Global.ValidTimeframes {
		validTF[helper.NormTF(tf)] = true
	}
	return &Dispatcher{
		global:   cfg.Global,
		validTF:  validTF,
		router:   router,
		clients:  clients,
		feeds:    feeds,
		journal:  journal,
		notifier: notifier,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Dispatch handles one webhook signal end to end.
func (d *Dispatcher) Dispatch(ctx context.Context, sig models.Signal) (*models.OrderOutcome, error) {
	side, ok := d.global.ValidMessages[sig.Message]
	if !ok {
		return nil, &InvalidSignalError{Reason: fmt.Sprintf("unknown message %q", sig.Message)}
	}
	if sig.Pair == "" {
		return nil, &InvalidSignalError{Reason: "missing pair"}
	}
	// an absent timeframe takes the default downstream, but a present one
	// must be from the configured enum; only valid-but-unclaimed timeframes
	// may reach the default-account fallback
	if tf := helper.NormTF(sig.Timeframe); tf != "" && !d.validTF[tf] {
		return nil, &InvalidSignalError{Reason: fmt.Sprintf("unknown timeframe %q", sig.Timeframe)}
	}

	acc, err := d.router.Resolve(sig.Timeframe)
	if err != nil {
		return nil, err
	}
	if !acc.HasPair(sig.Pair) {
		return nil, &InvalidSignalError{Reason: fmt.Sprintf("account %s does not trade %s", acc.Name, sig.Pair)}
	}

	currency := helper.BaseCurrency(sig.Pair)
	limit, ok := acc.Limit(currency)
	if !ok {
		return nil, &InvalidSignalError{Reason: fmt.Sprintf("account %s has no limits for %s", acc.Name, currency)}
	}

	if err := d.throttle(acc.Name, sig.Pair); err != nil {
		logger.Warn("dropping signal: %v", err)
		return nil, err
	}

	price := sig.Price
	if price <= 0 {
		if feed, ok := d.feeds[acc.Name]; ok {
			if bid, ok := feed.Store().LastBid(currency); ok {
				price = bid.Price
			}
		}
	}
	if price <= 0 {
		d.unthrottle(acc.Name, sig.Pair)
		return nil, &InvalidSignalError{Reason: fmt.Sprintf("no price for %s", sig.Pair)}
	}

	orderPrice := helper.AdjustPrice(price, side, acc.Trading.BidAdjustment, acc.Trading.AskAdjustment, limit.PriceDecimals)
	qty := helper.Truncate(limit.MinQuantity, limit.TruncationDecimals)
	if qty <= 0 {
		d.unthrottle(acc.Name, sig.Pair)
		return nil, &InvalidSignalError{Reason: fmt.Sprintf("quantity for %s truncates to zero", currency)}
	}

	if reason := d.exceedsStrictLimit(acc, currency, limit, side, qty); reason != "" {
		d.unthrottle(acc.Name, sig.Pair)
		outcome := &models.OrderOutcome{
			Account: acc.Name, Pair: sig.Pair, Side: side,
			Price: orderPrice, Quantity: qty, Reason: reason,
		}
		d.journal.Signal(ctx, sig, outcome)
		return nil, &InvalidSignalError{Reason: reason}
	}

	client, ok := d.clients[acc.Name]
	if !ok {
		d.unthrottle(acc.Name, sig.Pair)
		return nil, fmt.Errorf("no trading client for account %q", acc.Name)
	}

	order, err := trading.NewOrderRequest(acc, sig.Pair, side, orderPrice, qty)
	if err != nil {
		d.unthrottle(acc.Name, sig.Pair)
		return nil, &InvalidSignalError{Reason: err.Error()}
	}

	outcome, err := client.PlaceOrder(ctx, order)
	if outcome == nil {
		outcome = &models.OrderOutcome{
			Account: acc.Name, Pair: sig.Pair, Side: side,
			Price: orderPrice, Quantity: qty, ClOrdID: order.ClOrdID,
		}
	}
	if err != nil {
		outcome.Reason = err.Error()
		d.journal.Signal(ctx, sig, outcome)
		d.notifier.Sendf(ctx, "order failed: %s %s %s: %v", acc.Name, side, sig.Pair, err)
		return outcome, err
	}

	d.journal.Signal(ctx, sig, outcome)
	return outcome, nil
}

// throttle claims the window for the pair; the claim is rolled back by
// unthrottle when a later validation step rejects the signal.
func (d *Dispatcher) throttle(account, pair string) error {
	key := account + "/" + pair
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.last[key]; ok {
		if elapsed := now.Sub(prev); elapsed < d.global.MinSignalInterval {
			return &ThrottledError{Account: account, Pair: pair, Wait: d.global.MinSignalInterval - elapsed}
		}
	}
	d.last[key] = now
	return nil
}

func (d *Dispatcher) unthrottle(account, pair string) {
	d.mu.Lock()
	delete(d.last, account+"/"+pair)
	d.mu.Unlock()
}

// exceedsStrictLimit refuses orders whose projected exposure breaks the
// hard per-currency cap. Unknown positions are allowed through; the venue
// still enforces its own limits.
func (d *Dispatcher) exceedsStrictLimit(acc *models.AccountConfig, currency string, limit models.CurrencyLimit, side models.Side, qty float64) string {
	feed, ok := d.feeds[acc.Name]
	if !ok {
		return ""
	}
	pos, ok := feed.Store().PositionByCurrency(currency)
	if !ok {
		return ""
	}

	projected := pos + qty
	if side == models.SideAsk {
		projected = pos - qty
	}
	if math.Abs(projected) > limit.StrictLimit {
		return fmt.Sprintf("strict limit: |%v| would exceed %v for %s", projected, limit.StrictLimit, currency)
	}
	return ""
}
