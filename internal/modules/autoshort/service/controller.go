package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"trade_router/internal/helper"
	"trade_router/internal/models"
	"trade_router/internal/modules/positionfeed"
	feedsvc "trade_router/internal/modules/positionfeed/service"
	registrysvc "trade_router/internal/modules/registry/service"
	trading "trade_router/internal/modules/trading/service"
	"trade_router/internal/notify"
	"trade_router/pkg/logger"
)

// Journal is the subset of the journal the controller writes to.
type Journal interface {
	ShortAttempt(ctx context.Context, att models.ShortAttempt)
}

// Submitter is one order attempt against the venue, no retries.
type Submitter interface {
	Submit(ctx context.Context, order *trading.OrderRequest) (*models.OrderOutcome, error)
	Account() *models.AccountConfig
}

// Controller watches position utilization across all accounts and fires an
// offsetting short when a currency crosses its trigger. One short per
// currency per cooldown window, and the window opens even when every
// attempt fails so a broken venue is not hammered.
type Controller struct {
	registry *registrysvc.Registry
	feeds    positionfeed.Feeds
	clients  map[string]Submitter
	journal  Journal
	notifier notify.Notifier
	poll     time.Duration

	now   func() time.Time
	sleep func(d time.Duration)

	mu       sync.Mutex
	attempts map[string]models.ShortAttempt // account + "/" + currency
}

func NewController(
	registry *registrysvc.Registry,
	feeds positionfeed.Feeds,
	clients map[string]Submitter,
	journal Journal,
	notifier notify.Notifier,
	poll time.Duration,
) *Controller {
	return &Controller{
		registry: registry,
		feeds:    feeds,
		clients:  clients,
		journal:  journal,
		notifier: notifier,
		poll:     poll,
		now:      time.Now,
		sleep:    time.Sleep,
		attempts: make(map[string]models.ShortAttempt),
	}
}

// Run polls until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	t := time.NewTicker(c.poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.EvaluateAll(ctx)
		}
	}
}

// EvaluateAll sweeps every enabled account once.
func (c *Controller) EvaluateAll(ctx context.Context) {
	for _, name := range c.registry.Names() {
		acc, ok := c.registry.Account(name)
		if !ok || !acc.AutoShort.Enabled {
			continue
		}
		c.evaluate(ctx, acc)
	}
}

func (c *Controller) evaluate(ctx context.Context, acc *models.AccountConfig) {
	feed, ok := c.feeds[acc.Name]
	if !ok {
		return
	}
	store := feed.Store()

	seen := make(map[string]bool)
	for _, pair := range acc.TradingPairs {
		currency := helper.BaseCurrency(pair)
		if seen[currency] {
			continue
		}
		seen[currency] = true

		limit, ok := acc.Limit(currency)
		if !ok || limit.MaxQuantity <= 0 {
			continue
		}
		pos, ok := store.PositionByCurrency(currency)
		if !ok {
			continue
		}

		utilization := math.Abs(pos) / limit.MaxQuantity * 100
		if utilization < acc.AutoShort.TriggerPercentage {
			continue
		}

		if until, cooling := c.coolingDown(acc, currency); cooling {
			logger.Debug("auto-short %s/%s: utilization %.1f%% but cooling down until %s",
				acc.Name, currency, utilization, until.Format(time.RFC3339))
			continue
		}

		logger.Info("auto-short %s/%s: utilization %.1f%% >= %.1f%%, firing",
			acc.Name, currency, utilization, acc.AutoShort.TriggerPercentage)
		c.fire(ctx, acc, store, pair, currency, limit)
	}
}

// Trigger fires the short for one currency on demand. The utilization
// threshold is skipped but the cooldown window still holds, so a repeated
// request inside the window is refused instead of stacking orders.
func (c *Controller) Trigger(ctx context.Context, account, currency string) error {
	acc, ok := c.registry.Account(account)
	if !ok {
		return fmt.Errorf("unknown account %q", account)
	}
	feed, ok := c.feeds[acc.Name]
	if !ok {
		return fmt.Errorf("no feed for account %q", account)
	}
	limit, ok := acc.Limit(currency)
	if !ok {
		return fmt.Errorf("account %s has no limits for %s", account, currency)
	}

	var pair string
	for _, p := range acc.TradingPairs {
		if helper.BaseCurrency(p) == currency {
			pair = p
			break
		}
	}
	if pair == "" {
		return fmt.Errorf("account %s trades no pair with base %s", account, currency)
	}
	if until, cooling := c.coolingDown(acc, currency); cooling {
		return fmt.Errorf("auto-short %s/%s is cooling down until %s", account, currency, until.Format(time.RFC3339))
	}

	if !c.fire(ctx, acc, feed.Store(), pair, currency, limit) {
		return fmt.Errorf("short for %s/%s did not go through", account, currency)
	}
	return nil
}

func (c *Controller) coolingDown(acc *models.AccountConfig, currency string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	att, ok := c.attempts[acc.Name+"/"+currency]
	if !ok {
		return time.Time{}, false
	}
	until := att.LastAt.Add(acc.AutoShort.Cooldown)
	return until, c.now().Before(until)
}

// fire runs the attempt loop for one currency. The cooldown anchor is set
// before the first attempt so it holds regardless of the outcome.
func (c *Controller) fire(ctx context.Context, acc *models.AccountConfig, store *feedsvc.Store, pair, currency string, limit models.CurrencyLimit) bool {
	client, ok := c.clients[acc.Name]
	if !ok {
		logger.Error("auto-short %s/%s: no trading client", acc.Name, currency)
		return false
	}

	bid, ok := store.LastBid(currency)
	if !ok {
		logger.Warn("auto-short %s/%s: no observed bid yet, skipping", acc.Name, currency)
		return false
	}

	price := helper.RoundPrice(bid.Price*acc.AutoShort.PriceAdjustment, limit.PriceDecimals)
	qty := helper.Truncate(limit.AutoShortQuantity, limit.TruncationDecimals)
	if price <= 0 || qty <= 0 {
		logger.Error("auto-short %s/%s: degenerate order price=%v qty=%v", acc.Name, currency, price, qty)
		return false
	}

	att := models.ShortAttempt{
		Account:  acc.Name,
		Currency: currency,
		Quantity: qty,
		Price:    price,
		LastAt:   c.now(),
		Outcome:  models.AttemptPending,
	}
	c.record(att)

	for attempt := 1; attempt <= acc.AutoShort.MaxAttempts; attempt++ {
		att.Attempts = attempt

		order, err := trading.NewOrderRequest(acc, pair, models.SideAsk, price, qty)
		if err != nil {
			logger.Error("auto-short %s/%s: %v", acc.Name, currency, err)
			break
		}

		outcome, err := client.Submit(ctx, order)
		if err == nil {
			att.Outcome = models.AttemptSucceeded
			c.record(att)
			c.journal.ShortAttempt(ctx, att)
			logger.Info("auto-short %s/%s: placed %v @ %v (orderId=%s, attempt %d)",
				acc.Name, currency, qty, price, outcome.OrderID, attempt)
			c.notifier.Sendf(ctx, "auto-short %s/%s: placed %v @ %v", acc.Name, currency, qty, price)
			return true
		}

		var rejected *trading.OrderRejectedError
		if errors.As(err, &rejected) && !trading.Retriable(rejected.Reason) {
			logger.Error("auto-short %s/%s: rejected, not retrying: %s", acc.Name, currency, rejected.Reason)
			break
		}

		logger.Warn("auto-short %s/%s: attempt %d/%d failed: %v",
			acc.Name, currency, attempt, acc.AutoShort.MaxAttempts, err)
		if attempt < acc.AutoShort.MaxAttempts {
			c.sleep(acc.Trading.RetryDelay * time.Duration(attempt))
		}
	}

	att.Outcome = models.AttemptFailed
	c.record(att)
	c.journal.ShortAttempt(ctx, att)
	logger.Error("auto-short %s/%s: all %d attempt(s) failed, cooling down anyway", acc.Name, currency, att.Attempts)
	c.notifier.Sendf(ctx, "auto-short %s/%s FAILED after %d attempt(s)", acc.Name, currency, att.Attempts)
	return false
}

func (c *Controller) record(att models.ShortAttempt) {
	c.mu.Lock()
	c.attempts[att.Account+"/"+att.Currency] = att
	c.mu.Unlock()
}

// Attempts snapshots the attempt ledger for the health surface.
func (c *Controller) Attempts() []models.ShortAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ShortAttempt, 0, len(c.attempts))
	for _, att := range c.attempts {
		out = append(out, att)
	}
	return out
}
