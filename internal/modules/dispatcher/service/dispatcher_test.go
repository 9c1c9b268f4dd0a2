package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trade_router/internal/models"
	"trade_router/internal/modules/config"
	"trade_router/internal/modules/positionfeed"
	feedsvc "trade_router/internal/modules/positionfeed/service"
	registrysvc "trade_router/internal/modules/registry/service"
	trading "trade_router/internal/modules/trading/service"
	"trade_router/internal/notify"
)

type fakePlacer struct {
	acc *models.AccountConfig

	mu     sync.Mutex
	orders []*trading.OrderRequest
	err    error
}

func (p *fakePlacer) Account() *models.AccountConfig { return p.acc }

func (p *fakePlacer) PlaceOrder(ctx context.Context, order *trading.OrderRequest) (*models.OrderOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, order)
	outcome := &models.OrderOutcome{
		Account: p.acc.Name, Pair: order.Symbol, Side: order.Side,
		Price: order.Price, Quantity: order.OrderQty, ClOrdID: order.ClOrdID,
	}
	if p.err != nil {
		return outcome, p.err
	}
	outcome.OrderID = "O-1"
	outcome.Accepted = true
	return outcome, nil
}

func (p *fakePlacer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

type signalJournal struct {
	mu      sync.Mutex
	entries []*models.OrderOutcome
}

func (j *signalJournal) Signal(_ context.Context, _ models.Signal, outcome *models.OrderOutcome) {
	j.mu.Lock()
	j.entries = append(j.entries, outcome)
	j.mu.Unlock()
}

func dispatchAccount() *models.AccountConfig {
	return &models.AccountConfig{
		Name:         "alpha",
		TradingPairs: []string{"BTC/USDC"},
		Timeframes:   []string{"1m", "5m"},
		Trading: models.TradingParams{
			DefaultTIF:    "GTC",
			BidAdjustment: 1.05,
			AskAdjustment: 0.95,
			MaxRetries:    3,
			RetryDelay:    time.Millisecond,
		},
		Currencies: map[string]models.CurrencyLimit{
			"BTC": {
				MinQuantity:        0.0129,
				MaxQuantity:        1.0,
				PriceDecimals:      2,
				StrictLimit:        2.0,
				TruncationDecimals: 3,
				AutoShortQuantity:  0.05,
			},
		},
	}
}

type dispatchHarness struct {
	dispatcher *Dispatcher
	placer     *fakePlacer
	journal    *signalJournal
	store      *feedsvc.Store
	clock      *time.Time
}

func newDispatchHarness(acc *models.AccountConfig, edits ...func(*config.Config)) *dispatchHarness {
	cfg := &config.Config{Accounts: []*models.AccountConfig{acc}}
	cfg.Global.ValidMessages = map[string]models.Side{
		"Trend Buy!":  models.SideBid,
		"Trend Sell!": models.SideAsk,
	}
	cfg.Global.ValidTimeframes = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}
	cfg.Global.DefaultTimeframe = "1h"
	cfg.Global.MinSignalInterval = 5 * time.Second
	for _, edit := range edits {
		edit(cfg)
	}

	registry := registrysvc.NewRegistry(cfg)
	router := registrysvc.NewRouter(cfg, registry)

	feed := feedsvc.NewFeed(acc, nil, nil, feedsvc.Settings{
		Heartbeat: time.Hour, ReconnectDelay: time.Second, MaxReconnectDelay: time.Minute, QueueSize: 8,
	})

	placer := &fakePlacer{acc: acc}
	journal := &signalJournal{}
	d := NewDispatcher(
		cfg, router,
		map[string]Placer{acc.Name: placer},
		positionfeed.Feeds{acc.Name: feed},
		journal, notify.Stdout{},
	)

	clock := time.Now()
	d.now = func() time.Time { return clock }

	return &dispatchHarness{
		dispatcher: d,
		placer:     placer,
		journal:    journal,
		store:      feed.Store(),
		clock:      &clock,
	}
}

func buySignal() models.Signal {
	return models.Signal{
		Timeframe: "1m",
		Message:   "Trend Buy!",
		Pair:      "BTC/USDC",
		Price:     100,
		Received:  time.Now(),
	}
}

func TestDispatchPlacesAdjustedOrder(t *testing.T) {
	h := newDispatchHarness(dispatchAccount())

	outcome, err := h.dispatcher.Dispatch(context.Background(), buySignal())
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Accepted || outcome.OrderID != "O-1" {
		t.Fatalf("outcome = %+v", outcome)
	}

	order := h.placer.orders[0]
	if order.Side != models.SideBid {
		t.Errorf("side = %q", order.Side)
	}
	if order.Price != 105 { // 100 * bid_adjustment
		t.Errorf("price = %v", order.Price)
	}
	if order.OrderQty != 0.012 { // min_quantity truncated to 3 decimals
		t.Errorf("qty = %v", order.OrderQty)
	}

	h.journal.mu.Lock()
	defer h.journal.mu.Unlock()
	if len(h.journal.entries) != 1 || !h.journal.entries[0].Accepted {
		t.Errorf("journal = %+v", h.journal.entries)
	}
}

func TestDispatchSellUsesAskAdjustment(t *testing.T) {
	h := newDispatchHarness(dispatchAccount())

	sig := buySignal()
	sig.Message = "Trend Sell!"
	if _, err := h.dispatcher.Dispatch(context.Background(), sig); err != nil {
		t.Fatal(err)
	}

	order := h.placer.orders[0]
	if order.Side != models.SideAsk || order.Price != 95 {
		t.Fatalf("order = %+v", order)
	}
}

func TestDispatchRejectsUnknownMessage(t *testing.T) {
	h := newDispatchHarness(dispatchAccount())

	sig := buySignal()
	sig.Message = "Moon soon"
	_, err := h.dispatcher.Dispatch(context.Background(), sig)

	var invalid *InvalidSignalError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v", err)
	}
	if h.placer.count() != 0 {
		t.Fatal("order placed for invalid signal")
	}
}

func TestDispatchRejectsUntradedPair(t *testing.T) {
	h := newDispatchHarness(dispatchAccount())

	sig := buySignal()
	sig.Pair = "SOL/USDC"
	_, err := h.dispatcher.Dispatch(context.Background(), sig)

	var invalid *InvalidSignalError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v", err)
	}
}

func TestDispatchUnclaimedTimeframe(t *testing.T) {
	h := newDispatchHarness(dispatchAccount())

	// valid timeframe, but no account claims it and no default account is set
	sig := buySignal()
	sig.Timeframe = "4h"
	_, err := h.dispatcher.Dispatch(context.Background(), sig)

	var routing *registrysvc.RoutingError
	if !errors.As(err, &routing) {
		t.Fatalf("got %v", err)
	}
}

func TestDispatchRejectsTimeframeOutsideEnum(t *testing.T) {
	// a default account must not catch garbage timeframes, only valid
	// unclaimed ones
	h := newDispatchHarness(dispatchAccount(), func(cfg *config.Config) {
		cfg.Global.DefaultAccount = "alpha"
	})

	sig := buySignal()
	sig.Timeframe = "13m"
	_, err := h.dispatcher.Dispatch(context.Background(), sig)

	var invalid *InvalidSignalError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v", err)
	}
	if h.placer.count() != 0 {
		t.Fatalf("order placed for invalid timeframe: %d", h.placer.count())
	}

	// the same default account still serves a valid unclaimed timeframe
	sig.Timeframe = "1d"
	if _, err := h.dispatcher.Dispatch(context.Background(), sig); err != nil {
		t.Fatal(err)
	}
	if h.placer.count() != 1 {
		t.Fatalf("orders = %d", h.placer.count())
	}
}

func TestDispatchThrottlesDuplicates(t *testing.T) {
	h := newDispatchHarness(dispatchAccount())
	ctx := context.Background()

	if _, err := h.dispatcher.Dispatch(ctx, buySignal()); err != nil {
		t.Fatal(err)
	}

	*h.clock = h.clock.Add(2 * time.Second)
	_, err := h.dispatcher.Dispatch(ctx, buySignal())
	var throttled *ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("got %v", err)
	}
	if h.placer.count() != 1 {
		t.Fatalf("orders = %d", h.placer.count())
	}

	*h.clock = h.clock.Add(4 * time.Second) // past the 5s window
	if _, err := h.dispatcher.Dispatch(ctx, buySignal()); err != nil {
		t.Fatal(err)
	}
	if h.placer.count() != 2 {
		t.Fatalf("orders = %d", h.placer.count())
	}
}

func TestDispatchInvalidSignalDoesNotConsumeWindow(t *testing.T) {
	h := newDispatchHarness(dispatchAccount())
	ctx := context.Background()

	bad := buySignal()
	bad.Price = 0 // no feed bid either, so the price check rejects it
	if _, err := h.dispatcher.Dispatch(ctx, bad); err == nil {
		t.Fatal("expected rejection")
	}

	// a good signal right after must not be throttled by the reject
	if _, err := h.dispatcher.Dispatch(ctx, buySignal()); err != nil {
		t.Fatal(err)
	}
}

func TestDispatchFallsBackToFeedPrice(t *testing.T) {
	h := newDispatchHarness(dispatchAccount())
	h.store.SetBid(models.BidEvent{Symbol: "BTC", Price: 200, Size: 1})

	sig := buySignal()
	sig.Price = 0
	if _, err := h.dispatcher.Dispatch(context.Background(), sig); err != nil {
		t.Fatal(err)
	}
	if got := h.placer.orders[0].Price; got != 210 { // 200 * 1.05
		t.Fatalf("price = %v", got)
	}
}

func TestDispatchEnforcesStrictLimit(t *testing.T) {
	h := newDispatchHarness(dispatchAccount())
	h.store.SetPosition("BTC", 1.995, "balance") // 1.995 + 0.012 > 2.0

	_, err := h.dispatcher.Dispatch(context.Background(), buySignal())
	var invalid *InvalidSignalError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v", err)
	}
	if h.placer.count() != 0 {
		t.Fatal("order placed over the strict limit")
	}
}

func TestDispatchVenueErrorJournaled(t *testing.T) {
	h := newDispatchHarness(dispatchAccount())
	h.placer.err = &trading.OrderRejectedError{Account: "alpha", Reason: "symbol suspended"}

	outcome, err := h.dispatcher.Dispatch(context.Background(), buySignal())
	if err == nil {
		t.Fatal("expected venue error")
	}
	if outcome == nil || outcome.Accepted {
		t.Fatalf("outcome = %+v", outcome)
	}

	h.journal.mu.Lock()
	defer h.journal.mu.Unlock()
	if len(h.journal.entries) != 1 || h.journal.entries[0].Accepted {
		t.Fatalf("journal = %+v", h.journal.entries)
	}
}
