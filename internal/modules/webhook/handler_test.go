package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"trade_router/internal/models"
	autoshortsvc "trade_router/internal/modules/autoshort/service"
	"trade_router/internal/modules/config"
	dispatchersvc "trade_router/internal/modules/dispatcher/service"
	journalsvc "trade_router/internal/modules/journal/service"
	"trade_router/internal/modules/positionfeed"
	feedsvc "trade_router/internal/modules/positionfeed/service"
	registrysvc "trade_router/internal/modules/registry/service"
	trading "trade_router/internal/modules/trading/service"
	"trade_router/internal/notify"
)

// fakeVenue backs both the dispatcher and the auto-short controller.
type fakeVenue struct {
	acc *models.AccountConfig

	mu     sync.Mutex
	orders []*trading.OrderRequest
}

func (v *fakeVenue) Account() *models.AccountConfig { return v.acc }

func (v *fakeVenue) accept(order *trading.OrderRequest) (*models.OrderOutcome, error) {
	v.mu.Lock()
	v.orders = append(v.orders, order)
	v.mu.Unlock()
	return &models.OrderOutcome{
		Account: v.acc.Name, Pair: order.Symbol, Side: order.Side,
		Price: order.Price, Quantity: order.OrderQty,
		ClOrdID: order.ClOrdID, OrderID: "O-1", Accepted: true,
	}, nil
}

func (v *fakeVenue) PlaceOrder(ctx context.Context, order *trading.OrderRequest) (*models.OrderOutcome, error) {
	return v.accept(order)
}

func (v *fakeVenue) Submit(ctx context.Context, order *trading.OrderRequest) (*models.OrderOutcome, error) {
	return v.accept(order)
}

func testServer(t *testing.T) (*Server, *fakeVenue, *feedsvc.Store) {
	t.Helper()

	acc := &models.AccountConfig{
		Name:         "alpha",
		TradingPairs: []string{"BTC/USDC"},
		Timeframes:   []string{"1m", "1h"},
		Trading: models.TradingParams{
			DefaultTIF:    "GTC",
			BidAdjustment: 1.05,
			AskAdjustment: 0.95,
			MaxRetries:    3,
			RetryDelay:    time.Millisecond,
		},
		AutoShort: models.AutoShortParams{
			Enabled:           true,
			TriggerPercentage: 100,
			Cooldown:          time.Minute,
			PriceAdjustment:   0.95,
			MaxAttempts:       1,
		},
		Currencies: map[string]models.CurrencyLimit{
			"BTC": {
				MinQuantity: 0.01, MaxQuantity: 1, PriceDecimals: 2,
				StrictLimit: 2, TruncationDecimals: 3, AutoShortQuantity: 0.05,
			},
		},
	}

	cfg := &config.Config{Accounts: []*models.AccountConfig{acc}}
	cfg.Global.ValidMessages = map[string]models.Side{
		"Trend Buy!":  models.SideBid,
		"Trend Sell!": models.SideAsk,
	}
	cfg.Global.ValidTimeframes = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}
	cfg.Global.DefaultTimeframe = "1h"
	cfg.Global.MinSignalInterval = 5 * time.Second

	registry := registrysvc.NewRegistry(cfg)
	router := registrysvc.NewRouter(cfg, registry)

	feed := feedsvc.NewFeed(acc, nil, nil, feedsvc.Settings{
		Heartbeat: time.Hour, ReconnectDelay: time.Second, MaxReconnectDelay: time.Minute, QueueSize: 8,
	})
	feeds := positionfeed.Feeds{acc.Name: feed}

	venue := &fakeVenue{acc: acc}
	dispatcher := dispatchersvc.NewDispatcher(
		cfg, router,
		map[string]dispatchersvc.Placer{acc.Name: venue},
		feeds, journalsvc.Noop{}, notify.Stdout{},
	)
	controller := autoshortsvc.NewController(
		registry, feeds,
		map[string]autoshortsvc.Submitter{acc.Name: venue},
		journalsvc.Noop{}, notify.Stdout{}, time.Hour,
	)

	return NewServer(dispatcher, controller, feeds, registry), venue, feed.Store()
}

func post(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)
	return w
}

func TestWebhookAcceptsSignal(t *testing.T) {
	srv, venue, _ := testServer(t)

	w := post(t, srv, "/webhook", `{"timeframe":"1m","message":"Trend Buy!","pair":"BTC/USDC","price":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	var outcome models.OrderOutcome
	if err := sonic.Unmarshal(w.Body.Bytes(), &outcome); err != nil {
		t.Fatal(err)
	}
	if !outcome.Accepted || outcome.Account != "alpha" || outcome.Price != 105 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(venue.orders) != 1 {
		t.Fatalf("orders = %d", len(venue.orders))
	}
}

func TestWebhookTickerAlias(t *testing.T) {
	srv, venue, _ := testServer(t)

	w := post(t, srv, "/webhook", `{"timeframe":"1m","message":"Trend Sell!","ticker":"BTC/USDC","price":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if venue.orders[0].Side != models.SideAsk {
		t.Fatalf("side = %q", venue.orders[0].Side)
	}
}

func TestWebhookRejections(t *testing.T) {
	srv, _, _ := testServer(t)

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{{{`, http.StatusBadRequest},
		{"unknown message", `{"timeframe":"1m","message":"??","pair":"BTC/USDC","price":1}`, http.StatusBadRequest},
		{"unrouted timeframe", `{"timeframe":"4h","message":"Trend Buy!","pair":"BTC/USDC","price":1}`, http.StatusBadRequest},
		{"timeframe outside enum", `{"timeframe":"13m","message":"Trend Buy!","pair":"BTC/USDC","price":1}`, http.StatusBadRequest},
		{"untraded pair", `{"timeframe":"1m","message":"Trend Buy!","pair":"SOL/USDC","price":1}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := post(t, srv, "/webhook", tc.body); w.Code != tc.status {
				t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
			}
		})
	}
}

func TestWebhookThrottled(t *testing.T) {
	srv, _, _ := testServer(t)
	body := `{"timeframe":"1m","message":"Trend Buy!","pair":"BTC/USDC","price":100}`

	if w := post(t, srv, "/webhook", body); w.Code != http.StatusOK {
		t.Fatalf("first: %d", w.Code)
	}
	if w := post(t, srv, "/webhook", body); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second: %d body=%s", w.Code, w.Body.String())
	}
}

func TestPositionsEndpoint(t *testing.T) {
	srv, _, store := testServer(t)
	store.SetPosition("BTC/USDC", 0.7, "balance")

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out map[string]map[string]models.Position
	if err := sonic.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["alpha"]["BTC/USDC"].Quantity != 0.7 {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestHealthEndpointReportsFeedState(t *testing.T) {
	srv, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	// feed never started, so the service is degraded
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"disconnected"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestManualAutoShortEndpoint(t *testing.T) {
	srv, venue, store := testServer(t)
	store.SetBid(models.BidEvent{Symbol: "BTC", Price: 100, Size: 1})

	w := post(t, srv, "/auto-short", `{"account":"alpha","currency":"BTC"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if len(venue.orders) != 1 || venue.orders[0].Side != models.SideAsk {
		t.Fatalf("orders = %+v", venue.orders)
	}

	if w := post(t, srv, "/auto-short", `{"account":"nobody","currency":"BTC"}`); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	if w := post(t, srv, "/auto-short", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}
