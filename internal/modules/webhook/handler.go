package webhook

import (
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/opentracing/opentracing-go"

	"trade_router/internal/models"
	autoshortsvc "trade_router/internal/modules/autoshort/service"
	dispatchersvc "trade_router/internal/modules/dispatcher/service"
	"trade_router/internal/modules/positionfeed"
	registrysvc "trade_router/internal/modules/registry/service"
	"trade_router/pkg/logger"
)

// Server is the engine's HTTP surface: the signal webhook plus the
// operational read endpoints.
type Server struct {
	dispatcher *dispatchersvc.Dispatcher
	controller *autoshortsvc.Controller
	feeds      positionfeed.Feeds
	registry   *registrysvc.Registry
}

func NewServer(
	dispatcher *dispatchersvc.Dispatcher,
	controller *autoshortsvc.Controller,
	feeds positionfeed.Feeds,
	registry *registrysvc.Registry,
) *Server {
	return &Server{
		dispatcher: dispatcher,
		controller: controller,
		feeds:      feeds,
		registry:   registry,
	}
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /positions", s.handlePositions)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auto-short", s.handleAutoShort)
	return mux
}

// TradingView-style alert payload. "ticker" is accepted as an alias for
// "pair" because that is what the stock alert template sends.
type webhookRequest struct {
	Timeframe string  `json:"timeframe"`
	Message   string  `json:"message"`
	Pair      string  `json:"pair"`
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	span := opentracing.GlobalTracer().StartSpan("webhook.dispatch")
	defer span.Finish()
	ctx := opentracing.ContextWithSpan(r.Context(), span)

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	var req webhookRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json")
		return
	}
	pair := req.Pair
	if pair == "" {
		pair = req.Ticker
	}

	sig := models.Signal{
		Timeframe: req.Timeframe,
		Message:   req.Message,
		Pair:      pair,
		Price:     req.Price,
		Received:  time.Now(),
	}

	outcome, err := s.dispatcher.Dispatch(ctx, sig)
	if err != nil {
		span.SetTag("error", true)
		status := statusFor(err)
		if status >= 500 {
			logger.Error("webhook: %v", err)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func statusFor(err error) int {
	var invalid *dispatchersvc.InvalidSignalError
	var throttled *dispatchersvc.ThrottledError
	var routing *registrysvc.RoutingError
	switch {
	case errors.As(err, &invalid), errors.As(err, &routing):
		return http.StatusBadRequest
	case errors.As(err, &throttled):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]map[string]models.Position, len(s.feeds))
	for name, feed := range s.feeds {
		out[name] = feed.Store().Snapshot()
	}
	writeJSON(w, http.StatusOK, out)
}

type currencyHealth struct {
	Position    float64 `json:"position"`
	MaxQuantity float64 `json:"max_quantity"`
	Utilization float64 `json:"utilization"`
}

type accountHealth struct {
	State        string                    `json:"state"`
	QueueLen     int                       `json:"queue_len"`
	QueueDropped uint64                    `json:"queue_dropped"`
	Timeframes   []string                  `json:"timeframes"`
	AutoShort    bool                      `json:"auto_short"`
	Currencies   map[string]currencyHealth `json:"currencies"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	accounts := make(map[string]accountHealth, len(s.feeds))
	healthy := true
	for _, name := range s.registry.Names() {
		feed, ok := s.feeds[name]
		if !ok {
			continue
		}
		acc, _ := s.registry.Account(name)
		state := feed.State()
		if state != "streaming" {
			healthy = false
		}
		currencies := make(map[string]currencyHealth, len(acc.Currencies))
		for currency, limit := range acc.Currencies {
			pos, _ := feed.Store().PositionByCurrency(currency)
			var utilization float64
			if limit.MaxQuantity > 0 {
				utilization = math.Abs(pos) / limit.MaxQuantity * 100
			}
			currencies[currency] = currencyHealth{
				Position:    pos,
				MaxQuantity: limit.MaxQuantity,
				Utilization: utilization,
			}
		}

		accounts[name] = accountHealth{
			State:        string(state),
			QueueLen:     feed.Queue().Len(),
			QueueDropped: feed.Queue().Dropped(),
			Timeframes:   acc.Timeframes,
			AutoShort:    acc.AutoShort.Enabled,
			Currencies:   currencies,
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy":  healthy,
		"accounts": accounts,
		"attempts": s.controller.Attempts(),
	})
}

type autoShortRequest struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
}

func (s *Server) handleAutoShort(w http.ResponseWriter, r *http.Request) {
	var req autoShortRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil || sonic.Unmarshal(body, &req) != nil {
		writeError(w, http.StatusBadRequest, "malformed json")
		return
	}
	if req.Account == "" || req.Currency == "" {
		writeError(w, http.StatusBadRequest, "account and currency are required")
		return
	}

	if err := s.controller.Trigger(r.Context(), req.Account, req.Currency); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "placed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
