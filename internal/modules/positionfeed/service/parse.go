package service

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"trade_router/internal/helper"
	"trade_router/internal/models"
	"trade_router/pkg/logger"
)

// Venues disagree on bid field names; first recognized alias wins.
var (
	priceAliases  = []string{"bid", "bidPx", "bidPrice", "quotePx", "price", "px"}
	sizeAliases   = []string{"bidSize", "bidQty", "bidQuantity", "quoteSize", "size", "qty", "quantity"}
	symbolAliases = []string{"symbol", "instrument", "pair"}
)

type frame struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

type balanceEntry struct {
	Symbol    string  `json:"symbol"`
	Available float64 `json:"available"`
	Pending   float64 `json:"pending"`
}

// handleFrame decodes one socket message. Malformed frames are skipped,
// never fatal. Returns true when the frame was valid, which is what marks
// the stream healthy.
func (f *Feed) handleFrame(data []byte) bool {
	var fr frame
	if err := sonic.Unmarshal(data, &fr); err != nil {
		logger.Debug("account %s: skipping malformed frame: %v", f.acc.Name, err)
		return false
	}

	switch fr.Type {
	case "balance":
		f.handleBalance(fr.Content)
	case "ticker":
		f.handleQuote(fr.Content, "ticker")
	case "marketdata":
		f.handleMarketdata(fr.Content)
	default:
		// pong and other service frames still count as liveness
	}
	return true
}

func (f *Feed) handleBalance(content json.RawMessage) {
	var entries []balanceEntry
	if err := sonic.Unmarshal(content, &entries); err != nil {
		logger.Debug("account %s: bad balance content: %v", f.acc.Name, err)
		return
	}
	for _, e := range entries {
		if e.Symbol == "" {
			continue
		}
		f.store.SetPosition(e.Symbol, e.Available, "balance")
	}
}

func (f *Feed) handleQuote(content json.RawMessage, source string) {
	var m map[string]interface{}
	if err := sonic.Unmarshal(content, &m); err != nil {
		logger.Debug("account %s: bad %s content: %v", f.acc.Name, source, err)
		return
	}
	f.emitBid(m, pickString(m, symbolAliases), source)
}

func (f *Feed) handleMarketdata(content json.RawMessage) {
	var md struct {
		Symbol     string                   `json:"symbol"`
		Instrument string                   `json:"instrument"`
		Bids       []map[string]interface{} `json:"bids"`
	}
	if err := sonic.Unmarshal(content, &md); err != nil {
		logger.Debug("account %s: bad marketdata content: %v", f.acc.Name, err)
		return
	}
	if len(md.Bids) == 0 {
		return
	}
	symbol := md.Symbol
	if symbol == "" {
		symbol = md.Instrument
	}
	f.emitBid(md.Bids[0], symbol, "marketdata")
}

// emitBid publishes a bid only when both price and size are present and
// strictly positive; partial quotes are dropped silently.
func (f *Feed) emitBid(m map[string]interface{}, symbol, source string) {
	if symbol == "" {
		return
	}
	price, ok := pickNumber(m, priceAliases)
	if !ok || price <= 0 {
		return
	}
	size, ok := pickNumber(m, sizeAliases)
	if !ok || size <= 0 {
		return
	}

	ev := models.BidEvent{
		At:     time.Now(),
		Pair:   symbol,
		Symbol: helper.BaseCurrency(symbol),
		Price:  price,
		Size:   size,
		Source: source,
	}
	f.store.SetBid(ev)
	f.queue.Push(ev)
}

func pickNumber(m map[string]interface{}, aliases []string) (float64, bool) {
	for _, key := range aliases {
		v, ok := m[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				return parsed, true
			}
		case json.Number:
			if parsed, err := n.Float64(); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func pickString(m map[string]interface{}, aliases []string) string {
	for _, key := range aliases {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
