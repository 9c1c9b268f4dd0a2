package service

import (
	"sync"
	"time"

	"trade_router/internal/helper"
	"trade_router/internal/models"
)

// Store is the per-account snapshot of the streaming feed: live positions
// keyed by the symbol the venue reports, plus the most recent bid per base
// currency. Reads never touch the socket.
type Store struct {
	account string

	mu        sync.RWMutex
	positions map[string]models.Position
	bids      map[string]models.BidEvent
}

func NewStore(account string) *Store {
	return &Store{
		account:   account,
		positions: make(map[string]models.Position),
		bids:      make(map[string]models.BidEvent),
	}
}

func (s *Store) Account() string { return s.account }

func (s *Store) SetPosition(symbol string, qty float64, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[symbol] = models.Position{
		Pair:     symbol,
		Quantity: qty,
		Updated:  time.Now(),
		Source:   source,
	}
}

func (s *Store) Position(symbol string) (models.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	return p, ok
}

// PositionByCurrency sums the positions whose base currency matches, so a
// feed that reports "ETH" and one that reports "ETH/USDC" read the same.
func (s *Store) PositionByCurrency(currency string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	found := false
	for symbol, p := range s.positions {
		if helper.BaseCurrency(symbol) == currency {
			total += p.Quantity
			found = true
		}
	}
	return total, found
}

// Snapshot returns a copy safe to hand to HTTP handlers.
func (s *Store) Snapshot() map[string]models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Position, len(s.positions))
	for k, v := range s.positions {
		out[k] = v
	}
	return out
}

func (s *Store) SetBid(ev models.BidEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[ev.Symbol] = ev
}

// LastBid returns the freshest observed bid for a base currency.
func (s *Store) LastBid(currency string) (models.BidEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.bids[currency]
	return ev, ok
}
