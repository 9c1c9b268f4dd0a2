package service

import (
	"testing"

	"trade_router/internal/models"
)

func TestStoreSnapshotIsACopy(t *testing.T) {
	s := NewStore("alpha")
	s.SetPosition("BTC/USDC", 1.5, "balance")

	snap := s.Snapshot()
	snap["BTC/USDC"] = models.Position{Quantity: 99}

	p, _ := s.Position("BTC/USDC")
	if p.Quantity != 1.5 {
		t.Fatalf("snapshot mutated the store: %v", p.Quantity)
	}
}

func TestPositionByCurrencySumsSymbols(t *testing.T) {
	s := NewStore("alpha")
	s.SetPosition("ETH", 2, "balance")
	s.SetPosition("ETH/USDC", -0.5, "balance")
	s.SetPosition("BTC", 1, "balance")

	total, ok := s.PositionByCurrency("ETH")
	if !ok || total != 1.5 {
		t.Fatalf("total = %v ok=%v", total, ok)
	}

	if _, ok := s.PositionByCurrency("SOL"); ok {
		t.Fatal("unknown currency must report not found")
	}
}

func TestLastBidOverwrites(t *testing.T) {
	s := NewStore("alpha")
	s.SetBid(models.BidEvent{Symbol: "BTC", Price: 100})
	s.SetBid(models.BidEvent{Symbol: "BTC", Price: 101})

	ev, ok := s.LastBid("BTC")
	if !ok || ev.Price != 101 {
		t.Fatalf("bid = %+v ok=%v", ev, ok)
	}
}
