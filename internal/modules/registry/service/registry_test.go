package service

import (
	"errors"
	"testing"

	"trade_router/internal/models"
	"trade_router/internal/modules/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Global.DefaultTimeframe = "1h"
	cfg.Accounts = []*models.AccountConfig{
		{Name: "alpha", Timeframes: []string{"1m", "5m"}},
		{Name: "beta", Timeframes: []string{"1h", "4h"}},
	}
	return cfg
}

func TestResolveByTimeframe(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, NewRegistry(cfg))

	acc, err := router.Resolve("5m")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Name != "alpha" {
		t.Fatalf("got %q", acc.Name)
	}

	acc, err = router.Resolve("4H") // case and whitespace are forgiven
	if err != nil {
		t.Fatal(err)
	}
	if acc.Name != "beta" {
		t.Fatalf("got %q", acc.Name)
	}
}

func TestResolveEmptyTimeframeUsesDefault(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, NewRegistry(cfg))

	acc, err := router.Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Name != "beta" { // beta owns the default 1h
		t.Fatalf("got %q", acc.Name)
	}
}

func TestResolveUnknownTimeframe(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, NewRegistry(cfg))

	_, err := router.Resolve("2h")
	var rErr *RoutingError
	if !errors.As(err, &rErr) {
		t.Fatalf("expected RoutingError, got %v", err)
	}
}

func TestResolveUnknownTimeframeFallsBackToDefaultAccount(t *testing.T) {
	cfg := testConfig()
	cfg.Global.DefaultAccount = "alpha"
	router := NewRouter(cfg, NewRegistry(cfg))

	acc, err := router.Resolve("2h")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Name != "alpha" {
		t.Fatalf("got %q", acc.Name)
	}
}

func TestLastRegistrationWins(t *testing.T) {
	cfg := testConfig()
	cfg.Accounts = append(cfg.Accounts, &models.AccountConfig{
		Name:       "gamma",
		Timeframes: []string{"5m"},
	})
	registry := NewRegistry(cfg)

	acc, ok := registry.ByTimeframe("5m")
	if !ok || acc.Name != "gamma" {
		t.Fatalf("5m owner = %v, ok=%v", acc, ok)
	}
	// alpha keeps its uncontested claim
	acc, ok = registry.ByTimeframe("1m")
	if !ok || acc.Name != "alpha" {
		t.Fatalf("1m owner = %v, ok=%v", acc, ok)
	}
}

func TestTimeframeNormalizationOnRegister(t *testing.T) {
	cfg := &config.Config{}
	cfg.Global.DefaultTimeframe = "1h"
	cfg.Accounts = []*models.AccountConfig{
		{Name: "alpha", Timeframes: []string{"60m", "24H"}},
	}
	registry := NewRegistry(cfg)

	if _, ok := registry.ByTimeframe("1h"); !ok {
		t.Error("60m should register as 1h")
	}
	if _, ok := registry.ByTimeframe("1d"); !ok {
		t.Error("24H should register as 1d")
	}
}
