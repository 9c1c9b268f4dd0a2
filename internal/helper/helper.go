package helper

import (
	"strings"

	"github.com/shopspring/decimal"

	"trade_router/internal/models"
)

// SplitPair breaks "BTC/USDC" into base and quote.
func SplitPair(pair string) (base, quote string, ok bool) {
	i := strings.IndexByte(pair, '/')
	if i <= 0 || i >= len(pair)-1 {
		return "", "", false
	}
	return pair[:i], pair[i+1:], true
}

// BaseCurrency returns the base leg of a pair, or the input unchanged when it
// is already a bare currency.
func BaseCurrency(symbol string) string {
	if base, _, ok := SplitPair(symbol); ok {
		return base
	}
	return symbol
}

// NormTF canonicalizes a timeframe routing key.
func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "60m":
		return "1h"
	case "24h":
		return "1d"
	}
	return s
}

// Truncate cuts v to the given number of decimals toward zero, never
// rounding. Decimal arithmetic avoids the float artifacts that made
// 0.0129 truncate to 0.013.
func Truncate(v float64, decimals int) float64 {
	f, _ := decimal.NewFromFloat(v).Truncate(int32(decimals)).Float64()
	return f
}

// RoundPrice rounds v half-up to the currency's price precision.
func RoundPrice(v float64, decimals int) float64 {
	f, _ := decimal.NewFromFloat(v).Round(int32(decimals)).Float64()
	return f
}

// AdjustPrice applies the account's side-dependent price adjustment and
// rounds to the currency's price precision.
func AdjustPrice(price float64, side models.Side, bidAdj, askAdj float64, decimals int) float64 {
	adj := askAdj
	if side == models.SideBid {
		adj = bidAdj
	}
	p := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(adj))
	f, _ := p.Round(int32(decimals)).Float64()
	return f
}
