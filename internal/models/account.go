package models

import "time"

// Credentials is the per-account secret material loaded from the account's
// credentials file. api_key/api_secret sign order placement, the
// username/password/code triple is exchanged for the bearer token that the
// streaming feed expects.
type Credentials struct {
	APIKey      string `json:"api_key"`
	APISecret   string `json:"api_secret"`
	APIUsername string `json:"api_username"`
	APIPassword string `json:"api_password"`
	APICode     string `json:"api_code"`
	APIURL      string `json:"api_url"`
	APIBaseURL  string `json:"api_base_url"`
	WSURL       string `json:"ws_url"`
	CustodianID string `json:"custodian_id"`
}

// TradingParams are the account-wide order parameters.
type TradingParams struct {
	DefaultTIF       string
	BidAdjustment    float64
	AskAdjustment    float64
	MaxRetries       int
	RetryDelay       time.Duration
	RepoInterestRate float64
}

// AutoShortParams control the automatic offsetting-short loop.
type AutoShortParams struct {
	Enabled           bool
	TriggerPercentage float64
	Cooldown          time.Duration
	PriceAdjustment   float64
	MaxAttempts       int
}

// CurrencyLimit is the per-base-currency quantity/precision envelope.
type CurrencyLimit struct {
	MinQuantity        float64
	MaxQuantity        float64
	PriceDecimals      int
	RepoQty            float64
	StrictLimit        float64
	TruncationDecimals int
	AutoShortQuantity  float64
}

// AccountConfig is one trading account: immutable after load, owned by the
// registry and passed by pointer to every component that serves the account.
type AccountConfig struct {
	Name         string
	Credentials  Credentials
	TradingPairs []string
	Timeframes   []string
	Trading      TradingParams
	AutoShort    AutoShortParams
	Currencies   map[string]CurrencyLimit
}

// Limit returns the currency envelope for a base currency.
func (a *AccountConfig) Limit(currency string) (CurrencyLimit, bool) {
	l, ok := a.Currencies[currency]
	return l, ok
}

// HasPair reports whether the account trades the given pair.
func (a *AccountConfig) HasPair(pair string) bool {
	for _, p := range a.TradingPairs {
		if p == pair {
			return true
		}
	}
	return false
}
