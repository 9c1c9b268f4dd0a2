package models

import "time"

// Position is the live quantity for one trading pair as reported by the
// account's streaming feed. Negative means short.
type Position struct {
	Pair     string
	Quantity float64
	Updated  time.Time
	Source   string // feed identity that produced the last update
}

// BidEvent is one observed bid, consumed into the snapshot store and pushed
// to the bounded bid queue for downstream readers. Never persisted here.
type BidEvent struct {
	At     time.Time
	Pair   string
	Symbol string // base currency
	Price  float64
	Size   float64
	Source string // "ticker" or "marketdata"
}

// AttemptOutcome is the lifecycle state of a ShortAttempt.
type AttemptOutcome string

const (
	AttemptPending   AttemptOutcome = "pending"
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptFailed    AttemptOutcome = "failed"
)

// ShortAttempt tracks one auto-short action against a currency, kept in
// memory only. LastAt anchors the cooldown window regardless of outcome.
type ShortAttempt struct {
	Account  string
	Currency string
	Quantity float64
	Price    float64
	Attempts int
	LastAt   time.Time
	Outcome  AttemptOutcome
}
