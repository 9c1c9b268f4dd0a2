package models

import "time"

// Side is the order side on the custodian venue.
type Side string

const (
	SideNone Side = ""
	SideBid  Side = "BID"
	SideAsk  Side = "ASK"
)

// Signal is an inbound alert as delivered by the webhook:
// a pre-decided buy/sell with the timeframe used purely as a routing key.
type Signal struct {
	Timeframe string
	Message   string
	Pair      string
	Price     float64
	Received  time.Time
}

// OrderOutcome reports what the dispatcher did with an accepted signal.
type OrderOutcome struct {
	Account  string
	Pair     string
	Side     Side
	Price    float64
	Quantity float64
	ClOrdID  string
	OrderID  string
	Accepted bool
	Reason   string
}
