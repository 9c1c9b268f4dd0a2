package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"trade_router/internal/helper"
	"trade_router/internal/models"
)

// OrderRequest is the venue's order placement body. Prices and quantities
// are already adjusted and truncated by the caller.
type OrderRequest struct {
	Side        models.Side `json:"side"`
	Price       float64     `json:"price"`
	CustodianID string      `json:"custodianId"`
	Symbol      string      `json:"symbol"`
	OrderQty    float64     `json:"orderQty"`
	ClOrdID     string      `json:"clOrdId"`
	OrderType   string      `json:"orderType"`
	TIF         string      `json:"tif"`
	Dark        bool        `json:"dark"`
	IsAvgPrice  bool        `json:"isAvgPrice"`
	Venue       string      `json:"venue"`
	Currency    string      `json:"currency"`
	Currency2   string      `json:"currency2"`
}

// NewOrderRequest builds a LIMIT order for the account with a fresh client
// order id. Pair must be of the BASE/QUOTE form.
func NewOrderRequest(acc *models.AccountConfig, pair string, side models.Side, price, qty float64) (*OrderRequest, error) {
	base, quote, ok := helper.SplitPair(pair)
	if !ok {
		return nil, fmt.Errorf("malformed pair %q", pair)
	}
	return &OrderRequest{
		Side:        side,
		Price:       price,
		CustodianID: acc.Credentials.CustodianID,
		Symbol:      pair,
		OrderQty:    qty,
		ClOrdID:     uuid.NewString(),
		OrderType:   "LIMIT",
		TIF:         acc.Trading.DefaultTIF,
		Dark:        false,
		IsAvgPrice:  false,
		Venue:       "LIT",
		Currency:    base,
		Currency2:   quote,
	}, nil
}

type orderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Text    string `json:"text"`
}

// AuthError is a failed token exchange. Callers treat it as retryable.
type AuthError struct {
	Account string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: account %s: %v", e.Account, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// OrderRejectedError is a venue-side rejection of a well-formed order.
type OrderRejectedError struct {
	Account string
	ClOrdID string
	Reason  string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected: account %s clOrdId %s: %s", e.Account, e.ClOrdID, e.Reason)
}

// Transient venue states worth retrying. Everything else fails fast.
var retriableReasons = []string{
	"No custodian isos",
	"No liquidity",
	"IOC expired",
	"Insufficient funds",
}

// Retriable reports whether a rejection reason is transient.
func Retriable(reason string) bool {
	for _, s := range retriableReasons {
		if strings.Contains(reason, s) {
			return true
		}
	}
	return false
}
