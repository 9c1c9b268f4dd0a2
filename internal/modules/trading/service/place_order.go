package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"trade_router/internal/models"
	"trade_router/pkg/logger"
)

const ordersPath = "/rest/orders"

// Submit sends a single signed order attempt, no retries. Rejections come
// back as *OrderRejectedError so callers can decide whether to retry.
func (c *Client) Submit(ctx context.Context, order *OrderRequest) (*models.OrderOutcome, error) {
	payload, err := sonic.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	_, signature := signBody(c.acc.Credentials.APISecret, http.MethodPost, ordersPath, payload)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.acc.Credentials.APIURL+ordersPath,
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("new order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.acc.Credentials.APIKey)
	req.Header.Set("api-sign", signature)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send order: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	outcome := &models.OrderOutcome{
		Account:  c.acc.Name,
		Pair:     order.Symbol,
		Side:     order.Side,
		Price:    order.Price,
		Quantity: order.OrderQty,
		ClOrdID:  order.ClOrdID,
	}

	if resp.StatusCode/100 != 2 {
		return outcome, &OrderRejectedError{
			Account: c.acc.Name,
			ClOrdID: order.ClOrdID,
			Reason:  fmt.Sprintf("http %d: %s", resp.StatusCode, string(data)),
		}
	}

	var r orderResponse
	if err := sonic.Unmarshal(data, &r); err != nil {
		return outcome, fmt.Errorf("decode order response: %w; body=%s", err, string(data))
	}

	outcome.OrderID = r.OrderID
	outcome.Accepted = true
	return outcome, nil
}

// PlaceOrder submits with the account's retry policy: transient rejections
// are retried up to max_retries with a linearly growing delay, anything
// else fails immediately.
func (c *Client) PlaceOrder(ctx context.Context, order *OrderRequest) (*models.OrderOutcome, error) {
	var lastErr error
	for attempt := 0; attempt < c.acc.Trading.MaxRetries; attempt++ {
		if attempt > 0 {
			c.sleep(c.acc.Trading.RetryDelay * time.Duration(attempt))
		}

		outcome, err := c.Submit(ctx, order)
		if err == nil {
			logger.Info("order accepted: account=%s %s %s qty=%v price=%v clOrdId=%s orderId=%s",
				c.acc.Name, order.Side, order.Symbol, order.OrderQty, order.Price, order.ClOrdID, outcome.OrderID)
			return outcome, nil
		}
		lastErr = err

		rej, ok := err.(*OrderRejectedError)
		if !ok || !Retriable(rej.Reason) {
			return outcome, err
		}
		logger.Warn("order attempt %d/%d rejected, retrying: account=%s clOrdId=%s reason=%s",
			attempt+1, c.acc.Trading.MaxRetries, c.acc.Name, order.ClOrdID, rej.Reason)
	}
	return nil, lastErr
}
