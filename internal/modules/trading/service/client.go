package service

import (
	"fmt"
	"net/http"
	"time"

	"trade_router/internal/models"
	"trade_router/internal/modules/config"
)

// Client talks REST to one account's custodian venue: token login for the
// streaming feed plus signed order placement.
type Client struct {
	acc  *models.AccountConfig
	http *http.Client

	// sleep is swappable for tests, defaults to time.Sleep.
	sleep func(d time.Duration)
}

func NewClient(acc *models.AccountConfig, timeout time.Duration) *Client {
	return &Client{
		acc:   acc,
		http:  &http.Client{Timeout: timeout},
		sleep: time.Sleep,
	}
}

func (c *Client) Account() *models.AccountConfig { return c.acc }

// Clients maps account name to its venue client.
type Clients map[string]*Client

func NewClients(cfg *config.Config) Clients {
	out := make(Clients, len(cfg.Accounts))
	for _, acc := range cfg.Accounts {
		out[acc.Name] = NewClient(acc, cfg.Global.HTTPTimeout)
	}
	return out
}

// Get returns the client for an account.
func (cs Clients) Get(account string) (*Client, error) {
	c, ok := cs[account]
	if !ok {
		return nil, fmt.Errorf("no trading client for account %q", account)
	}
	return c, nil
}
