package service

import (
	"fmt"

	"trade_router/internal/helper"
	"trade_router/internal/models"
	"trade_router/internal/modules/config"
	"trade_router/pkg/logger"
)

// RoutingError means no account could be picked for a signal.
type RoutingError struct {
	Timeframe string
	Reason    string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing: timeframe %q: %s", e.Timeframe, e.Reason)
}

// Router resolves a signal timeframe to the owning account. Unknown
// timeframes fall through to the default account when one is configured.
type Router struct {
	registry         *Registry
	defaultTimeframe string
	defaultAccount   string
}

func NewRouter(cfg *config.Config, registry *Registry) *Router {
	return &Router{
		registry:         registry,
		defaultTimeframe: helper.NormTF(cfg.Global.DefaultTimeframe),
		defaultAccount:   cfg.Global.DefaultAccount,
	}
}

// Resolve picks the account for a raw timeframe string. An empty timeframe
// takes the default timeframe first.
func (r *Router) Resolve(rawTF string) (*models.AccountConfig, error) {
	tf := helper.NormTF(rawTF)
	if tf == "" {
		tf = r.defaultTimeframe
		logger.Debug("signal without timeframe, using default %s", tf)
	}

	if acc, ok := r.registry.ByTimeframe(tf); ok {
		return acc, nil
	}

	if r.defaultAccount != "" {
		if acc, ok := r.registry.Account(r.defaultAccount); ok {
			logger.Warn("timeframe %s is unclaimed, falling back to account %s", tf, acc.Name)
			return acc, nil
		}
	}

	return nil, &RoutingError{Timeframe: tf, Reason: "no account claims it and no default account is set"}
}
