package service

import (
	"sort"
	"sync"

	"trade_router/internal/helper"
	"trade_router/internal/models"
	"trade_router/internal/modules/config"
	"trade_router/pkg/logger"
)

// Registry owns the enabled accounts and the timeframe routing table.
// Registration order decides conflicts: the last account claiming a
// timeframe wins.
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]*models.AccountConfig
	byTF     map[string]string // timeframe -> account name
	order    []string
}

func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		accounts: make(map[string]*models.AccountConfig),
		byTF:     make(map[string]string),
	}
	for _, acc := range cfg.Accounts {
		r.Register(acc)
	}
	return r
}

// Register adds an account and claims its timeframes, overriding earlier
// claims with a warning.
func (r *Registry) Register(acc *models.AccountConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[acc.Name]; !ok {
		r.order = append(r.order, acc.Name)
	}
	r.accounts[acc.Name] = acc

	for _, tf := range acc.Timeframes {
		tf = helper.NormTF(tf)
		if prev, ok := r.byTF[tf]; ok && prev != acc.Name {
			logger.Warn("timeframe %s: account %s overrides %s", tf, acc.Name, prev)
		}
		r.byTF[tf] = acc.Name
	}
}

func (r *Registry) Account(name string) (*models.AccountConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[name]
	return acc, ok
}

// Names returns account names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ByTimeframe returns the owner of a canonical timeframe.
func (r *Registry) ByTimeframe(tf string) (*models.AccountConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byTF[tf]
	if !ok {
		return nil, false
	}
	acc, ok := r.accounts[name]
	return acc, ok
}

// Table snapshots the routing table for diagnostics.
func (r *Registry) Table() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.byTF))
	for tf, name := range r.byTF {
		out[tf] = name
	}
	return out
}

// Timeframes lists the claimed timeframes, sorted for stable logs.
func (r *Registry) Timeframes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byTF))
	for tf := range r.byTF {
		out = append(out, tf)
	}
	sort.Strings(out)
	return out
}
