package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"trade_router/internal/helper"
	"trade_router/internal/models"
	"trade_router/pkg/logger"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSNENV    = "DATABASE_DSN"
)

// ConfigError aborts startup: the process must never run half-configured.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "configuration: " + e.Reason }

func errf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Global holds the settings shared by every account.
type Global struct {
	ValidMessages     map[string]models.Side // alert text -> order side
	ValidTimeframes   []string
	DefaultTimeframe  string
	DefaultAccount    string
	MinSignalInterval time.Duration
	PositionPoll      time.Duration
	Heartbeat         time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	HTTPTimeout       time.Duration
	BidQueueSize      int
}

type Config struct {
	Service struct {
		Host       string
		PublicPort int
	}
	LogLevel string
	DB       string
	Telegram struct {
		Token  string
		ChatID int64
	}
	Tracing struct {
		Enabled bool
		Host    string
		Port    int
	}
	Global   Global
	Accounts []*models.AccountConfig
}

// Account returns an enabled account by name.
func (c *Config) Account(name string) (*models.AccountConfig, bool) {
	for _, a := range c.Accounts {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// file-level schema; durations come in as plain seconds and are
// converted on load.
type fileConfig struct {
	Service struct {
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"`
	} `yaml:"service"`
	LogLevel string `yaml:"log_level"`
	DB       string `yaml:"db_dsn"`
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`
	Global struct {
		ValidMessages     map[string]string `yaml:"valid_messages"`
		ValidTimeframes   []string          `yaml:"valid_timeframes"`
		DefaultTimeframe  string            `yaml:"default_timeframe"`
		DefaultAccount    string            `yaml:"default_account"`
		MinSignalInterval float64           `yaml:"min_signal_interval"`
		PositionPoll      float64           `yaml:"position_poll_interval"`
		Heartbeat         float64           `yaml:"heartbeat_interval"`
		ReconnectDelay    float64           `yaml:"reconnect_delay"`
		MaxReconnectDelay float64           `yaml:"max_reconnect_delay"`
		HTTPTimeout       float64           `yaml:"http_timeout"`
		BidQueueSize      int               `yaml:"bid_queue_size"`
	} `yaml:"global"`
	Accounts []fileAccount `yaml:"accounts"`
}

type fileAccount struct {
	Name            string   `yaml:"name"`
	Enabled         *bool    `yaml:"enabled"`
	CredentialsFile string   `yaml:"credentials_file"`
	Timeframes      []string `yaml:"timeframes"`
	TradingPairs    []string `yaml:"trading_pairs"`
	Trading         struct {
		DefaultTIF       string  `yaml:"default_tif"`
		BidAdjustment    float64 `yaml:"bid_adjustment"`
		AskAdjustment    float64 `yaml:"ask_adjustment"`
		MaxRetries       int     `yaml:"max_retries"`
		RetryDelay       float64 `yaml:"retry_delay"`
		RepoInterestRate float64 `yaml:"repo_interest_rate"`
	} `yaml:"trading"`
	AutoShort struct {
		Enabled           bool    `yaml:"enabled"`
		TriggerPercentage float64 `yaml:"trigger_percentage"`
		Cooldown          float64 `yaml:"cooldown"`
		PriceAdjustment   float64 `yaml:"price_adjustment"`
		MaxAttempts       int     `yaml:"max_attempts"`
	} `yaml:"auto_short"`
	Currencies map[string]struct {
		MinQuantity        float64 `yaml:"min_quantity"`
		MaxQuantity        float64 `yaml:"max_quantity"`
		PriceDecimals      int     `yaml:"price_decimals"`
		RepoQty            float64 `yaml:"repo_qty"`
		StrictLimit        float64 `yaml:"strict_limit"`
		TruncationDecimals int     `yaml:"truncation_decimals"`
		AutoShortQuantity  float64 `yaml:"auto_short_quantity"`
	} `yaml:"currencies"`
}

// NewConfig loads the config file named by CONFIG_FILE from ./configs.
func NewConfig() (*Config, error) {
	name := os.Getenv(configFilePathENV)
	if name == "" {
		name = "values_local.yaml"
	}
	return Load(filepath.Join("configs", name))
}

// Load reads, converts and validates the configuration. Any problem is
// fatal to startup by contract.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open config %s", path)
	}
	defer func() {
		_ = file.Close()
	}()

	var raw fileConfig
	if err := yaml.NewDecoder(file).Decode(&raw); err != nil {
		return nil, pkgerrors.Wrapf(err, "decode config %s", path)
	}

	cfg, err := convert(&raw, filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		cfg.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSNENV); dsn != "" {
		cfg.DB = dsn
	}

	logger.Info("loaded configuration from %s: %d account(s)", path, len(cfg.Accounts))
	return cfg, nil
}

func seconds(v, def float64) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v * float64(time.Second))
}

func convert(raw *fileConfig, baseDir string) (*Config, error) {
	cfg := &Config{}
	cfg.Service.Host = raw.Service.Host
	if cfg.Service.Host == "" {
		cfg.Service.Host = "0.0.0.0"
	}
	cfg.Service.PublicPort = raw.Service.PublicPort
	if cfg.Service.PublicPort == 0 {
		cfg.Service.PublicPort = 6101
	}
	cfg.LogLevel = raw.LogLevel
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.DB = raw.DB
	cfg.Telegram.Token = raw.Telegram.Token
	cfg.Telegram.ChatID = raw.Telegram.ChatID
	cfg.Tracing.Enabled = raw.Tracing.Enabled
	cfg.Tracing.Host = raw.Tracing.Host
	if cfg.Tracing.Host == "" {
		cfg.Tracing.Host = "127.0.0.1"
	}
	cfg.Tracing.Port = raw.Tracing.Port
	if cfg.Tracing.Port == 0 {
		cfg.Tracing.Port = 6831
	}

	g := &cfg.Global
	g.ValidMessages = make(map[string]models.Side)
	if len(raw.Global.ValidMessages) == 0 {
		g.ValidMessages["Trend Buy!"] = models.SideBid
		g.ValidMessages["Trend Sell!"] = models.SideAsk
	}
	for msg, side := range raw.Global.ValidMessages {
		switch models.Side(side) {
		case models.SideBid, models.SideAsk:
			g.ValidMessages[msg] = models.Side(side)
		default:
			return nil, errf("message %q maps to unknown side %q", msg, side)
		}
	}
	g.ValidTimeframes = raw.Global.ValidTimeframes
	if len(g.ValidTimeframes) == 0 {
		g.ValidTimeframes = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}
	}
	g.DefaultTimeframe = raw.Global.DefaultTimeframe
	if g.DefaultTimeframe == "" {
		g.DefaultTimeframe = "1h"
	}
	g.DefaultAccount = raw.Global.DefaultAccount
	g.MinSignalInterval = seconds(raw.Global.MinSignalInterval, 5)
	g.PositionPoll = seconds(raw.Global.PositionPoll, 30)
	g.Heartbeat = seconds(raw.Global.Heartbeat, 30)
	g.ReconnectDelay = seconds(raw.Global.ReconnectDelay, 5)
	g.MaxReconnectDelay = seconds(raw.Global.MaxReconnectDelay, 80)
	g.HTTPTimeout = seconds(raw.Global.HTTPTimeout, 15)
	g.BidQueueSize = raw.Global.BidQueueSize
	if g.BidQueueSize <= 0 {
		g.BidQueueSize = 1024
	}

	for i := range raw.Accounts {
		acc, err := convertAccount(&raw.Accounts[i], baseDir)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			continue // disabled
		}
		cfg.Accounts = append(cfg.Accounts, acc)
	}
	if len(cfg.Accounts) == 0 {
		return nil, errf("no enabled accounts")
	}
	if g.DefaultAccount != "" {
		if _, ok := cfg.Account(g.DefaultAccount); !ok {
			return nil, errf("default account %q is not an enabled account", g.DefaultAccount)
		}
	}
	return cfg, nil
}

func convertAccount(fa *fileAccount, baseDir string) (*models.AccountConfig, error) {
	if fa.Name == "" {
		return nil, errf("account missing name")
	}
	if fa.Enabled != nil && !*fa.Enabled {
		logger.Info("account %s disabled, skipping", fa.Name)
		return nil, nil
	}
	if fa.CredentialsFile == "" {
		return nil, errf("account %s: missing credentials_file", fa.Name)
	}
	if len(fa.Timeframes) == 0 {
		return nil, errf("account %s: missing timeframes", fa.Name)
	}
	if len(fa.TradingPairs) == 0 {
		return nil, errf("account %s: missing trading_pairs", fa.Name)
	}

	creds, err := loadCredentials(fa.Name, fa.CredentialsFile, baseDir)
	if err != nil {
		return nil, err
	}

	acc := &models.AccountConfig{
		Name:         fa.Name,
		Credentials:  *creds,
		TradingPairs: fa.TradingPairs,
		Timeframes:   fa.Timeframes,
		Trading: models.TradingParams{
			DefaultTIF:       defStr(fa.Trading.DefaultTIF, "GTC"),
			BidAdjustment:    defFloat(fa.Trading.BidAdjustment, 1.05),
			AskAdjustment:    defFloat(fa.Trading.AskAdjustment, 0.95),
			MaxRetries:       defInt(fa.Trading.MaxRetries, 3),
			RetryDelay:       seconds(fa.Trading.RetryDelay, 1),
			RepoInterestRate: defFloat(fa.Trading.RepoInterestRate, 10),
		},
		AutoShort: models.AutoShortParams{
			Enabled:           fa.AutoShort.Enabled,
			TriggerPercentage: defFloat(fa.AutoShort.TriggerPercentage, 100),
			Cooldown:          seconds(fa.AutoShort.Cooldown, 300),
			PriceAdjustment:   defFloat(fa.AutoShort.PriceAdjustment, 0.95),
			MaxAttempts:       defInt(fa.AutoShort.MaxAttempts, 3),
		},
		Currencies: make(map[string]models.CurrencyLimit),
	}

	for currency, fc := range fa.Currencies {
		limit := models.CurrencyLimit{
			MinQuantity:        fc.MinQuantity,
			MaxQuantity:        fc.MaxQuantity,
			PriceDecimals:      fc.PriceDecimals,
			RepoQty:            fc.RepoQty,
			StrictLimit:        fc.StrictLimit,
			TruncationDecimals: fc.TruncationDecimals,
			AutoShortQuantity:  fc.AutoShortQuantity,
		}
		if limit.MinQuantity <= 0 || limit.MaxQuantity <= 0 || limit.StrictLimit <= 0 {
			return nil, errf("account %s: currency %s has a non-positive limit", fa.Name, currency)
		}
		if limit.PriceDecimals < 0 || limit.TruncationDecimals < 0 {
			return nil, errf("account %s: currency %s has negative decimals", fa.Name, currency)
		}
		if acc.AutoShort.Enabled && limit.AutoShortQuantity <= 0 {
			return nil, errf("account %s: currency %s needs auto_short_quantity with auto-short enabled", fa.Name, currency)
		}
		acc.Currencies[currency] = limit
	}

	for _, pair := range fa.TradingPairs {
		base, _, ok := helper.SplitPair(pair)
		if !ok {
			return nil, errf("account %s: malformed trading pair %q", fa.Name, pair)
		}
		if _, ok := acc.Currencies[base]; !ok {
			return nil, errf("account %s: no currency limits for %s (pair %s)", fa.Name, base, pair)
		}
	}

	return acc, nil
}

func loadCredentials(account, credPath, baseDir string) (*models.Credentials, error) {
	if !filepath.IsAbs(credPath) {
		credPath = filepath.Join(baseDir, credPath)
	}
	data, err := os.ReadFile(credPath)
	if err != nil {
		return nil, errf("account %s: credentials file %s: %v", account, credPath, err)
	}
	var creds models.Credentials
	if err := sonic.Unmarshal(data, &creds); err != nil {
		return nil, errf("account %s: credentials file %s: %v", account, credPath, err)
	}

	missing := func(field string) error {
		return errf("account %s: credentials missing %s", account, field)
	}
	switch {
	case creds.APIKey == "":
		return nil, missing("api_key")
	case creds.APISecret == "":
		return nil, missing("api_secret")
	case creds.APIURL == "":
		return nil, missing("api_url")
	case creds.APIBaseURL == "":
		return nil, missing("api_base_url")
	case creds.WSURL == "":
		return nil, missing("ws_url")
	case creds.CustodianID == "":
		return nil, missing("custodian_id")
	case creds.APIUsername == "":
		return nil, missing("api_username")
	case creds.APIPassword == "":
		return nil, missing("api_password")
	}
	return &creds, nil
}

func defStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func defFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
