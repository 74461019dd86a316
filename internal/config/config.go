package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Strategy names.
const (
	StrategyMomentum = "momentum"
	StrategyScalping = "scalping"
)

// Execution modes.
const (
	ExecutionAuto  = "auto"
	ExecutionTWAP  = "twap"
	ExecutionLimit = "limit"
)

var (
	ErrInvalidStrategy = errors.New("unknown strategy")
	ErrInvalidMode     = errors.New("unknown execution mode")
	ErrLiveTrading     = errors.New("live order placement is not supported, set trading.paper=true")
)

// Config holds all configuration for the application.
// It is built once by Load and must not be mutated afterwards.
type Config struct {
	Strategy  Strategy  `mapstructure:"strategy"`
	Market    Market    `mapstructure:"market"`
	Trading   Trading   `mapstructure:"trading"`
	Risk      Risk      `mapstructure:"risk"`
	Execution Execution `mapstructure:"execution"`
	Sentiment Sentiment `mapstructure:"sentiment"`
	Files     Files     `mapstructure:"files"`
	Database  Database  `mapstructure:"database"`
	Server    Server    `mapstructure:"server"`
	Telegram  Telegram  `mapstructure:"telegram"`
	Logger    Logger    `mapstructure:"logger"`
}

// Strategy holds the signal engine parameters.
type Strategy struct {
	Name          string  `mapstructure:"name"`
	EMALen        int     `mapstructure:"ema_len"`
	ZScoreLen     int     `mapstructure:"zscore_len"`
	ZScoreEntry   float64 `mapstructure:"zscore_entry"`
	CooldownSec   float64 `mapstructure:"cooldown_sec"`
	RSIOversold   float64 `mapstructure:"rsi_oversold"`
	RSIOverbought float64 `mapstructure:"rsi_overbought"`
}

// Market holds the market data stream configuration.
type Market struct {
	Symbol         string        `mapstructure:"symbol"`
	WSURL          string        `mapstructure:"ws_url"`
	BookDepth      int           `mapstructure:"book_depth"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// Instrument converts a "BASE/QUOTE" symbol into the exchange's "BASE_QUOTE" form.
func (m Market) Instrument() string {
	return strings.ToUpper(strings.ReplaceAll(m.Symbol, "/", "_"))
}

// Trading holds budget and per-trade sizing parameters.
type Trading struct {
	Paper           bool    `mapstructure:"paper"`
	TotalBudgetUSDT float64 `mapstructure:"total_budget_usdt"`
	RiskPerTradePct float64 `mapstructure:"risk_per_trade_pct"`
	StopLossPct     float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct   float64 `mapstructure:"take_profit_pct"`
}

// Risk holds the circuit breaker parameters.
type Risk struct {
	DailyDrawdownPct     float64 `mapstructure:"daily_drawdown_pct"`
	ThrottleWindow       int     `mapstructure:"throttle_window"`
	ThrottleThresholdPct float64 `mapstructure:"throttle_threshold_pct"`
	MaxSpreadPct         float64 `mapstructure:"max_spread_pct"`
}

// Execution holds order routing parameters.
type Execution struct {
	Mode                    string  `mapstructure:"mode"`
	LargeOrderThresholdUSDT float64 `mapstructure:"large_order_threshold_usdt"`
	TWAPDurationMinutes     int     `mapstructure:"twap_duration_minutes"`
	TWAPOrderSlices         int     `mapstructure:"twap_order_slices"`
}

// Sentiment holds the configuration for the sentiment service.
type Sentiment struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	NewsURL        string        `mapstructure:"news_url"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// Files holds the paths of the files shared with the dashboard.
type Files struct {
	TradesCSV        string        `mapstructure:"trades_csv"`
	LiveData         string        `mapstructure:"live_data"`
	AIStatus         string        `mapstructure:"ai_status"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

// Database holds the configuration for the database.
type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Server holds the configuration for the web servers.
type Server struct {
	Port   int `mapstructure:"port"`
	UIPort int `mapstructure:"ui_port"`
}

// Telegram holds the notifier configuration. Notifications are off when BotToken is empty.
type Telegram struct {
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flatKeys maps the flat keys written by the dashboard onto their nested keys.
var flatKeys = map[string]string{
	"strategy_name":      "strategy.name",
	"symbol_ccxt":        "market.symbol",
	"total_budget_usdt":  "trading.total_budget_usdt",
	"risk_per_trade_pct": "trading.risk_per_trade_pct",
	"stop_loss_pct":      "trading.stop_loss_pct",
	"take_profit_pct":    "trading.take_profit_pct",
	"ema_len":            "strategy.ema_len",
	"zscore_entry":       "strategy.zscore_entry",
	"rsi_oversold":       "strategy.rsi_oversold",
	"rsi_overbought":     "strategy.rsi_overbought",
}

// envNames binds the historical process variables.
var envNames = map[string]string{
	"strategy.ema_len":            "EMA_LEN",
	"strategy.zscore_len":         "ZSCORE_LEN",
	"strategy.zscore_entry":       "ZSCORE_ENTRY",
	"strategy.cooldown_sec":       "COOLDOWN_SEC",
	"risk.daily_drawdown_pct":     "DRAWDOWN_PCT",
	"risk.throttle_window":        "THROTTLE_WINDOW",
	"risk.throttle_threshold_pct": "THROTTLE_THRESHOLD",
	"risk.max_spread_pct":         "MAX_SPREAD_PCT",
	"market.ws_url":               "CRYPTOCOM_WS_URL",
	"trading.paper":               "PAPER",
	"logger.level":                "LOG_LEVEL",
	"sentiment.api_key":           "OPENAI_API_KEY",
	"telegram.bot_token":          "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":            "TELEGRAM_CHAT_ID",
	"database.dsn":                "DATABASE_DSN",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("strategy.name", StrategyScalping)
	v.SetDefault("strategy.ema_len", 12)
	v.SetDefault("strategy.zscore_len", 20)
	v.SetDefault("strategy.zscore_entry", 0.4)
	v.SetDefault("strategy.cooldown_sec", 10)
	v.SetDefault("strategy.rsi_oversold", 45)
	v.SetDefault("strategy.rsi_overbought", 55)

	v.SetDefault("market.symbol", "BTC/USDT")
	v.SetDefault("market.ws_url", "wss://stream.crypto.com/exchange/v1/market")
	v.SetDefault("market.book_depth", 10)
	v.SetDefault("market.reconnect_delay", 5*time.Second)

	v.SetDefault("trading.paper", true)
	v.SetDefault("trading.total_budget_usdt", 1000)
	v.SetDefault("trading.risk_per_trade_pct", 0.01)
	v.SetDefault("trading.stop_loss_pct", 0.004)
	v.SetDefault("trading.take_profit_pct", 0.01)

	v.SetDefault("risk.daily_drawdown_pct", 0.02)
	v.SetDefault("risk.throttle_window", 20)
	v.SetDefault("risk.throttle_threshold_pct", 0.40)
	v.SetDefault("risk.max_spread_pct", 0.001)

	v.SetDefault("execution.mode", ExecutionAuto)
	v.SetDefault("execution.large_order_threshold_usdt", 500)
	v.SetDefault("execution.twap_duration_minutes", 30)
	v.SetDefault("execution.twap_order_slices", 10)

	v.SetDefault("sentiment.base_url", "https://api.openai.com/v1")
	v.SetDefault("sentiment.model", "gpt-3.5-turbo")
	v.SetDefault("sentiment.cache_ttl", 15*time.Minute)
	v.SetDefault("sentiment.timeout", 10*time.Second)
	v.SetDefault("sentiment.rate_limit", 1)
	v.SetDefault("sentiment.rate_limit_burst", 1)

	v.SetDefault("files.trades_csv", "data/trades.csv")
	v.SetDefault("files.live_data", "data/live_data.json")
	v.SetDefault("files.ai_status", "data/ai_status.json")
	v.SetDefault("files.snapshot_interval", time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/trades.db")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.ui_port", 8081)

	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}

// LoadConfig reads configuration from defaults, an optional config file and the environment.
// A missing file is not an error.
func LoadConfig(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if file != "" {
		if _, err := os.Stat(file); err == nil {
			v.SetConfigFile(file)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", file, err)
		}
	}

	// Registered after reading so flat values already in the file move onto their nested keys.
	for flat, nested := range flatKeys {
		v.RegisterAlias(flat, nested)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Strategy.Name = strings.ToLower(strings.TrimSpace(cfg.Strategy.Name))
	cfg.Execution.Mode = strings.ToLower(strings.TrimSpace(cfg.Execution.Mode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the trading loop cannot work with.
func (c *Config) Validate() error {
	switch c.Strategy.Name {
	case StrategyMomentum, StrategyScalping:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, c.Strategy.Name)
	}
	switch c.Execution.Mode {
	case ExecutionAuto, ExecutionTWAP, ExecutionLimit:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Execution.Mode)
	}
	if !c.Trading.Paper {
		return ErrLiveTrading
	}
	if c.Market.Symbol == "" {
		return errors.New("market.symbol is required")
	}
	if c.Market.WSURL == "" {
		return errors.New("market.ws_url is required")
	}
	if c.Market.ReconnectDelay <= 0 {
		return errors.New("market.reconnect_delay must be positive")
	}
	if c.Trading.TotalBudgetUSDT <= 0 {
		return errors.New("trading.total_budget_usdt must be positive")
	}
	if c.Trading.RiskPerTradePct <= 0 || c.Trading.RiskPerTradePct > 1 {
		return errors.New("trading.risk_per_trade_pct must be in (0, 1]")
	}
	if c.Strategy.EMALen <= 0 {
		return errors.New("strategy.ema_len must be positive")
	}
	if c.Strategy.ZScoreLen < 2 {
		return errors.New("strategy.zscore_len must be at least 2")
	}
	if c.Strategy.CooldownSec < 0 {
		return errors.New("strategy.cooldown_sec must not be negative")
	}
	if c.Strategy.RSIOversold < 0 || c.Strategy.RSIOversold > 100 ||
		c.Strategy.RSIOverbought < 0 || c.Strategy.RSIOverbought > 100 {
		return errors.New("strategy RSI bands must be within [0, 100]")
	}
	if c.Risk.DailyDrawdownPct <= 0 || c.Risk.DailyDrawdownPct > 1 {
		return errors.New("risk.daily_drawdown_pct must be in (0, 1]")
	}
	if c.Risk.ThrottleWindow <= 0 {
		return errors.New("risk.throttle_window must be positive")
	}
	if c.Risk.ThrottleThresholdPct < 0 || c.Risk.ThrottleThresholdPct > 1 {
		return errors.New("risk.throttle_threshold_pct must be in [0, 1]")
	}
	if c.Execution.LargeOrderThresholdUSDT < 0 {
		return errors.New("execution.large_order_threshold_usdt must not be negative")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// Overrides returns the dashboard-editable settings keyed by their flat names.
func (c *Config) Overrides() map[string]any {
	return map[string]any{
		"strategy_name":      c.Strategy.Name,
		"symbol_ccxt":        c.Market.Symbol,
		"total_budget_usdt":  c.Trading.TotalBudgetUSDT,
		"risk_per_trade_pct": c.Trading.RiskPerTradePct,
		"stop_loss_pct":      c.Trading.StopLossPct,
		"take_profit_pct":    c.Trading.TakeProfitPct,
		"ema_len":            c.Strategy.EMALen,
		"zscore_entry":       c.Strategy.ZScoreEntry,
		"rsi_oversold":       c.Strategy.RSIOversold,
		"rsi_overbought":     c.Strategy.RSIOverbought,
	}
}

// SaveOverrides merges flat dashboard keys into the config file at path, creating it if needed.
// Keys that are not dashboard-editable are rejected.
func SaveOverrides(path string, overrides map[string]any) error {
	for key := range overrides {
		if _, ok := flatKeys[key]; !ok {
			return fmt.Errorf("unknown setting %q", key)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	for key, value := range overrides {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
