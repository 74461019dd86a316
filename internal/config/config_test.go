package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Act
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StrategyScalping, cfg.Strategy.Name)
	assert.Equal(t, "BTC/USDT", cfg.Market.Symbol)
	assert.Equal(t, "BTC_USDT", cfg.Market.Instrument())
	assert.Equal(t, 5*time.Second, cfg.Market.ReconnectDelay)
	assert.Equal(t, 1000.0, cfg.Trading.TotalBudgetUSDT)
	assert.Equal(t, 0.01, cfg.Trading.RiskPerTradePct)
	assert.Equal(t, 12, cfg.Strategy.EMALen)
	assert.Equal(t, 20, cfg.Strategy.ZScoreLen)
	assert.Equal(t, 20, cfg.Risk.ThrottleWindow)
	assert.Equal(t, 0.40, cfg.Risk.ThrottleThresholdPct)
	assert.Equal(t, 0.02, cfg.Risk.DailyDrawdownPct)
	assert.Equal(t, ExecutionAuto, cfg.Execution.Mode)
	assert.Equal(t, 500.0, cfg.Execution.LargeOrderThresholdUSDT)
	assert.Equal(t, 15*time.Minute, cfg.Sentiment.CacheTTL)
	assert.True(t, cfg.Trading.Paper)
}

func TestLoadConfig_FlatDashboardKeys(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"strategy_name": "momentum",
		"symbol_ccxt": "ETH/USDT",
		"total_budget_usdt": 2500,
		"ema_len": 30,
		"zscore_entry": 1.5,
		"rsi_oversold": 30,
		"rsi_overbought": 70
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// Act
	cfg, err := LoadConfig(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StrategyMomentum, cfg.Strategy.Name)
	assert.Equal(t, "ETH_USDT", cfg.Market.Instrument())
	assert.Equal(t, 2500.0, cfg.Trading.TotalBudgetUSDT)
	assert.Equal(t, 30, cfg.Strategy.EMALen)
	assert.Equal(t, 1.5, cfg.Strategy.ZScoreEntry)
	assert.Equal(t, 30.0, cfg.Strategy.RSIOversold)
	assert.Equal(t, 70.0, cfg.Strategy.RSIOverbought)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	// Arrange
	t.Setenv("EMA_LEN", "21")
	t.Setenv("DRAWDOWN_PCT", "0.05")
	t.Setenv("EXECUTION_MODE", "twap")

	// Act
	cfg, err := LoadConfig("")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 21, cfg.Strategy.EMALen)
	assert.Equal(t, 0.05, cfg.Risk.DailyDrawdownPct)
	assert.Equal(t, ExecutionTWAP, cfg.Execution.Mode)
}

func TestLoadConfig_RejectsInvalidFile(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		errIs   error
	}{
		{"unknown strategy", `{"strategy_name": "grid"}`, ErrInvalidStrategy},
		{"live trading", `{"trading": {"paper": false}}`, ErrLiveTrading},
		{"negative budget", `{"total_budget_usdt": -5}`, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))

			// Act
			cfg, err := LoadConfig(path)

			// Assert
			require.Error(t, err)
			assert.Nil(t, cfg)
			if tc.errIs != nil {
				assert.ErrorIs(t, err, tc.errIs)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		return cfg
	}

	testCases := []struct {
		name   string
		mutate func(c *Config)
		errIs  error
	}{
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "grid" }, ErrInvalidStrategy},
		{"unknown mode", func(c *Config) { c.Execution.Mode = "iceberg" }, ErrInvalidMode},
		{"live trading", func(c *Config) { c.Trading.Paper = false }, ErrLiveTrading},
		{"zero budget", func(c *Config) { c.Trading.TotalBudgetUSDT = 0 }, nil},
		{"risk above one", func(c *Config) { c.Trading.RiskPerTradePct = 1.5 }, nil},
		{"short zscore window", func(c *Config) { c.Strategy.ZScoreLen = 1 }, nil},
		{"rsi out of range", func(c *Config) { c.Strategy.RSIOverbought = 120 }, nil},
		{"zero throttle window", func(c *Config) { c.Risk.ThrottleWindow = 0 }, nil},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			if tc.errIs != nil {
				assert.ErrorIs(t, err, tc.errIs)
			}
		})
	}
}

func TestSaveOverrides(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "config.json")

	// Act
	err := SaveOverrides(path, map[string]any{"strategy_name": "momentum", "ema_len": 40})
	require.NoError(t, err)
	cfg, err := LoadConfig(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StrategyMomentum, cfg.Strategy.Name)
	assert.Equal(t, 40, cfg.Strategy.EMALen)
	assert.Equal(t, 40, cfg.Overrides()["ema_len"])
}

func TestSaveOverrides_RejectsUnknownKey(t *testing.T) {
	err := SaveOverrides(filepath.Join(t.TempDir(), "config.json"), map[string]any{"api_key": "x"})
	assert.Error(t, err)
}
