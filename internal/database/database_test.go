package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTest creates a fresh in-memory database with the schema applied.
func setupTest(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func exitAt(at time.Time, pnl float64) models.TradeRecord {
	return models.TradeRecord{
		Session:   "s1",
		Timestamp: at,
		Symbol:    "BTC_USDT",
		Action:    models.TradeExit,
		Side:      models.SideLong,
		Price:     100,
		Quantity:  0.1,
		Reason:    models.ReasonTakeProfit,
		PnL:       &pnl,
	}
}

func TestNewDatabase(t *testing.T) {
	t.Run("sqlite file is created and keeps data", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "nested", "trades.db")
		db, err := NewDatabase(config.Database{Driver: "sqlite", DSN: dsn})
		require.NoError(t, err)
		require.NoError(t, NewTradeStore(db).RecordTrade(context.Background(), exitAt(time.Now(), 1)))

		reopened, err := NewDatabase(config.Database{Driver: "sqlite", DSN: dsn})
		require.NoError(t, err)
		trades, err := NewTradeStore(reopened).Trades(context.Background(), 0)

		require.NoError(t, err)
		assert.Len(t, trades, 1)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewDatabase(config.Database{Driver: "oracle", DSN: "x"})
		assert.Error(t, err)
	})
}

func TestTradeStore_Trades(t *testing.T) {
	// Arrange
	store := NewTradeStore(setupTest(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	enter := exitAt(base, 0)
	enter.Action = models.TradeEnter
	enter.PnL = nil
	require.NoError(t, store.RecordTrade(ctx, enter))
	require.NoError(t, store.RecordTrade(ctx, exitAt(base.Add(time.Minute), 2)))

	// Act
	all, err := store.Trades(ctx, 0)
	require.NoError(t, err)
	latest, err := store.Trades(ctx, 1)
	require.NoError(t, err)

	// Assert
	require.Len(t, all, 2)
	assert.Equal(t, models.TradeExit, all[0].Action)
	assert.Nil(t, all[1].PnL)
	require.Len(t, latest, 1)
	assert.InDelta(t, 2.0, *latest[0].PnL, 1e-12)
}

func TestTradeStore_Statistics(t *testing.T) {
	// Arrange
	store := NewTradeStore(setupTest(t))
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	records := []models.TradeRecord{
		exitAt(now.Add(-48*time.Hour), 5),
		exitAt(now.Add(-2*time.Hour), -1),
		exitAt(now.Add(-1*time.Hour), 3),
	}
	for _, r := range records {
		require.NoError(t, store.RecordTrade(ctx, r))
	}
	enter := exitAt(now, 0)
	enter.Action = models.TradeEnter
	enter.PnL = nil
	require.NoError(t, store.RecordTrade(ctx, enter))

	// Act
	stats, err := store.Statistics(ctx, now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.AllTime.TotalTrades)
	assert.Equal(t, int64(2), stats.AllTime.ProfitableTrades)
	assert.InDelta(t, 7.0, stats.AllTime.TotalProfit, 1e-9)
	assert.InDelta(t, 2.0/3.0, stats.AllTime.WinRate, 1e-9)
	assert.Equal(t, int64(2), stats.Since24h.TotalTrades)
	assert.InDelta(t, 2.0, stats.Since24h.TotalProfit, 1e-9)
	assert.InDelta(t, 0.5, stats.Since24h.WinRate, 1e-9)
}
