package database

import (
	"context"
	"fmt"
	"time"

	"cryptocom-momo-bot-go/internal/models"
	"gorm.io/gorm"
)

// TradeStore persists trade records.
type TradeStore struct {
	db *gorm.DB
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(db *gorm.DB) *TradeStore {
	return &TradeStore{db: db}
}

// RecordTrade implements execution.TradeSink.
func (s *TradeStore) RecordTrade(ctx context.Context, rec models.TradeRecord) error {
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save trade record: %w", err)
	}
	return nil
}

// Trades returns the most recent records first. A non-positive limit returns everything.
func (s *TradeStore) Trades(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	var trades []models.TradeRecord
	q := s.db.WithContext(ctx).Order("timestamp desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	return trades, nil
}

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	TotalTrades      int64   `json:"total_trades"`
	ProfitableTrades int64   `json:"profitable_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalProfit      float64 `json:"total_profit"`
}

// Statistics summarizes closed trades.
type Statistics struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

// Statistics computes win rate and realized pnl over exits, all time and for the 24h before now.
func (s *TradeStore) Statistics(ctx context.Context, now time.Time) (Statistics, error) {
	var exits []models.TradeRecord
	if err := s.db.WithContext(ctx).Where("action = ? AND pnl_usdt IS NOT NULL", models.TradeExit).Find(&exits).Error; err != nil {
		return Statistics{}, fmt.Errorf("failed to load trades for statistics: %w", err)
	}

	since := now.Add(-24 * time.Hour)
	var stats Statistics
	for _, trade := range exits {
		add(&stats.AllTime, *trade.PnL)
		if trade.Timestamp.After(since) {
			add(&stats.Since24h, *trade.PnL)
		}
	}
	finish(&stats.AllTime)
	finish(&stats.Since24h)
	return stats, nil
}

func add(d *StatsDetail, pnl float64) {
	d.TotalTrades++
	if pnl > 0 {
		d.ProfitableTrades++
	}
	d.TotalProfit += pnl
}

func finish(d *StatsDetail) {
	if d.TotalTrades > 0 {
		d.WinRate = float64(d.ProfitableTrades) / float64(d.TotalTrades)
	}
}
