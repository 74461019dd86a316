// Package strategy turns market updates into trading signals.
package strategy

import (
	"fmt"
	"time"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/models"
	"go.uber.org/zap"
)

// PositionReader exposes the currently open position, or nil when flat.
type PositionReader interface {
	Position() *models.Position
}

// Strategy defines the interface for a trading strategy.
// Implementations are driven by a single goroutine and are not safe for concurrent use.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// OnTick consumes a ticker update and returns at most one signal.
	OnTick(tick models.Tick) *models.Signal

	// OnBook records the latest top of book.
	OnBook(book models.OrderBookUpdate)

	// Quote returns the latest bid and ask, zero when unknown.
	Quote() (bid, ask float64)
}

// New builds the strategy selected by cfg.Strategy.Name.
func New(cfg *config.Config, positions PositionReader, logger *zap.Logger) (Strategy, error) {
	switch cfg.Strategy.Name {
	case config.StrategyMomentum:
		return NewMomentum(MomentumParams{
			EMALen:        cfg.Strategy.EMALen,
			ZScoreLen:     cfg.Strategy.ZScoreLen,
			ZScoreEntry:   cfg.Strategy.ZScoreEntry,
			Cooldown:      time.Duration(cfg.Strategy.CooldownSec * float64(time.Second)),
			TakeProfitPct: cfg.Trading.TakeProfitPct,
			StopLossPct:   cfg.Trading.StopLossPct,
		}, positions, logger), nil
	case config.StrategyScalping:
		return NewScalping(ScalpingParams{
			RSIOversold:   cfg.Strategy.RSIOversold,
			RSIOverbought: cfg.Strategy.RSIOverbought,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStrategy, cfg.Strategy.Name)
	}
}
