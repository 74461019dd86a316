package strategy

import (
	"time"

	"cryptocom-momo-bot-go/internal/indicator"
	"cryptocom-momo-bot-go/internal/models"
	"cryptocom-momo-bot-go/internal/ringbuf"
	"go.uber.org/zap"
)

// MomentumParams tunes the EMA/z-score momentum strategy.
type MomentumParams struct {
	EMALen        int
	ZScoreLen     int
	ZScoreEntry   float64
	Cooldown      time.Duration
	TakeProfitPct float64
	StopLossPct   float64
}

// Momentum enters long when price is above its EMA and stretched by more than ZScoreEntry
// standard deviations, and exits on the take-profit or stop-loss boundary.
type Momentum struct {
	params     MomentumParams
	positions  PositionReader
	logger     *zap.Logger
	ema        *indicator.EMA
	history    *ringbuf.Buffer[float64]
	lastSignal time.Time
}

// NewMomentum creates a new Momentum strategy.
func NewMomentum(params MomentumParams, positions PositionReader, logger *zap.Logger) *Momentum {
	capacity := max(params.EMALen, params.ZScoreLen) * 3
	return &Momentum{
		params:    params,
		positions: positions,
		logger:    logger.Named("momentum"),
		ema:       indicator.NewEMA(params.EMALen),
		history:   ringbuf.New[float64](capacity),
	}
}

// Name implements Strategy.
func (m *Momentum) Name() string { return "momentum" }

// OnTick feeds the tick price into OnPrice.
func (m *Momentum) OnTick(tick models.Tick) *models.Signal {
	return m.OnPrice(tick.Price, tick.Timestamp)
}

// OnBook is a no-op: exits fall back to the signal price.
func (m *Momentum) OnBook(models.OrderBookUpdate) {}

// Quote returns zeros; momentum keeps no book.
func (m *Momentum) Quote() (float64, float64) { return 0, 0 }

// OnPrice updates the indicators with px observed at the given time.
// The observation time drives the cooldown so replays behave like live runs.
func (m *Momentum) OnPrice(px float64, at time.Time) *models.Signal {
	if !indicator.Valid(px) {
		return nil
	}
	ema := m.ema.Update(px)
	m.history.Push(px)

	pos := m.positions.Position()
	if pos == nil {
		return m.checkEntry(px, ema, at)
	}
	return m.checkExit(px, pos, at)
}

func (m *Momentum) checkEntry(px, ema float64, at time.Time) *models.Signal {
	if m.history.Len() < m.params.ZScoreLen {
		return nil
	}
	momentum := px - ema
	z := indicator.ZScore(m.history.Tail(m.params.ZScoreLen))
	if momentum <= 0 || z <= m.params.ZScoreEntry {
		return nil
	}
	if !m.lastSignal.IsZero() && at.Sub(m.lastSignal) < m.params.Cooldown {
		m.logger.Debug("Entry suppressed by cooldown", zap.Time("last_signal", m.lastSignal))
		return nil
	}

	m.lastSignal = at
	m.logger.Debug("Momentum entry",
		zap.Float64("price", px),
		zap.Float64("momentum", momentum),
		zap.Float64("zscore", z),
	)
	return &models.Signal{Action: models.ActionEnterLong, Price: px, Reason: models.ReasonMomentum, At: at}
}

func (m *Momentum) checkExit(px float64, pos *models.Position, at time.Time) *models.Signal {
	if pos.EntryPrice <= 0 {
		return nil
	}
	// Both boundaries carry the configured sign; a positive stop_loss_pct sits above entry.
	takeProfit := pos.EntryPrice * (1 + m.params.TakeProfitPct)
	stopLoss := pos.EntryPrice * (1 + m.params.StopLossPct)

	switch {
	case px >= takeProfit:
		return &models.Signal{Action: models.ActionExit, Price: px, Reason: models.ReasonTakeProfit, At: at}
	case px <= stopLoss:
		return &models.Signal{Action: models.ActionExit, Price: px, Reason: models.ReasonStopLoss, At: at}
	}
	return nil
}
