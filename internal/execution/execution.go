// Package execution simulates paper fills and owns the budget and the open position.
package execution

import (
	"context"
	"sync"
	"time"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/indicator"
	"cryptocom-momo-bot-go/internal/metrics"
	"cryptocom-momo-bot-go/internal/models"
	"go.uber.org/zap"
)

// QuoteSource provides the latest bid and ask, zero when unknown.
type QuoteSource interface {
	Quote() (bid, ask float64)
}

// OutcomeRecorder receives realized pnl of every closed position.
type OutcomeRecorder interface {
	UpdateTradeHistory(pnl float64)
}

// TradeSink persists or forwards trade records. Failures are logged, never fatal.
type TradeSink interface {
	RecordTrade(ctx context.Context, rec models.TradeRecord) error
}

// Engine fills approved signals at the cached quote, or at the signal price when no quote is known.
type Engine struct {
	symbol   string
	session  string
	trading  config.Trading
	exec     config.Execution
	quotes   QuoteSource
	outcomes OutcomeRecorder
	sinks    []TradeSink
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	budget   float64
	position *models.Position
}

// NewEngine creates an engine with the configured starting budget.
func NewEngine(cfg *config.Config, session string, quotes QuoteSource, outcomes OutcomeRecorder, logger *zap.Logger, sinks ...TradeSink) *Engine {
	e := &Engine{
		symbol:   cfg.Market.Instrument(),
		session:  session,
		trading:  cfg.Trading,
		exec:     cfg.Execution,
		quotes:   quotes,
		outcomes: outcomes,
		sinks:    sinks,
		logger:   logger.Named("execution"),
		now:      time.Now,
		budget:   cfg.Trading.TotalBudgetUSDT,
	}
	metrics.BudgetUSDT.Set(e.budget)
	metrics.PositionQty.Set(0)
	return e
}

// SetQuoteSource wires the quote cache after construction, when the strategy depends on the engine.
func (e *Engine) SetQuoteSource(quotes QuoteSource) {
	e.quotes = quotes
}

// Budget returns the current paper balance. It may be negative.
func (e *Engine) Budget() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.budget
}

// Position returns a copy of the open position, or nil when flat.
func (e *Engine) Position() *models.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.position == nil {
		return nil
	}
	p := *e.position
	return &p
}

// OrderSize returns budget*risk_per_trade_pct/price, or 0 for a non-positive price or budget.
func (e *Engine) OrderSize(price float64) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orderSize(price)
}

func (e *Engine) orderSize(price float64) float64 {
	if price <= 0 {
		return 0
	}
	qty := e.budget * e.trading.RiskPerTradePct / price
	if qty < 0 {
		return 0
	}
	return qty
}

// Act executes an approved signal and returns the resulting record, or nil when nothing was filled.
func (e *Engine) Act(ctx context.Context, signal models.Signal) *models.TradeRecord {
	var rec *models.TradeRecord
	var pnl float64
	switch signal.Action {
	case models.ActionExit:
		rec, pnl = e.exit(signal)
		if rec != nil && e.outcomes != nil {
			e.outcomes.UpdateTradeHistory(pnl)
		}
	case models.ActionEnterLong:
		rec = e.enter(signal)
	default:
		e.logger.Warn("Ignoring unknown signal action", zap.String("action", string(signal.Action)))
	}
	if rec == nil {
		return nil
	}

	metrics.TradesTotal.WithLabelValues(rec.Action, rec.Reason).Inc()
	for _, sink := range e.sinks {
		if err := sink.RecordTrade(ctx, *rec); err != nil {
			e.logger.Error("Failed to record trade", zap.Error(err), zap.String("action", rec.Action))
		}
	}
	return rec
}

func (e *Engine) exit(signal models.Signal) (*models.TradeRecord, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.position
	if pos == nil {
		return nil, 0
	}
	if pos.EntryPrice <= 0 || pos.Quantity <= 0 {
		e.logger.Warn("Clearing invalid position", zap.Any("position", pos))
		e.clearPosition()
		return nil, 0
	}

	price := signal.Price
	if _, ask := e.quote(); ask > 0 {
		price = ask
	}
	pnl := (price - pos.EntryPrice) * pos.Quantity
	e.budget += pnl
	e.clearPosition()
	metrics.BudgetUSDT.Set(e.budget)

	rec := e.record(signal, models.TradeExit, price, pos.Quantity, signal.Reason)
	rec.PnL = &pnl

	e.logger.Info("Paper EXIT",
		zap.String("symbol", e.symbol),
		zap.Float64("price", price),
		zap.Float64("qty", pos.Quantity),
		zap.Float64("entry", pos.EntryPrice),
		zap.Float64("pnl", pnl),
		zap.Float64("budget", e.budget),
		zap.String("reason", signal.Reason),
	)
	return rec, pnl
}

func (e *Engine) enter(signal models.Signal) *models.TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.position != nil {
		return nil
	}
	price := signal.Price
	if bid, _ := e.quote(); bid > 0 {
		price = bid
	}
	if !indicator.Valid(price) {
		return nil
	}
	qty := e.orderSize(price)
	if qty <= 0 {
		e.logger.Debug("Order size is zero, skipping entry", zap.Float64("budget", e.budget), zap.Float64("price", price))
		return nil
	}

	notional := qty * price
	reason := e.route(notional)
	l := e.logger.With(
		zap.String("symbol", e.symbol),
		zap.Float64("price", price),
		zap.Float64("qty", qty),
		zap.Float64("notional", notional),
		zap.String("route", reason),
	)
	if reason == models.ReasonTWAPEntry {
		l.Info("Routing entry through TWAP",
			zap.Int("duration_minutes", e.exec.TWAPDurationMinutes),
			zap.Int("slices", e.exec.TWAPOrderSlices),
		)
	} else {
		l.Info("Routing entry through smart limit")
	}

	at := e.timestamp(signal)
	e.position = &models.Position{Side: models.SideLong, Quantity: qty, EntryPrice: price, OpenedAt: at}
	metrics.PositionQty.Set(qty)

	l.Info("Paper ENTER", zap.String("signal_reason", signal.Reason))
	return e.record(signal, models.TradeEnter, price, qty, reason)
}

// route labels an entry. Both routes fill immediately in paper mode.
func (e *Engine) route(notional float64) string {
	switch {
	case e.exec.Mode == config.ExecutionTWAP:
		return models.ReasonTWAPEntry
	case e.exec.Mode == config.ExecutionAuto && notional > e.exec.LargeOrderThresholdUSDT:
		return models.ReasonTWAPEntry
	default:
		return models.ReasonSmartLimit
	}
}

func (e *Engine) quote() (float64, float64) {
	if e.quotes == nil {
		return 0, 0
	}
	return e.quotes.Quote()
}

func (e *Engine) clearPosition() {
	e.position = nil
	metrics.PositionQty.Set(0)
}

func (e *Engine) timestamp(signal models.Signal) time.Time {
	if !signal.At.IsZero() {
		return signal.At.UTC()
	}
	return e.now().UTC()
}

func (e *Engine) record(signal models.Signal, action string, price, qty float64, reason string) *models.TradeRecord {
	return &models.TradeRecord{
		Session:   e.session,
		Timestamp: e.timestamp(signal),
		Symbol:    e.symbol,
		Action:    action,
		Side:      models.SideLong,
		Price:     price,
		Quantity:  qty,
		Reason:    reason,
	}
}
