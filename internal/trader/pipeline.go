package trader

import (
	"context"
	"sync"

	"cryptocom-momo-bot-go/internal/indicator"
	"cryptocom-momo-bot-go/internal/metrics"
	"cryptocom-momo-bot-go/internal/models"
	"cryptocom-momo-bot-go/internal/strategy"
	"go.uber.org/zap"
)

// RiskGate approves signals against the current budget.
type RiskGate interface {
	ApproveTrade(signal models.Signal, currentBudget float64) bool
}

// Executor fills approved signals.
type Executor interface {
	Budget() float64
	Act(ctx context.Context, signal models.Signal) *models.TradeRecord
}

// PriceObserver is fed every valid tick price, e.g. the live snapshot.
type PriceObserver interface {
	ObservePrice(px float64)
}

// Pipeline routes market data through strategy, risk gate and execution, one update at a time.
type Pipeline struct {
	strategy strategy.Strategy
	gate     RiskGate
	exec     Executor
	prices   PriceObserver
	logger   *zap.Logger

	mu sync.Mutex
}

// NewPipeline wires the trading core. prices may be nil.
func NewPipeline(strat strategy.Strategy, gate RiskGate, exec Executor, prices PriceObserver, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		strategy: strat,
		gate:     gate,
		exec:     exec,
		prices:   prices,
		logger:   logger.Named("pipeline"),
	}
}

// OnTick implements stream.Handler.
func (p *Pipeline) OnTick(ctx context.Context, tick models.Tick) {
	p.Process(ctx, tick)
}

// OnBook implements stream.Handler.
func (p *Pipeline) OnBook(_ context.Context, book models.OrderBookUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	metrics.BookUpdatesTotal.WithLabelValues(book.Symbol).Inc()
	p.strategy.OnBook(book)
}

// Process runs one tick to completion and returns the trade it produced, if any.
func (p *Pipeline) Process(ctx context.Context, tick models.Tick) *models.TradeRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	metrics.TicksTotal.WithLabelValues(tick.Symbol).Inc()
	if p.prices != nil && indicator.Valid(tick.Price) {
		p.prices.ObservePrice(tick.Price)
	}

	signal := p.strategy.OnTick(tick)
	if signal == nil {
		return nil
	}
	metrics.SignalsTotal.WithLabelValues(p.strategy.Name(), string(signal.Action)).Inc()
	p.logger.Debug("Signal", zap.String("signal", signal.String()))

	if !p.gate.ApproveTrade(*signal, p.exec.Budget()) {
		return nil
	}
	return p.exec.Act(ctx, *signal)
}
