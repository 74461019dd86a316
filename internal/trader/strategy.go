package trader

import (
	"fmt"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/execution"
	"cryptocom-momo-bot-go/internal/risk"
	"cryptocom-momo-bot-go/internal/strategy"
	"go.uber.org/zap"
)

// Core is the strategy, risk gate and execution engine for one session.
type Core struct {
	Strategy strategy.Strategy
	Gate     *risk.Gate
	Exec     *execution.Engine
	Pipeline *Pipeline
}

// Assemble builds a fresh trading core. The execution engine reads quotes from
// the strategy and the strategy reads the open position from the engine.
// listener and prices may be nil.
func Assemble(
	cfg *config.Config,
	session string,
	sentiment risk.SentimentSource,
	listener risk.BreakerListener,
	prices PriceObserver,
	logger *zap.Logger,
	sinks ...execution.TradeSink,
) (*Core, error) {
	gate := risk.NewGate(cfg.Risk, cfg.Trading.TotalBudgetUSDT, sentiment, listener, logger)
	exec := execution.NewEngine(cfg, session, nil, gate, logger, sinks...)

	strat, err := strategy.New(cfg, exec, logger)
	if err != nil {
		return nil, fmt.Errorf("could not build strategy: %w", err)
	}
	exec.SetQuoteSource(strat)

	return &Core{
		Strategy: strat,
		Gate:     gate,
		Exec:     exec,
		Pipeline: NewPipeline(strat, gate, exec, prices, logger),
	}, nil
}
