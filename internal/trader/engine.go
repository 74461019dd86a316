package trader

import (
	"context"
	"errors"
	"sync"
	"time"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/execution"
	"cryptocom-momo-bot-go/internal/models"
	"cryptocom-momo-bot-go/internal/risk"
	"cryptocom-momo-bot-go/internal/stream"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// SentimentService is the cached sentiment the engine reads and keeps fresh.
// Wait blocks until any background refresh has finished.
type SentimentService interface {
	Sentiment() models.Sentiment
	RefreshIfStale(ctx context.Context)
	Wait()
}

// Notifier delivers trade and breaker alerts from its own goroutine.
type Notifier interface {
	execution.TradeSink
	risk.BreakerListener
	Run(ctx context.Context)
}

// Components are the collaborators of an Engine. Notifier, Prices and Dialer are optional.
type Components struct {
	Sentiment SentimentService
	Sinks     []execution.TradeSink
	Prices    PriceObserver
	Notifier  Notifier
	Dialer    stream.Dialer
}

// Engine runs one live paper-trading session.
type Engine struct {
	UUID      string
	StartTime time.Time

	logger    *zap.Logger
	cfg       *config.Config
	core      *Core
	stream    *stream.Stream
	sentiment SentimentService
	notifier  Notifier
	api       *APIServer
}

// NewEngine creates a new trading engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, c Components) (*Engine, error) {
	session := uuid.NewString()
	logger = logger.With(zap.String("session", session))

	sinks := append([]execution.TradeSink(nil), c.Sinks...)
	var listener risk.BreakerListener
	if c.Notifier != nil {
		sinks = append(sinks, c.Notifier)
		listener = c.Notifier
	}

	core, err := Assemble(cfg, session, c.Sentiment, listener, c.Prices, logger, sinks...)
	if err != nil {
		return nil, err
	}

	var opts []stream.Option
	if c.Dialer != nil {
		opts = append(opts, stream.WithDialer(c.Dialer))
	}

	e := &Engine{
		UUID:      session,
		StartTime: time.Now(),
		logger:    logger,
		cfg:       cfg,
		core:      core,
		stream:    stream.NewStream(cfg.Market, core.Pipeline, c.Sentiment, logger.Named("stream"), opts...),
		sentiment: c.Sentiment,
		notifier:  c.Notifier,
	}
	e.api = NewAPIServer(e, cfg.Server.Port, logger)
	return e, nil
}

// Run starts the API server and the market data stream and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Starting trading engine",
		zap.String("strategy", e.core.Strategy.Name()),
		zap.String("symbol", e.cfg.Market.Instrument()),
		zap.Float64("budget", e.core.Exec.Budget()),
		zap.String("execution_mode", e.cfg.Execution.Mode),
	)
	e.api.Start()

	var wg sync.WaitGroup
	if e.notifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.notifier.Run(ctx)
		}()
	}

	err := e.stream.Connect(ctx)

	e.logger.Info("Stopping trading engine...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := e.api.Stop(shutdownCtx); stopErr != nil {
		e.logger.Error("Failed to stop API server", zap.Error(stopErr))
	}
	wg.Wait()
	e.sentiment.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Status is the snapshot served by the status endpoint.
type Status struct {
	UUID         string           `json:"uuid"`
	Strategy     string           `json:"strategy"`
	Symbol       string           `json:"symbol"`
	StartTime    string           `json:"start_time"`
	Uptime       string           `json:"uptime"`
	Budget       float64          `json:"budget_usdt"`
	Position     *models.Position `json:"position"`
	Risk         risk.State       `json:"risk"`
	MaxSpreadPct float64          `json:"max_spread_pct"`
	Stream       string           `json:"stream"`
	Sentiment    models.Sentiment `json:"sentiment"`
}

// Status reports the current session state.
func (e *Engine) Status() Status {
	return Status{
		UUID:         e.UUID,
		Strategy:     e.core.Strategy.Name(),
		Symbol:       e.cfg.Market.Instrument(),
		StartTime:    e.StartTime.Format(time.RFC3339),
		Uptime:       time.Since(e.StartTime).Round(time.Second).String(),
		Budget:       e.core.Exec.Budget(),
		Position:     e.core.Exec.Position(),
		Risk:         e.core.Gate.State(),
		MaxSpreadPct: e.cfg.Risk.MaxSpreadPct,
		Stream:       e.stream.State().String(),
		Sentiment:    e.sentiment.Sentiment(),
	}
}
