// Package replay drives the trading core with recorded trades instead of a live stream.
package replay

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/execution"
	"cryptocom-momo-bot-go/internal/models"
	"cryptocom-momo-bot-go/internal/sentiment"
	"cryptocom-momo-bot-go/internal/trader"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// synthetic book used for strategies that price fills off the quote cache
const askMarkup = 1.0001

const session = "backtest"

// Report summarizes one replay run.
type Report struct {
	Strategy       string
	Files          int
	Ticks          int
	StartBudget    float64
	EndBudget      float64
	Entries        int
	Exits          int
	Wins           int
	OpenPosition   bool
	DrawdownPaused bool
	ThrottlePaused bool
}

// NetPnL is the budget change over the run.
func (r Report) NetPnL() float64 { return r.EndBudget - r.StartBudget }

// ReturnPct is NetPnL as a percentage of the starting budget.
func (r Report) ReturnPct() float64 {
	if r.StartBudget == 0 {
		return 0
	}
	return r.NetPnL() / r.StartBudget * 100
}

// WinRate is the percentage of exits with positive pnl.
func (r Report) WinRate() float64 {
	if r.Exits == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Exits) * 100
}

func money(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) }

// String renders the report for the terminal.
func (r Report) String() string {
	var b strings.Builder
	b.WriteString("--- Final Performance Report ---\n")
	fmt.Fprintf(&b, "Strategy:        %s\n", r.Strategy)
	fmt.Fprintf(&b, "Files / Ticks:   %d / %d\n", r.Files, r.Ticks)
	fmt.Fprintf(&b, "Starting Budget: $%s USDT\n", money(r.StartBudget))
	fmt.Fprintf(&b, "Ending Budget:   $%s USDT\n", money(r.EndBudget))
	fmt.Fprintf(&b, "Net PnL:         $%s USDT (%s%%)\n", money(r.NetPnL()), money(r.ReturnPct()))
	fmt.Fprintf(&b, "Entries:         %d\n", r.Entries)
	fmt.Fprintf(&b, "Total Trades:    %d\n", r.Exits)
	fmt.Fprintf(&b, "Win Rate:        %s%%\n", money(r.WinRate()))
	fmt.Fprintf(&b, "Open Position:   %t\n", r.OpenPosition)
	fmt.Fprintf(&b, "Drawdown Paused: %t\n", r.DrawdownPaused)
	fmt.Fprintf(&b, "Throttle Paused: %t\n", r.ThrottlePaused)
	b.WriteString("--------------------------------")
	return b.String()
}

// Replayer runs recorded trades through a fresh trading core under a fixed sentiment.
type Replayer struct {
	cfg       *config.Config
	sentiment models.Sentiment
	logger    *zap.Logger
	sinks     []execution.TradeSink
}

// New creates a new Replayer.
func New(cfg *config.Config, label models.Sentiment, logger *zap.Logger, sinks ...execution.TradeSink) *Replayer {
	return &Replayer{cfg: cfg, sentiment: label, logger: logger.Named("replay"), sinks: sinks}
}

// Run replays files in order. Identical inputs produce identical reports.
func (r *Replayer) Run(ctx context.Context, files []string) (Report, error) {
	core, err := trader.Assemble(r.cfg, session, sentiment.Static(r.sentiment), nil, nil, r.logger, r.sinks...)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Strategy:    core.Strategy.Name(),
		StartBudget: r.cfg.Trading.TotalBudgetUSDT,
	}
	synthesizeBook := core.Strategy.Name() == config.StrategyScalping
	symbol := r.cfg.Market.Instrument()

	for _, path := range files {
		r.logger.Info("Processing file", zap.String("file", path))
		err := r.playFile(path, func(t Trade) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if synthesizeBook {
				core.Pipeline.OnBook(ctx, models.OrderBookUpdate{
					Symbol:  symbol,
					BestBid: t.Price,
					BestAsk: t.Price * askMarkup,
				})
			}
			rec := core.Pipeline.Process(ctx, models.Tick{
				Symbol:    symbol,
				Price:     t.Price,
				Volume:    t.Qty,
				Timestamp: t.Time,
			})
			report.Ticks++
			report.add(rec)
			return nil
		})
		if err != nil {
			return report, err
		}
		report.Files++
	}

	state := core.Gate.State()
	report.EndBudget = core.Exec.Budget()
	report.OpenPosition = core.Exec.Position() != nil
	report.DrawdownPaused = state.DrawdownPaused
	report.ThrottlePaused = state.ThrottlePaused
	return report, nil
}

func (r *Replayer) playFile(path string, fn func(Trade) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := ReadTrades(file, fn); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (r *Report) add(rec *models.TradeRecord) {
	if rec == nil {
		return
	}
	switch rec.Action {
	case models.TradeEnter:
		r.Entries++
	case models.TradeExit:
		r.Exits++
		if rec.PnL != nil && *rec.PnL > 0 {
			r.Wins++
		}
	}
}
