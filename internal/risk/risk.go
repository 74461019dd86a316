// Package risk gates trading signals behind sentiment, drawdown and win-rate checks.
package risk

import (
	"sync"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/metrics"
	"cryptocom-momo-bot-go/internal/models"
	"cryptocom-momo-bot-go/internal/ringbuf"
	"go.uber.org/zap"
)

// Reason identifies why a signal was rejected.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonSentiment Reason = "sentiment_bearish"
	ReasonDrawdown  Reason = "drawdown"
	ReasonThrottle  Reason = "throttle"
)

// SentimentSource provides the latest cached sentiment label. It must not block.
type SentimentSource interface {
	Sentiment() models.Sentiment
}

// BreakerListener is told when a breaker trips or clears.
type BreakerListener interface {
	BreakerChanged(reason Reason, paused bool, detail string)
}

// State is a point-in-time copy of the gate.
type State struct {
	StartingBudget float64 `json:"starting_budget"`
	DrawdownPaused bool    `json:"drawdown_paused"`
	ThrottlePaused bool    `json:"throttle_paused"`
	Outcomes       []int   `json:"outcomes"`
	WinRate        float64 `json:"win_rate"`
}

// Gate approves or rejects signals. Checks run in order and the first failure rejects.
type Gate struct {
	cfg       config.Risk
	sentiment SentimentSource
	listener  BreakerListener
	logger    *zap.Logger

	mu             sync.RWMutex
	startingBudget float64
	drawdownPaused bool
	throttlePaused bool
	outcomes       *ringbuf.Buffer[int]
}

// NewGate creates a gate for a session starting with startingBudget. listener may be nil.
func NewGate(cfg config.Risk, startingBudget float64, sentiment SentimentSource, listener BreakerListener, logger *zap.Logger) *Gate {
	metrics.SetBreaker(string(ReasonDrawdown), false)
	metrics.SetBreaker(string(ReasonThrottle), false)
	return &Gate{
		cfg:            cfg,
		sentiment:      sentiment,
		listener:       listener,
		logger:         logger.Named("risk"),
		startingBudget: startingBudget,
		outcomes:       ringbuf.New[int](cfg.ThrottleWindow),
	}
}

// ApproveTrade reports whether signal may be executed against currentBudget.
func (g *Gate) ApproveTrade(signal models.Signal, currentBudget float64) bool {
	reason, detail := g.evaluate(signal, currentBudget)
	if reason == ReasonNone {
		return true
	}
	metrics.RiskRejectionsTotal.WithLabelValues(string(reason)).Inc()
	g.logger.Warn("Trade rejected",
		zap.String("reason", string(reason)),
		zap.String("signal", signal.String()),
		zap.Float64("budget", currentBudget),
		zap.String("detail", detail),
	)
	return false
}

func (g *Gate) evaluate(signal models.Signal, currentBudget float64) (Reason, string) {
	if signal.Action == models.ActionEnterLong && g.sentiment.Sentiment() == models.SentimentBearish {
		return ReasonSentiment, "sentiment is Bearish"
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.drawdownPaused {
		return ReasonDrawdown, "drawdown breaker latched"
	}
	if g.startingBudget > 0 {
		drawdown := (currentBudget - g.startingBudget) / g.startingBudget
		if drawdown <= -g.cfg.DailyDrawdownPct {
			g.drawdownPaused = true
			g.trip(ReasonDrawdown, true, "daily drawdown limit hit")
			return ReasonDrawdown, "daily drawdown limit hit"
		}
	}

	if g.throttlePaused {
		return ReasonThrottle, "throttled on low win rate"
	}
	if g.outcomes.Full() && g.winRate() < g.cfg.ThrottleThresholdPct {
		g.throttlePaused = true
		g.trip(ReasonThrottle, true, "win rate below threshold")
		return ReasonThrottle, "win rate below threshold"
	}
	return ReasonNone, ""
}

// UpdateTradeHistory records a closed trade outcome and lifts the throttle once the
// rolling win rate recovers. The drawdown breaker never clears.
func (g *Gate) UpdateTradeHistory(pnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	outcome := 0
	if pnl > 0 {
		outcome = 1
	}
	g.outcomes.Push(outcome)

	if g.throttlePaused && g.winRate() >= g.cfg.ThrottleThresholdPct {
		g.throttlePaused = false
		g.trip(ReasonThrottle, false, "win rate recovered")
	}
}

// State returns a copy of the breaker state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return State{
		StartingBudget: g.startingBudget,
		DrawdownPaused: g.drawdownPaused,
		ThrottlePaused: g.throttlePaused,
		Outcomes:       g.outcomes.Slice(),
		WinRate:        g.winRate(),
	}
}

// winRate is the mean of the outcome window, 0 when empty. Callers hold mu.
func (g *Gate) winRate() float64 {
	n := g.outcomes.Len()
	if n == 0 {
		return 0
	}
	wins := 0
	for i := 0; i < n; i++ {
		wins += g.outcomes.At(i)
	}
	return float64(wins) / float64(n)
}

// trip publishes a breaker transition. Callers hold mu.
func (g *Gate) trip(reason Reason, paused bool, detail string) {
	metrics.SetBreaker(string(reason), paused)
	l := g.logger.With(zap.String("breaker", string(reason)), zap.Float64("win_rate", g.winRate()))
	if paused {
		l.Warn("Risk breaker tripped", zap.String("detail", detail))
	} else {
		l.Info("Risk breaker cleared", zap.String("detail", detail))
	}
	if g.listener != nil {
		g.listener.BreakerChanged(reason, paused, detail)
	}
}
