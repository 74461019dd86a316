package strategy

import (
	"math"
	"time"

	"cryptocom-momo-bot-go/internal/indicator"
	"cryptocom-momo-bot-go/internal/models"
	"cryptocom-momo-bot-go/internal/ringbuf"
	"go.uber.org/zap"
)

const (
	candleHistory = 100
	fastEMA       = 9
	slowEMA       = 21
	rsiPeriod     = 14
	// minCandles covers the slow EMA plus one prior bar for cross detection.
	minCandles = slowEMA + 1
)

// ScalpingParams tunes the RSI bands of the scalping strategy.
type ScalpingParams struct {
	RSIOversold   float64
	RSIOverbought float64
}

// Scalping aggregates ticks into one-minute candles and trades EMA9/EMA21 crosses and RSI extremes
// each time a candle closes.
type Scalping struct {
	params     ScalpingParams
	logger     *zap.Logger
	candles    *ringbuf.Buffer[models.Candle]
	current    *models.Candle
	lastBucket time.Time
	lastTick   time.Time
	bid, ask   float64
}

// NewScalping creates a new Scalping strategy.
func NewScalping(params ScalpingParams, logger *zap.Logger) *Scalping {
	return &Scalping{
		params:  params,
		logger:  logger.Named("scalping"),
		candles: ringbuf.New[models.Candle](candleHistory),
	}
}

// Name implements Strategy.
func (s *Scalping) Name() string { return "scalping" }

// OnTick updates the candles and evaluates a signal when one closes.
func (s *Scalping) OnTick(tick models.Tick) *models.Signal {
	if !s.OnTickUpdate(tick) {
		return nil
	}
	return s.GenerateSignal()
}

// OnBook implements Strategy.
func (s *Scalping) OnBook(book models.OrderBookUpdate) { s.OnOrderBookUpdate(book) }

// Quote returns the cached best bid and ask.
func (s *Scalping) Quote() (float64, float64) { return s.bid, s.ask }

// Candles returns the finalized history, oldest first.
func (s *Scalping) Candles() []models.Candle { return s.candles.Slice() }

// OnTickUpdate folds the tick into the open candle and reports whether the previous candle was finalized.
// Candle volume is not derived from tick volume.
func (s *Scalping) OnTickUpdate(tick models.Tick) bool {
	if !indicator.Valid(tick.Price) {
		return false
	}
	bucket := tick.Timestamp.Truncate(time.Minute)
	s.lastTick = tick.Timestamp

	finalized := false
	if s.current != nil && bucket.After(s.lastBucket) {
		s.candles.Push(*s.current)
		s.current = nil
		finalized = true
	}

	if s.current == nil {
		c := models.NewCandle(bucket, tick.Price)
		s.current = &c
		s.lastBucket = bucket
	} else {
		s.current.Update(tick.Price)
	}
	return finalized
}

// OnOrderBookUpdate overwrites the cached bid/ask with any side that is present.
func (s *Scalping) OnOrderBookUpdate(book models.OrderBookUpdate) {
	if book.BestBid > 0 {
		s.bid = book.BestBid
	}
	if book.BestAsk > 0 {
		s.ask = book.BestAsk
	}
}

// GenerateSignal evaluates the finalized candles. Meaningful only right after a candle closes.
func (s *Scalping) GenerateSignal() *models.Signal {
	if s.candles.Len() < minCandles {
		return nil
	}
	closes := make([]float64, 0, s.candles.Len())
	for _, c := range s.candles.Slice() {
		closes = append(closes, c.Close)
	}
	last := len(closes) - 1

	fast := indicator.EMASeries(closes, fastEMA)
	slow := indicator.EMASeries(closes, slowEMA)
	rsi := indicator.RSISeries(closes, rsiPeriod)[last]

	crossUp := fast[last-1] < slow[last-1] && fast[last] > slow[last]
	crossDown := fast[last-1] > slow[last-1] && fast[last] < slow[last]
	price := closes[last]

	l := s.logger.With(
		zap.Float64("close", price),
		zap.Float64("ema_fast", fast[last]),
		zap.Float64("ema_slow", slow[last]),
		zap.Float64("rsi", rsi),
	)

	var reason string
	action := models.ActionEnterLong
	switch {
	case crossUp:
		reason = models.ReasonEMACrossUp
	case !math.IsNaN(rsi) && rsi < s.params.RSIOversold:
		reason = models.ReasonRSIOversold
	case crossDown:
		action, reason = models.ActionExit, models.ReasonEMACrossDown
	case !math.IsNaN(rsi) && rsi > s.params.RSIOverbought:
		action, reason = models.ActionExit, models.ReasonRSIOverbought
	default:
		l.Debug("No scalping signal")
		return nil
	}

	l.Debug("Scalping signal", zap.String("action", string(action)), zap.String("reason", reason))
	return &models.Signal{Action: action, Price: price, Reason: reason, At: s.lastTick}
}
