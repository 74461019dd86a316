package strategy

import (
	"testing"
	"time"

	"cryptocom-momo-bot-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tickAt(minute int, second int, price float64) models.Tick {
	return models.Tick{
		Symbol:    "BTC_USDT",
		Price:     price,
		Timestamp: t0.Add(time.Duration(minute)*time.Minute + time.Duration(second)*time.Second),
	}
}

func TestScalping_OnTickUpdate_FinalizesOnBucketRollover(t *testing.T) {
	// Arrange
	s := NewScalping(ScalpingParams{RSIOversold: 45, RSIOverbought: 55}, zap.NewNop())

	// Act
	first := s.OnTickUpdate(tickAt(0, 1, 100))
	sameMinute := s.OnTickUpdate(tickAt(0, 30, 104))
	low := s.OnTickUpdate(tickAt(0, 59, 98))
	nextMinute := s.OnTickUpdate(tickAt(1, 5, 101))

	// Assert
	assert.False(t, first)
	assert.False(t, sameMinute)
	assert.False(t, low)
	assert.True(t, nextMinute)
	candles := s.Candles()
	require.Len(t, candles, 1)
	assert.Equal(t, models.Candle{Open: 100, High: 104, Low: 98, Close: 98, BucketStart: t0}, candles[0])
	assert.Equal(t, 101.0, s.current.Open)
}

func TestScalping_HistoryIsCapped(t *testing.T) {
	s := NewScalping(ScalpingParams{RSIOversold: 0, RSIOverbought: 100}, zap.NewNop())

	for i := 0; i < 150; i++ {
		s.OnTickUpdate(tickAt(i, 0, 100))
	}

	candles := s.Candles()
	assert.Len(t, candles, 100)
	assert.Equal(t, t0.Add(49*time.Minute), candles[0].BucketStart)
}

func TestScalping_NoSignalBeforeEnoughCandles(t *testing.T) {
	// Falling prices push RSI to 0, which is oversold once enough candles exist.
	s := NewScalping(ScalpingParams{RSIOversold: 45, RSIOverbought: 55}, zap.NewNop())

	var firstSignalCandles int
	for i := 0; i < 30; i++ {
		if sig := s.OnTick(tickAt(i, 0, 100-float64(i))); sig != nil && firstSignalCandles == 0 {
			firstSignalCandles = len(s.Candles())
			assert.Equal(t, models.ActionEnterLong, sig.Action)
			assert.Equal(t, models.ReasonRSIOversold, sig.Reason)
		}
	}

	assert.Equal(t, 22, firstSignalCandles)
}

func TestScalping_EMACrossUp(t *testing.T) {
	// Arrange: RSI bands that can never trigger isolate the cross.
	s := NewScalping(ScalpingParams{RSIOversold: 0, RSIOverbought: 100}, zap.NewNop())
	for i := 0; i < 40; i++ {
		require.Nil(t, s.OnTick(tickAt(i, 0, 100-float64(i))))
	}
	require.Nil(t, s.OnTick(tickAt(40, 0, 200)))

	// Act: the next minute closes the 200 candle.
	sig := s.OnTick(tickAt(41, 0, 200))

	// Assert
	require.NotNil(t, sig)
	assert.Equal(t, models.ActionEnterLong, sig.Action)
	assert.Equal(t, models.ReasonEMACrossUp, sig.Reason)
	assert.Equal(t, 200.0, sig.Price)
	assert.Len(t, s.Candles(), 41)
}

func TestScalping_EMACrossDown(t *testing.T) {
	s := NewScalping(ScalpingParams{RSIOversold: 0, RSIOverbought: 100}, zap.NewNop())
	for i := 0; i < 40; i++ {
		require.Nil(t, s.OnTick(tickAt(i, 0, 100+float64(i))))
	}
	require.Nil(t, s.OnTick(tickAt(40, 0, 20)))

	sig := s.OnTick(tickAt(41, 0, 20))

	require.NotNil(t, sig)
	assert.Equal(t, models.ActionExit, sig.Action)
	assert.Equal(t, models.ReasonEMACrossDown, sig.Reason)
	assert.Equal(t, 20.0, sig.Price)
}

func TestScalping_OrderBook(t *testing.T) {
	s := NewScalping(ScalpingParams{}, zap.NewNop())

	s.OnBook(models.OrderBookUpdate{BestBid: 99, BestAsk: 101})
	s.OnBook(models.OrderBookUpdate{BestAsk: 102})

	bid, ask := s.Quote()
	assert.Equal(t, 99.0, bid)
	assert.Equal(t, 102.0, ask)
}
