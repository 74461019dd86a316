package journal

import (
	"context"
	"sync"
	"time"

	"cryptocom-momo-bot-go/internal/models"
	"cryptocom-momo-bot-go/internal/ringbuf"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SnapshotPrices is the number of recent prices kept in the live snapshot.
const SnapshotPrices = 200

// LiveData is the live snapshot document.
type LiveData struct {
	Prices []float64           `json:"prices"`
	Trade  *models.TradeRecord `json:"trade,omitempty"`
}

// Snapshot keeps the recent price series and rewrites the live snapshot file.
// Price-driven writes are rate limited; trades always write.
type Snapshot struct {
	path    string
	logger  *zap.Logger
	limiter *rate.Limiter

	mu     sync.Mutex
	prices *ringbuf.Buffer[float64]
	trade  *models.TradeRecord
}

// NewSnapshot writes at most once per interval on price updates. A non-positive interval writes on every price.
func NewSnapshot(path string, interval time.Duration, logger *zap.Logger) *Snapshot {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Snapshot{
		path:    path,
		logger:  logger.Named("snapshot"),
		limiter: rate.NewLimiter(limit, 1),
		prices:  ringbuf.New[float64](SnapshotPrices),
	}
}

// ObservePrice appends px and refreshes the file when the limiter allows.
func (s *Snapshot) ObservePrice(px float64) {
	s.mu.Lock()
	s.prices.Push(px)
	doc := s.document()
	s.mu.Unlock()

	if !s.limiter.Allow() {
		return
	}
	if err := WriteJSON(s.path, doc); err != nil {
		s.logger.Error("Failed to write live snapshot", zap.Error(err))
	}
}

// RecordTrade implements execution.TradeSink.
func (s *Snapshot) RecordTrade(_ context.Context, rec models.TradeRecord) error {
	s.mu.Lock()
	s.trade = &rec
	doc := s.document()
	s.mu.Unlock()
	return WriteJSON(s.path, doc)
}

// Data returns the current document.
func (s *Snapshot) Data() LiveData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document()
}

func (s *Snapshot) document() LiveData {
	return LiveData{Prices: s.prices.Slice(), Trade: s.trade}
}
