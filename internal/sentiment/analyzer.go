// Package sentiment maintains a cached market sentiment label refreshed from a language model.
package sentiment

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cryptocom-momo-bot-go/internal/journal"
	"cryptocom-momo-bot-go/internal/models"
	"go.uber.org/zap"
)

// Analyzer caches the sentiment label. Refreshes run in the background and never block readers.
type Analyzer struct {
	client     ClientInterface // nil disables remote classification
	ttl        time.Duration
	timeout    time.Duration
	statusPath string
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.RWMutex
	label     models.Sentiment
	headlines []string
	fetchedAt time.Time

	refreshing atomic.Bool
	wg         sync.WaitGroup
}

// NewAnalyzer creates an analyzer starting at Neutral. statusPath may be empty to skip the status file.
func NewAnalyzer(client ClientInterface, ttl, timeout time.Duration, statusPath string, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		client:     client,
		ttl:        ttl,
		timeout:    timeout,
		statusPath: statusPath,
		logger:     logger.Named("sentiment"),
		now:        time.Now,
		label:      models.SentimentNeutral,
	}
}

// Sentiment implements risk.SentimentSource.
func (a *Analyzer) Sentiment() models.Sentiment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.label
}

// Snapshot returns the cached label with its headlines.
func (a *Analyzer) Snapshot() models.SentimentSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return models.SentimentSnapshot{
		Label:       a.label,
		Headlines:   append([]string(nil), a.headlines...),
		LastUpdated: a.fetchedAt,
	}
}

// RefreshIfStale starts a background refresh when the cache has expired and none is running.
// It returns immediately.
func (a *Analyzer) RefreshIfStale(ctx context.Context) {
	if !a.stale() {
		return
	}
	if !a.refreshing.CompareAndSwap(false, true) {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.refreshing.Store(false)
		a.Refresh(ctx)
	}()
}

// Wait blocks until background refreshes have finished.
func (a *Analyzer) Wait() {
	a.wg.Wait()
}

func (a *Analyzer) stale() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fetchedAt.IsZero() || a.now().Sub(a.fetchedAt) >= a.ttl
}

// Refresh runs one refresh cycle bounded by the analyzer timeout.
// Failures keep the previous label.
func (a *Analyzer) Refresh(ctx context.Context) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	label := a.Sentiment()
	headlines := append([]string(nil), DefaultHeadlines...)

	if a.client != nil {
		if fetched, err := a.client.Headlines(ctx); err != nil {
			a.logger.Warn("Failed to fetch headlines, using defaults", zap.Error(err))
		} else {
			headlines = fetched
		}

		if classified, err := a.client.Classify(ctx, headlines); err != nil {
			a.logger.Warn("Sentiment refresh failed, keeping last label", zap.Error(err), zap.String("label", string(label)))
		} else {
			label = classified
		}
	}

	a.mu.Lock()
	previous := a.label
	a.label = label
	a.headlines = headlines
	a.fetchedAt = a.now()
	snapshot := models.SentimentSnapshot{Label: a.label, Headlines: headlines, LastUpdated: a.fetchedAt}
	a.mu.Unlock()

	if previous != label {
		a.logger.Info("Sentiment changed", zap.String("from", string(previous)), zap.String("to", string(label)))
	} else {
		a.logger.Debug("Sentiment refreshed", zap.String("label", string(label)))
	}

	if a.statusPath == "" {
		return
	}
	if err := journal.WriteJSON(a.statusPath, snapshot); err != nil {
		a.logger.Error("Failed to write sentiment status", zap.Error(err))
	}
}

// Static is a fixed sentiment source used for replays.
type Static models.Sentiment

// Sentiment returns the fixed label.
func (s Static) Sentiment() models.Sentiment { return models.Sentiment(s) }

// RefreshIfStale is a no-op.
func (Static) RefreshIfStale(context.Context) {}

// Wait is a no-op; a Static source never refreshes in the background.
func (Static) Wait() {}
