package sentiment

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"cryptocom-momo-bot-go/internal/journal"
	"cryptocom-momo-bot-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockClient is a mock implementation of ClientInterface.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Headlines(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockClient) Classify(ctx context.Context, headlines []string) (models.Sentiment, error) {
	args := m.Called(ctx, headlines)
	return args.Get(0).(models.Sentiment), args.Error(1)
}

func TestAnalyzer_DefaultsToNeutral(t *testing.T) {
	a := NewAnalyzer(nil, 15*time.Minute, time.Second, "", zap.NewNop())

	assert.Equal(t, models.SentimentNeutral, a.Sentiment())
}

func TestAnalyzer_RefreshWritesStatus(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "ai_status.json")
	client := new(MockClient)
	client.On("Headlines", mock.Anything).Return([]string{"h1"}, nil)
	client.On("Classify", mock.Anything, []string{"h1"}).Return(models.SentimentBearish, nil)
	a := NewAnalyzer(client, 15*time.Minute, time.Second, path, zap.NewNop())

	// Act
	a.Refresh(context.Background())

	// Assert
	assert.Equal(t, models.SentimentBearish, a.Sentiment())
	var status models.SentimentSnapshot
	require.NoError(t, journal.ReadJSON(path, &status))
	assert.Equal(t, models.SentimentBearish, status.Label)
	assert.Equal(t, []string{"h1"}, status.Headlines)
	assert.False(t, status.LastUpdated.IsZero())
	client.AssertExpectations(t)
}

func TestAnalyzer_FailureKeepsLastLabel(t *testing.T) {
	// Arrange
	client := new(MockClient)
	client.On("Headlines", mock.Anything).Return([]string(nil), errors.New("feed down"))
	client.On("Classify", mock.Anything, DefaultHeadlines).Return(models.SentimentBullish, nil).Once()
	client.On("Classify", mock.Anything, DefaultHeadlines).Return(models.SentimentNeutral, errors.New("api down")).Once()
	a := NewAnalyzer(client, time.Minute, time.Second, "", zap.NewNop())

	// Act
	a.Refresh(context.Background())
	first := a.Sentiment()
	a.Refresh(context.Background())

	// Assert
	assert.Equal(t, models.SentimentBullish, first)
	assert.Equal(t, models.SentimentBullish, a.Sentiment())
	client.AssertExpectations(t)
}

func TestAnalyzer_UnrecognizedReplyKeepsLastLabel(t *testing.T) {
	// Arrange
	replies := []string{
		`{"choices":[{"message":{"role":"assistant","content":"Bearish"}}]}`,
		`{"choices":[{"message":{"role":"assistant","content":"I cannot determine"}}]}`,
	}
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(replies) {
			n = len(replies) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(replies[n]))
	})
	c, server := setupTestServer(handler, "")
	defer server.Close()
	path := filepath.Join(t.TempDir(), "ai_status.json")
	a := NewAnalyzer(c, time.Minute, time.Second, path, zap.NewNop())

	// Act
	a.Refresh(context.Background())
	first := a.Sentiment()
	a.Refresh(context.Background())

	// Assert
	assert.Equal(t, models.SentimentBearish, first)
	assert.Equal(t, models.SentimentBearish, a.Sentiment())
	assert.EqualValues(t, 2, calls.Load())
	var status models.SentimentSnapshot
	require.NoError(t, journal.ReadJSON(path, &status))
	assert.Equal(t, models.SentimentBearish, status.Label)
}

func TestAnalyzer_RefreshIfStaleHonoursCache(t *testing.T) {
	// Arrange
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	client := new(MockClient)
	client.On("Headlines", mock.Anything).Return(DefaultHeadlines, nil)
	client.On("Classify", mock.Anything, mock.Anything).Return(models.SentimentBullish, nil)
	a := NewAnalyzer(client, 15*time.Minute, time.Second, "", zap.NewNop())
	a.now = func() time.Time { return now }

	// Act: first call refreshes, the next within the TTL does not.
	a.RefreshIfStale(context.Background())
	a.Wait()
	now = now.Add(14 * time.Minute)
	a.RefreshIfStale(context.Background())
	a.Wait()
	client.AssertNumberOfCalls(t, "Classify", 1)

	// After the TTL it refreshes again.
	now = now.Add(time.Minute)
	a.RefreshIfStale(context.Background())
	a.Wait()

	// Assert
	client.AssertNumberOfCalls(t, "Classify", 2)
	assert.Equal(t, models.SentimentBullish, a.Sentiment())
}

func TestAnalyzer_RefreshDoesNotBlock(t *testing.T) {
	// Arrange
	release := make(chan struct{})
	client := new(MockClient)
	client.On("Headlines", mock.Anything).Return(DefaultHeadlines, nil)
	client.On("Classify", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(models.SentimentBearish, nil).Once()
	a := NewAnalyzer(client, time.Minute, 5*time.Second, "", zap.NewNop())

	// Act
	start := time.Now()
	a.RefreshIfStale(context.Background())
	a.RefreshIfStale(context.Background()) // in flight, ignored
	elapsed := time.Since(start)

	// Assert
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.Equal(t, models.SentimentNeutral, a.Sentiment())
	close(release)
	a.Wait()
	assert.Equal(t, models.SentimentBearish, a.Sentiment())
	client.AssertNumberOfCalls(t, "Classify", 1)
}

func TestAnalyzer_NoClientStaysNeutral(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai_status.json")
	a := NewAnalyzer(nil, time.Minute, time.Second, path, zap.NewNop())

	a.Refresh(context.Background())

	var status models.SentimentSnapshot
	require.NoError(t, journal.ReadJSON(path, &status))
	assert.Equal(t, models.SentimentNeutral, status.Label)
	assert.Equal(t, DefaultHeadlines, status.Headlines)
}

func TestStatic(t *testing.T) {
	s := Static(models.SentimentBearish)
	s.RefreshIfStale(context.Background())
	s.Wait()

	assert.Equal(t, models.SentimentBearish, s.Sentiment())
}
