package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/models"
	"cryptocom-momo-bot-go/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBotAPI answers getMe and records sendMessage texts.
func fakeBotAPI(t *testing.T, sendStatus int) (*httptest.Server, chan string) {
	sent := make(chan string, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"momo_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.PostForm.Get("chat_id"))
			assert.Equal(t, "MarkdownV2", r.PostForm.Get("parse_mode"))
			sent <- r.PostForm.Get("text")
			if sendStatus != http.StatusOK {
				w.WriteHeader(sendStatus)
				_, _ = w.Write([]byte(`{"ok":false,"error_code":500,"description":"boom"}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server, sent
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"smart_limit_entry", "smart\\_limit\\_entry"},
		{"Price: 100.50", "Price: 100\\.50"},
		{"+1.0000 USDT", "\\+1\\.0000 USDT"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, escapeMarkdownV2(tt.input))
		})
	}
}

func TestNewTelegram_InvalidChatID(t *testing.T) {
	_, err := NewTelegram(config.Telegram{BotToken: "x", ChatID: "not-a-number"}, zap.NewNop())
	assert.Error(t, err)
}

func TestTelegram_DeliversQueuedMessages(t *testing.T) {
	// Arrange
	server, sent := fakeBotAPI(t, http.StatusOK)
	defer server.Close()
	tg, err := NewTelegramWithEndpoint(config.Telegram{BotToken: "token", ChatID: "42"}, server.URL+"/bot%s/%s", zap.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tg.Run(ctx)

	pnl := 1.0
	rec := models.TradeRecord{Symbol: "BTC_USDT", Action: models.TradeExit, Price: 110, Quantity: 0.1, Reason: "tp", PnL: &pnl}

	// Act
	require.NoError(t, tg.RecordTrade(ctx, rec))
	tg.BreakerChanged(risk.ReasonDrawdown, true, "daily drawdown limit hit")

	// Assert
	for _, want := range []string{"*EXIT* BTC\\_USDT", "*Breaker tripped*: drawdown"} {
		select {
		case text := <-sent:
			assert.Contains(t, text, want)
		case <-time.After(2 * time.Second):
			t.Fatalf("message containing %q not delivered", want)
		}
	}
}

func TestTelegram_RetriesFailedSends(t *testing.T) {
	// Arrange
	server, sent := fakeBotAPI(t, http.StatusInternalServerError)
	defer server.Close()
	tg, err := NewTelegramWithEndpoint(config.Telegram{BotToken: "token", ChatID: "42", MaxRetries: 2, RetryDelay: time.Millisecond}, server.URL+"/bot%s/%s", zap.NewNop())
	require.NoError(t, err)

	// Act
	err = tg.sendMarkdownV2(context.Background(), "hello")

	// Assert
	assert.Error(t, err)
	assert.Len(t, sent, 2)
}

func TestTelegram_QueueFull(t *testing.T) {
	tg := &Telegram{queue: make(chan string, 1), logger: zap.NewNop()}

	require.NoError(t, tg.enqueue("first"))
	assert.ErrorIs(t, tg.enqueue("second"), ErrQueueFull)
}
