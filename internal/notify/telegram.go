// Package notify forwards trades and breaker transitions to a Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/models"
	"cryptocom-momo-bot-go/internal/risk"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const queueSize = 64

var ErrQueueFull = errors.New("notification queue full")

// Telegram queues messages and delivers them from Run so the trading loop never waits on the network.
type Telegram struct {
	bot        *tgbotapi.BotAPI
	chatID     int64
	maxRetries int
	retryDelay time.Duration
	queue      chan string
	logger     *zap.Logger
}

// NewTelegram connects to the public Bot API.
func NewTelegram(cfg config.Telegram, logger *zap.Logger) (*Telegram, error) {
	return NewTelegramWithEndpoint(cfg, tgbotapi.APIEndpoint, logger)
}

// NewTelegramWithEndpoint connects to a Bot API compatible endpoint, e.g. "https://host/bot%s/%s".
func NewTelegramWithEndpoint(cfg config.Telegram, endpoint string, logger *zap.Logger) (*Telegram, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &Telegram{
		bot:        bot,
		chatID:     chatID,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		queue:      make(chan string, queueSize),
		logger:     logger.Named("telegram"),
	}, nil
}

// Run delivers queued messages until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-t.queue:
			if err := t.sendMarkdownV2(ctx, text); err != nil {
				t.logger.Error("Failed to send Telegram notification", zap.Error(err))
			}
		}
	}
}

// RecordTrade implements execution.TradeSink.
func (t *Telegram) RecordTrade(_ context.Context, rec models.TradeRecord) error {
	return t.enqueue(formatTrade(rec))
}

// BreakerChanged implements risk.BreakerListener.
func (t *Telegram) BreakerChanged(reason risk.Reason, paused bool, detail string) {
	if err := t.enqueue(formatBreaker(reason, paused, detail)); err != nil {
		t.logger.Warn("Dropped breaker notification", zap.Error(err))
	}
}

func (t *Telegram) enqueue(text string) error {
	select {
	case t.queue <- text:
		return nil
	default:
		return ErrQueueFull
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (t *Telegram) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		if _, err := t.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-time.After(t.retryDelay * time.Duration(i+1)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("failed after %d retries: %w", t.maxRetries, lastErr)
}

func formatTrade(rec models.TradeRecord) string {
	icon := "🟢"
	if rec.Action == models.TradeExit {
		icon = "🔴"
	}
	text := fmt.Sprintf("%s *%s* %s\n%s @ %s\nreason: %s",
		icon,
		escapeMarkdownV2(rec.Action),
		escapeMarkdownV2(rec.Symbol),
		escapeMarkdownV2(strconv.FormatFloat(rec.Quantity, 'f', 8, 64)),
		escapeMarkdownV2(strconv.FormatFloat(rec.Price, 'f', 2, 64)),
		escapeMarkdownV2(rec.Reason),
	)
	if rec.PnL != nil {
		text += "\npnl: " + escapeMarkdownV2(fmt.Sprintf("%+.4f USDT", *rec.PnL))
	}
	return text
}

func formatBreaker(reason risk.Reason, paused bool, detail string) string {
	if paused {
		return fmt.Sprintf("⚠️ *Breaker tripped*: %s\n%s", escapeMarkdownV2(string(reason)), escapeMarkdownV2(detail))
	}
	return fmt.Sprintf("✅ *Breaker cleared*: %s\n%s", escapeMarkdownV2(string(reason)), escapeMarkdownV2(detail))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
