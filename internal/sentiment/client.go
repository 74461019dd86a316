package sentiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/models"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const systemPrompt = "You are a financial analyst. Analyze the sentiment of crypto news headlines. " +
	"Respond with only a single word: Bullish, Bearish, or Neutral."

// DefaultHeadlines are used when no news feed is configured.
var DefaultHeadlines = []string{
	"Bitcoin surges past resistance as institutional interest grows.",
	"Ethereum developers announce successful merge update, network efficiency up.",
	"Regulatory concerns in Asia cast a shadow over short-term crypto market.",
}

var (
	ErrEmptyCompletion   = errors.New("completion returned no choices")
	ErrUnrecognizedReply = errors.New("completion reply is not a sentiment label")
)

// ClientInterface defines the remote calls the analyzer depends on.
type ClientInterface interface {
	Headlines(ctx context.Context) ([]string, error)
	Classify(ctx context.Context, headlines []string) (models.Sentiment, error)
}

// Client talks to an OpenAI compatible chat completions API and an optional JSON news feed.
type Client struct {
	client  *resty.Client
	apiKey  string
	model   string
	newsURL string
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new sentiment API client.
func NewClient(cfg config.Sentiment, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateLimitBurst, 1))

	return &Client{
		client:  client,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		newsURL: cfg.NewsURL,
		logger:  logger.Named("sentiment-client"),
		limiter: limiter,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify asks the model for a one-word sentiment of the headlines.
func (c *Client) Classify(ctx context.Context, headlines []string) (models.Sentiment, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Headlines:\n- " + strings.Join(headlines, "\n- ")},
		},
		Temperature: 0,
		MaxTokens:   5,
	}

	req := c.client.R().
		SetAuthToken(c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&chatResponse{})

	resp, err := c.doRequest(ctx, http.MethodPost, "/chat/completions", req)
	if err != nil {
		return models.SentimentNeutral, fmt.Errorf("failed to classify headlines: %w", err)
	}

	result := resp.Result().(*chatResponse)
	if len(result.Choices) == 0 {
		return models.SentimentNeutral, ErrEmptyCompletion
	}
	content := result.Choices[0].Message.Content
	label, ok := models.LookupSentiment(content)
	if !ok {
		return models.SentimentNeutral, fmt.Errorf("%w: %q", ErrUnrecognizedReply, content)
	}
	return label, nil
}

// Headlines fetches a JSON array of headline strings from the news feed, or returns the defaults.
func (c *Client) Headlines(ctx context.Context) ([]string, error) {
	if c.newsURL == "" {
		return append([]string(nil), DefaultHeadlines...), nil
	}

	var headlines []string
	req := c.client.R().SetResult(&headlines)
	if _, err := c.doRequest(ctx, http.MethodGet, c.newsURL, req); err != nil {
		return nil, fmt.Errorf("failed to fetch headlines: %w", err)
	}
	if len(headlines) == 0 {
		return append([]string(nil), DefaultHeadlines...), nil
	}
	return headlines, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	req.SetContext(ctx)
	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil && resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
			err = fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		} else {
			// Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, err
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
