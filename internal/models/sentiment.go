package models

import (
	"strings"
	"time"
)

// Sentiment is the three-valued market mood label.
type Sentiment string

const (
	SentimentBullish Sentiment = "Bullish"
	SentimentBearish Sentiment = "Bearish"
	SentimentNeutral Sentiment = "Neutral"
)

// LookupSentiment matches a single label word, ignoring case, whitespace and trailing punctuation.
func LookupSentiment(s string) (Sentiment, bool) {
	word := strings.Trim(strings.TrimSpace(s), ".!\"'")
	for _, label := range []Sentiment{SentimentBullish, SentimentBearish, SentimentNeutral} {
		if strings.EqualFold(word, string(label)) {
			return label, true
		}
	}
	return SentimentNeutral, false
}

// ParseSentiment maps free text onto a label. Anything unrecognized is Neutral.
func ParseSentiment(s string) Sentiment {
	label, _ := LookupSentiment(s)
	return label
}

// SentimentSnapshot is what the status file holds.
type SentimentSnapshot struct {
	Label       Sentiment `json:"sentiment"`
	Headlines   []string  `json:"headlines"`
	LastUpdated time.Time `json:"last_updated"`
}
