package models

import "time"

// Tick is a single normalized ticker update.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Bid       float64   `json:"bid,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderBookUpdate carries the top of book. Zero means the side was empty.
type OrderBookUpdate struct {
	Symbol  string  `json:"symbol"`
	BestBid float64 `json:"best_bid"`
	BestAsk float64 `json:"best_ask"`
}

// Candle is a one-minute OHLCV bar.
type Candle struct {
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	BucketStart time.Time `json:"bucket_start"`
}

// NewCandle opens a bar at price.
func NewCandle(bucket time.Time, price float64) Candle {
	return Candle{Open: price, High: price, Low: price, Close: price, BucketStart: bucket}
}

// Update folds a new trade price into the bar.
func (c *Candle) Update(price float64) {
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	c.Close = price
}
