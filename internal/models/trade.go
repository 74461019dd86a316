package models

import (
	"time"

	"gorm.io/gorm"
)

// Trade log actions.
const (
	TradeEnter = "ENTER"
	TradeExit  = "EXIT"
)

// TradeRecord is an append-only log entry for a paper fill.
type TradeRecord struct {
	gorm.Model `json:"-"`
	Session    string    `json:"session" gorm:"index"`
	Timestamp  time.Time `json:"ts" gorm:"index"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"` // "ENTER" or "EXIT"
	Side       Side      `json:"side"`
	Price      float64   `json:"price"`
	Quantity   float64   `json:"qty"`
	Reason     string    `json:"reason"`
	PnL        *float64  `json:"pnl_usdt,omitempty" gorm:"column:pnl_usdt"`
}

// Notional is the quote value of the fill.
func (t TradeRecord) Notional() float64 {
	return t.Price * t.Quantity
}
