package models

import (
	"fmt"
	"time"
)

// Action is what a Signal asks the execution engine to do.
type Action string

const (
	ActionEnterLong Action = "enter_long"
	ActionExit      Action = "exit"
)

// Side of an open position. Only long positions exist in this model.
type Side string

const SideLong Side = "LONG"

// Signal and route reasons.
const (
	ReasonTakeProfit    = "tp"
	ReasonStopLoss      = "sl"
	ReasonTWAPEntry     = "twap_entry"
	ReasonSmartLimit    = "smart_limit_entry"
	ReasonMomentum      = "momentum"
	ReasonEMACrossUp    = "ema_cross_up"
	ReasonRSIOversold   = "rsi_oversold"
	ReasonEMACrossDown  = "ema_cross_down"
	ReasonRSIOverbought = "rsi_overbought"
)

// Signal is an immutable trading instruction emitted by a strategy.
type Signal struct {
	Action Action    `json:"action"`
	Price  float64   `json:"price"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

func (s Signal) String() string {
	return fmt.Sprintf("%s@%.8f(%s)", s.Action, s.Price, s.Reason)
}

// Position is the single open lot.
type Position struct {
	Side       Side      `json:"side"`
	Quantity   float64   `json:"qty"`
	EntryPrice float64   `json:"entry"`
	OpenedAt   time.Time `json:"opened_at"`
}
