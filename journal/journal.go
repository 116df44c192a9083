// Package journal keeps an append-only audit of every simulated trade:
// buys, manual sells and automatic exits.
package journal

import "time"

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Reasons recorded for user actions. Automatic exits record the exit rule's
// own reason.
const (
	ReasonManualBuy  = "manual buy"
	ReasonManualSell = "manual sell"
)

// TradeRecord is one executed trade action.
type TradeRecord struct {
	TradeID       string
	PositionID    string
	Ticker        string
	Side          Side
	Mode          string
	Quantity      int
	Price         float64
	PurchasePrice float64
	RealizedPL    float64 // zero for buys
	Time          time.Time
	Reason        string
}

type Journal interface {
	RecordTrade(TradeRecord) error
	Close() error
}

// Nop discards records.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) Close() error                  { return nil }
