// Package position holds the simulated positions and the store that owns
// them. All mutation goes through Store; callers only ever see copies.
package position

import (
	"fmt"
	"strings"
	"time"
)

// Mode decides whether the engine may close a position on its own.
type Mode string

const (
	Manual    Mode = "manual"
	Autopilot Mode = "autopilot"
)

// ParseMode maps anything other than exactly "autopilot" to Manual.
func ParseMode(s string) Mode {
	if Mode(s) == Autopilot {
		return Autopilot
	}
	return Manual
}

// MaxTickerLen is the longest ticker symbol accepted on a buy.
const MaxTickerLen = 10

// Position is one simulated holding. The JSON layout is the persisted
// snapshot format.
type Position struct {
	ID               string    `json:"id"`
	Ticker           string    `json:"ticker"`
	Quantity         int       `json:"quantity"`
	PurchasePrice    float64   `json:"purchasePrice"`
	CurrentPrice     float64   `json:"currentMockPrice"`
	TargetPrice      *float64  `json:"targetPrice,omitempty"`
	StopLossPrice    *float64  `json:"stopLossPrice,omitempty"`
	Mode             Mode      `json:"mode"`
	PurchaseDate     time.Time `json:"purchaseDate"`
	VolatilityFactor float64   `json:"simulatedVolatilityFactor"`
}

// Return is the unrealized fractional return at the current price. It is 0
// when the cost basis is not positive.
func (p Position) Return() float64 {
	if p.PurchasePrice <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.PurchasePrice) / p.PurchasePrice
}

// Clone returns a copy that shares no pointers with p.
func (p Position) Clone() Position {
	c := p
	if p.TargetPrice != nil {
		v := *p.TargetPrice
		c.TargetPrice = &v
	}
	if p.StopLossPrice != nil {
		v := *p.StopLossPrice
		c.StopLossPrice = &v
	}
	return c
}

// Order is a buy request.
type Order struct {
	Ticker        string   `json:"ticker" yaml:"ticker"`
	Quantity      int      `json:"quantity" yaml:"quantity"`
	PurchasePrice float64  `json:"purchasePrice" yaml:"purchase_price"`
	TargetPrice   *float64 `json:"targetPrice,omitempty" yaml:"target_price,omitempty"`
	StopLossPrice *float64 `json:"stopLossPrice,omitempty" yaml:"stop_loss_price,omitempty"`
	Mode          Mode     `json:"mode" yaml:"mode"`
}

// NormalizeTicker trims and uppercases a symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Validate checks the creation-time invariants. It does not mutate o.
func (o Order) Validate() error {
	ticker := NormalizeTicker(o.Ticker)
	if ticker == "" {
		return fmt.Errorf("%w: ticker is required", ErrInvalidOrder)
	}
	if len(ticker) > MaxTickerLen {
		return fmt.Errorf("%w: ticker %q is longer than %d characters", ErrInvalidOrder, ticker, MaxTickerLen)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if !(o.PurchasePrice > 0) {
		return fmt.Errorf("%w: purchase price must be positive", ErrInvalidOrder)
	}
	if o.Mode != "" && o.Mode != Manual && o.Mode != Autopilot {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidOrder, o.Mode)
	}
	if o.TargetPrice != nil && !(*o.TargetPrice > o.PurchasePrice) {
		return fmt.Errorf("%w: target price %.2f must be above purchase price %.2f", ErrInvalidOrder, *o.TargetPrice, o.PurchasePrice)
	}
	if o.StopLossPrice != nil && !(*o.StopLossPrice < o.PurchasePrice) {
		return fmt.Errorf("%w: stop-loss price %.2f must be below purchase price %.2f", ErrInvalidOrder, *o.StopLossPrice, o.PurchasePrice)
	}
	if o.TargetPrice != nil && o.StopLossPrice != nil && !(*o.TargetPrice > *o.StopLossPrice) {
		return fmt.Errorf("%w: target price must be above stop-loss price", ErrInvalidOrder)
	}
	return nil
}

// CloseResult describes the outcome of a sell.
type CloseResult struct {
	Position  Position // the position as it stood before the sell
	Sold      int
	Remaining int
	Price     float64
}

// Full reports whether the sell removed the position.
func (r CloseResult) Full() bool { return r.Remaining == 0 }
