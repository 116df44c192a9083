// Package portfolio values the open positions. Money math is done in
// decimal so totals over many holdings do not drift.
package portfolio

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/papertrade/position"
)

// Holding is one position priced at its current mock price.
type Holding struct {
	ID       string          `json:"id"`
	Ticker   string          `json:"ticker"`
	Mode     position.Mode   `json:"mode"`
	Quantity int             `json:"quantity"`
	Invested decimal.Decimal `json:"invested"`
	Value    decimal.Decimal `json:"value"`
	PL       decimal.Decimal `json:"pl"`
	PLPct    decimal.Decimal `json:"plPct"`
}

// Allocation is the share of market value held in one ticker.
type Allocation struct {
	Ticker string          `json:"ticker"`
	Value  decimal.Decimal `json:"value"`
	Pct    decimal.Decimal `json:"pct"`
}

type Summary struct {
	Holdings    []Holding       `json:"holdings"`
	Allocations []Allocation    `json:"allocations"`
	Invested    decimal.Decimal `json:"invested"`
	Value       decimal.Decimal `json:"value"`
	PL          decimal.Decimal `json:"pl"`
	PLPct       decimal.Decimal `json:"plPct"`
	Autopilot   int             `json:"autopilot"`
	Manual      int             `json:"manual"`
	AsOf        time.Time       `json:"asOf"`
}

var hundred = decimal.NewFromInt(100)

// Value prices one position.
func Value(p position.Position) Holding {
	qty := decimal.NewFromInt(int64(p.Quantity))
	invested := decimal.NewFromFloat(p.PurchasePrice).Mul(qty).Round(2)
	value := decimal.NewFromFloat(p.CurrentPrice).Mul(qty).Round(2)
	pl := value.Sub(invested)

	return Holding{
		ID:       p.ID,
		Ticker:   p.Ticker,
		Mode:     p.Mode,
		Quantity: p.Quantity,
		Invested: invested,
		Value:    value,
		PL:       pl,
		PLPct:    pct(pl, invested),
	}
}

// Summarize values every position and totals them.
func Summarize(ps []position.Position, asOf time.Time) Summary {
	s := Summary{
		Holdings: make([]Holding, 0, len(ps)),
		AsOf:     asOf.UTC(),
	}

	byTicker := map[string]decimal.Decimal{}
	for _, p := range ps {
		h := Value(p)
		s.Holdings = append(s.Holdings, h)
		s.Invested = s.Invested.Add(h.Invested)
		s.Value = s.Value.Add(h.Value)
		byTicker[h.Ticker] = byTicker[h.Ticker].Add(h.Value)

		if p.Mode == position.Autopilot {
			s.Autopilot++
		} else {
			s.Manual++
		}
	}
	s.PL = s.Value.Sub(s.Invested)
	s.PLPct = pct(s.PL, s.Invested)

	s.Allocations = make([]Allocation, 0, len(byTicker))
	for ticker, v := range byTicker {
		s.Allocations = append(s.Allocations, Allocation{
			Ticker: ticker,
			Value:  v,
			Pct:    pct(v, s.Value),
		})
	}
	sort.Slice(s.Allocations, func(i, j int) bool {
		a, b := s.Allocations[i], s.Allocations[j]
		if !a.Value.Equal(b.Value) {
			return a.Value.GreaterThan(b.Value)
		}
		return a.Ticker < b.Ticker
	})
	return s
}

func pct(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
