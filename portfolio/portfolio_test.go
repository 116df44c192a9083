package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrade/position"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pos      position.Position
		invested string
		value    string
		pl       string
		plPct    string
	}{
		{
			name:     "gain",
			pos:      position.Position{Ticker: "AAPL", Quantity: 10, PurchasePrice: 100, CurrentPrice: 111},
			invested: "1000", value: "1110", pl: "110", plPct: "11",
		},
		{
			name:     "loss",
			pos:      position.Position{Ticker: "TSLA", Quantity: 3, PurchasePrice: 200.1, CurrentPrice: 150.05},
			invested: "600.3", value: "450.15", pl: "-150.15", plPct: "-25.01",
		},
		{
			name:     "zero cost basis",
			pos:      position.Position{Ticker: "X", Quantity: 1, PurchasePrice: 0, CurrentPrice: 5},
			invested: "0", value: "5", pl: "5", plPct: "0",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := Value(tt.pos)
			assert.True(t, dec(tt.invested).Equal(h.Invested), "invested %s", h.Invested)
			assert.True(t, dec(tt.value).Equal(h.Value), "value %s", h.Value)
			assert.True(t, dec(tt.pl).Equal(h.PL), "pl %s", h.PL)
			assert.True(t, dec(tt.plPct).Equal(h.PLPct), "plPct %s", h.PLPct)
		})
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	asOf := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	ps := []position.Position{
		{ID: "1", Ticker: "AAPL", Quantity: 10, PurchasePrice: 100, CurrentPrice: 110, Mode: position.Autopilot},
		{ID: "2", Ticker: "MSFT", Quantity: 1, PurchasePrice: 300, CurrentPrice: 270, Mode: position.Manual},
		{ID: "3", Ticker: "AAPL", Quantity: 5, PurchasePrice: 120, CurrentPrice: 110, Mode: position.Manual},
	}

	s := Summarize(ps, asOf)
	require.Len(t, s.Holdings, 3)
	assert.True(t, dec("1900").Equal(s.Invested), "invested %s", s.Invested)
	assert.True(t, dec("1920").Equal(s.Value), "value %s", s.Value)
	assert.True(t, dec("20").Equal(s.PL), "pl %s", s.PL)
	assert.True(t, dec("1.05").Equal(s.PLPct), "plPct %s", s.PLPct)
	assert.Equal(t, 1, s.Autopilot)
	assert.Equal(t, 2, s.Manual)
	assert.Equal(t, asOf, s.AsOf)

	require.Len(t, s.Allocations, 2)
	assert.Equal(t, "AAPL", s.Allocations[0].Ticker)
	assert.True(t, dec("1650").Equal(s.Allocations[0].Value))
	assert.True(t, dec("85.94").Equal(s.Allocations[0].Pct), "pct %s", s.Allocations[0].Pct)
	assert.Equal(t, "MSFT", s.Allocations[1].Ticker)
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil, time.Now())
	assert.Empty(t, s.Holdings)
	assert.Empty(t, s.Allocations)
	assert.True(t, s.Value.IsZero())
	assert.True(t, s.PLPct.IsZero())
}
