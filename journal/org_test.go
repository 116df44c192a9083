package journal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	rec := TradeRecord{
		TradeID:       "01HZXABCDEFG",
		PositionID:    "P1",
		Ticker:        "AAPL",
		Side:          Sell,
		Mode:          "autopilot",
		Quantity:      10,
		Price:         111,
		PurchasePrice: 100,
		RealizedPL:    110,
		Time:          time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Reason:        "target price reached",
	}

	out := FormatTradeOrg(rec)
	assert.True(t, strings.HasPrefix(out, "** SELL 10 AAPL @ 111.00 (01HZXABC)\n"), out)
	assert.Contains(t, out, ":REALIZED_PL: 110.00\n")
	assert.Contains(t, out, ":TIME: 2024-01-02T03:04:05Z\n")
	assert.Contains(t, out, ":REASON: target price reached\n")
	assert.True(t, strings.HasSuffix(out, ":END:\n"))

	rec.Side = Buy
	assert.NotContains(t, FormatTradeOrg(rec), "REALIZED_PL")
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	out := FormatTradesOrg([]TradeRecord{{TradeID: "A", Side: Buy}, {TradeID: "B", Side: Buy}})
	assert.Equal(t, 2, strings.Count(out, ":PROPERTIES:"))
	assert.Contains(t, out, ":END:\n\n** ")
	assert.Empty(t, FormatTradesOrg(nil))
}
