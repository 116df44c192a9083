package position

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Encode serializes positions to the snapshot format.
func Encode(positions []Position) ([]byte, error) {
	if positions == nil {
		positions = []Position{}
	}
	return json.Marshal(positions)
}

// Decode reads a snapshot, sanitizing rather than rejecting bad records:
//
//   - a record that is not an object, or lacks a string id or ticker, is dropped
//   - numeric fields that are missing, non-numeric or NaN become 0
//   - optional prices that are not numbers become absent
//   - mode is manual unless exactly "autopilot"
//   - purchaseDate is the epoch unless it is a parseable RFC 3339 string
//   - quantity outside the int range becomes 0
//   - simulatedVolatilityFactor is clamped to [0,1]
//
// Every repair is reported in warnings. Data that is not a JSON array
// decodes to an empty set with a single warning.
func Decode(data []byte) (positions []Position, warnings []string) {
	positions = []Position{}
	if len(data) == 0 {
		return positions, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return positions, []string{fmt.Sprintf("snapshot is not a JSON array: %v", err)}
	}

	for i, msg := range raw {
		var rec map[string]any
		if err := json.Unmarshal(msg, &rec); err != nil || rec == nil {
			warnings = append(warnings, fmt.Sprintf("record %d: not an object, dropped", i))
			continue
		}

		p, ws, ok := sanitize(rec)
		for _, w := range ws {
			warnings = append(warnings, fmt.Sprintf("record %d: %s", i, w))
		}
		if ok {
			positions = append(positions, p)
		}
	}
	return positions, warnings
}

func sanitize(rec map[string]any) (Position, []string, bool) {
	var warnings []string

	idv, ok := rec["id"].(string)
	if !ok {
		return Position{}, []string{"missing string id, dropped"}, false
	}
	ticker, ok := rec["ticker"].(string)
	if !ok {
		return Position{}, []string{"missing string ticker, dropped"}, false
	}

	number := func(key string) float64 {
		v, ok := rec[key].(float64)
		if !ok || math.IsNaN(v) {
			warnings = append(warnings, fmt.Sprintf("%s defaulted to 0", key))
			return 0
		}
		return v
	}
	optional := func(key string) *float64 {
		raw, present := rec[key]
		if !present || raw == nil {
			return nil
		}
		v, ok := raw.(float64)
		if !ok || math.IsNaN(v) {
			warnings = append(warnings, fmt.Sprintf("%s dropped", key))
			return nil
		}
		return &v
	}

	p := Position{
		ID:               idv,
		Ticker:           ticker,
		PurchasePrice:    number("purchasePrice"),
		CurrentPrice:     number("currentMockPrice"),
		TargetPrice:      optional("targetPrice"),
		StopLossPrice:    optional("stopLossPrice"),
		VolatilityFactor: number("simulatedVolatilityFactor"),
		PurchaseDate:     time.Unix(0, 0).UTC(),
	}

	// float64(math.MaxInt) rounds up to a power of two, so the upper bound is exclusive.
	if q := number("quantity"); q >= math.MinInt && q < math.MaxInt {
		p.Quantity = int(q)
	} else {
		warnings = append(warnings, "quantity out of range, defaulted to 0")
	}

	if v := p.VolatilityFactor; v < 0 || v > 1 {
		p.VolatilityFactor = math.Min(math.Max(v, 0), 1)
		warnings = append(warnings, "simulatedVolatilityFactor clamped to [0,1]")
	}

	mode, _ := rec["mode"].(string)
	p.Mode = ParseMode(mode)
	if p.Mode != Mode(mode) {
		warnings = append(warnings, "mode defaulted to manual")
	}

	if s, ok := rec["purchaseDate"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			p.PurchaseDate = t
		} else {
			warnings = append(warnings, "purchaseDate unparseable, defaulted to epoch")
		}
	} else {
		warnings = append(warnings, "purchaseDate defaulted to epoch")
	}

	return p, warnings, true
}
