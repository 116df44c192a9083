// Package pricing implements the toy price model that moves simulated
// positions between ticks.
package pricing

import "math"

const (
	// BaseSwing is the largest fractional move a zero-volatility position
	// can make in one tick.
	BaseSwing = 0.015
	// VolatilityMultiplier scales the volatility factor into extra swing.
	VolatilityMultiplier = 0.08
	// MinPrice is the price floor applied every tick.
	MinPrice = 0.01
)

// MaxSwing returns the bound of the uniform move for a volatility factor.
func MaxSwing(volatility float64) float64 {
	return BaseSwing + volatility*VolatilityMultiplier
}

// Next draws one tick of the bounded random walk: the price moves by a
// uniform fraction in [-MaxSwing, +MaxSwing], is floored at MinPrice and
// rounded to cents.
func Next(price, volatility float64, src Source) float64 {
	swing := MaxSwing(volatility)
	change := (src.Float64()*2 - 1) * swing

	next := price * (1 + change)
	if math.IsNaN(next) || next < MinPrice {
		next = MinPrice
	}
	return Round(next)
}

// Round rounds to two decimal places.
func Round(x float64) float64 {
	return math.Round(x*100) / 100
}
