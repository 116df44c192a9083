package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/papertrade/position"
	"github.com/rustyeddy/papertrade/pricing"
)

func ptr(v float64) *float64 { return &v }

func autopilot(v, purchase, current float64, target, stop *float64) position.Position {
	return position.Position{
		ID:               "P1",
		Ticker:           "AAPL",
		Quantity:         10,
		PurchasePrice:    purchase,
		CurrentPrice:     current,
		TargetPrice:      target,
		StopLossPrice:    stop,
		Mode:             position.Autopilot,
		VolatilityFactor: v,
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		pos   position.Position
		draw  float64
		want  Decision
		draws int
	}{
		{
			name: "target reached",
			pos:  autopilot(0.2, 100, 111, ptr(110), ptr(90)),
			want: Decision{Exit: true, Reason: ReasonTargetReached},
		},
		{
			name: "target reached exactly",
			pos:  autopilot(0.2, 100, 110, ptr(110), nil),
			want: Decision{Exit: true, Reason: ReasonTargetReached},
		},
		{
			name: "stop-loss triggered",
			pos:  autopilot(0.2, 100, 89.5, ptr(110), ptr(90)),
			want: Decision{Exit: true, Reason: ReasonStopLoss},
		},
		{
			name: "stop-loss exactly",
			pos:  autopilot(0.2, 100, 90, nil, ptr(90)),
			want: Decision{Exit: true, Reason: ReasonStopLoss},
		},
		{
			name: "between target and stop",
			pos:  autopilot(0.2, 100, 101, ptr(110), ptr(90)),
			want: Decision{},
		},
		{
			name: "no rules configured",
			pos:  autopilot(0.2, 100, 500, nil, nil),
			want: Decision{},
		},
		{
			name:  "volatile profit secured beats target",
			pos:   autopilot(0.5, 100, 111, ptr(110), nil),
			draw:  0.01,
			want:  Decision{Exit: true, Reason: ReasonProfitSecured},
			draws: 1,
		},
		{
			name:  "extreme volatility mitigates small loss",
			pos:   autopilot(0.5, 100, 98, nil, nil),
			draw:  0.01,
			want:  Decision{Exit: true, Reason: ReasonRiskMitigated},
			draws: 1,
		},
		{
			name:  "moderate volatility does not mitigate",
			pos:   autopilot(0.4, 100, 98, nil, nil),
			draw:  0.01,
			want:  Decision{},
			draws: 1,
		},
		{
			name:  "extreme volatility falls through on deep loss",
			pos:   autopilot(0.5, 100, 90, nil, ptr(91)),
			draw:  0.01,
			want:  Decision{Exit: true, Reason: ReasonStopLoss},
			draws: 1,
		},
		{
			name:  "draw above odds falls through to target",
			pos:   autopilot(0.5, 100, 111, ptr(110), nil),
			draw:  0.05,
			want:  Decision{Exit: true, Reason: ReasonTargetReached},
			draws: 1,
		},
		{
			name: "volatility at threshold does not draw",
			pos:  autopilot(0.35, 100, 111, nil, nil),
			want: Decision{},
		},
		{
			name:  "zero purchase price has zero return",
			pos:   autopilot(0.5, 0, 10, nil, nil),
			draw:  0,
			want:  Decision{Exit: true, Reason: ReasonRiskMitigated},
			draws: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := pricing.NewSequence(tt.draw)
			got := Evaluate(tt.pos, src)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.draws, src.Calls())
		})
	}
}

func TestEvaluateManualNeverExits(t *testing.T) {
	t.Parallel()

	p := autopilot(0.9, 100, 50, ptr(110), ptr(90))
	p.Mode = position.Manual

	src := pricing.NewSequence(0)
	assert.Equal(t, Decision{}, Evaluate(p, src))
	assert.Zero(t, src.Calls())

	p.CurrentPrice = 200
	assert.False(t, Evaluate(p, src).Exit)
}
