package signals

import (
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/store"
)

// ConfidenceInput carries everything the confidence formula needs.
type ConfidenceInput struct {
	Votes             map[string]Vote
	Direction         Direction
	PatternScore      decimal.Decimal // ≤ 30, pattern reliability
	IndicatorScores   map[string]store.IndicatorScore
	ADXStrong         bool // ADX confirms a strong trend
	OBVDivergence     bool // OBV confirms direction
	BuyConfidencePenalty decimal.Decimal
}

var (
	maxPattern    = decimal.NewFromInt(30)
	maxConfluence = decimal.NewFromInt(40)
	maxStrength   = decimal.NewFromInt(30)
)

// Confidence computes the 0-100 confidence score: pattern reliability
// (≤30) + indicator confluence (≤40, weighted by IndicatorScore, +2 per
// extra confirming indicator up to +10, +3 if ADX strong, +2 if OBV
// confirms) + signal strength (≤30) minus a BUY penalty.
func Confidence(in ConfidenceInput) decimal.Decimal {
	pattern := clampMax(in.PatternScore, maxPattern)

	confluence := decimal.Zero
	confirming := 0
	for name, v := range in.Votes {
		if v.Direction != in.Direction {
			continue
		}
		confirming++
		weight := decimal.NewFromFloat(0.5) // default weight absent a track record
		if sc, ok := in.IndicatorScores[name]; ok {
			weight = sc.WinRate
		}
		confluence = confluence.Add(weight.Mul(decimal.NewFromInt(4)))
	}
	if confirming > 1 {
		extra := decimal.NewFromInt(int64(confirming - 1))
		bonus := clampMax(extra.Mul(decimal.NewFromInt(2)), decimal.NewFromInt(10))
		confluence = confluence.Add(bonus)
	}
	if in.ADXStrong {
		confluence = confluence.Add(decimal.NewFromInt(3))
	}
	if in.OBVDivergence {
		confluence = confluence.Add(decimal.NewFromInt(2))
	}
	confluence = clampMax(confluence, maxConfluence)

	strength := decimal.Zero
	if confirming > 0 {
		sum := decimal.Zero
		for _, v := range in.Votes {
			if v.Direction == in.Direction {
				sum = sum.Add(v.Strength)
			}
		}
		avg := sum.Div(decimal.NewFromInt(int64(confirming)))
		strength = clampMax(avg.Mul(maxStrength), maxStrength)
	}

	total := pattern.Add(confluence).Add(strength)
	if in.Direction == DirBuy {
		penalty := in.BuyConfidencePenalty
		if penalty.IsZero() {
			penalty = decimal.NewFromInt(3)
		}
		total = total.Sub(penalty)
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return clampMax(total, decimal.NewFromInt(100))
}

func clampMax(v, max decimal.Decimal) decimal.Decimal {
	if v.GreaterThan(max) {
		return max
	}
	return v
}
