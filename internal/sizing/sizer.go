// Package sizing computes position sizes and enforces balance-aware SL
// risk caps: a risk-amount / risk-per-unit calculation with a min/max
// clamp, blended with a confidence multiplier, symbol risk factor, and
// balance tier.
package sizing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrCannotSizeSafely is returned when even the minimum broker volume
// would exceed the balance-aware max risk.
var ErrCannotSizeSafely = errors.New("sizing: cannot reduce lot below volume_min within max risk")

// confidenceMultiplier buckets signal confidence into a lot multiplier.
func confidenceMultiplier(confidence decimal.Decimal) decimal.Decimal {
	switch {
	case confidence.GreaterThanOrEqual(decimal.NewFromInt(85)):
		return decimal.NewFromFloat(1.5)
	case confidence.GreaterThanOrEqual(decimal.NewFromInt(75)):
		return decimal.NewFromFloat(1.2)
	case confidence.GreaterThanOrEqual(decimal.NewFromInt(60)):
		return decimal.NewFromFloat(1.0)
	case confidence.GreaterThanOrEqual(decimal.NewFromInt(50)):
		return decimal.NewFromFloat(0.7)
	default:
		return decimal.NewFromFloat(0.5)
	}
}

// symbolRiskFactors scales risk per symbol — volatile instruments get a
// smaller share of the risk budget than majors.
var symbolRiskFactors = map[string]decimal.Decimal{
	"BTCUSD": decimal.NewFromFloat(0.5),
	"ETHUSD": decimal.NewFromFloat(0.6),
	"XAUUSD": decimal.NewFromFloat(0.8),
	"DE40.c": decimal.NewFromFloat(0.9),
	"EURUSD": decimal.NewFromFloat(1.0),
}

func symbolRiskFactor(symbol string) decimal.Decimal {
	if f, ok := symbolRiskFactors[symbol]; ok {
		return f
	}
	return decimal.NewFromFloat(1.0)
}

// balanceTier is one row of the balance-tier base-lot table.
type balanceTier struct {
	min, max decimal.Decimal // max is exclusive; zero max means unbounded
	lot      decimal.Decimal
}

var balanceTiers = []balanceTier{
	{min: decimal.NewFromInt(0), max: decimal.NewFromInt(500), lot: decimal.NewFromFloat(0.01)},
	{min: decimal.NewFromInt(500), max: decimal.NewFromInt(1000), lot: decimal.NewFromFloat(0.01)},
	{min: decimal.NewFromInt(1000), max: decimal.NewFromInt(2000), lot: decimal.NewFromFloat(0.02)},
	{min: decimal.NewFromInt(2000), max: decimal.NewFromInt(5000), lot: decimal.NewFromFloat(0.03)},
	{min: decimal.NewFromInt(5000), max: decimal.NewFromInt(10000), lot: decimal.NewFromFloat(0.05)},
	{min: decimal.NewFromInt(10000), max: decimal.Zero, lot: decimal.NewFromFloat(0.10)},
}

func balanceTierLot(balance decimal.Decimal) decimal.Decimal {
	for _, t := range balanceTiers {
		if balance.GreaterThanOrEqual(t.min) && (t.max.IsZero() || balance.LessThan(t.max)) {
			return t.lot
		}
	}
	return balanceTiers[0].lot
}

// BrokerVolumeLimits carries the per-symbol volume constraints from
// BrokerSymbol.
type BrokerVolumeLimits struct {
	Min, Max, Step decimal.Decimal
}

// Input carries everything the position sizer needs.
type Input struct {
	Balance        decimal.Decimal
	Symbol         string
	Confidence     decimal.Decimal
	SLDistancePips decimal.Decimal
	PipValue       decimal.Decimal
	BaseRiskPct    decimal.Decimal
	Volume         BrokerVolumeLimits
}

// Calculate computes the final lot size by blending the risk-based and
// balance-tier lot, then clamping to the broker's volume limits.
func Calculate(in Input) decimal.Decimal {
	confMult := confidenceMultiplier(in.Confidence)
	symbolFactor := symbolRiskFactor(in.Symbol)
	baseRisk := in.BaseRiskPct
	if baseRisk.IsZero() {
		baseRisk = decimal.NewFromFloat(0.01)
	}

	riskAmount := in.Balance.Mul(baseRisk).Mul(confMult).Mul(symbolFactor)

	var lotByRisk decimal.Decimal
	denom := in.SLDistancePips.Mul(in.PipValue)
	if denom.IsPositive() {
		lotByRisk = riskAmount.Div(denom)
	}

	tierLot := balanceTierLot(in.Balance)
	finalLot := tierLot.Add(lotByRisk).Div(decimal.NewFromInt(2))

	return clampToVolume(finalLot, in.Volume)
}

// clampToVolume clamps a raw lot size to [volume_min, min(volume_max,
// 1.0)] and rounds to the nearest volume_step.
func clampToVolume(lot decimal.Decimal, limits BrokerVolumeLimits) decimal.Decimal {
	min := limits.Min
	if min.IsZero() {
		min = decimal.NewFromFloat(0.01)
	}
	hardCap := decimal.NewFromInt(1)
	upper := hardCap
	if !limits.Max.IsZero() && limits.Max.LessThan(hardCap) {
		upper = limits.Max
	}

	if lot.LessThan(min) {
		lot = min
	}
	if lot.GreaterThan(upper) {
		lot = upper
	}
	if limits.Step.IsPositive() {
		steps := lot.Div(limits.Step).Round(0)
		lot = steps.Mul(limits.Step)
	}
	return lot
}
