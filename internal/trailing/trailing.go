// Package trailing implements a 4-stage progress-based trailing stop:
// high-water-mark trailing against a single threshold generalized into
// multi-stage tightening as a trade's progress toward TP increases.
package trailing

import (
	"github.com/shopspring/decimal"
)

var (
	stageBreakeven = decimal.NewFromFloat(0.30)
	stagePartial   = decimal.NewFromFloat(0.50)
	stageAggressive = decimal.NewFromFloat(0.75)
	stageNearTP    = decimal.NewFromFloat(0.90)
)

// Stage names the trailing-stop tightening phase a trade is in.
type Stage string

const (
	StageNone       Stage = "NONE"
	StageBreakeven  Stage = "BREAKEVEN"
	StagePartial    Stage = "PARTIAL"
	StageAggressive Stage = "AGGRESSIVE"
	StageNearTP     Stage = "NEAR_TP"
)

// Direction of the underlying trade.
type Direction string

const (
	DirBuy  Direction = "BUY"
	DirSell Direction = "SELL"
)

// Input carries one trade's state for one trailing-stop evaluation.
type Input struct {
	Direction    Direction
	Entry        decimal.Decimal
	TP           decimal.Decimal
	CurrentSL    decimal.Decimal
	CurrentPrice decimal.Decimal
	Spread       decimal.Decimal
	Lot          decimal.Decimal
	Balance      decimal.Decimal

	// Point is the price size of one pip (e.g. 0.0001 for EURUSD):
	// every pips-scale distance from trailPips is multiplied by it
	// directly before touching price. MinTrail is in pips, same scale as
	// trailPips' return.
	Point    decimal.Decimal
	MinTrail decimal.Decimal
}

// Result is the trailing-stop decision for one evaluation.
type Result struct {
	Stage   Stage
	NewSL   decimal.Decimal
	ShouldMove bool
}

// Evaluate computes progress-to-TP and, if a stage threshold is crossed,
// the new SL — enforcing the hard safety invariants: SL never moves
// against the trade, never crosses entry in the losing direction, and
// movement must clear a minimum delta to avoid chatter.
func Evaluate(in Input) Result {
	progress := progressToTP(in)
	if progress.IsNegative() {
		return Result{Stage: StageNone}
	}

	stage, distance := stageFor(progress, trailPips(in))
	if stage == StageNone {
		return Result{Stage: StageNone}
	}

	var candidateSL decimal.Decimal
	if stage == StageBreakeven {
		offset := in.Spread.Add(smallBuffer(in))
		candidateSL = breakevenSL(in, offset)
	} else {
		candidateSL = trailSL(in, distance)
	}

	if !improvesOnCurrent(in, candidateSL) {
		return Result{Stage: stage, NewSL: in.CurrentSL}
	}
	if crossesEntryAgainstTrade(in, candidateSL) {
		return Result{Stage: stage, NewSL: in.CurrentSL}
	}
	if !clearsMinDelta(in, candidateSL) {
		return Result{Stage: stage, NewSL: in.CurrentSL}
	}

	return Result{Stage: stage, NewSL: candidateSL, ShouldMove: true}
}

// progressToTP is |current-entry| / |tp-entry|, clamped to [0,1]. A
// negative progress (price moved against the trade) disables trailing.
func progressToTP(in Input) decimal.Decimal {
	tpDistance := in.TP.Sub(in.Entry).Abs()
	if tpDistance.IsZero() {
		return decimal.NewFromInt(-1)
	}
	var moved decimal.Decimal
	if in.Direction == DirBuy {
		moved = in.CurrentPrice.Sub(in.Entry)
	} else {
		moved = in.Entry.Sub(in.CurrentPrice)
	}
	if moved.IsNegative() {
		return decimal.NewFromInt(-1)
	}
	p := moved.Div(tpDistance)
	if p.GreaterThan(decimal.NewFromInt(1)) {
		p = decimal.NewFromInt(1)
	}
	return p
}

func stageFor(progress, trail decimal.Decimal) (Stage, decimal.Decimal) {
	switch {
	case progress.GreaterThanOrEqual(stageNearTP):
		return StageNearTP, trail.Mul(decimal.NewFromFloat(0.4))
	case progress.GreaterThanOrEqual(stageAggressive):
		return StageAggressive, trail.Mul(decimal.NewFromFloat(0.6))
	case progress.GreaterThanOrEqual(stagePartial):
		return StagePartial, trail.Mul(decimal.NewFromFloat(1.0))
	case progress.GreaterThanOrEqual(stageBreakeven):
		return StageBreakeven, decimal.Zero
	default:
		return StageNone, decimal.Zero
	}
}

// trailPips derives the trailing distance from lot volume and balance —
// larger trades trail wider — clamped to [min_trail, 100].
func trailPips(in Input) decimal.Decimal {
	base := decimal.NewFromInt(20)
	if in.Balance.IsPositive() {
		scale := in.Lot.Mul(decimal.NewFromInt(1000)).Div(in.Balance)
		base = base.Add(scale.Mul(decimal.NewFromInt(10)))
	}
	minTrail := in.MinTrail
	if minTrail.IsZero() {
		minTrail = decimal.NewFromInt(5)
	}
	if base.LessThan(minTrail) {
		base = minTrail
	}
	if base.GreaterThan(decimal.NewFromInt(100)) {
		base = decimal.NewFromInt(100)
	}
	return base
}

func smallBuffer(in Input) decimal.Decimal {
	return in.Spread.Mul(decimal.NewFromFloat(0.2))
}

func breakevenSL(in Input, offset decimal.Decimal) decimal.Decimal {
	if in.Direction == DirBuy {
		return in.Entry.Add(offset)
	}
	return in.Entry.Sub(offset)
}

// trailSL converts a pips-scale distance to price terms via the symbol's
// point size before offsetting from the current price.
func trailSL(in Input, distancePips decimal.Decimal) decimal.Decimal {
	distance := distancePips.Mul(pointSize(in))
	if in.Direction == DirBuy {
		return in.CurrentPrice.Sub(distance)
	}
	return in.CurrentPrice.Add(distance)
}

// pointSize falls back to the 4-digit EURUSD convention (1 pip = 0.0001)
// when the caller has no broker symbol spec to hand.
func pointSize(in Input) decimal.Decimal {
	if in.Point.IsPositive() {
		return in.Point
	}
	return decimal.NewFromFloat(0.0001)
}

// improvesOnCurrent enforces "SL never moves against the trade direction".
func improvesOnCurrent(in Input, candidate decimal.Decimal) bool {
	if in.CurrentSL.IsZero() {
		return true
	}
	if in.Direction == DirBuy {
		return candidate.GreaterThan(in.CurrentSL)
	}
	return candidate.LessThan(in.CurrentSL)
}

// crossesEntryAgainstTrade enforces "SL never crosses entry in the losing
// direction" — once at breakeven or better, SL must stay at or past entry.
func crossesEntryAgainstTrade(in Input, candidate decimal.Decimal) bool {
	if in.Direction == DirBuy {
		return candidate.LessThan(in.Entry) && in.CurrentSL.GreaterThanOrEqual(in.Entry)
	}
	return candidate.GreaterThan(in.Entry) && in.CurrentSL.LessThanOrEqual(in.Entry)
}

// clearsMinDelta requires the move to exceed max(30% of current profit in
// price terms, 3 pips) to avoid chatter.
func clearsMinDelta(in Input, candidate decimal.Decimal) bool {
	delta := candidate.Sub(in.CurrentSL).Abs()
	profit := in.CurrentPrice.Sub(in.Entry).Abs()
	minDelta := profit.Mul(decimal.NewFromFloat(0.3))
	threePips := decimal.NewFromInt(3).Mul(pointSize(in))
	if threePips.GreaterThan(minDelta) {
		minDelta = threePips
	}
	return delta.GreaterThanOrEqual(minDelta)
}
