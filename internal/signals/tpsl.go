package signals

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/indicators"
)

// AssetClass groups symbols for the Smart TP/SL default multipliers.
type AssetClass string

const (
	ClassForexMajor AssetClass = "FOREX_MAJOR"
	ClassMetals     AssetClass = "METALS"
	ClassIndices    AssetClass = "INDICES"
	ClassCrypto     AssetClass = "CRYPTO"
)

// classDefaults holds the TP/SL ATR multipliers per asset class.
type classDefaults struct{ tpMult, slMult decimal.Decimal }

var defaultsByClass = map[AssetClass]classDefaults{
	ClassForexMajor: {tpMult: decimal.NewFromFloat(2.5), slMult: decimal.NewFromFloat(1.0)},
	ClassMetals:     {tpMult: decimal.NewFromFloat(0.8), slMult: decimal.NewFromFloat(0.5)},
	ClassIndices:    {tpMult: decimal.NewFromFloat(4.5), slMult: decimal.NewFromFloat(3.0)},
	ClassCrypto:     {tpMult: decimal.NewFromFloat(1.8), slMult: decimal.NewFromFloat(1.0)},
}

// BrokerLimits carries the per-symbol broker constraints the final
// clamp step enforces.
type BrokerLimits struct {
	StopsLevelPoints decimal.Decimal // minimum distance from market, in points
	FreezeLevel      decimal.Decimal
	Point            decimal.Decimal // point size, e.g. 0.0001 for EURUSD
	MaxTPPct         decimal.Decimal
	MinSLPct         decimal.Decimal
}

// TPSLInput carries everything the Smart TP/SL calculator needs.
type TPSLInput struct {
	Entry     decimal.Decimal
	Direction Direction
	Class     AssetClass
	ATR       decimal.Decimal
	Bollinger indicators.BollingerResult
	SwingHighs []decimal.Decimal // last 5 swing highs
	SwingLows  []decimal.Decimal // last 5 swing lows
	SuperTrend indicators.SuperTrendResult
	Limits     BrokerLimits
}

// TPSLResult is the selected TP/SL pair plus the realized R:R.
type TPSLResult struct {
	TP, SL   decimal.Decimal
	RiskReward decimal.Decimal
}

var errCannotWidenRR = fmt.Errorf("signals: cannot satisfy minimum risk:reward within broker limits")

// CalculateTPSL implements the Smart TP/SL algorithm: class defaults →
// candidate collection → selection → asymmetric BUY adjustment → R:R
// validation → broker clamps.
func CalculateTPSL(in TPSLInput) (TPSLResult, error) {
	def, ok := defaultsByClass[in.Class]
	if !ok {
		def = defaultsByClass[ClassForexMajor]
	}
	tpMult, slMult := def.tpMult, def.slMult
	if in.Direction == DirBuy {
		tpMult = tpMult.Mul(decimal.NewFromFloat(1.2))
		slMult = slMult.Mul(decimal.NewFromFloat(0.9))
	}

	tpCandidates := tpCandidateSet(in, tpMult)
	slCandidates := slCandidateSet(in, slMult)

	minTPDistance := in.ATR.Mul(decimal.NewFromFloat(1.5))
	minSLDistance := in.ATR.Mul(decimal.NewFromFloat(1.0))

	tp := selectTP(in.Entry, in.Direction, tpCandidates, minTPDistance)
	sl := selectSL(in.Entry, in.Direction, slCandidates, minSLDistance)

	tp, sl, rr, ok := satisfyRiskReward(in.Entry, in.Direction, tp, sl, in.ATR)
	if !ok {
		return TPSLResult{}, errCannotWidenRR
	}

	tp, sl = applyBrokerClamps(in.Entry, in.Direction, tp, sl, in.Limits)
	return TPSLResult{TP: tp, SL: sl, RiskReward: rr}, nil
}

func tpCandidateSet(in TPSLInput, tpMult decimal.Decimal) []decimal.Decimal {
	atrTP := atrTarget(in.Entry, in.Direction, in.ATR.Mul(tpMult), true)
	candidates := []decimal.Decimal{atrTP}
	if in.Direction == DirBuy {
		candidates = append(candidates, in.Bollinger.Upper)
	} else {
		candidates = append(candidates, in.Bollinger.Lower)
	}
	candidates = append(candidates, swingCandidates(in.Direction, in.SwingHighs, in.SwingLows, true)...)
	candidates = append(candidates, roundNumberCandidate(in.Entry, in.Direction, true))
	candidates = append(candidates, in.SuperTrend.Level)
	return candidates
}

func slCandidateSet(in TPSLInput, slMult decimal.Decimal) []decimal.Decimal {
	atrSL := atrTarget(in.Entry, in.Direction, in.ATR.Mul(slMult), false)
	candidates := []decimal.Decimal{atrSL}
	bbBuffer := in.Entry.Mul(decimal.NewFromFloat(0.002))
	if in.Direction == DirBuy {
		candidates = append(candidates, in.Bollinger.Lower.Sub(bbBuffer))
	} else {
		candidates = append(candidates, in.Bollinger.Upper.Add(bbBuffer))
	}
	candidates = append(candidates, in.SuperTrend.Level)
	return candidates
}

func atrTarget(entry decimal.Decimal, dir Direction, atrDistance decimal.Decimal, forTP bool) decimal.Decimal {
	toward := (dir == DirBuy) == forTP
	if toward {
		return entry.Add(atrDistance)
	}
	return entry.Sub(atrDistance)
}

func swingCandidates(dir Direction, highs, lows []decimal.Decimal, forTP bool) []decimal.Decimal {
	if (dir == DirBuy) == forTP {
		return highs
	}
	return lows
}

func roundNumberCandidate(entry decimal.Decimal, dir Direction, forTP bool) decimal.Decimal {
	// nearest psychological round number (whole units) in the target direction
	if (dir == DirBuy) == forTP {
		return entry.Floor().Add(decimal.NewFromInt(1))
	}
	return entry.Ceil().Sub(decimal.NewFromInt(1))
}

// selectTP picks the nearest valid candidate at ≥ minDistance in the
// trade direction (step 4).
func selectTP(entry decimal.Decimal, dir Direction, candidates []decimal.Decimal, minDistance decimal.Decimal) decimal.Decimal {
	var best decimal.Decimal
	found := false
	for _, c := range candidates {
		dist := distanceInDirection(entry, dir, c, true)
		if dist.LessThan(minDistance) {
			continue
		}
		if !found || dist.LessThan(distanceInDirection(entry, dir, best, true)) {
			best, found = c, true
		}
	}
	if !found {
		return atrTarget(entry, dir, minDistance, true)
	}
	return best
}

// selectSL picks the tightest valid candidate at ≥ minDistance against the
// trade (step 5).
func selectSL(entry decimal.Decimal, dir Direction, candidates []decimal.Decimal, minDistance decimal.Decimal) decimal.Decimal {
	var best decimal.Decimal
	found := false
	for _, c := range candidates {
		dist := distanceInDirection(entry, dir, c, false)
		if dist.LessThan(minDistance) {
			continue
		}
		if !found || dist.LessThan(distanceInDirection(entry, dir, best, false)) {
			best, found = c, true
		}
	}
	if !found {
		return atrTarget(entry, dir, minDistance, false)
	}
	return best
}

// distanceInDirection returns |candidate-entry| signed appropriately: for
// TP it only counts distance that is in-profit; for SL only distance
// against the trade.
func distanceInDirection(entry decimal.Decimal, dir Direction, candidate decimal.Decimal, forTP bool) decimal.Decimal {
	diff := candidate.Sub(entry)
	profitable := (dir == DirBuy && diff.IsPositive()) || (dir == DirSell && diff.IsNegative())
	if forTP && !profitable {
		return decimal.NewFromInt(-1) // invalid: behind entry
	}
	if !forTP && profitable {
		return decimal.NewFromInt(-1) // invalid: SL on the wrong side
	}
	return diff.Abs()
}

// satisfyRiskReward applies the minimum R:R requirement: BUY ≥ 1:2, SELL
// ≥ 1:1.5, widening TP (first) or tightening SL within ATR-based bounds.
func satisfyRiskReward(entry decimal.Decimal, dir Direction, tp, sl, atr decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal, bool) {
	minRR := decimal.NewFromFloat(1.5)
	if dir == DirBuy {
		minRR = decimal.NewFromInt(2)
	}
	risk := entry.Sub(sl).Abs()
	reward := tp.Sub(entry).Abs()
	if risk.IsZero() {
		return tp, sl, decimal.Zero, false
	}
	rr := reward.Div(risk)
	if rr.GreaterThanOrEqual(minRR) {
		return tp, sl, rr, true
	}

	// try widening TP up to 5x ATR
	maxReward := atr.Mul(decimal.NewFromInt(5))
	neededReward := risk.Mul(minRR)
	if neededReward.LessThanOrEqual(maxReward) {
		newTP := atrTarget(entry, dir, neededReward, true)
		return newTP, sl, minRR, true
	}

	// try tightening SL, floor at 0.3x ATR
	minRisk := atr.Mul(decimal.NewFromFloat(0.3))
	neededRisk := reward.Div(minRR)
	if neededRisk.GreaterThanOrEqual(minRisk) {
		newSL := atrTarget(entry, dir, neededRisk, false)
		return tp, newSL, minRR, true
	}

	return tp, sl, rr, false
}

// applyBrokerClamps enforces the stops_level minimum distance and the
// max_tp_pct/min_sl_pct caps (step 8). FreezeLevel is not applied.
func applyBrokerClamps(entry decimal.Decimal, dir Direction, tp, sl decimal.Decimal, limits BrokerLimits) (decimal.Decimal, decimal.Decimal) {
	if !limits.Point.IsZero() && !limits.StopsLevelPoints.IsZero() {
		minDist := limits.StopsLevelPoints.Mul(limits.Point)
		tpDist := tp.Sub(entry).Abs()
		if tpDist.LessThan(minDist) {
			tp = atrTarget(entry, dir, minDist, true)
		}
		slDist := sl.Sub(entry).Abs()
		if slDist.LessThan(minDist) {
			sl = atrTarget(entry, dir, minDist, false)
		}
	}
	if !limits.MaxTPPct.IsZero() {
		maxDist := entry.Mul(limits.MaxTPPct)
		if tp.Sub(entry).Abs().GreaterThan(maxDist) {
			tp = atrTarget(entry, dir, maxDist, true)
		}
	}
	if !limits.MinSLPct.IsZero() {
		minDist := entry.Mul(limits.MinSLPct)
		if sl.Sub(entry).Abs().LessThan(minDist) {
			sl = atrTarget(entry, dir, minDist, false)
		}
	}
	return tp, sl
}

// ClassForSymbol buckets a broker symbol into an asset class for the
// Smart TP/SL defaults, following the same symbol taxonomy as the
// sizing package's per-symbol risk factor table.
func ClassForSymbol(symbol string) AssetClass {
	switch symbol {
	case "XAUUSD", "XAGUSD":
		return ClassMetals
	case "BTCUSD", "ETHUSD":
		return ClassCrypto
	case "US30.c", "US500.c", "NAS100.c", "DE40.c", "UK100.c":
		return ClassIndices
	default:
		return ClassForexMajor
	}
}
