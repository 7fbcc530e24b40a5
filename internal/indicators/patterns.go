package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/store"
)

// ═══════════════════════════════════════════════════════════════════════════
// CANDLESTICK PATTERNS
// ═══════════════════════════════════════════════════════════════════════════

// Pattern names a recognized candlestick formation.
type Pattern string

const (
	PatternBullishEngulfing Pattern = "BULLISH_ENGULFING"
	PatternBearishEngulfing Pattern = "BEARISH_ENGULFING"
	PatternHammer           Pattern = "HAMMER"
	PatternShootingStar     Pattern = "SHOOTING_STAR"
	PatternDoji             Pattern = "DOJI"
	PatternBullishMarubozu  Pattern = "BULLISH_MARUBOZU"
	PatternBearishMarubozu  Pattern = "BEARISH_MARUBOZU"
)

var (
	dojiBodyRatio     = decimal.NewFromFloat(0.1)
	reversalBodyRatio = decimal.NewFromFloat(0.35)
	marubozuBodyRatio = decimal.NewFromFloat(0.9)
)

// DetectPatterns identifies every candlestick pattern matching the most
// recent bar (plus its predecessor, for the two-candle engulfing
// patterns). Returns nil when fewer than two candles are available.
func DetectPatterns(candles []store.OHLCCandle) []Pattern {
	if len(candles) < 2 {
		return nil
	}
	cur := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	var found []Pattern
	if p, ok := engulfing(cur, prev); ok {
		found = append(found, p)
	}

	fullRange := cur.High.Sub(cur.Low)
	if fullRange.IsZero() {
		return found
	}
	body := cur.Close.Sub(cur.Open).Abs()
	bodyRatio := body.Div(fullRange)
	upperWick := cur.High.Sub(maxDec(cur.Open, cur.Close))
	lowerWick := minDec(cur.Open, cur.Close).Sub(cur.Low)

	// Order matters: a small body with asymmetric wicks is a hammer/star,
	// not a doji — doji requires the small body AND roughly balanced
	// wicks, so it's only checked once the asymmetric shapes are ruled out.
	switch {
	case bodyRatio.GreaterThan(marubozuBodyRatio):
		if cur.Close.GreaterThan(cur.Open) {
			found = append(found, PatternBullishMarubozu)
		} else {
			found = append(found, PatternBearishMarubozu)
		}
	case lowerWick.GreaterThan(body.Mul(two)) && upperWick.LessThan(body) && bodyRatio.LessThan(reversalBodyRatio):
		found = append(found, PatternHammer)
	case upperWick.GreaterThan(body.Mul(two)) && lowerWick.LessThan(body) && bodyRatio.LessThan(reversalBodyRatio):
		found = append(found, PatternShootingStar)
	case bodyRatio.LessThan(dojiBodyRatio):
		found = append(found, PatternDoji)
	}
	return found
}

func engulfing(cur, prev store.OHLCCandle) (Pattern, bool) {
	curBullish := cur.Close.GreaterThan(cur.Open)
	prevBullish := prev.Close.GreaterThan(prev.Open)
	if curBullish && !prevBullish &&
		cur.Open.LessThanOrEqual(prev.Close) && cur.Close.GreaterThanOrEqual(prev.Open) {
		return PatternBullishEngulfing, true
	}
	if !curBullish && prevBullish &&
		cur.Open.GreaterThanOrEqual(prev.Close) && cur.Close.LessThanOrEqual(prev.Open) {
		return PatternBearishEngulfing, true
	}
	return "", false
}

var (
	bullishConfirming = map[Pattern]bool{
		PatternBullishEngulfing: true,
		PatternHammer:           true,
		PatternBullishMarubozu:  true,
	}
	bearishConfirming = map[Pattern]bool{
		PatternBearishEngulfing: true,
		PatternShootingStar:     true,
		PatternBearishMarubozu:  true,
	}
)

// PatternScore scores detected patterns for reliability against a trade
// direction, on the same 0-30 scale the confidence formula's other
// components use: a neutral baseline, +10 per directionally-confirming
// pattern, -2 for an indecision candle (Doji) that blurs the read.
func PatternScore(patterns []Pattern, isBuy bool) decimal.Decimal {
	score := decimal.NewFromInt(10)
	for _, p := range patterns {
		switch {
		case isBuy && bullishConfirming[p]:
			score = score.Add(decimal.NewFromInt(10))
		case !isBuy && bearishConfirming[p]:
			score = score.Add(decimal.NewFromInt(10))
		case p == PatternDoji:
			score = score.Sub(decimal.NewFromInt(2))
		}
	}
	if score.IsNegative() {
		return decimal.Zero
	}
	if score.GreaterThan(decimal.NewFromInt(30)) {
		return decimal.NewFromInt(30)
	}
	return score
}

// Names renders a pattern slice as plain strings for persistence.
func Names(patterns []Pattern) []string {
	names := make([]string, len(patterns))
	for i, p := range patterns {
		names[i] = string(p)
	}
	return names
}
