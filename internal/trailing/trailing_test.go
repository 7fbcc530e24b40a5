package trailing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestEvaluateNoneBelowBreakevenThreshold(t *testing.T) {
	res := Evaluate(Input{
		Direction: DirBuy, Entry: dec("1.1000"), TP: dec("1.1100"),
		CurrentPrice: dec("1.1010"), CurrentSL: decimal.Zero,
	})
	assert.Equal(t, StageNone, res.Stage)
}

func TestEvaluateBreakevenMovesSLToProfitSide(t *testing.T) {
	res := Evaluate(Input{
		Direction: DirBuy, Entry: dec("1.1000"), TP: dec("1.1100"),
		CurrentPrice: dec("1.1035"), CurrentSL: dec("1.0950"), Spread: dec("0.0002"),
	})
	assert.Equal(t, StageBreakeven, res.Stage)
	assert.True(t, res.ShouldMove)
	assert.True(t, res.NewSL.GreaterThan(dec("1.1000")))
}

func TestEvaluateNeverMovesSLAgainstTrade(t *testing.T) {
	res := Evaluate(Input{
		Direction: DirBuy, Entry: dec("1.1000"), TP: dec("1.1100"),
		CurrentPrice: dec("1.1010"), CurrentSL: dec("1.1005"),
	})
	// progress is below breakeven threshold, so no move regardless
	assert.False(t, res.ShouldMove)
}

func TestEvaluateNegativeProgressDisablesTrailing(t *testing.T) {
	res := Evaluate(Input{
		Direction: DirBuy, Entry: dec("1.1000"), TP: dec("1.1100"),
		CurrentPrice: dec("1.0990"), CurrentSL: dec("1.0950"),
	})
	assert.Equal(t, StageNone, res.Stage)
}

func TestEvaluateSellDirectionBreakeven(t *testing.T) {
	res := Evaluate(Input{
		Direction: DirSell, Entry: dec("1.1000"), TP: dec("1.0900"),
		CurrentPrice: dec("1.0965"), CurrentSL: dec("1.1050"), Spread: dec("0.0002"),
	})
	assert.Equal(t, StageBreakeven, res.Stage)
	assert.True(t, res.NewSL.LessThan(dec("1.1000")))
}

// The stages beyond breakeven convert a pips-scale trailing distance into
// price terms via the symbol's point size; these pin that the resulting SL
// lands a plausible handful of pips from the current price, not an
// unconverted "20 pips" subtracted straight off price (which would send the
// candidate SL far below zero and make every move fail improvesOnCurrent).

func TestEvaluatePartialStageMovesSLInPriceTerms(t *testing.T) {
	res := Evaluate(Input{
		Direction: DirBuy, Entry: dec("1.1000"), TP: dec("1.1100"),
		CurrentPrice: dec("1.10550"), CurrentSL: dec("1.1010"),
		Point: dec("0.0001"),
	})
	assert.Equal(t, StagePartial, res.Stage)
	assert.True(t, res.ShouldMove)
	assert.True(t, res.NewSL.GreaterThan(dec("1.1000")))
	assert.True(t, res.NewSL.LessThan(dec("1.10550")))
}

func TestEvaluateAggressiveStageMovesSLInPriceTerms(t *testing.T) {
	res := Evaluate(Input{
		Direction: DirBuy, Entry: dec("1.1000"), TP: dec("1.1100"),
		CurrentPrice: dec("1.1075"), CurrentSL: dec("1.1035"),
		Point: dec("0.0001"),
	})
	assert.Equal(t, StageAggressive, res.Stage)
	assert.True(t, res.ShouldMove)
	assert.True(t, res.NewSL.GreaterThan(dec("1.1035")))
	assert.True(t, res.NewSL.LessThan(dec("1.1075")))
}

func TestEvaluateNearTPStageMovesSLInPriceTerms(t *testing.T) {
	res := Evaluate(Input{
		Direction: DirBuy, Entry: dec("1.1000"), TP: dec("1.1100"),
		CurrentPrice: dec("1.1092"), CurrentSL: dec("1.1000"),
		Point: dec("0.0001"),
	})
	assert.Equal(t, StageNearTP, res.Stage)
	assert.True(t, res.ShouldMove)
	assert.True(t, res.NewSL.GreaterThan(dec("1.1000")))
	assert.True(t, res.NewSL.LessThan(dec("1.1092")))
}

func TestEvaluateSellAggressiveStageMovesSLInPriceTerms(t *testing.T) {
	res := Evaluate(Input{
		Direction: DirSell, Entry: dec("1.1000"), TP: dec("1.0900"),
		CurrentPrice: dec("1.0925"), CurrentSL: dec("1.0965"),
		Point: dec("0.0001"),
	})
	assert.Equal(t, StageAggressive, res.Stage)
	assert.True(t, res.ShouldMove)
	assert.True(t, res.NewSL.LessThan(dec("1.0965")))
	assert.True(t, res.NewSL.GreaterThan(dec("1.0925")))
}

func TestEvaluateDefaultsPointSizeWhenUnset(t *testing.T) {
	// No Point set: falls back to the 4-digit EURUSD convention rather
	// than treating the pips distance as already price-scale.
	res := Evaluate(Input{
		Direction: DirBuy, Entry: dec("1.1000"), TP: dec("1.1100"),
		CurrentPrice: dec("1.1075"), CurrentSL: dec("1.1035"),
	})
	assert.Equal(t, StageAggressive, res.Stage)
	assert.True(t, res.ShouldMove)
	assert.True(t, res.NewSL.IsPositive())
}
