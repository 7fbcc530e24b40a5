package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mt5bridge/engine/internal/store"
)

func candle(open, high, low, close string) store.OHLCCandle {
	return store.OHLCCandle{Open: dec(open), High: dec(high), Low: dec(low), Close: dec(close)}
}

func TestDetectPatternsTooFewCandlesReturnsNil(t *testing.T) {
	assert.Nil(t, DetectPatterns([]store.OHLCCandle{candle("1", "1", "1", "1")}))
}

func TestDetectPatternsBullishEngulfing(t *testing.T) {
	candles := []store.OHLCCandle{
		candle("1.1050", "1.1055", "1.1020", "1.1025"), // bearish prev
		candle("1.1020", "1.1070", "1.1015", "1.1065"), // bullish engulfs it
	}
	assert.Contains(t, DetectPatterns(candles), PatternBullishEngulfing)
}

func TestDetectPatternsBearishEngulfing(t *testing.T) {
	candles := []store.OHLCCandle{
		candle("1.1020", "1.1055", "1.1015", "1.1050"), // bullish prev
		candle("1.1060", "1.1065", "1.1010", "1.1015"), // bearish engulfs it
	}
	assert.Contains(t, DetectPatterns(candles), PatternBearishEngulfing)
}

func TestDetectPatternsHammer(t *testing.T) {
	candles := []store.OHLCCandle{
		candle("1.1000", "1.1010", "1.0990", "1.1005"),
		// small body near the top, long lower wick, tiny upper wick
		candle("1.1000", "1.1003", "1.0950", "1.1002"),
	}
	assert.Contains(t, DetectPatterns(candles), PatternHammer)
}

func TestDetectPatternsShootingStar(t *testing.T) {
	candles := []store.OHLCCandle{
		candle("1.1000", "1.1010", "1.0990", "1.1005"),
		// small body near the bottom, long upper wick, negligible lower wick
		candle("1.1000", "1.1050", "1.09995", "1.1001"),
	}
	assert.Contains(t, DetectPatterns(candles), PatternShootingStar)
}

func TestDetectPatternsDoji(t *testing.T) {
	candles := []store.OHLCCandle{
		candle("1.1000", "1.1010", "1.0990", "1.1005"),
		// small body, long wicks on both sides roughly balanced
		candle("1.1000", "1.1040", "1.0960", "1.1001"),
	}
	assert.Contains(t, DetectPatterns(candles), PatternDoji)
}

func TestDetectPatternsMarubozu(t *testing.T) {
	candles := []store.OHLCCandle{
		candle("1.1000", "1.1010", "1.0990", "1.1005"),
		candle("1.1000", "1.1060", "1.0998", "1.1058"), // body fills nearly the whole range
	}
	assert.Contains(t, DetectPatterns(candles), PatternBullishMarubozu)
}

func TestPatternScoreBaselineWithNoPatterns(t *testing.T) {
	assert.True(t, PatternScore(nil, true).Equal(dec("10")))
}

func TestPatternScoreRewardsConfirmingPattern(t *testing.T) {
	score := PatternScore([]Pattern{PatternBullishEngulfing}, true)
	assert.True(t, score.Equal(dec("20")))
}

func TestPatternScoreIgnoresNonConfirmingPattern(t *testing.T) {
	score := PatternScore([]Pattern{PatternBullishEngulfing}, false)
	assert.True(t, score.Equal(dec("10")))
}

func TestPatternScoreClampsToThirty(t *testing.T) {
	score := PatternScore([]Pattern{PatternBullishEngulfing, PatternHammer, PatternBullishMarubozu}, true)
	assert.True(t, score.Equal(dec("30")))
}

func TestPatternScorePenalizesDoji(t *testing.T) {
	score := PatternScore([]Pattern{PatternDoji}, true)
	assert.True(t, score.Equal(dec("8")))
}

func TestNamesRendersPatternsAsStrings(t *testing.T) {
	names := Names([]Pattern{PatternHammer, PatternDoji})
	assert.Equal(t, []string{"HAMMER", "DOJI"}, names)
}
