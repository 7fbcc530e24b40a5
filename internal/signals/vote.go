// Package signals generates TradingSignal candidates from indicator
// votes: a builder pattern with Validate()/RiskReward() helpers,
// extended with asymmetric BUY/SELL consensus and a confidence formula.
package signals

import (
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/indicators"
	"github.com/mt5bridge/engine/internal/store"
)

// Direction is the three-way BUY/SELL/NEUTRAL vote shape every indicator
// reports.
type Direction string

const (
	DirBuy     Direction = "BUY"
	DirSell    Direction = "SELL"
	DirNeutral Direction = "NEUTRAL"
)

// Vote is one indicator's opinion: direction, strength in [0,1], and a
// human-readable reason.
type Vote struct {
	Indicator string
	Direction Direction
	Strength  decimal.Decimal
	Reason    string
}

const buyAdvantageDefault = 2

// Votes computes the full indicator vote map for a candle window at the
// given regime.
func Votes(candles []store.OHLCCandle, regime indicators.Regime) map[string]Vote {
	closes := indicators.Closes(candles)
	votes := make(map[string]Vote)

	rsiPeriod := 14
	rsiLowerBand, rsiUpperBand := decimal.NewFromInt(30), decimal.NewFromInt(70)
	if regime == indicators.RegimeTrending {
		rsiLowerBand, rsiUpperBand = decimal.NewFromInt(40), decimal.NewFromInt(60)
	}
	rsi := indicators.RSI(closes, rsiPeriod)
	votes["RSI"] = rsiVote(rsi, rsiLowerBand, rsiUpperBand)

	macd := indicators.MACDCalc(closes, 12, 26, 9)
	votes["MACD"] = macdVote(macd)

	bb := indicators.Bollinger(closes, 20, decimal.NewFromInt(2))
	votes["BOLLINGER"] = bollingerVote(closes, bb)

	stoch := indicators.Stochastic(candles, 14)
	votes["STOCHASTIC"] = stochasticVote(stoch)

	emaFast := indicators.EMASeries(closes, 9)
	emaSlow := indicators.EMASeries(closes, 21)
	votes["EMA_CROSS"] = emaCrossVote(emaFast, emaSlow)

	st := indicators.SuperTrend(candles, 10, decimal.NewFromFloat(3.0))
	votes["SUPERTREND"] = superTrendVote(st)

	votes["OBV"] = obvVote(candles)

	return votes
}

func rsiVote(rsi, lower, upper decimal.Decimal) Vote {
	switch {
	case rsi.LessThan(lower):
		return Vote{Indicator: "RSI", Direction: DirBuy, Strength: strengthFromDistance(lower.Sub(rsi), lower), Reason: "oversold"}
	case rsi.GreaterThan(upper):
		return Vote{Indicator: "RSI", Direction: DirSell, Strength: strengthFromDistance(rsi.Sub(upper), upper), Reason: "overbought"}
	default:
		return Vote{Indicator: "RSI", Direction: DirNeutral, Reason: "mid-band"}
	}
}

func macdVote(m indicators.MACDResult) Vote {
	if m.Histogram.IsPositive() {
		return Vote{Indicator: "MACD", Direction: DirBuy, Strength: clampStrength(m.Histogram.Abs()), Reason: "histogram positive"}
	}
	if m.Histogram.IsNegative() {
		return Vote{Indicator: "MACD", Direction: DirSell, Strength: clampStrength(m.Histogram.Abs()), Reason: "histogram negative"}
	}
	return Vote{Indicator: "MACD", Direction: DirNeutral}
}

func bollingerVote(closes []decimal.Decimal, bb indicators.BollingerResult) Vote {
	if len(closes) == 0 {
		return Vote{Indicator: "BOLLINGER", Direction: DirNeutral}
	}
	last := closes[len(closes)-1]
	switch {
	case last.LessThan(bb.Lower):
		return Vote{Indicator: "BOLLINGER", Direction: DirBuy, Strength: decimal.NewFromFloat(0.6), Reason: "below lower band"}
	case last.GreaterThan(bb.Upper):
		return Vote{Indicator: "BOLLINGER", Direction: DirSell, Strength: decimal.NewFromFloat(0.6), Reason: "above upper band"}
	default:
		return Vote{Indicator: "BOLLINGER", Direction: DirNeutral}
	}
}

func stochasticVote(k decimal.Decimal) Vote {
	switch {
	case k.LessThan(decimal.NewFromInt(20)):
		return Vote{Indicator: "STOCHASTIC", Direction: DirBuy, Strength: decimal.NewFromFloat(0.5), Reason: "oversold"}
	case k.GreaterThan(decimal.NewFromInt(80)):
		return Vote{Indicator: "STOCHASTIC", Direction: DirSell, Strength: decimal.NewFromFloat(0.5), Reason: "overbought"}
	default:
		return Vote{Indicator: "STOCHASTIC", Direction: DirNeutral}
	}
}

func emaCrossVote(fast, slow []decimal.Decimal) Vote {
	if indicators.CrossedUp(fast, slow) {
		return Vote{Indicator: "EMA_CROSS", Direction: DirBuy, Strength: decimal.NewFromFloat(0.7), Reason: "fast EMA crossed above slow"}
	}
	if indicators.CrossedDown(fast, slow) {
		return Vote{Indicator: "EMA_CROSS", Direction: DirSell, Strength: decimal.NewFromFloat(0.7), Reason: "fast EMA crossed below slow"}
	}
	return Vote{Indicator: "EMA_CROSS", Direction: DirNeutral}
}

func superTrendVote(st indicators.SuperTrendResult) Vote {
	if st.Uptrend {
		return Vote{Indicator: "SUPERTREND", Direction: DirBuy, Strength: decimal.NewFromFloat(0.6), Reason: "trend up"}
	}
	return Vote{Indicator: "SUPERTREND", Direction: DirSell, Strength: decimal.NewFromFloat(0.6), Reason: "trend down"}
}

func obvVote(candles []store.OHLCCandle) Vote {
	obv := indicators.OBV(candles)
	if obv.IsPositive() {
		return Vote{Indicator: "OBV", Direction: DirBuy, Strength: decimal.NewFromFloat(0.4), Reason: "volume accumulation"}
	}
	if obv.IsNegative() {
		return Vote{Indicator: "OBV", Direction: DirSell, Strength: decimal.NewFromFloat(0.4), Reason: "volume distribution"}
	}
	return Vote{Indicator: "OBV", Direction: DirNeutral}
}

func strengthFromDistance(distance, scale decimal.Decimal) decimal.Decimal {
	if scale.IsZero() {
		return decimal.NewFromFloat(0.5)
	}
	return clampStrength(distance.Div(scale))
}

func clampStrength(s decimal.Decimal) decimal.Decimal {
	if s.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	if s.IsNegative() {
		return decimal.Zero
	}
	return s
}

// Consensus counts BUY/SELL votes and applies the asymmetric rule: BUY
// requires buy_count ≥ sell_count + buyAdvantage; SELL only needs a simple
// majority.
func Consensus(votes map[string]Vote, buyAdvantage int) (direction Direction, buyCount, sellCount int) {
	for _, v := range votes {
		switch v.Direction {
		case DirBuy:
			buyCount++
		case DirSell:
			sellCount++
		}
	}
	if buyAdvantage <= 0 {
		buyAdvantage = buyAdvantageDefault
	}
	switch {
	case buyCount >= sellCount+buyAdvantage:
		return DirBuy, buyCount, sellCount
	case sellCount > buyCount:
		return DirSell, buyCount, sellCount
	default:
		return DirNeutral, buyCount, sellCount
	}
}
