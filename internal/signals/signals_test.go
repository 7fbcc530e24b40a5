package signals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mt5bridge/engine/internal/indicators"
	"github.com/mt5bridge/engine/internal/store"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestConsensusRequiresBuyAdvantage(t *testing.T) {
	votes := map[string]Vote{
		"a": {Direction: DirBuy},
		"b": {Direction: DirBuy},
		"c": {Direction: DirSell},
	}
	dir, buy, sell := Consensus(votes, 2)
	assert.Equal(t, DirNeutral, dir, "2 buy vs 1 sell needs advantage of 2, falls short")
	assert.Equal(t, 2, buy)
	assert.Equal(t, 1, sell)
}

func TestConsensusSellNeedsOnlyMajority(t *testing.T) {
	votes := map[string]Vote{
		"a": {Direction: DirSell},
		"b": {Direction: DirBuy},
		"c": {Direction: DirSell},
	}
	dir, _, _ := Consensus(votes, 2)
	assert.Equal(t, DirSell, dir)
}

func TestValidateRejectsBadBuySLTP(t *testing.T) {
	sig := &store.TradingSignal{
		SignalType: store.SignalBuy,
		Symbol:     "EURUSD",
		EntryPrice: dec("1.10"),
		SL:         dec("1.11"), // wrong side for BUY
		TP:         dec("1.12"),
	}
	assert.False(t, Validate(sig))
}

func TestValidateAcceptsGoodBuy(t *testing.T) {
	sig := &store.TradingSignal{
		SignalType: store.SignalBuy,
		Symbol:     "EURUSD",
		EntryPrice: dec("1.10"),
		SL:         dec("1.09"),
		TP:         dec("1.12"),
	}
	assert.True(t, Validate(sig))
}

func TestRiskRewardComputesRatio(t *testing.T) {
	sig := &store.TradingSignal{EntryPrice: dec("1.10"), SL: dec("1.09"), TP: dec("1.12")}
	rr := RiskReward(sig)
	assert.True(t, rr.Equal(dec("2")))
}

func TestCalculateTPSLBuyMeetsMinimumRR(t *testing.T) {
	in := TPSLInput{
		Entry:     dec("1.1000"),
		Direction: DirBuy,
		Class:     ClassForexMajor,
		ATR:       dec("0.0020"),
		Bollinger: indicators.BollingerResult{Upper: dec("1.1050"), Middle: dec("1.1000"), Lower: dec("1.0950")},
		SwingHighs: []decimal.Decimal{dec("1.1100")},
		SwingLows:  []decimal.Decimal{dec("1.0950")},
		Limits:     BrokerLimits{},
	}
	res, err := CalculateTPSL(in)
	assert.NoError(t, err)
	assert.True(t, res.RiskReward.GreaterThanOrEqual(dec("2")), "BUY must achieve >= 1:2, got %s", res.RiskReward)
}

func TestGenerateAbortsOnInsufficientHistory(t *testing.T) {
	got := Generate(GenerateInput{Symbol: "EURUSD", Timeframe: store.M15, Candles: nil})
	assert.Nil(t, got)
}
