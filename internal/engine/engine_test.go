package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mt5bridge/engine/internal/config"
	"github.com/mt5bridge/engine/internal/decision"
	"github.com/mt5bridge/engine/internal/store"
)

func TestCorrelationGroupBucketsMetalsAndCrypto(t *testing.T) {
	assert.Equal(t, "METALS", correlationGroup("XAUUSD"))
	assert.Equal(t, "METALS", correlationGroup("XAGUSD"))
	assert.Equal(t, "CRYPTO", correlationGroup("BTCUSD"))
	assert.Equal(t, "CRYPTO", correlationGroup("ETHUSD"))
	assert.Equal(t, "EUR", correlationGroup("EURUSD"))
}

func TestCurrencyOfTakesFirstThreeChars(t *testing.T) {
	assert.Equal(t, "EUR", currencyOf("EURUSD"))
	assert.Equal(t, "GBP", currencyOf("GBPJPY"))
}

func TestPositionLimitsCountsOpenTradesBySymbolTimeframeAndGroup(t *testing.T) {
	tf := store.H1
	sig := &store.TradingSignal{Symbol: "EURUSD", Timeframe: tf}
	open := []store.Trade{
		{Symbol: "EURUSD", Timeframe: &tf},
		{Symbol: "GBPUSD", Timeframe: &tf},
		{Symbol: "XAUUSD"},
	}
	cfg := &config.Config{Limits: config.Limits{MaxTotalPositions: 10, MaxPerSymbol: 1, MaxPerCurrencyGroup: 2}}

	limits := positionLimits(open, sig, cfg)
	assert.Equal(t, 1, limits.OpenForSymbol)
	assert.Equal(t, 1, limits.OpenForTimeframe)
	assert.Equal(t, 3, limits.GlobalOpen)
	assert.Equal(t, 10, limits.GlobalCap)
}

func TestDefaultProtectionSeedsFromBalance(t *testing.T) {
	ps := defaultProtection(1, decimal.NewFromInt(1000))
	assert.True(t, ps.ProtectionEnabled)
	assert.True(t, ps.InitialBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, ps.PeakEquity.Equal(decimal.NewFromInt(1000)))
}

func TestDefaultSymbolConfigStartsActiveAtNeutralRisk(t *testing.T) {
	cfg := defaultSymbolConfig(1, "EURUSD")
	assert.Equal(t, store.SymbolActive, cfg.Status)
	assert.True(t, cfg.RiskMultiplier.Equal(decimal.NewFromInt(1)))
}

func TestSessionAdjustmentLowersBarDuringOverlapRaisesInDeadHours(t *testing.T) {
	overlap := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)
	assert.True(t, sessionAdjustment(overlap).Equal(decimal.NewFromInt(-5)))

	deadHours := time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC)
	assert.True(t, sessionAdjustment(deadHours).Equal(decimal.NewFromInt(10)))

	asianSession := time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC)
	assert.True(t, sessionAdjustment(asianSession).IsZero())
}

func TestVolatilityAdjustmentPenalizesChopRewardsCalm(t *testing.T) {
	assert.True(t, volatilityAdjustment(decimal.NewFromFloat(2.0)).Equal(decimal.NewFromInt(10)))
	assert.True(t, volatilityAdjustment(decimal.NewFromFloat(0.1)).Equal(decimal.NewFromInt(-5)))
	assert.True(t, volatilityAdjustment(decimal.NewFromFloat(0.8)).IsZero())
}

func TestTrendRelationForComparesSignalDirectionToSuperTrend(t *testing.T) {
	assert.Equal(t, decision.TrendAligned, trendRelationFor(store.SignalBuy, true))
	assert.Equal(t, decision.TrendOpposed, trendRelationFor(store.SignalBuy, false))
	assert.Equal(t, decision.TrendAligned, trendRelationFor(store.SignalSell, false))
	assert.Equal(t, decision.TrendOpposed, trendRelationFor(store.SignalSell, true))
}

func TestConfidenceFactorsForDecodesSnapshotAndAppliesAdjustments(t *testing.T) {
	sig := &store.TradingSignal{
		SignalType:        store.SignalBuy,
		IndicatorSnapshot: `{"supertrend_uptrend":true,"atr_pct":0.8}`,
	}
	cfg := &store.SymbolTradingConfig{MinConfidenceThreshold: decimal.NewFromInt(60)}
	now := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC) // overlap session

	factors := confidenceFactorsFor(sig, cfg, now)
	assert.True(t, factors.BaseThreshold.Equal(decimal.NewFromInt(60)))
	assert.True(t, factors.SessionAdjustment.Equal(decimal.NewFromInt(-5)))
	assert.True(t, factors.VolatilityAdjustment.IsZero())
	assert.Equal(t, decision.TrendAligned, factors.Trend)

	required := decision.RequiredConfidence(factors)
	// 60 - 5 + 0 - 15 (aligned) = 40
	assert.True(t, required.Equal(decimal.NewFromInt(40)))
}

func TestConfidenceFactorsForDefaultsGracefullyOnEmptySnapshot(t *testing.T) {
	sig := &store.TradingSignal{SignalType: store.SignalSell, IndicatorSnapshot: ""}
	cfg := &store.SymbolTradingConfig{MinConfidenceThreshold: decimal.NewFromInt(55)}
	now := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)

	factors := confidenceFactorsFor(sig, cfg, now)
	assert.True(t, factors.SessionAdjustment.IsZero())
	assert.True(t, factors.VolatilityAdjustment.IsZero())
	// an unparseable/empty snapshot decodes to the zero value
	// (supertrend_uptrend=false), which for a SELL signal reads as aligned.
	assert.Equal(t, decision.TrendAligned, factors.Trend)
}
