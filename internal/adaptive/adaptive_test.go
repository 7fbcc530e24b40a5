package adaptive

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mt5bridge/engine/internal/store"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func tradesOf(profits ...string) []ClosedTrade {
	out := make([]ClosedTrade, len(profits))
	for i, p := range profits {
		out[i] = ClosedTrade{Profit: dec(p)}
	}
	return out
}

func TestUpdateRaisesThresholdOnLoss(t *testing.T) {
	cfg := &store.SymbolTradingConfig{MinConfidenceThreshold: dec("60")}
	Update(cfg, tradesOf("10", "-5"), time.Now().UTC())
	assert.True(t, cfg.MinConfidenceThreshold.Equal(dec("65")))
	assert.Equal(t, 1, cfg.ConsecutiveLosses)
}

func TestUpdateLowersThresholdOnWin(t *testing.T) {
	cfg := &store.SymbolTradingConfig{MinConfidenceThreshold: dec("60")}
	Update(cfg, tradesOf("-5", "10"), time.Now().UTC())
	assert.True(t, cfg.MinConfidenceThreshold.Equal(dec("59")))
}

func TestUpdateRiskMultiplierGrowsOnWinStreak(t *testing.T) {
	cfg := &store.SymbolTradingConfig{RiskMultiplier: dec("1.0")}
	history := []ClosedTrade{}
	for _, p := range []string{"1", "1", "1"} {
		history = append(history, ClosedTrade{Profit: dec(p)})
		Update(cfg, history, time.Now().UTC())
	}
	assert.True(t, cfg.RiskMultiplier.Equal(dec("1.05")))
}

func TestUpdateRiskMultiplierShrinksOnLossStreak(t *testing.T) {
	cfg := &store.SymbolTradingConfig{RiskMultiplier: dec("1.0")}
	history := []ClosedTrade{}
	for _, p := range []string{"-1", "-1"} {
		history = append(history, ClosedTrade{Profit: dec(p)})
		Update(cfg, history, time.Now().UTC())
	}
	assert.True(t, cfg.RiskMultiplier.Equal(dec("0.9")))
}

func TestUpdateAutoPausesOnThreeConsecutiveLosses(t *testing.T) {
	cfg := &store.SymbolTradingConfig{Status: store.SymbolActive}
	history := []ClosedTrade{}
	for _, p := range []string{"-1", "-1", "-1"} {
		history = append(history, ClosedTrade{Profit: dec(p)})
		Update(cfg, history, time.Now().UTC())
	}
	assert.Equal(t, store.SymbolPaused, cfg.Status)
	assert.NotNil(t, cfg.PauseReason)
}

func TestMaybeAutoPauseResumesAfter24h(t *testing.T) {
	pausedAt := time.Now().UTC().Add(-25 * time.Hour)
	cfg := &store.SymbolTradingConfig{Status: store.SymbolPaused, PausedAt: &pausedAt}
	maybeAutoPause(cfg, time.Now().UTC())
	assert.Equal(t, store.SymbolActive, cfg.Status)
	assert.Nil(t, cfg.PausedAt)
}

func TestResumeOnHigherBarLiftsPause(t *testing.T) {
	cfg := &store.SymbolTradingConfig{Status: store.SymbolPaused}
	ok := ResumeOnHigherBar(cfg, dec("90"), dec("85"))
	assert.True(t, ok)
	assert.Equal(t, store.SymbolActive, cfg.Status)
}

func TestResumeOnHigherBarRejectsBelowBar(t *testing.T) {
	cfg := &store.SymbolTradingConfig{Status: store.SymbolPaused}
	ok := ResumeOnHigherBar(cfg, dec("70"), dec("85"))
	assert.False(t, ok)
	assert.Equal(t, store.SymbolPaused, cfg.Status)
}
