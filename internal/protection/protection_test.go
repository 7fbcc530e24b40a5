package protection

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

func TestDailyResetAdvancesDate(t *testing.T) {
	ps := &store.ProtectionState{TrackingDate: "2026-07-30", DailyPnL: dec("-50"), LimitReached: true}
	DailyReset(ps, time.Date(2026, 7, 31, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-07-31", ps.TrackingDate)
	assert.True(t, ps.DailyPnL.IsZero())
	assert.False(t, ps.LimitReached)
}

func TestDailyResetNoopSameDay(t *testing.T) {
	ps := &store.ProtectionState{TrackingDate: "2026-07-31", DailyPnL: dec("-50")}
	DailyReset(ps, time.Date(2026, 7, 31, 23, 0, 0, 0, time.UTC))
	assert.True(t, ps.DailyPnL.Equal(dec("-50")))
}

func TestOnTradeCloseTripsDailyLimit(t *testing.T) {
	ps := &store.ProtectionState{
		InitialBalance:      dec("1000"),
		MaxDailyLossPercent: dec("2"),
		PeakEquity:          dec("1000"),
	}
	OnTradeClose(ps, dec("-30"), dec("970"), time.Now().UTC())
	assert.True(t, ps.LimitReached)
	assert.NotNil(t, ps.AutoTradingDisabledAt)
}

func TestOnTradeCloseTripsTotalDrawdown(t *testing.T) {
	ps := &store.ProtectionState{
		InitialBalance:          dec("1000"),
		MaxDailyLossPercent:     dec("50"), // high so daily doesn't trip first
		MaxTotalDrawdownPercent: dec("20"),
		PeakEquity:              dec("1000"),
	}
	OnTradeClose(ps, dec("-250"), dec("750"), time.Now().UTC())
	assert.True(t, ps.CircuitBreakerTripped)
}

func TestCanTradeBlocksOnHardStates(t *testing.T) {
	ps := &store.ProtectionState{CircuitBreakerTripped: true}
	assert.False(t, CanTrade(ps))

	ps2 := &store.ProtectionState{}
	assert.True(t, CanTrade(ps2))
}

func TestRecordCommandFailureTripsAtThreshold(t *testing.T) {
	ps := &store.ProtectionState{}
	for i := 0; i < 4; i++ {
		RecordCommandFailure(ps, 5, time.Now().UTC())
	}
	assert.False(t, ps.CircuitBreakerTripped)
	RecordCommandFailure(ps, 5, time.Now().UTC())
	assert.True(t, ps.CircuitBreakerTripped)
}

func TestMaybeAutoResetRequiresCooldownElapsed(t *testing.T) {
	trippedAt := time.Now().UTC().Add(-10 * time.Minute)
	ps := &store.ProtectionState{CircuitBreakerTripped: true, CircuitTrippedAt: &trippedAt}
	reset := MaybeAutoResetCircuitBreaker(ps, 5*time.Minute, time.Now().UTC())
	assert.True(t, reset)
	assert.False(t, ps.CircuitBreakerTripped)
}

func TestSLCooldownExtendsOnSecondHitWithin4h(t *testing.T) {
	prior := time.Now().UTC().Add(-1 * time.Hour)
	got := SLCooldownFor(&prior, 30*time.Minute, time.Now().UTC())
	assert.Equal(t, 60*time.Minute, got)
}

func TestShouldAutoPauseAllLosses(t *testing.T) {
	losses := []decimal.Decimal{dec("-5"), dec("-10"), dec("-3")}
	assert.True(t, ShouldAutoPauseConsecutiveLosses(losses, 3, true))
}

func TestShouldAutoPauseFalseWhenOneWin(t *testing.T) {
	mixed := []decimal.Decimal{dec("-5"), dec("10"), dec("-3")}
	assert.False(t, ShouldAutoPauseConsecutiveLosses(mixed, 3, true))
}
