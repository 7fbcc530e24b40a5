// Package protection implements the state machine over
// store.ProtectionState: daily reset by date string, drawdown/
// circuit-breaker trip and reset, a consecutive-loss counter driving
// auto-pause, and SL-hit cooldown — operations over a persisted
// ProtectionState row instead of an in-memory struct.
package protection

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/store"
)

// DailyReset resets the daily tracking fields when the UTC calendar day
// has advanced.
func DailyReset(ps *store.ProtectionState, now time.Time) {
	today := now.UTC().Format("2006-01-02")
	if ps.TrackingDate == today {
		return
	}
	ps.TrackingDate = today
	ps.DailyPnL = decimal.Zero
	ps.LimitReached = false
}

// OnTradeClose applies a closed trade's PnL to the daily/drawdown state
// and trips the hard limits when exceeded.
func OnTradeClose(ps *store.ProtectionState, profit, currentEquity decimal.Decimal, now time.Time) {
	ps.DailyPnL = ps.DailyPnL.Add(profit)

	dailyLossExceeded := false
	if ps.MaxDailyLossEUR != nil && ps.DailyPnL.LessThanOrEqual(ps.MaxDailyLossEUR.Neg()) {
		dailyLossExceeded = true
	}
	if ps.InitialBalance.IsPositive() {
		lossRatio := ps.DailyPnL.Div(ps.InitialBalance)
		maxPct := ps.MaxDailyLossPercent.Div(decimal.NewFromInt(100))
		if lossRatio.LessThanOrEqual(maxPct.Neg()) {
			dailyLossExceeded = true
		}
	}
	if dailyLossExceeded {
		ps.LimitReached = true
		t := now.UTC()
		ps.AutoTradingDisabledAt = &t
		log.Warn().Int64("account", ps.AccountNumber).Str("daily_pnl", ps.DailyPnL.String()).
			Msg("🚨 daily loss limit reached — auto-trading disabled")
	}

	if currentEquity.GreaterThan(ps.PeakEquity) {
		ps.PeakEquity = currentEquity
	}
	if ps.InitialBalance.IsPositive() {
		drawdown := ps.InitialBalance.Sub(currentEquity).Div(ps.InitialBalance)
		maxDD := ps.MaxTotalDrawdownPercent.Div(decimal.NewFromInt(100))
		if drawdown.GreaterThanOrEqual(maxDD) && !ps.CircuitBreakerTripped {
			ps.CircuitBreakerTripped = true
			t := now.UTC()
			ps.CircuitTrippedAt = &t
			log.Error().Int64("account", ps.AccountNumber).Str("drawdown_pct", drawdown.String()).
				Msg("🚨 total drawdown circuit breaker tripped")
		}
	}
}

// CanTrade reports whether trading is currently permitted under the hard
// protection states — circuit_breaker_tripped, limit_reached, and
// auto_trading_disabled_at all require manual reset within the day.
func CanTrade(ps *store.ProtectionState) bool {
	if ps.CircuitBreakerTripped || ps.LimitReached {
		return false
	}
	return ps.AutoTradingDisabledAt == nil
}

// RecordCommandFailure increments the independent command-failure
// circuit breaker and trips it after CB_THRESHOLD consecutive failures.
func RecordCommandFailure(ps *store.ProtectionState, threshold int, now time.Time) {
	ps.CmdFailureStreak++
	if threshold <= 0 {
		threshold = 5
	}
	if ps.CmdFailureStreak >= threshold && !ps.CircuitBreakerTripped {
		ps.CircuitBreakerTripped = true
		t := now.UTC()
		ps.CircuitTrippedAt = &t
		log.Warn().Int64("account", ps.AccountNumber).Int("streak", ps.CmdFailureStreak).
			Msg("🚨 command-failure circuit breaker tripped")
	}
}

// RecordCommandSuccess resets the command-failure streak.
func RecordCommandSuccess(ps *store.ProtectionState) {
	ps.CmdFailureStreak = 0
}

// MaybeAutoResetCircuitBreaker clears the command-failure circuit breaker
// once its cooldown has elapsed — the soft case that auto-resumes,
// distinct from the hard daily limit_reached/drawdown trip.
func MaybeAutoResetCircuitBreaker(ps *store.ProtectionState, cooldown time.Duration, now time.Time) bool {
	if !ps.CircuitBreakerTripped || ps.CircuitTrippedAt == nil {
		return false
	}
	if now.Sub(*ps.CircuitTrippedAt) < cooldown {
		return false
	}
	ps.CircuitBreakerTripped = false
	ps.CircuitTrippedAt = nil
	ps.CmdFailureStreak = 0
	log.Info().Int64("account", ps.AccountNumber).Msg("✅ circuit breaker auto-reset after cooldown")
	return true
}

// SLCooldownFor computes the pause window for a symbol after an SL hit:
// the default SL_COOLDOWN, extended to 60 min if this is the second SL
// hit within 4 hours.
func SLCooldownFor(priorSLHitAt *time.Time, defaultCooldown time.Duration, now time.Time) time.Duration {
	if priorSLHitAt == nil {
		return defaultCooldown
	}
	if now.Sub(*priorSLHitAt) <= 4*time.Hour {
		extended := 60 * time.Minute
		if extended > defaultCooldown {
			return extended
		}
	}
	return defaultCooldown
}

// ShouldAutoPauseConsecutiveLosses reports whether the last N closed
// trades were all losses, triggering a symbol pause when enabled.
func ShouldAutoPauseConsecutiveLosses(recentProfits []decimal.Decimal, n int, autoPauseEnabled bool) bool {
	if !autoPauseEnabled || len(recentProfits) < n {
		return false
	}
	for _, p := range recentProfits[len(recentProfits)-n:] {
		if !p.IsNegative() {
			return false
		}
	}
	return true
}
