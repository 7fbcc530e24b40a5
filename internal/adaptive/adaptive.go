// Package adaptive implements the post-trade SymbolTradingConfig update:
// rolling win-rate/profit recompute, confidence-threshold and
// risk-multiplier drift on win/loss, regime preference learning, and
// auto-pause/auto-resume — recomputing rolling stats on every close
// over a persisted SymbolTradingConfig row instead of an in-memory
// struct.
package adaptive

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/store"
)

const (
	minConfidenceFloor = 45
	minConfidenceCap   = 80
	riskMultiplierCap  = 2.0
	riskMultiplierFloor = 0.1
	rollingWindow      = 20
	pauseThreshold     = 3
	pauseWinRateFloor  = 40
)

// ClosedTrade is the minimal per-trade fact the rolling-stats recompute
// needs, in chronological order (most recent last).
type ClosedTrade struct {
	Profit decimal.Decimal
	Regime string // "TRENDING" or "RANGING", empty if unknown
}

// Update applies one freshly-closed trade's outcome to cfg, recomputing
// rolling stats over recent (most-recent-last) and adjusting thresholds,
// risk multiplier, regime preference, and pause state.
func Update(cfg *store.SymbolTradingConfig, recent []ClosedTrade, now time.Time) {
	if len(recent) == 0 {
		return
	}
	latest := recent[len(recent)-1]
	isWin := latest.Profit.IsPositive()

	window := recent
	if len(window) > rollingWindow {
		window = window[len(window)-rollingWindow:]
	}
	cfg.RollingWinRate = winRate(window)

	if isWin {
		cfg.ConsecutiveWins++
		cfg.ConsecutiveLosses = 0
	} else {
		cfg.ConsecutiveLosses++
		cfg.ConsecutiveWins = 0
	}

	adjustConfidenceThreshold(cfg, isWin)
	adjustRiskMultiplier(cfg)
	learnPreferredRegime(cfg, window)
	maybeAutoPause(cfg, now)
	cfg.UpdatedAt = now
}

func winRate(trades []ClosedTrade) decimal.Decimal {
	if len(trades) == 0 {
		return decimal.Zero
	}
	wins := 0
	for _, t := range trades {
		if t.Profit.IsPositive() {
			wins++
		}
	}
	return decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(len(trades)))).Mul(decimal.NewFromInt(100))
}

func adjustConfidenceThreshold(cfg *store.SymbolTradingConfig, isWin bool) {
	t := cfg.MinConfidenceThreshold
	if isWin {
		t = t.Sub(decimal.NewFromInt(1))
		if cfg.RollingWinRate.GreaterThan(decimal.NewFromInt(65)) {
			t = t.Sub(decimal.NewFromInt(2))
		}
		floor := decimal.NewFromInt(minConfidenceFloor)
		if t.LessThan(floor) {
			t = floor
		}
	} else {
		t = t.Add(decimal.NewFromInt(5))
		if cfg.RollingWinRate.LessThan(decimal.NewFromInt(40)) {
			t = t.Add(decimal.NewFromInt(5))
		}
		ceiling := decimal.NewFromInt(minConfidenceCap)
		if t.GreaterThan(ceiling) {
			t = ceiling
		}
	}
	cfg.MinConfidenceThreshold = t
}

func adjustRiskMultiplier(cfg *store.SymbolTradingConfig) {
	m := cfg.RiskMultiplier
	if m.IsZero() {
		m = decimal.NewFromInt(1)
	}
	switch {
	case cfg.ConsecutiveWins >= 3:
		m = m.Add(decimal.NewFromFloat(0.05))
		if m.GreaterThan(decimal.NewFromFloat(riskMultiplierCap)) {
			m = decimal.NewFromFloat(riskMultiplierCap)
		}
	case cfg.ConsecutiveLosses >= 2:
		m = m.Sub(decimal.NewFromFloat(0.10))
		if m.LessThan(decimal.NewFromFloat(riskMultiplierFloor)) {
			m = decimal.NewFromFloat(riskMultiplierFloor)
		}
	}
	cfg.RiskMultiplier = m
}

// learnPreferredRegime records a preferred regime when the trending vs
// ranging win-rate split diverges by more than 10 points over at least
// rollingWindow trades.
func learnPreferredRegime(cfg *store.SymbolTradingConfig, window []ClosedTrade) {
	if len(window) < rollingWindow {
		return
	}
	var trending, ranging []ClosedTrade
	for _, t := range window {
		switch t.Regime {
		case "TRENDING":
			trending = append(trending, t)
		case "RANGING":
			ranging = append(ranging, t)
		}
	}
	if len(trending) == 0 || len(ranging) == 0 {
		return
	}
	wrTrending := winRate(trending)
	wrRanging := winRate(ranging)
	diff := wrTrending.Sub(wrRanging)
	if diff.Abs().LessThanOrEqual(decimal.NewFromInt(10)) {
		return
	}
	preferred := "TRENDING"
	if wrRanging.GreaterThan(wrTrending) {
		preferred = "RANGING"
	}
	cfg.PreferredRegime = &preferred
}

// maybeAutoPause pauses the symbol on 3 consecutive losses or rolling
// win rate below 40%, and auto-resumes a pause once 24h has elapsed.
func maybeAutoPause(cfg *store.SymbolTradingConfig, now time.Time) {
	if cfg.Status == store.SymbolPaused {
		if cfg.PausedAt != nil && now.Sub(*cfg.PausedAt) >= 24*time.Hour {
			cfg.Status = store.SymbolActive
			cfg.PausedAt = nil
			cfg.PauseReason = nil
		}
		return
	}

	shouldPause := cfg.ConsecutiveLosses >= pauseThreshold ||
		cfg.RollingWinRate.LessThan(decimal.NewFromInt(pauseWinRateFloor))
	if !shouldPause {
		return
	}
	reason := "consecutive_losses"
	if cfg.RollingWinRate.LessThan(decimal.NewFromInt(pauseWinRateFloor)) {
		reason = "low_win_rate"
	}
	cfg.Status = store.SymbolPaused
	cfg.PauseReason = &reason
	t := now
	cfg.PausedAt = &t
}

// ResumeOnHigherBar lifts an auto-pause early when a fresh signal clears
// a confidence bar above the normal threshold.
func ResumeOnHigherBar(cfg *store.SymbolTradingConfig, signalConfidence, higherBar decimal.Decimal) bool {
	if cfg.Status != store.SymbolPaused {
		return false
	}
	if signalConfidence.LessThan(higherBar) {
		return false
	}
	cfg.Status = store.SymbolActive
	cfg.PausedAt = nil
	cfg.PauseReason = nil
	return true
}
