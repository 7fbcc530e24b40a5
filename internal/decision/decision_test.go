package decision

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mt5bridge/engine/internal/sizing"
	"github.com/mt5bridge/engine/internal/store"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func baseInput(now time.Time) Input {
	return Input{
		AutoTradingEnabled: true,
		Protection:         &store.ProtectionState{},
		TerminalConnected:  true,
		Signal: &store.TradingSignal{
			ID:         1,
			Symbol:     "EURUSD",
			Timeframe:  store.Timeframe("M15"),
			SignalType: store.SignalBuy,
			Confidence: dec("80"),
			EntryPrice: dec("1.1000"),
			SL:         dec("1.0950"),
			TP:         dec("1.1100"),
			CreatedAt:  now,
		},
		Now:          now,
		MaxSignalAge: 300 * time.Second,
		SymbolConfig: &store.SymbolTradingConfig{Status: store.SymbolActive},
		Confidence:   ConfidenceFactors{BaseThreshold: dec("60")},
		Limits:       PositionLimits{TimeframeCap: 1, CorrelationCap: 2, GlobalCap: 10},
		Spread: SpreadCheck{
			TickAge: 1 * time.Second, TickMaxAge: 60 * time.Second,
			CurrentSpread: dec("0.0001"), AbsoluteLimit: dec("0.0003"),
			RollingAvgSpread: dec("0.0001"), AvgMultiplier: dec("3"),
		},
		StopsLevelPoints: dec("50"),
		Point:            dec("0.00001"),
		Sizing: sizing.Input{
			Balance: dec("1000"), Symbol: "EURUSD", Confidence: dec("80"),
			SLDistancePips: dec("50"), PipValue: dec("1"),
			Volume: sizing.BrokerVolumeLimits{Min: dec("0.01"), Max: dec("50"), Step: dec("0.01")},
		},
		Enforce: sizing.EnforceInput{
			Symbol: "EURUSD", Balance: dec("1000"), SLDistance: dec("0.0050"),
			PointValue: dec("1"), Volume: sizing.BrokerVolumeLimits{Min: dec("0.01"), Max: dec("50"), Step: dec("0.01")},
		},
	}
}

func TestDecideApprovesCleanSignal(t *testing.T) {
	out := Decide(baseInput(time.Now().UTC()))
	assert.True(t, out.Approved)
	assert.Equal(t, ReasonApproved, out.Reason)
	assert.Equal(t, "EURUSD", out.Command.Symbol)
	assert.True(t, out.Command.Volume.IsPositive())
}

func TestDecideRejectsWhenAutoTradingDisabled(t *testing.T) {
	in := baseInput(time.Now().UTC())
	in.AutoTradingEnabled = false
	out := Decide(in)
	assert.False(t, out.Approved)
	assert.Equal(t, ReasonAutoTradingDisabled, out.Reason)
}

func TestDecideRejectsOnCircuitBreaker(t *testing.T) {
	in := baseInput(time.Now().UTC())
	in.Protection.CircuitBreakerTripped = true
	out := Decide(in)
	assert.Equal(t, ReasonCircuitBreaker, out.Reason)
}

func TestDecideRejectsStaleTerminal(t *testing.T) {
	in := baseInput(time.Now().UTC())
	in.TerminalConnected = false
	out := Decide(in)
	assert.Equal(t, ReasonMT5Disconnect, out.Reason)
}

func TestDecideRejectsExpiredSignal(t *testing.T) {
	in := baseInput(time.Now().UTC())
	in.Signal.CreatedAt = in.Now.Add(-10 * time.Minute)
	out := Decide(in)
	assert.Equal(t, ReasonSignalExpired, out.Reason)
}

func TestDecideRejectsDisabledSymbol(t *testing.T) {
	in := baseInput(time.Now().UTC())
	in.SymbolConfig.Status = store.SymbolPaused
	out := Decide(in)
	assert.Equal(t, ReasonSymbolDisabled, out.Reason)
}

func TestDecideRejectsLowConfidence(t *testing.T) {
	in := baseInput(time.Now().UTC())
	in.Signal.Confidence = dec("50")
	out := Decide(in)
	assert.Equal(t, ReasonConfidenceTooLow, out.Reason)
}

func TestDecideRejectsWhenPositionAlreadyOpen(t *testing.T) {
	in := baseInput(time.Now().UTC())
	in.Limits.OpenForSymbol = 1
	out := Decide(in)
	assert.Equal(t, ReasonPositionLimit, out.Reason)
}

func TestDecideRejectsStaleTick(t *testing.T) {
	in := baseInput(time.Now().UTC())
	in.Spread.TickAge = 5 * time.Minute
	out := Decide(in)
	assert.Equal(t, ReasonTickStale, out.Reason)
}

func TestDecideRejectsWideSpread(t *testing.T) {
	in := baseInput(time.Now().UTC())
	in.Spread.CurrentSpread = dec("0.0010")
	out := Decide(in)
	assert.Equal(t, ReasonSpreadRejected, out.Reason)
}

func TestDecideRejectsDuringNewsBlackout(t *testing.T) {
	in := baseInput(time.Now().UTC())
	in.NewsBlackout = true
	out := Decide(in)
	assert.Equal(t, ReasonNewsPause, out.Reason)
}

func TestDecideRejectsSLWrongSide(t *testing.T) {
	in := baseInput(time.Now().UTC())
	in.Signal.SL = dec("1.1050") // above entry on a BUY
	out := Decide(in)
	assert.Equal(t, ReasonSLInvalid, out.Reason)
}

func TestRequiredConfidenceTrendAdjustments(t *testing.T) {
	base := ConfidenceFactors{BaseThreshold: dec("60")}
	aligned := base
	aligned.Trend = TrendAligned
	opposed := base
	opposed.Trend = TrendOpposed
	assert.True(t, RequiredConfidence(aligned).Equal(dec("45")))
	assert.True(t, RequiredConfidence(opposed).Equal(dec("80")))
}
