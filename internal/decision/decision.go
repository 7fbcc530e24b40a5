// Package decision implements the signal-to-trade decision pipeline: an
// ordered list of hard-block gates, each returning a typed rejection
// instead of a bool, ending in position sizing. Every step is a pure
// function over its Input so the caller (the decision worker) owns all
// I/O and persists one AIDecisionLog row per outcome — durable instead
// of an ephemeral per-step log line.
package decision

import (
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/sizing"
	"github.com/mt5bridge/engine/internal/store"
)

var (
	errSLWrongSide = errors.New("decision: sl is on the wrong side of entry")
	errSLTooClose  = errors.New("decision: sl distance below broker stops_level minimum")
)

// Reason names the gate that produced a reject, or APPROVED.
type Reason string

const (
	ReasonAutoTradingDisabled Reason = "AUTO_TRADING_DISABLED"
	ReasonCircuitBreaker      Reason = "CIRCUIT_BREAKER"
	ReasonRiskLimit           Reason = "RISK_LIMIT"
	ReasonMT5Disconnect       Reason = "MT5_DISCONNECT"
	ReasonSignalExpired       Reason = "SIGNAL_EXPIRED"
	ReasonMissingFields       Reason = "MISSING_FIELDS"
	ReasonSymbolDisabled      Reason = "SYMBOL_DISABLE"
	ReasonConfidenceTooLow    Reason = "CONFIDENCE_TOO_LOW"
	ReasonPositionLimit       Reason = "POSITION_LIMIT"
	ReasonTimeframeCap        Reason = "TIMEFRAME_CAP"
	ReasonCorrelationCap      Reason = "CORRELATION_CAP"
	ReasonGlobalCap           Reason = "GLOBAL_CAP"
	ReasonTickStale           Reason = "TICK_STALE"
	ReasonSpreadRejected      Reason = "SPREAD_REJECTED"
	ReasonNewsPause           Reason = "NEWS_PAUSE"
	ReasonSLInvalid           Reason = "SL_INVALID"
	ReasonSizingFailed        Reason = "SIZING_FAILED"
	ReasonApproved            Reason = "APPROVED"
)

// TrendRelation describes how a signal's direction relates to the
// prevailing trend on its timeframe, for the dynamic-confidence
// trend-aware adjustment.
type TrendRelation string

const (
	TrendAligned TrendRelation = "ALIGNED"
	TrendOpposed TrendRelation = "OPPOSED"
	TrendUnknown TrendRelation = "UNKNOWN"
)

// PositionLimits carries the counts the position-limit gate needs —
// gathered by the caller from the trades table before calling Decide.
type PositionLimits struct {
	OpenForSymbol       int
	OpenForTimeframe    int
	TimeframeCap        int
	CorrelationGroupLot int
	CorrelationCap      int
	GlobalOpen          int
	GlobalCap           int
}

// SpreadCheck carries the latest-tick freshness and spread data for the
// spread gate.
type SpreadCheck struct {
	TickAge            time.Duration
	TickMaxAge         time.Duration
	CurrentSpread      decimal.Decimal
	AbsoluteLimit      decimal.Decimal
	RollingAvgSpread   decimal.Decimal
	AvgMultiplier      decimal.Decimal // 3x normally, 5x for metals
}

// ConfidenceFactors carries the inputs to the dynamic confidence
// requirement: base threshold plus session, realized
// volatility, and trend-alignment adjustments.
type ConfidenceFactors struct {
	BaseThreshold       decimal.Decimal
	SessionAdjustment   decimal.Decimal
	VolatilityAdjustment decimal.Decimal
	Trend               TrendRelation
}

// RequiredConfidence computes the dynamic confidence bar a signal must
// clear, clamped to [0,100].
func RequiredConfidence(f ConfidenceFactors) decimal.Decimal {
	req := f.BaseThreshold.Add(f.SessionAdjustment).Add(f.VolatilityAdjustment)
	switch f.Trend {
	case TrendAligned:
		req = req.Sub(decimal.NewFromInt(15))
	case TrendOpposed:
		req = req.Add(decimal.NewFromInt(20))
	}
	if req.IsNegative() {
		return decimal.Zero
	}
	if req.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return req
}

// Input aggregates every fact the pipeline needs to evaluate one
// signal; the caller (the decision worker) is responsible for reading
// it from the registry, store, and news calendar before calling Decide.
type Input struct {
	AutoTradingEnabled bool
	Protection         *store.ProtectionState
	TerminalConnected  bool

	Signal      *store.TradingSignal
	Now         time.Time
	MaxSignalAge time.Duration

	SymbolConfig *store.SymbolTradingConfig
	Confidence   ConfidenceFactors

	Limits PositionLimits
	Spread SpreadCheck

	NewsBlackout bool

	StopsLevelPoints decimal.Decimal
	Point            decimal.Decimal

	Sizing  sizing.Input
	Enforce sizing.EnforceInput
}

// CommandSpec is the OPEN_TRADE command the pipeline emits on approval.
type CommandSpec struct {
	Symbol    string
	Direction string
	Volume    decimal.Decimal
	SL        decimal.Decimal
	TP        decimal.Decimal
	Comment   string
	SignalID  uint64
	Timeframe store.Timeframe
}

// Outcome is the result of one Decide call: either an approval carrying
// a CommandSpec, or a rejection naming the Reason that fired.
type Outcome struct {
	Approved bool
	Reason   Reason
	Detail   string
	Command  CommandSpec
}

func reject(reason Reason, detail string) Outcome {
	return Outcome{Approved: false, Reason: reason, Detail: detail}
}

// Decide walks the ordered gates against one active signal and returns
// the first rejection, or an approval with the OPEN_TRADE command to
// emit.
func Decide(in Input) Outcome {
	if !in.AutoTradingEnabled {
		return reject(ReasonAutoTradingDisabled, "auto-trading disabled")
	}

	if in.Protection != nil {
		if in.Protection.CircuitBreakerTripped {
			return reject(ReasonCircuitBreaker, "circuit breaker tripped")
		}
		if in.Protection.LimitReached || in.Protection.AutoTradingDisabledAt != nil {
			return reject(ReasonRiskLimit, "daily risk limit reached")
		}
	}

	if !in.TerminalConnected {
		return reject(ReasonMT5Disconnect, "terminal heartbeat stale")
	}

	if in.Signal == nil {
		return reject(ReasonMissingFields, "no active signal")
	}
	if in.Now.Sub(in.Signal.CreatedAt) > in.MaxSignalAge {
		return reject(ReasonSignalExpired, "signal older than max age")
	}

	if in.Signal.EntryPrice.IsZero() || in.Signal.SL.IsZero() || in.Signal.TP.IsZero() {
		return reject(ReasonMissingFields, "entry/sl/tp not all set")
	}

	if in.SymbolConfig != nil && in.SymbolConfig.Status != store.SymbolActive {
		return reject(ReasonSymbolDisabled, "symbol trading config is "+string(in.SymbolConfig.Status))
	}

	required := RequiredConfidence(in.Confidence)
	if in.Signal.Confidence.LessThan(required) {
		return reject(ReasonConfidenceTooLow, "confidence "+in.Signal.Confidence.String()+" below required "+required.String())
	}

	if in.Limits.OpenForSymbol >= 1 {
		return reject(ReasonPositionLimit, "position already open for account/symbol")
	}
	if in.Limits.TimeframeCap > 0 && in.Limits.OpenForTimeframe >= in.Limits.TimeframeCap {
		return reject(ReasonTimeframeCap, "per-timeframe cap reached")
	}
	if in.Limits.CorrelationCap > 0 && in.Limits.CorrelationGroupLot >= in.Limits.CorrelationCap {
		return reject(ReasonCorrelationCap, "correlation group cap reached")
	}
	if in.Limits.GlobalCap > 0 && in.Limits.GlobalOpen >= in.Limits.GlobalCap {
		return reject(ReasonGlobalCap, "global open-position cap reached")
	}

	if in.Spread.TickAge > in.Spread.TickMaxAge {
		return reject(ReasonTickStale, "latest tick older than max age")
	}
	spreadLimit := in.Spread.RollingAvgSpread.Mul(in.Spread.AvgMultiplier)
	if in.Spread.AbsoluteLimit.GreaterThan(spreadLimit) {
		spreadLimit = in.Spread.AbsoluteLimit
	}
	if in.Spread.CurrentSpread.GreaterThan(spreadLimit) {
		return reject(ReasonSpreadRejected, "current spread exceeds limit")
	}

	if in.NewsBlackout {
		return reject(ReasonNewsPause, "inside news blackout window")
	}

	if err := validateSLDirection(in); err != nil {
		return reject(ReasonSLInvalid, err.Error())
	}

	lot := sizing.Calculate(in.Sizing)
	in.Enforce.Lot = lot
	enforced, err := sizing.Enforce(in.Enforce)
	if err != nil {
		return reject(ReasonSizingFailed, err.Error())
	}

	return Outcome{
		Approved: true,
		Reason:   ReasonApproved,
		Command: CommandSpec{
			Symbol:    in.Signal.Symbol,
			Direction: string(in.Signal.SignalType),
			Volume:    enforced.Lot,
			SL:        in.Signal.SL,
			TP:        in.Signal.TP,
			Comment:   "signal_id=" + strconv.FormatUint(in.Signal.ID, 10),
			SignalID:  in.Signal.ID,
			Timeframe: in.Signal.Timeframe,
		},
	}
}

func validateSLDirection(in Input) error {
	minDistance := in.StopsLevelPoints.Mul(in.Point)
	dist := in.Signal.EntryPrice.Sub(in.Signal.SL).Abs()
	if string(in.Signal.SignalType) == "BUY" && in.Signal.SL.GreaterThanOrEqual(in.Signal.EntryPrice) {
		return errSLWrongSide
	}
	if string(in.Signal.SignalType) == "SELL" && in.Signal.SL.LessThanOrEqual(in.Signal.EntryPrice) {
		return errSLWrongSide
	}
	if dist.LessThan(minDistance) {
		return errSLTooClose
	}
	return nil
}
