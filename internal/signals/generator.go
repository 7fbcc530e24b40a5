package signals

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/indicators"
	"github.com/mt5bridge/engine/internal/store"
)

// Builder is a fluent TradingSignal constructor that accumulates fields
// before a final Build().
type Builder struct {
	sig store.TradingSignal
}

// NewBuilder starts a TradingSignal builder for a (symbol, timeframe).
func NewBuilder(symbol string, timeframe store.Timeframe) *Builder {
	return &Builder{sig: store.TradingSignal{Symbol: symbol, Timeframe: timeframe}}
}

func (b *Builder) Type(t store.SignalType) *Builder           { b.sig.SignalType = t; return b }
func (b *Builder) Confidence(c decimal.Decimal) *Builder       { b.sig.Confidence = c; return b }
func (b *Builder) Entry(p decimal.Decimal) *Builder            { b.sig.EntryPrice = p; return b }
func (b *Builder) SL(p decimal.Decimal) *Builder               { b.sig.SL = p; return b }
func (b *Builder) TP(p decimal.Decimal) *Builder                { b.sig.TP = p; return b }
func (b *Builder) ExpiresAt(t time.Time) *Builder               { b.sig.ExpiresAt = t; return b }
func (b *Builder) Snapshot(snapshot map[string]any) *Builder {
	blob, _ := json.Marshal(snapshot)
	b.sig.IndicatorSnapshot = string(blob)
	return b
}
func (b *Builder) Patterns(names []string) *Builder {
	blob, _ := json.Marshal(names)
	b.sig.Patterns = string(blob)
	return b
}

// Build returns the assembled TradingSignal.
func (b *Builder) Build() *store.TradingSignal { return &b.sig }

// Validate checks well-formedness: non-zero entry/SL/TP, with SL/TP on
// the correct side of entry for the signal's direction.
func Validate(sig *store.TradingSignal) bool {
	if sig.Symbol == "" || sig.EntryPrice.IsZero() {
		return false
	}
	if sig.SL.IsZero() || sig.TP.IsZero() {
		return false
	}
	if sig.SignalType == store.SignalBuy {
		return sig.TP.GreaterThan(sig.EntryPrice) && sig.SL.LessThan(sig.EntryPrice)
	}
	if sig.SignalType == store.SignalSell {
		return sig.TP.LessThan(sig.EntryPrice) && sig.SL.GreaterThan(sig.EntryPrice)
	}
	return false
}

// RiskReward returns a signal's reward-to-risk ratio.
func RiskReward(sig *store.TradingSignal) decimal.Decimal {
	risk := sig.EntryPrice.Sub(sig.SL).Abs()
	reward := sig.TP.Sub(sig.EntryPrice).Abs()
	if risk.IsZero() {
		return decimal.Zero
	}
	return reward.Div(risk)
}

// GenerateInput carries the per-(symbol,timeframe) context the generator
// needs for one pass.
type GenerateInput struct {
	Symbol        string
	Timeframe     store.Timeframe
	Candles       []store.OHLCCandle
	LatestTick    *store.Tick
	IndicatorScores map[string]store.IndicatorScore
	BuyAdvantage  int
	MinConfidence decimal.Decimal
	BuyPenalty    decimal.Decimal
	BrokerLimits  BrokerLimits
	SignalTTL     time.Duration
}

// Generate runs the full regime-classify → vote → confidence → TP/SL
// pipeline and returns a signal ready for persistence, or nil if no
// signal clears the bar. Only a too-weak regime (ADX below 12) aborts
// with a nil result; otherwise the regime only sets the RSI bands used
// in Votes, and no strategy is rejected for a regime mismatch.
func Generate(in GenerateInput) *store.TradingSignal {
	if len(in.Candles) < 30 {
		return nil
	}
	adx := indicators.ADX(in.Candles, 14)
	if adx.LessThan(decimal.NewFromInt(12)) {
		log.Debug().Str("symbol", in.Symbol).Msg("📉 regime too weak — suppressing trend signals")
		return nil
	}
	regime := indicators.ClassifyRegime(adx)

	votes := Votes(in.Candles, regime)
	direction, buyCount, sellCount := Consensus(votes, in.BuyAdvantage)
	if direction == DirNeutral {
		return nil
	}

	patterns := indicators.DetectPatterns(in.Candles)
	confidence := Confidence(ConfidenceInput{
		Votes:                votes,
		Direction:            direction,
		PatternScore:         indicators.PatternScore(patterns, direction == DirBuy),
		IndicatorScores:      in.IndicatorScores,
		ADXStrong:            adx.GreaterThan(decimal.NewFromInt(30)),
		OBVDivergence:        votes["OBV"].Direction == direction,
		BuyConfidencePenalty: in.BuyPenalty,
	})

	minConf := in.MinConfidence
	if minConf.IsZero() {
		minConf = decimal.NewFromInt(50)
	}
	if confidence.LessThan(minConf) {
		log.Debug().Str("symbol", in.Symbol).Str("confidence", confidence.String()).Msg("🚫 below minimum generation confidence")
		return nil
	}

	entry := in.Candles[len(in.Candles)-1].Close
	if in.LatestTick != nil {
		if direction == DirBuy {
			entry = in.LatestTick.Ask
		} else {
			entry = in.LatestTick.Bid
		}
	}
	atr := indicators.ATR(in.Candles, 14)
	closes := indicators.Closes(in.Candles)
	bb := indicators.Bollinger(closes, 20, decimal.NewFromInt(2))
	st := indicators.SuperTrend(in.Candles, 10, decimal.NewFromFloat(3.0))

	tpsl, err := CalculateTPSL(TPSLInput{
		Entry:      entry,
		Direction:  direction,
		Class:      ClassForSymbol(in.Symbol),
		ATR:        atr,
		Bollinger:  bb,
		SwingHighs: recentSwingHighs(in.Candles, 5),
		SwingLows:  recentSwingLows(in.Candles, 5),
		SuperTrend: st,
		Limits:     in.BrokerLimits,
	})
	if err != nil {
		log.Debug().Str("symbol", in.Symbol).Err(err).Msg("🚫 smart TP/SL rejected signal")
		return nil
	}

	signalType := store.SignalBuy
	if direction == DirSell {
		signalType = store.SignalSell
	}

	ttl := in.SignalTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	spread := decimal.Zero
	if in.LatestTick != nil {
		spread = in.LatestTick.Spread
	}
	atrPct := decimal.Zero
	if entry.IsPositive() {
		atrPct = atr.Div(entry).Mul(decimal.NewFromInt(100))
	}
	snapshot := map[string]any{
		"votes":              votes,
		"regime":             regime,
		"adx":                adx,
		"spread":             spread,
		"buy_count":          buyCount,
		"sell_count":         sellCount,
		"supertrend_uptrend": st.Uptrend,
		"atr_pct":            atrPct,
	}

	return NewBuilder(in.Symbol, in.Timeframe).
		Type(signalType).
		Confidence(confidence).
		Entry(entry).
		SL(tpsl.SL).
		TP(tpsl.TP).
		ExpiresAt(time.Now().UTC().Add(ttl)).
		Snapshot(snapshot).
		Patterns(indicators.Names(patterns)).
		Build()
}

func recentSwingHighs(candles []store.OHLCCandle, n int) []decimal.Decimal {
	return swingPoints(candles, n, true)
}

func recentSwingLows(candles []store.OHLCCandle, n int) []decimal.Decimal {
	return swingPoints(candles, n, false)
}

// swingPoints finds local highs/lows: a bar whose high (or low) exceeds
// both neighbors, returning the most recent n found.
func swingPoints(candles []store.OHLCCandle, n int, highs bool) []decimal.Decimal {
	var points []decimal.Decimal
	for i := len(candles) - 2; i > 0 && len(points) < n; i-- {
		if highs {
			if candles[i].High.GreaterThan(candles[i-1].High) && candles[i].High.GreaterThan(candles[i+1].High) {
				points = append(points, candles[i].High)
			}
		} else {
			if candles[i].Low.LessThan(candles[i-1].Low) && candles[i].Low.LessThan(candles[i+1].Low) {
				points = append(points, candles[i].Low)
			}
		}
	}
	return points
}
