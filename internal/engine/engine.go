// Package engine is the central orchestrator: it owns no trading logic
// of its own but wires signal generation, the decision pipeline,
// trailing-stop evaluation, protection, and adaptive config together
// over the durable store. Flow: feed → strategy → risk → sizing →
// execution → TP/SL → storage, fanned out across many MT5 terminals
// polling through the ingress/command-queue boundary instead of a
// direct execution client.
package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/adaptive"
	"github.com/mt5bridge/engine/internal/config"
	"github.com/mt5bridge/engine/internal/decision"
	"github.com/mt5bridge/engine/internal/external"
	"github.com/mt5bridge/engine/internal/marketdata"
	"github.com/mt5bridge/engine/internal/notify"
	"github.com/mt5bridge/engine/internal/protection"
	"github.com/mt5bridge/engine/internal/queue"
	"github.com/mt5bridge/engine/internal/registry"
	"github.com/mt5bridge/engine/internal/signals"
	"github.com/mt5bridge/engine/internal/sizing"
	"github.com/mt5bridge/engine/internal/store"
	"github.com/mt5bridge/engine/internal/trailing"
)

// Engine holds every component the supervisor's periodic workers need.
type Engine struct {
	Store    *store.Store
	Queue    *queue.Queue
	Registry *registry.Registry
	Config   *config.Config
	Notifier notify.Notifier
	News     external.NewsCalendar
	ML       external.MLScorer
}

// New wires an Engine. Queue, Notifier, News, and ML may be nil/Nop —
// only Store, Registry, and Config are load-bearing.
func New(s *store.Store, q *queue.Queue, r *registry.Registry, cfg *config.Config, n notify.Notifier, news external.NewsCalendar, ml external.MLScorer) *Engine {
	if n == nil {
		n = notify.NopNotifier{}
	}
	if ml == nil {
		ml = external.NoopScorer{}
	}
	return &Engine{Store: s, Queue: q, Registry: r, Config: cfg, Notifier: n, News: news, ML: ml}
}

// tradingTimeframes are the timeframes the signal generator sweeps per
// symbol.
var tradingTimeframes = []store.Timeframe{store.M15, store.H1, store.H4}

// GenerateSignals runs the signal generator across every
// account's subscribed symbols and the standard timeframe set.
func (e *Engine) GenerateSignals(ctx context.Context) error {
	accounts, err := e.Store.AllAccounts(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, acct := range accounts {
		subs, err := e.Store.SubscribedSymbolsFor(ctx, acct.AccountNumber)
		if err != nil {
			log.Error().Err(err).Int64("account", acct.AccountNumber).Msg("🚫 failed to load subscriptions")
			continue
		}
		for _, sub := range subs {
			for _, tf := range tradingTimeframes {
				key := sub.Symbol + "|" + string(tf)
				if seen[key] {
					continue
				}
				seen[key] = true
				e.generateOne(ctx, sub.Symbol, tf)
			}
		}
	}
	return nil
}

func (e *Engine) generateOne(ctx context.Context, symbol string, tf store.Timeframe) {
	candles, err := e.Store.RecentCandles(ctx, symbol, tf, 200)
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("🚫 failed to load candles")
		return
	}
	tick, _ := e.Store.LatestTick(ctx, symbol)

	bs, _ := e.Store.BrokerSymbolByCode(ctx, symbol)
	limits := signals.BrokerLimits{}
	if bs != nil {
		limits = signals.BrokerLimits{StopsLevelPoints: decimal.NewFromInt(int64(bs.StopsLevel)), Point: bs.PointValue}
	}

	scores := make(map[string]store.IndicatorScore)
	for _, name := range []string{"RSI", "MACD", "ADX", "OBV"} {
		if sc, err := e.Store.IndicatorScoreFor(ctx, symbol, tf, name); err == nil && sc != nil {
			scores[name] = *sc
		}
	}

	sig := signals.Generate(signals.GenerateInput{
		Symbol:          symbol,
		Timeframe:       tf,
		Candles:         candles,
		LatestTick:      tick,
		IndicatorScores: scores,
		BuyAdvantage:    e.Config.Risk.BuyAdvantage,
		MinConfidence:   e.Config.Risk.MinGenerationConfidence,
		BuyPenalty:      e.Config.Risk.BuyConfidencePenalty,
		BrokerLimits:    limits,
		SignalTTL:       24 * time.Hour,
	})
	if sig == nil {
		return
	}
	if !signals.Validate(sig) {
		log.Debug().Str("symbol", symbol).Msg("🚫 generated signal failed validation")
		return
	}

	if err := e.Store.ExpireActiveSignals(ctx, symbol, tf); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("🚫 failed to expire superseded signals")
		return
	}
	if err := e.Store.CreateSignal(ctx, sig); err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("🚫 failed to persist signal")
		return
	}
	log.Info().Str("symbol", symbol).Str("type", string(sig.SignalType)).Str("confidence", sig.Confidence.String()).Msg("📡 signal generated")
}

// EvaluateDecisions runs the 14-gate pipeline against every active
// signal and, on approval, issues an OPEN_TRADE command.
func (e *Engine) EvaluateDecisions(ctx context.Context) error {
	active, err := e.Store.ActiveSignals(ctx)
	if err != nil {
		return err
	}
	accounts, err := e.Store.AllAccounts(ctx)
	if err != nil {
		return err
	}
	for i := range active {
		sig := &active[i]
		for _, acct := range accounts {
			e.evaluateOne(ctx, acct, sig)
		}
	}
	return nil
}

func (e *Engine) evaluateOne(ctx context.Context, acct store.Account, sig *store.TradingSignal) {
	ps, err := e.Store.ProtectionFor(ctx, acct.AccountNumber, defaultProtection(acct.AccountNumber, acct.Balance))
	if err != nil {
		log.Error().Err(err).Int64("account", acct.AccountNumber).Msg("🚫 failed to load protection state")
		return
	}
	protection.DailyReset(ps, time.Now())
	protection.MaybeAutoResetCircuitBreaker(ps, e.Config.Timings.CircuitCooldown, time.Now())

	cfg, err := e.Store.SymbolConfigFor(ctx, acct.AccountNumber, sig.Symbol, defaultSymbolConfig(acct.AccountNumber, sig.Symbol))
	if err != nil {
		log.Error().Err(err).Str("symbol", sig.Symbol).Msg("🚫 failed to load symbol config")
		return
	}

	open, err := e.Store.OpenTradesForAccount(ctx, acct.AccountNumber)
	if err != nil {
		log.Error().Err(err).Int64("account", acct.AccountNumber).Msg("🚫 failed to load open trades")
		return
	}
	limits := positionLimits(open, sig, e.Config)

	bs, _ := e.Store.BrokerSymbolByCode(ctx, sig.Symbol)
	tick, _ := e.Store.LatestTick(ctx, sig.Symbol)

	var blackout bool
	if e.News != nil {
		if events, err := e.News.UpcomingEvents(ctx, currencyOf(sig.Symbol), time.Now(), 30*time.Minute, 30*time.Minute); err == nil {
			blackout = external.InBlackout(events, time.Now())
		}
	}

	in := e.buildDecisionInput(acct, sig, ps, cfg, limits, bs, tick, blackout)
	outcome := decision.Decide(in)

	e.logDecision(ctx, sig, outcome)

	if !outcome.Approved {
		e.Notifier.NotifyDecisionRejected(acct.AccountNumber, sig.Symbol, outcome.Reason, outcome.Detail)
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"symbol": outcome.Command.Symbol, "direction": outcome.Command.Direction,
		"volume": outcome.Command.Volume, "sl": outcome.Command.SL, "tp": outcome.Command.TP,
		"comment": outcome.Command.Comment,
	})
	cmd, err := e.Store.CreateCommand(ctx, acct.AccountNumber, store.CmdOpenTrade, string(payload))
	if err != nil {
		log.Error().Err(err).Msg("🚫 failed to persist open-trade command")
		return
	}
	if e.Queue != nil {
		if err := e.Queue.Push(ctx, acct.AccountNumber, cmd.ID); err != nil {
			log.Error().Err(err).Msg("🚫 failed to enqueue open-trade command")
		}
	}
	if err := e.Store.MarkSignalExecuted(ctx, sig.ID); err != nil {
		log.Error().Err(err).Msg("🚫 failed to mark signal executed")
	}
}

// signalSnapshot decodes the subset of a signal's generation-time
// IndicatorSnapshot the decision pipeline needs to compute a dynamic
// confidence bar.
type signalSnapshot struct {
	SupertrendUptrend bool            `json:"supertrend_uptrend"`
	ATRPct            decimal.Decimal `json:"atr_pct"`
}

// confidenceFactorsFor builds the dynamic confidence requirement: the
// symbol's configured base threshold, a session-liquidity adjustment,
// a realized-volatility adjustment from the signal's ATR%, and the
// trend-alignment relation between the signal's direction and the
// SuperTrend direction recorded at generation time.
func confidenceFactorsFor(sig *store.TradingSignal, cfg *store.SymbolTradingConfig, now time.Time) decision.ConfidenceFactors {
	var snap signalSnapshot
	_ = json.Unmarshal([]byte(sig.IndicatorSnapshot), &snap)

	return decision.ConfidenceFactors{
		BaseThreshold:        cfg.MinConfidenceThreshold,
		SessionAdjustment:    sessionAdjustment(now),
		VolatilityAdjustment: volatilityAdjustment(snap.ATRPct),
		Trend:                trendRelationFor(sig.SignalType, snap.SupertrendUptrend),
	}
}

// sessionAdjustment lowers the confidence bar during the London/New York
// liquidity overlap (12:00-16:00 UTC, tightest spreads and deepest order
// books) and raises it in the off-hours gap between the NY close and the
// Asian session picking up (22:00-01:00 UTC, thin liquidity and noisy
// moves).
func sessionAdjustment(now time.Time) decimal.Decimal {
	hour := now.UTC().Hour()
	switch {
	case hour >= 12 && hour < 16:
		return decimal.NewFromInt(-5)
	case hour >= 22 || hour < 1:
		return decimal.NewFromInt(10)
	default:
		return decimal.Zero
	}
}

// volatilityAdjustment raises the confidence bar when a signal's ATR is a
// large fraction of price (choppier, less reliable moves) and relaxes it
// slightly in unusually calm conditions.
func volatilityAdjustment(atrPct decimal.Decimal) decimal.Decimal {
	switch {
	case atrPct.GreaterThan(decimal.NewFromFloat(1.5)):
		return decimal.NewFromInt(10)
	case atrPct.LessThan(decimal.NewFromFloat(0.3)) && atrPct.IsPositive():
		return decimal.NewFromInt(-5)
	default:
		return decimal.Zero
	}
}

// trendRelationFor compares a signal's direction against the SuperTrend
// direction recorded when it was generated.
func trendRelationFor(signalType store.SignalType, supertrendUptrend bool) decision.TrendRelation {
	switch signalType {
	case store.SignalBuy:
		if supertrendUptrend {
			return decision.TrendAligned
		}
		return decision.TrendOpposed
	case store.SignalSell:
		if !supertrendUptrend {
			return decision.TrendAligned
		}
		return decision.TrendOpposed
	default:
		return decision.TrendUnknown
	}
}

func (e *Engine) buildDecisionInput(acct store.Account, sig *store.TradingSignal, ps *store.ProtectionState, cfg *store.SymbolTradingConfig, limits decision.PositionLimits, bs *store.BrokerSymbol, tick *store.Tick, blackout bool) decision.Input {
	stopsLevel := decimal.Zero
	point := decimal.NewFromFloat(0.0001)
	volLimits := sizing.BrokerVolumeLimits{}
	pointValue := decimal.NewFromFloat(0.0001)
	if bs != nil {
		stopsLevel = decimal.NewFromInt(int64(bs.StopsLevel))
		point = bs.PointValue
		pointValue = bs.PointValue
		volLimits = sizing.BrokerVolumeLimits{Min: bs.VolumeMin, Max: bs.VolumeMax, Step: bs.VolumeStep}
	}

	tickAge := time.Hour
	spread := decimal.Zero
	if tick != nil {
		tickAge = time.Since(tick.Timestamp)
		spread = tick.Spread
	}

	slDist := sig.EntryPrice.Sub(sig.SL).Abs()
	slDistPips := decimal.Zero
	if !point.IsZero() {
		slDistPips = slDist.Div(point)
	}

	return decision.Input{
		AutoTradingEnabled: protection.CanTrade(ps),
		Protection:         ps,
		TerminalConnected:  e.Registry.IsConnected(acct.AccountNumber),
		Signal:             sig,
		Now:                time.Now(),
		MaxSignalAge:       e.Config.Timings.MaxSignalAge,
		SymbolConfig:       cfg,
		Confidence:         confidenceFactorsFor(sig, cfg, time.Now()),
		Limits: limits,
		Spread: decision.SpreadCheck{
			TickAge:          tickAge,
			TickMaxAge:       e.Config.Timings.TickStale,
			CurrentSpread:    spread,
			AbsoluteLimit:    point.Mul(decimal.NewFromInt(50)),
			RollingAvgSpread: spread,
			AvgMultiplier:    decimal.NewFromInt(3),
		},
		NewsBlackout:     blackout,
		StopsLevelPoints: stopsLevel,
		Point:            point,
		Sizing: sizing.Input{
			Balance:        acct.Balance,
			Symbol:         sig.Symbol,
			Confidence:     sig.Confidence,
			SLDistancePips: slDistPips,
			PipValue:       pointValue,
			BaseRiskPct:    e.Config.Risk.BaseRiskPct.Mul(cfg.RiskMultiplier).Div(decimal.NewFromInt(100)),
			Volume:         volLimits,
		},
		Enforce: sizing.EnforceInput{
			Symbol:            sig.Symbol,
			Balance:           acct.Balance,
			SLDistance:        slDist,
			PointValue:        pointValue,
			DefaultMaxRiskPct: e.Config.Risk.MaxRiskPctDefault.Div(decimal.NewFromInt(100)),
			Volume:            volLimits,
			StopsLevelPoints:  stopsLevel,
			Point:             point,
		},
	}
}

func (e *Engine) logDecision(ctx context.Context, sig *store.TradingSignal, outcome decision.Outcome) {
	decisionStr := "REJECTED"
	impact := store.ImpactLow
	if outcome.Approved {
		decisionStr = "APPROVED"
		impact = store.ImpactMedium
	}
	detail, _ := json.Marshal(map[string]string{"detail": outcome.Detail})
	tf := sig.Timeframe
	rec := &store.AIDecisionLog{
		DecisionType:      "TRADE_ENTRY",
		Decision:          decisionStr,
		Symbol:            sig.Symbol,
		Timeframe:         &tf,
		PrimaryReason:     string(outcome.Reason),
		DetailedReasoning: string(detail),
		ImpactLevel:       impact,
		ConfidenceScore:   &sig.Confidence,
		Timestamp:         time.Now().UTC(),
	}
	if err := e.Store.InsertDecisionLog(ctx, rec); err != nil {
		log.Error().Err(err).Msg("🚫 failed to persist decision log")
	}
}

func positionLimits(open []store.Trade, sig *store.TradingSignal, cfg *config.Config) decision.PositionLimits {
	var forSymbol, forTimeframe, correlationLot, global int
	group := correlationGroup(sig.Symbol)
	for _, t := range open {
		global++
		if t.Symbol == sig.Symbol {
			forSymbol++
		}
		if t.Symbol == sig.Symbol && t.Timeframe != nil && *t.Timeframe == sig.Timeframe {
			forTimeframe++
		}
		if correlationGroup(t.Symbol) == group {
			correlationLot++
		}
	}
	return decision.PositionLimits{
		OpenForSymbol:       forSymbol,
		OpenForTimeframe:     forTimeframe,
		TimeframeCap:         cfg.Limits.MaxPerSymbol,
		CorrelationGroupLot:  correlationLot,
		CorrelationCap:       cfg.Limits.MaxPerCurrencyGroup,
		GlobalOpen:           global,
		GlobalCap:            cfg.Limits.MaxTotalPositions,
	}
}

// correlationGroup buckets a symbol by its base currency/asset class —
// a simplified stand-in for a full currency-correlation matrix, enough
// to enforce the collective-exposure cap in the position-limit gate.
func correlationGroup(symbol string) string {
	switch {
	case strings.HasPrefix(symbol, "XAU"), strings.HasPrefix(symbol, "XAG"):
		return "METALS"
	case strings.HasPrefix(symbol, "BTC"), strings.HasPrefix(symbol, "ETH"):
		return "CRYPTO"
	case len(symbol) >= 3:
		return symbol[:3]
	default:
		return symbol
	}
}

func currencyOf(symbol string) string {
	if len(symbol) >= 3 {
		return symbol[:3]
	}
	return symbol
}

func defaultProtection(account int64, balance decimal.Decimal) store.ProtectionState {
	return store.ProtectionState{
		AccountNumber:           account,
		ProtectionEnabled:       true,
		MaxDailyLossPercent:     decimal.NewFromInt(2),
		MaxTotalDrawdownPercent: decimal.NewFromInt(20),
		TrackingDate:            time.Now().UTC().Format("2006-01-02"),
		InitialBalance:          balance,
		PeakEquity:              balance,
	}
}

func defaultSymbolConfig(account int64, symbol string) store.SymbolTradingConfig {
	return store.SymbolTradingConfig{
		AccountNumber:          account,
		Symbol:                 symbol,
		MinConfidenceThreshold: decimal.NewFromInt(60),
		RiskMultiplier:         decimal.NewFromInt(1),
		Status:                 store.SymbolActive,
	}
}

// EvaluateTrailingStops walks every open trade and, where the trailing
// manager's stage thresholds fire, issues a MODIFY_TRADE command with
// the new SL.
func (e *Engine) EvaluateTrailingStops(ctx context.Context) error {
	accounts, err := e.Store.AllAccounts(ctx)
	if err != nil {
		return err
	}
	for _, acct := range accounts {
		trades, err := e.Store.OpenTradesForAccount(ctx, acct.AccountNumber)
		if err != nil {
			log.Error().Err(err).Int64("account", acct.AccountNumber).Msg("🚫 failed to load open trades")
			continue
		}
		for _, t := range trades {
			e.evaluateTrailingOne(ctx, acct, t)
		}
	}
	return nil
}

func (e *Engine) evaluateTrailingOne(ctx context.Context, acct store.Account, t store.Trade) {
	tick, err := e.Store.LatestTick(ctx, t.Symbol)
	if err != nil || tick == nil {
		return
	}
	dir := trailing.DirBuy
	price := tick.Bid
	if t.Direction == "SELL" {
		dir = trailing.DirSell
		price = tick.Ask
	}
	bs, _ := e.Store.BrokerSymbolByCode(ctx, t.Symbol)
	point := decimal.Zero
	if bs != nil {
		point = bs.PointValue
	}
	result := trailing.Evaluate(trailing.Input{
		Direction:    dir,
		Entry:        t.OpenPrice,
		TP:           t.TP,
		CurrentSL:    t.SL,
		CurrentPrice: price,
		Spread:       tick.Spread,
		Lot:          t.Volume,
		Balance:      acct.Balance,
		Point:        point,
		MinTrail:     decimal.NewFromInt(5), // pips
	})
	if !result.ShouldMove {
		return
	}

	payload, _ := json.Marshal(map[string]any{"ticket": t.Ticket, "sl": result.NewSL, "tp": t.TP})
	cmd, err := e.Store.CreateCommand(ctx, acct.AccountNumber, store.CmdModifyTrade, string(payload))
	if err != nil {
		log.Error().Err(err).Msg("🚫 failed to persist trailing-stop command")
		return
	}
	if e.Queue != nil {
		if err := e.Queue.Push(ctx, acct.AccountNumber, cmd.ID); err != nil {
			log.Error().Err(err).Msg("🚫 failed to enqueue trailing-stop command")
		}
	}
	if err := e.Store.UpdateSLTP(ctx, t.ID, result.NewSL, t.TP, "SL_MODIFIED", string(result.Stage), "trailing_stop", price, tick.Spread); err != nil {
		log.Error().Err(err).Msg("🚫 failed to record trailing-stop move")
		return
	}
	if err := e.Store.IncrementTrailingMove(ctx, t.ID); err != nil {
		log.Error().Err(err).Msg("🚫 failed to increment trailing move counter")
	}
}

// EnforceProtection runs the daily reset and circuit-breaker auto-reset
// sweep across every account.
func (e *Engine) EnforceProtection(ctx context.Context) error {
	accounts, err := e.Store.AllAccounts(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, acct := range accounts {
		ps, err := e.Store.ProtectionFor(ctx, acct.AccountNumber, defaultProtection(acct.AccountNumber, acct.Balance))
		if err != nil {
			continue
		}
		protection.DailyReset(ps, now)
		if protection.MaybeAutoResetCircuitBreaker(ps, e.Config.Timings.CircuitCooldown, now) {
			e.Notifier.NotifyCircuitBreakerTripped(acct.AccountNumber, "auto-reset after cooldown")
		}
		if err := e.Store.SaveProtection(ctx, ps); err != nil {
			log.Error().Err(err).Msg("🚫 failed to persist protection state")
		}
	}
	return nil
}

// OnTradeClosed applies a closed trade's outcome to protection and the
// adaptive symbol config — the single call site both state machines hang
// off.
func (e *Engine) OnTradeClosed(ctx context.Context, acct store.Account, t store.Trade, recentBySymbol []adaptive.ClosedTrade) error {
	ps, err := e.Store.ProtectionFor(ctx, acct.AccountNumber, defaultProtection(acct.AccountNumber, acct.Balance))
	if err != nil {
		return err
	}
	protection.OnTradeClose(ps, t.Profit, acct.Equity, time.Now())
	if err := e.Store.SaveProtection(ctx, ps); err != nil {
		return err
	}
	if ps.CircuitBreakerTripped {
		e.Notifier.NotifyCircuitBreakerTripped(acct.AccountNumber, "total drawdown exceeded")
	}

	cfg, err := e.Store.SymbolConfigFor(ctx, acct.AccountNumber, t.Symbol, defaultSymbolConfig(acct.AccountNumber, t.Symbol))
	if err != nil {
		return err
	}
	adaptive.Update(cfg, recentBySymbol, time.Now())
	if err := e.Store.SaveSymbolConfig(ctx, cfg); err != nil {
		return err
	}

	reason := "MANUAL"
	if t.CloseReason != nil {
		reason = string(*t.CloseReason)
	}
	e.Notifier.NotifyTradeClosed(acct.AccountNumber, t.Symbol, t.Profit, reason)
	return nil
}

// PurgeRetention runs the data-retention sweeps (ticks, candles, expired
// signals, timed-out commands, aged decision-log rows).
func (e *Engine) PurgeRetention(ctx context.Context, tickWriter *marketdata.TickWriter) error {
	if err := tickWriter.PurgeRetention(ctx, time.Duration(e.Config.Timings.TickRetentionDays)*24*time.Hour); err != nil {
		return err
	}
	if _, err := e.Store.SweepExpiredSignals(ctx, time.Now().UTC()); err != nil {
		return err
	}
	if _, err := e.Store.SweepTimedOutCommands(ctx, e.Config.Timings.CmdTimeout); err != nil {
		return err
	}
	if _, err := e.Store.SweepDecisionLog(ctx, e.Config.Timings.AIDecisionLogRetention); err != nil {
		return err
	}
	return nil
}
