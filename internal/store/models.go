// Package store is the durable persistence layer: accounts, positions,
// market data, commands, signals, protection state, and the audit log.
// GORM is the access layer; Postgres is the primary driver with SQLite
// wired for local/dev and test use.
package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is identified by the external terminal account number. Created on
// first connect, never deleted, mutated only by heartbeat/transaction
// handlers.
type Account struct {
	AccountNumber   int64  `gorm:"primaryKey"`
	APIKeyHash      string `gorm:"uniqueIndex;not null"`
	APIKeyEncrypted string `gorm:"not null"` // recoverable ciphertext, for idempotent re-connect
	Broker          string
	Platform        string
	Balance         decimal.Decimal `gorm:"type:decimal(20,2)"`
	Equity          decimal.Decimal `gorm:"type:decimal(20,2)"`
	Margin          decimal.Decimal `gorm:"type:decimal(20,2)"`
	FreeMargin      decimal.Decimal `gorm:"type:decimal(20,2);column:free_margin"`
	LastHeartbeat   time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BrokerSymbol is global (not per-account): symbol specs written by the
// symbol-spec ingress and read everywhere a trade is sized or validated.
type BrokerSymbol struct {
	Symbol      string `gorm:"primaryKey"`
	VolumeMin   decimal.Decimal `gorm:"type:decimal(20,8)"`
	VolumeMax   decimal.Decimal `gorm:"type:decimal(20,8)"`
	VolumeStep  decimal.Decimal `gorm:"type:decimal(20,8)"`
	StopsLevel  int // points
	FreezeLevel int // points
	Digits      int
	PointValue  decimal.Decimal `gorm:"type:decimal(20,8)"`
	TradeMode   string
	UpdatedAt   time.Time
}

// SubscribedSymbol records that an account's terminal streams ticks and
// accepts trades on a symbol.
type SubscribedSymbol struct {
	AccountNumber int64  `gorm:"primaryKey"`
	Symbol        string `gorm:"primaryKey"`
	CreatedAt     time.Time
}

// Tick is global (shared across accounts). Retention: 7 days.
type Tick struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol    string `gorm:"index:idx_tick_symbol_time"`
	Bid       decimal.Decimal `gorm:"type:decimal(20,8)"`
	Ask       decimal.Decimal `gorm:"type:decimal(20,8)"`
	Spread    decimal.Decimal `gorm:"type:decimal(20,8)"`
	Volume    decimal.Decimal `gorm:"type:decimal(20,8)"`
	Timestamp time.Time       `gorm:"index:idx_tick_symbol_time"`
}

// Timeframe enumerates the supported OHLC aggregation windows.
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
)

// RetentionFor returns the retention horizon for a timeframe
func RetentionFor(tf Timeframe) time.Duration {
	switch tf {
	case M1, M5:
		return 2 * 24 * time.Hour
	case M15:
		return 3 * 24 * time.Hour
	case H1:
		return 7 * 24 * time.Hour
	case H4:
		return 14 * 24 * time.Hour
	case D1:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// OHLCCandle is global, unique on (symbol, timeframe, timestamp).
type OHLCCandle struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	Symbol    string          `gorm:"uniqueIndex:idx_candle_unique"`
	Timeframe Timeframe       `gorm:"uniqueIndex:idx_candle_unique"`
	Timestamp time.Time       `gorm:"uniqueIndex:idx_candle_unique"`
	Open      decimal.Decimal `gorm:"type:decimal(20,8)"`
	High      decimal.Decimal `gorm:"type:decimal(20,8)"`
	Low       decimal.Decimal `gorm:"type:decimal(20,8)"`
	Close     decimal.Decimal `gorm:"type:decimal(20,8)"`
	Volume    decimal.Decimal `gorm:"type:decimal(20,8)"`
}

// SignalType enumerates the directional outcome of the signal generator.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// SignalStatus is the lifecycle state of a TradingSignal.
type SignalStatus string

const (
	SignalActive   SignalStatus = "active"
	SignalExpired  SignalStatus = "expired"
	SignalExecuted SignalStatus = "executed"
	SignalIgnored  SignalStatus = "ignored"
)

// TradingSignal is global. At most one `active` signal per (symbol,
// timeframe) — enforced by a partial unique index (see Store.migrate in store.go).
type TradingSignal struct {
	ID                uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol            string `gorm:"index:idx_signal_symbol_tf"`
	Timeframe         Timeframe `gorm:"index:idx_signal_symbol_tf"`
	SignalType        SignalType
	Confidence        decimal.Decimal `gorm:"type:decimal(6,2)"`
	EntryPrice        decimal.Decimal `gorm:"type:decimal(20,8)"`
	SL                decimal.Decimal `gorm:"type:decimal(20,8)"`
	TP                decimal.Decimal `gorm:"type:decimal(20,8)"`
	IndicatorSnapshot string          `gorm:"type:jsonb"` // encoded IndicatorSnapshot
	Patterns          string          `gorm:"type:jsonb"`
	Status            SignalStatus    `gorm:"index"`
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// CommandType enumerates the kinds of commands issued to a terminal.
type CommandType string

const (
	CmdOpenTrade             CommandType = "OPEN_TRADE"
	CmdCloseTrade            CommandType = "CLOSE_TRADE"
	CmdModifyTrade           CommandType = "MODIFY_TRADE"
	CmdRequestOHLC           CommandType = "REQUEST_OHLC"
	CmdRequestHistoricalData CommandType = "REQUEST_HISTORICAL_DATA"
)

// CommandStatus tracks the monotonic pending→sent→{completed,failed}
// transition.
type CommandStatus string

const (
	CmdPending   CommandStatus = "pending"
	CmdSent      CommandStatus = "sent"
	CmdCompleted CommandStatus = "completed"
	CmdFailed    CommandStatus = "failed"
)

// Command carries a client-generated UUID — relying on DB auto-increment
// previously caused NOT-NULL violations during migrations.
type Command struct {
	ID            string `gorm:"primaryKey"` // uuid, client-generated
	AccountNumber int64  `gorm:"index"`
	Type          CommandType
	Payload       string `gorm:"type:jsonb"`
	Status        CommandStatus `gorm:"index"`
	Response      string        `gorm:"type:jsonb"`
	CreatedAt     time.Time
	ExecutedAt    *time.Time
}

// TradeStatus is open or closed; a closed trade never reopens.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// TradeSource records who originated the trade.
type TradeSource string

const (
	SourceAutoTrade  TradeSource = "autotrade"
	SourceEACommand  TradeSource = "ea_command"
	SourceMT5Manual  TradeSource = "mt5_manual"
)

// CloseReason records why a trade closed.
type CloseReason string

const (
	CloseTPHit            CloseReason = "TP_HIT"
	CloseSLHit            CloseReason = "SL_HIT"
	CloseTrailingStop     CloseReason = "TRAILING_STOP"
	CloseManual           CloseReason = "MANUAL"
	CloseTimeout          CloseReason = "TIMEOUT"
	CloseOpportunityCost  CloseReason = "OPPORTUNITY_COST"
)

// Trade is the core position record. At most one `open` trade per
// (account, symbol) — enforced by a partial unique index.
type Trade struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	AccountNumber   int64  `gorm:"index:idx_trade_account_symbol"`
	Ticket          int64  `gorm:"uniqueIndex"`
	Symbol          string `gorm:"index:idx_trade_account_symbol"`
	Direction       string // BUY / SELL
	Volume          decimal.Decimal `gorm:"type:decimal(20,8)"`
	OpenPrice       decimal.Decimal `gorm:"type:decimal(20,8)"`
	OpenTime        time.Time
	ClosePrice      *decimal.Decimal `gorm:"type:decimal(20,8)"`
	CloseTime       *time.Time
	SL              decimal.Decimal `gorm:"type:decimal(20,8)"`
	TP              decimal.Decimal `gorm:"type:decimal(20,8)"`
	InitialSL       decimal.Decimal `gorm:"type:decimal(20,8)"`
	InitialTP       decimal.Decimal `gorm:"type:decimal(20,8)"`
	Profit          decimal.Decimal `gorm:"type:decimal(20,2)"`
	Commission      decimal.Decimal `gorm:"type:decimal(20,2)"`
	Swap            decimal.Decimal `gorm:"type:decimal(20,2)"`
	Status          TradeStatus     `gorm:"index"`
	Source          TradeSource
	CommandID       *string
	SignalID        *uint64
	EntryConfidence *decimal.Decimal `gorm:"type:decimal(6,2)"`
	Timeframe       *Timeframe
	CloseReason     *CloseReason
	MFE             decimal.Decimal `gorm:"type:decimal(20,8)"`
	MAE             decimal.Decimal `gorm:"type:decimal(20,8)"`
	TrailingStopActive bool
	TrailingStopMoves  int
	EntryBid        *decimal.Decimal `gorm:"type:decimal(20,8)"`
	EntryAsk        *decimal.Decimal `gorm:"type:decimal(20,8)"`
	EntrySpread     *decimal.Decimal `gorm:"type:decimal(20,8)"`
	Session         *string
}

// TradeHistoryEvent is an append-only audit log of SL/TP changes, owned by
// its Trade.
type TradeHistoryEvent struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	TradeID        uint64 `gorm:"index"`
	EventType      string // SL_MODIFIED, TP_MODIFIED, ...
	OldValue       decimal.Decimal `gorm:"type:decimal(20,8)"`
	NewValue       decimal.Decimal `gorm:"type:decimal(20,8)"`
	Reason         string
	Source         string
	PriceAtChange  decimal.Decimal `gorm:"type:decimal(20,8)"`
	SpreadAtChange decimal.Decimal `gorm:"type:decimal(20,8)"`
	Timestamp      time.Time
}

// SymbolConfigStatus is the adaptive enable/disable state for a symbol.
type SymbolConfigStatus string

const (
	SymbolActive   SymbolConfigStatus = "active"
	SymbolPaused   SymbolConfigStatus = "paused"
	SymbolDisabled SymbolConfigStatus = "disabled"
)

// SymbolTradingConfig is adaptive, mutated after each trade closes.
type SymbolTradingConfig struct {
	AccountNumber          int64  `gorm:"primaryKey"`
	Symbol                 string `gorm:"primaryKey"`
	Direction              *string
	MinConfidenceThreshold decimal.Decimal `gorm:"type:decimal(6,2)"`
	RiskMultiplier         decimal.Decimal `gorm:"type:decimal(6,2)"`
	Status                 SymbolConfigStatus
	RollingWinRate         decimal.Decimal `gorm:"type:decimal(6,2)"`
	ConsecutiveWins        int
	ConsecutiveLosses      int
	PauseReason            *string
	PausedAt               *time.Time
	PreferredRegime        *string
	UpdatedAt              time.Time
}

// IndicatorScore is global (no account): (symbol, timeframe, indicator) →
// historical performance, used to weight confidence.
type IndicatorScore struct {
	Symbol        string `gorm:"uniqueIndex:idx_score_unique"`
	Timeframe     Timeframe `gorm:"uniqueIndex:idx_score_unique"`
	IndicatorName string    `gorm:"uniqueIndex:idx_score_unique"`
	WinRate       decimal.Decimal `gorm:"type:decimal(6,2)"`
	ProfitFactor  decimal.Decimal `gorm:"type:decimal(10,4)"`
	TotalSignals  int
	LastUpdated   time.Time
}

// ProtectionState is 1:1 with an account.
type ProtectionState struct {
	AccountNumber            int64 `gorm:"primaryKey"`
	ProtectionEnabled        bool
	MaxDailyLossPercent      decimal.Decimal `gorm:"type:decimal(6,2)"`
	MaxDailyLossEUR          *decimal.Decimal `gorm:"type:decimal(20,2)"`
	MaxTotalDrawdownPercent  decimal.Decimal  `gorm:"type:decimal(6,2)"`
	PauseAfterConsecLosses   int
	CircuitBreakerTripped    bool
	TrackingDate             string // YYYY-MM-DD (UTC)
	DailyPnL                 decimal.Decimal `gorm:"type:decimal(20,2)"`
	LimitReached             bool
	AutoTradingDisabledAt    *time.Time
	InitialBalance           decimal.Decimal `gorm:"type:decimal(20,2)"`
	PeakEquity               decimal.Decimal `gorm:"type:decimal(20,2)"`
	CmdFailureStreak         int
	CircuitTrippedAt         *time.Time
}

// ImpactLevel classifies a decision log entry's severity.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "LOW"
	ImpactMedium   ImpactLevel = "MEDIUM"
	ImpactHigh     ImpactLevel = "HIGH"
	ImpactCritical ImpactLevel = "CRITICAL"
)

// AIDecisionLog is an append-only record of every accept/reject at the
// decision pipeline. Retention 48h (configurable) resolution
// of the open question.
type AIDecisionLog struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement"`
	DecisionType     string
	Decision         string // APPROVED / REJECTED
	Symbol           string `gorm:"index"`
	Timeframe        *Timeframe
	PrimaryReason    string
	DetailedReasoning string `gorm:"type:jsonb"`
	ImpactLevel      ImpactLevel
	ConfidenceScore  *decimal.Decimal `gorm:"type:decimal(6,2)"`
	RiskScore        *decimal.Decimal `gorm:"type:decimal(6,2)"`
	Timestamp        time.Time        `gorm:"index"`
}

// AllModels lists every model for AutoMigrate.
func AllModels() []any {
	return []any{
		&Account{},
		&BrokerSymbol{},
		&SubscribedSymbol{},
		&Tick{},
		&OHLCCandle{},
		&TradingSignal{},
		&Command{},
		&Trade{},
		&TradeHistoryEvent{},
		&SymbolTradingConfig{},
		&IndicatorScore{},
		&ProtectionState{},
		&AIDecisionLog{},
	}
}
