// Package config loads the engine's configuration surface from the
// environment via a single env-var-driven Load() call.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ServerConfig holds the four MT5 ingress ports.
type ServerConfig struct {
	ControlPort int
	TickPort    int
	TradePort   int
	LogPort     int
}

// DBConfig holds the relational store connection settings.
type DBConfig struct {
	URL      string
	Driver   string // "postgres" or "sqlite"
	PoolSize int
}

// CacheConfig holds the Redis connection settings.
type CacheConfig struct {
	URL string
}

// Timings holds every named duration from the external interfaces config
// surface, in seconds unless noted.
type Timings struct {
	MaxSignalAge       time.Duration
	CmdTimeout         time.Duration
	HeartbeatLost      time.Duration
	TickStale          time.Duration
	CircuitCooldown    time.Duration
	SLCooldown         time.Duration
	IndicatorCacheTTL  time.Duration
	TickRetentionDays  int
	AIDecisionLogRetention time.Duration
}

// RiskDefaults holds the named risk-default fields.
type RiskDefaults struct {
	MaxDailyLossPct      decimal.Decimal
	MaxTotalDrawdownPct  decimal.Decimal
	MaxRiskPctDefault    decimal.Decimal
	BaseRiskPct          decimal.Decimal
	MinGenerationConfidence decimal.Decimal
	BuyAdvantage         int
	BuyConfidencePenalty decimal.Decimal
}

// Limits holds position/correlation/circuit-breaker limits.
type Limits struct {
	MaxTotalPositions   int
	MaxPerSymbol        int
	MaxPerCurrencyGroup int
	CBThreshold         int
}

// TrailingStages holds the four progress thresholds for the trailing-stop
// manager.
type TrailingStages struct {
	BreakevenAtPct decimal.Decimal
	PartialAtPct   decimal.Decimal
	AggressiveAtPct decimal.Decimal
	NearTPAtPct    decimal.Decimal
}

// Config is the fully resolved configuration surface.
type Config struct {
	Debug bool

	Server   ServerConfig
	DB       DBConfig
	Cache    CacheConfig
	Timings  Timings
	Risk     RiskDefaults
	Limits   Limits
	Trailing TrailingStages

	GetCommandsBatchSize int

	// BrokerTimeOffset is the broker terminal clock's offset from UTC
	// (MT5 brokers typically run EET/EEST, UTC+2/+3, shifting with DST).
	BrokerTimeOffset time.Duration

	// APIKeyEncryptionKey seeds the store's at-rest encryption of issued
	// api_keys, so a repeat /api/connect can return the same key instead
	// of a blank one. Must be set in production; the fallback is only
	// safe for a single local/dev process.
	APIKeyEncryptionKey string
}

// Load reads the configuration surface from the environment, applying
// production-sane defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Debug: envBool("DEBUG", false),
		Server: ServerConfig{
			ControlPort: envInt("CONTROL_PORT", 9900),
			TickPort:    envInt("TICK_PORT", 9901),
			TradePort:   envInt("TRADE_PORT", 9902),
			LogPort:     envInt("LOG_PORT", 9903),
		},
		DB: DBConfig{
			URL:      envStr("DATABASE_URL", "postgres://localhost/mt5engine?sslmode=disable"),
			Driver:   envStr("DATABASE_DRIVER", "postgres"),
			PoolSize: envInt("DB_POOL_SIZE", 20),
		},
		Cache: CacheConfig{
			URL: envStr("REDIS_URL", "redis://localhost:6379/0"),
		},
		Timings: Timings{
			MaxSignalAge:           envSeconds("MAX_SIGNAL_AGE", 300),
			CmdTimeout:             envSeconds("T_CMD_TIMEOUT", 300),
			HeartbeatLost:          envSeconds("T_HB_LOST", 300),
			TickStale:              envSeconds("T_TICK_STALE", 180),
			CircuitCooldown:        envSeconds("CB_COOLDOWN", 300),
			SLCooldown:             envSeconds("SL_COOLDOWN", 3600),
			IndicatorCacheTTL:      envSeconds("INDICATOR_CACHE_TTL", 15),
			TickRetentionDays:      envInt("TICK_RETENTION_DAYS", 7),
			AIDecisionLogRetention: envSeconds("AI_DECISION_LOG_RETENTION", 48*3600),
		},
		Risk: RiskDefaults{
			MaxDailyLossPct:         envDecimal("MAX_DAILY_LOSS_PCT", 2.0),
			MaxTotalDrawdownPct:     envDecimal("MAX_TOTAL_DD_PCT", 20.0),
			MaxRiskPctDefault:       envDecimal("MAX_RISK_PCT_DEFAULT", 2.0),
			BaseRiskPct:             envDecimal("BASE_RISK_PCT", 1.0),
			MinGenerationConfidence: envDecimal("MIN_GENERATION_CONFIDENCE", 50),
			BuyAdvantage:            envInt("BUY_ADVANTAGE", 2),
			BuyConfidencePenalty:    envDecimal("BUY_CONFIDENCE_PENALTY", 3),
		},
		Limits: Limits{
			MaxTotalPositions:   envInt("MAX_TOTAL_POSITIONS", 10),
			MaxPerSymbol:        envInt("MAX_PER_SYMBOL", 1),
			MaxPerCurrencyGroup: envInt("MAX_PER_CURRENCY_GROUP", 2),
			CBThreshold:         envInt("CB_THRESHOLD", 5),
		},
		Trailing: TrailingStages{
			BreakevenAtPct:  envDecimal("BREAKEVEN_AT_PCT", 30),
			PartialAtPct:    envDecimal("PARTIAL_AT_PCT", 50),
			AggressiveAtPct: envDecimal("AGGRESSIVE_AT_PCT", 75),
			NearTPAtPct:     envDecimal("NEAR_TP_AT_PCT", 90),
		},
		GetCommandsBatchSize: envInt("GET_COMMANDS_BATCH_SIZE", 10),
		BrokerTimeOffset:     envSeconds("BROKER_TIME_OFFSET_SECONDS", 2*3600),
		APIKeyEncryptionKey:  envStr("API_KEY_ENCRYPTION_KEY", "dev-only-insecure-key-change-me"),
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envSeconds(key string, fallbackSeconds int) time.Duration {
	secs := envInt(key, fallbackSeconds)
	return time.Duration(secs) * time.Second
}

func envDecimal(key string, fallback float64) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.NewFromFloat(fallback)
}
