package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ProtectionFor returns the protection state for an account, creating a
// default (enabled) record on first access.
func (s *Store) ProtectionFor(ctx context.Context, accountNumber int64, defaults ProtectionState) (*ProtectionState, error) {
	var ps ProtectionState
	err := s.DB.WithContext(ctx).First(&ps, "account_number = ?", accountNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults.AccountNumber = accountNumber
		defaults.TrackingDate = time.Now().UTC().Format("2006-01-02")
		if err := s.DB.WithContext(ctx).Create(&defaults).Error; err != nil {
			return nil, err
		}
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

// SaveProtection persists the full protection state row.
func (s *Store) SaveProtection(ctx context.Context, ps *ProtectionState) error {
	return s.DB.WithContext(ctx).Save(ps).Error
}

// InsertDecisionLog appends an AIDecisionLog row.
func (s *Store) InsertDecisionLog(ctx context.Context, rec *AIDecisionLog) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return s.DB.WithContext(ctx).Create(rec).Error
}

// SweepDecisionLog deletes AIDecisionLog rows older than the retention
// window.
func (s *Store) SweepDecisionLog(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res := s.DB.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&AIDecisionLog{})
	return res.RowsAffected, res.Error
}

// ═══════════════════════════════════════════════════════════════════════════
// ADAPTIVE SYMBOL CONFIG
// ═══════════════════════════════════════════════════════════════════════════

// SymbolConfigFor returns the per-(account,symbol) adaptive config,
// creating a default active record on first access.
func (s *Store) SymbolConfigFor(ctx context.Context, accountNumber int64, symbol string, defaults SymbolTradingConfig) (*SymbolTradingConfig, error) {
	var cfg SymbolTradingConfig
	err := s.DB.WithContext(ctx).First(&cfg, "account_number = ? AND symbol = ?", accountNumber, symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults.AccountNumber = accountNumber
		defaults.Symbol = symbol
		defaults.UpdatedAt = time.Now().UTC()
		if err := s.DB.WithContext(ctx).Create(&defaults).Error; err != nil {
			return nil, err
		}
		return &defaults, nil
	}
	return &cfg, err
}

// SaveSymbolConfig persists an updated adaptive config row.
func (s *Store) SaveSymbolConfig(ctx context.Context, cfg *SymbolTradingConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	return s.DB.WithContext(ctx).Save(cfg).Error
}

// ═══════════════════════════════════════════════════════════════════════════
// INDICATOR SCORES (global)
// ═══════════════════════════════════════════════════════════════════════════

// IndicatorScoreFor returns the global score row for (symbol, timeframe,
// indicator), or a zero-value row if none exists yet.
func (s *Store) IndicatorScoreFor(ctx context.Context, symbol string, timeframe Timeframe, indicator string) (*IndicatorScore, error) {
	var sc IndicatorScore
	err := s.DB.WithContext(ctx).First(&sc, "symbol = ? AND timeframe = ? AND indicator_name = ?", symbol, timeframe, indicator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &IndicatorScore{Symbol: symbol, Timeframe: timeframe, IndicatorName: indicator}, nil
	}
	return &sc, err
}

// UpsertIndicatorScore writes back updated win-rate/profit-factor stats.
func (s *Store) UpsertIndicatorScore(ctx context.Context, sc *IndicatorScore) error {
	sc.LastUpdated = time.Now().UTC()
	return s.DB.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND indicator_name = ?", sc.Symbol, sc.Timeframe, sc.IndicatorName).
		Assign(*sc).
		FirstOrCreate(sc).Error
}

// ═══════════════════════════════════════════════════════════════════════════
// BROKER SYMBOLS
// ═══════════════════════════════════════════════════════════════════════════

// UpsertBrokerSymbol writes broker symbol specs (volume/stops/digits).
func (s *Store) UpsertBrokerSymbol(ctx context.Context, bs *BrokerSymbol) error {
	bs.UpdatedAt = time.Now().UTC()
	return s.DB.WithContext(ctx).Save(bs).Error
}

// BrokerSymbolByCode fetches a global symbol spec.
func (s *Store) BrokerSymbolByCode(ctx context.Context, symbol string) (*BrokerSymbol, error) {
	var bs BrokerSymbol
	err := s.DB.WithContext(ctx).First(&bs, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &bs, err
}
