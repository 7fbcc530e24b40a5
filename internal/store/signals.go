package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ExpireActiveSignals transitions any active signal for (symbol, timeframe)
// to expired — called before inserting a new one. Signals past their
// expiry are swept separately by SweepExpiredSignals.
func (s *Store) ExpireActiveSignals(ctx context.Context, symbol string, timeframe Timeframe) error {
	return s.DB.WithContext(ctx).Model(&TradingSignal{}).
		Where("symbol = ? AND timeframe = ? AND status = ?", symbol, timeframe, SignalActive).
		Update("status", SignalExpired).Error
}

// SweepExpiredSignals expires every active signal whose expires_at has
// passed, regardless of symbol — used by the periodic worker.
func (s *Store) SweepExpiredSignals(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&TradingSignal{}).
		Where("status = ? AND expires_at < ?", SignalActive, now).
		Update("status", SignalExpired)
	return res.RowsAffected, res.Error
}

// CreateSignal expires any prior active signal for the pair then inserts
// the new one, inside one transaction so the partial unique index never
// sees two rows race.
func (s *Store) CreateSignal(ctx context.Context, sig *TradingSignal) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&TradingSignal{}).
			Where("symbol = ? AND timeframe = ? AND status = ?", sig.Symbol, sig.Timeframe, SignalActive).
			Update("status", SignalExpired).Error; err != nil {
			return err
		}
		sig.Status = SignalActive
		if sig.CreatedAt.IsZero() {
			sig.CreatedAt = time.Now().UTC()
		}
		return tx.Create(sig).Error
	})
}

// ActiveSignal returns the active signal for (symbol, timeframe), if any.
func (s *Store) ActiveSignal(ctx context.Context, symbol string, timeframe Timeframe) (*TradingSignal, error) {
	var sig TradingSignal
	err := s.DB.WithContext(ctx).
		Where("symbol = ? AND timeframe = ? AND status = ?", symbol, timeframe, SignalActive).
		First(&sig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &sig, err
}

// ActiveSignals returns every currently active signal, for the decision
// pipeline's per-tick evaluation pass.
func (s *Store) ActiveSignals(ctx context.Context) ([]TradingSignal, error) {
	var sigs []TradingSignal
	err := s.DB.WithContext(ctx).Where("status = ?", SignalActive).Find(&sigs).Error
	return sigs, err
}

// MarkSignalExecuted transitions a signal to executed once its command has
// been emitted.
func (s *Store) MarkSignalExecuted(ctx context.Context, signalID uint64) error {
	return s.DB.WithContext(ctx).Model(&TradingSignal{}).
		Where("id = ?", signalID).
		Update("status", SignalExecuted).Error
}
