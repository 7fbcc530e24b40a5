package store

import (
	"context"
	"time"
)

// InsertTicks batch-inserts ticks (dedup within the batch is the caller's
// responsibility — the in-memory buffer in internal/marketdata dedupes by
// (symbol, timestamp) before flushing).
func (s *Store) InsertTicks(ctx context.Context, ticks []Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).CreateInBatches(ticks, 500).Error
}

// LatestTick returns the most recent tick for a symbol, used by the spread
// gate and OHLC aggregation.
func (s *Store) LatestTick(ctx context.Context, symbol string) (*Tick, error) {
	var t Tick
	err := s.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp DESC").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PurgeOldTicks deletes ticks older than the retention horizon.
func (s *Store) PurgeOldTicks(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res := s.DB.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&Tick{})
	return res.RowsAffected, res.Error
}

// InsertCandles inserts a batch of OHLC candles, skipping duplicates on the
// unique (symbol, timeframe, timestamp) constraint and reporting an
// imported/skipped count for the caller.
func (s *Store) InsertCandles(ctx context.Context, candles []OHLCCandle) (imported, skipped int, err error) {
	for _, c := range candles {
		res := s.DB.WithContext(ctx).
			Where("symbol = ? AND timeframe = ? AND timestamp = ?", c.Symbol, c.Timeframe, c.Timestamp).
			FirstOrCreate(&c)
		if res.Error != nil {
			return imported, skipped, res.Error
		}
		if res.RowsAffected == 1 {
			imported++
		} else {
			skipped++
		}
	}
	return imported, skipped, nil
}

// RecentCandles returns the last `limit` candles for (symbol, timeframe),
// oldest first — the window the indicator engine operates on.
func (s *Store) RecentCandles(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]OHLCCandle, error) {
	var candles []OHLCCandle
	err := s.DB.WithContext(ctx).
		Where("symbol = ? AND timeframe = ?", symbol, timeframe).
		Order("timestamp DESC").
		Limit(limit).
		Find(&candles).Error
	if err != nil {
		return nil, err
	}
	// reverse to oldest-first
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// PurgeOldCandles deletes candles for a timeframe older than its retention
// horizon.
func (s *Store) PurgeOldCandles(ctx context.Context, timeframe Timeframe) (int64, error) {
	cutoff := time.Now().UTC().Add(-RetentionFor(timeframe))
	res := s.DB.WithContext(ctx).
		Where("timeframe = ? AND timestamp < ?", timeframe, cutoff).
		Delete(&OHLCCandle{})
	return res.RowsAffected, res.Error
}

// ═══════════════════════════════════════════════════════════════════════════
// SUBSCRIBED SYMBOLS
// ═══════════════════════════════════════════════════════════════════════════

// Subscribe records that an account's terminal streams ticks for a symbol.
// Idempotent — resubscribing the same pair is a no-op.
func (s *Store) Subscribe(ctx context.Context, accountNumber int64, symbol string) error {
	sub := SubscribedSymbol{AccountNumber: accountNumber, Symbol: symbol, CreatedAt: time.Now().UTC()}
	return s.DB.WithContext(ctx).
		Where("account_number = ? AND symbol = ?", accountNumber, symbol).
		FirstOrCreate(&sub).Error
}

// Unsubscribe drops a (account, symbol) subscription.
func (s *Store) Unsubscribe(ctx context.Context, accountNumber int64, symbol string) error {
	return s.DB.WithContext(ctx).
		Where("account_number = ? AND symbol = ?", accountNumber, symbol).
		Delete(&SubscribedSymbol{}).Error
}

// SubscribedSymbolsFor lists every symbol an account is subscribed to.
func (s *Store) SubscribedSymbolsFor(ctx context.Context, accountNumber int64) ([]SubscribedSymbol, error) {
	var subs []SubscribedSymbol
	err := s.DB.WithContext(ctx).Where("account_number = ?", accountNumber).Find(&subs).Error
	return subs, err
}
