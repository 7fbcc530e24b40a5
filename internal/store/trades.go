package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OpenTrade inserts a new open Trade. The unique partial index on
// (account_number, symbol) WHERE status='open' is the only concurrency
// control — a losing race returns IsUniqueViolation(err) == true rather
// than silently overwriting an existing position.
func (s *Store) OpenTrade(ctx context.Context, t *Trade) error {
	t.Status = TradeOpen
	if t.OpenTime.IsZero() {
		t.OpenTime = time.Now().UTC()
	}
	return s.DB.WithContext(ctx).Create(t).Error
}

// OpenTradeForSymbol returns the open trade for (account, symbol), if any.
func (s *Store) OpenTradeForSymbol(ctx context.Context, account int64, symbol string) (*Trade, error) {
	var t Trade
	err := s.DB.WithContext(ctx).
		Where("account_number = ? AND symbol = ? AND status = ?", account, symbol, TradeOpen).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// OpenTradesForAccount lists every open trade for an account.
func (s *Store) OpenTradesForAccount(ctx context.Context, account int64) ([]Trade, error) {
	var trades []Trade
	err := s.DB.WithContext(ctx).
		Where("account_number = ? AND status = ?", account, TradeOpen).
		Find(&trades).Error
	return trades, err
}

// RecentClosedTrades returns the most recently closed trades for an
// (account, symbol), newest first — the rolling window the adaptive
// symbol config recomputes win rate and regime preference over.
func (s *Store) RecentClosedTrades(ctx context.Context, account int64, symbol string, limit int) ([]Trade, error) {
	var trades []Trade
	err := s.DB.WithContext(ctx).
		Where("account_number = ? AND symbol = ? AND status = ?", account, symbol, TradeClosed).
		Order("close_time DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

// CloseTrade marks a trade closed and appends its terminal fields. A closed
// trade never becomes open again (enforced here by only updating rows
// still in the open state).
func (s *Store) CloseTrade(ctx context.Context, tradeID uint64, closePrice, profit decimal.Decimal, reason CloseReason) error {
	now := time.Now().UTC()
	res := s.DB.WithContext(ctx).Model(&Trade{}).
		Where("id = ? AND status = ?", tradeID, TradeOpen).
		Updates(map[string]any{
			"status":       TradeClosed,
			"close_price":  closePrice,
			"close_time":   now,
			"profit":       profit,
			"close_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSLTP updates a trade's SL/TP and appends a TradeHistoryEvent,
// used by both drift reconciliation and trailing-stop moves.
func (s *Store) UpdateSLTP(ctx context.Context, tradeID uint64, newSL, newTP decimal.Decimal, eventType, reason, source string, priceAtChange, spreadAtChange decimal.Decimal) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t Trade
		if err := tx.First(&t, "id = ?", tradeID).Error; err != nil {
			return err
		}
		oldValue := t.SL
		if err := tx.Model(&t).Updates(map[string]any{"sl": newSL, "tp": newTP}).Error; err != nil {
			return err
		}
		evt := TradeHistoryEvent{
			TradeID:        tradeID,
			EventType:      eventType,
			OldValue:       oldValue,
			NewValue:       newSL,
			Reason:         reason,
			Source:         source,
			PriceAtChange:  priceAtChange,
			SpreadAtChange: spreadAtChange,
			Timestamp:      time.Now().UTC(),
		}
		return tx.Create(&evt).Error
	})
}

// IncrementTrailingMove bumps a trade's trailing-stop counters.
func (s *Store) IncrementTrailingMove(ctx context.Context, tradeID uint64) error {
	return s.DB.WithContext(ctx).Model(&Trade{}).
		Where("id = ?", tradeID).
		Updates(map[string]any{
			"trailing_stop_active": true,
			"trailing_stop_moves":  gorm.Expr("trailing_stop_moves + 1"),
		}).Error
}
