// Package marketdata buffers inbound ticks per symbol and flushes them in
// batches to persistence, and ingests historical OHLC candles converting
// broker-time to UTC, behind a mutex-guarded slice with periodic
// recompute adapted to batched writes.
package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/store"
)

// TickWriter accumulates ticks keyed by symbol and flushes them to the
// store on a fixed interval, deduplicating by (symbol, timestamp) within
// the buffer before each flush.
type TickWriter struct {
	mu     sync.Mutex
	buffer map[string][]store.Tick
	store  *store.Store
}

// NewTickWriter creates a tick writer bound to a store.
func NewTickWriter(s *store.Store) *TickWriter {
	return &TickWriter{
		buffer: make(map[string][]store.Tick),
		store:  s,
	}
}

// Ingest appends a tick to the in-memory buffer for its symbol.
func (w *TickWriter) Ingest(symbol string, bid, ask decimal.Decimal, ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	spread := ask.Sub(bid)
	w.buffer[symbol] = append(w.buffer[symbol], store.Tick{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Spread:    spread,
		Timestamp: ts,
	})
}

// Flush drains the buffer, dedupes by (symbol, timestamp), and writes the
// batch to the store. Called by a ticker roughly every second.
func (w *TickWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}
	pending := w.buffer
	w.buffer = make(map[string][]store.Tick)
	w.mu.Unlock()

	var batch []store.Tick
	for _, ticks := range pending {
		seen := make(map[int64]struct{}, len(ticks))
		for _, t := range ticks {
			key := t.Timestamp.UnixNano()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			batch = append(batch, t)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	if err := w.store.InsertTicks(ctx, batch); err != nil {
		return err
	}
	log.Debug().Int("count", len(batch)).Msg("📈 flushed tick batch")
	return nil
}

// PurgeRetention deletes ticks older than tickRetention and OHLC candles
// past their timeframe-specific retention horizon. Run hourly by the
// supervisor's retention-purge worker.
func (w *TickWriter) PurgeRetention(ctx context.Context, tickRetention time.Duration) error {
	deleted, err := w.store.PurgeOldTicks(ctx, tickRetention)
	if err != nil {
		return err
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("🧹 purged aged ticks")
	}
	for _, tf := range []store.Timeframe{store.M1, store.M5, store.M15, store.M30, store.H1, store.H4, store.D1} {
		n, err := w.store.PurgeOldCandles(ctx, tf)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info().Str("timeframe", string(tf)).Int64("deleted", n).Msg("🧹 purged aged candles")
		}
	}
	return nil
}

// HistoricalImporter handles /api/ohlc/historical ingestion: converting
// broker-time to UTC at the ingress boundary and reporting
// imported/skipped counts.
type HistoricalImporter struct {
	store *store.Store
}

// NewHistoricalImporter creates an importer bound to a store.
func NewHistoricalImporter(s *store.Store) *HistoricalImporter {
	return &HistoricalImporter{store: s}
}

// RawCandle is the wire shape a terminal submits: broker-local timestamps,
// string-encoded decimals.
type RawCandle struct {
	Symbol    string
	Timeframe store.Timeframe
	// BrokerTime is the candle open time in the broker's local clock
	// (typically EET/EEST).
	BrokerTime time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
}

// Import converts broker-time to UTC and persists the batch, rejecting
// duplicates on the (symbol, timeframe, timestamp) unique constraint.
func (h *HistoricalImporter) Import(ctx context.Context, brokerOffset time.Duration, raws []RawCandle) (imported, skipped int, err error) {
	candles := make([]store.OHLCCandle, 0, len(raws))
	for _, r := range raws {
		candles = append(candles, store.OHLCCandle{
			Symbol:    r.Symbol,
			Timeframe: r.Timeframe,
			Timestamp: brokerTimeToUTC(r.BrokerTime, brokerOffset),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	return h.store.InsertCandles(ctx, candles)
}

// BrokerTimeToUTC converts a broker-local timestamp to UTC. MT5 brokers
// typically run on EET/EEST (UTC+2/+3); the offset is passed in rather
// than hardcoded since it varies by broker and DST rules — this is the
// single conversion point ingress handlers and the historical importer
// both funnel through.
func BrokerTimeToUTC(brokerTime time.Time, offset time.Duration) time.Time {
	return brokerTime.Add(-offset).UTC()
}

func brokerTimeToUTC(brokerTime time.Time, offset time.Duration) time.Time {
	return BrokerTimeToUTC(brokerTime, offset)
}
