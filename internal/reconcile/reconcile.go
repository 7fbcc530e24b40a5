// Package reconcile implements the periodic reconciliation loop: the
// server's view of open trades is cross-checked against each terminal's
// own report, new trades are inserted, trades the terminal no longer
// reports are closed with an inferred reason, and SL/TP drift is
// written back with a TradeHistoryEvent, built on internal/store's
// trade CRUD (OpenTrade, CloseTrade, UpdateSLTP).
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/store"
)

// TerminalTrade is one position line from a terminal's trade report.
type TerminalTrade struct {
	Ticket     int64
	Symbol     string
	Direction  string
	Volume     decimal.Decimal
	OpenPrice  decimal.Decimal
	OpenTime   time.Time
	SL         decimal.Decimal
	TP         decimal.Decimal
	ClosePrice *decimal.Decimal
	CloseTime  *time.Time
	Profit     decimal.Decimal
	Commission decimal.Decimal
	Swap       decimal.Decimal
}

// CloseTolerance is the price proximity within which a close price is
// considered a hit on SL or TP rather than a manual close.
var CloseTolerance = decimal.NewFromFloat(0.0005)

// InferCloseReason compares the close price against the trade's SL/TP
// (within CloseTolerance) and its trailing-stop-active flag to classify
// why a trade closed.
func InferCloseReason(t store.Trade, closePrice decimal.Decimal) store.CloseReason {
	if !t.TP.IsZero() && closePrice.Sub(t.TP).Abs().LessThanOrEqual(CloseTolerance) {
		return store.CloseTPHit
	}
	if !t.SL.IsZero() && closePrice.Sub(t.SL).Abs().LessThanOrEqual(CloseTolerance) {
		if t.TrailingStopActive && !t.SL.Equal(t.InitialSL) {
			return store.CloseTrailingStop
		}
		return store.CloseSLHit
	}
	if t.TrailingStopActive && !t.SL.Equal(t.InitialSL) {
		return store.CloseTrailingStop
	}
	return store.CloseManual
}

// Reconciler runs the periodic cross-check between server and terminal
// trade state for one account.
type Reconciler struct {
	store *store.Store
}

// New builds a Reconciler bound to the persistence layer.
func New(s *store.Store) *Reconciler {
	return &Reconciler{store: s}
}

// Result summarizes one reconciliation pass.
type Result struct {
	Inserted int
	Closed   int
	Updated  int
}

// Reconcile compares the server's open trades for account against the
// terminal's current report, inserting missing trades, closing trades
// the terminal no longer reports, and updating SL/TP drift on the rest.
func (r *Reconciler) Reconcile(ctx context.Context, account int64, terminalOpen []TerminalTrade) (Result, error) {
	var res Result

	serverOpen, err := r.store.OpenTradesForAccount(ctx, account)
	if err != nil {
		return res, err
	}

	byTicket := make(map[int64]TerminalTrade, len(terminalOpen))
	for _, tt := range terminalOpen {
		byTicket[tt.Ticket] = tt
	}

	serverByTicket := make(map[int64]store.Trade, len(serverOpen))
	for _, t := range serverOpen {
		serverByTicket[t.Ticket] = t
	}

	// Trade on terminal, missing on server → insert.
	for ticket, tt := range byTicket {
		if _, ok := serverByTicket[ticket]; ok {
			continue
		}
		trade := &store.Trade{
			AccountNumber: account,
			Ticket:        ticket,
			Symbol:        tt.Symbol,
			Direction:     tt.Direction,
			Volume:        tt.Volume,
			OpenPrice:     tt.OpenPrice,
			OpenTime:      tt.OpenTime,
			SL:            tt.SL,
			TP:            tt.TP,
			InitialSL:     tt.SL,
			InitialTP:     tt.TP,
			Source:        store.SourceMT5Manual,
		}
		if err := r.store.OpenTrade(ctx, trade); err != nil && !store.IsUniqueViolation(err) {
			return res, err
		}
		res.Inserted++
		log.Info().Int64("account", account).Int64("ticket", ticket).Msg("🔄 reconcile: inserted trade missing from server")
	}

	for ticket, t := range serverByTicket {
		tt, stillOpen := byTicket[ticket]

		if !stillOpen {
			// Trade open on server, missing on terminal → closed.
			closePrice := t.OpenPrice
			profit := decimal.Zero
			reason := store.CloseManual
			if tt.ClosePrice != nil {
				closePrice = *tt.ClosePrice
				profit = tt.Profit
			}
			reason = InferCloseReason(t, closePrice)
			if err := r.store.CloseTrade(ctx, t.ID, closePrice, profit, reason); err != nil && err != store.ErrNotFound {
				return res, err
			}
			res.Closed++
			log.Info().Int64("account", account).Int64("ticket", ticket).Str("reason", string(reason)).
				Msg("🔄 reconcile: closed trade no longer on terminal")
			continue
		}

		// Matching ticket, differing SL/TP → update and append event.
		if !tt.SL.Equal(t.SL) || !tt.TP.Equal(t.TP) {
			if err := r.store.UpdateSLTP(ctx, t.ID, tt.SL, tt.TP, "SL_MODIFIED", "reconcile_drift", "terminal", t.OpenPrice, decimal.Zero); err != nil {
				return res, err
			}
			res.Updated++
			log.Debug().Int64("account", account).Int64("ticket", ticket).Msg("🔄 reconcile: sl/tp drift corrected")
		}
	}

	return res, nil
}
