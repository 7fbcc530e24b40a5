package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/adaptive"
	"github.com/mt5bridge/engine/internal/apperr"
	"github.com/mt5bridge/engine/internal/reconcile"
	"github.com/mt5bridge/engine/internal/store"
)

func mountTrades(r chi.Router, deps *Deps) {
	r.Post("/api/trades/sync", tradesSyncHandler(deps))
	r.Post("/api/trades/update", tradesUpdateHandler(deps))
}

type terminalTradePayload struct {
	Ticket     int64           `json:"ticket"`
	Symbol     string          `json:"symbol"`
	Direction  string          `json:"direction"`
	Volume     decimal.Decimal `json:"volume"`
	OpenPrice  decimal.Decimal `json:"open_price"`
	OpenTime   time.Time       `json:"open_time"`
	SL         decimal.Decimal `json:"sl"`
	TP         decimal.Decimal `json:"tp"`
	ClosePrice *decimal.Decimal `json:"close_price,omitempty"`
	CloseTime  *time.Time      `json:"close_time,omitempty"`
	Profit     decimal.Decimal `json:"profit"`
	Commission decimal.Decimal `json:"commission"`
	Swap       decimal.Decimal `json:"swap"`
}

type tradesSyncRequest struct {
	Account int64                   `json:"account"`
	APIKey  string                  `json:"api_key"`
	Trades  []terminalTradePayload  `json:"trades"`
}

func tradesSyncHandler(deps *Deps) http.HandlerFunc {
	rec := reconcile.New(deps.Store)
	return func(w http.ResponseWriter, r *http.Request) {
		var req tradesSyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.WriteHTTP(w, apperr.Validation("invalid trades sync payload"))
			return
		}
		if _, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account); aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}

		terminalTrades := make([]reconcile.TerminalTrade, len(req.Trades))
		for i, t := range req.Trades {
			terminalTrades[i] = reconcile.TerminalTrade{
				Ticket: t.Ticket, Symbol: t.Symbol, Direction: t.Direction, Volume: t.Volume,
				OpenPrice: t.OpenPrice, OpenTime: t.OpenTime, SL: t.SL, TP: t.TP,
				ClosePrice: t.ClosePrice, CloseTime: t.CloseTime, Profit: t.Profit,
				Commission: t.Commission, Swap: t.Swap,
			}
		}

		res, err := rec.Reconcile(r.Context(), req.Account, terminalTrades)
		if err != nil {
			apperr.WriteHTTP(w, apperr.Transient("trade reconciliation failed", err))
			return
		}
		apperr.WriteJSON(w, http.StatusOK, map[string]any{"inserted": res.Inserted, "closed": res.Closed, "updated": res.Updated})
	}
}

type tradesUpdateRequest struct {
	Account    int64           `json:"account"`
	APIKey     string          `json:"api_key"`
	Ticket     int64           `json:"ticket"`
	ClosePrice decimal.Decimal `json:"close_price"`
	Profit     decimal.Decimal `json:"profit"`
}

func tradesUpdateHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tradesUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ticket == 0 {
			apperr.WriteHTTP(w, apperr.Validation("invalid trades update payload"))
			return
		}
		acct, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account)
		if aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}

		trades, err := deps.Store.OpenTradesForAccount(r.Context(), req.Account)
		if err != nil {
			apperr.WriteHTTP(w, apperr.Transient("trade lookup failed", err))
			return
		}
		var match *store.Trade
		for i := range trades {
			if trades[i].Ticket == req.Ticket {
				match = &trades[i]
				break
			}
		}
		if match == nil {
			apperr.WriteHTTP(w, apperr.New(apperr.KindValidation, "unknown or already-closed ticket"))
			return
		}

		reason := reconcile.InferCloseReason(*match, req.ClosePrice)
		if err := deps.Store.CloseTrade(r.Context(), match.ID, req.ClosePrice, req.Profit, reason); err != nil {
			apperr.WriteHTTP(w, apperr.Transient("trade close failed", err))
			return
		}

		if deps.Engine != nil {
			closed := *match
			closed.ClosePrice = &req.ClosePrice
			closed.Profit = req.Profit
			closed.CloseReason = &reason
			notifyTradeClosed(r.Context(), deps, *acct, closed)
		}
		apperr.WriteJSON(w, http.StatusOK, map[string]any{"close_reason": reason})
	}
}

// notifyTradeClosed feeds a terminal-reported close through the engine so
// protection and adaptive symbol config react the same way they do to
// engine-driven closes, logging and continuing on failure since the trade
// itself is already durably closed.
func notifyTradeClosed(ctx context.Context, deps *Deps, acct store.Account, t store.Trade) {
	// RecentClosedTrades returns newest-first; adaptive.Update wants the
	// window oldest-first with the just-closed trade last.
	recent, err := deps.Store.RecentClosedTrades(ctx, acct.AccountNumber, t.Symbol, 20)
	var closedTrades []adaptive.ClosedTrade
	if err == nil {
		for i := len(recent) - 1; i >= 0; i-- {
			closedTrades = append(closedTrades, adaptive.ClosedTrade{Profit: recent[i].Profit})
		}
	}
	if err := deps.Engine.OnTradeClosed(ctx, acct, t, closedTrades); err != nil {
		log.Error().Err(err).Msg("🚫 failed to apply trade-close side effects")
	}
}
