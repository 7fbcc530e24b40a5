package ingress

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/apperr"
	"github.com/mt5bridge/engine/internal/marketdata"
	"github.com/mt5bridge/engine/internal/store"
)

func timeframeOf(s string) store.Timeframe {
	return store.Timeframe(s)
}

func mountTicks(r chi.Router, deps *Deps) {
	r.Post("/api/ticks", ticksHandler(deps))
	r.Post("/api/ohlc/historical", ohlcHistoricalHandler(deps))
}

type tickPayload struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"` // broker local
}

type ticksRequest struct {
	Account      int64           `json:"account"`
	APIKey       string          `json:"api_key"`
	Ticks        []tickPayload   `json:"ticks"`
	Balance      decimal.Decimal `json:"balance"`
	Equity       decimal.Decimal `json:"equity"`
	Margin       decimal.Decimal `json:"margin"`
	FreeMargin   decimal.Decimal `json:"free_margin"`
	ProfitToday  decimal.Decimal `json:"profit_today"`
	ProfitWeek   decimal.Decimal `json:"profit_week"`
	ProfitMonth  decimal.Decimal `json:"profit_month"`
	ProfitYear   decimal.Decimal `json:"profit_year"`
}

func ticksHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ticksRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.WriteHTTP(w, apperr.Validation("invalid ticks payload"))
			return
		}
		if _, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account); aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}

		for _, tk := range req.Ticks {
			utcTS := marketdata.BrokerTimeToUTC(tk.Timestamp, deps.BrokerTimeOffset)
			deps.Ticks.Ingest(tk.Symbol, tk.Bid, tk.Ask, utcTS)
			deps.Registry.RecordTick(req.Account, time.Now().UTC())
		}

		if !req.Balance.IsZero() || !req.Equity.IsZero() {
			if err := deps.Store.UpdateHeartbeat(r.Context(), req.Account, req.Balance, req.Equity, req.Margin, req.FreeMargin); err != nil {
				apperr.WriteHTTP(w, apperr.Transient("account metrics update failed", err))
				return
			}
		}

		apperr.WriteJSON(w, http.StatusOK, map[string]any{"received": len(req.Ticks)})
	}
}

type candlePayload struct {
	Timestamp time.Time       `json:"timestamp"` // broker local
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

type ohlcHistoricalRequest struct {
	Account   int64           `json:"account"`
	APIKey    string          `json:"api_key"`
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Candles   []candlePayload `json:"candles"`
}

func ohlcHistoricalHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ohlcHistoricalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
			apperr.WriteHTTP(w, apperr.Validation("invalid ohlc historical payload"))
			return
		}
		if _, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account); aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}

		raws := make([]marketdata.RawCandle, len(req.Candles))
		for i, c := range req.Candles {
			raws[i] = marketdata.RawCandle{
				Symbol: req.Symbol, Timeframe: timeframeOf(req.Timeframe),
				BrokerTime: c.Timestamp, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
			}
		}
		imported, skipped, err := deps.Historical.Import(r.Context(), deps.BrokerTimeOffset, raws)
		if err != nil {
			apperr.WriteHTTP(w, apperr.Transient("historical import failed", err))
			return
		}
		apperr.WriteJSON(w, http.StatusOK, map[string]any{"imported": imported, "skipped": skipped})
	}
}
