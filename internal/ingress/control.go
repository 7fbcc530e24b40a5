package ingress

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/apperr"
	"github.com/mt5bridge/engine/internal/store"
)

func mountControl(r chi.Router, deps *Deps) {
	r.Get("/api/status", statusHandler(deps))
	r.Post("/api/connect", connectHandler(deps))
	r.Post("/api/heartbeat", heartbeatHandler(deps))
	r.Post("/api/symbols", symbolsHandler(deps))
	r.Post("/api/subscribe", subscribeHandler(deps))
	r.Post("/api/symbol_specs", symbolSpecsHandler(deps))
	r.Post("/api/get_commands", getCommandsHandler(deps))
	r.Post("/api/create_command", createCommandHandler(deps))
	r.Post("/api/command_response", commandResponseHandler(deps))
	r.Post("/api/transaction", transactionHandler(deps))
}

func statusHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteJSON(w, http.StatusOK, map[string]any{"ready": true})
	}
}

type connectRequest struct {
	Account  int64  `json:"account"`
	Broker   string `json:"broker"`
	Platform string `json:"platform"`
}

func connectHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req connectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Account == 0 {
			apperr.WriteHTTP(w, apperr.Validation("invalid connect payload"))
			return
		}
		apiKey, isNew, err := deps.Store.ConnectAccount(r.Context(), req.Account, req.Broker, req.Platform)
		if err != nil {
			apperr.WriteHTTP(w, apperr.Transient("connect failed", err))
			return
		}
		apperr.WriteJSON(w, http.StatusOK, map[string]any{"api_key": apiKey, "is_new": isNew})
	}
}

type heartbeatRequest struct {
	Account    int64           `json:"account"`
	APIKey     string          `json:"api_key"`
	Balance    decimal.Decimal `json:"balance"`
	Equity     decimal.Decimal `json:"equity"`
	Margin     decimal.Decimal `json:"margin"`
	FreeMargin decimal.Decimal `json:"free_margin"`
	LatencyMs  int64           `json:"latency_ms"`
}

func heartbeatHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req heartbeatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.WriteHTTP(w, apperr.Validation("invalid heartbeat payload"))
			return
		}
		if _, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account); aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}
		if err := deps.Store.UpdateHeartbeat(r.Context(), req.Account, req.Balance, req.Equity, req.Margin, req.FreeMargin); err != nil {
			apperr.WriteHTTP(w, apperr.Transient("heartbeat update failed", err))
			return
		}
		latency := time.Duration(req.LatencyMs) * time.Millisecond
		deps.Registry.RecordHeartbeat(req.Account, time.Now().UTC(), latency)
		apperr.WriteJSON(w, http.StatusOK, nil)
	}
}

type symbolsRequest struct {
	Account int64  `json:"account"`
	APIKey  string `json:"api_key"`
}

func symbolsHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req symbolsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.WriteHTTP(w, apperr.Validation("invalid symbols payload"))
			return
		}
		if _, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account); aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}
		symbols, err := deps.Store.SubscribedSymbolsFor(r.Context(), req.Account)
		if err != nil {
			apperr.WriteHTTP(w, apperr.Transient("symbols lookup failed", err))
			return
		}
		apperr.WriteJSON(w, http.StatusOK, map[string]any{"symbols": symbols})
	}
}

type subscribeRequest struct {
	Account int64    `json:"account"`
	APIKey  string   `json:"api_key"`
	Symbols []string `json:"symbols"`
}

func subscribeHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req subscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.WriteHTTP(w, apperr.Validation("invalid subscribe payload"))
			return
		}
		if _, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account); aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}
		for _, sym := range req.Symbols {
			if err := deps.Store.Subscribe(r.Context(), req.Account, sym); err != nil {
				apperr.WriteHTTP(w, apperr.Transient("subscribe failed", err))
				return
			}
		}
		apperr.WriteJSON(w, http.StatusOK, nil)
	}
}

type symbolSpecRequest struct {
	Account int64  `json:"account"`
	APIKey  string `json:"api_key"`
	Symbol  string `json:"symbol"`
	VolumeMin   decimal.Decimal `json:"volume_min"`
	VolumeMax   decimal.Decimal `json:"volume_max"`
	VolumeStep  decimal.Decimal `json:"volume_step"`
	StopsLevel  int             `json:"stops_level"`
	FreezeLevel int             `json:"freeze_level"`
	Digits      int             `json:"digits"`
	PointValue  decimal.Decimal `json:"point_value"`
	TradeMode   string          `json:"trade_mode"`
}

func symbolSpecsHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req symbolSpecRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
			apperr.WriteHTTP(w, apperr.Validation("invalid symbol_specs payload"))
			return
		}
		if _, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account); aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}
		bs := &store.BrokerSymbol{
			Symbol: req.Symbol, VolumeMin: req.VolumeMin, VolumeMax: req.VolumeMax,
			VolumeStep: req.VolumeStep, StopsLevel: req.StopsLevel, FreezeLevel: req.FreezeLevel,
			Digits: req.Digits, PointValue: req.PointValue, TradeMode: req.TradeMode,
		}
		if err := deps.Store.UpsertBrokerSymbol(r.Context(), bs); err != nil {
			apperr.WriteHTTP(w, apperr.Transient("symbol_specs upsert failed", err))
			return
		}
		apperr.WriteJSON(w, http.StatusOK, nil)
	}
}

type getCommandsRequest struct {
	Account int64  `json:"account"`
	APIKey  string `json:"api_key"`
}

func getCommandsHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req getCommandsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.WriteHTTP(w, apperr.Validation("invalid get_commands payload"))
			return
		}
		if _, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account); aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}
		batch := deps.Config.GetCommandsBatchSize
		if batch <= 0 {
			batch = 10
		}
		cmds, err := deps.Store.PendingCommands(r.Context(), req.Account, batch)
		if err != nil {
			apperr.WriteHTTP(w, apperr.Transient("get_commands failed", err))
			return
		}
		apperr.WriteJSON(w, http.StatusOK, map[string]any{"commands": cmds})
	}
}

type createCommandRequest struct {
	Account int64             `json:"account"`
	APIKey  string            `json:"api_key"`
	Type    store.CommandType `json:"type"`
	Payload json.RawMessage   `json:"payload"`
}

func createCommandHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCommandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
			apperr.WriteHTTP(w, apperr.Validation("invalid create_command payload"))
			return
		}
		if _, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account); aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}
		cmd, err := deps.Store.CreateCommand(r.Context(), req.Account, req.Type, string(req.Payload))
		if err != nil {
			apperr.WriteHTTP(w, apperr.Transient("create_command failed", err))
			return
		}
		if deps.Queue != nil {
			if err := deps.Queue.Push(r.Context(), req.Account, cmd.ID); err != nil {
				apperr.WriteHTTP(w, apperr.Transient("queue push failed", err))
				return
			}
		}
		apperr.WriteJSON(w, http.StatusOK, map[string]any{"command_id": cmd.ID})
	}
}

type commandResponseRequest struct {
	CommandID string `json:"command_id"`
	Success   bool   `json:"success"`
	Response  string `json:"response"`
}

func commandResponseHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req commandResponseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CommandID == "" {
			apperr.WriteHTTP(w, apperr.Validation("invalid command_response payload"))
			return
		}
		if err := deps.Store.CompleteCommand(r.Context(), req.CommandID, req.Success, req.Response); err != nil {
			apperr.WriteHTTP(w, apperr.Transient("command completion failed", err))
			return
		}
		if deps.Queue != nil {
			if err := deps.Queue.PublishCompletion(r.Context(), req.CommandID, req.Success, req.Response); err != nil {
				apperr.WriteHTTP(w, apperr.Transient("completion publish failed", err))
				return
			}
		}
		apperr.WriteJSON(w, http.StatusOK, nil)
	}
}

type transactionRequest struct {
	Account int64  `json:"account"`
	APIKey  string `json:"api_key"`
	Ticket  int64  `json:"ticket"`
	Type    string `json:"type"`
	Amount  decimal.Decimal `json:"amount"`
}

func transactionHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.WriteHTTP(w, apperr.Validation("invalid transaction payload"))
			return
		}
		if _, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account); aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}
		// Idempotent on ticket: handled by the caller's deposit/withdrawal
		// ledger, out of scope for the core engine beyond acknowledging it.
		apperr.WriteJSON(w, http.StatusOK, nil)
	}
}
