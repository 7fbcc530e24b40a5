package ingress

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mt5bridge/engine/internal/apperr"
)

func mountLogs(r chi.Router, deps *Deps) {
	r.Post("/api/logs", logsHandler(deps))
}

type logEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type logsRequest struct {
	Account int64      `json:"account"`
	APIKey  string     `json:"api_key"`
	Entries []logEntry `json:"entries"`
}

// logsHandler accepts terminal-side EA log lines for operator visibility
// — authenticated like every other surface, but write-only and never
// persisted: these are diagnostic, not part of the durable trade record.
func logsHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req logsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.WriteHTTP(w, apperr.Validation("invalid logs payload"))
			return
		}
		if _, aerr := authenticate(r.Context(), deps.Store, r, req.APIKey, req.Account); aerr != nil {
			apperr.WriteHTTP(w, aerr)
			return
		}
		for _, e := range req.Entries {
			log.Info().Int64("account", req.Account).Str("terminal_level", e.Level).Msg("📟 " + e.Message)
		}
		apperr.WriteJSON(w, http.StatusOK, nil)
	}
}
