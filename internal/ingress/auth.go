package ingress

import (
	"context"
	"net/http"

	"github.com/mt5bridge/engine/internal/apperr"
	"github.com/mt5bridge/engine/internal/store"
)

// authenticate resolves the account owning apiKey, preferring the
// X-API-Key header over a body-supplied key when both are present, and
// validates it matches accountNumber when accountNumber is non-zero.
// Keys are bound to exactly one account.
func authenticate(ctx context.Context, s *store.Store, r *http.Request, bodyAPIKey string, accountNumber int64) (*store.Account, *apperr.Error) {
	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		apiKey = bodyAPIKey
	}
	if apiKey == "" {
		return nil, apperr.Auth("missing api_key")
	}
	acct, err := s.AccountByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, apperr.New(apperr.KindAuth, "invalid api_key")
	}
	if accountNumber != 0 && acct.AccountNumber != accountNumber {
		return nil, apperr.New(apperr.KindAuth, "api_key does not match account")
	}
	return acct, nil
}
