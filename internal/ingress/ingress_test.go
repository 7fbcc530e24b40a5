package ingress

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mt5bridge/engine/internal/config"
	"github.com/mt5bridge/engine/internal/marketdata"
	"github.com/mt5bridge/engine/internal/registry"
	"github.com/mt5bridge/engine/internal/store"
)

func testDeps(t *testing.T) *Deps {
	t.Helper()
	s, err := store.New("sqlite", ":memory:", "test-secret")
	require.NoError(t, err)
	return &Deps{
		Store:      s,
		Registry:   registry.New(300*time.Second, 180*time.Second),
		Ticks:      marketdata.NewTickWriter(s),
		Historical: marketdata.NewHistoricalImporter(s),
		Config:     &config.Config{GetCommandsBatchSize: 10},
	}
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buf).Encode(body))
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestConnectThenHeartbeatRoundTrip(t *testing.T) {
	deps := testDeps(t)
	r := chi.NewRouter()
	mountControl(r, deps)

	rec := doJSON(t, r, "POST", "/api/connect", connectRequest{Account: 12345, Broker: "ICMarkets", Platform: "MT5"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	apiKey, _ := resp["api_key"].(string)
	assert.NotEmpty(t, apiKey)

	hbRec := doJSON(t, r, "POST", "/api/heartbeat", heartbeatRequest{Account: 12345, APIKey: apiKey})
	assert.Equal(t, http.StatusOK, hbRec.Code)
}

func TestHeartbeatRejectsUnknownKey(t *testing.T) {
	deps := testDeps(t)
	r := chi.NewRouter()
	mountControl(r, deps)

	rec := doJSON(t, r, "POST", "/api/heartbeat", heartbeatRequest{Account: 999, APIKey: "not-a-real-key"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusIsUnauthenticated(t *testing.T) {
	deps := testDeps(t)
	r := chi.NewRouter()
	mountControl(r, deps)

	req := httptest.NewRequest("GET", "/api/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateCommandThenGetCommands(t *testing.T) {
	deps := testDeps(t)
	r := chi.NewRouter()
	mountControl(r, deps)

	connRec := doJSON(t, r, "POST", "/api/connect", connectRequest{Account: 555})
	var connResp map[string]any
	require.NoError(t, json.Unmarshal(connRec.Body.Bytes(), &connResp))
	apiKey := connResp["api_key"].(string)

	createRec := doJSON(t, r, "POST", "/api/create_command", createCommandRequest{
		Account: 555, APIKey: apiKey, Type: store.CmdCloseTrade, Payload: json.RawMessage(`{"ticket":1}`),
	})
	assert.Equal(t, http.StatusOK, createRec.Code)

	getRec := doJSON(t, r, "POST", "/api/get_commands", getCommandsRequest{Account: 555, APIKey: apiKey})
	assert.Equal(t, http.StatusOK, getRec.Code)
	var getResp map[string]any
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &getResp))
	cmds, ok := getResp["commands"].([]any)
	require.True(t, ok)
	assert.Len(t, cmds, 1)
}
