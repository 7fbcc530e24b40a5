package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("sqlite", ":memory:", "test-secret")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConnectAccountCreatesOnFirstCall(t *testing.T) {
	s := newTestStore(t)
	key, isNew, err := s.ConnectAccount(context.Background(), 1001, "FTMO", "MT5")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, key)
}

func TestConnectAccountIsIdempotentOnRepeatCall(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, isNew, err := s.ConnectAccount(ctx, 1002, "FTMO", "MT5")
	require.NoError(t, err)
	assert.True(t, isNew)

	second, isNew, err := s.ConnectAccount(ctx, 1002, "FTMO", "MT5")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first, second)
}

func TestConnectAccountRecoveredKeyAuthenticates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key, _, err := s.ConnectAccount(ctx, 1003, "FTMO", "MT5")
	require.NoError(t, err)

	reconnected, _, err := s.ConnectAccount(ctx, 1003, "FTMO", "MT5")
	require.NoError(t, err)

	acct, err := s.AccountByAPIKey(ctx, reconnected)
	require.NoError(t, err)
	assert.Equal(t, int64(1003), acct.AccountNumber)
	assert.Equal(t, HashAPIKey(key), acct.APIKeyHash)
}

func TestSealAndUnsealAPIKeyRoundTrips(t *testing.T) {
	s := newTestStore(t)
	sealed, err := s.sealAPIKey("super-secret-key")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "super-secret-key")

	plain, err := s.unsealAPIKey(sealed)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-key", plain)
}
