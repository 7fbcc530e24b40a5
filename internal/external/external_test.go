package external

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInBlackoutHighImpactWindow(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	events := []Event{{Currency: "USD", Impact: ImpactHigh, At: now.Add(10 * time.Minute), Title: "NFP"}}
	assert.True(t, InBlackout(events, now))
}

func TestInBlackoutOutsideWindow(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	events := []Event{{Currency: "USD", Impact: ImpactHigh, At: now.Add(2 * time.Hour), Title: "NFP"}}
	assert.False(t, InBlackout(events, now))
}

func TestInBlackoutMediumNarrowerWindow(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	events := []Event{{Currency: "EUR", Impact: ImpactMedium, At: now.Add(20 * time.Minute), Title: "CPI"}}
	assert.False(t, InBlackout(events, now), "20m out is beyond the 15m medium-impact pre-window")

	events[0].At = now.Add(14 * time.Minute)
	assert.True(t, InBlackout(events, now))
}

func TestInBlackoutIgnoresLowImpact(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	events := []Event{{Currency: "USD", Impact: ImpactLow, At: now, Title: "minor release"}}
	assert.False(t, InBlackout(events, now))
}

func TestNoopScorerReturnsZero(t *testing.T) {
	var s MLScorer = NoopScorer{}
	v, err := s.Score(context.Background(), "EURUSD", 1)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.Zero))
}
