package notify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mt5bridge/engine/internal/decision"
)

// recordingNotifier captures calls for assertions without touching the
// network — stands in for a real Notifier in tests exercising callers.
type recordingNotifier struct {
	opened []string
	closed []string
	rejected []string
	tripped []string
}

func (r *recordingNotifier) NotifyTradeOpened(account int64, symbol, direction string, volume, entry, sl, tp decimal.Decimal) {
	r.opened = append(r.opened, symbol+":"+direction)
}
func (r *recordingNotifier) NotifyTradeClosed(account int64, symbol string, profit decimal.Decimal, reason string) {
	r.closed = append(r.closed, symbol+":"+reason)
}
func (r *recordingNotifier) NotifyDecisionRejected(account int64, symbol string, reason decision.Reason, detail string) {
	r.rejected = append(r.rejected, symbol+":"+string(reason))
}
func (r *recordingNotifier) NotifyCircuitBreakerTripped(account int64, detail string) {
	r.tripped = append(r.tripped, detail)
}

func TestRecordingNotifierSatisfiesInterface(t *testing.T) {
	var n Notifier = &recordingNotifier{}
	n.NotifyTradeOpened(1, "EURUSD", "BUY", decimal.NewFromInt(1), decimal.NewFromFloat(1.1), decimal.NewFromFloat(1.09), decimal.NewFromFloat(1.12))
	n.NotifyTradeClosed(1, "EURUSD", decimal.NewFromFloat(12.5), "TP_HIT")
	n.NotifyDecisionRejected(1, "GBPUSD", decision.ReasonConfidenceTooLow, "confidence 40 < 60")
	n.NotifyCircuitBreakerTripped(1, "daily loss limit exceeded")

	rec := n.(*recordingNotifier)
	assert.Equal(t, []string{"EURUSD:BUY"}, rec.opened)
	assert.Equal(t, []string{"EURUSD:TP_HIT"}, rec.closed)
	assert.Equal(t, []string{"GBPUSD:CONFIDENCE_TOO_LOW"}, rec.rejected)
	assert.Equal(t, []string{"daily loss limit exceeded"}, rec.tripped)
}

func TestNopNotifierDiscardsEverything(t *testing.T) {
	var n Notifier = NopNotifier{}
	assert.NotPanics(t, func() {
		n.NotifyTradeOpened(1, "EURUSD", "BUY", decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero)
		n.NotifyTradeClosed(1, "EURUSD", decimal.Zero, "MANUAL")
		n.NotifyDecisionRejected(1, "EURUSD", decision.ReasonSignalExpired, "")
		n.NotifyCircuitBreakerTripped(1, "")
	})
}
