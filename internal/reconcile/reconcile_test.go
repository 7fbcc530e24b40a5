package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mt5bridge/engine/internal/store"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestInferCloseReasonTPHit(t *testing.T) {
	trade := store.Trade{TP: dec("1.1100"), SL: dec("1.0950")}
	assert.Equal(t, store.CloseTPHit, InferCloseReason(trade, dec("1.1099")))
}

func TestInferCloseReasonSLHit(t *testing.T) {
	trade := store.Trade{TP: dec("1.1100"), SL: dec("1.0950"), InitialSL: dec("1.0950")}
	assert.Equal(t, store.CloseSLHit, InferCloseReason(trade, dec("1.0951")))
}

func TestInferCloseReasonTrailingStopWhenSLMoved(t *testing.T) {
	trade := store.Trade{
		TP: dec("1.1100"), SL: dec("1.1005"), InitialSL: dec("1.0950"),
		TrailingStopActive: true,
	}
	assert.Equal(t, store.CloseTrailingStop, InferCloseReason(trade, dec("1.1004")))
}

func TestInferCloseReasonManualOtherwise(t *testing.T) {
	trade := store.Trade{TP: dec("1.1100"), SL: dec("1.0950"), InitialSL: dec("1.0950")}
	assert.Equal(t, store.CloseManual, InferCloseReason(trade, dec("1.1020")))
}
