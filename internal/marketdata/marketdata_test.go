package marketdata

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func decVal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestBrokerTimeToUTC(t *testing.T) {
	broker := time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC)
	got := brokerTimeToUTC(broker, 2*time.Hour)
	assert.Equal(t, time.Date(2026, 7, 31, 13, 0, 0, 0, time.UTC), got)
}

func TestTickWriterIngestBuffersBySymbol(t *testing.T) {
	w := NewTickWriter(nil)
	w.Ingest("EURUSD", decVal("1.10"), decVal("1.1002"), time.Now().UTC())
	w.Ingest("GBPUSD", decVal("1.27"), decVal("1.2702"), time.Now().UTC())
	assert.Len(t, w.buffer["EURUSD"], 1)
	assert.Len(t, w.buffer["GBPUSD"], 1)
}
