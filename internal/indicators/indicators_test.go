package indicators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mt5bridge/engine/internal/store"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func closes(vals ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = dec(v)
	}
	return out
}

func TestRSINeutralOnInsufficientData(t *testing.T) {
	got := RSI(closes("1", "2"), 14)
	assert.True(t, got.Equal(decimal.NewFromInt(50)))
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	vals := make([]string, 20)
	for i := range vals {
		vals[i] = decimal.NewFromInt(int64(100 + i)).String()
	}
	got := RSI(closes(vals...), 14)
	assert.True(t, got.Equal(decimal.NewFromInt(100)))
}

func TestSMAUsesTrailingWindow(t *testing.T) {
	got := SMA(closes("1", "2", "3", "4"), 2)
	assert.True(t, got.Equal(dec("3.5")))
}

func TestCrossedUpDetectsFlip(t *testing.T) {
	fast := closes("1", "3")
	slow := closes("2", "2")
	assert.True(t, CrossedUp(fast, slow))
	assert.False(t, CrossedDown(fast, slow))
}

func barCandle(high, low, close, vol string, ts time.Time) store.OHLCCandle {
	return store.OHLCCandle{
		Symbol: "EURUSD", Timeframe: store.M15, Timestamp: ts,
		High: dec(high), Low: dec(low), Close: dec(close), Open: dec(close), Volume: dec(vol),
	}
}

func TestATRNonNegative(t *testing.T) {
	now := time.Now().UTC()
	candles := []store.OHLCCandle{
		barCandle("1.10", "1.08", "1.09", "100", now),
		barCandle("1.11", "1.09", "1.10", "120", now.Add(time.Minute)),
		barCandle("1.12", "1.10", "1.11", "90", now.Add(2*time.Minute)),
	}
	got := ATR(candles, 2)
	assert.True(t, got.GreaterThanOrEqual(decimal.Zero))
}

func TestClassifyRegime(t *testing.T) {
	assert.Equal(t, RegimeTrending, ClassifyRegime(decimal.NewFromInt(30)))
	assert.Equal(t, RegimeRanging, ClassifyRegime(decimal.NewFromInt(10)))
	assert.Equal(t, RegimeVolatile, ClassifyRegime(decimal.NewFromInt(22)))
}

func TestOBVAccumulatesOnUpCloses(t *testing.T) {
	now := time.Now().UTC()
	candles := []store.OHLCCandle{
		barCandle("1.10", "1.08", "1.09", "100", now),
		barCandle("1.11", "1.09", "1.10", "50", now.Add(time.Minute)),
		barCandle("1.09", "1.07", "1.08", "30", now.Add(2*time.Minute)),
	}
	got := OBV(candles)
	// +50 on the up close, -30 on the down close
	assert.True(t, got.Equal(dec("20")))
}
