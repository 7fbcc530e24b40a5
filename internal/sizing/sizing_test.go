package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestConfidenceMultiplierBuckets(t *testing.T) {
	assert.True(t, confidenceMultiplier(dec("90")).Equal(dec("1.5")))
	assert.True(t, confidenceMultiplier(dec("80")).Equal(dec("1.2")))
	assert.True(t, confidenceMultiplier(dec("65")).Equal(dec("1.0")))
	assert.True(t, confidenceMultiplier(dec("55")).Equal(dec("0.7")))
	assert.True(t, confidenceMultiplier(dec("20")).Equal(dec("0.5")))
}

func TestCalculateClampsToVolumeMin(t *testing.T) {
	lot := Calculate(Input{
		Balance:        dec("100"),
		Symbol:         "EURUSD",
		Confidence:     dec("50"),
		SLDistancePips: dec("50"),
		PipValue:       dec("1"),
		Volume:         BrokerVolumeLimits{Min: dec("0.01"), Max: dec("50"), Step: dec("0.01")},
	})
	assert.True(t, lot.GreaterThanOrEqual(dec("0.01")))
}

func TestEnforceReducesLotWhenLossExceedsCap(t *testing.T) {
	res, err := Enforce(EnforceInput{
		Symbol:     "EURUSD",
		Balance:    dec("1000"),
		Lot:        dec("1.0"),
		SLDistance: dec("100"),
		PointValue: dec("1"),
		Volume:     BrokerVolumeLimits{Min: dec("0.01"), Max: dec("50"), Step: dec("0.01")},
	})
	assert.NoError(t, err)
	assert.True(t, res.Reduced)
	assert.True(t, res.Lot.LessThan(dec("1.0")))
}

func TestEnforceRejectsWhenMinVolumeStillUnsafe(t *testing.T) {
	_, err := Enforce(EnforceInput{
		Symbol:     "EURUSD",
		Balance:    dec("10"),
		Lot:        dec("0.5"),
		SLDistance: dec("1000"),
		PointValue: dec("1"),
		Volume:     BrokerVolumeLimits{Min: dec("0.5"), Max: dec("50"), Step: dec("0.01")},
	})
	assert.ErrorIs(t, err, ErrCannotSizeSafely)
}

func TestMaxRiskPctOverrideForCrypto(t *testing.T) {
	assert.True(t, maxRiskPctFor("BTCUSD", dec("0.02")).Equal(dec("0.025")))
	assert.True(t, maxRiskPctFor("EURUSD", dec("0.02")).Equal(dec("0.02")))
}
