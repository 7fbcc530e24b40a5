package sizing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// maxRiskPctBySymbol overrides the default max-risk-pct for symbols with
// a documented higher tolerance.
var maxRiskPctBySymbol = map[string]decimal.Decimal{
	"BTCUSD": decimal.NewFromFloat(0.025),
	"ETHUSD": decimal.NewFromFloat(0.025),
}

func maxRiskPctFor(symbol string, defaultPct decimal.Decimal) decimal.Decimal {
	if pct, ok := maxRiskPctBySymbol[symbol]; ok {
		return pct
	}
	if defaultPct.IsZero() {
		return decimal.NewFromFloat(0.02)
	}
	return defaultPct
}

// EnforceInput carries the inputs to the balance-aware SL enforcement
// check.
type EnforceInput struct {
	Symbol         string
	Balance        decimal.Decimal
	Lot            decimal.Decimal
	SLDistance     decimal.Decimal // price distance, not pips
	PointValue     decimal.Decimal
	DefaultMaxRiskPct decimal.Decimal
	Volume         BrokerVolumeLimits
	StopsLevelPoints decimal.Decimal
	Point          decimal.Decimal
}

// EnforceResult is the possibly-reduced lot plus whether it had to shrink.
type EnforceResult struct {
	Lot     decimal.Decimal
	Reduced bool
}

// Enforce caps the potential SL loss to max_risk_pct × balance, reducing
// lot size if necessary, and rejects if even volume_min would exceed the
// cap.
func Enforce(in EnforceInput) (EnforceResult, error) {
	maxRiskPct := maxRiskPctFor(in.Symbol, in.DefaultMaxRiskPct)
	maxLoss := in.Balance.Mul(maxRiskPct)

	potentialLoss := in.SLDistance.Mul(in.Lot).Mul(in.PointValue)
	if potentialLoss.LessThanOrEqual(maxLoss) {
		if err := validateMinDistance(in); err != nil {
			return EnforceResult{}, err
		}
		return EnforceResult{Lot: in.Lot}, nil
	}

	denom := in.SLDistance.Mul(in.PointValue)
	if denom.IsZero() {
		return EnforceResult{}, ErrCannotSizeSafely
	}
	rawLot := maxLoss.Div(denom)

	minVol := in.Volume.Min
	if minVol.IsZero() {
		minVol = decimal.NewFromFloat(0.01)
	}
	// Reject before clamping up to volume_min — clampToVolume would
	// otherwise raise an unsafe lot to the broker floor and silently
	// blow through max_risk_pct rather than refusing to size the trade.
	if rawLot.LessThan(minVol) {
		return EnforceResult{}, ErrCannotSizeSafely
	}

	reducedLot := clampToVolume(rawLot, in.Volume)
	if reducedLot.LessThan(minVol) {
		return EnforceResult{}, ErrCannotSizeSafely
	}

	if err := validateMinDistance(in); err != nil {
		return EnforceResult{}, err
	}
	return EnforceResult{Lot: reducedLot, Reduced: true}, nil
}

// ErrSLTooClose signals the SL distance is below the broker's
// stops_level minimum.
var ErrSLTooClose = errors.New("sizing: SL distance below broker stops_level minimum")

func validateMinDistance(in EnforceInput) error {
	if in.Point.IsZero() || in.StopsLevelPoints.IsZero() {
		return nil
	}
	minDistance := in.StopsLevelPoints.Mul(in.Point)
	if in.SLDistance.LessThan(minDistance) {
		return ErrSLTooClose
	}
	return nil
}
