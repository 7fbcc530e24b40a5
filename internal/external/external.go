// Package external defines the narrow read-only boundaries the decision
// pipeline crosses into systems this repo does not implement: the
// news-event calendar and the ML confidence scorer. Each is a
// component the engine calls for a read and never owns the internals
// of. Auto-optimization/ML-training/news-fetching logic bodies are
// explicitly out of scope; only the data contract a caller needs is
// carried here.
package external

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ImpactLevel classifies a scheduled news event's expected effect on
// price action, per the tiered blackout windows the decision pipeline
// applies around it.
type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "HIGH"
	ImpactMedium ImpactLevel = "MEDIUM"
	ImpactLow    ImpactLevel = "LOW"
)

// Event is a single scheduled calendar entry affecting a currency.
type Event struct {
	Currency string
	Impact   ImpactLevel
	At       time.Time
	Title    string
}

// NewsCalendar supplies the news events for a currency around a given
// instant. The pipeline applies the window widths itself
// (−30m/+15m for HIGH, −15m/+10m for MEDIUM); the calendar only
// supplies the raw events.
type NewsCalendar interface {
	// UpcomingEvents returns events for currency within [now-lookback,
	// now+lookahead], used by the decision pipeline's news gate.
	UpcomingEvents(ctx context.Context, currency string, now time.Time, lookback, lookahead time.Duration) ([]Event, error)
}

// InBlackout reports whether now falls inside any event's blackout
// window, applying the standard tiered widths.
func InBlackout(events []Event, now time.Time) bool {
	for _, e := range events {
		var before, after time.Duration
		switch e.Impact {
		case ImpactHigh:
			before, after = 30*time.Minute, 15*time.Minute
		case ImpactMedium:
			before, after = 15*time.Minute, 10*time.Minute
		default:
			continue
		}
		windowStart := e.At.Add(-before)
		windowEnd := e.At.Add(after)
		if !now.Before(windowStart) && !now.After(windowEnd) {
			return true
		}
	}
	return false
}

// MLScorer supplies a confidence adjustment derived from a model this
// repo does not train or serve — only the signal's ID and symbol are
// handed across the boundary, and a plain decimal comes back.
type MLScorer interface {
	// Score returns an adjustment in [-20, 20] to apply to a signal's
	// base confidence, or decimal.Zero with a non-nil error if no
	// model output is available (callers must treat that as "no
	// adjustment", never as a hard failure).
	Score(ctx context.Context, symbol string, signalID uint64) (decimal.Decimal, error)
}

// NoopScorer always reports no adjustment. Used when no ML service is
// configured so callers depend only on the MLScorer interface.
type NoopScorer struct{}

func (NoopScorer) Score(context.Context, string, uint64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
