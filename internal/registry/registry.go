// Package registry tracks per-terminal connection liveness: heartbeat and
// tick-flow freshness, a rolling health score, and the
// MT5_DISCONNECT/MT5_RECONNECT transition that pauses/resumes
// auto-trading, behind a mutex-guarded, env-configured struct.
package registry

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// accountHealth is the in-memory liveness record for one terminal.
type accountHealth struct {
	lastHeartbeat time.Time
	lastTick      time.Time
	latencies     []time.Duration // sliding window, most recent last
	connected     bool
	healthScore   float64
}

const latencyWindow = 20

// Registry is the in-memory account → health map, guarded by a single
// RWMutex.
type Registry struct {
	mu       sync.RWMutex
	accounts map[int64]*accountHealth

	hbLost     time.Duration
	tickStale  time.Duration
}

// New creates a registry with the configured loss thresholds.
func New(hbLost, tickStale time.Duration) *Registry {
	return &Registry{
		accounts:  make(map[int64]*accountHealth),
		hbLost:    hbLost,
		tickStale: tickStale,
	}
}

// RecordHeartbeat updates the last-heartbeat timestamp for an account and
// reports whether the account was marked disconnected when it arrived. A
// disconnected account stays so until the next Sweep marks it connected and
// reports MT5_RECONNECT.
func (r *Registry) RecordHeartbeat(accountNumber int64, at time.Time, latency time.Duration) (reconnected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.accountFor(accountNumber)
	wasDisconnected := !h.connected
	h.lastHeartbeat = at
	h.latencies = append(h.latencies, latency)
	if len(h.latencies) > latencyWindow {
		h.latencies = h.latencies[1:]
	}
	h.healthScore = computeHealthScore(h, r.hbLost)
	return wasDisconnected
}

// RecordTick updates the last-tick timestamp for an account.
func (r *Registry) RecordTick(accountNumber int64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.accountFor(accountNumber)
	h.lastTick = at
}

func (r *Registry) accountFor(accountNumber int64) *accountHealth {
	h, ok := r.accounts[accountNumber]
	if !ok {
		h = &accountHealth{connected: true, healthScore: 1.0}
		r.accounts[accountNumber] = h
	}
	return h
}

// IsConnected reports whether the account's heartbeat is within the
// configured loss threshold.
func (r *Registry) IsConnected(accountNumber int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.accounts[accountNumber]
	if !ok {
		return false
	}
	return h.connected
}

// TickStale reports whether the last tick seen for the account is older
// than the configured staleness threshold.
func (r *Registry) TickStale(accountNumber int64, now time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.accounts[accountNumber]
	if !ok || h.lastTick.IsZero() {
		return true
	}
	return now.Sub(h.lastTick) > r.tickStale
}

// HealthScore returns the account's current health score in [0,1].
func (r *Registry) HealthScore(accountNumber int64) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.accounts[accountNumber]
	if !ok {
		return 0
	}
	return h.healthScore
}

// Transition describes a connection state change the watchdog produced
// for one account during a sweep.
type Transition struct {
	AccountNumber int64
	Event         string // MT5_DISCONNECT or MT5_RECONNECT
}

// Sweep walks every known account and flags heartbeat-loss transitions.
// Called every 60 s by the supervised watchdog worker.
func (r *Registry) Sweep(now time.Time) []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	var transitions []Transition
	for acct, h := range r.accounts {
		lost := now.Sub(h.lastHeartbeat) > r.hbLost
		if lost && h.connected {
			h.connected = false
			transitions = append(transitions, Transition{AccountNumber: acct, Event: "MT5_DISCONNECT"})
			log.Warn().Int64("account", acct).Msg("🔌 terminal disconnected — heartbeat lost")
		} else if !lost && !h.connected {
			h.connected = true
			transitions = append(transitions, Transition{AccountNumber: acct, Event: "MT5_RECONNECT"})
			log.Info().Int64("account", acct).Msg("🔌 terminal reconnected")
		}
		h.healthScore = computeHealthScore(h, r.hbLost)
	}
	return transitions
}

// computeHealthScore blends heartbeat freshness with average latency over
// the sliding window into a single [0,1] score.
func computeHealthScore(h *accountHealth, hbLost time.Duration) float64 {
	if !h.connected {
		return 0
	}
	freshness := 1.0
	if !h.lastHeartbeat.IsZero() {
		age := time.Since(h.lastHeartbeat)
		freshness = 1.0 - clamp01(float64(age)/float64(hbLost))
	}
	latencyScore := 1.0
	if len(h.latencies) > 0 {
		var sum time.Duration
		for _, l := range h.latencies {
			sum += l
		}
		avg := sum / time.Duration(len(h.latencies))
		// 500ms average latency or worse is treated as a fully degraded score
		latencyScore = 1.0 - clamp01(float64(avg)/float64(500*time.Millisecond))
	}
	return 0.7*freshness + 0.3*latencyScore
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
