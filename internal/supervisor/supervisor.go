// Package supervisor runs the periodic workers (signal generator,
// decision pipeline, trailing-stop manager, protection, watchdog, sweeps)
// as independently-monitored goroutines: a goroutine-per-loop pattern
// with a context.WithCancel shutdown, generalized into a single
// supervisor that tracks health per worker and restarts with backoff.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Health is the externally-inspectable state of one worker.
type Health struct {
	Name         string
	LastRun      time.Time
	LastSuccess  time.Time
	ErrorCount   int
	SuccessCount int
	IsHealthy    bool
}

// WorkFunc is one iteration of a worker's periodic task. A returned
// error counts as a failed run and triggers backoff; it must never be a
// panic — workers catch, log, back off, and continue.
type WorkFunc func(ctx context.Context) error

type worker struct {
	name     string
	interval time.Duration
	fn       WorkFunc
}

// Supervisor owns a set of periodic workers and their health state.
type Supervisor struct {
	mu      sync.RWMutex
	workers []worker
	health  map[string]*Health
	wg      sync.WaitGroup
}

// New creates an empty Supervisor.
func New() *Supervisor {
	return &Supervisor{health: make(map[string]*Health)}
}

// Register adds a periodic worker; it runs once per interval until the
// Supervisor's Run context is canceled.
func (sv *Supervisor) Register(name string, interval time.Duration, fn WorkFunc) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.workers = append(sv.workers, worker{name: name, interval: interval, fn: fn})
	sv.health[name] = &Health{Name: name, IsHealthy: true}
}

// Run starts every registered worker in its own goroutine and blocks
// until ctx is canceled, then waits for all workers to finish their
// current iteration (graceful shutdown).
func (sv *Supervisor) Run(ctx context.Context) {
	sv.mu.RLock()
	workers := append([]worker(nil), sv.workers...)
	sv.mu.RUnlock()

	for _, w := range workers {
		sv.wg.Add(1)
		go sv.runWorker(ctx, w)
	}
	sv.wg.Wait()
	log.Info().Msg("🛑 supervisor: all workers stopped")
}

func (sv *Supervisor) runWorker(ctx context.Context, w worker) {
	defer sv.wg.Done()

	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			sv.runOnce(ctx, w)
			timer.Reset(sv.nextInterval(w))
		}
	}
}

func (sv *Supervisor) runOnce(ctx context.Context, w worker) {
	h := sv.healthFor(w.name)

	func() {
		defer func() {
			if r := recover(); r != nil {
				sv.recordFailure(h, w.name)
				log.Error().Str("worker", w.name).Interface("panic", r).Msg("💥 worker panicked, recovering")
			}
		}()

		sv.mu.Lock()
		h.LastRun = time.Now().UTC()
		sv.mu.Unlock()

		if err := w.fn(ctx); err != nil {
			sv.recordFailure(h, w.name)
			log.Error().Err(err).Str("worker", w.name).Msg("⚠️ worker iteration failed")
			return
		}
		sv.mu.Lock()
		h.LastSuccess = time.Now().UTC()
		h.SuccessCount++
		h.ErrorCount = 0
		h.IsHealthy = true
		sv.mu.Unlock()
	}()
}

func (sv *Supervisor) recordFailure(h *Health, name string) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	h.ErrorCount++
	h.IsHealthy = h.ErrorCount < 5
}

// nextInterval applies an escalating backoff — min(60 × error_count,
// 300)s — on top of the worker's normal interval once it has started
// failing.
func (sv *Supervisor) nextInterval(w worker) time.Duration {
	h := sv.healthFor(w.name)
	sv.mu.RLock()
	errCount := h.ErrorCount
	sv.mu.RUnlock()
	if errCount == 0 {
		return w.interval
	}
	backoff := time.Duration(errCount*60) * time.Second
	if backoff > 300*time.Second {
		backoff = 300 * time.Second
	}
	return w.interval + backoff
}

func (sv *Supervisor) healthFor(name string) *Health {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	h, ok := sv.health[name]
	if !ok {
		h = &Health{Name: name, IsHealthy: true}
		sv.health[name] = h
	}
	return h
}

// Snapshot returns a copy of every worker's current health, for external
// inspection (e.g. a /health endpoint).
func (sv *Supervisor) Snapshot() []Health {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	out := make([]Health, 0, len(sv.health))
	for _, h := range sv.health {
		out = append(out, *h)
	}
	return out
}
