// mt5engine-server - MT5 Automated Trading Backend
//
// Ingests ticks and trade state from MT5 terminals over four HTTP
// surfaces, maintains durable account/position/market-data state, and
// runs the signal generation → decision → sizing → trailing-stop
// pipeline as a set of supervised periodic workers.
//
// Architecture: ingress → store → engine (signals → decision → trailing
// → protection) → command queue → ingress (terminals poll for commands)
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mt5bridge/engine/internal/config"
	"github.com/mt5bridge/engine/internal/engine"
	"github.com/mt5bridge/engine/internal/ingress"
	"github.com/mt5bridge/engine/internal/marketdata"
	"github.com/mt5bridge/engine/internal/notify"
	"github.com/mt5bridge/engine/internal/queue"
	"github.com/mt5bridge/engine/internal/registry"
	"github.com/mt5bridge/engine/internal/store"
	"github.com/mt5bridge/engine/internal/supervisor"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Msg("🚀 starting mt5engine-server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ====== STORAGE ======
	st, err := store.New(cfg.DB.Driver, cfg.DB.URL, cfg.APIKeyEncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to store")
	}
	defer st.Close()

	q, err := queue.New(cfg.Cache.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to command queue")
	}
	defer q.Close()

	reg := registry.New(cfg.Timings.HeartbeatLost, cfg.Timings.TickStale)

	tickWriter := marketdata.NewTickWriter(st)
	historical := marketdata.NewHistoricalImporter(st)

	// ====== NOTIFICATIONS ======
	var notifier notify.Notifier
	if tg, err := notify.NewTelegramNotifier(); err != nil {
		log.Warn().Err(err).Msg("telegram notifier unavailable, notifications disabled")
	} else {
		notifier = tg
	}

	// ====== ENGINE ======
	// News/ML are optional boundaries with no concrete provider wired here;
	// with nil the engine uses a no-op ML scorer and skips the news gate.
	eng := engine.New(st, q, reg, cfg, notifier, nil, nil)

	// ====== SUPERVISED WORKERS ======
	sv := supervisor.New()
	sv.Register("signal-generator", 30*time.Second, eng.GenerateSignals)
	sv.Register("decision-pipeline", 10*time.Second, eng.EvaluateDecisions)
	sv.Register("trailing-stops", 5*time.Second, eng.EvaluateTrailingStops)
	sv.Register("protection", 60*time.Second, eng.EnforceProtection)
	sv.Register("registry-watchdog", 60*time.Second, func(ctx context.Context) error {
		reg.Sweep(time.Now().UTC())
		return nil
	})
	sv.Register("tick-flush", time.Second, tickWriter.Flush)
	sv.Register("retention-purge", time.Hour, func(ctx context.Context) error {
		return eng.PurgeRetention(ctx, tickWriter)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sv.Run(ctx)
	}()

	// ====== INGRESS ======
	servers := ingress.NewServers(&ingress.Deps{
		Store:            st,
		Queue:            q,
		Registry:         reg,
		Ticks:            tickWriter,
		Historical:       historical,
		Config:           cfg,
		BrokerTimeOffset: cfg.BrokerTimeOffset,
		Engine:           eng,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		servers.Run(ctx)
	}()

	log.Info().Msg("✅ all services started")
	log.Info().
		Int("control_port", cfg.Server.ControlPort).
		Int("tick_port", cfg.Server.TickPort).
		Int("trade_port", cfg.Server.TradePort).
		Int("log_port", cfg.Server.LogPort).
		Msg("📡 ingress surfaces bound")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 shutting down...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		log.Warn().Msg("⚠️ shutdown timed out waiting for workers to drain")
	}

	log.Info().Msg("👋 goodbye")
}
