// Package ingress implements the four HTTP surfaces (control, ticks,
// trades, logs), each a separate chi router bound to its own port,
// using the chi middleware stack (RequestID/RealIP/Recoverer/Timeout,
// plus go-chi/cors on the control surface) across four narrow
// JSON/REST surfaces, one per MT5 data class.
package ingress

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/mt5bridge/engine/internal/config"
	"github.com/mt5bridge/engine/internal/engine"
	"github.com/mt5bridge/engine/internal/marketdata"
	"github.com/mt5bridge/engine/internal/queue"
	"github.com/mt5bridge/engine/internal/registry"
	"github.com/mt5bridge/engine/internal/store"
)

// Deps are the shared dependencies every ingress surface needs.
type Deps struct {
	Store      *store.Store
	Queue      *queue.Queue
	Registry   *registry.Registry
	Ticks      *marketdata.TickWriter
	Historical *marketdata.HistoricalImporter
	Config     *config.Config
	BrokerTimeOffset time.Duration

	// Engine is optional — when set, trade-close ingress handlers route
	// through it so protection/adaptive-config state reacts to
	// terminal-reported closes the same way it does to engine-driven ones.
	Engine *engine.Engine
}

// Servers bundles the four independently listening HTTP servers.
type Servers struct {
	Control *http.Server
	Ticks   *http.Server
	Trades  *http.Server
	Logs    *http.Server
}

func baseRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	return r
}

// NewServers builds the four routers and wraps each in its own
// *http.Server bound to the configured port.
func NewServers(deps *Deps) *Servers {
	corsMW := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	})

	control := baseRouter()
	control.Use(corsMW)
	mountControl(control, deps)

	ticks := baseRouter()
	mountTicks(ticks, deps)

	trades := baseRouter()
	mountTrades(trades, deps)

	logs := baseRouter()
	mountLogs(logs, deps)

	mk := func(port int, handler http.Handler) *http.Server {
		return &http.Server{
			Addr:         portAddr(port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
	}

	return &Servers{
		Control: mk(deps.Config.Server.ControlPort, control),
		Ticks:   mk(deps.Config.Server.TickPort, ticks),
		Trades:  mk(deps.Config.Server.TradePort, trades),
		Logs:    mk(deps.Config.Server.LogPort, logs),
	}
}

func portAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

// Run starts all four servers and blocks until ctx is canceled, then
// shuts each down gracefully.
func (s *Servers) Run(ctx context.Context) {
	go listenAndLog(s.Control, "control")
	go listenAndLog(s.Ticks, "ticks")
	go listenAndLog(s.Trades, "trades")
	go listenAndLog(s.Logs, "logs")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{s.Control, s.Ticks, s.Trades, s.Logs} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("addr", srv.Addr).Msg("⚠️ ingress server shutdown error")
		}
	}
}

func listenAndLog(srv *http.Server, name string) {
	log.Info().Str("surface", name).Str("addr", srv.Addr).Msg("📡 ingress surface listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Str("surface", name).Msg("💥 ingress server stopped")
	}
}
