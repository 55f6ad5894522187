// Package agent wires the sync core together and runs it as a long-lived
// process with a health and metrics surface.
package agent

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/satlas/satlas-sync/internal/cache"
	"github.com/satlas/satlas-sync/internal/config"
	"github.com/satlas/satlas-sync/internal/connectivity"
	"github.com/satlas/satlas-sync/internal/events"
	"github.com/satlas/satlas-sync/internal/executor"
	"github.com/satlas/satlas-sync/internal/idmap"
	"github.com/satlas/satlas-sync/internal/platform/logger"
	"github.com/satlas/satlas-sync/internal/queue"
	"github.com/satlas/satlas-sync/internal/remote"
	"github.com/satlas/satlas-sync/internal/service"
	"github.com/satlas/satlas-sync/internal/syncer"
)

// Core bundles the wired components for embedding callers (the CLI reuses
// this for one-shot commands).
type Core struct {
	Cfg         *config.Config
	Log         zerolog.Logger
	Queue       *queue.SQLiteStore
	Monitor     *connectivity.Monitor
	Service     *service.Service
	Coordinator *syncer.Coordinator
}

// Build constructs the full dependency graph from configuration.
func Build(cfg *config.Config) (*Core, error) {
	log := logger.New("satlas-sync", cfg.LogLevel)

	path := cfg.QueuePath
	if path == "" {
		var err error
		path, err = queue.DBPath()
		if err != nil {
			return nil, err
		}
	}
	q, err := queue.NewSQLiteStore(path, log)
	if err != nil {
		return nil, err
	}

	store := remote.NewHTTPStore(cfg.RemoteBaseURL, cfg.RemoteTimeout, cfg.RemoteMaxAttempts, log)
	bus := events.NewBus()
	exec := executor.New(store, executor.Config{
		ProximityThresholdFeet: cfg.ProximityThresholdFeet,
		SuperuserID:            cfg.SuperuserID,
	}, bus, log)
	ids := idmap.NewMapper()
	monitor := connectivity.NewMonitor(cfg.DebounceWindow, log)
	coord := syncer.New(q, exec, ids, bus, log)

	svc := service.New(service.Deps{
		Monitor:  monitor,
		Queue:    q,
		Executor: exec,
		IDs:      ids,
		Cache:    cache.NewCache(),
		Bus:      bus,
		Log:      log,
	})

	return &Core{
		Cfg:         cfg,
		Log:         log,
		Queue:       q,
		Monitor:     monitor,
		Service:     svc,
		Coordinator: coord,
	}, nil
}

// Close releases held resources.
func (c *Core) Close() error { return c.Queue.Close() }

// Run builds the core and blocks until shutdown.
func Run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	core, err := Build(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = core.Close() }()
	log := core.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	detach := core.Coordinator.Attach(core.Monitor)
	defer detach()

	probeURL := cfg.ProbeURL
	if probeURL == "" {
		probeURL = cfg.RemoteBaseURL
	}
	prober, err := connectivity.NewProber(core.Monitor, probeURL, cfg.ProbeInterval, cfg.RemoteTimeout, log)
	if err != nil {
		// Non-fatal: the monitor stays optimistically online.
		log.Warn().Err(err).Msg("reachability probe unavailable; assuming online")
	} else {
		go func() { _ = prober.Run(ctx) }()
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	srv := &http.Server{Addr: cfg.GetHTTPAddr(), Handler: router}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("agent http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("agent http server exit")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("agent stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
