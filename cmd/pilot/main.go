// Package main runs the portfolio tick loop:
// - Feed (each tick): indicator snapshot file, watchlist registration
// - Orchestrator (each tick): state → episodes → regime → plan → paper execution
// - HTTP: /health and Prometheus /metrics
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"trendloop/internal/app"
	"trendloop/internal/config"
	"trendloop/internal/execution"
	"trendloop/internal/feed"
	"trendloop/internal/ledger"
	"trendloop/internal/logging"
	"trendloop/internal/observability"
	"trendloop/internal/orchestrator"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRENDLOOP_CONFIG"), "Path to YAML config file")
	once := flag.Bool("once", false, "Run a single tick and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info", "json", os.Stderr).Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.App.LogLevel, cfg.App.LogFormat, os.Stdout).With().Str("cmd", "pilot").Logger()

	if cfg.Tick.FeedPath == "" {
		log.Fatal().Msg("tick.feed_path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := app.OpenStores(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer cleanup()

	src := feed.NewFile(cfg.Tick.FeedPath, log)
	l := ledger.New(stores.Positions, log)

	orch, err := orchestrator.New(orchestrator.Options{
		Config:        cfg,
		Ledger:        l,
		BlockStore:    stores.Blocks,
		FactStore:     stores.Facts,
		OverrideStore: stores.Overrides,
		Features:      src,
		Drivers:       src,
		Executor:      execution.NewPaper(cfg.Tick.SlippageBps, log),
		Logger:        log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create orchestrator")
	}

	if !*once {
		go serveHTTP(ctx, cfg.App.MetricsAddr, log)
	}

	tick := func(at time.Time) {
		if err := src.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("feed refresh failed")
		}
		if n := app.RegisterWatchlist(ctx, l, src.Watchlist(), at, log); n > 0 {
			log.Info().Int("registered", n).Msg("watchlist updated")
		}
		if _, err := orch.Tick(ctx, at); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("tick failed")
		}
	}

	log.Info().
		Str("backend", cfg.Storage.Backend).
		Str("feed", cfg.Tick.FeedPath).
		Dur("interval", cfg.Tick.Interval).
		Int("workers", cfg.Tick.Workers).
		Msg("pilot started")

	tick(time.Now().UTC())
	if *once {
		return
	}

	ticker := time.NewTicker(cfg.Tick.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown complete")
			return
		case now := <-ticker.C:
			tick(now.UTC())
		}
	}
}

// serveHTTP exposes health and metrics until ctx is cancelled.
func serveHTTP(ctx context.Context, addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("starting HTTP server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("HTTP server error")
	}
}
