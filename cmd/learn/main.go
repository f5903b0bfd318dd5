// Package main runs the learning job: evidence → lessons → overrides.
// With -once it runs a single pass; otherwise it repeats on
// jobs.learning_interval, guarded by the redis lock when configured.
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

	"trendloop/internal/app"
	"trendloop/internal/config"
	"trendloop/internal/jobs"
	"trendloop/internal/logging"
	"trendloop/internal/observability"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRENDLOOP_CONFIG"), "Path to YAML config file")
	once := flag.Bool("once", false, "Run a single learning pass and exit")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (disabled when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info", "json", os.Stderr).Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.App.LogLevel, cfg.App.LogFormat, os.Stdout).With().Str("cmd", "learn").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := app.OpenStores(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer cleanup()

	locker, closeLocker, err := app.OpenLocker(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open job lock")
	}
	defer closeLocker()

	runner := jobs.NewRunner(locker, cfg.Jobs.MaxRuntime, log)
	job := jobs.NewLearningJob(cfg, stores.Facts, stores.Lessons, stores.Overrides, log)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server error")
			}
		}()
	}

	run := func() {
		err := runner.Run(ctx, jobs.LearningJobName, job.Func())
		switch {
		case err == nil:
		case errors.Is(err, jobs.ErrJobRunning):
			log.Info().Msg("learning already running elsewhere")
		case errors.Is(err, context.Canceled):
		default:
			log.Error().Err(err).Msg("learning failed")
		}
	}

	run()
	if *once {
		return
	}

	ticker := time.NewTicker(cfg.Jobs.LearningInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown complete")
			return
		case <-ticker.C:
			run()
		}
	}
}
