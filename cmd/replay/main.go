// Package main replays a directory of recorded feed snapshots through the
// tick loop against in-memory stores and writes the resulting report:
// - Frames: *.json snapshots ordered by snapshot time
// - Learning: optional pass every N frames, clocked at the frame time
// - Verify: optional second replay that must reproduce every trade
// - Output: report.md, trades.csv, lessons.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trendloop/internal/config"
	"trendloop/internal/logging"
	"trendloop/internal/replay"
	"trendloop/internal/reporting"
	"trendloop/internal/verification"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRENDLOOP_CONFIG"), "Path to YAML config file")
	dir := flag.String("dir", "", "Directory of feed snapshot files (required)")
	outputDir := flag.String("output-dir", "replay-out", "Output directory for generated files")
	learnEvery := flag.Int("learn-every", 0, "Run a learning pass every N frames (0 disables)")
	maxLessons := flag.Int("max-lessons", 50, "Lessons listed in the report (0 lists all)")
	verify := flag.Bool("verify", false, "Replay a second time and verify every trade is reproduced")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info", "json", os.Stderr).Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.App.LogLevel, cfg.App.LogFormat, os.Stdout).With().Str("cmd", "replay").Logger()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "Error: -dir is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	frames, err := replay.LoadDir(*dir)
	if err != nil {
		log.Fatal().Err(err).Msg("load frames")
	}

	opts := replay.SessionOptions{Config: cfg, Logger: log, LearnEvery: *learnEvery}
	session, cleanup, err := replay.NewSession(ctx, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("create replay session")
	}
	defer cleanup()

	sum, err := session.Run(ctx, frames)
	if err != nil {
		log.Fatal().Err(err).Msg("replay failed")
	}

	gen := reporting.NewGenerator(session.Stores.Positions, session.Stores.Lessons, *maxLessons).
		WithClock(func() time.Time { return sum.To })
	report, err := gen.Generate(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("generate report")
	}

	if err := writeOutputs(*outputDir, report); err != nil {
		log.Fatal().Err(err).Msg("write report")
	}

	log.Info().
		Int("frames", sum.Frames).
		Time("from", sum.From).
		Time("to", sum.To).
		Int("trades", len(report.Trades)).
		Int("lessons", len(report.Lessons)).
		Str("output_dir", *outputDir).
		Msg("replay report written")

	if *verify {
		vr, err := verification.NewReplayVerifier(opts).VerifyAll(ctx, session.Stores.Positions, frames)
		if err != nil {
			log.Fatal().Err(err).Msg("verify replay")
		}
		if !vr.Match() {
			for _, r := range vr.Results {
				if !r.Match {
					log.Error().Str("trade_id", r.TradeID).Int("divergences", len(r.Divergences)).Msg("trade diverged")
				}
			}
			log.Fatal().
				Int("divergent", vr.DivergentTrades).
				Int("missing", vr.MissingTrades).
				Int("extra", vr.ExtraTrades).
				Msg("replay is not reproducible")
		}
		log.Info().Int("trades", vr.TotalTrades).Msg("replay verified")
	}
}

func writeOutputs(dir string, report *reporting.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	outputs := []struct {
		name string
		body string
	}{
		{"report.md", reporting.RenderMarkdown(report)},
		{"trades.csv", reporting.RenderTradesCSV(report.Trades)},
		{"lessons.csv", reporting.RenderLessonsCSV(report.Lessons)},
	}
	for _, o := range outputs {
		if err := os.WriteFile(filepath.Join(dir, o.name), []byte(o.body), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", o.name, err)
		}
	}
	return nil
}
