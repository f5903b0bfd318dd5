// Package main renders the portfolio report from the configured stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"trendloop/internal/app"
	"trendloop/internal/config"
	"trendloop/internal/logging"
	"trendloop/internal/reporting"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRENDLOOP_CONFIG"), "Path to YAML config file")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	maxLessons := flag.Int("max-lessons", 50, "Lessons listed in the report (0 lists all)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info", "json", os.Stderr).Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.App.LogLevel, cfg.App.LogFormat, os.Stdout).With().Str("cmd", "report").Logger()

	ctx := context.Background()

	stores, cleanup, err := app.OpenStores(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer cleanup()

	report, err := reporting.NewGenerator(stores.Positions, stores.Lessons, *maxLessons).Generate(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("generate report")
	}
	if reporting.IsEmpty(report) {
		log.Warn().Str("backend", cfg.Storage.Backend).Msg("no trades and no lessons in store")
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create output dir")
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
		path := filepath.Join(*outputDir, o.name)
		if err := os.WriteFile(path, []byte(o.body), 0o644); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("write output")
		}
		fmt.Println("Written:", path)
	}
}
