// Package app wires configuration to concrete stores and lockers for the
// command entry points.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trendloop/internal/config"
	"trendloop/internal/jobs"
	"trendloop/internal/storage"
	chstore "trendloop/internal/storage/clickhouse"
	"trendloop/internal/storage/memory"
	"trendloop/internal/storage/migrations"
	pgstore "trendloop/internal/storage/postgres"
)

// Stores holds all storage implementations.
type Stores struct {
	Positions storage.PositionStore
	Blocks    storage.BlockStore
	Facts     storage.FactStore
	Lessons   storage.LessonStore
	Overrides storage.OverrideStore
}

// OpenStores creates the stores for the configured backend and applies
// migrations. The returned cleanup closes every connection.
func OpenStores(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*Stores, func(), error) {
	if strings.EqualFold(cfg.Backend, config.BackendMemory) {
		log.Warn().Msg("using in-memory storage, state is lost on exit")
		return &Stores{
			Positions: memory.NewPositionStore(),
			Blocks:    memory.NewBlockStore(),
			Facts:     memory.NewFactStore(),
			Lessons:   memory.NewLessonStore(),
			Overrides: memory.NewOverrideStore(),
		}, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, log)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &Stores{
		// PostgreSQL stores (mutable state)
		Positions: pgstore.NewPositionStore(pool),
		Blocks:    pgstore.NewBlockStore(pool),
		Overrides: pgstore.NewOverrideStore(pool),

		// ClickHouse stores (append-only facts)
		Facts:   chstore.NewFactStore(chConn),
		Lessons: chstore.NewLessonStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// OpenLocker returns the redis job locker, or nil when no redis address
// is configured.
func OpenLocker(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (jobs.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info().Msg("no redis configured, job lock is process-local")
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return jobs.NewRedisLocker(client, ""), func() { _ = client.Close() }, nil
}
