package clickhouse

import (
	"context"
	"fmt"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

// LessonStore implements storage.LessonStore using ClickHouse.
// The table is ReplacingMergeTree(mined_at); reads use FINAL so a re-mined
// lesson shadows its older version.
type LessonStore struct {
	conn *Conn
}

// NewLessonStore creates a new LessonStore.
func NewLessonStore(conn *Conn) *LessonStore {
	return &LessonStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LessonStore = (*LessonStore)(nil)

// Upsert writes lessons keyed by id.
func (s *LessonStore) Upsert(ctx context.Context, lessons []domain.Lesson) error {
	if len(lessons) == 0 {
		return nil
	}
	for _, l := range lessons {
		if l.ID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO lessons (
			id, kind, pattern_key, category, scope, n,
			mean, variance, baseline, delta,
			reliability, support, consistency, decay, edge, mined_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, l := range lessons {
		if err := batch.Append(
			l.ID, string(l.Kind), l.PatternKey, l.Category, nonNilScope(l.Scope), uint32(l.N),
			l.Mean, l.Variance, l.Baseline, l.Delta,
			l.Reliability, l.Support, l.Consistency, l.Decay, l.Edge, l.MinedAt.UTC(),
		); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// List returns the latest version of every lesson ordered by id.
func (s *LessonStore) List(ctx context.Context) ([]domain.Lesson, error) {
	query := `
		SELECT
			id, kind, pattern_key, category, scope, n,
			mean, variance, baseline, delta,
			reliability, support, consistency, decay, edge, mined_at
		FROM lessons FINAL
		ORDER BY id
	`
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	var result []domain.Lesson
	for rows.Next() {
		var l domain.Lesson
		var kind string
		var n uint32
		if err := rows.Scan(
			&l.ID, &kind, &l.PatternKey, &l.Category, &l.Scope, &n,
			&l.Mean, &l.Variance, &l.Baseline, &l.Delta,
			&l.Reliability, &l.Support, &l.Consistency, &l.Decay, &l.Edge, &l.MinedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		l.Kind = domain.LessonKind(kind)
		l.N = int(n)
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}
	return result, nil
}
