package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

// OverrideStore implements storage.OverrideStore using PostgreSQL.
// Matching uses JSONB containment, served by the GIN index on scope.
type OverrideStore struct {
	pool *Pool
}

// NewOverrideStore creates a new OverrideStore.
func NewOverrideStore(pool *Pool) *OverrideStore {
	return &OverrideStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OverrideStore = (*OverrideStore)(nil)

// ReplaceGating swaps the full gating override set in one transaction.
func (s *OverrideStore) ReplaceGating(ctx context.Context, overrides []domain.GatingOverride) error {
	for _, o := range overrides {
		if o.ID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM gating_overrides`); err != nil {
		return fmt.Errorf("clear gating overrides: %w", err)
	}

	query := `
		INSERT INTO gating_overrides (
			id, lesson_id, pattern_key, category, scope, multipliers,
			benefit, cost, ratio, confidence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	batch := &pgx.Batch{}
	for _, o := range overrides {
		scope, err := scopeJSON(o.Scope)
		if err != nil {
			return fmt.Errorf("encode scope: %w", err)
		}
		mults, err := json.Marshal(o.Multipliers)
		if err != nil {
			return fmt.Errorf("encode multipliers: %w", err)
		}
		batch.Queue(query,
			o.ID, o.LessonID, o.PatternKey, o.Category, scope, mults,
			o.Benefit, o.Cost, o.Ratio, o.Confidence, o.CreatedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert gating overrides: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ReplacePosture swaps the full posture override set in one transaction.
func (s *OverrideStore) ReplacePosture(ctx context.Context, overrides []domain.PostureOverride) error {
	for _, o := range overrides {
		if o.ID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM posture_overrides`); err != nil {
		return fmt.Errorf("clear posture overrides: %w", err)
	}

	query := `
		INSERT INTO posture_overrides (
			id, lesson_id, pattern_key, category, target, scope,
			direction, confidence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	batch := &pgx.Batch{}
	for _, o := range overrides {
		scope, err := scopeJSON(o.Scope)
		if err != nil {
			return fmt.Errorf("encode scope: %w", err)
		}
		batch.Queue(query,
			o.ID, o.LessonID, o.PatternKey, o.Category, string(o.Target), scope,
			o.Direction, o.Confidence, o.CreatedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert posture overrides: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// MatchingGating returns gating overrides whose scope is a subset of scope.
func (s *OverrideStore) MatchingGating(ctx context.Context, scope map[string]string) ([]domain.GatingOverride, error) {
	ctxJSON, err := scopeJSON(scope)
	if err != nil {
		return nil, fmt.Errorf("encode scope: %w", err)
	}

	query := `
		SELECT id, lesson_id, pattern_key, category, scope, multipliers,
			benefit, cost, ratio, confidence, created_at
		FROM gating_overrides
		WHERE scope <@ $1::jsonb
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, ctxJSON)
	if err != nil {
		return nil, fmt.Errorf("query gating overrides: %w", err)
	}
	defer rows.Close()

	var result []domain.GatingOverride
	for rows.Next() {
		var o domain.GatingOverride
		var scopeRaw, multsRaw []byte
		if err := rows.Scan(
			&o.ID, &o.LessonID, &o.PatternKey, &o.Category, &scopeRaw, &multsRaw,
			&o.Benefit, &o.Cost, &o.Ratio, &o.Confidence, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan gating override: %w", err)
		}
		if err := json.Unmarshal(scopeRaw, &o.Scope); err != nil {
			return nil, fmt.Errorf("decode scope: %w", err)
		}
		if err := json.Unmarshal(multsRaw, &o.Multipliers); err != nil {
			return nil, fmt.Errorf("decode multipliers: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gating overrides: %w", err)
	}
	return result, nil
}

// MatchingPosture returns posture overrides whose scope is a subset of scope.
func (s *OverrideStore) MatchingPosture(ctx context.Context, scope map[string]string) ([]domain.PostureOverride, error) {
	ctxJSON, err := scopeJSON(scope)
	if err != nil {
		return nil, fmt.Errorf("encode scope: %w", err)
	}

	query := `
		SELECT id, lesson_id, pattern_key, category, target, scope,
			direction, confidence, created_at
		FROM posture_overrides
		WHERE scope <@ $1::jsonb
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, ctxJSON)
	if err != nil {
		return nil, fmt.Errorf("query posture overrides: %w", err)
	}
	defer rows.Close()

	var result []domain.PostureOverride
	for rows.Next() {
		var o domain.PostureOverride
		var target string
		var scopeRaw []byte
		if err := rows.Scan(
			&o.ID, &o.LessonID, &o.PatternKey, &o.Category, &target, &scopeRaw,
			&o.Direction, &o.Confidence, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan posture override: %w", err)
		}
		o.Target = domain.PostureTarget(target)
		if err := json.Unmarshal(scopeRaw, &o.Scope); err != nil {
			return nil, fmt.Errorf("decode scope: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posture overrides: %w", err)
	}
	return result, nil
}
