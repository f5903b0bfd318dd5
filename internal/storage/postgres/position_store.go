package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
// The position document lives in a JSONB column; key and status columns
// are kept alongside for lookups.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Insert adds a new position. Returns ErrDuplicateKey if the key exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}

	query := `
		INSERT INTO positions (chain, token, timeframe, status, current_trade_id, data, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`
	_, err = s.pool.Exec(ctx, query,
		p.Key.Chain, p.Key.Token, p.Key.Timeframe,
		string(p.Status), p.CurrentTradeID, data, p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Get retrieves a position by key. Returns ErrNotFound if not exists.
func (s *PositionStore) Get(ctx context.Context, key domain.PositionKey) (*domain.Position, error) {
	query := `SELECT data FROM positions WHERE chain = $1 AND token = $2 AND timeframe = $3`

	var data []byte
	err := s.pool.QueryRow(ctx, query, key.Chain, key.Token, key.Timeframe).Scan(&data)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return decodePosition(data)
}

// Update replaces a stored position. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}

	query := `
		UPDATE positions
		SET status = $4, current_trade_id = NULLIF($5, ''), data = $6, updated_at = $7
		WHERE chain = $1 AND token = $2 AND timeframe = $3
	`
	tag, err := s.pool.Exec(ctx, query,
		p.Key.Chain, p.Key.Token, p.Key.Timeframe,
		string(p.Status), p.CurrentTradeID, data, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List returns all positions ordered by key.
func (s *PositionStore) List(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT data FROM positions ORDER BY chain, token, timeframe`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Position
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p, err := decodePosition(data)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return result, nil
}

func decodePosition(data []byte) (*domain.Position, error) {
	var p domain.Position
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	return &p, nil
}
