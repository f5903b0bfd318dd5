package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

// FactStore implements storage.FactStore using ClickHouse.
// Fact tables are ReplacingMergeTree keyed by id; uniqueness is enforced by
// an explicit existence check before insert.
type FactStore struct {
	conn *Conn
}

// NewFactStore creates a new FactStore.
func NewFactStore(conn *Conn) *FactStore {
	return &FactStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FactStore = (*FactStore)(nil)

// InsertEvidence appends evidence rows in one batch.
func (s *FactStore) InsertEvidence(ctx context.Context, rows []domain.EvidenceRow) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r.UnitID == "" || r.PatternKey == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO evidence (unit_id, source, pattern_key, category, scope, metric, at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(
			r.UnitID, string(r.Source), r.PatternKey, r.Category,
			nonNilScope(r.Scope), r.Metric, r.At.UTC(),
		); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// InsertTradeFact appends a trade closure. Returns ErrDuplicateKey if trade_id exists.
func (s *FactStore) InsertTradeFact(ctx context.Context, f domain.TradeFact) error {
	if f.TradeID == "" {
		return storage.ErrInvalidInput
	}
	exists, err := s.exists(ctx, "trade_facts", "trade_id", f.TradeID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode trade fact: %w", err)
	}
	query := `
		INSERT INTO trade_facts (trade_id, chain, token, timeframe, rr, roi, pnl_usd, closed_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err = s.conn.Exec(ctx, query,
		f.TradeID, f.PositionKey.Chain, f.PositionKey.Token, f.PositionKey.Timeframe,
		f.Summary.RR, f.Summary.ROI, f.Summary.PnLUSD, f.ClosedAt.UTC(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert trade fact: %w", err)
	}
	return nil
}

// InsertEpisodeFact appends a closed episode. Returns ErrDuplicateKey if the episode id exists.
func (s *FactStore) InsertEpisodeFact(ctx context.Context, f domain.EpisodeFact) error {
	if f.Episode.ID == "" {
		return storage.ErrInvalidInput
	}
	exists, err := s.exists(ctx, "episode_facts", "episode_id", f.Episode.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode episode fact: %w", err)
	}
	query := `
		INSERT INTO episode_facts (episode_id, class, pattern_key, category, outcome, closed_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	err = s.conn.Exec(ctx, query,
		f.Episode.ID, string(f.Episode.Class), f.PatternKey, f.Category,
		string(f.Episode.Outcome), f.Episode.ClosedAt.UTC(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert episode fact: %w", err)
	}
	return nil
}

// EvidenceSince returns evidence rows with At >= since, ordered by At ASC.
func (s *FactStore) EvidenceSince(ctx context.Context, since time.Time) ([]domain.EvidenceRow, error) {
	query := `
		SELECT unit_id, source, pattern_key, category, scope, metric, at
		FROM evidence
		WHERE at >= ?
		ORDER BY at ASC, unit_id ASC
	`
	rows, err := s.conn.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	var result []domain.EvidenceRow
	for rows.Next() {
		var r domain.EvidenceRow
		var source string
		if err := rows.Scan(&r.UnitID, &source, &r.PatternKey, &r.Category, &r.Scope, &r.Metric, &r.At); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		r.Source = domain.EvidenceSource(source)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return result, nil
}

// EpisodesSince returns closed episodes with ClosedAt >= since, ordered by ClosedAt ASC.
func (s *FactStore) EpisodesSince(ctx context.Context, since time.Time) ([]domain.EpisodeFact, error) {
	query := `
		SELECT payload
		FROM episode_facts FINAL
		WHERE closed_at >= ?
		ORDER BY closed_at ASC, episode_id ASC
	`
	rows, err := s.conn.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query episode facts: %w", err)
	}
	defer rows.Close()

	var result []domain.EpisodeFact
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan episode fact: %w", err)
		}
		var f domain.EpisodeFact
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			return nil, fmt.Errorf("decode episode fact: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episode facts: %w", err)
	}
	return result, nil
}

// exists checks whether id is present in table.
func (s *FactStore) exists(ctx context.Context, table, column, id string) (bool, error) {
	query := fmt.Sprintf(`SELECT count() FROM %s WHERE %s = ?`, table, column)
	var count uint64
	if err := s.conn.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
