// Package store implements PostgreSQL persistence for the staging,
// vector and skills tables.
//
// Writes that belong to one commit unit go through a single transaction
// per call: a failure rolls back only that chunk, everything previously
// committed stays intact.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivanshamaev/rag-hh/internal/model"
)

// Store wraps the shared connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// StageRaw upserts a single raw document keyed by its hh.ru id.
// On conflict the payload is fully replaced and staged_at is refreshed.
func (s *Store) StageRaw(ctx context.Context, hhID string, raw json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO raw_vacancies (hh_id, raw_json, staged_at)
		 VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (hh_id) DO UPDATE SET
		     raw_json  = EXCLUDED.raw_json,
		     staged_at = EXCLUDED.staged_at`,
		hhID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("stage raw %s: %w", hhID, err)
	}
	return nil
}

// StageChunk upserts a chunk of raw documents as one transaction.
func (s *Store) StageChunk(ctx context.Context, recs []model.RawVacancy) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin stage chunk: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range recs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO raw_vacancies (hh_id, raw_json, staged_at)
			 VALUES ($1, $2::jsonb, NOW())
			 ON CONFLICT (hh_id) DO UPDATE SET
			     raw_json  = EXCLUDED.raw_json,
			     staged_at = EXCLUDED.staged_at`,
			r.HHID, string(r.RawJSON),
		); err != nil {
			return fmt.Errorf("stage raw %s: %w", r.HHID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit stage chunk: %w", err)
	}
	return nil
}

// ReadAllRaw returns staged documents ordered by staging time.
// limit 0 means no cap.
func (s *Store) ReadAllRaw(ctx context.Context, limit int) ([]model.RawVacancy, error) {
	query := `SELECT hh_id, raw_json, staged_at FROM raw_vacancies ORDER BY staged_at`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read raw: %w", err)
	}
	defer rows.Close()

	var recs []model.RawVacancy
	for rows.Next() {
		var r model.RawVacancy
		if err := rows.Scan(&r.HHID, &r.RawJSON, &r.StagedAt); err != nil {
			return nil, fmt.Errorf("scan raw: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// CountRaw returns the number of staged documents.
func (s *Store) CountRaw(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM raw_vacancies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count raw: %w", err)
	}
	return n, nil
}
