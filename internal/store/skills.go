package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/ivanshamaev/rag-hh/internal/model"
)

// SkillLink is one vacancy ↔ skill association.
type SkillLink struct {
	HHID    string
	SkillID int64
}

// EnsureSkills registers every name in the vocabulary, inserting only
// the ones not seen before. Vocabulary rows are never updated or deleted.
func (s *Store) EnsureSkills(ctx context.Context, names []string) error {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ensure skills: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, name := range sorted {
		if _, err := tx.Exec(ctx,
			`INSERT INTO skills (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
			name,
		); err != nil {
			return fmt.Errorf("insert skill %q: %w", name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ensure skills: %w", err)
	}
	return nil
}

// SkillIDs returns the full vocabulary as a name → id map.
func (s *Store) SkillIDs(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM skills`)
	if err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		ids[name] = id
	}
	return ids, rows.Err()
}

// ReplaceLinks rebuilds the vacancy_skills table in one transaction:
// every existing link is deleted, then the given set is inserted.
// Duplicate pairs in the input are collapsed by the ON CONFLICT clause.
func (s *Store) ReplaceLinks(ctx context.Context, links []SkillLink) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace links: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM vacancy_skills`); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}
	for _, l := range links {
		if _, err := tx.Exec(ctx,
			`INSERT INTO vacancy_skills (hh_id, skill_id) VALUES ($1, $2)
			 ON CONFLICT (hh_id, skill_id) DO NOTHING`,
			l.HHID, l.SkillID,
		); err != nil {
			return fmt.Errorf("insert link %s→%d: %w", l.HHID, l.SkillID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace links: %w", err)
	}
	return nil
}

// TopSkills lists vocabulary entries with their vacancy counts, most
// frequent first.
func (s *Store) TopSkills(ctx context.Context, limit int) ([]model.SkillCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.id, s.name, COUNT(vs.hh_id) AS vacancy_count
		 FROM skills s
		 LEFT JOIN vacancy_skills vs ON vs.skill_id = s.id
		 GROUP BY s.id, s.name
		 ORDER BY vacancy_count DESC, s.name
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top skills: %w", err)
	}
	defer rows.Close()

	var skills []model.SkillCount
	for rows.Next() {
		var sc model.SkillCount
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.VacancyCount); err != nil {
			return nil, fmt.Errorf("scan skill count: %w", err)
		}
		skills = append(skills, sc)
	}
	return skills, rows.Err()
}
