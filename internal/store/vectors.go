package store

import (
	"context"
	"fmt"
	"math"

	"github.com/pgvector/pgvector-go"

	"github.com/ivanshamaev/rag-hh/internal/model"
)

// resultDescriptionCap bounds the description text returned from search
// so responses stay small; the full text lives in the table.
const resultDescriptionCap = 500

// UpsertChunk writes a chunk of processed vacancies as one transaction.
// Replacing an existing row overwrites every field — no merging.
func (s *Store) UpsertChunk(ctx context.Context, vacs []model.Vacancy) error {
	if len(vacs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert chunk: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, v := range vacs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO vacancies (
			     hh_id, name, description, employer_name, area_name,
			     salary_from, salary_to, url, published_at, embedding
			 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (hh_id) DO UPDATE SET
			     name          = EXCLUDED.name,
			     description   = EXCLUDED.description,
			     employer_name = EXCLUDED.employer_name,
			     area_name     = EXCLUDED.area_name,
			     salary_from   = EXCLUDED.salary_from,
			     salary_to     = EXCLUDED.salary_to,
			     url           = EXCLUDED.url,
			     published_at  = EXCLUDED.published_at,
			     embedding     = EXCLUDED.embedding`,
			v.HHID, v.Name, v.Description, v.EmployerName, v.AreaName,
			v.SalaryFrom, v.SalaryTo, v.URL, v.PublishedAt,
			pgvector.NewVector(v.Embedding),
		); err != nil {
			return fmt.Errorf("upsert vacancy %s: %w", v.HHID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert chunk: %w", err)
	}
	return nil
}

// SearchSimilar returns the limit nearest vacancies to queryVec by
// cosine distance, closest first. Similarity is 1 − distance, rounded
// to four decimal places.
func (s *Store) SearchSimilar(ctx context.Context, queryVec []float32, limit int) ([]model.SearchResult, error) {
	vec := pgvector.NewVector(queryVec)
	rows, err := s.pool.Query(ctx,
		`SELECT hh_id, name, COALESCE(description, ''), employer_name, area_name,
		        salary_from, salary_to, url,
		        1 - (embedding <=> $1) AS similarity
		 FROM vacancies
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var results []model.SearchResult
	for rows.Next() {
		var r model.SearchResult
		if err := rows.Scan(
			&r.HHID, &r.Name, &r.Description, &r.EmployerName, &r.AreaName,
			&r.SalaryFrom, &r.SalaryTo, &r.URL, &r.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Description = truncateRunes(r.Description, resultDescriptionCap)
		r.Similarity = RoundSimilarity(r.Similarity)
		results = append(results, r)
	}
	return results, rows.Err()
}

// RoundSimilarity rounds a cosine similarity to four decimal places.
func RoundSimilarity(sim float64) float64 {
	return math.Round(sim*10000) / 10000
}

// Stats aggregates counts over the staged and processed corpora.
func (s *Store) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM raw_vacancies`).Scan(&st.RawVacancies); err != nil {
		return nil, fmt.Errorf("stats raw count: %w", err)
	}
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(DISTINCT employer_name),
		        COUNT(*) FILTER (WHERE salary_from IS NOT NULL OR salary_to IS NOT NULL),
		        AVG(salary_from), AVG(salary_to)
		 FROM vacancies`,
	).Scan(&st.Vacancies, &st.Employers, &st.WithSalary, &st.AvgSalaryFrom, &st.AvgSalaryTo); err != nil {
		return nil, fmt.Errorf("stats vacancy aggregates: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT area_name, COUNT(*) AS cnt
		 FROM vacancies
		 WHERE area_name IS NOT NULL
		 GROUP BY area_name
		 ORDER BY cnt DESC, area_name
		 LIMIT 10`,
	)
	if err != nil {
		return nil, fmt.Errorf("stats areas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.AreaCount
		if err := rows.Scan(&a.Area, &a.Count); err != nil {
			return nil, fmt.Errorf("scan area: %w", err)
		}
		st.TopAreas = append(st.TopAreas, a)
	}
	return &st, rows.Err()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
