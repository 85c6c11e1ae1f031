// Package ingest orchestrates the two-stage pipeline.
//
// Stage 1 pulls vacancy ids out of hh.ru search and stages the raw
// detail documents — slow, rate-limited, failure-prone, paid once.
// Stage 2 rebuilds processed records and embeddings from the staged
// corpus — cheap to re-run, never touches hh.ru.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ivanshamaev/rag-hh/internal/hh"
	"github.com/ivanshamaev/rag-hh/internal/model"
)

// DefaultQueries is the Data Engineer query set used when a bulk run
// does not specify its own. Order matters: collection stops at the
// target count, so earlier queries win.
var DefaultQueries = []string{
	"data engineer",
	"дата инженер",
	"инженер данных",
	"etl разработчик",
	"dwh",
	"airflow",
	"spark",
}

// Source is the upstream listing API.
type Source interface {
	Search(ctx context.Context, text string, perPage, maxPages int, searchField string) ([]hh.SearchItem, error)
	SearchAndCollectIDs(ctx context.Context, queries []string, target int) ([]string, error)
	FetchDetail(ctx context.Context, id string) (json.RawMessage, error)
}

// Storage is the staging and vector persistence used by the worker.
// Each chunk-level call is one commit unit.
type Storage interface {
	StageChunk(ctx context.Context, recs []model.RawVacancy) error
	ReadAllRaw(ctx context.Context, limit int) ([]model.RawVacancy, error)
	UpsertChunk(ctx context.Context, vacs []model.Vacancy) error
}

// Embedder converts texts to fixed-width vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Worker runs the pipeline stages sequentially; there is no internal
// parallelism, and rate limiting happens inside the Source.
type Worker struct {
	source   Source
	storage  Storage
	embedder Embedder
}

// NewWorker returns a configured Worker.
func NewWorker(source Source, storage Storage, embedder Embedder) *Worker {
	return &Worker{source: source, storage: storage, embedder: embedder}
}

// StageIDs fetches detail documents for ids and stages them in chunks
// of chunkSize, committing once per chunk. A fetch failure for one id is
// logged and skipped — that id is simply absent from the staged set.
// A storage failure aborts the run; chunks committed before it stay.
func (w *Worker) StageIDs(ctx context.Context, ids []string, chunkSize int) (int, error) {
	if chunkSize < 1 {
		chunkSize = 1
	}

	staged := 0
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}

		var recs []model.RawVacancy
		for _, id := range ids[start:end] {
			raw, err := w.source.FetchDetail(ctx, id)
			if err != nil {
				log.Printf("[ingest] Fetch %s failed: %v — skipping", id, err)
				continue
			}
			if raw == nil {
				log.Printf("[ingest] Vacancy %s no longer exists — skipping", id)
				continue
			}
			recs = append(recs, model.RawVacancy{HHID: id, RawJSON: raw})
		}

		if len(recs) == 0 {
			continue
		}
		if err := w.storage.StageChunk(ctx, recs); err != nil {
			return staged, fmt.Errorf("stage chunk at %d: %w", start, err)
		}
		staged += len(recs)
	}
	return staged, nil
}

// IngestQuery runs stage 1 for a single search query, staging at most
// maxVacancies raw documents. The page budget is derived from
// maxVacancies so no summary pages beyond the cap are fetched.
func (w *Worker) IngestQuery(ctx context.Context, query string, maxVacancies, chunkSize int) (int, error) {
	if maxVacancies < 1 {
		maxVacancies = 1
	}
	maxPages := (maxVacancies + hh.PerPageMax - 1) / hh.PerPageMax
	items, err := w.source.Search(ctx, query, hh.PerPageMax, maxPages, "name")
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{})
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		ids = append(ids, it.ID)
		if len(ids) >= maxVacancies {
			break
		}
	}
	return w.StageIDs(ctx, ids, chunkSize)
}

// IngestBulk runs stage 1 across an ordered query list, collecting up
// to targetCount unique ids (first-seen wins) before staging.
func (w *Worker) IngestBulk(ctx context.Context, queries []string, targetCount, chunkSize int) (int, error) {
	if len(queries) == 0 {
		queries = DefaultQueries
	}
	ids, err := w.source.SearchAndCollectIDs(ctx, queries, targetCount)
	if err != nil {
		return 0, err
	}
	log.Printf("[ingest] Collected %d unique ids across %d queries", len(ids), len(queries))
	return w.StageIDs(ctx, ids, chunkSize)
}

// Reprocess runs stage 2: staged documents are read in staging order
// (limit 0 = all), parsed, embedded in batches of chunkSize and
// upserted, one commit per chunk. A chunk with no parseable records is
// skipped without committing. Returns the number of processed records.
func (w *Worker) Reprocess(ctx context.Context, limit, chunkSize int) (int, error) {
	if chunkSize < 1 {
		chunkSize = 1
	}

	recs, err := w.storage.ReadAllRaw(ctx, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for start := 0; start < len(recs); start += chunkSize {
		end := start + chunkSize
		if end > len(recs) {
			end = len(recs)
		}

		var vacs []model.Vacancy
		var texts []string
		for _, rec := range recs[start:end] {
			v, err := hh.ParseVacancy(rec.RawJSON)
			if err != nil {
				log.Printf("[ingest] Skipping %s: %v", rec.HHID, err)
				continue
			}
			vacs = append(vacs, buildVacancy(rec.HHID, v))
			texts = append(texts, hh.BuildEmbeddingText(v))
		}
		if len(vacs) == 0 {
			continue
		}

		vecs, err := w.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return processed, fmt.Errorf("embed chunk at %d: %w", start, err)
		}
		for i := range vacs {
			vacs[i].Embedding = vecs[i]
		}

		if err := w.storage.UpsertChunk(ctx, vacs); err != nil {
			return processed, fmt.Errorf("upsert chunk at %d: %w", start, err)
		}
		processed += len(vacs)
	}
	return processed, nil
}

// buildVacancy derives the processed record from a parsed raw document.
// The embedding is attached afterwards.
func buildVacancy(hhID string, v *hh.Vacancy) model.Vacancy {
	out := model.Vacancy{
		HHID:        hhID,
		Name:        v.Name,
		Description: hh.StripHTML(v.Description),
		PublishedAt: hh.ParseDate(v.PublishedAt),
	}
	if v.Employer != nil && v.Employer.Name != "" {
		out.EmployerName = &v.Employer.Name
	}
	if v.Area != nil && v.Area.Name != "" {
		out.AreaName = &v.Area.Name
	}
	if v.Salary != nil {
		out.SalaryFrom = v.Salary.From
		out.SalaryTo = v.Salary.To
	}
	if v.AlternateURL != "" {
		out.URL = &v.AlternateURL
	}
	return out
}
