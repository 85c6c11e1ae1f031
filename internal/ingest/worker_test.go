package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ivanshamaev/rag-hh/internal/hh"
	"github.com/ivanshamaev/rag-hh/internal/ingest"
	"github.com/ivanshamaev/rag-hh/internal/model"
)

// ── Fakes ──────────────────────────────────────────────────────────────────

type fakeSource struct {
	searchItems []string            // ids returned by Search / SearchAndCollectIDs
	failIDs     map[string]error    // FetchDetail error per id
	goneIDs     map[string]struct{} // ids resolving to nil (vacancy removed)
	fetched     []string
	maxPages    []int // page budget per Search call
}

func (f *fakeSource) Search(ctx context.Context, text string, perPage, maxPages int, searchField string) ([]hh.SearchItem, error) {
	f.maxPages = append(f.maxPages, maxPages)
	items := make([]hh.SearchItem, len(f.searchItems))
	for i, id := range f.searchItems {
		items[i] = hh.SearchItem{ID: id}
	}
	return items, nil
}

func (f *fakeSource) SearchAndCollectIDs(ctx context.Context, queries []string, target int) ([]string, error) {
	if len(f.searchItems) > target {
		return f.searchItems[:target], nil
	}
	return f.searchItems, nil
}

func (f *fakeSource) FetchDetail(ctx context.Context, id string) (json.RawMessage, error) {
	f.fetched = append(f.fetched, id)
	if err, ok := f.failIDs[id]; ok {
		return nil, err
	}
	if _, ok := f.goneIDs[id]; ok {
		return nil, nil
	}
	return json.RawMessage(fmt.Sprintf(`{"id":%q,"name":"Vacancy %s"}`, id, id)), nil
}

type fakeStorage struct {
	rawRecs []model.RawVacancy

	stagedChunks   [][]model.RawVacancy
	upsertedChunks [][]model.Vacancy

	failStageAt  int // 1-based call number that fails, 0 = never
	failUpsertAt int
}

func (f *fakeStorage) StageChunk(ctx context.Context, recs []model.RawVacancy) error {
	if f.failStageAt > 0 && len(f.stagedChunks)+1 == f.failStageAt {
		return errors.New("connection lost")
	}
	f.stagedChunks = append(f.stagedChunks, recs)
	return nil
}

func (f *fakeStorage) ReadAllRaw(ctx context.Context, limit int) ([]model.RawVacancy, error) {
	if limit > 0 && limit < len(f.rawRecs) {
		return f.rawRecs[:limit], nil
	}
	return f.rawRecs, nil
}

func (f *fakeStorage) UpsertChunk(ctx context.Context, vacs []model.Vacancy) error {
	if f.failUpsertAt > 0 && len(f.upsertedChunks)+1 == f.failUpsertAt {
		return errors.New("connection lost")
	}
	f.upsertedChunks = append(f.upsertedChunks, vacs)
	return nil
}

func (f *fakeStorage) stagedCount() int {
	n := 0
	for _, c := range f.stagedChunks {
		n += len(c)
	}
	return n
}

type fakeEmbedder struct {
	batches [][]string
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

func idRange(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%02d", i)
	}
	return ids
}

// ── Stage 1 ────────────────────────────────────────────────────────────────

func TestStageIDs_ChunksAndCommitsPerChunk(t *testing.T) {
	src := &fakeSource{}
	st := &fakeStorage{}
	w := ingest.NewWorker(src, st, &fakeEmbedder{})

	staged, err := w.StageIDs(context.Background(), idRange(25), 10)
	if err != nil {
		t.Fatalf("StageIDs: %v", err)
	}
	if staged != 25 {
		t.Errorf("staged = %d, want 25", staged)
	}
	sizes := []int{}
	for _, c := range st.stagedChunks {
		sizes = append(sizes, len(c))
	}
	if len(sizes) != 3 || sizes[0] != 10 || sizes[1] != 10 || sizes[2] != 5 {
		t.Errorf("chunk sizes = %v, want [10 10 5]", sizes)
	}
}

func TestStageIDs_SkipsFailedAndRemovedIDs(t *testing.T) {
	src := &fakeSource{
		failIDs: map[string]error{"id-01": errors.New("reset by peer")},
		goneIDs: map[string]struct{}{"id-03": {}},
	}
	st := &fakeStorage{}
	w := ingest.NewWorker(src, st, &fakeEmbedder{})

	staged, err := w.StageIDs(context.Background(), idRange(5), 10)
	if err != nil {
		t.Fatalf("per-id failures must not fail the run: %v", err)
	}
	if staged != 3 {
		t.Errorf("staged = %d, want 3 (one failed, one removed)", staged)
	}
	for _, rec := range st.stagedChunks[0] {
		if rec.HHID == "id-01" || rec.HHID == "id-03" {
			t.Errorf("id %s must not be staged", rec.HHID)
		}
	}
}

func TestStageIDs_StorageFailureKeepsEarlierChunks(t *testing.T) {
	src := &fakeSource{}
	st := &fakeStorage{failStageAt: 3}
	w := ingest.NewWorker(src, st, &fakeEmbedder{})

	staged, err := w.StageIDs(context.Background(), idRange(25), 10)
	if err == nil {
		t.Fatal("storage failure must abort the run")
	}
	if staged != 20 {
		t.Errorf("staged = %d, want 20 — two committed chunks", staged)
	}
	if st.stagedCount() != 20 {
		t.Errorf("storage holds %d records, want 20", st.stagedCount())
	}
}

func TestIngestQuery_PageBudgetFollowsCap(t *testing.T) {
	tests := []struct {
		maxVacancies int
		wantPages    int
	}{
		{30, 1},
		{100, 1},
		{101, 2},
		{250, 3},
	}
	for _, tt := range tests {
		src := &fakeSource{searchItems: idRange(5)}
		w := ingest.NewWorker(src, &fakeStorage{}, &fakeEmbedder{})

		if _, err := w.IngestQuery(context.Background(), "dwh", tt.maxVacancies, 10); err != nil {
			t.Fatalf("IngestQuery(%d): %v", tt.maxVacancies, err)
		}
		if len(src.maxPages) != 1 || src.maxPages[0] != tt.wantPages {
			t.Errorf("maxVacancies %d requested pages %v, want [%d]",
				tt.maxVacancies, src.maxPages, tt.wantPages)
		}
	}
}

func TestIngestBulk_UsesDefaultQueriesAndTarget(t *testing.T) {
	src := &fakeSource{searchItems: idRange(50)}
	st := &fakeStorage{}
	w := ingest.NewWorker(src, st, &fakeEmbedder{})

	staged, err := w.IngestBulk(context.Background(), nil, 30, 10)
	if err != nil {
		t.Fatalf("IngestBulk: %v", err)
	}
	if staged != 30 {
		t.Errorf("staged = %d, want the 30-id target", staged)
	}
}

// ── Stage 2 ────────────────────────────────────────────────────────────────

func stagedDocs(t *testing.T, n int) []model.RawVacancy {
	t.Helper()
	recs := make([]model.RawVacancy, n)
	for i := range recs {
		id := fmt.Sprintf("id-%02d", i)
		recs[i] = model.RawVacancy{
			HHID: id,
			RawJSON: json.RawMessage(fmt.Sprintf(
				`{"id":%q,"name":"Data Engineer %d","description":"<p>ETL на Airflow</p>","employer":{"name":"Acme"},"area":{"name":"Москва"},"salary":{"from":200000,"to":null},"alternate_url":"https://hh.ru/vacancy/%d","published_at":"2024-01-15T10:00:00+0300"}`,
				id, i, i)),
		}
	}
	return recs
}

func TestReprocess_BuildsRecordsAndAttachesVectors(t *testing.T) {
	st := &fakeStorage{rawRecs: stagedDocs(t, 3)}
	emb := &fakeEmbedder{}
	w := ingest.NewWorker(&fakeSource{}, st, emb)

	processed, err := w.Reprocess(context.Background(), 0, 50)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if processed != 3 {
		t.Errorf("processed = %d, want 3", processed)
	}
	if len(st.upsertedChunks) != 1 {
		t.Fatalf("got %d upsert commits, want 1", len(st.upsertedChunks))
	}

	v := st.upsertedChunks[0][1]
	if v.HHID != "id-01" || v.Name != "Data Engineer 1" {
		t.Errorf("unexpected record: %+v", v)
	}
	if v.Description == nil || *v.Description != "ETL на Airflow" {
		t.Errorf("description not stripped: %v", v.Description)
	}
	if v.EmployerName == nil || *v.EmployerName != "Acme" {
		t.Errorf("employer lost: %v", v.EmployerName)
	}
	if v.SalaryFrom == nil || *v.SalaryFrom != 200000 || v.SalaryTo != nil {
		t.Errorf("salary bounds mangled: from=%v to=%v", v.SalaryFrom, v.SalaryTo)
	}
	if v.PublishedAt == nil {
		t.Error("published_at not parsed")
	}
	// Vector i of the batch belongs to record i.
	if v.Embedding == nil || v.Embedding[0] != 1 {
		t.Errorf("embedding misattached: %v", v.Embedding)
	}
}

func TestReprocess_ChunkFailureKeepsEarlierChunks(t *testing.T) {
	st := &fakeStorage{rawRecs: stagedDocs(t, 25), failUpsertAt: 3}
	w := ingest.NewWorker(&fakeSource{}, st, &fakeEmbedder{})

	processed, err := w.Reprocess(context.Background(), 0, 10)
	if err == nil {
		t.Fatal("upsert failure must abort the run")
	}
	if processed != 20 {
		t.Errorf("processed = %d, want 20 — two committed chunks", processed)
	}
}

func TestReprocess_SkipsUnparseableRecords(t *testing.T) {
	recs := stagedDocs(t, 2)
	recs = append(recs, model.RawVacancy{HHID: "bad", RawJSON: json.RawMessage(`{"id": broken`)})
	st := &fakeStorage{rawRecs: recs}
	emb := &fakeEmbedder{}
	w := ingest.NewWorker(&fakeSource{}, st, emb)

	processed, err := w.Reprocess(context.Background(), 0, 50)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if processed != 2 {
		t.Errorf("processed = %d, want 2 — broken record skipped", processed)
	}
	if len(emb.batches) != 1 || len(emb.batches[0]) != 2 {
		t.Errorf("embedder saw %v, want one batch of 2 texts", emb.batches)
	}
}

func TestReprocess_AllBrokenChunkSkipsCommit(t *testing.T) {
	st := &fakeStorage{rawRecs: []model.RawVacancy{
		{HHID: "a", RawJSON: json.RawMessage(`nope`)},
		{HHID: "b", RawJSON: json.RawMessage(`also nope`)},
	}}
	emb := &fakeEmbedder{}
	w := ingest.NewWorker(&fakeSource{}, st, emb)

	processed, err := w.Reprocess(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if processed != 0 {
		t.Errorf("processed = %d, want 0", processed)
	}
	if len(emb.batches) != 0 || len(st.upsertedChunks) != 0 {
		t.Error("all-broken chunk must not reach the embedder or storage")
	}
}

func TestReprocess_HonorsLimit(t *testing.T) {
	st := &fakeStorage{rawRecs: stagedDocs(t, 10)}
	w := ingest.NewWorker(&fakeSource{}, st, &fakeEmbedder{})

	processed, err := w.Reprocess(context.Background(), 4, 50)
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if processed != 4 {
		t.Errorf("processed = %d, want 4", processed)
	}
}
