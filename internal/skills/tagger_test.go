package skills_test

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/ivanshamaev/rag-hh/internal/model"
	"github.com/ivanshamaev/rag-hh/internal/skills"
	"github.com/ivanshamaev/rag-hh/internal/store"
)

// ── Fakes ──────────────────────────────────────────────────────────────────

type fakeRawReader struct {
	recs []model.RawVacancy
}

func (f *fakeRawReader) ReadAllRaw(ctx context.Context, limit int) ([]model.RawVacancy, error) {
	return f.recs, nil
}

// fakeSkillStore hands out sequential ids for every ensured name and
// captures the final link set.
type fakeSkillStore struct {
	ids   map[string]int64
	links []store.SkillLink
}

func newFakeSkillStore() *fakeSkillStore {
	return &fakeSkillStore{ids: make(map[string]int64)}
}

func (f *fakeSkillStore) EnsureSkills(ctx context.Context, names []string) error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, n := range sorted {
		if _, ok := f.ids[n]; !ok {
			f.ids[n] = int64(len(f.ids) + 1)
		}
	}
	return nil
}

func (f *fakeSkillStore) SkillIDs(ctx context.Context) (map[string]int64, error) {
	return f.ids, nil
}

func (f *fakeSkillStore) ReplaceLinks(ctx context.Context, links []store.SkillLink) error {
	f.links = links
	return nil
}

func rawDoc(t *testing.T, hhID string, doc map[string]any) model.RawVacancy {
	t.Helper()
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return model.RawVacancy{HHID: hhID, RawJSON: b}
}

// ── Collection ─────────────────────────────────────────────────────────────

func TestCollectFromRaw(t *testing.T) {
	raw := &fakeRawReader{recs: []model.RawVacancy{
		// Structured tags (with a duplicate after normalization) plus a
		// description mentioning a multi-word vocabulary phrase.
		rawDoc(t, "v1", map[string]any{
			"id":   "v1",
			"name": "Инженер данных",
			"key_skills": []map[string]string{
				{"name": "Python "}, {"name": "SQL"}, {"name": "python"},
			},
			"description": "<p>Работаем с Apache NiFi</p>",
		}),
		// Broken document: logged and skipped, run continues.
		{HHID: "v2", RawJSON: json.RawMessage(`{"id": broken`)},
		// "pythonic" must not fire the single-word "python" pattern.
		rawDoc(t, "v3", map[string]any{
			"id":          "v3",
			"name":        "Разработчик",
			"description": "Ищем pythonic специалиста",
		}),
	}}
	st := newFakeSkillStore()

	res, err := skills.NewTagger(raw, st).CollectFromRaw(context.Background())
	if err != nil {
		t.Fatalf("CollectFromRaw: %v", err)
	}

	if res.VacanciesProcessed != 3 {
		t.Errorf("VacanciesProcessed = %d, want 3", res.VacanciesProcessed)
	}
	if res.FromKeySkills != 2 {
		t.Errorf("FromKeySkills = %d, want 2 (python, sql — duplicate collapsed)", res.FromKeySkills)
	}
	if res.FromText != 2 {
		t.Errorf("FromText = %d, want 2 (apache nifi, nifi)", res.FromText)
	}

	want := map[store.SkillLink]struct{}{
		{HHID: "v1", SkillID: st.ids["python"]}:      {},
		{HHID: "v1", SkillID: st.ids["sql"]}:         {},
		{HHID: "v1", SkillID: st.ids["apache nifi"]}: {},
		{HHID: "v1", SkillID: st.ids["nifi"]}:        {},
	}
	if len(st.links) != len(want) {
		t.Fatalf("got %d links %v, want %d", len(st.links), st.links, len(want))
	}
	for _, l := range st.links {
		if _, ok := want[l]; !ok {
			t.Errorf("unexpected link %+v", l)
		}
	}
}

func TestCollectFromRaw_EmptyCorpus(t *testing.T) {
	st := newFakeSkillStore()
	res, err := skills.NewTagger(&fakeRawReader{}, st).CollectFromRaw(context.Background())
	if err != nil {
		t.Fatalf("CollectFromRaw: %v", err)
	}
	if res.SkillsTotal != 0 || res.VacanciesProcessed != 0 {
		t.Errorf("empty corpus should be a no-op, got %+v", res)
	}
	if len(st.ids) != 0 {
		t.Errorf("empty corpus must not register the vocabulary, got %d skills", len(st.ids))
	}
}

// ── Normalization ──────────────────────────────────────────────────────────

func TestNormalizeSkill(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Python", "python"},
		{"  Apache   Spark  ", "apache spark"},
		{"SQL\t\nServer", "sql server"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := skills.NormalizeSkill(tt.in); got != tt.want {
			t.Errorf("NormalizeSkill(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeSkill_CapsLength(t *testing.T) {
	long := make([]rune, 400)
	for i := range long {
		long[i] = 'ф'
	}
	got := skills.NormalizeSkill(string(long))
	if n := len([]rune(got)); n != 255 {
		t.Errorf("normalized length = %d runes, want 255", n)
	}
}

// ── Matching ───────────────────────────────────────────────────────────────

func TestMatchesText(t *testing.T) {
	tests := []struct {
		name string
		term string
		text string
		want bool
	}{
		{"single word hit", "python", "Опыт работы с Python от 3 лет", true},
		{"boundary blocks partial", "python", "pythonic style", false},
		{"boundary blocks suffix", "spark", "pyspark only", false},
		{"cyrillic fusion blocked", "python", "ищем pythonразработчика", false},
		{"cyrillic neighbour with space", "python", "ищем python разработчика", true},
		{"digit fusion blocked", "sql", "только sql2019", false},
		{"multi-word containment", "apache nifi", "стек: apache nifi, kafka", true},
		{"multi-word missing", "apache nifi", "apache kafka", false},
		{"punctuation is a boundary", "sql", "знание SQL, опыт DWH", true},
		{"empty term", "", "text", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := skills.MatchesText(tt.term, tt.text); got != tt.want {
				t.Errorf("MatchesText(%q, %q) = %v, want %v", tt.term, tt.text, got, tt.want)
			}
		})
	}
}

// ── Embedded vocabulary ────────────────────────────────────────────────────

func TestKnownHardSkills(t *testing.T) {
	vocab := skills.KnownHardSkills()
	if len(vocab) == 0 {
		t.Fatal("embedded vocabulary is empty")
	}

	seen := make(map[string]struct{}, len(vocab))
	for _, name := range vocab {
		if name != skills.NormalizeSkill(name) {
			t.Errorf("vocabulary entry %q is not normalized", name)
		}
		if _, ok := seen[name]; ok {
			t.Errorf("vocabulary entry %q duplicated", name)
		}
		seen[name] = struct{}{}
	}

	for _, must := range []string{"python", "sql", "airflow", "apache nifi", "dwh"} {
		if _, ok := seen[must]; !ok {
			t.Errorf("vocabulary is missing %q", must)
		}
	}
}
