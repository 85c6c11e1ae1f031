package hh_test

import (
	"strings"
	"testing"
	"time"

	"github.com/ivanshamaev/rag-hh/internal/hh"
)

// ── HTML stripping ─────────────────────────────────────────────────────────

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string // "" means expect nil
	}{
		{"empty", "", ""},
		{"whitespace only", "   \n\t ", ""},
		{"tags only", "<p></p><br/>", ""},
		{"plain text untouched", "Data Engineer", "Data Engineer"},
		{"block tags keep word boundary", "<p>Строим DWH</p><p>на Greenplum</p>", "Строим DWH на Greenplum"},
		{"inline tags removed", "Опыт с <strong>Airflow</strong> и <em>dbt</em>", "Опыт с Airflow и dbt"},
		{"whitespace collapsed", "  a \n\n b\t\tc ", "a b c"},
		{"list markup", "<ul><li>Python</li><li>SQL</li></ul>", "Python SQL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hh.StripHTML(tt.in)
			if tt.want == "" {
				if got != nil {
					t.Errorf("StripHTML(%q) = %q, want nil", tt.in, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("StripHTML(%q) = nil, want %q", tt.in, tt.want)
			}
			if *got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.in, *got, tt.want)
			}
		})
	}
}

// ── Embedding text ─────────────────────────────────────────────────────────

func TestBuildEmbeddingText(t *testing.T) {
	v := &hh.Vacancy{
		Name:        "Data Engineer",
		Description: "<p>Строим пайплайны на Airflow</p>",
		KeySkills:   []hh.KeySkill{{Name: "Python"}, {Name: "SQL"}},
	}

	got := hh.BuildEmbeddingText(v)
	want := "Data Engineer\nСтроим пайплайны на Airflow\nНавыки: Python, SQL"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Same input, same output.
	if again := hh.BuildEmbeddingText(v); again != got {
		t.Errorf("not deterministic: %q vs %q", got, again)
	}
}

func TestBuildEmbeddingText_OmitsAbsentParts(t *testing.T) {
	v := &hh.Vacancy{Name: "Data Engineer"}
	if got := hh.BuildEmbeddingText(v); got != "Data Engineer" {
		t.Errorf("got %q, want just the title", got)
	}
}

func TestBuildEmbeddingText_CapsDescriptionAtRunes(t *testing.T) {
	// Cyrillic to make the rune/byte distinction matter.
	long := strings.Repeat("ф", 4000)
	v := &hh.Vacancy{Name: "t", Description: long}

	got := hh.BuildEmbeddingText(v)
	lines := strings.SplitN(got, "\n", 2)
	if len(lines) != 2 {
		t.Fatalf("expected title and description lines, got %q", got)
	}
	if n := len([]rune(lines[1])); n != 3000 {
		t.Errorf("description kept %d runes, want 3000", n)
	}
	if !strings.HasPrefix(lines[1], "ффф") {
		t.Errorf("description prefix lost: %q", lines[1][:12])
	}
}

func TestBuildSearchText(t *testing.T) {
	v := &hh.Vacancy{Name: "DWH разработчик", Description: "<p>ClickHouse, Kafka</p>"}
	if got, want := hh.BuildSearchText(v), "DWH разработчик ClickHouse, Kafka"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// ── Timestamps ─────────────────────────────────────────────────────────────

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"hh.ru offset without colon", "2024-01-15T10:00:00+0300", true},
		{"rfc3339", "2024-01-15T10:00:00+03:00", true},
		{"utc", "2024-01-15T10:00:00Z", true},
		{"empty", "", false},
		{"garbage", "вчера", false},
		{"date only", "2024-01-15", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hh.ParseDate(tt.in)
			if !tt.ok {
				if got != nil {
					t.Errorf("ParseDate(%q) = %v, want nil", tt.in, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseDate(%q) = nil, want a time", tt.in)
			}
			if got.Year() != 2024 || got.Month() != time.January || got.Day() != 15 || got.Hour() != 10 {
				t.Errorf("ParseDate(%q) = %v", tt.in, got)
			}
		})
	}
}
