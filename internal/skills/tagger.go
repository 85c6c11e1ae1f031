// Package skills tags staged vacancies with a controlled skill
// vocabulary.
//
// Tagging runs in two phases over the whole raw corpus: the structured
// key_skills tags are registered first, then the merged vocabulary
// (structured names + the embedded curated list) is scanned against the
// vacancy text. Links are rebuilt from scratch on every run so the link
// table always reflects the current vocabulary and corpus. The scan is
// O(records × vocabulary) — acceptable for an offline batch job.
package skills

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/ivanshamaev/rag-hh/internal/hh"
	"github.com/ivanshamaev/rag-hh/internal/model"
	"github.com/ivanshamaev/rag-hh/internal/store"
)

// maxSkillLen matches the width budget of the skills.name column.
const maxSkillLen = 255

// RawReader supplies the staged corpus.
type RawReader interface {
	ReadAllRaw(ctx context.Context, limit int) ([]model.RawVacancy, error)
}

// SkillStore persists the vocabulary and the vacancy ↔ skill links.
type SkillStore interface {
	EnsureSkills(ctx context.Context, names []string) error
	SkillIDs(ctx context.Context) (map[string]int64, error)
	ReplaceLinks(ctx context.Context, links []store.SkillLink) error
}

// Tagger runs the two-phase collection.
type Tagger struct {
	raw    RawReader
	skills SkillStore
}

// NewTagger returns a configured Tagger.
func NewTagger(raw RawReader, skills SkillStore) *Tagger {
	return &Tagger{raw: raw, skills: skills}
}

// Result reports what a tagging run did.
type Result struct {
	VacanciesProcessed int `json:"vacanciesProcessed"`
	SkillsTotal        int `json:"skillsTotal"`
	FromKeySkills      int `json:"fromKeySkills"`
	FromText           int `json:"fromText"`
}

// CollectFromRaw rebuilds the skill links for the whole staged corpus.
func (t *Tagger) CollectFromRaw(ctx context.Context) (*Result, error) {
	recs, err := t.raw.ReadAllRaw(ctx, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &Result{}, nil
	}

	// ── Phase 1: structured key_skills ──────────────────────────────
	allNames := make(map[string]struct{})
	structured := make(map[string][]string) // hh_id → normalized names
	parsed := make(map[string]*hh.Vacancy)

	for _, rec := range recs {
		v, err := hh.ParseVacancy(rec.RawJSON)
		if err != nil {
			log.Printf("[skills] Skipping %s: %v", rec.HHID, err)
			continue
		}
		parsed[rec.HHID] = v

		seen := make(map[string]struct{})
		for _, s := range v.KeySkills {
			name := NormalizeSkill(s.Name)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			allNames[name] = struct{}{}
			structured[rec.HHID] = append(structured[rec.HHID], name)
		}
	}

	// Merge the curated list so the text scan can find skills a posting
	// never tagged explicitly.
	for _, name := range KnownHardSkills() {
		allNames[name] = struct{}{}
	}

	names := make([]string, 0, len(allNames))
	for name := range allNames {
		names = append(names, name)
	}
	if err := t.skills.EnsureSkills(ctx, names); err != nil {
		return nil, err
	}

	ids, err := t.skills.SkillIDs(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{VacanciesProcessed: len(recs), SkillsTotal: len(ids)}
	linkSet := make(map[store.SkillLink]struct{})
	var links []store.SkillLink
	add := func(hhID string, skillID int64) bool {
		l := store.SkillLink{HHID: hhID, SkillID: skillID}
		if _, ok := linkSet[l]; ok {
			return false
		}
		linkSet[l] = struct{}{}
		links = append(links, l)
		return true
	}

	for hhID, skillNames := range structured {
		for _, name := range skillNames {
			if id, ok := ids[name]; ok && add(hhID, id) {
				res.FromKeySkills++
			}
		}
	}

	// ── Phase 2: text scan, longest phrases first ───────────────────
	// Longest-first ordering makes "apache nifi" win before "nifi"
	// could match on its own.
	vocab := make([]string, 0, len(ids))
	for name := range ids {
		vocab = append(vocab, name)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if len(vocab[i]) != len(vocab[j]) {
			return len(vocab[i]) > len(vocab[j])
		}
		return vocab[i] < vocab[j]
	})

	matcher := newMatcher()
	for _, rec := range recs {
		v, ok := parsed[rec.HHID]
		if !ok {
			continue
		}
		text := hh.BuildSearchText(v)
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)
		for _, name := range vocab {
			if !matcher.matches(name, lower) {
				continue
			}
			if add(rec.HHID, ids[name]) {
				res.FromText++
			}
		}
	}

	if err := t.skills.ReplaceLinks(ctx, links); err != nil {
		return nil, err
	}
	return res, nil
}

// NormalizeSkill lowercases a skill name, trims it, collapses internal
// whitespace and caps the length to the column budget.
func NormalizeSkill(name string) string {
	s := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
	r := []rune(s)
	if len(r) > maxSkillLen {
		s = string(r[:maxSkillLen])
	}
	return s
}

// matcher tests vocabulary terms against lowered vacancy text, caching
// the compiled word-boundary patterns across vacancies.
type matcher struct {
	patterns map[string]*regexp.Regexp
}

func newMatcher() *matcher {
	return &matcher{patterns: make(map[string]*regexp.Regexp)}
}

// matches reports whether term occurs in lowerText. Multi-word phrases
// match by plain containment; single words require a word boundary so
// "python" does not fire inside "pythonic" — or fused to Cyrillic text
// like "pythonразработчик".
func (m *matcher) matches(term, lowerText string) bool {
	if term == "" || lowerText == "" {
		return false
	}
	if strings.Contains(term, " ") {
		return strings.Contains(lowerText, term)
	}
	re, ok := m.patterns[term]
	if !ok {
		re = regexp.MustCompile(wordBoundaryPattern(term))
		m.patterns[term] = re
	}
	return re.MatchString(lowerText)
}

// Word runes for boundary purposes: letters and digits of any script
// plus underscore. RE2's \b only knows ASCII word characters, so a
// hand-built boundary is needed for Cyrillic vacancy text.
const wordClass = `\p{L}\p{N}_`

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// wordBoundaryPattern wraps term in a Unicode-aware equivalent of \b: a
// boundary is a transition between a word rune and a non-word rune (or
// the text edge next to a word rune). Terms edged by symbols, like
// "c++", keep the transition rule and therefore need an adjacent word
// rune on that side.
func wordBoundaryPattern(term string) string {
	runes := []rune(term)
	var b strings.Builder
	if isWordRune(runes[0]) {
		b.WriteString(`(?:\A|[^` + wordClass + `])`)
	} else {
		b.WriteString(`[` + wordClass + `]`)
	}
	b.WriteString(regexp.QuoteMeta(term))
	if isWordRune(runes[len(runes)-1]) {
		b.WriteString(`(?:\z|[^` + wordClass + `])`)
	} else {
		b.WriteString(`[` + wordClass + `]`)
	}
	return b.String()
}

// MatchesText is the single-term matching predicate, exported for reuse.
func MatchesText(term, text string) bool {
	m := newMatcher()
	return m.matches(NormalizeSkill(term), strings.ToLower(text))
}
