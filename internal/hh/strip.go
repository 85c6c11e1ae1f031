package hh

import (
	"regexp"
	"strings"
)

// Vacancy descriptions arrive as HTML fragments. Block-level tags are
// collapsed to whitespace first so adjacent words do not fuse, then a
// generic pass removes whatever tags remain.
var blockTags = []string{
	"<p>", "</p>", "<br>", "<br/>", "<br />", "<ul>", "</ul>",
	"<li>", "</li>", "<strong>", "</strong>", "<div>", "</div>",
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// descriptionCap bounds the embedding text so one very long description
// cannot dilute the title signal (and bounds embedding cost).
const descriptionCap = 3000

// StripHTML removes markup from a description and normalises whitespace.
// Empty or whitespace-only input yields nil, so "absent" stays
// distinguishable from "was an empty string".
func StripHTML(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	text := s
	for _, tag := range blockTags {
		text = strings.ReplaceAll(text, tag, " ")
	}
	text = htmlTagRe.ReplaceAllString(text, " ")
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	return &text
}

// BuildEmbeddingText assembles the text fed to the embedding model:
// title, stripped description capped at descriptionCap runes, and the
// structured skill tags when present. Deterministic for a given vacancy.
func BuildEmbeddingText(v *Vacancy) string {
	parts := []string{v.Name}

	if desc := StripHTML(v.Description); desc != nil {
		parts = append(parts, truncateRunes(*desc, descriptionCap))
	}
	if len(v.KeySkills) > 0 {
		names := make([]string, 0, len(v.KeySkills))
		for _, s := range v.KeySkills {
			names = append(names, s.Name)
		}
		parts = append(parts, "Навыки: "+strings.Join(names, ", "))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// BuildSearchText assembles the plain text scanned by the skill tagger:
// title plus stripped description.
func BuildSearchText(v *Vacancy) string {
	parts := []string{}
	if v.Name != "" {
		parts = append(parts, v.Name)
	}
	if desc := StripHTML(v.Description); desc != nil {
		parts = append(parts, *desc)
	}
	return strings.Join(parts, " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
