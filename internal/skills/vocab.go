package skills

import (
	_ "embed"
	"strings"
)

// The curated hard-skill vocabulary ships inside the binary: tagging
// must not depend on an external file being deployed alongside it.
//
//go:embed known_skills.txt
var knownSkillsFile string

// KnownHardSkills returns the curated vocabulary, normalized and
// deduplicated, preserving file order.
func KnownHardSkills() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range strings.Split(knownSkillsFile, "\n") {
		name := NormalizeSkill(line)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
