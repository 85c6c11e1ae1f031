package hh

import (
	"encoding/json"
	"fmt"
	"time"
)

// Vacancy mirrors the fields of the hh.ru detail document this service
// actually consumes. Everything else in the raw JSON is carried through
// the staging table untouched.
type Vacancy struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Employer     *Employer  `json:"employer"`
	Area         *Area      `json:"area"`
	Salary       *Salary    `json:"salary"`
	AlternateURL string     `json:"alternate_url"`
	PublishedAt  string     `json:"published_at"`
	KeySkills    []KeySkill `json:"key_skills"`
}

// Employer is the nested employer block.
type Employer struct {
	Name string `json:"name"`
}

// Area is the nested region block.
type Area struct {
	Name string `json:"name"`
}

// Salary is the nested salary block; both bounds are independently optional.
type Salary struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

// KeySkill is one structured skill tag.
type KeySkill struct {
	Name string `json:"name"`
}

// ParseVacancy decodes a staged raw document.
func ParseVacancy(raw json.RawMessage) (*Vacancy, error) {
	var v Vacancy
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("parse vacancy: %w", err)
	}
	return &v, nil
}

// hh.ru timestamps come as "2024-01-15T10:00:00+0300" — RFC 3339 minus
// the colon in the zone offset.
const hhTimeLayout = "2006-01-02T15:04:05-0700"

// ParseDate parses a published_at timestamp; nil for empty or malformed input.
func ParseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{hhTimeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
