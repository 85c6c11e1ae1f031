// Package model defines shared data structures for the rag-hh service.
package model

import (
	"encoding/json"
	"time"
)

// RawVacancy mirrors a raw_vacancies row: the untouched hh.ru detail
// document keyed by its stable upstream id.
type RawVacancy struct {
	HHID     string
	RawJSON  json.RawMessage
	StagedAt time.Time
}

// Vacancy is the processed record written to the vacancies table.
// It is derived deterministically from a RawVacancy and carries the
// embedding vector used for similarity search.
type Vacancy struct {
	HHID         string
	Name         string
	Description  *string
	EmployerName *string
	AreaName     *string
	SalaryFrom   *int
	SalaryTo     *int
	URL          *string
	PublishedAt  *time.Time
	Embedding    []float32
}

// SearchResult is a single similarity-search hit returned to clients.
type SearchResult struct {
	HHID         string  `json:"hhId"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	EmployerName *string `json:"employerName"`
	AreaName     *string `json:"areaName"`
	SalaryFrom   *int    `json:"salaryFrom"`
	SalaryTo     *int    `json:"salaryTo"`
	URL          *string `json:"url"`
	Similarity   float64 `json:"similarity"`
}

// AreaCount is one row of the per-region breakdown in Stats.
type AreaCount struct {
	Area  string `json:"area"`
	Count int    `json:"count"`
}

// Stats aggregates counts over the staged and processed corpora.
type Stats struct {
	RawVacancies  int         `json:"rawVacancies"`
	Vacancies     int         `json:"vacancies"`
	Employers     int         `json:"employers"`
	WithSalary    int         `json:"withSalary"`
	AvgSalaryFrom *float64    `json:"avgSalaryFrom"`
	AvgSalaryTo   *float64    `json:"avgSalaryTo"`
	TopAreas      []AreaCount `json:"topAreas"`
}

// SkillCount is one vocabulary entry with its vacancy frequency.
type SkillCount struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	VacancyCount int    `json:"vacancyCount"`
}
