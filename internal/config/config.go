// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration for the rag-hh service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	HHToken     string // optional bearer token — raises the api.hh.ru request ceiling
	HHUserAgent string // sent as HH-User-Agent alongside the token

	EmbeddingURL   string // embedding inference server base URL
	EmbeddingModel string
	EmbeddingDim   int // output width of the model; must match the vacancies.embedding column

	IngestIntervalHours int      // 0 disables the periodic refresh cron
	IngestQueries       []string // override for the default Data Engineer query set
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	embedURL := os.Getenv("EMBEDDING_URL")
	if embedURL == "" {
		embedURL = "http://localhost:11434"
	}

	embedModel := os.Getenv("EMBEDDING_MODEL")
	if embedModel == "" {
		embedModel = "paraphrase-multilingual-minilm-l12-v2"
	}

	dim := 384
	if s := os.Getenv("EMBEDDING_DIM"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("EMBEDDING_DIM must be a positive integer, got %q", s)
		}
		dim = v
	}

	interval := 0
	if s := os.Getenv("INGEST_INTERVAL_HOURS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("INGEST_INTERVAL_HOURS must be a non-negative integer, got %q", s)
		}
		interval = v
	}

	var queries []string
	if s := os.Getenv("INGEST_QUERIES"); s != "" {
		for _, q := range strings.Split(s, ",") {
			if q = strings.TrimSpace(q); q != "" {
				queries = append(queries, q)
			}
		}
	}

	userAgent := os.Getenv("HH_USER_AGENT")
	if userAgent == "" {
		userAgent = "rag-hh/1.0"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	return &Config{
		Port:                port,
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		HHToken:             os.Getenv("HH_TOKEN"),
		HHUserAgent:         userAgent,
		EmbeddingURL:        embedURL,
		EmbeddingModel:      embedModel,
		EmbeddingDim:        dim,
		IngestIntervalHours: interval,
		IngestQueries:       queries,
	}, nil
}
