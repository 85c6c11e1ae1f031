package api

// Request bodies for the ingestion endpoints. Normalize applies the
// defaults and clamps documented per field, so a missing body or an
// out-of-range value never reaches the pipeline.

// IngestRequest is the body of POST /ingest (stage 1, single query).
type IngestRequest struct {
	SearchQuery  string `json:"searchQuery"`
	MaxVacancies int    `json:"maxVacancies"` // default 30, capped at 100
	ChunkSize    int    `json:"chunkSize"`    // default 10, clamped to [5,100]
}

// Normalize fills defaults and clamps bounds.
func (r *IngestRequest) Normalize() {
	if r.SearchQuery == "" {
		r.SearchQuery = "python"
	}
	if r.MaxVacancies <= 0 {
		r.MaxVacancies = 30
	}
	if r.MaxVacancies > 100 {
		r.MaxVacancies = 100
	}
	r.ChunkSize = clamp(r.ChunkSize, 10, 5, 100)
}

// BulkIngestRequest is the body of POST /ingest/bulk (stage 1, multi-query).
type BulkIngestRequest struct {
	SearchQueries []string `json:"searchQueries"` // empty → default Data Engineer set
	TargetCount   int      `json:"targetCount"`   // default 1000, capped at 2000
	ChunkSize     int      `json:"chunkSize"`     // default 10, clamped to [5,100]
}

// Normalize fills defaults and clamps bounds.
func (r *BulkIngestRequest) Normalize() {
	if r.TargetCount <= 0 {
		r.TargetCount = 1000
	}
	if r.TargetCount > 2000 {
		r.TargetCount = 2000
	}
	r.ChunkSize = clamp(r.ChunkSize, 10, 5, 100)
}

// EmbedRequest is the body of POST /ingest/embed (stage 2).
type EmbedRequest struct {
	Limit     int `json:"limit"`     // 0 = all staged rows
	ChunkSize int `json:"chunkSize"` // default 50, clamped to [10,200]
}

// Normalize fills defaults and clamps bounds.
func (r *EmbedRequest) Normalize() {
	if r.Limit < 0 {
		r.Limit = 0
	}
	r.ChunkSize = clamp(r.ChunkSize, 50, 10, 200)
}

// clamp applies a default for the zero value, then bounds v to [lo, hi].
func clamp(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
