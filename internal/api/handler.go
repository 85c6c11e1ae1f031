// Package api implements the HTTP handlers for the rag-hh service.
//
// Routes:
//
//	GET  /stats           → corpus statistics (cached in Redis)
//	GET  /skills          → top skills by vacancy frequency (cached)
//	GET  /search?q&limit  → vector similarity search
//	GET  /rag?q&limit     → similarity search + rendered RAG context
//	POST /ingest          → stage 1 for a single search query
//	POST /ingest/bulk     → stage 1 across the configured query list
//	POST /ingest/embed    → stage 2: staged raw → embeddings → vacancies
//	POST /skills/collect  → rebuild skill vocabulary and links
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ivanshamaev/rag-hh/internal/embed"
	"github.com/ivanshamaev/rag-hh/internal/ingest"
	"github.com/ivanshamaev/rag-hh/internal/model"
	"github.com/ivanshamaev/rag-hh/internal/rag"
	"github.com/ivanshamaev/rag-hh/internal/skills"
	"github.com/ivanshamaev/rag-hh/internal/store"
)

const (
	statsCacheKey  = "raghh:stats"
	skillsCacheKey = "raghh:skills"
	cacheTTL       = 60 * time.Second

	// ingestDoneChannel carries completion events for downstream consumers.
	ingestDoneChannel = "EVENT_INGEST_DONE"
)

// Handler holds shared dependencies.
type Handler struct {
	store    *store.Store
	worker   *ingest.Worker
	tagger   *skills.Tagger
	embedder *embed.Embedder
	rdb      *redis.Client
}

// NewHandler returns a configured Handler.
func NewHandler(st *store.Store, worker *ingest.Worker, tagger *skills.Tagger, embedder *embed.Embedder, rdb *redis.Client) *Handler {
	return &Handler{store: st, worker: worker, tagger: tagger, embedder: embedder, rdb: rdb}
}

// RegisterRoutes mounts all service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/stats", h.handleStats)
	mux.HandleFunc("/skills", h.handleSkills)
	mux.HandleFunc("/skills/collect", h.handleSkillsCollect)
	mux.HandleFunc("/search", h.handleSearch)
	mux.HandleFunc("/rag", h.handleRAG)
	mux.HandleFunc("/ingest", h.handleIngest)
	mux.HandleFunc("/ingest/bulk", h.handleIngestBulk)
	mux.HandleFunc("/ingest/embed", h.handleIngestEmbed)
}

// ─── Retrieval ───────────────────────────────────────────────────────────────

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		jsonError(w, "query is empty", http.StatusBadRequest)
		return
	}
	limit := queryLimit(r, 10, 1, 50)

	results, err := h.search(r.Context(), q, limit)
	if err != nil {
		log.Printf("[api] Search %q failed: %v", q, err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"query": q, "results": results})
}

func (h *Handler) handleRAG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		jsonError(w, "query is empty", http.StatusBadRequest)
		return
	}
	limit := queryLimit(r, 5, 1, 20)

	results, err := h.search(r.Context(), q, limit)
	if err != nil {
		log.Printf("[api] RAG %q failed: %v", q, err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	context, sources := rag.BuildContext(results)
	writeJSON(w, map[string]any{
		"query":   q,
		"context": context,
		"sources": sources,
	})
}

// search embeds the query with the same model used at ingest time and
// runs the nearest-neighbour lookup.
func (h *Handler) search(ctx context.Context, q string, limit int) ([]model.SearchResult, error) {
	vec, err := h.embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return h.store.SearchSimilar(ctx, vec, limit)
}

// ─── Ingestion ───────────────────────────────────────────────────────────────

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IngestRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Normalize()

	n, err := h.worker.IngestQuery(r.Context(), req.SearchQuery, req.MaxVacancies, req.ChunkSize)
	if err != nil {
		log.Printf("[api] Ingest %q failed: %v", req.SearchQuery, err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.ingestDone(r.Context(), n)

	writeJSON(w, map[string]any{"savedToRaw": n, "searchQuery": req.SearchQuery})
}

func (h *Handler) handleIngestBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BulkIngestRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Normalize()

	queries := req.SearchQueries
	if len(queries) == 0 {
		queries = ingest.DefaultQueries
	}

	n, err := h.worker.IngestBulk(r.Context(), queries, req.TargetCount, req.ChunkSize)
	if err != nil {
		log.Printf("[api] Bulk ingest failed: %v", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.ingestDone(r.Context(), n)

	writeJSON(w, map[string]any{
		"savedToRaw":    n,
		"searchQueries": queries,
		"targetCount":   req.TargetCount,
	})
}

func (h *Handler) handleIngestEmbed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EmbedRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Normalize()

	n, err := h.worker.Reprocess(r.Context(), req.Limit, req.ChunkSize)
	if err != nil {
		log.Printf("[api] Embed run failed: %v", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.ingestDone(r.Context(), n)

	writeJSON(w, map[string]any{"ragIndexed": n, "limit": req.Limit})
}

// ingestDone invalidates cached aggregates and notifies subscribers.
// Both are best-effort: a Redis hiccup must not fail a finished run.
func (h *Handler) ingestDone(ctx context.Context, count int) {
	if err := h.rdb.Del(ctx, statsCacheKey, skillsCacheKey).Err(); err != nil {
		slog.Warn("cache invalidation failed", "err", err)
	}
	event, _ := json.Marshal(map[string]any{"type": ingestDoneChannel, "count": count})
	if err := h.rdb.Publish(ctx, ingestDoneChannel, event).Err(); err != nil {
		slog.Warn("publish ingest event failed", "err", err)
	}
}

// ─── Skills ──────────────────────────────────────────────────────────────────

func (h *Handler) handleSkillsCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := h.tagger.CollectFromRaw(r.Context())
	if err != nil {
		log.Printf("[api] Skill collection failed: %v", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.rdb.Del(r.Context(), skillsCacheKey).Err(); err != nil {
		slog.Warn("cache invalidation failed", "err", err)
	}
	writeJSON(w, res)
}

func (h *Handler) handleSkills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := queryLimit(r, 200, 1, 500)

	// Only the default page is cached; custom limits go to the DB.
	if limit == 200 {
		if cached, err := h.rdb.Get(r.Context(), skillsCacheKey).Result(); err == nil {
			writeJSONRaw(w, []byte(cached))
			return
		}
	}

	list, err := h.store.TopSkills(r.Context(), limit)
	if err != nil {
		log.Printf("[api] Skills query failed: %v", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if limit != 200 {
		writeJSON(w, map[string]any{"skills": list})
		return
	}
	h.writeCached(r.Context(), w, skillsCacheKey, map[string]any{"skills": list})
}

// ─── Stats ───────────────────────────────────────────────────────────────────

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if cached, err := h.rdb.Get(r.Context(), statsCacheKey).Result(); err == nil {
		writeJSONRaw(w, []byte(cached))
		return
	}

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		log.Printf("[api] Stats query failed: %v", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeCached(r.Context(), w, statsCacheKey, stats)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// decodeBody decodes an optional JSON body; an empty body yields the
// zero value so every field falls back to its default.
func decodeBody(r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// queryLimit reads ?limit with a default and bounds.
func queryLimit(r *http.Request, def, lo, hi int) int {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// writeCached serialises payload once, stores it under key with the
// cache TTL (best-effort) and writes it to the client.
func (h *Handler) writeCached(ctx context.Context, w http.ResponseWriter, key string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.rdb.Set(ctx, key, body, cacheTTL).Err(); err != nil {
		slog.Warn("cache write failed", "key", key, "err", err)
	}
	writeJSONRaw(w, body)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(payload)
}

func writeJSONRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
