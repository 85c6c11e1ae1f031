// rag-hh server
//
// Vector search over hh.ru vacancies. Two-stage ingestion pipeline:
//   - stage 1: search → raw_vacancies (cheap, rate-limited upstream)
//   - stage 2: raw_vacancies → embeddings → vacancies (re-runnable)
//
// Retrieval: /search (similarity), /rag (context for an LLM prompt).
// Offline: /skills/collect rebuilds the skill vocabulary and links.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivanshamaev/rag-hh/internal/api"
	"github.com/ivanshamaev/rag-hh/internal/config"
	"github.com/ivanshamaev/rag-hh/internal/db"
	"github.com/ivanshamaev/rag-hh/internal/embed"
	"github.com/ivanshamaev/rag-hh/internal/hh"
	"github.com/ivanshamaev/rag-hh/internal/ingest"
	"github.com/ivanshamaev/rag-hh/internal/scheduler"
	"github.com/ivanshamaev/rag-hh/internal/skills"
	"github.com/ivanshamaev/rag-hh/internal/store"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[rag-hh] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[rag-hh] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[rag-hh] PostgreSQL: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("[rag-hh] Migrations: %v", err)
	}
	log.Println("[rag-hh] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[rag-hh] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[rag-hh] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[rag-hh] Redis connected ✓")

	// ── Collaborators ────────────────────────────────────────────────────────
	// One embedder for the process lifetime: the model stays loaded on
	// the inference server and every stage shares the same handle.
	embedder := embed.NewEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel, cfg.EmbeddingDim)
	if err := embedder.Ping(ctx); err != nil {
		log.Printf("[rag-hh] Embedding server not reachable yet: %v", err)
	}

	client := hh.NewClient(cfg.HHToken, cfg.HHUserAgent)
	st := store.New(pool)
	worker := ingest.NewWorker(client, st, embedder)
	tagger := skills.NewTagger(st, st)

	// ── Scheduler ────────────────────────────────────────────────────────────
	if cfg.IngestIntervalHours > 0 {
		sched := scheduler.New(worker, tagger, cfg.IngestQueries, cfg.IngestIntervalHours)
		if err := sched.Start(ctx); err != nil {
			log.Fatalf("[rag-hh] Scheduler: %v", err)
		}
		defer sched.Stop()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	h := api.NewHandler(st, worker, tagger, embedder, rdb)
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // ingestion endpoints run for a long time
	}

	go func() {
		log.Printf("[rag-hh] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[rag-hh] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[rag-hh] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[rag-hh] Shutdown error: %v", err)
	}
	log.Println("[rag-hh] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "rag-hh",
		"version": version,
	})
}
