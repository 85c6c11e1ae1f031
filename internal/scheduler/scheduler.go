// Package scheduler wires up the cron job that periodically refreshes
// the vacancy corpus: stage 1 acquisition, stage 2 embedding, skill
// tagging.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/ivanshamaev/rag-hh/internal/ingest"
	"github.com/ivanshamaev/rag-hh/internal/skills"
)

const (
	refreshTarget  = 1000
	stageChunkSize = 10
	embedChunkSize = 50
)

// Scheduler wraps robfig/cron and manages the refresh loop.
type Scheduler struct {
	cron    *cron.Cron
	worker  *ingest.Worker
	tagger  *skills.Tagger
	queries []string
	spec    string // cron spec, e.g. "@every 6h"
}

// New creates a Scheduler that fires every intervalHours hours.
// queries empty means the default Data Engineer set.
func New(worker *ingest.Worker, tagger *skills.Tagger, queries []string, intervalHours int) *Scheduler {
	if len(queries) == 0 {
		queries = ingest.DefaultQueries
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cron.DefaultLogger)),
		worker:  worker,
		tagger:  tagger,
		queries: queries,
		spec:    fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. Also runs one
// refresh immediately so the corpus is populated without waiting for
// the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runRefresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s", s.spec)

	// Run immediately on startup (non-blocking)
	go s.runRefresh(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// runRefresh executes one full pipeline cycle. Each stage failure is
// logged and the cycle moves on: stage 2 and tagging still make
// progress on whatever is already staged.
func (s *Scheduler) runRefresh(ctx context.Context) {
	log.Printf("[scheduler] Refresh cycle started — queries=%v", s.queries)

	staged, err := s.worker.IngestBulk(ctx, s.queries, refreshTarget, stageChunkSize)
	if err != nil {
		log.Printf("[scheduler] Stage 1 error after %d staged: %v", staged, err)
	} else {
		log.Printf("[scheduler] Stage 1 done — staged=%d", staged)
	}

	processed, err := s.worker.Reprocess(ctx, 0, embedChunkSize)
	if err != nil {
		log.Printf("[scheduler] Stage 2 error after %d processed: %v", processed, err)
	} else {
		log.Printf("[scheduler] Stage 2 done — processed=%d", processed)
	}

	res, err := s.tagger.CollectFromRaw(ctx)
	if err != nil {
		log.Printf("[scheduler] Skill tagging error: %v", err)
	} else {
		log.Printf("[scheduler] Skill tagging done — skills=%d links=%d",
			res.SkillsTotal, res.FromKeySkills+res.FromText)
	}

	log.Println("[scheduler] Refresh cycle complete")
}
