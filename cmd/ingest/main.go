// rag-hh bulk loader
//
// Stage-1 acquisition without the API server: collects vacancy ids from
// hh.ru (by search queries, or by professional roles with --roles) and
// stages the raw documents. With --embed it also runs stage 2 and the
// skill tagger, so one invocation fills the whole index.
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ivanshamaev/rag-hh/internal/config"
	"github.com/ivanshamaev/rag-hh/internal/db"
	"github.com/ivanshamaev/rag-hh/internal/embed"
	"github.com/ivanshamaev/rag-hh/internal/hh"
	"github.com/ivanshamaev/rag-hh/internal/ingest"
	"github.com/ivanshamaev/rag-hh/internal/skills"
	"github.com/ivanshamaev/rag-hh/internal/store"
)

var (
	target     int
	queriesCSV string
	chunkSize  int
	runEmbed   bool

	roleMode   bool
	area       int
	roleFilter string
	maxPerRole int
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Bulk-load hh.ru vacancies into the rag-hh index",
	Long: `Collects vacancy ids from hh.ru and stages the raw documents (stage 1).
With --embed the staged corpus is also embedded and skill-tagged, so one
invocation fills the whole index.

Examples:
  ingest --target 500
  ingest --queries "data engineer,dwh" --embed
  ingest --roles --area 1 --role-filter "Дата-инженер" --embed`,
	SilenceUsage: true,
	RunE:         runIngest,
}

func init() {
	f := rootCmd.Flags()
	f.IntVar(&target, "target", 1000, "target number of unique vacancies")
	f.StringVar(&queriesCSV, "queries", "", "comma-separated search queries (empty = Data Engineer set)")
	f.IntVar(&chunkSize, "chunk", 10, "staging chunk size (one DB commit per chunk)")
	f.BoolVar(&runEmbed, "embed", false, "run stage 2 and skill tagging after staging")

	f.BoolVar(&roleMode, "roles", false, "collect by professional roles instead of search queries")
	f.IntVar(&area, "area", 1, "hh.ru region code (1 = Moscow), roles mode only")
	f.StringVar(&roleFilter, "role-filter", "", "substring filter on role names, roles mode only")
	f.IntVar(&maxPerRole, "max-per-role", 500, "vacancy cap per role, roles mode only")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	client := hh.NewClient(cfg.HHToken, cfg.HHUserAgent)
	st := store.New(pool)
	embedder := embed.NewEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel, cfg.EmbeddingDim)
	worker := ingest.NewWorker(client, st, embedder)

	// ── Stage 1: collect ids and stage raw documents ─────────────────
	var ids []string
	if roleMode {
		ids, err = collectByRoles(ctx, client)
	} else {
		queries := splitQueries(queriesCSV)
		if len(queries) == 0 {
			queries = ingest.DefaultQueries
		}
		log.Printf("[ingest] Queries: %v, target: %d", queries, target)
		ids, err = client.SearchAndCollectIDs(ctx, queries, target)
	}
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		log.Println("[ingest] Nothing to stage.")
		return nil
	}

	log.Printf("[ingest] Staging %d vacancies (chunks of %d)… this can take a while under hh.ru rate limits", len(ids), chunkSize)
	staged, err := worker.StageIDs(ctx, ids, chunkSize)
	if err != nil {
		log.Printf("[ingest] Staging stopped after %d", staged)
		return err
	}
	log.Printf("[ingest] Staged %d vacancies", staged)

	if !runEmbed {
		return nil
	}

	// ── Stage 2 + tagging ────────────────────────────────────────────
	processed, err := worker.Reprocess(ctx, 0, 50)
	if err != nil {
		log.Printf("[ingest] Stage 2 stopped after %d", processed)
		return err
	}
	log.Printf("[ingest] Indexed %d vacancies", processed)

	tagger := skills.NewTagger(st, st)
	res, err := tagger.CollectFromRaw(ctx)
	if err != nil {
		return err
	}
	log.Printf("[ingest] Skills: %d total, %d links from key_skills, %d from text",
		res.SkillsTotal, res.FromKeySkills, res.FromText)
	return nil
}

// collectByRoles walks the professional role catalogue and gathers
// vacancy ids per role, deduplicated in first-seen order, up to target.
func collectByRoles(ctx context.Context, client *hh.Client) ([]string, error) {
	log.Println("[ingest] Loading professional roles…")
	roles, err := client.ProfessionalRoles(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[ingest] %d roles total", len(roles))

	if roleFilter != "" {
		var filtered []hh.Role
		for _, r := range roles {
			if strings.Contains(strings.ToLower(r.Name), strings.ToLower(roleFilter)) {
				filtered = append(filtered, r)
			}
		}
		roles = filtered
		log.Printf("[ingest] %d roles after filter %q", len(roles), roleFilter)
	}

	maxPages := (maxPerRole + hh.PerPageMax - 1) / hh.PerPageMax
	if maxPages > 20 {
		maxPages = 20
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, role := range roles {
		if len(ids) >= target {
			break
		}
		items, err := client.SearchByRole(ctx, role.ID, area, hh.PerPageMax, maxPages, false)
		if err != nil {
			log.Printf("[ingest] Role %q: %v — continuing", role.Name, err)
			continue
		}
		added := 0
		for _, it := range items {
			if len(ids) >= target {
				break
			}
			if _, ok := seen[it.ID]; ok {
				continue
			}
			seen[it.ID] = struct{}{}
			ids = append(ids, it.ID)
			added++
		}
		log.Printf("[ingest] Role %q: +%d vacancies (total %d)", role.Name, added, len(ids))
	}
	return ids, nil
}

func splitQueries(csv string) []string {
	var out []string
	for _, q := range strings.Split(csv, ",") {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}
