// Package verifier audits the knowledge store after ingestion: schema
// presence, document and embedding coverage, index health, sync freshness
// and recorded sync failures. It never writes.
package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/models"
)

var (
	RequiredExtensions = []string{"vector", "uuid-ossp"}
	RequiredTables     = []string{"knowledge_chunks", "source_documents", "query_logs"}
	CriticalIndexes    = []string{"idx_embedding", "idx_source_type", "idx_category"}
	indexedTables      = []string{"knowledge_chunks", "source_documents"}
)

// Check is the outcome of one audit step.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

// Stats are the figures gathered while checking.
type Stats struct {
	Documents   int                   `json:"documents"`
	Chunks      int                   `json:"chunks"`
	Embedded    int                   `json:"embedded"`
	Coverage    float64               `json:"coverage_pct"`
	LastSynced  *time.Time            `json:"last_synced,omitempty"`
	Categories  []models.CategoryStat `json:"categories,omitempty"`
	FailedSyncs []models.FailedSync   `json:"failed_syncs,omitempty"`
	Partial     []models.FailedSync   `json:"partial_syncs,omitempty"`
}

// Report is the verdict of one verification run.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Passed      bool      `json:"passed"`
	Checks      []Check   `json:"checks"`
	Stats       Stats     `json:"stats"`
}

// PassedChecks lists the names of passing checks in run order.
func (r *Report) PassedChecks() []string { return r.names(true) }

// FailedChecks lists the names of failing checks in run order.
func (r *Report) FailedChecks() []string { return r.names(false) }

func (r *Report) names(passed bool) []string {
	var out []string
	for _, c := range r.Checks {
		if c.Passed == passed {
			out = append(out, c.Name)
		}
	}
	return out
}

type Options struct {
	// MinCoverage is the minimum embedded/total chunk percentage.
	MinCoverage float64
	// Staleness is the maximum age of the most recent sync.
	Staleness time.Duration
	Now       func() time.Time
}

type Verifier struct {
	store  core.StoreInspector
	opts   Options
	logger *slog.Logger
}

func New(store core.StoreInspector, opts Options, logger *slog.Logger) *Verifier {
	if opts.MinCoverage <= 0 {
		opts.MinCoverage = 95
	}
	if opts.Staleness <= 0 {
		opts.Staleness = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{store: store, opts: opts, logger: logger.With("component", "verifier")}
}

type checkFunc func(ctx context.Context, st *Stats) (passed bool, reason string, err error)

// Verify runs every check. A check that errors is recorded as failed and the
// remaining checks still run.
func (v *Verifier) Verify(ctx context.Context) *Report {
	r := &Report{GeneratedAt: v.opts.Now().UTC(), Passed: true}

	steps := []struct {
		name string
		fn   checkFunc
	}{
		{"extensions", v.checkExtensions},
		{"tables", v.checkTables},
		{"document_count", v.checkDocumentCount},
		{"embedding_coverage", v.checkCoverage},
		{"indexes", v.checkIndexes},
		{"recent_sync", v.checkRecentSync},
		{"categories", v.checkCategories},
		{"sync_errors", v.checkSyncErrors},
		{"partial_syncs", v.checkPartialSyncs},
	}

	for _, s := range steps {
		passed, reason, err := s.fn(ctx, &r.Stats)
		if err != nil {
			passed, reason = false, fmt.Sprintf("check errored: %v", err)
			v.logger.Warn("check errored", "check", s.name, "err", err)
		}
		r.Checks = append(r.Checks, Check{Name: s.name, Passed: passed, Reason: reason})
		if !passed {
			r.Passed = false
		}
	}
	v.logger.Info("verification finished", "passed", r.Passed, "failed_checks", len(r.FailedChecks()))
	return r
}

func (v *Verifier) checkExtensions(ctx context.Context, _ *Stats) (bool, string, error) {
	got, err := v.store.InstalledExtensions(ctx, RequiredExtensions)
	if err != nil {
		return false, "", err
	}
	var missing, found []string
	for _, name := range RequiredExtensions {
		if ver, ok := got[name]; ok {
			found = append(found, name+" "+ver)
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return false, "Missing extensions: " + strings.Join(missing, ", "), nil
	}
	return true, "Extensions installed: " + strings.Join(found, ", "), nil
}

func (v *Verifier) checkTables(ctx context.Context, _ *Stats) (bool, string, error) {
	got, err := v.store.ExistingTables(ctx, RequiredTables)
	if err != nil {
		return false, "", err
	}
	if missing := difference(RequiredTables, got); len(missing) > 0 {
		return false, "Missing tables: " + strings.Join(missing, ", "), nil
	}
	return true, "All tables exist", nil
}

func (v *Verifier) checkDocumentCount(ctx context.Context, st *Stats) (bool, string, error) {
	docs, err := v.store.CountDocuments(ctx)
	if err != nil {
		return false, "", err
	}
	total, embedded, err := v.store.CountChunks(ctx)
	if err != nil {
		return false, "", err
	}
	st.Documents, st.Chunks, st.Embedded = docs, total, embedded
	if total > 0 {
		st.Coverage = float64(embedded) / float64(total) * 100
	}
	if docs == 0 || total == 0 {
		return false, "No documents indexed", nil
	}
	return true, fmt.Sprintf("%d documents, %d chunks", docs, total), nil
}

// checkCoverage relies on the counts gathered by checkDocumentCount and
// queries them itself when that step failed.
func (v *Verifier) checkCoverage(ctx context.Context, st *Stats) (bool, string, error) {
	if st.Chunks == 0 && st.Documents == 0 {
		total, embedded, err := v.store.CountChunks(ctx)
		if err != nil {
			return false, "", err
		}
		st.Chunks, st.Embedded = total, embedded
		if total > 0 {
			st.Coverage = float64(embedded) / float64(total) * 100
		}
	}
	if st.Chunks == 0 {
		return true, "No chunks to measure", nil
	}
	if st.Coverage < v.opts.MinCoverage {
		return false, fmt.Sprintf("Low embedding coverage (%.1f%%, want %.1f%%)", st.Coverage, v.opts.MinCoverage), nil
	}
	return true, fmt.Sprintf("Good embedding coverage (%.1f%%)", st.Coverage), nil
}

func (v *Verifier) checkIndexes(ctx context.Context, _ *Stats) (bool, string, error) {
	got, err := v.store.ExistingIndexes(ctx, indexedTables)
	if err != nil {
		return false, "", err
	}
	if missing := difference(CriticalIndexes, got); len(missing) > 0 {
		return false, "Missing indexes: " + strings.Join(missing, ", "), nil
	}
	return true, fmt.Sprintf("Indexes healthy (%d total)", len(got)), nil
}

func (v *Verifier) checkRecentSync(ctx context.Context, st *Stats) (bool, string, error) {
	last, err := v.store.LastSynced(ctx)
	if err != nil {
		return false, "", err
	}
	if last == nil {
		return false, "No sync timestamp", nil
	}
	st.LastSynced = last
	age := v.opts.Now().Sub(*last)
	if age >= v.opts.Staleness {
		return false, fmt.Sprintf("Sync is stale (last sync %s ago)", age.Truncate(time.Minute)), nil
	}
	return true, "Recent sync detected", nil
}

// checkCategories is informational and only fails when the query errors.
func (v *Verifier) checkCategories(ctx context.Context, st *Stats) (bool, string, error) {
	cats, err := v.store.CategoryStats(ctx)
	if err != nil {
		return false, "", err
	}
	st.Categories = cats
	if len(cats) == 0 {
		return true, "No categories found", nil
	}
	return true, fmt.Sprintf("%d categories", len(cats)), nil
}

func (v *Verifier) checkSyncErrors(ctx context.Context, st *Stats) (bool, string, error) {
	failed, err := v.store.DocumentsWithStatus(ctx, models.SyncStatusFailed)
	if err != nil {
		return false, "", err
	}
	st.FailedSyncs = failed
	if len(failed) > 0 {
		return false, fmt.Sprintf("%d sync errors", len(failed)), nil
	}
	return true, "No sync errors", nil
}

func (v *Verifier) checkPartialSyncs(ctx context.Context, st *Stats) (bool, string, error) {
	partial, err := v.store.DocumentsWithStatus(ctx, models.SyncStatusPartial)
	if err != nil {
		return false, "", err
	}
	st.Partial = partial
	if len(partial) > 0 {
		return false, fmt.Sprintf("%d partially synced documents", len(partial)), nil
	}
	return true, "No partial syncs", nil
}

func difference(want, have []string) []string {
	var missing []string
	for _, w := range want {
		if !slices.Contains(have, w) {
			missing = append(missing, w)
		}
	}
	return missing
}
