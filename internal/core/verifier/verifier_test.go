package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ksync/internal/models"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeInspector struct {
	extensions map[string]string
	tables     []string
	indexes    []string
	docs       int
	chunks     int
	embedded   int
	last       *time.Time
	categories []models.CategoryStat
	byStatus   map[models.SyncStatus][]models.FailedSync

	countErr error
	extErr   error
}

func healthy() *fakeInspector {
	last := now.Add(-2 * time.Hour)
	return &fakeInspector{
		extensions: map[string]string{"vector": "0.7.0", "uuid-ossp": "1.1"},
		tables:     []string{"knowledge_chunks", "query_logs", "source_documents"},
		indexes:    []string{"idx_category", "idx_embedding", "idx_source_type", "source_documents_pkey"},
		docs:       12,
		chunks:     100,
		embedded:   100,
		last:       &last,
		categories: []models.CategoryStat{{Category: "guide", Count: 60, AvgQuality: 0.72}},
		byStatus:   map[models.SyncStatus][]models.FailedSync{},
	}
}

func (f *fakeInspector) InstalledExtensions(context.Context, []string) (map[string]string, error) {
	return f.extensions, f.extErr
}
func (f *fakeInspector) ExistingTables(context.Context, []string) ([]string, error) {
	return f.tables, nil
}
func (f *fakeInspector) ExistingIndexes(context.Context, []string) ([]string, error) {
	return f.indexes, nil
}
func (f *fakeInspector) CountDocuments(context.Context) (int, error) {
	return f.docs, f.countErr
}
func (f *fakeInspector) CountChunks(context.Context) (int, int, error) {
	return f.chunks, f.embedded, f.countErr
}
func (f *fakeInspector) LastSynced(context.Context) (*time.Time, error) {
	return f.last, nil
}
func (f *fakeInspector) CategoryStats(context.Context) ([]models.CategoryStat, error) {
	return f.categories, nil
}
func (f *fakeInspector) DocumentsWithStatus(_ context.Context, s models.SyncStatus) ([]models.FailedSync, error) {
	return f.byStatus[s], nil
}

func verify(t *testing.T, f *fakeInspector) *Report {
	t.Helper()
	v := New(f, Options{Now: func() time.Time { return now }}, nil)
	return v.Verify(context.Background())
}

func check(t *testing.T, r *Report, name string) Check {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not in report", name)
	return Check{}
}

func TestHealthyStorePasses(t *testing.T) {
	r := verify(t, healthy())

	assert.True(t, r.Passed)
	assert.Empty(t, r.FailedChecks())
	assert.Len(t, r.Checks, 9)
	assert.Equal(t, []string{
		"extensions", "tables", "document_count", "embedding_coverage", "indexes",
		"recent_sync", "categories", "sync_errors", "partial_syncs",
	}, r.PassedChecks())
	assert.InDelta(t, 100.0, r.Stats.Coverage, 1e-9)
	assert.Equal(t, now, r.GeneratedAt)
}

func TestEmptyStore(t *testing.T) {
	f := healthy()
	f.docs, f.chunks, f.embedded = 0, 0, 0
	f.last = nil
	f.categories = nil

	r := verify(t, f)

	assert.False(t, r.Passed)
	assert.Equal(t, "No documents indexed", check(t, r, "document_count").Reason)
	assert.True(t, check(t, r, "embedding_coverage").Passed)
	assert.Equal(t, "No sync timestamp", check(t, r, "recent_sync").Reason)
	assert.True(t, check(t, r, "categories").Passed)
}

func TestCoverageThreshold(t *testing.T) {
	tests := []struct {
		name     string
		embedded int
		passed   bool
	}{
		{"exactly at minimum", 95, true},
		{"just below", 94, false},
		{"none embedded", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := healthy()
			f.embedded = tt.embedded
			c := check(t, verify(t, f), "embedding_coverage")
			assert.Equal(t, tt.passed, c.Passed, c.Reason)
		})
	}
}

func TestStaleSync(t *testing.T) {
	f := healthy()
	old := now.Add(-36 * time.Hour)
	f.last = &old

	c := check(t, verify(t, f), "recent_sync")

	assert.False(t, c.Passed)
	assert.Contains(t, c.Reason, "Sync is stale")
}

func TestMissingSchemaPieces(t *testing.T) {
	f := healthy()
	f.extensions = map[string]string{"vector": "0.7.0"}
	f.tables = []string{"knowledge_chunks"}
	f.indexes = []string{"idx_embedding"}

	r := verify(t, f)

	assert.Equal(t, "Missing extensions: uuid-ossp", check(t, r, "extensions").Reason)
	assert.Equal(t, "Missing tables: source_documents, query_logs", check(t, r, "tables").Reason)
	assert.Equal(t, "Missing indexes: idx_source_type, idx_category", check(t, r, "indexes").Reason)
	assert.Equal(t, []string{"extensions", "tables", "indexes"}, r.FailedChecks())
}

func TestFailedAndPartialSyncs(t *testing.T) {
	f := healthy()
	f.byStatus[models.SyncStatusFailed] = []models.FailedSync{{FilePath: "a.md", Status: models.SyncStatusFailed, SyncError: "boom"}}
	f.byStatus[models.SyncStatusPartial] = []models.FailedSync{
		{FilePath: "b.md", Status: models.SyncStatusPartial, SyncError: "1 of 4 chunks failed to embed"},
		{FilePath: "c.md", Status: models.SyncStatusPartial},
	}

	r := verify(t, f)

	assert.Equal(t, "1 sync errors", check(t, r, "sync_errors").Reason)
	assert.Equal(t, "2 partially synced documents", check(t, r, "partial_syncs").Reason)
	assert.Contains(t, r.Text(), "failed:  a.md: boom")
	assert.Contains(t, r.Text(), "partial: b.md")
}

func TestErroringCheckDoesNotStopOthers(t *testing.T) {
	f := healthy()
	f.extErr = errors.New("permission denied for pg_extension")
	f.countErr = errors.New("connection reset")

	r := verify(t, f)

	assert.False(t, r.Passed)
	assert.Contains(t, check(t, r, "extensions").Reason, "permission denied")
	assert.Contains(t, check(t, r, "document_count").Reason, "connection reset")
	assert.False(t, check(t, r, "embedding_coverage").Passed)
	assert.True(t, check(t, r, "tables").Passed)
	assert.True(t, check(t, r, "partial_syncs").Passed)
	assert.Len(t, r.Checks, 9)
}

func TestReportRendering(t *testing.T) {
	f := healthy()
	f.embedded = 50
	r := verify(t, f)

	text := r.Text()
	assert.Contains(t, text, "Some checks failed")
	assert.Contains(t, text, "[fail] embedding_coverage")
	assert.Contains(t, text, "guide: 60 chunks (quality 0.72)")

	raw, err := r.JSON()
	require.NoError(t, err)
	var decoded struct {
		Passed bool    `json:"passed"`
		Checks []Check `json:"checks"`
		Stats  Stats   `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.False(t, decoded.Passed)
	assert.Len(t, decoded.Checks, 9)
	assert.InDelta(t, 50.0, decoded.Stats.Coverage, 1e-9)
}
