package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/markdave123-py/ksync/internal/models"
)

func (c *DatabaseClient) InstalledExtensions(ctx context.Context, names []string) (map[string]string, error) {
	const q = `SELECT extname, extversion FROM pg_extension WHERE extname = ANY($1::text[])`
	rows, err := c.db.QueryContext(ctx, q, names)
	if err != nil {
		return nil, fmt.Errorf("list extensions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, version string
		if err := rows.Scan(&name, &version); err != nil {
			return nil, err
		}
		out[name] = version
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ExistingTables(ctx context.Context, names []string) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name = ANY($1::text[])
		ORDER BY table_name
	`
	return c.queryStrings(ctx, q, names)
}

func (c *DatabaseClient) ExistingIndexes(ctx context.Context, tables []string) ([]string, error) {
	const q = `
		SELECT indexname
		FROM pg_indexes
		WHERE schemaname = 'public'
		  AND tablename = ANY($1::text[])
		ORDER BY tablename, indexname
	`
	return c.queryStrings(ctx, q, tables)
}

func (c *DatabaseClient) queryStrings(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM source_documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (c *DatabaseClient) CountChunks(ctx context.Context) (int, int, error) {
	var total, embedded int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(embedding) FROM knowledge_chunks`).Scan(&total, &embedded); err != nil {
		return 0, 0, fmt.Errorf("count chunks: %w", err)
	}
	return total, embedded, nil
}

// LastSynced returns nil when no document has ever synced.
func (c *DatabaseClient) LastSynced(ctx context.Context) (*time.Time, error) {
	var t sql.NullTime
	if err := c.db.QueryRowContext(ctx, `SELECT MAX(last_synced) FROM source_documents`).Scan(&t); err != nil {
		return nil, fmt.Errorf("last sync: %w", err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

func (c *DatabaseClient) CategoryStats(ctx context.Context) ([]models.CategoryStat, error) {
	const q = `
		SELECT category, COUNT(*), COALESCE(ROUND(AVG(quality_score)::numeric, 2), 0)::float8
		FROM knowledge_chunks
		WHERE category IS NOT NULL
		GROUP BY category
		ORDER BY COUNT(*) DESC
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	defer rows.Close()

	var out []models.CategoryStat
	for rows.Next() {
		var s models.CategoryStat
		if err := rows.Scan(&s.Category, &s.Count, &s.AvgQuality); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DocumentsWithStatus(ctx context.Context, status models.SyncStatus) ([]models.FailedSync, error) {
	const q = `
		SELECT file_path, sync_status, COALESCE(sync_error, '')
		FROM source_documents
		WHERE sync_status = $1
		ORDER BY file_path
	`
	rows, err := c.db.QueryContext(ctx, q, string(status))
	if err != nil {
		return nil, fmt.Errorf("documents with status %s: %w", status, err)
	}
	defer rows.Close()

	var out []models.FailedSync
	for rows.Next() {
		var (
			f models.FailedSync
			s string
		)
		if err := rows.Scan(&f.FilePath, &s, &f.SyncError); err != nil {
			return nil, err
		}
		f.Status = models.SyncStatus(s)
		out = append(out, f)
	}
	return out, rows.Err()
}
