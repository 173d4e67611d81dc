package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/models"
)

// SearchChunks orders embedded chunks by cosine distance to the query vector
// and reports score = 1 - distance.
func (c *DatabaseClient) SearchChunks(ctx context.Context, sq core.SearchQuery) ([]models.SearchResult, error) {
	limit := sq.Limit
	if limit <= 0 {
		limit = 5
	}
	args := []any{pgvector.NewVector(sq.Vector), limit}
	where := []string{"embedding IS NOT NULL"}
	if sq.SourceType != "" {
		args = append(args, sq.SourceType)
		where = append(where, fmt.Sprintf("source_type = $%d", len(args)))
	}
	if sq.Category != "" {
		args = append(args, sq.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}

	q := `
		SELECT id, content, file_path, COALESCE(source_type, ''), COALESCE(source_url, ''),
		       COALESCE(category, ''), COALESCE(array_to_json(tags), '[]'::json),
		       COALESCE(language, ''), COALESCE(quality_score, 0), COALESCE(usage_count, 0),
		       COALESCE(chunk_index, 0), COALESCE(total_chunks, 0),
		       1 - (embedding <=> $1) AS score
		FROM knowledge_chunks
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var (
			r    models.SearchResult
			tags []byte
		)
		ch := &r.Chunk
		if err := rows.Scan(
			&ch.ID, &ch.Content, &ch.FilePath, &ch.SourceType, &ch.SourceURL,
			&ch.Category, &tags, &ch.Language, &ch.QualityScore, &ch.UsageCount,
			&ch.ChunkIndex, &ch.TotalChunks, &r.Score,
		); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if err := json.Unmarshal(tags, &ch.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", ch.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) IncrementUsage(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	const q = `
		UPDATE knowledge_chunks
		SET usage_count = usage_count + 1
		WHERE id = ANY(CAST($1::text[] AS uuid[]))
	`
	if _, err := c.db.ExecContext(ctx, q, chunkIDs); err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

func (c *DatabaseClient) LogQuery(ctx context.Context, entry *models.QueryLog) error {
	if entry == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO query_logs (id, query, category, source_type, result_count, top_score, latency_ms, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, NOW())
	`
	if _, err := c.db.ExecContext(ctx, q,
		entry.ID, entry.Query, entry.Category, entry.SourceType,
		entry.ResultCount, entry.TopScore, entry.LatencyMs,
	); err != nil {
		return fmt.Errorf("log query: %w", err)
	}
	return nil
}
