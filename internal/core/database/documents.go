package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/models"
)

func (c *DatabaseClient) IsAlreadyProcessed(ctx context.Context, filePath, contentHash, fingerprint string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM source_documents
			WHERE file_path = $1
			  AND content_hash = $2
			  AND sync_status = 'synced'
			  AND ($3 = '' OR chunking_fingerprint = $3)
		)
	`
	var exists bool
	if err := c.db.QueryRowContext(ctx, q, filePath, contentHash, fingerprint).Scan(&exists); err != nil {
		return false, fmt.Errorf("skip check %s: %w", filePath, err)
	}
	return exists, nil
}

// SaveDocument writes chunks and the document row in one transaction,
// serialised per file path by an advisory lock. Existing chunks with the same
// (content_hash, file_path) keep their usage_count.
func (c *DatabaseClient) SaveDocument(ctx context.Context, doc *models.SourceDocument, chunks []models.KnowledgeChunk) error {
	if doc == nil {
		return core.ErrDocumentRequired
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, doc.FilePath); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("lock %s: %w", doc.FilePath, err)
	}

	if len(chunks) > 0 {
		if err := insertChunks(ctx, tx, chunks); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	const upsertDoc = `
		INSERT INTO source_documents (
			file_path, repository, content, content_hash, chunks_count,
			chunking_fingerprint, last_synced, sync_status, sync_error
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7, NULLIF($8, ''))
		ON CONFLICT (file_path) DO UPDATE SET
			repository = EXCLUDED.repository,
			content = EXCLUDED.content,
			content_hash = EXCLUDED.content_hash,
			chunks_count = EXCLUDED.chunks_count,
			chunking_fingerprint = EXCLUDED.chunking_fingerprint,
			last_synced = NOW(),
			sync_status = EXCLUDED.sync_status,
			sync_error = EXCLUDED.sync_error
	`
	status := doc.SyncStatus
	if status == "" {
		status = models.SyncStatusSynced
	}
	if _, err := tx.ExecContext(ctx, upsertDoc,
		doc.FilePath, doc.Repository, doc.Content, doc.ContentHash, doc.ChunksCount,
		doc.ChunkingFingerprint, string(status), doc.SyncError,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert document %s: %w", doc.FilePath, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", doc.FilePath, err)
	}
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []models.KnowledgeChunk) error {
	const q = `
		INSERT INTO knowledge_chunks (
			id, content, content_hash, embedding,
			source_type, source_url, file_path, repository,
			category, tags, language, version, commit_sha, branch, author,
			quality_score, chunk_index, total_chunks, token_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (content_hash, file_path) DO UPDATE SET
			updated_at = NOW(),
			usage_count = knowledge_chunks.usage_count
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare chunk upsert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		tags := ch.Tags
		if tags == nil {
			tags = []string{}
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.Content, ch.ContentHash, pgvector.NewVector(ch.Embedding),
			ch.SourceType, ch.SourceURL, ch.FilePath, ch.Repository,
			ch.Category, tags, ch.Language, ch.Version, ch.CommitSHA, ch.Branch, ch.Author,
			ch.QualityScore, ch.ChunkIndex, ch.TotalChunks, ch.TokenCount,
		); err != nil {
			return fmt.Errorf("upsert chunk %d of %s: %w", ch.ChunkIndex, ch.FilePath, err)
		}
	}
	return nil
}

// MarkDocumentFailed records a failed attempt. An existing row keeps its
// content and hash; a new row gets an empty hash so it never matches the
// skip check.
func (c *DatabaseClient) MarkDocumentFailed(ctx context.Context, filePath, repository, reason string) error {
	const q = `
		INSERT INTO source_documents (
			file_path, repository, content, content_hash, chunks_count, sync_status, sync_error
		) VALUES ($1, $2, '', '', 0, 'failed', $3)
		ON CONFLICT (file_path) DO UPDATE SET
			sync_status = 'failed',
			sync_error = EXCLUDED.sync_error
	`
	if _, err := c.db.ExecContext(ctx, q, filePath, repository, reason); err != nil {
		return fmt.Errorf("mark %s failed: %w", filePath, err)
	}
	return nil
}

// GetDocument returns nil when no row exists for filePath.
func (c *DatabaseClient) GetDocument(ctx context.Context, filePath string) (*models.SourceDocument, error) {
	const q = `
		SELECT file_path, COALESCE(repository, ''), COALESCE(content, ''), COALESCE(content_hash, ''),
		       COALESCE(chunks_count, 0), COALESCE(chunking_fingerprint, ''), last_synced,
		       COALESCE(sync_status, ''), COALESCE(sync_error, '')
		FROM source_documents
		WHERE file_path = $1
	`
	var (
		d          models.SourceDocument
		status     string
		lastSynced sql.NullTime
	)
	err := c.db.QueryRowContext(ctx, q, filePath).Scan(
		&d.FilePath, &d.Repository, &d.Content, &d.ContentHash,
		&d.ChunksCount, &d.ChunkingFingerprint, &lastSynced,
		&status, &d.SyncError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", filePath, err)
	}
	d.SyncStatus = models.SyncStatus(status)
	if lastSynced.Valid {
		t := lastSynced.Time
		d.LastSynced = &t
	}
	return &d, nil
}
