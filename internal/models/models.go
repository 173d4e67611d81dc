package models

import (
	"time"
)

// SyncStatus is the outcome recorded on a source document row.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusFailed  SyncStatus = "failed"
)

// SourceDocument is the per-file record. FilePath is unique.
type SourceDocument struct {
	FilePath            string     `db:"file_path" json:"file_path"`
	Repository          string     `db:"repository" json:"repository"`
	Content             string     `db:"content" json:"-"`
	ContentHash         string     `db:"content_hash" json:"content_hash"`
	ChunksCount         int        `db:"chunks_count" json:"chunks_count"`
	ChunkingFingerprint string     `db:"chunking_fingerprint" json:"chunking_fingerprint"`
	LastSynced          *time.Time `db:"last_synced" json:"last_synced,omitempty"`
	SyncStatus          SyncStatus `db:"sync_status" json:"sync_status"` // synced | partial | failed
	SyncError           string     `db:"sync_error" json:"sync_error,omitempty"`
}

// KnowledgeChunk is one retrievable segment of a source document.
// Identity is (ContentHash, FilePath).
type KnowledgeChunk struct {
	ID           string    `db:"id" json:"id"`
	Content      string    `db:"content" json:"content"`
	ContentHash  string    `db:"content_hash" json:"content_hash"`
	Embedding    []float32 `db:"embedding" json:"-"` // pgvector column
	SourceType   string    `db:"source_type" json:"source_type"`
	SourceURL    string    `db:"source_url" json:"source_url"`
	FilePath     string    `db:"file_path" json:"file_path"`
	Repository   string    `db:"repository" json:"repository"`
	Category     string    `db:"category" json:"category"`
	Tags         []string  `db:"tags" json:"tags"`
	Language     string    `db:"language" json:"language"`
	Version      string    `db:"version" json:"version"`
	CommitSHA    string    `db:"commit_sha" json:"commit_sha"`
	Branch       string    `db:"branch" json:"branch"`
	Author       string    `db:"author" json:"author"`
	QualityScore float64   `db:"quality_score" json:"quality_score"`
	UsageCount   int       `db:"usage_count" json:"usage_count"`
	ChunkIndex   int       `db:"chunk_index" json:"chunk_index"`
	TotalChunks  int       `db:"total_chunks" json:"total_chunks"`
	TokenCount   int       `db:"token_count" json:"token_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SearchResult is a chunk returned by similarity search with its cosine score.
type SearchResult struct {
	Chunk KnowledgeChunk `json:"chunk"`
	Score float64        `json:"score"`
}

// QueryLog records one retrieval request.
type QueryLog struct {
	ID          string    `db:"id" json:"id"`
	Query       string    `db:"query" json:"query"`
	Category    string    `db:"category" json:"category,omitempty"`
	SourceType  string    `db:"source_type" json:"source_type,omitempty"`
	ResultCount int       `db:"result_count" json:"result_count"`
	TopScore    float64   `db:"top_score" json:"top_score"`
	LatencyMs   int64     `db:"latency_ms" json:"latency_ms"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CategoryStat is the per-category chunk distribution used by the verifier.
type CategoryStat struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	AvgQuality float64 `json:"avg_quality"`
}

// FailedSync is a source document whose last attempt did not fully persist.
type FailedSync struct {
	FilePath  string     `json:"file_path"`
	Status    SyncStatus `json:"status"`
	SyncError string     `json:"sync_error"`
}
