package core

import (
	"context"
	"time"

	"github.com/markdave123-py/ksync/internal/models"
)

// DocumentStore is the persistence the ingestion pipeline needs.
type DocumentStore interface {
	// IsAlreadyProcessed reports whether filePath was last synced with this
	// content hash. An empty fingerprint matches any stored fingerprint.
	IsAlreadyProcessed(ctx context.Context, filePath, contentHash, fingerprint string) (bool, error)

	// SaveDocument writes the chunks and the document row in one
	// transaction. Nothing is written when it returns an error.
	SaveDocument(ctx context.Context, doc *models.SourceDocument, chunks []models.KnowledgeChunk) error

	// MarkDocumentFailed records a failed attempt without touching chunks.
	MarkDocumentFailed(ctx context.Context, filePath, repository, reason string) error
}

// SearchQuery filters a nearest-neighbour lookup.
type SearchQuery struct {
	Vector     []float32
	Limit      int
	SourceType string
	Category   string
}

// SearchStore is the persistence the retrieval service needs.
type SearchStore interface {
	SearchChunks(ctx context.Context, q SearchQuery) ([]models.SearchResult, error)
	IncrementUsage(ctx context.Context, chunkIDs []string) error
	LogQuery(ctx context.Context, entry *models.QueryLog) error
}

// StoreInspector exposes the read-only facts the coverage verifier audits.
type StoreInspector interface {
	InstalledExtensions(ctx context.Context, names []string) (map[string]string, error)
	ExistingTables(ctx context.Context, names []string) ([]string, error)
	ExistingIndexes(ctx context.Context, tables []string) ([]string, error)
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (total int, embedded int, err error)
	LastSynced(ctx context.Context) (*time.Time, error)
	CategoryStats(ctx context.Context) ([]models.CategoryStat, error)
	DocumentsWithStatus(ctx context.Context, status models.SyncStatus) ([]models.FailedSync, error)
}

// DbClient is the full Postgres/pgvector client.
type DbClient interface {
	DocumentStore
	SearchStore
	StoreInspector

	GetDocument(ctx context.Context, filePath string) (*models.SourceDocument, error)
	Ping(ctx context.Context) error
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	ListKeys(ctx context.Context, bucket, prefix string) ([]string, error)
}

// FileSource enumerates and reads the files of one ingestion input.
type FileSource interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, path string) ([]byte, error)
}
