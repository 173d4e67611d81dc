package ingestion_engine

import (
	"log/slog"
	"time"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/core/chunker"
	"github.com/markdave123-py/ksync/internal/core/metadata"
)

// IngestConfig tunes the pipeline.
//
// Workers:            files processed concurrently by Run (1 = sequential).
// PersistTimeout:     bound on the write phase, which ignores cancellation.
// SkipIncludesPolicy: require the stored chunking fingerprint to match before skipping.
// QueueSize:          capacity of the background job queue.
type IngestConfig struct {
	Workers            int
	PersistTimeout     time.Duration
	SkipIncludesPolicy bool
	QueueSize          int
}

// DocumentIngestor orchestrates per-file ingestion:
//
// store:     skip check and transactional persistence.
// embedder:  batched embedding with per-position outcomes.
// extractor: raw bytes to text.
// chunker:   type-aware splitting.
// meta:      category, tags, language and provenance.
// source:    where background jobs read files from.
// jobs:      in-memory queue of paths for Start/Enqueue.
type DocumentIngestor struct {
	store     core.DocumentStore
	embedder  core.BatchEmbedder
	extractor core.DocumentExtractor
	chunker   *chunker.Chunker
	meta      *metadata.Extractor
	source    core.FileSource
	cfg       IngestConfig
	logger    *slog.Logger
	onResult  func(FileResult)

	locks *pathLocks
	jobs  chan string
}

// IngestorOption configures optional collaborators.
type IngestorOption func(*DocumentIngestor)

func WithLogger(l *slog.Logger) IngestorOption {
	return func(i *DocumentIngestor) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithSource sets the source background jobs read from. The default reads
// the local filesystem.
func WithSource(src core.FileSource) IngestorOption {
	return func(i *DocumentIngestor) {
		if src != nil {
			i.source = src
		}
	}
}

// WithResultHook is called with the result of every background job.
func WithResultHook(fn func(FileResult)) IngestorOption {
	return func(i *DocumentIngestor) { i.onResult = fn }
}

func (c IngestConfig) withDefaults() IngestConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 2 * time.Minute
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	return c
}
