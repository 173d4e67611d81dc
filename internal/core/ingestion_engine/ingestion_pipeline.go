package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/core/chunker"
	"github.com/markdave123-py/ksync/internal/core/hasher"
	"github.com/markdave123-py/ksync/internal/core/metadata"
	"github.com/markdave123-py/ksync/internal/core/sources"
	"github.com/markdave123-py/ksync/internal/models"
)

// NewDocumentIngestor constructs the ingestor with a bounded job queue.
func NewDocumentIngestor(
	store core.DocumentStore,
	embedder core.BatchEmbedder,
	extractor core.DocumentExtractor,
	ch *chunker.Chunker,
	meta *metadata.Extractor,
	cfg IngestConfig,
	opts ...IngestorOption,
) *DocumentIngestor {
	cfg = cfg.withDefaults()
	i := &DocumentIngestor{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		chunker:   ch,
		meta:      meta,
		source:    sources.NewLocalSource(nil),
		cfg:       cfg,
		logger:    slog.Default(),
		locks:     newPathLocks(),
		jobs:      make(chan string, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "ingestor")
	return i
}

// Run processes every file the source lists and returns the tally. The
// error is non-nil when listing fails, when the embedding provider rejects
// the credentials, or when ctx is cancelled; the summary is still returned
// in the latter two cases.
func (i *DocumentIngestor) Run(ctx context.Context, src core.FileSource) (*RunSummary, error) {
	paths, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	summary := &RunSummary{RunID: uuid.NewString(), StartedAt: time.Now(), Total: len(paths)}
	log := i.logger.With("run_id", summary.RunID)
	log.Info("ingestion run started", "files", len(paths), "workers", i.cfg.Workers)

	// schedCtx stops scheduling on a fatal error while in-flight files keep
	// the caller's context.
	schedCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		g       errgroup.Group
		mu      sync.Mutex
		fatal   error
		results = make([]*FileResult, len(paths))
	)
	g.SetLimit(i.cfg.Workers)

	for idx, path := range paths {
		if schedCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if schedCtx.Err() != nil {
				return nil
			}
			res := i.ProcessOne(ctx, src, path)
			results[idx] = &res
			if errors.Is(res.Err, core.ErrUnauthenticated) {
				mu.Lock()
				if fatal == nil {
					fatal = res.Err
				}
				mu.Unlock()
				stop()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r == nil {
			summary.NotRun++
			continue
		}
		summary.add(*r)
	}
	summary.Duration = time.Since(summary.StartedAt)

	log.Info("ingestion run finished",
		"persisted", summary.Persisted,
		"partial", summary.Partial,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"not_run", summary.NotRun,
		"duration", summary.Duration,
	)

	if fatal != nil {
		return summary, fatal
	}
	return summary, ctx.Err()
}

// ProcessOne drives a single file through the pipeline. Attempts on the
// same path are serialised.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, src core.FileSource, path string) FileResult {
	start := time.Now()
	res := FileResult{Path: path, State: StatePending}

	unlock := i.locks.lock(path)
	defer unlock()

	i.process(ctx, src, &res)
	res.Duration = time.Since(start)

	log := i.logger.With("path", path, "state", res.State)
	switch res.State {
	case StateFailed:
		log.Warn("file failed", "err", res.Error)
	case StatePartial:
		log.Warn("file partially synced", "chunks", res.Chunks, "embedded", res.Embedded, "err", res.Error)
	case StateSkipped:
		log.Debug("file unchanged")
	default:
		log.Info("file synced", "chunks", res.Chunks, "duration", res.Duration)
	}
	return res
}

func (i *DocumentIngestor) process(ctx context.Context, src core.FileSource, res *FileResult) {
	path := res.Path

	data, err := src.Read(ctx, path)
	if err != nil {
		res.fail(fmt.Errorf("read: %w", err))
		return
	}

	fm := i.meta.Extract(path)

	text, err := i.extractor.Extract(ctx, path, data)
	if err != nil {
		res.fail(fmt.Errorf("extract: %w", err))
		i.markFailed(ctx, path, fm.Repository, res.Error)
		return
	}

	res.ContentHash = hasher.HashString(text)
	res.State = StateHashed

	fingerprint := i.chunker.Fingerprint(path)
	skipKey := ""
	if i.cfg.SkipIncludesPolicy {
		skipKey = fingerprint
	}
	done, err := i.store.IsAlreadyProcessed(ctx, path, res.ContentHash, skipKey)
	if err != nil {
		res.fail(err)
		return
	}
	if done {
		res.State = StateSkipped
		return
	}

	pieces := i.chunker.Split(path, text)
	res.Chunks = len(pieces)
	res.State = StateChunked

	results, err := i.embedder.EmbedAll(ctx, chunkTexts(pieces))
	if err != nil {
		// Rejected credentials or cancellation: nothing is written.
		res.fail(fmt.Errorf("embed: %w", err))
		return
	}

	chunks, failed, reason := assembleChunks(path, fm, pieces, results)
	res.Embedded = len(chunks)
	res.State = StateEmbedded

	if len(pieces) > 0 && len(chunks) == 0 {
		res.fail(fmt.Errorf("all %d chunks failed to embed: %s", len(pieces), reason))
		i.markFailed(ctx, path, fm.Repository, res.Error)
		return
	}

	doc := &models.SourceDocument{
		FilePath:            path,
		Repository:          fm.Repository,
		Content:             text,
		ContentHash:         res.ContentHash,
		ChunksCount:         len(pieces),
		ChunkingFingerprint: fingerprint,
		SyncStatus:          models.SyncStatusSynced,
	}
	if failed > 0 {
		doc.SyncStatus = models.SyncStatusPartial
		doc.SyncError = fmt.Sprintf("%d of %d chunks failed to embed: %s", failed, len(pieces), reason)
	}

	persistCtx, cancel := i.persistContext(ctx)
	defer cancel()
	if err := i.store.SaveDocument(persistCtx, doc, chunks); err != nil {
		res.fail(fmt.Errorf("persist: %w", err))
		i.markFailed(ctx, path, fm.Repository, res.Error)
		return
	}

	if failed > 0 {
		res.State = StatePartial
		res.Error = doc.SyncError
		return
	}
	res.State = StatePersisted
}

// persistContext detaches writes from cancellation so a started file always
// finishes or rolls back on its own terms.
func (i *DocumentIngestor) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), i.cfg.PersistTimeout)
}

func (i *DocumentIngestor) markFailed(ctx context.Context, path, repository, reason string) {
	pctx, cancel := i.persistContext(ctx)
	defer cancel()
	if err := i.store.MarkDocumentFailed(pctx, path, repository, reason); err != nil {
		i.logger.Error("could not record failure", "path", path, "err", err)
	}
}

// Start runs numWorkers goroutines reading from the jobs channel until ctx
// is done.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					i.logger.Debug("worker shutting down", "worker", w)
					return
				case path := <-i.jobs:
					res := i.ProcessOne(ctx, i.source, path)
					if errors.Is(res.Err, core.ErrUnauthenticated) {
						i.logger.Error("embedding provider rejected credentials", "worker", w, "path", path)
					}
					if i.onResult != nil {
						i.onResult(res)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a path for background ingestion. It blocks while the
// queue is full.
func (i *DocumentIngestor) Enqueue(ctx context.Context, path string) error {
	select {
	case i.jobs <- path:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
