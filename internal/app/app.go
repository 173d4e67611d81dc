package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/markdave123-py/ksync/internal/api/handlers"
	"github.com/markdave123-py/ksync/internal/config"
	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/core/chunker"
	db "github.com/markdave123-py/ksync/internal/core/database"
	"github.com/markdave123-py/ksync/internal/core/ingestion_engine"
	"github.com/markdave123-py/ksync/internal/core/llm"
	"github.com/markdave123-py/ksync/internal/core/metadata"
	objectclient "github.com/markdave123-py/ksync/internal/core/object-client"
	"github.com/markdave123-py/ksync/internal/core/verifier"
	"github.com/markdave123-py/ksync/internal/services"
)

// Options selects which parts of the graph are built.
type Options struct {
	// Embeddings builds the embedding provider, the ingestor and the search
	// service. Without it only the store, object storage and verifier exist.
	Embeddings bool
}

type App struct {
	Config       *config.Config
	DBClient     *db.DatabaseClient
	ObjectClient *objectclient.S3Client
	Ingestor     *ingestion_engine.DocumentIngestor
	Ingest       *services.IngestService
	Search       *services.SearchService
	Verify       *services.VerifyService

	batcher *llm.Batcher
	closers []io.Closer
	logger  *slog.Logger
}

// NewApp validates cfg and wires the dependency graph. The database must be
// reachable.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	validate := cfg.ValidateStore
	if opts.Embeddings {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Config: cfg, logger: logger}

	dbClient, err := db.NewDatabaseClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient)
	logger.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(ctx, cfg, logger)
	if err != nil {
		logger.Warn("object storage unavailable", "err", err)
	} else {
		a.ObjectClient = objClient
	}

	v := verifier.New(dbClient, verifier.Options{
		MinCoverage: cfg.VerifyMinCoverage,
		Staleness:   cfg.VerifyStaleness,
	}, logger)
	a.Verify = services.NewVerifyService(v, a.objectStore(), cfg.ReportBucket, cfg.ReportPrefix, logger)

	if !opts.Embeddings {
		return a, nil
	}
	if err := a.wireEmbeddings(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wireEmbeddings(ctx context.Context) error {
	cfg, logger := a.Config, a.logger

	provider, closer, err := llm.NewEmbeddingProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closer)

	batcher, err := llm.NewBatcher(provider, cfg.EmbedConcurrency,
		llm.WithBatchSize(cfg.EmbedBatchSize),
		llm.WithDimension(cfg.EmbedDim),
		llm.WithBatchTimeout(cfg.EmbedTimeout),
		llm.WithRateLimit(cfg.EmbedRPS),
		llm.WithBatcherLogger(logger),
	)
	if err != nil {
		return err
	}
	a.batcher = batcher
	logger.Info("embedding provider ready", "provider", cfg.EmbedProvider, "model", provider.ModelName())

	var overrides map[chunker.ContentType]chunker.Policy
	if cfg.ChunkPolicyFile != "" {
		overrides, err = chunker.LoadPolicyFile(cfg.ChunkPolicyFile)
		if err != nil {
			return err
		}
	}

	meta := metadata.NewExtractor(metadata.Options{
		SourceType: cfg.SourceType,
		Repository: cfg.Repository,
		Version:    cfg.Version,
	}, metadata.NewGitResolver(), logger)

	useReadability := false
	a.Ingestor = ingestion_engine.NewDocumentIngestor(
		a.DBClient,
		batcher,
		ingestion_engine.NewDocconvExtractor(useReadability),
		chunker.New(overrides),
		meta,
		ingestion_engine.IngestConfig{
			Workers:            cfg.IngestWorkers,
			PersistTimeout:     cfg.PersistTimeout,
			SkipIncludesPolicy: cfg.SkipIncludesPolicy,
		},
		ingestion_engine.WithLogger(logger),
	)
	a.Ingest = services.NewIngestService(a.Ingestor, a.objectStore(), cfg.IngestLockFile, cfg.IngestRoot, logger)
	a.Search = services.NewSearchService(a.DBClient, batcher, logger)
	return nil
}

// Handler builds the HTTP handler over the wired services. It panics when the
// app was built without embeddings.
func (a *App) Handler() *handlers.KnowledgeHandler {
	if a.Search == nil {
		panic("app: handler needs the embedding services")
	}
	return handlers.NewKnowledgeHandler(a.Search, a.Verify, a.Ingest, a.DBClient, a.Config.Validate, a.logger)
}

// objectStore keeps a nil *S3Client from becoming a non-nil interface.
func (a *App) objectStore() core.ObjectClient {
	if a.ObjectClient == nil {
		return nil
	}
	return a.ObjectClient
}

// Close releases every resource opened by NewApp.
func (a *App) Close() error {
	if a.batcher != nil {
		a.batcher.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
