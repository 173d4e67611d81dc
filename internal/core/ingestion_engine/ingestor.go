package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/ksync/internal/core"
)

type Ingestor interface {
	Run(ctx context.Context, src core.FileSource) (*RunSummary, error)
	ProcessOne(ctx context.Context, src core.FileSource, path string) FileResult
	Start(ctx context.Context, numWorkers int)
	Enqueue(ctx context.Context, path string) error
}

var _ Ingestor = (*DocumentIngestor)(nil)
