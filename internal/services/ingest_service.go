package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/ksync/internal/core/object-client"
	"github.com/markdave123-py/ksync/internal/core/sources"
)

var ErrNoInput = errors.New("no input: give a file list, a glob pattern or an s3:// prefix")

// ErrInvalidPath is returned by Enqueue for a path that is missing or
// resolves outside the ingest root.
var ErrInvalidPath = errors.New("invalid ingest path")

// SourceSpec names one ingestion input. Exactly one of ListFile, S3URI or
// Pattern selects the mode; Pattern also filters S3 keys.
type SourceSpec struct {
	ListFile string
	Pattern  string
	Root     string
	S3URI    string
}

type IngestService struct {
	ingestor ingestion_engine.Ingestor
	objects  core.ObjectClient
	lockFile string
	root     string
	logger   *slog.Logger
}

// NewIngestService takes the host run lock at lockFile for every Run when
// lockFile is non-empty. objects may be nil when S3 inputs are not used.
// Enqueue only accepts files under root, "." when empty.
func NewIngestService(ing ingestion_engine.Ingestor, objects core.ObjectClient, lockFile, root string, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		root = "."
	}
	return &IngestService{ingestor: ing, objects: objects, lockFile: lockFile, root: root, logger: logger.With("component", "ingest")}
}

// Source resolves a spec into a file source.
func (s *IngestService) Source(spec SourceSpec) (core.FileSource, error) {
	switch {
	case spec.S3URI != "":
		if s.objects == nil {
			return nil, fmt.Errorf("s3 input %s needs AWS configuration", spec.S3URI)
		}
		bucket, prefix, err := objectclient.ParseS3URI(spec.S3URI)
		if err != nil {
			return nil, err
		}
		return sources.NewS3Source(s.objects, bucket, prefix, spec.Pattern)
	case spec.ListFile != "":
		paths, err := sources.ReadListFile(spec.ListFile)
		if err != nil {
			return nil, err
		}
		return sources.NewLocalSource(paths), nil
	case strings.TrimSpace(spec.Pattern) != "":
		root := spec.Root
		if root == "" {
			root = "."
		}
		paths, err := sources.Glob(root, spec.Pattern)
		if err != nil {
			return nil, err
		}
		return sources.NewLocalSource(paths), nil
	}
	return nil, ErrNoInput
}

// Run ingests the selected files under the run lock.
func (s *IngestService) Run(ctx context.Context, spec SourceSpec) (*ingestion_engine.RunSummary, error) {
	src, err := s.Source(spec)
	if err != nil {
		return nil, err
	}
	if s.lockFile != "" {
		lock, err := ingestion_engine.AcquireRunLock(s.lockFile)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				s.logger.Warn("release run lock", "err", err)
			}
		}()
	}
	return s.ingestor.Run(ctx, src)
}

// Enqueue schedules local paths for background ingestion. Every path is
// confined to the ingest root before any is queued; relative paths are
// taken relative to it.
func (s *IngestService) Enqueue(ctx context.Context, paths []string) (int, error) {
	var confined []string
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		c, err := sources.Confine(s.root, p)
		if err != nil {
			s.logger.Warn("rejected ingest path", "path", p, "err", err)
			return 0, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		confined = append(confined, c)
	}

	n := 0
	for _, p := range confined {
		if err := s.ingestor.Enqueue(ctx, p); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
