package ingestion_engine

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/markdave123-py/ksync/internal/models"
)

type chunkKey struct{ hash, path string }

// memStore mimics the Postgres upsert semantics in memory.
type memStore struct {
	mu      sync.Mutex
	docs    map[string]models.SourceDocument
	chunks  map[chunkKey]models.KnowledgeChunk
	failed  map[string]string
	saves   int
	saveErr error
	delay   time.Duration

	active     map[string]int
	overlapped atomic.Bool
}

func newMemStore() *memStore {
	return &memStore{
		docs:   make(map[string]models.SourceDocument),
		chunks: make(map[chunkKey]models.KnowledgeChunk),
		failed: make(map[string]string),
		active: make(map[string]int),
	}
}

func (s *memStore) IsAlreadyProcessed(ctx context.Context, path, hash, fingerprint string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[path]
	if !ok || d.ContentHash != hash || d.SyncStatus != models.SyncStatusSynced {
		return false, nil
	}
	return fingerprint == "" || d.ChunkingFingerprint == fingerprint, nil
}

func (s *memStore) SaveDocument(ctx context.Context, doc *models.SourceDocument, chunks []models.KnowledgeChunk) error {
	s.mu.Lock()
	s.active[doc.FilePath]++
	if s.active[doc.FilePath] > 1 {
		s.overlapped.Store(true)
	}
	delay, saveErr := s.delay, s.saveErr
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active[doc.FilePath]--
		s.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if saveErr != nil {
		return saveErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	for _, ch := range chunks {
		k := chunkKey{ch.ContentHash, ch.FilePath}
		if old, ok := s.chunks[k]; ok {
			ch.ID = old.ID
			ch.UsageCount = old.UsageCount
		}
		s.chunks[k] = ch
	}
	now := time.Now()
	d := *doc
	d.LastSynced = &now
	s.docs[doc.FilePath] = d
	return nil
}

func (s *memStore) MarkDocumentFailed(_ context.Context, path, repository, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[path] = reason
	d, ok := s.docs[path]
	if !ok {
		d = models.SourceDocument{FilePath: path, Repository: repository}
	}
	d.SyncStatus = models.SyncStatusFailed
	d.SyncError = reason
	s.docs[path] = d
	return nil
}

func (s *memStore) doc(path string) (models.SourceDocument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[path]
	return d, ok
}

func (s *memStore) chunksFor(path string) []models.KnowledgeChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.KnowledgeChunk
	for k, c := range s.chunks {
		if k.path == path {
			out = append(out, c)
		}
	}
	return out
}

func (s *memStore) setUsage(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, c := range s.chunks {
		if k.path == path {
			c.UsageCount = n
			s.chunks[k] = c
		}
	}
}

// mapSource serves files from memory.
type mapSource struct {
	order []string
	files map[string]string
}

func newMapSource(files map[string]string, order ...string) *mapSource {
	return &mapSource{order: order, files: files}
}

func (m *mapSource) List(context.Context) ([]string, error) {
	return m.order, nil
}

func (m *mapSource) Read(_ context.Context, path string) ([]byte, error) {
	body, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(body), nil
}

type listErrSource struct{}

func (listErrSource) List(context.Context) ([]string, error) {
	return nil, errors.New("bucket gone")
}

func (listErrSource) Read(context.Context, string) ([]byte, error) {
	return nil, errors.New("unreachable")
}
