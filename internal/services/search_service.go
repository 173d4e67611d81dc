package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/models"
)

const (
	DefaultTopK      = 5
	MaxTopK          = 50
	DefaultThreshold = 0.5
)

// QueryEmbedder embeds a single search query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchRequest filters a similarity search. A zero TopK or Threshold takes
// the default; a negative Threshold accepts every result.
type SearchRequest struct {
	Query      string  `json:"query"`
	TopK       int     `json:"top_k,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
	SourceType string  `json:"source_type,omitempty"`
	Category   string  `json:"category,omitempty"`
}

func (r SearchRequest) normalized() SearchRequest {
	r.Query = strings.TrimSpace(r.Query)
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	if r.TopK > MaxTopK {
		r.TopK = MaxTopK
	}
	if r.Threshold == 0 {
		r.Threshold = DefaultThreshold
	}
	return r
}

type SearchResponse struct {
	Query     string                `json:"query"`
	Results   []models.SearchResult `json:"results"`
	Returned  int                   `json:"returned"`
	TopScore  float64               `json:"top_score"`
	LatencyMs int64                 `json:"latency_ms"`
}

type SearchService struct {
	store    core.SearchStore
	embedder QueryEmbedder
	logger   *slog.Logger
}

func NewSearchService(store core.SearchStore, embedder QueryEmbedder, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{store: store, embedder: embedder, logger: logger.With("component", "search")}
}

// Search returns the chunks scoring at or above the threshold, bumps their
// usage counters and records the query. Usage and query-log writes are best
// effort.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()
	req = req.normalized()

	all, err := s.lookup(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{Query: req.Query, Returned: len(all), Results: []models.SearchResult{}}
	ids := make([]string, 0, len(all))
	for _, r := range all {
		if r.Score > resp.TopScore {
			resp.TopScore = r.Score
		}
		if r.Score >= req.Threshold {
			resp.Results = append(resp.Results, r)
			ids = append(ids, r.Chunk.ID)
		}
	}
	resp.LatencyMs = time.Since(start).Milliseconds()

	if err := s.store.IncrementUsage(ctx, ids); err != nil {
		s.logger.Warn("usage update failed", "err", err)
	}
	entry := &models.QueryLog{
		Query:       req.Query,
		Category:    req.Category,
		SourceType:  req.SourceType,
		ResultCount: len(resp.Results),
		TopScore:    resp.TopScore,
		LatencyMs:   resp.LatencyMs,
	}
	if err := s.store.LogQuery(ctx, entry); err != nil {
		s.logger.Warn("query log failed", "err", err)
	}

	s.logger.Debug("search", "query", req.Query, "returned", resp.Returned, "hits", len(resp.Results), "top_score", resp.TopScore)
	return resp, nil
}

// lookup returns the raw top-K neighbours without threshold filtering or
// side effects.
func (s *SearchService) lookup(ctx context.Context, req SearchRequest) ([]models.SearchResult, error) {
	if req.Query == "" {
		return nil, core.ErrEmptyQuery
	}
	vec, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.SearchChunks(ctx, core.SearchQuery{
		Vector:     vec,
		Limit:      req.TopK,
		SourceType: req.SourceType,
		Category:   req.Category,
	})
}
