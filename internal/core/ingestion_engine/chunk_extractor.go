package ingestion_engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/core/chunker"
	"github.com/markdave123-py/ksync/internal/core/hasher"
	"github.com/markdave123-py/ksync/internal/core/metadata"
	"github.com/markdave123-py/ksync/internal/models"
)

// assembleChunks pairs split segments with their embedding outcomes. Only
// embedded segments become rows; the first failure reason is returned for
// the document's sync_error.
func assembleChunks(path string, fm metadata.FileMetadata, pieces []chunker.Chunk, results []core.EmbeddingResult) ([]models.KnowledgeChunk, int, string) {
	out := make([]models.KnowledgeChunk, 0, len(pieces))
	var (
		failed int
		reason string
	)
	for i, p := range pieces {
		var vec []float32
		switch r := results[i].(type) {
		case core.Embedded:
			vec = r.Vector
		case core.EmbeddingFailed:
			failed++
			if reason == "" {
				reason = r.Reason
			}
			continue
		default:
			failed++
			if reason == "" {
				reason = fmt.Sprintf("no embedding result for chunk %d", p.Index)
			}
			continue
		}

		out = append(out, models.KnowledgeChunk{
			ID:           uuid.NewString(),
			Content:      p.Text,
			ContentHash:  hasher.HashString(p.Text),
			Embedding:    vec,
			SourceType:   fm.SourceType,
			SourceURL:    fm.SourceURL,
			FilePath:     path,
			Repository:   fm.Repository,
			Category:     fm.Category,
			Tags:         append([]string(nil), fm.Tags...),
			Language:     fm.Language,
			Version:      fm.Version,
			CommitSHA:    fm.CommitSHA,
			Branch:       fm.Branch,
			Author:       fm.Author,
			QualityScore: metadata.QualityScore(p.Text),
			ChunkIndex:   p.Index,
			TotalChunks:  len(pieces),
			TokenCount:   p.Tokens,
		})
	}
	return out, failed, reason
}

func chunkTexts(pieces []chunker.Chunk) []string {
	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	return texts
}
