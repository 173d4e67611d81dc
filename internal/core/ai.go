package core

import "context"

// EmbeddingProvider turns texts into vectors, one per input, in order.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// EmbeddingResult is the per-position outcome of a batched embedding call.
// It is either Embedded or EmbeddingFailed.
type EmbeddingResult interface {
	isEmbeddingResult()
}

// Embedded carries the vector for one input.
type Embedded struct {
	Vector []float32
}

// EmbeddingFailed marks an input whose batch failed.
type EmbeddingFailed struct {
	Reason string
}

func (Embedded) isEmbeddingResult()        {}
func (EmbeddingFailed) isEmbeddingResult() {}

// BatchEmbedder embeds many texts with per-position outcomes. The returned
// slice always has len(texts) entries.
type BatchEmbedder interface {
	EmbedAll(ctx context.Context, texts []string) ([]EmbeddingResult, error)
}
