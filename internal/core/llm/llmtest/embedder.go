// Package llmtest provides a deterministic embedding provider for tests.
package llmtest

import (
	"context"
	"hash/fnv"
	"sync"
)

// Embedder produces stable vectors derived from the text. FailWhen, if set,
// is consulted per call and its error returned instead of vectors.
type Embedder struct {
	Dim      int
	Model    string
	FailWhen func(texts []string) error

	mu    sync.Mutex
	calls [][]string
}

func New(dim int) *Embedder {
	return &Embedder{Dim: dim, Model: "fake-embedding"}
}

func (e *Embedder) ModelName() string { return e.Model }

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.FailWhen != nil {
		if err := e.FailWhen(texts); err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, e.Dim)
	}
	return out, nil
}

// Calls returns a copy of every batch received so far.
func (e *Embedder) Calls() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.calls...)
}

// Vector is the deterministic embedding used for text.
func Vector(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	v := make([]float32, dim)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(seed>>40) / float32(1<<24)
	}
	return v
}
