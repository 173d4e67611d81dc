package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/core/llm/llmtest"
)

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("chunk %d", i)
	}
	return out
}

func newBatcher(t *testing.T, p core.EmbeddingProvider, opts ...BatcherOption) *Batcher {
	t.Helper()
	b, err := NewBatcher(p, 3, opts...)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestEmbedAllBatchesAndAligns(t *testing.T) {
	fake := llmtest.New(8)
	b := newBatcher(t, fake, WithDimension(8))
	in := texts(250)

	out, err := b.EmbedAll(context.Background(), in)

	require.NoError(t, err)
	require.Len(t, out, 250)
	for i, r := range out {
		emb, ok := r.(core.Embedded)
		require.True(t, ok, "position %d: %T", i, r)
		assert.Equal(t, llmtest.Vector(in[i], 8), emb.Vector)
	}

	sizes := []int{}
	for _, c := range fake.Calls() {
		sizes = append(sizes, len(c))
	}
	slices.Sort(sizes)
	assert.Equal(t, []int{50, 100, 100}, sizes)
}

func TestEmbedAllFailedBatchMarksOnlyItsPositions(t *testing.T) {
	fake := llmtest.New(4)
	fake.FailWhen = func(batch []string) error {
		if slices.Contains(batch, "chunk 150") {
			return errors.New("503 service unavailable")
		}
		return nil
	}
	b := newBatcher(t, fake)

	out, err := b.EmbedAll(context.Background(), texts(250))

	require.NoError(t, err, "transient batch failures are not fatal")
	for i, r := range out {
		if i >= 100 && i < 200 {
			f, ok := r.(core.EmbeddingFailed)
			require.True(t, ok, "position %d should fail", i)
			assert.Contains(t, f.Reason, "503")
			continue
		}
		_, ok := r.(core.Embedded)
		assert.True(t, ok, "position %d should embed", i)
	}
}

type fixedProvider struct {
	vecs [][]float32
	err  error
}

func (f fixedProvider) ModelName() string { return "fixed" }
func (f fixedProvider) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return f.vecs, f.err
}

func TestEmbedAllLengthMismatchFailsBatch(t *testing.T) {
	b := newBatcher(t, fixedProvider{vecs: [][]float32{{1, 2}}})

	out, err := b.EmbedAll(context.Background(), texts(3))

	require.NoError(t, err)
	for _, r := range out {
		f, ok := r.(core.EmbeddingFailed)
		require.True(t, ok)
		assert.Contains(t, f.Reason, "1 vectors for 3 texts")
	}
}

func TestEmbedAllWrongDimensionFailsPosition(t *testing.T) {
	b := newBatcher(t, fixedProvider{vecs: [][]float32{{1, 2, 3}, {1, 2}}}, WithDimension(3))

	out, err := b.EmbedAll(context.Background(), texts(2))

	require.NoError(t, err)
	assert.Equal(t, core.Embedded{Vector: []float32{1, 2, 3}}, out[0])
	f, ok := out[1].(core.EmbeddingFailed)
	require.True(t, ok)
	assert.Contains(t, f.Reason, "dimension 2")
}

func TestEmbedAllUnauthenticatedIsFatal(t *testing.T) {
	b := newBatcher(t, fixedProvider{err: fmt.Errorf("embed: %w", core.ErrUnauthenticated)})

	out, err := b.EmbedAll(context.Background(), texts(5))

	require.ErrorIs(t, err, core.ErrUnauthenticated)
	require.Len(t, out, 5)
	for _, r := range out {
		assert.IsType(t, core.EmbeddingFailed{}, r)
	}
}

func TestEmbedAllCancelledContext(t *testing.T) {
	b := newBatcher(t, llmtest.New(4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := b.EmbedAll(ctx, texts(3))

	require.ErrorIs(t, err, context.Canceled)
	for _, r := range out {
		assert.IsType(t, core.EmbeddingFailed{}, r)
	}
}

type slowProvider struct{}

func (slowProvider) ModelName() string { return "slow" }
func (slowProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestEmbedAllBatchTimeout(t *testing.T) {
	b := newBatcher(t, slowProvider{}, WithBatchTimeout(20*time.Millisecond))

	out, err := b.EmbedAll(context.Background(), texts(2))

	require.NoError(t, err, "a batch timeout is a per-batch failure")
	f, ok := out[0].(core.EmbeddingFailed)
	require.True(t, ok)
	assert.Contains(t, f.Reason, "deadline exceeded")
}

func TestEmbedAllEmpty(t *testing.T) {
	fake := llmtest.New(4)
	b := newBatcher(t, fake)

	out, err := b.EmbedAll(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, fake.Calls())
}

func TestEmbedAllRateLimited(t *testing.T) {
	fake := llmtest.New(2)
	b := newBatcher(t, fake, WithBatchSize(1), WithRateLimit(1000))

	out, err := b.EmbedAll(context.Background(), texts(5))

	require.NoError(t, err)
	assert.Len(t, out, 5)
	assert.Len(t, fake.Calls(), 5)
}

func TestEmbedQuery(t *testing.T) {
	b := newBatcher(t, llmtest.New(4))
	vec, err := b.EmbedQuery(context.Background(), "how do I restart the api")
	require.NoError(t, err)
	assert.Equal(t, llmtest.Vector("how do I restart the api", 4), vec)

	failing := newBatcher(t, fixedProvider{err: errors.New("boom")})
	_, err = failing.EmbedQuery(context.Background(), "q")
	assert.ErrorContains(t, err, "boom")
}

func TestNewBatcherRequiresProvider(t *testing.T) {
	_, err := NewBatcher(nil, 1)
	assert.ErrorIs(t, err, core.ErrEmbedderRequired)
}
