package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/markdave123-py/ksync/internal/core"
)

// DefaultBatchSize is the number of texts sent per provider call.
const DefaultBatchSize = 100

// Batcher fans texts out to a provider in fixed-size batches. A failing batch
// marks only its own positions as failed; output stays aligned with input.
type Batcher struct {
	provider  core.EmbeddingProvider
	batchSize int
	dim       int
	timeout   time.Duration
	limiter   *rate.Limiter
	pool      *ants.Pool
	logger    *slog.Logger
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithBatchSize sets texts per provider call.
func WithBatchSize(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithDimension rejects vectors whose length differs from dim.
func WithDimension(dim int) BatcherOption {
	return func(b *Batcher) { b.dim = dim }
}

// WithBatchTimeout bounds each provider call.
func WithBatchTimeout(d time.Duration) BatcherOption {
	return func(b *Batcher) { b.timeout = d }
}

// WithRateLimit caps provider calls per second; rps <= 0 disables limiting.
func WithRateLimit(rps float64) BatcherOption {
	return func(b *Batcher) {
		if rps > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithBatcherLogger sets the logger.
func WithBatcherLogger(l *slog.Logger) BatcherOption {
	return func(b *Batcher) { b.logger = l }
}

// NewBatcher creates a batcher whose concurrent provider calls are bounded by
// a pool of the given size, shared by every caller of EmbedAll.
func NewBatcher(provider core.EmbeddingProvider, concurrency int, opts ...BatcherOption) (*Batcher, error) {
	if provider == nil {
		return nil, core.ErrEmbedderRequired
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	b := &Batcher{
		provider:  provider,
		batchSize: DefaultBatchSize,
		pool:      pool,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "embedder")
	return b, nil
}

// Close releases the worker pool.
func (b *Batcher) Close() {
	b.pool.Release()
}

// EmbedAll embeds texts and returns one result per input. The error is
// non-nil only for conditions that should stop the caller: rejected
// credentials or a cancelled context. Results are still fully populated.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) ([]core.EmbeddingResult, error) {
	out := make([]core.EmbeddingResult, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fatal error
	)
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		batch, dst := texts[start:end], out[start:end]

		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := b.embedBatch(ctx, batch, dst); errors.Is(err, core.ErrUnauthenticated) {
				mu.Lock()
				fatal = err
				mu.Unlock()
			}
		}
		if err := b.pool.Submit(task); err != nil {
			wg.Done()
			fail(dst, fmt.Sprintf("schedule batch: %v", err))
		}
	}
	wg.Wait()

	if fatal != nil {
		return out, fatal
	}
	return out, ctx.Err()
}

func (b *Batcher) embedBatch(ctx context.Context, texts []string, dst []core.EmbeddingResult) error {
	if err := ctx.Err(); err != nil {
		fail(dst, err.Error())
		return err
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			fail(dst, fmt.Sprintf("rate limit: %v", err))
			return err
		}
	}

	callCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	vecs, err := b.provider.EmbedTexts(callCtx, texts)
	if err != nil {
		b.logger.Warn("embedding batch failed", "size", len(texts), "err", err)
		fail(dst, err.Error())
		return err
	}
	if len(vecs) != len(texts) {
		b.logger.Warn("embedding batch length mismatch", "want", len(texts), "got", len(vecs))
		fail(dst, fmt.Sprintf("provider returned %d vectors for %d texts", len(vecs), len(texts)))
		return nil
	}
	for i, v := range vecs {
		if b.dim > 0 && len(v) != b.dim {
			dst[i] = core.EmbeddingFailed{Reason: fmt.Sprintf("vector has dimension %d, want %d", len(v), b.dim)}
			continue
		}
		dst[i] = core.Embedded{Vector: v}
	}
	return nil
}

func fail(dst []core.EmbeddingResult, reason string) {
	for i := range dst {
		dst[i] = core.EmbeddingFailed{Reason: reason}
	}
}

// EmbedQuery embeds a single text, returning an error instead of a marker.
func (b *Batcher) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	results, err := b.EmbedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	switch r := results[0].(type) {
	case core.Embedded:
		return r.Vector, nil
	case core.EmbeddingFailed:
		return nil, fmt.Errorf("embed query: %s", r.Reason)
	default:
		return nil, fmt.Errorf("embed query: unexpected result %T", r)
	}
}
