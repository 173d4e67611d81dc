package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/markdave123-py/ksync/internal/config"
	"github.com/markdave123-py/ksync/internal/core"
)

// NewEmbeddingProvider builds the provider selected by EMBED_PROVIDER,
// wrapped in an LRU cache. The returned closer is never nil.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (core.EmbeddingProvider, io.Closer, error) {
	var (
		p      core.EmbeddingProvider
		closer io.Closer = nopCloser{}
	)
	switch cfg.EmbedProvider {
	case config.ProviderGemini:
		g, err := NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't initialize the gemini embedder: %w", err)
		}
		p, closer = g, g
	case config.ProviderAzure, config.ProviderOpenAI:
		opts := OpenAIOptions{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.EmbedModel,
			BatchSize: cfg.EmbedBatchSize,
		}
		if cfg.EmbedProvider == config.ProviderAzure {
			opts.APIKey = cfg.AzureAPIKey
			opts.BaseURL = cfg.AzureEndpoint
			opts.Azure = true
			opts.APIVersion = cfg.AzureAPIVersion
		}
		o, err := NewOpenAIEmbedder(opts, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't initialize the %s embedder: %w", cfg.EmbedProvider, err)
		}
		p = o
	default:
		return nil, nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbedProvider)
	}
	return NewCachedEmbedder(p, cfg.EmbedCacheSize), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
