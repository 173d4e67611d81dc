package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/markdave123-py/ksync/internal/core"
)

// OpenAIEmbedder embeds through an OpenAI-compatible or Azure OpenAI
// deployment using langchaingo.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

// OpenAIOptions configures NewOpenAIEmbedder. For Azure, Model is the
// deployment name and APIVersion is required.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Azure      bool
	APIVersion string
	BatchSize  int
}

func NewOpenAIEmbedder(opts OpenAIOptions, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai api key is empty")
	}
	if opts.Azure && opts.BaseURL == "" {
		return nil, errors.New("azure openai endpoint is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientOpts := []openai.Option{
		openai.WithToken(opts.APIKey),
		openai.WithEmbeddingModel(opts.Model),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.BaseURL))
	}
	if opts.Azure {
		clientOpts = append(clientOpts,
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithAPIVersion(opts.APIVersion),
		)
	}

	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	embedOpts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if opts.BatchSize > 0 {
		embedOpts = append(embedOpts, embeddings.WithBatchSize(opts.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, embedOpts...)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &OpenAIEmbedder{
		embedder: embedder,
		model:    opts.Model,
		logger:   logger.With("component", "openai-embedder"),
	}, nil
}

func (e *OpenAIEmbedder) ModelName() string { return e.model }

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		if isAuthError(err) {
			return nil, fmt.Errorf("openai embed: %w: %v", core.ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	return vecs, nil
}

// isAuthError recognises the status lines langchaingo's client puts in its
// errors for rejected credentials.
func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"status code: 401", "status code: 403", "unauthorized", "invalid api key", "incorrect api key"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)
