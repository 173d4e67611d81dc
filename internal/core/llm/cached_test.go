package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/markdave123-py/ksync/internal/config"
	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/core/llm/llmtest"
)

func TestCachedEmbedderServesRepeats(t *testing.T) {
	fake := llmtest.New(4)
	c := NewCachedEmbedder(fake, 10)

	first, err := c.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	second, err := c.EmbedTexts(context.Background(), []string{"b", "c", "a"})
	require.NoError(t, err)

	assert.Equal(t, first[0], second[2])
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, llmtest.Vector("c", 4), second[1])

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"c"}, calls[1], "only the miss is sent")
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "fake-embedding", c.ModelName())
}

func TestCachedEmbedderPropagatesErrors(t *testing.T) {
	fake := llmtest.New(4)
	fake.FailWhen = func([]string) error { return errors.New("quota") }
	c := NewCachedEmbedder(fake, 0)

	_, err := c.EmbedTexts(context.Background(), []string{"a"})

	assert.ErrorContains(t, err, "quota")
	assert.Equal(t, 0, c.Len())
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, isAuthError(errors.New("API returned unexpected status code: 401: invalid key")))
	assert.True(t, isAuthError(errors.New("API returned unexpected status code: 403")))
	assert.True(t, isAuthError(errors.New("Incorrect API key provided")))
	assert.False(t, isAuthError(errors.New("API returned unexpected status code: 429: rate limited")))
}

func TestClassifyGeminiError(t *testing.T) {
	auth := classifyGeminiError(fmt.Errorf("rpc: %w", &googleapi.Error{Code: http.StatusForbidden}))
	assert.ErrorIs(t, auth, core.ErrUnauthenticated)

	other := classifyGeminiError(&googleapi.Error{Code: http.StatusTooManyRequests})
	assert.NotErrorIs(t, other, core.ErrUnauthenticated)
}

func TestNewEmbeddingProvider(t *testing.T) {
	cfg := &config.Config{
		EmbedProvider:   config.ProviderAzure,
		AzureAPIKey:     "key",
		AzureEndpoint:   "https://example.openai.azure.com",
		AzureAPIVersion: "2024-02-01",
		EmbedModel:      "text-embedding-3-large",
		EmbedBatchSize:  100,
	}
	p, closer, err := NewEmbeddingProvider(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, closer)
	assert.IsType(t, &CachedEmbedder{}, p)
	assert.Equal(t, "text-embedding-3-large", p.ModelName())
	assert.NoError(t, closer.Close())

	_, _, err = NewEmbeddingProvider(context.Background(), &config.Config{EmbedProvider: config.ProviderGemini}, nil)
	assert.ErrorContains(t, err, "api key is empty")

	_, _, err = NewEmbeddingProvider(context.Background(), &config.Config{EmbedProvider: config.ProviderAzure, AzureAPIKey: "k"}, nil)
	assert.ErrorContains(t, err, "endpoint is empty")

	_, _, err = NewEmbeddingProvider(context.Background(), &config.Config{EmbedProvider: "cohere"}, nil)
	assert.ErrorContains(t, err, "unsupported")
}
