package core

import "errors"

var (
	// ErrUnauthenticated is returned when the embedding provider rejects the
	// configured credentials. It aborts an ingestion run.
	ErrUnauthenticated = errors.New("embedding provider rejected credentials")

	// ErrDocumentRequired is returned when a nil document is persisted.
	ErrDocumentRequired = errors.New("document required")

	// ErrEmptyQuery is returned when a search has no query text.
	ErrEmptyQuery = errors.New("query is required")

	// ErrStoreRequired is returned when a constructor is given no store.
	ErrStoreRequired = errors.New("store required")

	// ErrEmbedderRequired is returned when a constructor is given no embedder.
	ErrEmbedderRequired = errors.New("embedder required")
)
