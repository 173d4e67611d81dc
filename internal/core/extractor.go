package core

import (
	"context"
)

// DocumentExtractor turns raw file bytes into the text that is hashed,
// chunked and stored. The path's extension selects the strategy.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string, data []byte) (string, error)
}
