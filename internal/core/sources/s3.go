package sources

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/markdave123-py/ksync/internal/core"
)

// S3Source lists and reads objects under a bucket prefix. Object keys are
// used as file paths.
type S3Source struct {
	client  core.ObjectClient
	bucket  string
	prefix  string
	pattern string
}

var _ core.FileSource = (*S3Source)(nil)

// NewS3Source filters keys by pattern when it is non-empty.
func NewS3Source(client core.ObjectClient, bucket, prefix, pattern string) (*S3Source, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 source needs an object client")
	}
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix, pattern: pattern}, nil
}

func (s *S3Source) List(ctx context.Context) ([]string, error) {
	keys, err := s.client.ListKeys(ctx, s.bucket, s.prefix)
	if err != nil {
		return nil, err
	}
	if s.pattern == "" {
		return keys, nil
	}
	out := keys[:0]
	for _, k := range keys {
		if ok, _ := doublestar.Match(s.pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *S3Source) Read(ctx context.Context, key string) ([]byte, error) {
	return s.client.GetFile(ctx, s.bucket, key)
}
