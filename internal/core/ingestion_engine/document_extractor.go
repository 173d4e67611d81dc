package ingestion_engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/ksync/internal/core"
)

// ErrBinaryContent is returned for files that are neither a supported rich
// format nor valid UTF-8 text.
var ErrBinaryContent = errors.New("binary content")

// richFormats are converted with docconv; everything else is read as text.
var richFormats = map[string]bool{
	".pdf":   true,
	".doc":   true,
	".docx":  true,
	".odt":   true,
	".rtf":   true,
	".pages": true,
	".html":  true,
	".htm":   true,
}

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

func (e *DocconvExtractor) Extract(ctx context.Context, path string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !richFormats[ext] {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s: %w", path, ErrBinaryContent)
		}
		return string(data), nil
	}

	res, err := docconv.Convert(bytes.NewReader(data), docconv.MimeTypeByExtension(path), e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return res.Body, nil
}
