package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/markdave123-py/ksync/internal/core"
	"github.com/markdave123-py/ksync/internal/core/verifier"
)

// VerifyService runs the coverage audit and optionally archives the JSON
// report in object storage.
type VerifyService struct {
	verifier *verifier.Verifier
	objects  core.ObjectClient
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// NewVerifyService archives reports only when objects is non-nil and bucket
// is set.
func NewVerifyService(v *verifier.Verifier, objects core.ObjectClient, bucket, prefix string, logger *slog.Logger) *VerifyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerifyService{verifier: v, objects: objects, bucket: bucket, prefix: prefix, logger: logger.With("component", "verify")}
}

// Verify returns the report and, when archived, its URL. An upload failure
// is returned alongside the report.
func (s *VerifyService) Verify(ctx context.Context) (*verifier.Report, string, error) {
	rep := s.verifier.Verify(ctx)
	if s.objects == nil || s.bucket == "" {
		return rep, "", nil
	}

	body, err := rep.JSON()
	if err != nil {
		return rep, "", fmt.Errorf("encode report: %w", err)
	}
	key := ReportKey(s.prefix, rep.GeneratedAt)
	url, err := s.objects.UploadFile(ctx, s.bucket, key, body, "application/json")
	if err != nil {
		return rep, "", fmt.Errorf("archive report: %w", err)
	}
	s.logger.Info("report archived", "url", url)
	return rep, url, nil
}

// ReportKey is the object key for a report generated at t.
func ReportKey(prefix string, t time.Time) string {
	return path.Join(prefix, fmt.Sprintf("verify-%s.json", t.UTC().Format("20060102T150405Z")))
}
