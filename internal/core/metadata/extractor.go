// Package metadata derives category, tags, language and VCS provenance for
// ingested files, and scores chunk quality.
package metadata

import (
	"log/slog"
)

// FileMetadata is shared by every chunk of a file.
type FileMetadata struct {
	SourceType string
	SourceURL  string
	Repository string
	Category   string
	Tags       []string
	Language   string
	Version    string
	CommitSHA  string
	Branch     string
	Author     string
}

// Options carries the pipeline-wide defaults.
type Options struct {
	SourceType string
	Repository string
	Version    string
}

type Extractor struct {
	opts     Options
	resolver ProvenanceResolver
	logger   *slog.Logger
}

// NewExtractor builds an extractor. resolver may be nil, in which case
// provenance fields stay empty.
func NewExtractor(opts Options, resolver ProvenanceResolver, logger *slog.Logger) *Extractor {
	if opts.SourceType == "" {
		opts.SourceType = "github"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{opts: opts, resolver: resolver, logger: logger.With("component", "metadata")}
}

// Extract never fails; provenance lookup problems are logged and leave the
// provenance fields empty.
func (e *Extractor) Extract(path string) FileMetadata {
	md := FileMetadata{
		SourceType: e.opts.SourceType,
		Repository: e.opts.Repository,
		Category:   Category(path),
		Tags:       Tags(path),
		Language:   Language(path),
		Version:    e.opts.Version,
	}
	if e.resolver == nil {
		return md
	}

	p, err := e.resolver.Resolve(path)
	if err != nil {
		if isNotRepository(err) {
			e.logger.Debug("no git provenance", "path", path, "err", err)
		} else {
			e.logger.Warn("git provenance lookup failed", "path", path, "err", err)
		}
		return md
	}
	md.CommitSHA = p.CommitSHA
	md.Author = p.Author
	md.Branch = p.Branch
	md.SourceURL = p.SourceURL
	if md.Repository == "" {
		md.Repository = p.Repository
	}
	return md
}
