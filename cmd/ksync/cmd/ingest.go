package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ksync/internal/app"
	"github.com/markdave123-py/ksync/internal/core/ingestion_engine"
	"github.com/markdave123-py/ksync/internal/core/sources"
	"github.com/markdave123-py/ksync/internal/services"
)

type ingestOptions struct {
	files   string
	pattern string
	root    string
	s3URI   string
	watch   string
	format  string
}

func newIngestCmd(g *globalOptions) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest files into the knowledge base",
		Long: `Ingest files into the knowledge base. Unchanged files are skipped.

Inputs (pick one):
  --files LIST        newline-separated list of paths
  --pattern GLOB      doublestar glob under --root, e.g. "docs/**/*.md"
  --s3 s3://b/prefix  objects under a prefix, filtered by --pattern

With --watch DIR the command keeps running and re-ingests files under DIR
as they change, filtered by --pattern.

Examples:
  ksync ingest --files changed.txt
  ksync ingest --pattern "**/*.{md,go,yaml}" --root .
  ksync ingest --s3 s3://kb-artifacts/docs --pattern "**/*.pdf"
  ksync ingest --watch ./docs --pattern "**/*.md"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}
			a, logger, err := openApp(cmd.Context(), g, app.Options{Embeddings: true})
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			if opts.watch != "" {
				return runWatch(cmd.Context(), a, logger, opts)
			}
			return runIngest(cmd.Context(), cmd.OutOrStdout(), a.Ingest, opts)
		},
	}

	cmd.Flags().StringVar(&opts.files, "files", "", "File containing the paths to ingest, one per line")
	cmd.Flags().StringVarP(&opts.pattern, "pattern", "p", "", "Glob pattern (supports **)")
	cmd.Flags().StringVar(&opts.root, "root", ".", "Root directory for --pattern")
	cmd.Flags().StringVar(&opts.s3URI, "s3", "", "S3 prefix to ingest, as s3://bucket/prefix")
	cmd.Flags().StringVar(&opts.watch, "watch", "", "Watch DIR and re-ingest changed files")
	cmd.Flags().StringVarP(&opts.format, "output", "o", formatText, "Output format: text, json")
	cmd.MarkFlagsMutuallyExclusive("files", "s3", "watch")

	return cmd
}

func runIngest(ctx context.Context, w io.Writer, svc *services.IngestService, opts ingestOptions) error {
	summary, err := svc.Run(ctx, services.SourceSpec{
		ListFile: opts.files,
		Pattern:  opts.pattern,
		Root:     opts.root,
		S3URI:    opts.s3URI,
	})
	if summary == nil {
		return err
	}

	if opts.format == formatJSON {
		if werr := writeJSON(w, summary); werr != nil {
			return werr
		}
	} else {
		writeSummary(w, summary)
	}

	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return errReported
	}
	return nil
}

func runWatch(ctx context.Context, a *app.App, logger *slog.Logger, opts ingestOptions) error {
	lock, err := ingestion_engine.AcquireRunLock(a.Config.IngestLockFile)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	m, err := sources.NewMatcher(opts.watch, opts.pattern)
	if err != nil {
		return err
	}

	a.Ingestor.Start(ctx, a.Config.IngestWorkers)
	w := ingestion_engine.NewWatcher(opts.watch, m.Match, a.Config.WatchDebounce, a.Ingestor.Enqueue, logger)
	return w.Run(ctx)
}

func writeSummary(w io.Writer, s *ingestion_engine.RunSummary) {
	for _, f := range s.Files {
		switch f.State {
		case ingestion_engine.StateSkipped:
			fmt.Fprintf(w, "  skip     %s\n", f.Path)
		case ingestion_engine.StatePersisted:
			fmt.Fprintf(w, "  synced   %s (%d chunks)\n", f.Path, f.Chunks)
		case ingestion_engine.StatePartial:
			fmt.Fprintf(w, "  partial  %s (%d/%d chunks): %s\n", f.Path, f.Embedded, f.Chunks, f.Error)
		default:
			fmt.Fprintf(w, "  failed   %s: %s\n", f.Path, f.Error)
		}
	}
	fmt.Fprintf(w, "\n%d files: %d synced, %d partial, %d skipped, %d failed, %d not run (%s)\n",
		s.Total, s.Persisted, s.Partial, s.Skipped, s.Failed, s.NotRun, s.Duration.Round(time.Millisecond))
}
