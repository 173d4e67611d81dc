package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ksync/internal/app"
	"github.com/markdave123-py/ksync/internal/services"
)

type prober interface {
	Probe(ctx context.Context, suite services.ProbeSuite) (*services.ProbeReport, error)
}

type probeOptions struct {
	suite     string
	threshold float64
	topK      int
	format    string
}

func newProbeCmd(g *globalOptions) *cobra.Command {
	var opts probeOptions

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Measure retrieval quality against a query suite",
		Long: `Run a suite of representative queries and report, per query, whether a
result cleared the score threshold. Exits non-zero when any query misses.

The suite is YAML:

  threshold: 0.7
  top_k: 3
  queries:
    - query: "How is drift detection configured?"
      category: documentation
      expect_path: docs/drift.md

Without --suite a built-in suite is used. Usage counters are not touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}
			suite := services.DefaultProbeSuite()
			if opts.suite != "" {
				var err error
				if suite, err = services.LoadProbeSuite(opts.suite); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("threshold") {
				suite.Threshold = opts.threshold
			}
			if cmd.Flags().Changed("top-k") {
				suite.TopK = opts.topK
			}

			a, logger, err := openApp(cmd.Context(), g, app.Options{Embeddings: true})
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			return runProbe(cmd.Context(), cmd.OutOrStdout(), a.Search, suite, opts.format)
		},
	}

	cmd.Flags().StringVar(&opts.suite, "suite", "", "YAML probe suite")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "Override the suite threshold")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Override the suite top_k")
	cmd.Flags().StringVarP(&opts.format, "output", "o", formatText, "Output format: text, json")
	return cmd
}

func runProbe(ctx context.Context, w io.Writer, p prober, suite services.ProbeSuite, format string) error {
	rep, err := p.Probe(ctx, suite)
	if err != nil && rep == nil {
		return err
	}

	if format == formatJSON {
		if werr := writeJSON(w, rep); werr != nil {
			return werr
		}
	} else {
		fmt.Fprintf(w, "Retrieval probe (threshold %.2f, top %d)\n\n", rep.Threshold, rep.TopK)
		for _, r := range rep.Results {
			mark := "ok  "
			if !r.Passed {
				mark = "miss"
			}
			label := r.Description
			if label == "" {
				label = r.Query
			}
			fmt.Fprintf(w, "[%s] %-40s best %.3f, %d/%d above threshold\n", mark, label, r.BestScore, r.Hits, r.Returned)
			switch {
			case r.Error != "":
				fmt.Fprintf(w, "       error: %s\n", r.Error)
			case r.ExpectPath != "" && !r.Found:
				fmt.Fprintf(w, "       expected %s in results\n", r.ExpectPath)
			}
		}
		fmt.Fprintf(w, "\n%d passed, %d missed\n", rep.Passed, rep.Failed)
	}

	if err != nil {
		return err
	}
	if rep.Failed > 0 {
		return errReported
	}
	return nil
}
