package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ksync/internal/app"
	"github.com/markdave123-py/ksync/internal/core/verifier"
)

type reportVerifier interface {
	Verify(ctx context.Context) (*verifier.Report, string, error)
}

func newVerifyCmd(g *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Audit the knowledge base and exit non-zero on any failed check",
		Long: `Audit the knowledge base: required extensions, tables and indexes,
document counts, embedding coverage, sync recency and failed or partial
syncs. The store is never modified.

When REPORT_BUCKET is set the JSON report is also archived to S3.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, logger, err := openApp(cmd.Context(), g, app.Options{})
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			return runVerify(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), a.Verify, format)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", formatText, "Output format: text, json")
	return cmd
}

func runVerify(ctx context.Context, out, errOut io.Writer, v reportVerifier, format string) error {
	rep, url, err := v.Verify(ctx)
	if err != nil {
		fmt.Fprintln(errOut, "warning:", err)
	}
	if rep == nil {
		return err
	}

	if format == formatJSON {
		raw, err := rep.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(raw))
	} else {
		fmt.Fprint(out, rep.Text())
		if url != "" {
			fmt.Fprintf(out, "report archived: %s\n", url)
		}
	}

	if !rep.Passed {
		return errReported
	}
	return nil
}
