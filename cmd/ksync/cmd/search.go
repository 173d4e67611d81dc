package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ksync/internal/app"
	"github.com/markdave123-py/ksync/internal/services"
)

type searcher interface {
	Search(ctx context.Context, req services.SearchRequest) (*services.SearchResponse, error)
}

type searchOptions struct {
	topK       int
	threshold  float64
	category   string
	sourceType string
	format     string
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Long: `Search the knowledge base by embedding similarity.

Examples:
  ksync search "how do I rotate the API key"
  ksync search "workflow error handling" --category guide -k 3
  ksync search "retry policy" --threshold -1 --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}
			a, logger, err := openApp(cmd.Context(), g, app.Options{Embeddings: true})
			if err != nil {
				return err
			}
			defer closeApp(a, logger)

			return runSearch(cmd.Context(), cmd.OutOrStdout(), a.Search, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", services.DefaultTopK, "Maximum number of results")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", services.DefaultThreshold, "Minimum similarity score; negative accepts all")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Filter by category")
	cmd.Flags().StringVar(&opts.sourceType, "source-type", "", "Filter by source type")
	cmd.Flags().StringVarP(&opts.format, "output", "o", formatText, "Output format: text, json")
	return cmd
}

func runSearch(ctx context.Context, w io.Writer, s searcher, query string, opts searchOptions) error {
	resp, err := s.Search(ctx, services.SearchRequest{
		Query:      query,
		TopK:       opts.topK,
		Threshold:  opts.threshold,
		Category:   opts.category,
		SourceType: opts.sourceType,
	})
	if err != nil {
		return err
	}
	if opts.format == formatJSON {
		return writeJSON(w, resp)
	}

	if resp.Returned == 0 {
		fmt.Fprintf(w, "No results for %q\n", resp.Query)
		return nil
	}
	fmt.Fprintf(w, "%d results for %q (%dms)\n\n", resp.Returned, resp.Query, resp.LatencyMs)
	for i, r := range resp.Results {
		c := r.Chunk
		fmt.Fprintf(w, "%d. %s [%s] score %.3f\n", i+1, c.FilePath, c.Category, r.Score)
		fmt.Fprintf(w, "   %s\n\n", preview(c.Content, 200))
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
