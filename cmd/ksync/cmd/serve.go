package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/ksync/internal/app"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the knowledge HTTP API",
		Long: `Serve health, verify, search and ingest endpoints under /api/knowledge.
Paths posted to /api/knowledge/ingest are processed by background workers
(INGEST_WORKERS); they must be files under INGEST_ROOT. Routes require a
bearer token when JWT_SECRET is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, logger, err := openApp(ctx, g, app.Options{Embeddings: true})
			if err != nil {
				return err
			}
			defer closeApp(a, logger)
			if port != "" {
				a.Config.Port = port
			}

			workers, stop := context.WithCancel(ctx)
			defer stop()
			a.Ingestor.Start(workers, a.Config.IngestWorkers)

			srv := app.NewServer(a.Config, a.Handler(), logger)
			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	return cmd
}
