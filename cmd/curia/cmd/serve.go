package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/curia-rag/curia/internal/index"
	"github.com/curia-rag/curia/internal/mcp"
	"github.com/curia-rag/curia/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index to AI clients over MCP",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
retrieve, query and index_status tools, and every indexed document as a
resource.

With --watch the data directory is indexed in the background and kept up
to date while the server runs.

Nothing but protocol messages is written to stdout; logs go to the log file.`,
		Example: `  # Register with an MCP client
  curia serve --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := mustApp(cmd)
			if err != nil {
				return err
			}
			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			s, err := a.openStack(ctx, stackOptions{LLM: true})
			if err != nil {
				return err
			}
			defer s.Close(a.logger)

			return runServe(ctx, a, s, transport, watch)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")
	cmd.Flags().BoolVar(&watch, "watch", false, "Index in the background and rebuild when documents change")

	return cmd
}

func runServe(ctx context.Context, a *app, s *stack, transport string, watch bool) error {
	server, err := mcp.NewServer(s.manager, a.logger)
	if err != nil {
		return err
	}

	lib := mcp.Library{
		DataDir:    a.cfg.Data.DataPath,
		LedgerPath: a.cfg.LedgerPath(),
		Extractor:  s.extractor,
	}
	registerDocuments := func() {
		if _, err := server.RegisterDocuments(ctx, lib); err != nil {
			a.logger.Warn("mcp_resources_failed", slog.String("error", err.Error()))
		}
	}
	registerDocuments()

	if !watch {
		return server.Serve(ctx, transport)
	}

	refresher := index.NewRefresher(s.manager, a.buildOptions())
	server.SetBusy(refresher.Busy)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The client closing stdin ends the session and the watcher with it.
		defer cancel()
		return server.Serve(gctx, transport)
	})
	g.Go(func() error {
		opts := watcher.Options{Filter: s.extractor.Supports, Logger: a.logger}
		err := watchAndRefresh(gctx, a.logger, a.cfg.Data.DataPath, opts, refresher, func(res *index.BuildResult) {
			if !res.Reused {
				registerDocuments()
			}
		})
		if err != nil {
			// Keep serving the existing index.
			a.logger.Error("background_index_failed", slog.String("error", err.Error()))
		}
		return nil
	})
	return g.Wait()
}
