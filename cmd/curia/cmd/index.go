package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/curia-rag/curia/internal/errors"
	"github.com/curia-rag/curia/internal/index"
	"github.com/curia-rag/curia/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		restart   bool
		skipEmpty bool
		plain     bool
		retries   int
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index new and modified documents",
		Long: `Index the documents in the data directory.

Each PDF or text file is extracted, split into overlapping word windows,
embedded with the configured Ollama model and stored in the vector store.
Files whose modification time matches the processed-files ledger are
skipped; when nothing changed the existing index is reused as-is.

Use --restart to ignore the ledger and reprocess every document.`,
		Example: `  # Index ./data/raw into ./data/databases
  curia index

  # Reprocess everything, skipping scanned PDFs without a text layer
  curia index --restart --skip-empty`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := mustApp(cmd)
			if err != nil {
				return err
			}
			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			opts := a.buildOptions()
			opts.Restart = restart
			opts.SkipEmpty = skipEmpty
			return runIndex(ctx, cmd, a, opts, plain, retries)
		},
	}

	cmd.Flags().BoolVar(&restart, "restart", false, "Ignore the ledger and reprocess every document")
	cmd.Flags().BoolVar(&skipEmpty, "skip-empty", false, "Skip documents without extractable text instead of failing")
	cmd.Flags().BoolVar(&plain, "plain", false, "Disable the TUI, print one line per step")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retry the build this many times on provider timeouts or a busy lock")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, a *app, opts index.BuildOptions, plain bool, retries int) error {
	renderer := ui.NewRenderer(ui.Config{
		Output:     cmd.OutOrStdout(),
		ForcePlain: plain,
		NoColor:    ui.DetectNoColor(),
		DataDir:    opts.DataDir,
	})

	s, err := a.openStack(ctx, stackOptions{Progress: ui.ProgressFunc(renderer)})
	if err != nil {
		return err
	}
	defer s.Close(a.logger)

	if err := renderer.Start(ctx); err != nil {
		return errors.InternalError("cannot start progress display", err)
	}

	retryCfg := errors.DefaultRetryConfig()
	retryCfg.MaxRetries = retries
	retryCfg.InitialDelay = 2 * time.Second
	retryCfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		a.logger.Warn("build_retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))
	}
	res, err := errors.RetryWithResult(ctx, retryCfg, func() (*index.BuildResult, error) {
		return s.manager.Build(ctx, opts)
	})
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		_ = renderer.Stop()
		return err
	}

	for _, name := range res.Skipped {
		renderer.AddError(ui.ErrorEvent{File: name, Err: fmt.Errorf("no extractable text"), IsWarn: true})
	}
	renderer.Complete(ui.StatsFromResult(res, s.embedder.ModelName()))
	return renderer.Stop()
}
