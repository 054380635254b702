package cmd

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/curia-rag/curia/internal/index"
	"github.com/curia-rag/curia/internal/output"
	"github.com/curia-rag/curia/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var (
		debounce time.Duration
		poll     bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index up to date as documents change",
		Long: `Index the data directory, then watch it and rebuild incrementally
whenever documents are added or modified. Changes that arrive while a
build is running are folded into one follow-up build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := mustApp(cmd)
			if err != nil {
				return err
			}
			ctx, stop := notifyContext(cmd.Context())
			defer stop()

			s, err := a.openStack(ctx, stackOptions{})
			if err != nil {
				return err
			}
			defer s.Close(a.logger)

			out := output.New(cmd.OutOrStdout())
			refresher := index.NewRefresher(s.manager, a.buildOptions())
			report := func(res *index.BuildResult) {
				if res.Reused {
					out.Status("·", "Index up to date")
					return
				}
				out.Successf("Indexed %d document(s), %d chunk(s) in %s",
					len(res.Delta)-len(res.Skipped), len(res.Chunks), res.Duration.Round(time.Millisecond))
			}

			opts := watcher.Options{
				DebounceWindow: debounce,
				ForcePolling:   poll,
				Filter:         s.extractor.Supports,
				Logger:         a.logger,
			}
			out.Statusf("👀", "Watching %s (Ctrl+C to stop)", a.cfg.Data.DataPath)
			return watchAndRefresh(ctx, a.logger, a.cfg.Data.DataPath, opts, refresher, report)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultOptions().DebounceWindow, "Quiet period before a batch of changes triggers a build")
	cmd.Flags().BoolVar(&poll, "poll", false, "Poll the directory instead of using file system notifications")

	return cmd
}

// watchAndRefresh builds once, then rebuilds on every batch of changes until
// ctx is cancelled. A fatal build error stops the loop.
func watchAndRefresh(
	ctx context.Context,
	logger *slog.Logger,
	dir string,
	opts watcher.Options,
	refresher *index.Refresher,
	report func(*index.BuildResult),
) error {
	res, err := refresher.Refresh(ctx)
	if err != nil {
		return err
	}
	report(res)

	w, err := watcher.New(dir, opts)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Start(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case err, ok := <-w.Errors():
				if !ok {
					return nil
				}
				logger.Warn("watcher_error", slog.String("error", err.Error()))
			}
		}
	})
	g.Go(func() error {
		defer func() { _ = w.Stop() }()
		return watcher.Drive(gctx, w.Events(), func(ctx context.Context, batch []watcher.FileEvent) error {
			logger.Info("watch_changes_detected", slog.Int("events", len(batch)))
			res, err := refresher.Refresh(ctx)
			if err != nil {
				return err
			}
			report(res)
			return nil
		}, logger)
	})

	err = g.Wait()
	logger.Info("watch_stopped", slog.Int64("builds", refresher.Runs()))
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
