package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tasksync/internal/cli"
	"tasksync/internal/utils"
	"tasksync/internal/watch"
)

func newWatchCmd(app *App) *cobra.Command {
	var (
		snapshotPath string
		debounce     time.Duration
		noInitial    bool
		plain        bool
	)
	flags := &incrementalFlags{}

	cmd := &cobra.Command{
		Use:   "watch <provider>",
		Short: "Run an incremental sync every time a snapshot file changes",
		Long: `Watch a snapshot file and run an incremental sync after each change.
Syncs never overlap. On a terminal a live status view is shown; press q to quit.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: app.providerCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			opts := flags.options(cmd, app.config.Provider(provider).DeleteOrphans)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sync := func(ctx context.Context, path string) (*cli.SyncResultMsg, error) {
				snap, err := loadSnapshot(path)
				if err != nil {
					return nil, err
				}
				summary, err := app.runIncremental(provider, snap, opts, flags.saveToken)
				if err != nil {
					return nil, err
				}
				return &cli.SyncResultMsg{At: time.Now(), Summary: summary}, nil
			}

			watchOpts := watch.Options{Debounce: debounce, Initial: !noInitial}

			if plain || app.output != utils.FormatText || !term.IsTerminal(int(os.Stdout.Fd())) {
				return runPlainWatch(ctx, app, provider, snapshotPath, sync, watchOpts)
			}
			return runWatchView(ctx, provider, snapshotPath, sync, watchOpts)
		},
	}

	cmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "Snapshot file to watch (.json, .yaml or .yml)")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a change triggers a sync")
	cmd.Flags().BoolVar(&noInitial, "no-initial", false, "Do not sync once at startup")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print one summary per sync instead of the live view")
	_ = cmd.MarkFlagRequired("snapshot")
	flags.register(cmd)
	return cmd
}

type watchSyncFunc func(ctx context.Context, path string) (*cli.SyncResultMsg, error)

// runPlainWatch prints each result as it happens until ctx ends
func runPlainWatch(ctx context.Context, app *App, provider, path string, sync watchSyncFunc, opts watch.Options) error {
	w, err := watch.New(path, func(ctx context.Context, p string) error {
		result, err := sync(ctx, p)
		if err != nil {
			return err
		}
		return app.render(result.Summary, func(d *cli.Display) {
			d.SyncSummary(provider, "Incremental", result.Summary)
		})
	}, opts)
	if err != nil {
		return err
	}
	utils.Infof("Watching %s for %s (Ctrl+C to stop)", w.Path(), provider)
	return w.Run(ctx)
}

// runWatchView drives the live status view. Quitting the view stops the watcher.
func runWatchView(ctx context.Context, provider, path string, sync watchSyncFunc, opts watch.Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := cli.NewWatchView(ctx, provider, path)

	opts.OnError = func(err error) {
		view.Send(cli.SyncResultMsg{At: time.Now(), Err: err})
	}
	w, err := watch.New(path, func(ctx context.Context, p string) error {
		result, err := sync(ctx, p)
		if err != nil {
			return err
		}
		view.Send(*result)
		return nil
	}, opts)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		err := w.Run(ctx)
		if err != nil {
			cancel()
		}
		done <- err
	}()

	viewErr := view.Run()
	cancel()
	if err := <-done; err != nil {
		return err
	}
	return viewErr
}
