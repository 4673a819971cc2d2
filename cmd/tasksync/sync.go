package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tasksync/backend"
	"tasksync/backend/reconcile"
	"tasksync/internal/cli"
	"tasksync/internal/utils"
)

// incrementalFlags are shared by "sync incremental" and "watch"
type incrementalFlags struct {
	token         string
	deleteOrphans bool
	saveToken     bool
}

func (f *incrementalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.token, "token", "", "Sync token of this batch; '*' marks a complete snapshot and enables orphan deletion")
	cmd.Flags().BoolVar(&f.deleteOrphans, "delete-orphans", false, "Delete local tasks missing from the snapshot (completed tasks are kept)")
	cmd.Flags().BoolVar(&f.saveToken, "save-token", false, "Store the batch token as the provider's cursor after a successful sync")
}

// options resolves the engine options for one incremental sync. An explicit
// --delete-orphans wins, a '*' token forces a full comparison, and otherwise
// the provider's configured default applies.
func (f *incrementalFlags) options(cmd *cobra.Command, defaultDeleteOrphans bool) reconcile.IncrementalOptions {
	opts := reconcile.IncrementalOptions{}
	if cmd.Flags().Changed("token") {
		opts.SyncToken = backend.StringPtr(f.token)
	}
	opts.DeleteOrphans = resolveDeleteOrphans(
		cmd.Flags().Changed("delete-orphans"), f.deleteOrphans, defaultDeleteOrphans, opts.SyncToken)
	return opts
}

func resolveDeleteOrphans(flagSet, flagValue, configured bool, token *string) bool {
	if flagSet {
		return flagValue
	}
	if token != nil && *token == reconcile.FullComparisonToken {
		return true
	}
	return configured
}

func newSyncCmd(app *App) *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile a provider snapshot with the local store",
	}
	syncCmd.AddCommand(newSyncFullCmd(app))
	syncCmd.AddCommand(newSyncIncrementalCmd(app))
	return syncCmd
}

func newSyncFullCmd(app *App) *cobra.Command {
	var snapshotPath string

	cmd := &cobra.Command{
		Use:   "full <provider>",
		Short: "Replace everything stored for a provider with a snapshot",
		Long: `Delete all tasks, projects and labels of the provider and insert the
snapshot in their place, inside a single transaction.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: app.providerCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			snap, err := loadSnapshot(snapshotPath)
			if err != nil {
				return err
			}

			var summary *backend.SyncSummary
			err = utils.LogOperationf("full sync of %s", func() error {
				summary, err = app.engine.FullReplaceSync(provider, snap.Tasks, snap.Projects, snap.Labels)
				return err
			}, provider)
			if err != nil {
				return app.explainError(err, provider)
			}
			return app.render(summary, func(d *cli.Display) {
				d.SyncSummary(provider, "Full", summary)
			})
		},
	}

	cmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "Snapshot file (.json, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("snapshot")
	return cmd
}

func newSyncIncrementalCmd(app *App) *cobra.Command {
	var snapshotPath string
	flags := &incrementalFlags{}

	cmd := &cobra.Command{
		Use:   "incremental <provider>",
		Short: "Merge a snapshot into the local store using the provider's policy",
		Long: `Insert new tasks and update existing ones according to the provider's
ownership policy:

  authoritative-remote (todoist, msToDo, unknown providers)
      remote values overwrite every synced field except local notes
  wrapper (obsidian)
      only provider metadata is refreshed; local edits are kept

Projects and labels are upserted. Local tasks missing from the snapshot are
deleted (completed tasks are always kept) when --delete-orphans is set or the
token is '*'. Otherwise the provider's delete_orphans config decides: on for
todoist and msToDo, off for obsidian, where local notes own task existence.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: app.providerCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			snap, err := loadSnapshot(snapshotPath)
			if err != nil {
				return err
			}

			opts := flags.options(cmd, app.config.Provider(provider).DeleteOrphans)
			summary, err := app.runIncremental(provider, snap, opts, flags.saveToken)
			if err != nil {
				return err
			}
			return app.render(summary, func(d *cli.Display) {
				d.SyncSummary(provider, "Incremental", summary)
			})
		},
	}

	cmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "Snapshot file (.json, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("snapshot")
	flags.register(cmd)
	return cmd
}

// runIncremental syncs snap and optionally stores the echoed token
func (a *App) runIncremental(provider string, snap *Snapshot, opts reconcile.IncrementalOptions, saveToken bool) (*backend.SyncSummary, error) {
	var summary *backend.SyncSummary
	err := utils.LogOperationf("incremental sync of %s", func() error {
		var err error
		summary, err = a.engine.IncrementalSync(provider, snap.Tasks, snap.Projects, snap.Labels, opts)
		return err
	}, provider)
	if err != nil {
		return nil, a.explainError(err, provider)
	}
	if saveToken && summary.NewSyncToken != nil {
		if err := a.engine.SetSyncToken(provider, *summary.NewSyncToken); err != nil {
			return nil, fmt.Errorf("sync succeeded but storing the token failed: %w", a.explainError(err, provider))
		}
	}
	return summary, nil
}
