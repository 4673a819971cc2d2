package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tasksync/backend"
	"tasksync/internal/cli"
	"tasksync/internal/utils"
)

func newClearCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:               "clear <provider>",
		Short:             "Delete all tasks, projects and labels of a provider",
		Long:              `Delete all data of a provider. The provider row and its sync token are kept.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: app.providerCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			if !yes && app.output == utils.FormatText && term.IsTerminal(int(os.Stdin.Fd())) {
				ok, err := utils.Confirm(os.Stdin, cmd.OutOrStdout(), fmt.Sprintf("Delete all tasks, projects and labels of %s?", provider))
				if err != nil {
					return err
				}
				if !ok {
					app.display.Message("Nothing deleted")
					return nil
				}
			}

			deleted, err := app.engine.ClearProviderData(provider)
			if err != nil {
				return app.explainError(err, provider)
			}
			result := struct {
				Provider string `json:"provider"`
				Deleted  int    `json:"deleted"`
			}{provider, deleted}
			return app.render(result, func(d *cli.Display) {
				d.Cleared(provider, deleted)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newOutboxCmd(app *App) *cobra.Command {
	outboxCmd := &cobra.Command{
		Use:   "outbox",
		Short: "Manage completions waiting to be pushed to providers",
	}

	listCmd := &cobra.Command{
		Use:               "list <provider>",
		Short:             "List pending completions, oldest first",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: app.providerCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			completions, err := app.engine.ListPendingCompletions(provider)
			if err != nil {
				return app.explainError(err, provider)
			}
			return app.render(completions, func(d *cli.Display) {
				d.Completions(provider, completions)
			})
		},
	}

	var undo bool
	enqueueCmd := &cobra.Command{
		Use:   "enqueue <provider> <task-id> <provider-task-id>",
		Short: "Queue a completion (or with --undo, a reopen) for a provider",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, taskID, providerTaskID := args[0], args[1], args[2]
			record, err := app.engine.EnqueueCompletion(taskID, provider, providerTaskID, !undo)
			if err != nil {
				return app.explainError(err, provider)
			}
			return app.render(record, func(d *cli.Display) {
				d.Completion(record)
			})
		},
	}
	enqueueCmd.Flags().BoolVar(&undo, "undo", false, "Queue a reopen instead of a completion")

	ackCmd := &cobra.Command{
		Use:   "ack <id>",
		Short: "Remove a completion after it was pushed to its provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := app.engine.MarkCompletionSynced(id); err != nil {
				if errors.Is(err, backend.ErrNotFound) {
					return utils.ErrCompletionNotFound(id)
				}
				return app.explainError(err, "")
			}
			result := struct {
				ID     string `json:"id"`
				Synced bool   `json:"synced"`
			}{id, true}
			return app.render(result, func(d *cli.Display) {
				d.Message("✓ Completion %s marked as synced", id)
			})
		},
	}

	outboxCmd.AddCommand(listCmd, enqueueCmd, ackCmd)
	return outboxCmd
}

func newTokenCmd(app *App) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Read or store a provider's sync token",
	}

	getCmd := &cobra.Command{
		Use:               "get <provider>",
		Short:             "Print the stored sync token",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: app.providerCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			token, err := app.engine.GetSyncToken(provider)
			if err != nil {
				return app.explainError(err, provider)
			}
			result := struct {
				Provider  string  `json:"provider"`
				SyncToken *string `json:"sync_token"`
			}{provider, token}
			return app.render(result, func(d *cli.Display) {
				d.Token(provider, token)
			})
		},
	}

	setCmd := &cobra.Command{
		Use:               "set <provider> <token>",
		Short:             "Store a sync token",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: app.providerCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, token := args[0], args[1]
			if err := app.engine.SetSyncToken(provider, token); err != nil {
				return app.explainError(err, provider)
			}
			result := struct {
				Provider  string `json:"provider"`
				SyncToken string `json:"sync_token"`
			}{provider, token}
			return app.render(result, func(d *cli.Display) {
				d.Message("✓ Stored sync token for %s", provider)
			})
		},
	}

	tokenCmd.AddCommand(getCmd, setCmd)
	return tokenCmd
}

func newStatsCmd(app *App) *cobra.Command {
	var vacuum bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show local store statistics",
		Long: `Show row counts and the size of the local store. With --vacuum the
database file is compacted first, which shrinks it after large clears.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if vacuum {
				if err := utils.LogOperation("vacuum", app.store.Vacuum); err != nil {
					return app.explainError(err, "")
				}
			}
			stats, err := app.engine.Stats()
			if err != nil {
				return app.explainError(err, "")
			}
			result := struct {
				Database string `json:"database"`
				backend.Stats
			}{app.store.Path(), stats}
			return app.render(result, func(d *cli.Display) {
				d.Stats(app.store.Path(), stats)
			})
		},
	}
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "Compact the database file before reporting")
	return cmd
}
