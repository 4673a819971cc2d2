package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tasksync/backend"
	"tasksync/backend/reconcile"
	"tasksync/backend/sqlite"
	"tasksync/internal/cli"
	"tasksync/internal/config"
	"tasksync/internal/utils"
)

// App holds everything a command needs once flags and config are resolved
type App struct {
	config  *config.Config
	store   *sqlite.Store
	engine  *reconcile.Engine
	display *cli.Display
	output  string
}

// globalFlags are the persistent root flags
type globalFlags struct {
	configPath string
	dbPath     string
	verbose    bool
	output     string
}

func main() {
	rootCmd, app := newRootCmd()
	err := rootCmd.Execute()
	if closeErr := app.close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *App) {
	flags := &globalFlags{}
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "tasksync",
		Short: "Reconcile provider task snapshots with a local SQLite store",
		Long: `tasksync merges task snapshots exported by task providers (todoist,
msToDo, obsidian, ...) into a local SQLite database.

Snapshots are JSON or YAML documents with "tasks", "projects" and "labels"
lists. A full sync replaces everything stored for a provider; an incremental
sync updates changed tasks according to the provider's ownership policy.

Examples:
  tasksync sync full todoist --snapshot todoist.json
  tasksync sync incremental obsidian --snapshot vault.yaml --delete-orphans
  tasksync outbox list todoist
  tasksync watch obsidian --snapshot vault.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// config init must work even when the current config is broken
			if cmd.Annotations["skipApp"] == "true" {
				return nil
			}
			return app.setup(cmd, flags)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to config file or directory")
	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "Path to the SQLite database (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "", "Output format: text, json or yaml")

	rootCmd.AddCommand(newSyncCmd(app))
	rootCmd.AddCommand(newClearCmd(app))
	rootCmd.AddCommand(newOutboxCmd(app))
	rootCmd.AddCommand(newTokenCmd(app))
	rootCmd.AddCommand(newStatsCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newHostCmd(app))
	rootCmd.AddCommand(newConfigCmd(flags))

	return rootCmd, app
}

// setup loads config, configures logging and opens the store
func (a *App) setup(cmd *cobra.Command, flags *globalFlags) error {
	if flags.configPath != "" {
		config.SetCustomConfigPath(flags.configPath)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		return utils.WrapWithSuggestion(err, "Fix the config file or pass another one with --config")
	}
	a.config = cfg

	utils.SetVerboseMode(flags.verbose || cfg.Verbose)
	if cfg.LogFile.Path != "" {
		if err := utils.ConfigureLogFile(utils.LogFileOptions{
			Path:       cfg.LogFile.Path,
			MaxSizeMB:  cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
		}); err != nil {
			return err
		}
	}

	a.output = cfg.Output
	if flags.output != "" {
		a.output = flags.output
	}
	if !utils.IsValidOutputFormat(a.output) {
		return utils.ErrInvalidOutputFormat(a.output, utils.ValidOutputFormats)
	}

	dbPath := cfg.DBPath
	if flags.dbPath != "" {
		if dbPath, err = utils.ExpandPath(flags.dbPath); err != nil {
			return err
		}
	}

	store, err := sqlite.Open(sqlite.Options{DBPath: dbPath, BusyTimeoutMS: cfg.BusyTimeoutMS})
	if err != nil {
		return err
	}
	utils.Debugf("Using database %s", store.Path())

	a.store = store
	a.engine = reconcile.New(store)
	a.display = cli.NewDisplay(os.Stdout)
	return nil
}

func (a *App) close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if closeErr := utils.GetLogger().Close(); err == nil {
		err = closeErr
	}
	return err
}

// render prints v in the selected structured format, or calls text for text output
func (a *App) render(v interface{}, text func(d *cli.Display)) error {
	switch a.output {
	case utils.FormatJSON:
		return utils.OutputJSON(v)
	case utils.FormatYAML:
		tree, err := utils.JSONToYAMLValue(v)
		if err != nil {
			return err
		}
		return utils.OutputYAML(tree)
	default:
		text(a.display)
		return nil
	}
}

// providerCompletion completes provider ids from the built-in list and the config
func (a *App) providerCompletion() func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return cli.ProviderCompletion(func() []string {
		cfg, err := config.GetConfig()
		if err != nil {
			return nil
		}
		ids := make([]string, 0, len(cfg.Providers))
		for id := range cfg.Providers {
			ids = append(ids, id)
		}
		return ids
	})
}

// explainError attaches a user-facing suggestion to well-known failures
func (a *App) explainError(err error, provider string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, backend.ErrStorage) && isLockError(err) && a.store != nil {
		utils.Debugf("Storage error: %v", err)
		return utils.ErrDatabaseLocked(a.store.Path())
	}
	if errors.Is(err, backend.ErrInvalidState) && provider != "" && strings.Contains(err.Error(), "never been synced") {
		return utils.ErrProviderNotSynced(provider)
	}
	return err
}

func isLockError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}
