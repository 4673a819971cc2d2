package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tasksync/internal/config"
	"tasksync/internal/utils"
)

// skipApp marks commands that run without opening the store
var skipApp = map[string]string{"skipApp": "true"}

func newConfigCmd(flags *globalFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Args:        cobra.NoArgs,
		Annotations: skipApp,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath(flags)
			if err != nil {
				return err
			}
			if err := config.WriteSample(path, force); err != nil {
				return utils.WrapWithSuggestion(err, "Use --force to overwrite it")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	pathCmd := &cobra.Command{
		Use:         "path",
		Short:       "Print the config file location",
		Args:        cobra.NoArgs,
		Annotations: skipApp,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath(flags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: skipApp,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveConfigPath(flags)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return utils.ErrConfigFileNotFound(path)
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if flags.output == utils.FormatYAML {
				tree, err := utils.JSONToYAMLValue(cfg)
				if err != nil {
					return err
				}
				return utils.WriteYAML(cmd.OutOrStdout(), tree)
			}
			return utils.WriteJSON(cmd.OutOrStdout(), cfg)
		},
	}

	configCmd.AddCommand(initCmd, pathCmd, showCmd)
	return configCmd
}

func resolveConfigPath(flags *globalFlags) (string, error) {
	if flags.configPath != "" {
		config.SetCustomConfigPath(flags.configPath)
	}
	return config.GetConfigPath()
}
