package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/profplugin/internal/config"
)

const defaultConfigPath = "profplugin.yaml"

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage profplugin configuration",
		Long: `Manage profplugin configuration.

Configuration Priority:
  1. Flags on "run" (highest)
  2. PROFPLUGIN_* environment variables
  3. Config file (--config)
  4. Defaults`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file holding the defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigPath
			if len(args) == 1 {
				path = args[0]
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}

			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

// newConfigValidateCmd creates the 'config validate' command.
func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Load a config file with environment overrides and validate it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			cmd.Printf("%s is valid (interval %s, agent %q)\n", args[0], cfg.Profiling.Interval, cfg.Agent.URL)
			return nil
		},
	}
}
