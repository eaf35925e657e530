// Package cli implements the profplugin command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/profplugin/pkg/version"
)

// NewRootCmd creates the profplugin root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "profplugin",
		Short: "Periodic CPU profiling push source for a host monitoring agent",
		Long: `profplugin samples the CPU profile of the running process in fixed windows
and pushes each window's call tree to a host monitoring agent as a
NodeProfData blob. Profiling can be switched on and off remotely with
"on,profiling_node_subsystem" / "off,profiling_node_subsystem" control
messages addressed to the profiling_node source.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("profplugin version %s\n", version.Version)
			cmd.Printf("Plugin interface: %s\n", version.PluginVersion)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}
