package commands

import (
	"github.com/spf13/cobra"

	"github.com/releve-dev/releve/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "releve",
		Short:   "Local ledger for bank statements",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newInitCommand(),
		newImportCommand(),
		newAddCommand(),
		newListCommand(),
		newRecurringCommand(),
	)

	return rootCmd
}
