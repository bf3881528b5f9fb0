package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "licenseaudit",
	Short: "Audit license metadata across a conda channel",
	Long: `licenseaudit downloads the repodata snapshot of every configured platform
of a conda channel, keeps the newest build of each package, checks its license
against the SPDX license-expression grammar and writes per-platform validity
counts plus license frequency tables.

Run "licenseaudit run" to perform an audit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Called once from main.
func Execute() error {
	// Errors are printed in color by the printer package.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version reported by --version.
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
