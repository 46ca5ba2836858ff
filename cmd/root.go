// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "github-usage",
	Short: "A CLI tool to aggregate GitHub usage statistics for an account.",
	Long: `github-usage aggregates usage statistics for a single GitHub account:
stargazers, forks, all-time contributions, lines of code changed, page views,
and the proportional language breakdown across every repository the account
owns or has contributed to.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}
