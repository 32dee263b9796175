// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "github-pr-exporter",
	Short: "A Prometheus exporter for GitHub pull request statistics.",
	Long: `github-pr-exporter queries the GitHub GraphQL API for pull request statistics
(total count, open count, age of the oldest open pull request) of a set of
repositories and exposes them in the Prometheus text format.

The GitHub token is read from the GITHUB_TOKEN environment variable.`,
	SilenceUsage: true,
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
	flags := rootCmd.PersistentFlags()
	// Add a persistent flag for verbose output, available to all commands.
	flags.BoolP("verbose", "v", false, "Enable verbose/debug logging")
	flags.String("log-format", "text", "Logging format. 'text' or 'json'")
	flags.Int("log-level", 1, "Log level. -1 - trace, 0 - debug, 1 - info, 5 - panic")
	flags.StringP("config", "c", "", "Path to a YAML file listing the owner and repositories")
	flags.StringP("owner", "o", "", "Default owner for repositories given without one")
	flags.StringSliceP("repo", "r", nil, "Repository to collect, as 'name' or 'owner/name' (repeatable)")
	flags.Bool("discover", false, "Also collect every active repository of --owner")
	flags.String("github-url", "", "Base URL of a GitHub Enterprise Server")
	flags.Duration("repo-timeout", 30*time.Second, "Timeout for fetching one repository (0 disables)")
	flags.Int("concurrency", 1, "Number of repositories fetched in parallel")
	flags.Duration("rate-limit-sleep", time.Hour, "Longest single wait on a GitHub secondary rate limit")
}
