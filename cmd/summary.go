// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/naka-gawa/github-usage/internal/domain"
	"github.com/naka-gawa/github-usage/internal/gateway"
	"github.com/naka-gawa/github-usage/internal/render"
	"github.com/naka-gawa/github-usage/internal/usecase"
)

// summarySnapshot is the JSON output shape: every statistic, fully materialized.
type summarySnapshot struct {
	Name               string              `json:"name"`
	Stargazers         int                 `json:"stargazers"`
	Forks              int                 `json:"forks"`
	TotalContributions int                 `json:"total_contributions"`
	Repositories       []domain.Repository `json:"repositories"`
	LinesAdded         int                 `json:"lines_added"`
	LinesDeleted       int                 `json:"lines_deleted"`
	Views              int                 `json:"views"`
	Languages          map[string]float64  `json:"languages"`
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregates GitHub usage statistics and prints a summary",
	Long: `Aggregates usage statistics for the configured GitHub account and prints
either a human-readable summary or, with --json, the raw statistics as JSON.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
		if verbose {
			logger.SetOutput(os.Stderr) // If verbose, log to standard error.
		}

		token := viper.GetString("access_token")
		if token == "" {
			fmt.Fprintln(os.Stderr, "Error: no access token configured. Set ACCESS_TOKEN or GITHUB_TOKEN.")
			os.Exit(1)
		}
		user := viper.GetString("github_actor")
		if user == "" {
			fmt.Fprintln(os.Stderr, "Error: no account configured. Set GITHUB_ACTOR or pass --user.")
			os.Exit(1)
		}

		// Inject dependencies and run the main business logic.
		client, err := gateway.NewClient(token, viper.GetInt64("max_connections"), logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub client: %v\n", err)
			os.Exit(1)
		}
		stats := usecase.NewStats(client, usecase.Options{
			Username:            user,
			ExcludeRepos:        splitList(viper.GetString("excluded")),
			ExcludeLangs:        splitList(viper.GetString("excluded_langs")),
			ExcludeContribRepos: viper.GetBool("exclude_contrib_repos"),
		}, logger)

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			additions, deletions := stats.LinesChanged(ctx)
			snapshot := summarySnapshot{
				Name:               stats.Name(ctx),
				Stargazers:         stats.Stargazers(ctx),
				Forks:              stats.Forks(ctx),
				TotalContributions: stats.TotalContributions(ctx),
				Repositories:       stats.Repositories(ctx),
				LinesAdded:         additions,
				LinesDeleted:       deletions,
				Views:              stats.Views(ctx),
				Languages:          stats.LanguagesProportional(ctx),
			}
			jsonData, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to marshal results to JSON: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(jsonData))
			return
		}

		heading := color.New(color.Bold).Sprintf("GitHub statistics for %s", user)
		fmt.Println(heading)
		fmt.Println(render.Summary(ctx, stats))
	},
}

// splitList parses a comma-separated configuration value into its entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringP("user", "u", "", "Target GitHub account login")
	summaryCmd.Flags().String("exclude-repos", "", "Comma-separated repository names to exclude")
	summaryCmd.Flags().String("exclude-langs", "", "Comma-separated language names to exclude")
	summaryCmd.Flags().Bool("exclude-contrib-repos", false, "Count only repositories the account owns")
	summaryCmd.Flags().Int("max-connections", 10, "Maximum concurrent API requests")
	summaryCmd.Flags().Bool("json", false, "Output the statistics as JSON")

	// Environment variables cover the GitHub Actions use case; flags take
	// precedence when set.
	viper.BindPFlag("github_actor", summaryCmd.Flags().Lookup("user"))
	viper.BindPFlag("excluded", summaryCmd.Flags().Lookup("exclude-repos"))
	viper.BindPFlag("excluded_langs", summaryCmd.Flags().Lookup("exclude-langs"))
	viper.BindPFlag("exclude_contrib_repos", summaryCmd.Flags().Lookup("exclude-contrib-repos"))
	viper.BindPFlag("max_connections", summaryCmd.Flags().Lookup("max-connections"))
	viper.BindEnv("access_token", "ACCESS_TOKEN", "GITHUB_TOKEN")
	viper.BindEnv("github_actor", "GITHUB_ACTOR")
	viper.BindEnv("excluded", "EXCLUDED")
	viper.BindEnv("excluded_langs", "EXCLUDED_LANGS")
	viper.BindEnv("exclude_contrib_repos", "EXCLUDE_CONTRIB_REPOS")
	viper.BindEnv("max_connections", "MAX_CONNECTIONS")
}
