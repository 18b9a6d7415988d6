package commands

import (
	"github.com/spf13/cobra"
)

var (
	// apiURL is the base URL of the smaartd API.
	apiURL string

	// outputFormat controls output format (text, json).
	outputFormat string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "smaart",
	Short: "Summarization service CLI",
	Long: `smaart queries a running smaartd for AI summaries of recent
content about a topic, and for currently trending topics.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(
		&apiURL, "api", "http://localhost:8000",
		"Base URL of the smaartd API",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	// Add subcommands.
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}
