package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sentinel/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel triages security intelligence articles into publish, review, or drop decisions.",
	Long: `Sentinel ingests parsed articles from configured RSS/Atom feeds, scores
them for relevance against a keyword watchlist, runs them through guardrail
checks, and triages each one to AUTO_PUBLISH, REVIEW, or DROP. Escalated
articles wait in a review queue until an analyst approves, rejects, or edits
them through the decision processor.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sentinel.yaml)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newKeywordsCmd())
	rootCmd.AddCommand(newFeedsCmd())
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}
