package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sentinel/internal/feeds"
)

func newFeedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Manage the RSS/Atom feed registry",
	}
	cmd.AddCommand(newFeedsValidateCmd())
	return cmd
}

func newFeedsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a feed registry document",
		Long: `Parse and validate a feed registry YAML document, checking every feed's
URL scheme, fetch interval format, and name uniqueness before it reaches
production.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := loadConfig()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				path = cfg.Feeds.RegistryPath
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %q: %w", path, err)
			}

			registry, err := feeds.LoadRegistry(data)
			if err != nil {
				return fmt.Errorf("feed registry invalid: %w", err)
			}

			fmt.Printf("valid: %d enabled feeds across %d categories\n", len(registry.Enabled()), len(registry.Categories()))
			return nil
		},
	}
}
