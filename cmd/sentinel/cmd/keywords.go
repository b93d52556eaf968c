package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sentinel/internal/keywords"
)

func newKeywordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Manage the keyword watchlist registry",
	}
	cmd.AddCommand(newKeywordsValidateCmd())
	return cmd
}

func newKeywordsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a keyword registry document",
		Long: `Parse and validate a keyword registry YAML/JSON document the same way
the pipeline loads it at startup, reporting any malformed terms or
categories before they reach production.`,
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
				path = cfg.Keywords.RegistryPath
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %q: %w", path, err)
			}

			registry, err := keywords.LoadDocument(data)
			if err != nil {
				return fmt.Errorf("keyword registry invalid: %w", err)
			}

			fmt.Printf("valid: %d terms loaded\n", len(registry.AllTerms()))
			return nil
		},
	}
}
