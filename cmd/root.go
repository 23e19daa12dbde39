// Package cmd defines and implements the CLI commands for the crawler
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/github-stars-crawler/internal/config"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "github-stars-crawler",
		Short: "Crawls GitHub repositories ranked by stars into Postgres.",
		Long: `github-stars-crawler pages through the GitHub GraphQL search API for
repositories with more than one star and upserts each one into a Postgres
table, pausing cooperatively whenever the API's rate-limit window runs low.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars and .env are always read)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newSetupDBCmd())

	return cmd
}

// loadConfig reads configuration for a subcommand run.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
