package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/github-stars-crawler/internal/logging"
	"github.com/JakeFAU/github-stars-crawler/internal/storage/postgres"
)

// newSetupDBCmd creates the 'setup-db' subcommand, which bootstraps the
// repositories table and its (owner, name) unique index.
func newSetupDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup-db",
		Short: "Creates the database schema",
		RunE:  runSetupDBCommand,
	}
	return cmd
}

func runSetupDBCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := postgres.NewRepoStore(cmd.Context(), postgres.RepoStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	}, logger)
	if err != nil {
		return fmt.Errorf("init repository store: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(cmd.Context()); err != nil {
		return fmt.Errorf("setup schema: %w", err)
	}

	logger.Info("Database setup completed successfully", zap.String("table", cfg.DB.Table))
	return nil
}
