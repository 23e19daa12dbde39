package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/github-stars-crawler/internal/api"
	"github.com/JakeFAU/github-stars-crawler/internal/clock/system"
	"github.com/JakeFAU/github-stars-crawler/internal/crawler"
	"github.com/JakeFAU/github-stars-crawler/internal/github"
	"github.com/JakeFAU/github-stars-crawler/internal/logging"
	"github.com/JakeFAU/github-stars-crawler/internal/progress"
	"github.com/JakeFAU/github-stars-crawler/internal/storage/postgres"
)

// newCrawlCmd creates and configures the 'crawl' subcommand. It wires the
// GraphQL client, the Postgres sink, and the crawl controller, then runs
// the loop until the target count is reached or the upstream runs out.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Starts the repository crawl",
		Long: `Pages through GitHub's repository search and upserts every result into
Postgres. The crawl is sequential and blocking: rate-limit pauses and
retry backoffs happen inline, and exactly one request is in flight.`,
		RunE: runCrawlCommand,
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateGitHub(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	store, err := postgres.NewRepoStore(ctx, postgres.RepoStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	}, logger)
	if err != nil {
		return fmt.Errorf("init repository store: %w", err)
	}
	defer store.Close()

	clock := system.New()
	advisor := github.NewRateLimitAdvisor(clock, nil, logger)
	client := github.NewClient(github.Config{
		Endpoint: cfg.GitHub.Endpoint,
		Token:    cfg.GitHub.Token,
		Timeout:  cfg.RequestTimeout(),
	}, advisor, nil, logger)

	tracker := progress.NewTracker(runID, cfg.Crawl.TargetCount)

	if cfg.Server.Enabled {
		server := api.NewServer(tracker, logger)
		go func() {
			if serr := server.Serve(ctx, cfg.Server.Port); serr != nil {
				logger.Warn("Status server stopped", zap.Error(serr))
			}
		}()
		logger.Info("Status server listening", zap.Int("port", cfg.Server.Port))
	}

	controller := crawler.NewController(client, store, tracker, crawler.Config{
		TargetCount:        cfg.Crawl.TargetCount,
		BatchSize:          cfg.Crawl.BatchSize,
		HaltOnPersistError: cfg.Crawl.HaltOnPersistError,
	}, logger)

	result, err := controller.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}

	logger.Info("Crawl command finished",
		zap.Int("collected", result.Collected),
		zap.Int("persisted", result.Persisted),
		zap.String("reason", string(result.Reason)),
	)
	return nil
}
