package crawler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/github-stars-crawler/internal/progress"
)

// Config holds the settings for a crawl session.
// This struct is decoupled from Viper, making the controller and its
// configuration more modular and easier to test independently.
type Config struct {
	TargetCount int
	BatchSize   int
	// HaltOnPersistError stops the crawl when a batch fails to commit.
	// Default behavior is best-effort: log the failure and keep paginating.
	HaltOnPersistError bool
}

// Controller drives the crawl: fetch a page, persist it, advance the
// cursor, and stop when the target count is reached or the upstream runs
// out. It is strictly sequential; exactly one request is in flight.
type Controller struct {
	fetcher PageFetcher
	sink    RepositorySink
	tracker *progress.Tracker
	cfg     Config
	logger  *zap.Logger
}

// NewController constructs a Controller. tracker may be nil when no status
// API is running.
func NewController(fetcher PageFetcher, sink RepositorySink, tracker *progress.Tracker, cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		fetcher: fetcher,
		sink:    sink,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run executes the crawl loop until a stop condition is met. The returned
// Result is valid for every stop reason; fetch failures end the crawl as a
// partial success rather than an error, so the only error returned is a
// canceled context.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	var res Result
	cursor := ""

	for res.Collected < c.cfg.TargetCount {
		if err := ctx.Err(); err != nil {
			res.Reason = StopContextCanceled
			return res, err
		}

		c.logger.Info("Fetching next batch",
			zap.Int("collected", res.Collected),
			zap.Int("target", c.cfg.TargetCount),
		)

		page, err := c.fetcher.FetchPage(ctx, cursor, c.cfg.BatchSize)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				res.Reason = StopContextCanceled
				return res, err
			}
			res.Reason = StopFetchFailed
			if errors.Is(err, ErrUnauthorized) {
				// A rejected credential is a configuration error, not an
				// upstream fault; abort rather than degrade.
				c.logger.Error("Aborting crawl", zap.Error(err))
				return c.finish(res), err
			}
			c.logger.Warn("Failed to fetch data or no more results", zap.Error(err))
			return c.finish(res), nil
		}
		res.Pages++
		TotalPages.Inc()

		if len(page.Repositories) == 0 {
			// An empty page with hasNextPage=true would loop without
			// progress, so both variants stop the crawl.
			c.logger.Info("No repositories found in the current batch")
			res.Reason = StopEmptyPage
			return c.finish(res), nil
		}

		saved, err := c.sink.SaveRepositories(ctx, page.Repositories)
		if err != nil {
			TotalBatchesFailed.Inc()
			c.logger.Error("Error saving repositories to DB", zap.Error(err))
			if c.cfg.HaltOnPersistError {
				res.Reason = StopPersistFailed
				return c.finish(res), nil
			}
		} else {
			TotalBatchesSaved.Inc()
			res.Persisted += saved
		}

		// Pagination determines progress, not successful writes: a lost
		// batch still advances the count.
		res.Collected += len(page.Repositories)
		TotalRepositories.Add(float64(len(page.Repositories)))
		if c.tracker != nil {
			c.tracker.Record(res.Collected, res.Persisted, res.Pages)
		}

		if !page.HasNextPage {
			c.logger.Info("No more pages available from upstream")
			res.Reason = StopExhausted
			return c.finish(res), nil
		}
		cursor = page.EndCursor
	}

	res.Reason = StopTargetReached
	return c.finish(res), nil
}

func (c *Controller) finish(res Result) Result {
	if c.tracker != nil {
		c.tracker.Finish(string(res.Reason))
	}
	c.logger.Info("Finished crawling",
		zap.Int("collected", res.Collected),
		zap.Int("persisted", res.Persisted),
		zap.Int("pages", res.Pages),
		zap.String("reason", string(res.Reason)),
	)
	return res
}
