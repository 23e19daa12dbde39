package crawler

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthorized signals a rejected credential. Fetch implementations
// wrap it so the controller can abort the crawl instead of degrading to a
// partial-success stop.
var ErrUnauthorized = errors.New("unauthorized")

// PageFetcher retrieves one page of repositories from the upstream API.
// cursor is empty on the first call; implementations own retry and
// rate-limit handling so a returned error is terminal for the crawl.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor string, pageSize int) (Page, error)
}

// RepositorySink persists a batch of repositories and returns the number
// written. A batch either commits whole or not at all.
type RepositorySink interface {
	SaveRepositories(ctx context.Context, repos []Repository) (int, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
