package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPageFetcher is a mock implementation of the PageFetcher interface.
type MockPageFetcher struct {
	mock.Mock
}

func (m *MockPageFetcher) FetchPage(ctx context.Context, cursor string, pageSize int) (Page, error) {
	args := m.Called(ctx, cursor, pageSize)
	return args.Get(0).(Page), args.Error(1)
}

// MockRepositorySink is a mock implementation of the RepositorySink interface.
type MockRepositorySink struct {
	mock.Mock
}

func (m *MockRepositorySink) SaveRepositories(ctx context.Context, repos []Repository) (int, error) {
	args := m.Called(ctx, repos)
	return args.Int(0), args.Error(1)
}

func makeRepos(prefix string, n int) []Repository {
	repos := make([]Repository, 0, n)
	for i := 0; i < n; i++ {
		repos = append(repos, Repository{
			ID:    fmt.Sprintf("%s-%d", prefix, i),
			Owner: "octo",
			Name:  fmt.Sprintf("%s-%d", prefix, i),
			URL:   "https://github.com/octo/" + prefix,
			Stars: 10,
		})
	}
	return repos
}

func TestRunStopsAtTargetCount(t *testing.T) {
	t.Parallel()

	fetcher := new(MockPageFetcher)
	sink := new(MockRepositorySink)

	pages := []Page{
		{Repositories: makeRepos("p1", 100), EndCursor: "c1", HasNextPage: true},
		{Repositories: makeRepos("p2", 100), EndCursor: "c2", HasNextPage: true},
		{Repositories: makeRepos("p3", 100), EndCursor: "c3", HasNextPage: true},
	}
	fetcher.On("FetchPage", mock.Anything, "", 100).Return(pages[0], nil).Once()
	fetcher.On("FetchPage", mock.Anything, "c1", 100).Return(pages[1], nil).Once()
	fetcher.On("FetchPage", mock.Anything, "c2", 100).Return(pages[2], nil).Once()
	sink.On("SaveRepositories", mock.Anything, mock.Anything).Return(100, nil).Times(3)

	controller := NewController(fetcher, sink, nil, Config{TargetCount: 250, BatchSize: 100}, nil)

	res, err := controller.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 300, res.Collected)
	require.Equal(t, 300, res.Persisted)
	require.Equal(t, 3, res.Pages)
	require.Equal(t, StopTargetReached, res.Reason)
	fetcher.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestRunStopsOnUpstreamExhaustion(t *testing.T) {
	t.Parallel()

	fetcher := new(MockPageFetcher)
	sink := new(MockRepositorySink)

	fetcher.On("FetchPage", mock.Anything, "", 100).
		Return(Page{Repositories: makeRepos("p1", 40), EndCursor: "c1", HasNextPage: false}, nil).Once()
	sink.On("SaveRepositories", mock.Anything, mock.Anything).Return(40, nil).Once()

	controller := NewController(fetcher, sink, nil, Config{TargetCount: 1000, BatchSize: 100}, nil)

	res, err := controller.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 40, res.Collected)
	require.Equal(t, StopExhausted, res.Reason)
	fetcher.AssertExpectations(t)
}

func TestRunStopsOnEmptyPageEvenWithNextPage(t *testing.T) {
	t.Parallel()

	fetcher := new(MockPageFetcher)
	sink := new(MockRepositorySink)

	// An upstream anomaly: zero entities but hasNextPage=true must not
	// produce a tight no-progress loop.
	fetcher.On("FetchPage", mock.Anything, "", 100).
		Return(Page{EndCursor: "c1", HasNextPage: true}, nil).Once()

	controller := NewController(fetcher, sink, nil, Config{TargetCount: 1000, BatchSize: 100}, nil)

	res, err := controller.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.Collected)
	require.Equal(t, StopEmptyPage, res.Reason)
	sink.AssertNotCalled(t, "SaveRepositories", mock.Anything, mock.Anything)
}

func TestRunStopsOnFetchFailureWithPartialResult(t *testing.T) {
	t.Parallel()

	fetcher := new(MockPageFetcher)
	sink := new(MockRepositorySink)

	fetcher.On("FetchPage", mock.Anything, "", 100).
		Return(Page{Repositories: makeRepos("p1", 100), EndCursor: "c1", HasNextPage: true}, nil).Once()
	fetcher.On("FetchPage", mock.Anything, "c1", 100).
		Return(Page{}, errors.New("max retries reached")).Once()
	sink.On("SaveRepositories", mock.Anything, mock.Anything).Return(100, nil).Once()

	controller := NewController(fetcher, sink, nil, Config{TargetCount: 1000, BatchSize: 100}, nil)

	res, err := controller.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 100, res.Collected)
	require.Equal(t, StopFetchFailed, res.Reason)
}

func TestRunContinuesPastPersistFailure(t *testing.T) {
	t.Parallel()

	fetcher := new(MockPageFetcher)
	sink := new(MockRepositorySink)

	fetcher.On("FetchPage", mock.Anything, "", 100).
		Return(Page{Repositories: makeRepos("p1", 100), EndCursor: "c1", HasNextPage: true}, nil).Once()
	fetcher.On("FetchPage", mock.Anything, "c1", 100).
		Return(Page{Repositories: makeRepos("p2", 100), EndCursor: "c2", HasNextPage: false}, nil).Once()
	sink.On("SaveRepositories", mock.Anything, mock.Anything).Return(0, errors.New("unique violation")).Once()
	sink.On("SaveRepositories", mock.Anything, mock.Anything).Return(100, nil).Once()

	controller := NewController(fetcher, sink, nil, Config{TargetCount: 1000, BatchSize: 100}, nil)

	res, err := controller.Run(context.Background())
	require.NoError(t, err)
	// The failed batch still advances the collected count; persistence
	// does not gate pagination.
	require.Equal(t, 200, res.Collected)
	require.Equal(t, 100, res.Persisted)
	require.Equal(t, StopExhausted, res.Reason)
	fetcher.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestRunHaltsOnPersistFailureWhenConfigured(t *testing.T) {
	t.Parallel()

	fetcher := new(MockPageFetcher)
	sink := new(MockRepositorySink)

	fetcher.On("FetchPage", mock.Anything, "", 100).
		Return(Page{Repositories: makeRepos("p1", 100), EndCursor: "c1", HasNextPage: true}, nil).Once()
	sink.On("SaveRepositories", mock.Anything, mock.Anything).Return(0, errors.New("unique violation")).Once()

	controller := NewController(fetcher, sink, nil, Config{TargetCount: 1000, BatchSize: 100, HaltOnPersistError: true}, nil)

	res, err := controller.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StopPersistFailed, res.Reason)
	fetcher.AssertNumberOfCalls(t, "FetchPage", 1)
}

func TestRunAbortsOnUnauthorizedWithZeroCollected(t *testing.T) {
	t.Parallel()

	fetcher := new(MockPageFetcher)
	sink := new(MockRepositorySink)

	fetcher.On("FetchPage", mock.Anything, "", 100).
		Return(Page{}, fmt.Errorf("fetch page: %w", ErrUnauthorized)).Once()

	controller := NewController(fetcher, sink, nil, Config{TargetCount: 1000, BatchSize: 100}, nil)

	res, err := controller.Run(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Zero(t, res.Collected)
	require.Equal(t, StopFetchFailed, res.Reason)
	sink.AssertNotCalled(t, "SaveRepositories", mock.Anything, mock.Anything)
}

func TestRunReturnsErrorOnCanceledContext(t *testing.T) {
	t.Parallel()

	fetcher := new(MockPageFetcher)
	sink := new(MockRepositorySink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	controller := NewController(fetcher, sink, nil, Config{TargetCount: 1000, BatchSize: 100}, nil)

	res, err := controller.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, StopContextCanceled, res.Reason)
	fetcher.AssertNotCalled(t, "FetchPage", mock.Anything, mock.Anything, mock.Anything)
}
