package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalRequests tracks the number of GraphQL requests dispatched.
	TotalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_requests_total",
		Help: "The total number of GraphQL requests sent.",
	})
	// TotalRequestErrors tracks the number of requests that resulted in an error.
	TotalRequestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_request_errors_total",
		Help: "The total number of failed GraphQL requests.",
	})
	// TotalRateLimitWaits tracks the number of times the crawler slept for a rate-limit window.
	TotalRateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_rate_limit_waits_total",
		Help: "The total number of rate limit waits, reactive and proactive.",
	})
	// TotalPages tracks the number of result pages fetched.
	TotalPages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_pages_total",
		Help: "The total number of search result pages fetched.",
	})
	// TotalRepositories tracks the number of repositories collected.
	TotalRepositories = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_repositories_total",
		Help: "The total number of repositories collected.",
	})
	// TotalBatchesSaved tracks the number of batches committed to the database.
	TotalBatchesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_batches_saved_total",
		Help: "The total number of repository batches committed.",
	})
	// TotalBatchesFailed tracks the number of batches rolled back.
	TotalBatchesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_batches_failed_total",
		Help: "The total number of repository batches rolled back.",
	})
)
