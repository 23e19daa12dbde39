// Package crawler defines core types shared across subsystems.
package crawler

import "time"

// Repository is a single crawled repository destined for durable storage.
// ID is GitHub's opaque GraphQL node ID and is the primary key; the
// (Owner, Name) pair carries its own uniqueness constraint in the store.
type Repository struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Stars int    `json:"stars"`
}

// Page is one batch of repositories plus the pagination metadata needed to
// request the next one.
type Page struct {
	Repositories []Repository
	EndCursor    string
	HasNextPage  bool
}

// Quota is GitHub's rateLimit descriptor as returned inside a query
// payload. It is consumed immediately after each response and discarded.
type Quota struct {
	Cost      int       `json:"cost"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// Result summarizes a finished crawl for the operator.
type Result struct {
	Collected int
	Persisted int
	Pages     int
	Reason    StopReason
}

// StopReason explains why the crawl loop ended.
type StopReason string

// Stop reasons reported in logs and progress output.
const (
	StopTargetReached   StopReason = "target_reached"
	StopExhausted       StopReason = "upstream_exhausted"
	StopEmptyPage       StopReason = "empty_page"
	StopFetchFailed     StopReason = "fetch_failed"
	StopPersistFailed   StopReason = "persist_failed"
	StopContextCanceled StopReason = "canceled"
)
