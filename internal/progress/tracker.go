// Package progress tracks crawl progress for the status API and terminal
// reporting. It holds a single snapshot guarded by a mutex; the crawl loop
// writes it and the HTTP server reads it.
package progress

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the crawl.
type Snapshot struct {
	RunID      string     `json:"run_id"`
	Target     int        `json:"target"`
	Collected  int        `json:"collected"`
	Persisted  int        `json:"persisted"`
	Pages      int        `json:"pages"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	StopReason string     `json:"stop_reason,omitempty"`
}

// Tracker records progress updates from the crawl loop.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker for a single crawl run.
func NewTracker(runID string, target int) *Tracker {
	t := &Tracker{now: time.Now}
	t.snap = Snapshot{
		RunID:     runID,
		Target:    target,
		StartedAt: t.now().UTC(),
	}
	return t
}

// Record updates the running counters.
func (t *Tracker) Record(collected, persisted, pages int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Collected = collected
	t.snap.Persisted = persisted
	t.snap.Pages = pages
}

// Finish marks the crawl as done with the given stop reason.
func (t *Tracker) Finish(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	finished := t.now().UTC()
	t.snap.FinishedAt = &finished
	t.snap.StopReason = reason
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}
