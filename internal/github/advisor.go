// Package github implements the GitHub GraphQL client: query execution,
// retry handling, and cooperative rate limiting.
package github

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/github-stars-crawler/internal/crawler"
)

const (
	// resetMargin keeps us from waking exactly on the window boundary and
	// hitting the same exhausted quota.
	resetMargin = 5 * time.Second
	// fallbackWait applies when no reset instant can be determined.
	fallbackWait = 60 * time.Second
	// quotaBuffer is the headroom required before the next query; a wait
	// is scheduled when remaining < cost + quotaBuffer.
	quotaBuffer = 10
)

// Sleeper blocks for the given duration, honoring context cancellation.
// Injected in tests so advisor behavior is checked without real sleeps.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration)

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) { f(ctx, d) }

// contextSleep is the production Sleeper.
func contextSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// RateLimitAdvisor interprets rate-limit signals from response payloads or
// transport headers and blocks the caller until the window resets. Waiting
// cannot fail; the worst case is an overlong but bounded sleep.
type RateLimitAdvisor struct {
	clock  crawler.Clock
	sleep  Sleeper
	logger *zap.Logger
}

// NewRateLimitAdvisor constructs an advisor. A nil sleeper gets the real
// context-aware sleep.
func NewRateLimitAdvisor(clock crawler.Clock, sleep Sleeper, logger *zap.Logger) *RateLimitAdvisor {
	if sleep == nil {
		sleep = SleeperFunc(contextSleep)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitAdvisor{clock: clock, sleep: sleep, logger: logger}
}

// WaitForQuota waits out the window described by a payload quota
// descriptor. Always returns true so the caller knows a wait occurred and
// resets its retry counter.
func (a *RateLimitAdvisor) WaitForQuota(ctx context.Context, q crawler.Quota) bool {
	if q.ResetAt.IsZero() {
		return a.waitFallback(ctx)
	}
	return a.waitUntil(ctx, q.ResetAt)
}

// WaitForHeaders waits out the window described by transport headers
// (X-RateLimit-Reset, Unix seconds). Falls back to a fixed wait when the
// header is missing or malformed.
func (a *RateLimitAdvisor) WaitForHeaders(ctx context.Context, h http.Header) bool {
	resetHeader := h.Get("X-RateLimit-Reset")
	if resetHeader == "" {
		return a.waitFallback(ctx)
	}
	unix, err := strconv.ParseInt(resetHeader, 10, 64)
	if err != nil {
		return a.waitFallback(ctx)
	}
	return a.waitUntil(ctx, time.Unix(unix, 0))
}

// ShouldPause reports whether the remaining quota is too thin to run the
// next query of the same cost.
func (a *RateLimitAdvisor) ShouldPause(q crawler.Quota) bool {
	return q.Remaining < q.Cost+quotaBuffer
}

func (a *RateLimitAdvisor) waitUntil(ctx context.Context, reset time.Time) bool {
	wait := reset.Sub(a.clock.Now())
	if wait < 0 {
		wait = 0
	}
	wait += resetMargin
	a.logger.Info("Rate limit window pending; waiting for reset",
		zap.Time("reset_at", reset),
		zap.Duration("wait", wait),
	)
	crawler.TotalRateLimitWaits.Inc()
	a.sleep.Sleep(ctx, wait)
	return true
}

func (a *RateLimitAdvisor) waitFallback(ctx context.Context) bool {
	a.logger.Warn("Could not determine rate limit reset time; waiting as a precaution",
		zap.Duration("wait", fallbackWait),
	)
	crawler.TotalRateLimitWaits.Inc()
	a.sleep.Sleep(ctx, fallbackWait)
	return true
}
