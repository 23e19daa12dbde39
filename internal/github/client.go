package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/github-stars-crawler/internal/crawler"
)

const (
	defaultEndpoint = "https://api.github.com/graphql"
	maxRetries      = 5
	retryBackoff    = 10 * time.Second
)

// Sentinel errors reported by Execute. ErrBudgetExhausted is the soft "no
// result" signal: the orchestrator ends the crawl gracefully instead of
// crashing.
var (
	ErrUnauthorized    = fmt.Errorf("%w: check the configured GitHub token", crawler.ErrUnauthorized)
	ErrBudgetExhausted = errors.New("max retries reached")
	ErrMalformedReply  = errors.New("response is missing expected fields")
)

// Config controls the GraphQL client.
type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Client executes GraphQL queries against GitHub with built-in retry and
// rate-limit handling, transparent to the caller.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	advisor    *RateLimitAdvisor
	sleep      Sleeper
	logger     *zap.Logger
}

// NewClient constructs a Client. A nil sleeper gets the real context-aware
// sleep; it is injected in tests to skip the fixed retry backoff.
func NewClient(cfg Config, advisor *RateLimitAdvisor, sleep Sleeper, logger *zap.Logger) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if sleep == nil {
		sleep = SleeperFunc(contextSleep)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		token:      cfg.Token,
		advisor:    advisor,
		sleep:      sleep,
		logger:     logger,
	}
}

// Execute runs one GraphQL query to completion. Transient transport faults
// are retried up to maxRetries with a fixed backoff; rate-limit conditions
// are waited out and reset the retry counter, since they are an expected,
// bounded condition rather than a fault. Unauthorized responses fail
// immediately. A response carrying non-rate-limit GraphQL errors is
// returned as-is for the caller to inspect.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (*Response, error) {
	retries := 0
	for retries < maxRetries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, status, headers, err := c.post(ctx, query, variables)
		if err != nil {
			crawler.TotalRequestErrors.Inc()
			retries++
			c.logger.Warn("Request failed, retrying",
				zap.Error(err),
				zap.Int("attempt", retries),
				zap.Int("max_retries", maxRetries),
			)
			c.sleep.Sleep(ctx, retryBackoff)
			continue
		}

		switch {
		case status == http.StatusUnauthorized:
			crawler.TotalRequestErrors.Inc()
			return nil, ErrUnauthorized
		case status == http.StatusForbidden:
			// Forbidden from this endpoint almost always means a
			// secondary rate limit; the reset header decides the wait.
			crawler.TotalRequestErrors.Inc()
			c.logger.Warn("Forbidden response, treating as rate limit")
			if c.advisor.WaitForHeaders(ctx, headers) {
				retries = 0
				continue
			}
			return nil, fmt.Errorf("forbidden: status %d", status)
		case status != http.StatusOK:
			crawler.TotalRequestErrors.Inc()
			retries++
			c.logger.Warn("Unexpected status, retrying",
				zap.Int("status", status),
				zap.Int("attempt", retries),
				zap.Int("max_retries", maxRetries),
			)
			c.sleep.Sleep(ctx, retryBackoff)
			continue
		}

		if retry := c.handleErrorsAndQuota(ctx, resp, headers); retry {
			retries = 0
			continue
		}
		return resp, nil
	}

	c.logger.Error("Max retries reached, aborting query", zap.Int("max_retries", maxRetries))
	return nil, ErrBudgetExhausted
}

// handleErrorsAndQuota inspects a structurally successful response for
// embedded rate-limit signals. It returns true when a wait occurred and
// the query should be re-issued with a fresh retry budget.
func (c *Client) handleErrorsAndQuota(ctx context.Context, resp *Response, headers http.Header) bool {
	if len(resp.Errors) > 0 {
		c.logger.Warn("GraphQL errors in response", zap.Any("errors", resp.Errors))
		for _, e := range resp.Errors {
			if strings.Contains(strings.ToLower(e.Message), "rate limit") {
				return c.advisor.WaitForHeaders(ctx, headers)
			}
		}
		// Non-rate-limit errors are not retryable; the caller inspects
		// the payload and stops on missing fields.
		return false
	}

	quota, ok := decodeQuota(resp.Data)
	if !ok {
		return false
	}
	c.logger.Info("Rate limit status",
		zap.Int("cost", quota.Cost),
		zap.Int("remaining", quota.Remaining),
		zap.Time("reset_at", quota.ResetAt),
	)
	if c.advisor.ShouldPause(quota) {
		c.logger.Info("Approaching rate limit, waiting for reset")
		return c.advisor.WaitForQuota(ctx, quota)
	}
	return false
}

func (c *Client) post(ctx context.Context, query string, variables map[string]any) (*Response, int, http.Header, error) {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	crawler.TotalRequests.Inc()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("post graphql: %w", err)
	}
	defer func() {
		if cerr := httpResp.Body.Close(); cerr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(cerr))
		}
	}()

	if httpResp.StatusCode != http.StatusOK {
		return nil, httpResp.StatusCode, httpResp.Header, nil
	}
	var parsed Response
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return nil, 0, nil, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, httpResp.StatusCode, httpResp.Header, nil
}

// decodeQuota pulls the rateLimit block out of a raw payload.
func decodeQuota(data json.RawMessage) (crawler.Quota, bool) {
	if len(data) == 0 {
		return crawler.Quota{}, false
	}
	var payload struct {
		RateLimit *quotaPayload `json:"rateLimit"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.RateLimit == nil {
		return crawler.Quota{}, false
	}
	q := crawler.Quota{
		Cost:      payload.RateLimit.Cost,
		Remaining: payload.RateLimit.Remaining,
	}
	if reset, err := time.Parse(time.RFC3339, payload.RateLimit.ResetAt); err == nil {
		q.ResetAt = reset
	}
	return q, true
}

// FetchPage implements crawler.PageFetcher over the search query.
func (c *Client) FetchPage(ctx context.Context, cursor string, pageSize int) (crawler.Page, error) {
	variables := map[string]any{"pageSize": pageSize}
	if cursor != "" {
		variables["cursor"] = cursor
	}

	resp, err := c.Execute(ctx, searchQuery, variables)
	if err != nil {
		return crawler.Page{}, err
	}

	var payload searchData
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &payload); err != nil {
			return crawler.Page{}, fmt.Errorf("decode search payload: %w", err)
		}
	}
	if payload.Search == nil {
		return crawler.Page{}, ErrMalformedReply
	}

	page := crawler.Page{
		EndCursor:   payload.Search.PageInfo.EndCursor,
		HasNextPage: payload.Search.PageInfo.HasNextPage,
	}
	for _, node := range payload.Search.Nodes {
		if node.ID == "" {
			// Search can return non-repository nodes; the inline
			// fragment leaves those empty.
			continue
		}
		page.Repositories = append(page.Repositories, crawler.Repository{
			ID:    node.ID,
			Owner: node.Owner.Login,
			Name:  node.Name,
			URL:   node.URL,
			Stars: node.StargazerCount,
		})
	}
	return page, nil
}
