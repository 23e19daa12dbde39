package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/github-stars-crawler/internal/progress"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	server := NewServer(progress.NewTracker("run-1", 100), nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetProgressReturnsSnapshot(t *testing.T) {
	t.Parallel()

	tracker := progress.NewTracker("run-1", 500)
	tracker.Record(200, 150, 2)
	server := NewServer(tracker, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snap progress.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, "run-1", snap.RunID)
	require.Equal(t, 500, snap.Target)
	require.Equal(t, 200, snap.Collected)
	require.Equal(t, 150, snap.Persisted)
}

func TestGetProgressWithoutTracker(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())
}
