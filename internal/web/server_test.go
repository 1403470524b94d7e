package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/nutriload/internal/config"
	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("code,name,category,serving,kcal,protein,fat,carbs\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "F%03d,Food_%d,Cat,100g,%d,1,2,3\n", i, i, 100+i)
	}
	path := filepath.Join(t.TempDir(), "food_db.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{RequestTimeout: 5 * time.Second},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, opts Options) *Server {
	t.Helper()
	layout, err := core.LayoutFromIndices([]int{0, 1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)

	store := core.NewMemoryFoodStore()
	p := core.NewPipeline(core.PipelineConfig{
		Source:    core.FileSource{Path: writeDataset(t, 25), Layout: layout},
		Sink:      core.StoreSink{Store: store},
		ChunkSize: 10,
	})
	svc := core.NewService(p, store, core.ServiceConfig{MaxWaitTime: time.Second})
	t.Cleanup(func() { svc.Shutdown(context.Background()) })

	s := NewServer(svc, cfg, opts)
	s.eventInterval = 10 * time.Millisecond
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func waitCompleted(t *testing.T, s *Server, runID string) core.RunResult {
	t.Helper()
	var res core.RunResult
	require.Eventually(t, func() bool {
		rec := do(t, s, http.MethodGet, "/api/runs/"+runID, "")
		if rec.Code != http.StatusOK {
			return false
		}
		res = decode[core.RunResult](t, rec)
		return res.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return res
}

func TestStartRun_EndToEnd(t *testing.T) {
	s := newTestServer(t, testConfig(), Options{})

	rec := do(t, s, http.MethodPost, "/api/runs", `{"run_id":"nightly-1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/runs/nightly-1", rec.Header().Get("Location"))

	started := decode[startRunResponse](t, rec)
	assert.Equal(t, "nightly-1", started.RunID)
	assert.Equal(t, "/api/runs/nightly-1/events", started.Links.Events)

	res := waitCompleted(t, s, "nightly-1")
	assert.Equal(t, core.StatusCompleted, res.Status)
	assert.Equal(t, 3, res.ChunksCommitted)
	assert.Equal(t, 25, res.RecordsCommitted)

	rec = do(t, s, http.MethodGet, "/api/foods/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 25, decode[map[string]int64](t, rec)["count"])

	rec = do(t, s, http.MethodGet, "/api/foods/F007", "")
	require.Equal(t, http.StatusOK, rec.Code)
	food := decode[core.Food](t, rec)
	assert.Equal(t, "Food 7", food.FoodName)
	assert.Equal(t, 107.0, food.Calories)
	assert.Equal(t, "g", food.Unit)
}

func TestStartRun_GeneratedIDAndQueryParam(t *testing.T) {
	s := newTestServer(t, testConfig(), Options{})

	rec := do(t, s, http.MethodPost, "/api/runs", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[startRunResponse](t, rec).RunID
	assert.Len(t, id, 36)
	waitCompleted(t, s, id)

	rec = do(t, s, http.MethodPost, "/api/runs?run_id=from-query", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "from-query", decode[startRunResponse](t, rec).RunID)
	waitCompleted(t, s, "from-query")
}

func TestStartRun_Duplicate(t *testing.T) {
	s := newTestServer(t, testConfig(), Options{})

	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/runs", `{"run_id":"dup"}`).Code)
	waitCompleted(t, s, "dup")

	rec := do(t, s, http.MethodPost, "/api/runs", `{"run_id":"dup"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "RUN001", decode[ErrorResponse](t, rec).Code)
}

func TestStartRun_BadInput(t *testing.T) {
	s := newTestServer(t, testConfig(), Options{})

	rec := do(t, s, http.MethodPost, "/api/runs", `{"run_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/runs", `{"run_id":"`+strings.Repeat("x", 200)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRuns(t *testing.T) {
	s := newTestServer(t, testConfig(), Options{})

	rec := do(t, s, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[listRunsResponse](t, rec)
	assert.Empty(t, empty.Active)
	assert.NotNil(t, empty.Recent)
	assert.Empty(t, empty.Recent)

	for _, id := range []string{"first", "second"} {
		require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/runs", `{"run_id":"`+id+`"}`).Code)
		waitCompleted(t, s, id)
	}

	rec = do(t, s, http.MethodGet, "/api/runs?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[listRunsResponse](t, rec)
	require.Len(t, got.Recent, 1)
	assert.Equal(t, core.StatusCompleted, got.Recent[0].Status)
	assert.Equal(t, 100, got.Recent[0].Progress)

	rec = do(t, s, http.MethodGet, "/api/runs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ001", decode[ErrorResponse](t, rec).Code)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, testConfig(), Options{})

	tests := []struct {
		method, path, code string
	}{
		{http.MethodGet, "/api/runs/ghost", "RUN004"},
		{http.MethodPost, "/api/runs/ghost/cancel", "RUN004"},
		{http.MethodGet, "/api/runs/ghost/events", "RUN004"},
		{http.MethodGet, "/api/foods/NOPE", "FOOD001"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestRunEvents_CompletedRun(t *testing.T) {
	s := newTestServer(t, testConfig(), Options{})

	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/runs", `{"run_id":"sse"}`).Code)
	waitCompleted(t, s, "sse")

	rec := do(t, s, http.MethodGet, "/api/runs/sse/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: complete")
	assert.Contains(t, body, `"status":"COMPLETED"`)
}

func TestAuthRequiredForTrigger(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := newTestServer(t, cfg, Options{})

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodPost, "/api/runs", "").Code)
	// Reads stay open.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/foods/count", "").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"run_id":"authed"}`))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	waitCompleted(t, s, "authed")
}

func TestHealthAndMetrics(t *testing.T) {
	healthy := true
	opts := Options{
		Health: func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("connection refused")
		},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "nutriload_active_runs 0\n")
		}),
	}
	s := newTestServer(t, testConfig(), opts)

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["busy"])
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/healthz", "").Code)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nutriload_active_runs")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrRunNotFound, http.StatusNotFound},
		{fmt.Errorf("x: %w", core.ErrDuplicateRun), http.StatusConflict},
		{core.ErrRunInProgress, http.StatusTooManyRequests},
		{core.ErrEmptyRunID, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
