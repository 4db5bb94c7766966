package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/api"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/results"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
)

type fakeExecutor struct {
	got pipeline.Request
	err error
}

func (f *fakeExecutor) Execute(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{
		JobID:      req.JobID,
		Source:     req.Source,
		Digest:     "abc",
		Iterations: req.Iterations,
		Beta:       0.8,
		Vertices:   2,
		Edges:      1,
		Top:        []rank.Ranked{{Vertex: 2, Rank: 0.7}, {Vertex: 1, Rank: 0.3}},
		Duration:   1500 * time.Millisecond,
	}, nil
}

type fakeRuns struct {
	limit int
	runs  []results.Run
	err   error
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]results.Run, error) {
	f.limit = limit
	return f.runs, f.err
}

type fakeCache struct {
	stats       results.CacheStats
	invalidated bool
}

func (f *fakeCache) Stats() results.CacheStats { return f.stats }

func (f *fakeCache) Invalidate(context.Context) (int64, error) {
	f.invalidated = true
	return 4, nil
}

func serve(h *api.Handler, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestRank(t *testing.T) {
	exec := &fakeExecutor{}
	rec := serve(api.New(exec), http.MethodPost, "/api/v1/rank", `{"id":"j1","source":"g.txt","iterations":3,"topK":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, pipeline.Request{JobID: "j1", Source: "g.txt", Iterations: 3, TopK: 2}, exec.got)

	var resp api.RankResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "j1", resp.JobID)
	assert.Equal(t, int64(1500), resp.DurationMS)
	require.Len(t, resp.Top, 2)
	assert.Equal(t, graph.Vertex(2), resp.Top[0].Vertex)
}

func TestRank_BadRequests(t *testing.T) {
	for _, body := range []string{
		`{`,
		`{"source":"g.txt","iterations":1,"extra":true}`,
		`{"iterations":1}`,
		`{"source":"g.txt","iterations":-4}`,
	} {
		rec := serve(api.New(&fakeExecutor{}), http.MethodPost, "/api/v1/rank", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRank_ErrorStatus(t *testing.T) {
	cases := map[int]error{
		http.StatusUnprocessableEntity: &graph.ParseError{Line: 1, Text: "x", Reason: "bad"},
		http.StatusForbidden:           fmt.Errorf("%w: local sources are disabled", apperrors.ErrSourceDenied),
		http.StatusBadGateway:          apperrors.IO("opening /srv/graphs/g.txt", errors.New("refused")),
		http.StatusInternalServerError: errors.New("boom at /srv/graphs"),
	}
	for status, err := range cases {
		rec := serve(api.New(&fakeExecutor{err: err}), http.MethodPost, "/api/v1/rank", `{"source":"g.txt","iterations":1}`)
		assert.Equal(t, status, rec.Code, err.Error())
		assert.NotContains(t, rec.Body.String(), "/srv/graphs")
	}
}

func newRunner(t *testing.T, cfg config.SourceConfig, opts ...source.Option) *pipeline.Runner {
	t.Helper()
	engine, err := rank.NewEngine(rank.Config{})
	require.NoError(t, err)
	opener, err := source.NewOpener(cfg, opts...)
	require.NoError(t, err)
	return pipeline.New(pipeline.Config{TopK: 10}, engine, opener)
}

func rankBody(src string) string {
	body, _ := json.Marshal(map[string]any{"source": src, "iterations": 1})
	return string(body)
}

func TestRank_LocalFilesOutsideRootAreRefused(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secret.env")
	require.NoError(t, os.WriteFile(secret, []byte("DB_PASSWORD=hunter2\n"), 0o600))
	root := t.TempDir()

	for name, runner := range map[string]*pipeline.Runner{
		"remote only": newRunner(t, config.SourceConfig{}, source.RemoteOnly()),
		"confined":    newRunner(t, config.SourceConfig{LocalRoot: root}),
	} {
		rec := serve(api.New(runner), http.MethodPost, "/api/v1/rank", rankBody(secret))
		assert.Equal(t, http.StatusForbidden, rec.Code, name)
		assert.NotContains(t, rec.Body.String(), "hunter2", name)
		assert.NotContains(t, rec.Body.String(), secret, name)
	}
}

func TestRank_ParseErrorDoesNotEchoInput(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "one.txt"), []byte("DB_PASSWORD=hunter2\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "two.txt"), []byte("1 2\nDB_PASSWORD hunter2\n"), 0o600))
	h := api.New(newRunner(t, config.SourceConfig{LocalRoot: root}))

	rec := serve(h, http.MethodPost, "/api/v1/rank", rankBody("one.txt"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "line 1")
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.NotContains(t, rec.Body.String(), root)

	rec = serve(h, http.MethodPost, "/api/v1/rank", rankBody("two.txt"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "line 2")
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.NotContains(t, rec.Body.String(), "DB_PASSWORD")
}

func TestRank_ConfinedLocalSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "g.txt"), []byte("1 2\n2 3\n3 1\n"), 0o644))
	rec := serve(api.New(newRunner(t, config.SourceConfig{LocalRoot: root})), http.MethodPost, "/api/v1/rank", rankBody("g.txt"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.RankResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Vertices)
	require.Len(t, resp.Top, 3)
}

func TestRuns(t *testing.T) {
	runs := &fakeRuns{runs: []results.Run{{ID: 7, Source: "g.txt"}}}
	h := api.New(&fakeExecutor{}, api.WithRuns(runs))

	rec := serve(h, http.MethodGet, "/api/v1/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, runs.limit)
	assert.Contains(t, rec.Body.String(), `"id":7`)

	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/api/v1/runs?limit=0", "").Code)

	runs.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodGet, "/api/v1/runs", "").Code)
	assert.Equal(t, 20, runs.limit)
}

func TestRuns_Disabled(t *testing.T) {
	rec := serve(api.New(&fakeExecutor{}, api.WithSinks(&results.Sinks{})), http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCacheEndpoints(t *testing.T) {
	cache := &fakeCache{stats: results.CacheStats{Hits: 3, Misses: 1, Breaker: "CLOSED"}}
	h := api.New(&fakeExecutor{}, api.WithCache(cache))

	rec := serve(h, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "75.0%", stats["hit_rate"])
	assert.Equal(t, "CLOSED", stats["breaker"])

	rec = serve(h, http.MethodPost, "/api/v1/cache/invalidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, cache.invalidated)
	assert.Contains(t, rec.Body.String(), `"keys_deleted":4`)
}

func TestCacheEndpoints_Disabled(t *testing.T) {
	h := api.New(&fakeExecutor{})
	assert.Contains(t, serve(h, http.MethodGet, "/api/v1/cache/stats", "").Body.String(), "disabled")
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodPost, "/api/v1/cache/invalidate", "").Code)
}
