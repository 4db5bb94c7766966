package jobs_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/jobs"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/metrics"
)

type fakeExecutor struct {
	reqs []pipeline.Request
	err  error
}

func (f *fakeExecutor) Execute(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{JobID: req.JobID, Source: req.Source, Vertices: 2, Edges: 1}, nil
}

func TestHandleJob_Runs(t *testing.T) {
	exec := &fakeExecutor{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h := jobs.HandleJob(exec, m)

	err := h(context.Background(), []byte("k1"), []byte(`{"id":"j1","source":"s3://graphs/web.txt","iterations":20,"topK":5}`))
	require.NoError(t, err)
	require.Len(t, exec.reqs, 1)
	assert.Equal(t, pipeline.Request{JobID: "j1", Source: "s3://graphs/web.txt", Iterations: 20, TopK: 5}, exec.reqs[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues(jobs.StatusDone)))
}

func TestHandleJob_IDFallsBackToKey(t *testing.T) {
	exec := &fakeExecutor{}
	require.NoError(t, jobs.HandleJob(exec, nil)(context.Background(), []byte("from-key"), []byte(`{"source":"a.txt","iterations":1}`)))
	require.Len(t, exec.reqs, 1)
	assert.Equal(t, "from-key", exec.reqs[0].JobID)
}

func TestHandleJob_RejectsBadMessages(t *testing.T) {
	exec := &fakeExecutor{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h := jobs.HandleJob(exec, m)

	for _, body := range []string{
		`{not json`,
		`{"id":"j","iterations":3}`,
		`{"id":"j","source":"a.txt","iterations":-1}`,
		`{"id":"j","source":"a.txt","iterations":1,"topK":-2}`,
	} {
		assert.NoError(t, h(context.Background(), nil, []byte(body)), body)
	}
	assert.Empty(t, exec.reqs)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues(jobs.StatusRejected)))
}

func TestHandleJob_BadInputIsCommitted(t *testing.T) {
	exec := &fakeExecutor{err: &graph.ParseError{Line: 3, Text: "x", Reason: "not an integer"}}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	err := jobs.HandleJob(exec, m)(context.Background(), nil, []byte(`{"id":"j","source":"a.txt","iterations":1}`))
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues(jobs.StatusFailed)))
}

func TestHandleJob_IOErrorIsReturnedForRetry(t *testing.T) {
	exec := &fakeExecutor{err: apperrors.IO("opening a.txt", os.ErrNotExist)}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	err := jobs.HandleJob(exec, m)(context.Background(), nil, []byte(`{"id":"j","source":"a.txt","iterations":1}`))
	assert.ErrorIs(t, err, apperrors.ErrIO)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues(jobs.StatusRetry)))
}

func TestJobRequestValidate(t *testing.T) {
	assert.NoError(t, jobs.JobRequest{Source: "a", Iterations: 0}.Validate())
	err := jobs.JobRequest{Iterations: jobs.MaxIterations + 1}.Validate()
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "source is required")
	assert.Contains(t, err.Error(), "iterations")
	assert.False(t, errors.Is(jobs.JobRequest{Source: "a"}.Validate(), apperrors.ErrInvalidConfig))
}
