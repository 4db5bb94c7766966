package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/health"
)

func up(ctx context.Context) error   { return nil }
func down(ctx context.Context) error { return errors.New("connection refused") }

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		required func(context.Context) error
		optional func(context.Context) error
		want     health.Status
	}{
		{"all up", up, up, health.StatusUp},
		{"optional down", up, down, health.StatusDegraded},
		{"required down", down, up, health.StatusDown},
		{"both down", down, down, health.StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := health.NewChecker()
			c.Register("kafka", health.Ping(tt.required))
			c.RegisterOptional("redis", health.Ping(tt.optional))

			report := c.Run(context.Background())
			assert.Equal(t, tt.want, report.Status)
			require.Len(t, report.Components, 2)
			assert.NotEmpty(t, report.Components["kafka"].Latency)
		})
	}
}

func TestReadyHandler(t *testing.T) {
	c := health.NewChecker()
	c.RegisterOptional("postgres", health.Ping(down))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, health.StatusDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Components["postgres"].Message)

	c.Register("kafka", health.Ping(down))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	health.NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
