package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/metrics"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.RunsTotal.WithLabelValues(metrics.StatusOK).Inc()
	m.RunsTotal.WithLabelValues(metrics.StatusOK).Inc()
	m.RunsTotal.WithLabelValues(metrics.StatusError).Inc()
	m.RankMass.Set(1)
	m.IterationsTotal.Add(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(metrics.StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(metrics.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RankMass))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.IterationsTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["pagerank_runs_total"])
	assert.True(t, names["pagerank_rank_mass"])
}

func TestNewWithRegistry_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.NewWithRegistry(prometheus.NewRegistry())
		metrics.NewWithRegistry(prometheus.NewRegistry())
	})
}
