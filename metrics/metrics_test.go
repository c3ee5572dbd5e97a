package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Register(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg), "double registration must fail")

	m.IncRetrievalCall(CallPrimary)
	m.IncRetrievalCall(CallFallback)
	m.IncRetrievalCall(CallFallback)
	m.IncPrediction(StatusFailure)
	m.ObserveRankDuration(0.001)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.retrievalCalls.WithLabelValues(CallPrimary)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.retrievalCalls.WithLabelValues(CallFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues(StatusFailure)))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["shoprank_retrieval_calls_total"])
	assert.True(t, names["shoprank_rank_duration_seconds"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRetrievalCall(CallPrimary)
		m.IncRetrievalError()
		m.IncPrediction(StatusSuccess)
		m.IncFilterInvalid()
		m.IncTelemetryDropped()
		m.ObserveRankDuration(1)
	})
}
