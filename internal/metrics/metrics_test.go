package metrics

import (
	"testing"
	"time"

	"credit-underwriter/internal/predict"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistryIsolated(t *testing.T) {
	t.Parallel()

	// Two instances on separate registries must not collide.
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())
	require.NotNil(t, a)
	require.NotNil(t, b)

	a.PredictionsTotal.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.PredictionsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PredictionsTotal))
}

func TestObserverBatch(t *testing.T) {
	t.Parallel()

	m := NewWithRegistry(prometheus.NewRegistry())
	o := NewObserver(m)

	res := &predict.BatchResult{
		Predictions:   make([]predict.Prediction, 3),
		AvgEntropy:    0.42,
		AvgConfidence: 0.91,
	}
	o.ObserveBatch(res, 25*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PredictionsTotal))
	assert.Equal(t, 0.42, testutil.ToFloat64(m.AvgEntropy))
	assert.Equal(t, 0.91, testutil.ToFloat64(m.AvgConfidence))

	// The gauges track the most recent batch, not a running mean.
	o.ObserveBatch(&predict.BatchResult{
		Predictions:   make([]predict.Prediction, 1),
		AvgEntropy:    0.1,
		AvgConfidence: 0.5,
	}, time.Millisecond)
	assert.Equal(t, 0.1, testutil.ToFloat64(m.AvgEntropy))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.PredictionsTotal))
}

func TestObserverFailuresAndMisses(t *testing.T) {
	t.Parallel()

	m := NewWithRegistry(prometheus.NewRegistry())
	o := NewObserver(m)

	o.ObserveFailure()
	o.ObserveFailure()
	o.ObserveLookupMiss()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowLookupMisses))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestsTotal))
}
