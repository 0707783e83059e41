package metrics

import (
	"time"

	"credit-underwriter/internal/predict"
)

// Observer consumes structured inference results and updates the gauges
// and counters derived from them. The inference adapter stays metrics-free
// and the handler composes the two explicitly; there is no interception of
// return values. Gauge updates are last-writer-wins across concurrent
// requests, which is acceptable for a coarse telemetry signal; the
// prometheus gauge itself makes the write atomic.
type Observer struct {
	m *Metrics
}

// NewObserver wraps the metrics set.
func NewObserver(m *Metrics) *Observer {
	return &Observer{m: m}
}

// ObserveBatch records a served batch and refreshes the rolling
// diagnostics gauges.
func (o *Observer) ObserveBatch(res *predict.BatchResult, elapsed time.Duration) {
	o.m.RequestsTotal.Inc()
	o.m.PredictionsTotal.Add(float64(len(res.Predictions)))
	o.m.RequestDuration.Observe(elapsed.Seconds())
	o.m.AvgEntropy.Set(res.AvgEntropy)
	o.m.AvgConfidence.Set(res.AvgConfidence)
}

// ObserveFailure records a rejected or failed request.
func (o *Observer) ObserveFailure() {
	o.m.RequestFailures.Inc()
}

// ObserveLookupMiss records a by-ID miss.
func (o *Observer) ObserveLookupMiss() {
	o.m.RowLookupMisses.Inc()
}
