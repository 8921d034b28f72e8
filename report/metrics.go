package report

import (
	"github.com/zond/worldtest/gametest"
	"github.com/zond/worldtest/metrics"
)

// MetricsSink exports results as Prometheus metrics.
type MetricsSink struct {
	failedRequired bool
}

func (m *MetricsSink) observe(r Result) {
	metrics.TestsTotal.WithLabelValues(r.Batch, r.Outcome()).Inc()
	metrics.TestTicks.WithLabelValues(r.Batch).Observe(float64(r.Ticks))
	metrics.TestAttempts.WithLabelValues(r.Batch).Observe(float64(r.Attempt))
	if !r.Passed && r.Required {
		m.failedRequired = true
	}
}

func (m *MetricsSink) OnTestFailed(e *gametest.Execution) {
	m.observe(FromExecution(e))
}

func (m *MetricsSink) OnTestSuccess(e *gametest.Execution) {
	m.observe(FromExecution(e))
}

func (m *MetricsSink) Finish() {
	result := "passed"
	if m.failedRequired {
		result = "failed"
	}
	metrics.RunsTotal.WithLabelValues(result).Inc()
	m.failedRequired = false
}
