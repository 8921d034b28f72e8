package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(TestsTotal.WithLabelValues("b", "passed"))
	TestsTotal.WithLabelValues("b", "passed").Inc()
	if got := testutil.ToFloat64(TestsTotal.WithLabelValues("b", "passed")); got != before+1 {
		t.Errorf("got %v, want %v", got, before+1)
	}
	LoopTicksTotal.Inc()
	LoopTickLatency.Observe(0.001)
	TestTicks.WithLabelValues("b").Observe(12)
	TestAttempts.WithLabelValues("b").Observe(2)
}

func TestGaugesExported(t *testing.T) {
	LiveExecutions.Set(3)
	expected := `
# HELP worldtest_ticker_live_executions Executions registered with the ticker
# TYPE worldtest_ticker_live_executions gauge
worldtest_ticker_live_executions 3
`
	if err := testutil.CollectAndCompare(LiveExecutions, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}
