package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zond/worldtest"
)

// Counters and histograms of test runs, partitioned by batch.

var (
	TestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worldtest",
		Subsystem: "tests",
		Name:      "results_total",
		Help:      "Final test results",
	}, []string{"batch", "result"})

	TestTicks = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "worldtest",
		Subsystem: "tests",
		Name:      "ticks",
		Help:      "Ticks a test body ran before its final result",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"batch"})

	TestAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "worldtest",
		Subsystem: "tests",
		Name:      "attempts",
		Help:      "Attempts used before a final result",
		Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
	}, []string{"batch"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worldtest",
		Subsystem: "runs",
		Name:      "finished_total",
		Help:      "Finished runs",
	}, []string{"result"})

	LoopTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "worldtest",
		Subsystem: "loop",
		Name:      "ticks_total",
		Help:      "Host loop ticks",
	})

	LoopTickPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "worldtest",
		Subsystem: "loop",
		Name:      "tick_panics_total",
		Help:      "Host loop ticks that panicked",
	})

	LoopTickLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "worldtest",
		Subsystem: "loop",
		Name:      "tick_duration_seconds",
		Help:      "Host loop tick processing duration",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})

	LoopQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "worldtest",
		Subsystem: "loop",
		Name:      "queue_depth",
		Help:      "Commands waiting for the next tick",
	})

	LiveExecutions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "worldtest",
		Subsystem: "ticker",
		Name:      "live_executions",
		Help:      "Executions registered with the ticker",
	})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worldtest",
		Subsystem: "console",
		Name:      "commands_total",
		Help:      "Operator commands by name and outcome",
	}, []string{"command", "outcome"})
)

// Serve exposes /metrics and /healthz on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Printf("writing health response: %v", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics server shutdown: %v", err)
		}
	}()

	log.Printf("Serving metrics on %q", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return worldtest.WithStack(err)
	}
	return nil
}
