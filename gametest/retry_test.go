package gametest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/world"
)

type retryRun struct {
	env       *RunEnv
	rec       *recorder
	collector *Collector
	reporter  *RetryReporter
	hs        *harness
	bodies    int
}

// runFlaky runs a test whose attempts pass or fail according to outcomes.
func runFlaky(t *testing.T, maxAttempts, requiredSuccesses int, outcomes ...bool) *retryRun {
	hs := newHarness(t)
	res := &retryRun{hs: hs, rec: &recorder{}}
	res.env = &RunEnv{
		World:    hs.world,
		Ticker:   hs.ticker,
		Bus:      hs.bus,
		Reporter: res.rec,
		Failures: NewFailureLog(),
	}
	d := Descriptor{
		Name:              "flaky.coin",
		Structure:         "box",
		MaxAttempts:       maxAttempts,
		RequiredSuccesses: requiredSuccesses,
		Body: func(h *Helper) error {
			res.bodies++
			if !outcomes[h.Execution().Attempt-1] {
				return h.Errorf(geom.P(1, 1, 1), "unlucky")
			}
			h.Succeed()
			return nil
		},
	}.withDefaults()
	if err := d.Validate(); err != nil {
		t.Fatal(err)
	}
	e := NewExecution(&d, hs.world, geom.RotateNone, hs.bus)
	res.collector = NewCollector(hs.bus)
	res.reporter = NewRetryReporter(res.env, e, res.collector)
	res.collector.Add(e)
	hs.ticker.Add(e)
	e.Start(geom.P(0, 0, 0), hs.ticker.Now())
	hs.runUntil(50, res.collector.Done)
	return res
}

func TestFlakyEventuallyPasses(t *testing.T) {
	r := runFlaky(t, 3, 2, false, true, true)
	if r.reporter.Attempts() != 3 || r.reporter.Successes() != 2 {
		t.Errorf("got %d attempts and %d successes", r.reporter.Attempts(), r.reporter.Successes())
	}
	if len(r.rec.passed) != 1 || len(r.rec.failed) != 0 {
		t.Fatalf("got %d passed and %d failed reports", len(r.rec.passed), len(r.rec.failed))
	}
	final := r.collector.Executions()[0]
	if final != r.rec.passed[0] || final.Attempt != 3 || final.State() != Succeeded {
		t.Errorf("collector holds %v, want the passing third attempt", final)
	}
	if m, _ := r.hs.world.Marker(final.Structure().MarkerPos()); m.Color != world.Green {
		t.Errorf("got %v marker, want green", m.Color)
	}
	if r.env.Failures.Len() != 0 {
		t.Errorf("flaky pass recorded as failure")
	}
}

func TestFlakyExhausted(t *testing.T) {
	r := runFlaky(t, 2, 2, false, true, true)
	if r.bodies != 1 {
		t.Errorf("got %d attempts run, want 1", r.bodies)
	}
	if len(r.rec.failed) != 1 {
		t.Fatalf("got %d failed reports", len(r.rec.failed))
	}
	exhausted := &ExhaustedAttemptsError{}
	if !errors.As(r.rec.failed[0].Err(), &exhausted) {
		t.Fatalf("got %v, want exhausted attempts", r.rec.failed[0].Err())
	}
	if diff := cmp.Diff(ExhaustedAttemptsError{Attempts: 1, Successes: 0, Required: 2}, *exhausted, cmpIgnoreLast); diff != "" {
		t.Errorf("unexpected counts: %s", diff)
	}
	if r.env.Failures.Len() != 1 {
		t.Errorf("failure not recorded")
	}
}

func TestFlakyFailsAfterTooManyMisses(t *testing.T) {
	r := runFlaky(t, 4, 3, true, false, false, true)
	if r.bodies != 3 || r.reporter.Attempts() != 3 || r.reporter.Successes() != 1 {
		t.Errorf("got %d bodies, %d attempts, %d successes", r.bodies, r.reporter.Attempts(), r.reporter.Successes())
	}
	if len(r.rec.failed) != 1 || !errors.As(r.rec.failed[0].Err(), new(*ExhaustedAttemptsError)) {
		t.Errorf("got %v", r.rec.failed)
	}
}

func TestRequiredFailureIsPainted(t *testing.T) {
	r := runFlaky(t, 1, 1, false)
	failed := r.rec.failed[0]
	s := failed.Structure()
	if m, _ := r.hs.world.Marker(s.MarkerPos()); m.Color != world.Red {
		t.Errorf("got %v status marker, want red", m.Color)
	}
	if m, found := r.hs.world.Marker(s.Absolute(geom.P(1, 1, 1))); !found || m.Text != "unlucky" {
		t.Errorf("got %+v, want diagnostic marker", m)
	}
	if msgs := r.hs.world.Messages(); len(msgs) != 1 {
		t.Errorf("got %q, want one message", msgs)
	}
}

var cmpIgnoreLast = cmp.FilterPath(func(p cmp.Path) bool {
	return p.Last().String() == ".Last"
}, cmp.Ignore())
