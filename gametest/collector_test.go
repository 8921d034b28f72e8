package gametest

import (
	"errors"
	"testing"

	"github.com/zond/worldtest/geom"
)

func TestCollectorProgress(t *testing.T) {
	hs := newHarness(t)
	mk := func(name string, optional bool) *Execution {
		d := Descriptor{Name: name, Structure: "box", Optional: optional, Body: func(*Helper) error { return nil }}.withDefaults()
		return NewExecution(&d, hs.world, geom.RotateNone, hs.bus)
	}
	pass, failReq, failOpt, running, idle := mk("a", false), mk("b", false), mk("c", true), mk("d", false), mk("e", false)
	c := NewCollector(hs.bus, pass, failReq, failOpt, running, idle)
	doneCalls := 0
	c.OnDone(func() { doneCalls++ })
	for i, e := range []*Execution{pass, failReq, failOpt, running} {
		e.Start(geom.P(i*10, 0, 0), 0)
	}
	pass.Succeed()
	failReq.Fail(errors.New("req"))
	failOpt.Fail(errors.New("opt"))
	if got := c.Progress(); got != "+Xx_ " {
		t.Errorf("got %q", got)
	}
	if c.DoneCount() != 3 || c.FailedRequiredCount() != 1 || c.FailedOptionalCount() != 1 || c.PassedCount() != 1 {
		t.Errorf("unexpected counts %d %d %d %d", c.DoneCount(), c.FailedRequiredCount(), c.FailedOptionalCount(), c.PassedCount())
	}
	if c.Done() || doneCalls != 0 {
		t.Errorf("done too early")
	}
	running.Succeed()
	idle.Start(geom.P(40, 0, 0), 0)
	idle.Succeed()
	if !c.Done() || doneCalls != 1 {
		t.Errorf("got done=%v after %d calls", c.Done(), doneCalls)
	}
	if got, want := c.Summary(), "1 required test and 1 optional test failed :("; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCollectorRetroactiveListeners(t *testing.T) {
	hs := newHarness(t)
	c := NewCollector(hs.bus)
	first := hs.start(Descriptor{Body: func(*Helper) error { return nil }})
	c.Add(first)
	passed := 0
	c.Subscribe(ListenerFuncs{OnPassed: func(*Execution) { passed++ }})
	second := hs.start(Descriptor{Body: func(*Helper) error { return nil }})
	c.Add(second)
	first.Succeed()
	second.Succeed()
	if passed != 2 {
		t.Errorf("got %d passes, want 2", passed)
	}
	if got := c.Summary(); got != "All 2 tests passed :)" {
		t.Errorf("got %q", got)
	}
}

func TestCollectorRerun(t *testing.T) {
	hs := newHarness(t)
	c := NewCollector(hs.bus)
	old := hs.start(Descriptor{Body: func(*Helper) error { return nil }})
	hs.bus.Subscribe(old.ID, ListenerFuncs{OnFailed: func(e *Execution) {
		next := e.Retry()
		if !c.Rerun(e, next) {
			t.Errorf("rerun of tracked execution not found")
		}
	}})
	c.Add(old)
	done := false
	c.OnDone(func() { done = true })
	old.Fail(errors.New("first"))
	if done || c.Total() != 1 || c.Executions()[0].Attempt != 2 {
		t.Errorf("rerun did not replace the slot: done=%v %v", done, c.Executions())
	}
	if got := c.Progress(); got != " " {
		t.Errorf("got %q", got)
	}
}

func TestSummarize(t *testing.T) {
	for _, tc := range []struct {
		total, required, optional int
		want                      string
	}{
		{0, 0, 0, "No tests were run."},
		{1, 0, 0, "All 1 test passed :)"},
		{5, 0, 0, "All 5 tests passed :)"},
		{5, 2, 0, "2 required tests failed :("},
		{5, 1, 1, "1 required test and 1 optional test failed :("},
	} {
		if got := Summarize(tc.total, tc.required, tc.optional); got != tc.want {
			t.Errorf("Summarize(%d, %d, %d) = %q, want %q", tc.total, tc.required, tc.optional, got, tc.want)
		}
	}
}
