package gametest

import (
	"github.com/pkg/errors"
)

type step struct {
	// delay, when positive, is the exact number of ticks after the previous
	// step that this step must complete at.
	delay int
	body  func(since int) StepResult
}

// Sequence is an ordered queue of steps run against one execution. Each tick
// only the head step runs. Builders append and return the sequence so calls
// can be chained.
type Sequence struct {
	exec     *Execution
	steps    []step
	last     int
	lastWait error
	terminal func()
}

func newSequence(e *Execution) *Sequence {
	return &Sequence{
		exec: e,
		last: e.Elapsed(),
	}
}

func (s *Sequence) push(delay int, body func(since int) StepResult) *Sequence {
	s.steps = append(s.steps, step{delay: delay, body: body})
	return s
}

// Then appends a raw step.
func (s *Sequence) Then(body func() StepResult) *Sequence {
	return s.push(0, func(int) StepResult {
		return body()
	})
}

// WaitUntil retries fn every tick until it returns nil.
func (s *Sequence) WaitUntil(fn func() error) *Sequence {
	return s.push(0, func(int) StepResult {
		return Until(fn())
	})
}

// WaitUntilAfter is WaitUntil, but fn must first succeed exactly delay ticks
// after the previous step.
func (s *Sequence) WaitUntilAfter(delay int, fn func() error) *Sequence {
	return s.push(delay, func(int) StepResult {
		return Until(fn())
	})
}

// ExecuteAfter waits delay ticks after the previous step and then runs fn once.
func (s *Sequence) ExecuteAfter(delay int, fn func() error) *Sequence {
	return s.push(delay, func(since int) StepResult {
		if since < delay {
			return Wait("%d ticks left before next step", delay-since)
		}
		return Check(fn())
	})
}

// ExecuteFor runs fn every tick for duration ticks, counted from the first
// tick the step runs.
func (s *Sequence) ExecuteFor(duration int, fn func() error) *Sequence {
	first := -1
	return s.push(0, func(int) StepResult {
		now := s.exec.Elapsed()
		if first < 0 {
			first = now
		}
		if ran := now - first; ran < duration {
			if err := fn(); err != nil {
				return Fail(err)
			}
			return Wait("running for %d more ticks", duration-ran)
		}
		return Done()
	})
}

func (s *Sequence) Idle(delay int) *Sequence {
	return s.ExecuteAfter(delay, func() error { return nil })
}

func (s *Sequence) Execute(fn func() error) *Sequence {
	return s.ExecuteAfter(0, fn)
}

// Trigger appends a step that completes on the tick the returned condition is triggered.
func (s *Sequence) Trigger() *Condition {
	c := &Condition{exec: s.exec, at: -1}
	s.push(0, func(int) StepResult {
		if c.at == s.exec.Elapsed() {
			return Done()
		}
		return Wait("condition not triggered this tick")
	})
	return c
}

// SucceedFinally succeeds the test on the tick the last step completes.
func (s *Sequence) SucceedFinally() {
	s.terminal = s.exec.Succeed
}

// FailFinally fails the test with the cause returned by causeFn on the tick
// the last step completes.
func (s *Sequence) FailFinally(causeFn func() error) {
	s.terminal = func() {
		cause := causeFn()
		if cause == nil {
			cause = errors.New("sequence finished")
		}
		s.exec.Fail(cause)
	}
}

// Pending is the number of steps not yet completed.
func (s *Sequence) Pending() int {
	return len(s.steps)
}

// LastWait is why the head step was still waiting on its last run.
func (s *Sequence) LastWait() error {
	return s.lastWait
}

func (s *Sequence) tick(now int) {
	if s.exec.Done() {
		return
	}
	if len(s.steps) > 0 {
		head := s.steps[0]
		since := now - s.last
		res := head.body(since)
		switch res.kind {
		case stepWaiting:
			s.lastWait = res.err
			return
		case stepFailed:
			s.exec.Fail(res.err)
			return
		}
		if head.delay > 0 && since != head.delay {
			s.exec.Fail(s.exec.assertion(nil, "succeeded in invalid tick: expected %d, got %d", s.last+head.delay, now))
			return
		}
		s.steps = s.steps[1:]
		s.last = now
		s.lastWait = nil
	}
	if len(s.steps) == 0 && s.terminal != nil {
		terminal := s.terminal
		s.terminal = nil
		terminal()
	}
}

// Condition is triggered by test code, e.g. from an event callback.
type Condition struct {
	exec *Execution
	at   int
}

func (c *Condition) Trigger() {
	c.at = c.exec.Elapsed()
}
