// Package report contains the sinks final test results are sent to.
package report

import (
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/gametest"
	"github.com/zond/worldtest/geom"
)

// Result is the sink-independent view of a final test result.
type Result struct {
	Name      string
	Structure string
	Batch     string
	Required  bool
	Passed    bool
	Attempt   int
	Ticks     int
	Duration  time.Duration
	Err       error
	// Pos is the absolute position of the failed assertion, if any.
	Pos *geom.Pos
}

func (r Result) Outcome() string {
	switch {
	case r.Passed:
		return "passed"
	case r.Required:
		return "failed"
	}
	return "failed_optional"
}

func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// FromExecution summarizes a finished execution.
func FromExecution(e *gametest.Execution) Result {
	res := Result{
		Name:      e.Descriptor.Name,
		Structure: e.Descriptor.Structure,
		Batch:     e.Descriptor.Batch,
		Required:  e.Descriptor.Required(),
		Passed:    e.State() == gametest.Succeeded,
		Attempt:   e.Attempt,
		Ticks:     e.Elapsed(),
		Duration:  e.Duration(),
		Err:       e.Err(),
	}
	assertion := &gametest.AssertionError{}
	if errors.As(res.Err, &assertion) && assertion.Abs != nil {
		pos := *assertion.Abs
		res.Pos = &pos
	}
	return res
}

// Tally counts results.
type Tally struct {
	Passed         int
	FailedRequired int
	FailedOptional int
}

func (t *Tally) Add(r Result) {
	switch {
	case r.Passed:
		t.Passed++
	case r.Required:
		t.FailedRequired++
	default:
		t.FailedOptional++
	}
}

func (t Tally) Total() int {
	return t.Passed + t.FailedRequired + t.FailedOptional
}

func (t Tally) Summary() string {
	return gametest.Summarize(t.Total(), t.FailedRequired, t.FailedOptional)
}

// Funcs adapts plain functions to a gametest.Reporter.
type Funcs struct {
	Failed  func(Result)
	Success func(Result)
	Done    func()
}

func (f Funcs) OnTestFailed(e *gametest.Execution) {
	if f.Failed != nil {
		f.Failed(FromExecution(e))
	}
}

func (f Funcs) OnTestSuccess(e *gametest.Execution) {
	if f.Success != nil {
		f.Success(FromExecution(e))
	}
}

func (f Funcs) Finish() {
	if f.Done != nil {
		f.Done()
	}
}

func logError(what string, err error) {
	log.Printf("%s: %v\n%s", what, err, worldtest.StackTrace(err))
}
