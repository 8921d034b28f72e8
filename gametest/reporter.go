package gametest

import (
	"github.com/zond/worldtest/world"
)

// Reporter receives final test results.
type Reporter interface {
	OnTestFailed(e *Execution)
	OnTestSuccess(e *Execution)
	// Finish is called once a run is complete.
	Finish()
}

// RunStartReporter is implemented by reporters that want to know when a run starts.
type RunStartReporter interface {
	OnRunStarted(tests, batches int)
}

// Reporters fans out to every contained reporter.
type Reporters []Reporter

func (r Reporters) OnRunStarted(tests, batches int) {
	for _, rep := range r {
		if starter, ok := rep.(RunStartReporter); ok {
			starter.OnRunStarted(tests, batches)
		}
	}
}

func (r Reporters) OnTestFailed(e *Execution) {
	for _, rep := range r {
		rep.OnTestFailed(e)
	}
}

func (r Reporters) OnTestSuccess(e *Execution) {
	for _, rep := range r {
		rep.OnTestSuccess(e)
	}
}

func (r Reporters) Finish() {
	for _, rep := range r {
		rep.Finish()
	}
}

// FailureLog remembers which tests failed in the latest run.
type FailureLog struct {
	order []*Descriptor
	seen  map[string]bool
}

func NewFailureLog() *FailureLog {
	return &FailureLog{seen: map[string]bool{}}
}

func (f *FailureLog) Add(d *Descriptor) {
	if f.seen[d.Name] {
		return
	}
	f.seen[d.Name] = true
	f.order = append(f.order, d)
}

func (f *FailureLog) Reset() {
	f.order = nil
	f.seen = map[string]bool{}
}

// All returns the failed tests in the order they failed. With requiredOnly
// optional tests are skipped.
func (f *FailureLog) All(requiredOnly bool) []*Descriptor {
	var res []*Descriptor
	for _, d := range f.order {
		if !requiredOnly || d.Required() {
			res = append(res, d)
		}
	}
	return res
}

func (f *FailureLog) Len() int {
	return len(f.order)
}

// RunEnv is what a run needs from its surroundings.
type RunEnv struct {
	World    world.World
	Ticker   *Ticker
	Bus      *Bus
	Reporter Reporter
	Failures *FailureLog
}

func (env *RunEnv) runStarted(tests, batches int) {
	if starter, ok := env.Reporter.(RunStartReporter); ok {
		starter.OnRunStarted(tests, batches)
	}
}

func (env *RunEnv) report() Reporter {
	if env.Reporter == nil {
		return Reporters{}
	}
	return env.Reporter
}
