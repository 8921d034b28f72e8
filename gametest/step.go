package gametest

import (
	"fmt"

	"github.com/pkg/errors"
)

type stepKind int

const (
	stepDone stepKind = iota
	stepWaiting
	stepFailed
)

// StepResult is the outcome of running one sequence step for one tick.
type StepResult struct {
	kind stepKind
	err  error
}

func Done() StepResult {
	return StepResult{kind: stepDone}
}

// Wait keeps the step at the head of its sequence until the next tick.
func Wait(format string, args ...any) StepResult {
	return StepResult{kind: stepWaiting, err: errors.Errorf(format, args...)}
}

func Fail(cause error) StepResult {
	if cause == nil {
		cause = errors.New("step failed")
	}
	return StepResult{kind: stepFailed, err: cause}
}

// Check is Done for a nil error and Fail otherwise.
func Check(err error) StepResult {
	if err != nil {
		return Fail(err)
	}
	return Done()
}

// Until is Done for a nil error and Wait otherwise, unless err is Fatal.
func Until(err error) StepResult {
	switch {
	case err == nil:
		return Done()
	case isFatal(err):
		return Fail(err)
	}
	return StepResult{kind: stepWaiting, err: err}
}

func (s StepResult) IsDone() bool {
	return s.kind == stepDone
}

func (s StepResult) Waiting() bool {
	return s.kind == stepWaiting
}

// Err is the failure cause, or the reason for waiting.
func (s StepResult) Err() error {
	return s.err
}

func (s StepResult) String() string {
	switch s.kind {
	case stepWaiting:
		return fmt.Sprintf("waiting: %v", s.err)
	case stepFailed:
		return fmt.Sprintf("failed: %v", s.err)
	}
	return "done"
}
