package gametest

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/zond/worldtest/geom"
)

// AssertionError is a failed expectation, optionally pinned to a block.
type AssertionError struct {
	Msg string
	// Abs and Rel are the absolute and structure-local position of the failure, if any.
	Abs  *geom.Pos
	Rel  *geom.Pos
	Tick int
	// Cause is set when the assertion was produced from another error, e.g. a timeout.
	Cause error
}

func (a *AssertionError) Error() string {
	if a.Abs != nil {
		return fmt.Sprintf("%s at %v (relative %v) (t=%d)", a.Msg, *a.Abs, *a.Rel, a.Tick)
	}
	return fmt.Sprintf("%s (t=%d)", a.Msg, a.Tick)
}

func (a *AssertionError) Unwrap() error {
	return a.Cause
}

// TimeoutError means the tick budget ran out. Last is the reason the test
// was still waiting, if it was waiting on anything.
type TimeoutError struct {
	Ticks int
	Last  error
}

func (t *TimeoutError) Error() string {
	if t.Last == nil {
		return fmt.Sprintf("timed out after %d ticks", t.Ticks)
	}
	return fmt.Sprintf("timed out after %d ticks: %v", t.Ticks, t.Last)
}

func (t *TimeoutError) Unwrap() error {
	return t.Last
}

// asAssertion turns a timeout into the assertion failure it is reported as.
// When the test was waiting on a positioned assertion the position is kept.
func (t *TimeoutError) asAssertion(tick int) *AssertionError {
	res := &AssertionError{Msg: t.Error(), Tick: tick, Cause: t}
	inner := &AssertionError{}
	if errors.As(t.Last, &inner) {
		res.Abs, res.Rel = inner.Abs, inner.Rel
	}
	return res
}

// ExhaustedAttemptsError is the final failure of a flaky test that can no
// longer reach its required number of successes.
type ExhaustedAttemptsError struct {
	Attempts  int
	Successes int
	Required  int
	Last      error
}

func (e *ExhaustedAttemptsError) Error() string {
	return fmt.Sprintf("passed %d of %d attempts, needed %d: %v", e.Successes, e.Attempts, e.Required, e.Last)
}

func (e *ExhaustedAttemptsError) Unwrap() error {
	return e.Last
}

type fatalError struct {
	error
}

func (f fatalError) Unwrap() error {
	return f.error
}

// Fatal marks err so that a waiting step fails immediately on it instead of
// retrying on the next tick.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fatalError{err}
}

func isFatal(err error) bool {
	return errors.As(err, &fatalError{})
}
