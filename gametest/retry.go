package gametest

import (
	"fmt"
	"log"

	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/lang"
	"github.com/zond/worldtest/world"
)

const maxSayLength = 200

// RetryReporter follows all attempts at one descriptor. It reruns flaky
// tests while they can still reach their required successes, paints status
// markers, and forwards final results to the run's reporter.
type RetryReporter struct {
	env        *RunEnv
	desc       *Descriptor
	collectors []*Collector
	attempts   int
	successes  int
}

// NewRetryReporter subscribes a new reporter to e. Reruns replace e in collectors.
func NewRetryReporter(env *RunEnv, e *Execution, collectors ...*Collector) *RetryReporter {
	r := &RetryReporter{
		env:        env,
		desc:       e.Descriptor,
		collectors: collectors,
	}
	env.Bus.Subscribe(e.ID, r)
	return r
}

func (r *RetryReporter) Attempts() int {
	return r.attempts
}

func (r *RetryReporter) Successes() int {
	return r.successes
}

func (r *RetryReporter) StructureLoaded(e *Execution) {
	r.attempts++
	color := world.Neutral
	if r.attempts > 1 {
		color = world.Yellow
	}
	r.env.World.PaintMarker(world.Marker{
		Pos:   e.Structure().MarkerPos(),
		Color: color,
		Text:  e.Descriptor.Name,
	})
}

func (r *RetryReporter) Passed(e *Execution) {
	r.attempts = max(r.attempts, e.Attempt)
	r.successes++
	switch {
	case !r.desc.Flaky():
		r.passed(e, fmt.Sprintf("%s passed", r.desc.Name))
	case r.successes >= r.desc.RequiredSuccesses:
		r.passed(e, fmt.Sprintf("%s passed %d of %d attempts", r.desc.Name, r.successes, r.attempts))
	case r.attempts >= r.desc.MaxAttempts:
		r.failed(e, r.exhausted(e))
	default:
		log.Printf("%s passed attempt %d, %d of %d required successes", r.desc.Name, r.attempts, r.successes, r.desc.RequiredSuccesses)
		r.rerun(e)
	}
}

func (r *RetryReporter) Failed(e *Execution) {
	r.attempts = max(r.attempts, e.Attempt)
	switch {
	case !r.desc.Flaky():
		r.failed(e, e.Err())
	case r.desc.MaxAttempts-r.attempts+r.successes >= r.desc.RequiredSuccesses && r.attempts < r.desc.MaxAttempts:
		log.Printf("%s failed attempt %d, retrying", r.desc.Name, r.attempts)
		r.rerun(e)
	default:
		r.failed(e, r.exhausted(e))
	}
}

func (r *RetryReporter) exhausted(e *Execution) error {
	return &ExhaustedAttemptsError{
		Attempts:  r.attempts,
		Successes: r.successes,
		Required:  r.desc.RequiredSuccesses,
		Last:      e.Err(),
	}
}

func (r *RetryReporter) rerun(old *Execution) {
	if err := old.ClearStructure(); err != nil {
		log.Printf("clearing %v: %v", old, worldtest.StackTrace(err))
	}
	next := old.Retry()
	r.env.Bus.Subscribe(next.ID, r)
	for _, c := range r.collectors {
		c.Rerun(old, next)
	}
	r.env.Ticker.Add(next)
	next.Start(old.Origin, r.env.Ticker.Now())
}

func (r *RetryReporter) passed(e *Execution, msg string) {
	log.Print(msg)
	if s := e.Structure(); s != nil {
		r.env.World.PaintMarker(world.Marker{
			Pos:   s.MarkerPos(),
			Color: world.Green,
			Text:  msg,
		})
	}
	r.env.report().OnTestSuccess(e)
}

func (r *RetryReporter) failed(e *Execution, err error) {
	if err != e.Err() {
		e.replaceErr(err)
	}
	color := world.Red
	if !r.desc.Required() {
		color = world.Orange
	}
	if s := e.Structure(); s != nil {
		r.env.World.PaintMarker(world.Marker{
			Pos:   s.MarkerPos(),
			Color: color,
			Text:  r.desc.Name,
		})
	}
	assertion := &AssertionError{}
	if errors.As(err, &assertion) && assertion.Abs != nil {
		r.env.World.PaintMarker(world.Marker{
			Pos:   *assertion.Abs,
			Color: color,
			Text:  assertion.Msg,
		})
	}
	kind := "required"
	if !r.desc.Required() {
		kind = "optional"
	}
	r.env.World.Say(lang.Truncate(fmt.Sprintf("%s test %s failed: %v", lang.Capitalize(kind), r.desc.Name, err), maxSayLength))
	if r.env.Failures != nil {
		r.env.Failures.Add(r.desc)
	}
	r.env.report().OnTestFailed(e)
}
