package gametest

import (
	"fmt"
	"strings"

	"github.com/zond/worldtest/lang"
)

// Collector tracks a roster of executions that may grow after creation.
// Listeners subscribed to the collector are subscribed to every execution
// it tracks, including the ones added later.
type Collector struct {
	bus        *Bus
	executions []*Execution
	listeners  []Listener
	onDone     []func()
	fired      bool
}

func NewCollector(bus *Bus, executions ...*Execution) *Collector {
	c := &Collector{bus: bus}
	for _, e := range executions {
		c.Add(e)
	}
	return c
}

// Add tracks e. Listeners that subscribed to e before this call are
// notified about it before the collector is.
func (c *Collector) Add(e *Execution) {
	c.executions = append(c.executions, e)
	c.follow(e)
}

func (c *Collector) follow(e *Execution) {
	if e.Done() {
		return
	}
	for _, l := range c.listeners {
		c.bus.Subscribe(e.ID, l)
	}
	c.bus.Subscribe(e.ID, ListenerFuncs{
		OnPassed: c.finished,
		OnFailed: c.finished,
	})
}

// Subscribe attaches l to every tracked execution that is not done, and to
// every execution tracked in the future.
func (c *Collector) Subscribe(l Listener) {
	c.listeners = append(c.listeners, l)
	for _, e := range c.executions {
		if !e.Done() {
			c.bus.Subscribe(e.ID, l)
		}
	}
}

// Rerun puts next in the slot of old. It reports whether old was tracked.
func (c *Collector) Rerun(old, next *Execution) bool {
	for i, e := range c.executions {
		if e == old {
			c.executions[i] = next
			c.follow(next)
			return true
		}
	}
	return false
}

// OnDone registers fn to run once, after the last tracked execution is done.
func (c *Collector) OnDone(fn func()) {
	c.onDone = append(c.onDone, fn)
}

func (c *Collector) finished(*Execution) {
	if c.fired || !c.Done() {
		return
	}
	c.fired = true
	for _, fn := range c.onDone {
		fn()
	}
}

func (c *Collector) Executions() []*Execution {
	return append([]*Execution(nil), c.executions...)
}

func (c *Collector) Total() int {
	return len(c.executions)
}

func (c *Collector) count(pred func(*Execution) bool) int {
	res := 0
	for _, e := range c.executions {
		if pred(e) {
			res++
		}
	}
	return res
}

func (c *Collector) DoneCount() int {
	return c.count((*Execution).Done)
}

func (c *Collector) PassedCount() int {
	return c.count(func(e *Execution) bool {
		return e.State() == Succeeded
	})
}

func (c *Collector) FailedRequiredCount() int {
	return c.count(func(e *Execution) bool {
		return e.State() == Failed && e.Descriptor.Required()
	})
}

func (c *Collector) FailedOptionalCount() int {
	return c.count(func(e *Execution) bool {
		return e.State() == Failed && !e.Descriptor.Required()
	})
}

// Done is true when every tracked execution is done. An empty collector is never done.
func (c *Collector) Done() bool {
	return len(c.executions) > 0 && c.DoneCount() == len(c.executions)
}

func (c *Collector) HasFailedRequired() bool {
	return c.FailedRequiredCount() > 0
}

// Progress renders one character per execution: ' ' not started, '_'
// running, '+' passed, 'x' failed optional, 'X' failed required.
func (c *Collector) Progress() string {
	buf := &strings.Builder{}
	for _, e := range c.executions {
		switch e.State() {
		case NotStarted:
			buf.WriteByte(' ')
		case Running:
			buf.WriteByte('_')
		case Succeeded:
			buf.WriteByte('+')
		case Failed:
			if e.Descriptor.Required() {
				buf.WriteByte('X')
			} else {
				buf.WriteByte('x')
			}
		}
	}
	return buf.String()
}

func (c *Collector) Summary() string {
	return Summarize(c.Total(), c.FailedRequiredCount(), c.FailedOptionalCount())
}

// Summarize renders the one-line outcome of a run of total tests.
func Summarize(total, failedRequired, failedOptional int) string {
	if total == 0 {
		return "No tests were run."
	}
	if failedRequired == 0 && failedOptional == 0 {
		return fmt.Sprintf("All %s passed :)", lang.Count(total, "test"))
	}
	var parts []string
	if failedRequired > 0 {
		parts = append(parts, fmt.Sprintf("%d required %s", failedRequired, lang.Noun(failedRequired, "test")))
	}
	if failedOptional > 0 {
		parts = append(parts, fmt.Sprintf("%d optional %s", failedOptional, lang.Noun(failedOptional, "test")))
	}
	return fmt.Sprintf("%s failed :(", lang.Enumerator{}.Do(parts...))
}
