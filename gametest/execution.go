package gametest

import (
	"fmt"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/heap"
	"github.com/zond/worldtest/world"
)

// Padding is how far around a structure the world is cleared when it is placed.
const Padding = 2

type State int

const (
	NotStarted State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "not started"
}

type scheduled struct {
	tick int
	fn   func() error
}

// Execution is one attempt at running a test.
type Execution struct {
	ID         string
	Descriptor *Descriptor
	Rotation   geom.Rotation
	Origin     geom.Pos
	// Attempt counts from 1 for the first execution of a descriptor in a run.
	Attempt int

	world     world.World
	bus       *Bus
	structure *world.Structure
	state     State
	err       error

	startTick int64
	clock     int
	bodyTick  int
	schedule  *heap.Heap[scheduled]
	eachTick  []func() error
	sequence  *Sequence

	started time.Time
	stopped time.Time
}

func NewExecution(desc *Descriptor, w world.World, rotation geom.Rotation, bus *Bus) *Execution {
	return &Execution{
		ID:         worldtest.NextUniqueID(),
		Descriptor: desc,
		Rotation:   rotation,
		Attempt:    1,
		world:      w,
		bus:        bus,
		bodyTick:   -1,
		schedule: heap.New(func(a, b scheduled) bool {
			return a.tick < b.tick
		}),
	}
}

// Retry creates the next attempt at the same place with the same rotation.
func (e *Execution) Retry() *Execution {
	res := NewExecution(e.Descriptor, e.world, e.Rotation, e.bus)
	res.Origin = e.Origin
	res.Attempt = e.Attempt + 1
	return res
}

// Start places the structure at origin and begins counting ticks from now.
func (e *Execution) Start(origin geom.Pos, now int64) {
	if e.state != NotStarted {
		return
	}
	e.Origin = origin
	e.startTick = now
	e.started = time.Now()
	e.state = Running
	s, err := e.world.SpawnStructure(e.Descriptor.Structure, origin, e.Rotation, Padding)
	if err != nil {
		e.Fail(errors.Wrapf(err, "placing %q for %q", e.Descriptor.Structure, e.Descriptor.Name))
		return
	}
	e.structure = s
	e.bus.structureLoaded(e)
}

// Tick advances the execution to the given ticker tick.
func (e *Execution) Tick(now int64) {
	if e.state != Running {
		return
	}
	e.clock = int(now - e.startTick)
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			e.Fail(errors.WithStack(err))
		}
	}()
	if e.bodyTick < 0 {
		if e.clock < e.Descriptor.SetupTicks {
			return
		}
		e.bodyTick = e.clock
		if err := e.Descriptor.Body(&Helper{exec: e}); err != nil {
			e.Fail(err)
			return
		}
	}
	elapsed := e.Elapsed()
	for _, fn := range e.eachTick {
		if e.Done() {
			return
		}
		if err := fn(); err != nil {
			e.Fail(err)
		}
	}
	due := e.schedule.PopWhile(func(s scheduled) bool {
		return s.tick <= elapsed
	})
	for _, s := range due {
		if e.Done() {
			return
		}
		if err := s.fn(); err != nil {
			e.Fail(err)
		}
	}
	if e.Done() {
		return
	}
	if e.sequence != nil {
		e.sequence.tick(elapsed)
	}
	if !e.Done() && elapsed >= e.Descriptor.MaxTicks {
		timeout := &TimeoutError{Ticks: e.Descriptor.MaxTicks}
		if e.sequence != nil {
			timeout.Last = e.sequence.LastWait()
		}
		e.Fail(timeout.asAssertion(elapsed))
	}
}

// Elapsed is the number of ticks since the body ran, or 0 before that.
func (e *Execution) Elapsed() int {
	if e.bodyTick < 0 {
		return 0
	}
	return e.clock - e.bodyTick
}

// Clock is the number of ticks since Start.
func (e *Execution) Clock() int {
	return e.clock
}

// Succeed is idempotent, and ignored once the execution is done.
func (e *Execution) Succeed() {
	if e.state != Running {
		return
	}
	e.state = Succeeded
	e.stopped = time.Now()
	e.schedule.Clear()
	e.bus.passed(e)
}

// Fail is ignored once the execution is done.
func (e *Execution) Fail(cause error) {
	if e.state == Succeeded || e.state == Failed {
		return
	}
	if cause == nil {
		cause = errors.New("failed without cause")
	}
	e.state = Failed
	e.err = cause
	e.stopped = time.Now()
	e.schedule.Clear()
	log.Printf("%s attempt %d failed: %v", e.Descriptor.Name, e.Attempt, cause)
	e.bus.failed(e)
}

// replaceErr swaps the final cause after the result has been published.
func (e *Execution) replaceErr(err error) {
	e.err = err
}

func (e *Execution) State() State {
	return e.state
}

func (e *Execution) Done() bool {
	return e.state == Succeeded || e.state == Failed
}

func (e *Execution) Err() error {
	return e.err
}

func (e *Execution) Structure() *world.Structure {
	return e.structure
}

func (e *Execution) World() world.World {
	return e.world
}

// Duration is the wall time the execution took, or has taken so far.
func (e *Execution) Duration() time.Duration {
	switch {
	case e.started.IsZero():
		return 0
	case e.stopped.IsZero():
		return time.Since(e.started)
	}
	return e.stopped.Sub(e.started)
}

// ClearStructure removes the placed structure, if any.
func (e *Execution) ClearStructure() error {
	if e.structure == nil {
		return nil
	}
	if err := e.world.ClearStructure(e.structure); err != nil {
		return errors.WithStack(err)
	}
	e.structure = nil
	return nil
}

func (e *Execution) String() string {
	return fmt.Sprintf("%s#%d(%v)", e.Descriptor.Name, e.Attempt, e.state)
}

func (e *Execution) scheduleAt(tick int, fn func() error) {
	e.schedule.Push(scheduled{tick: tick, fn: fn})
}

func (e *Execution) getSequence() *Sequence {
	if e.sequence == nil {
		e.sequence = newSequence(e)
	}
	return e.sequence
}

func (e *Execution) assertion(rel *geom.Pos, format string, args ...any) *AssertionError {
	res := &AssertionError{
		Msg:  fmt.Sprintf(format, args...),
		Tick: e.Elapsed(),
	}
	if rel != nil && e.structure != nil {
		abs := e.structure.Absolute(*rel)
		relCopy := *rel
		res.Abs, res.Rel = &abs, &relCopy
	}
	return res
}
