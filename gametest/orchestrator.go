package gametest

import (
	"log"

	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/world"
)

const (
	DefaultRowWidth    = 8
	DefaultClearRadius = 200
)

type Options struct {
	Registry *Registry
	World    world.World
	Ticker   *Ticker
	// Bus defaults to a new bus.
	Bus      *Bus
	Reporter Reporter
	// Origin is where runs started without an explicit origin are placed.
	Origin      geom.Pos
	Rotation    geom.Rotation
	RowWidth    int
	ClearRadius int
}

// Orchestrator is the entry point for operators: it starts runs, clears
// the test area, and remembers which tests failed in the latest run.
type Orchestrator struct {
	opts     Options
	env      *RunEnv
	failures *FailureLog
	current  *Collector
	runner   *BatchRunner
	finished []func(*Collector)
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Ticker == nil {
		opts.Ticker = NewTicker()
	}
	if opts.Bus == nil {
		opts.Bus = NewBus()
	}
	if opts.RowWidth < 1 {
		opts.RowWidth = DefaultRowWidth
	}
	if opts.ClearRadius < 1 {
		opts.ClearRadius = DefaultClearRadius
	}
	o := &Orchestrator{
		opts:     opts,
		failures: NewFailureLog(),
	}
	o.env = &RunEnv{
		World:    opts.World,
		Ticker:   opts.Ticker,
		Bus:      opts.Bus,
		Reporter: opts.Reporter,
		Failures: o.failures,
	}
	return o
}

func (o *Orchestrator) Registry() *Registry {
	return o.opts.Registry
}

func (o *Orchestrator) Ticker() *Ticker {
	return o.opts.Ticker
}

func (o *Orchestrator) World() world.World {
	return o.opts.World
}

// Origin is where RunAll and RunFailed place their runs.
func (o *Orchestrator) Origin() geom.Pos {
	return o.opts.Origin
}

func (o *Orchestrator) ClearRadius() int {
	return o.opts.ClearRadius
}

// OnRunFinished registers fn to run with the roster of every run that finishes.
func (o *Orchestrator) OnRunFinished(fn func(roster *Collector)) {
	o.finished = append(o.finished, fn)
}

// ErrRunInProgress is returned when a single test is started while another
// run is still live.
var ErrRunInProgress = errors.New("a run is in progress, stop it first")

// RunTest runs a single test at origin with the default rotation. It refuses
// to start while another run is live.
func (o *Orchestrator) RunTest(desc *Descriptor, origin geom.Pos) (*Execution, error) {
	if o.Running() {
		return nil, ErrRunInProgress
	}
	o.Stop()
	o.failures.Reset()
	e := NewExecution(desc, o.env.World, o.opts.Rotation.Compose(desc.Rotation), o.env.Bus)
	roster := NewCollector(o.env.Bus)
	NewRetryReporter(o.env, e, roster)
	roster.Add(e)
	roster.OnDone(func() {
		o.runFinished(roster)
	})
	o.current, o.runner = roster, nil
	o.env.runStarted(1, 1)
	o.env.Ticker.Add(e)
	e.Start(origin, o.env.Ticker.Now())
	return e, nil
}

func (o *Orchestrator) GroupTestsIntoBatches(descs []*Descriptor) []Batch {
	return GroupIntoBatches(descs, o.opts.Registry)
}

// RunTestBatches starts running batches and returns the roster of the run.
// Without batches nothing is started.
func (o *Orchestrator) RunTestBatches(batches []Batch, origin geom.Pos, rotation geom.Rotation, rowWidth int) []*Execution {
	if len(batches) == 0 {
		return nil
	}
	o.failures.Reset()
	runner := NewBatchRunner(o.env, batches, origin, rotation, rowWidth)
	roster := runner.Roster()
	runner.OnFinished(func() {
		o.runFinished(roster)
	})
	o.current, o.runner = roster, runner
	o.env.runStarted(roster.Total(), len(batches))
	runner.Start()
	return runner.Executions()
}

// RunAll clears the test area and runs every test matching selector.
func (o *Orchestrator) RunAll(selector string) ([]*Execution, error) {
	descs := o.opts.Registry.Matching(selector)
	if len(descs) == 0 {
		return nil, errors.Errorf("no tests match %q", selector)
	}
	return o.runDescriptors(descs), nil
}

// RunFailed reruns the tests that failed in the latest run.
func (o *Orchestrator) RunFailed(requiredOnly bool) ([]*Execution, error) {
	descs := o.failures.All(requiredOnly)
	if len(descs) == 0 {
		return nil, errors.New("no failed tests to rerun")
	}
	return o.runDescriptors(descs), nil
}

func (o *Orchestrator) runDescriptors(descs []*Descriptor) []*Execution {
	o.ClearAllTests(o.opts.Origin, o.opts.ClearRadius)
	return o.RunTestBatches(o.GroupTestsIntoBatches(descs), o.opts.Origin, o.opts.Rotation, o.opts.RowWidth)
}

// ClearAllTests drops every live execution and removes every structure and
// marker within radius of origin. It returns the number of structures removed.
func (o *Orchestrator) ClearAllTests(origin geom.Pos, radius int) int {
	o.Stop()
	box := geom.BoxOf(origin, origin).Inflate(radius)
	removed := 0
	for _, s := range o.env.World.StructuresWithin(box) {
		if err := o.env.World.ClearStructure(s); err != nil {
			log.Printf("clearing %v: %v", s, worldtest.StackTrace(err))
			continue
		}
		removed++
	}
	o.env.World.ClearMarkers(box)
	return removed
}

// Stop abandons the current run, leaving its structures in place.
func (o *Orchestrator) Stop() {
	for _, e := range o.env.Ticker.Executions() {
		o.env.Bus.Forget(e.ID)
	}
	o.env.Ticker.Clear()
	o.current, o.runner = nil, nil
}

// Current is the roster of the latest run that has not been stopped or cleared.
func (o *Orchestrator) Current() *Collector {
	return o.current
}

// Batch returns the index of the running batch and the number of batches
// in the current run.
func (o *Orchestrator) Batch() (index, total int) {
	if o.runner == nil {
		if o.current != nil {
			return 0, 1
		}
		return -1, 0
	}
	return o.runner.CurrentBatch(), len(o.runner.batches)
}

func (o *Orchestrator) Running() bool {
	return o.current != nil && !o.current.Done()
}

// Progress renders the progress of the current run, or "" if there is none.
func (o *Orchestrator) Progress() string {
	if o.current == nil {
		return ""
	}
	return o.current.Progress()
}

// LastFailed returns the tests that failed in the latest run.
func (o *Orchestrator) LastFailed() []*Descriptor {
	return o.failures.All(false)
}

func (o *Orchestrator) runFinished(roster *Collector) {
	if o.current != roster {
		return
	}
	summary := roster.Summary()
	log.Print(summary)
	o.env.World.Say(summary)
	if o.env.Reporter != nil {
		o.env.Reporter.Finish()
	}
	for _, fn := range o.finished {
		fn(roster)
	}
}
