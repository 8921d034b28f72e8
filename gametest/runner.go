package gametest

import (
	"log"

	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/lang"
)

// BatchRunner runs batches strictly one after another. Executions within a
// batch run concurrently, multiplexed by the ticker.
type BatchRunner struct {
	env        *RunEnv
	batches    []Batch
	rotation   geom.Rotation
	layout     *Layout
	roster     *Collector
	executions [][]*Execution
	reporters  [][]*RetryReporter
	current    int
	onFinished []func()
	finished   bool
}

// NewBatchRunner creates every execution up front so the whole roster is
// known before the first batch starts. rotation is composed with the
// rotation of every descriptor.
func NewBatchRunner(env *RunEnv, batches []Batch, origin geom.Pos, rotation geom.Rotation, rowWidth int) *BatchRunner {
	b := &BatchRunner{
		env:      env,
		batches:  batches,
		rotation: rotation,
		layout:   NewLayout(origin, rowWidth),
		roster:   NewCollector(env.Bus),
		current:  -1,
	}
	for _, batch := range batches {
		var execs []*Execution
		var reporters []*RetryReporter
		for _, desc := range batch.Descriptors {
			e := NewExecution(desc, env.World, rotation.Compose(desc.Rotation), env.Bus)
			reporters = append(reporters, NewRetryReporter(env, e, b.roster))
			b.roster.Add(e)
			execs = append(execs, e)
		}
		b.executions = append(b.executions, execs)
		b.reporters = append(b.reporters, reporters)
	}
	return b
}

// Executions returns the roster of every batch, in batch order.
func (b *BatchRunner) Executions() []*Execution {
	return b.roster.Executions()
}

// Roster tracks the current execution of every test in the run, including
// the ones in batches that have not started yet.
func (b *BatchRunner) Roster() *Collector {
	return b.roster
}

// OnFinished registers fn to run after the last batch is done.
func (b *BatchRunner) OnFinished(fn func()) {
	b.onFinished = append(b.onFinished, fn)
}

func (b *BatchRunner) Finished() bool {
	return b.finished
}

// CurrentBatch is the index of the running batch, or -1 before Start.
func (b *BatchRunner) CurrentBatch() int {
	return b.current
}

func (b *BatchRunner) Start() {
	log.Printf("running %s in %s", lang.Count(b.roster.Total(), "test"), lang.Count(len(b.batches), "batch"))
	b.runBatch(0)
}

func (b *BatchRunner) runBatch(i int) {
	for i < len(b.batches) && len(b.executions[i]) == 0 {
		i++
	}
	b.current = i
	if i >= len(b.batches) {
		b.finish()
		return
	}
	batch := b.batches[i]
	execs := b.executions[i]
	log.Printf("running batch %s with %s", batch.Name, lang.Count(len(execs), "test"))
	if batch.Before != nil {
		batch.Before(b.env.World)
	}
	collector := NewCollector(b.env.Bus)
	collector.OnDone(func() {
		log.Printf("batch %s done: %s", batch.Name, collector.Summary())
		if batch.After != nil {
			batch.After(b.env.World)
		}
		b.runBatch(i + 1)
	})
	origins := make([]geom.Pos, len(execs))
	for idx, e := range execs {
		footprint := geom.P(1, 1, 1)
		if tmpl, err := b.env.World.Template(e.Descriptor.Structure); err == nil {
			footprint = tmpl.Footprint(e.Rotation)
		}
		origins[idx] = b.layout.Place(footprint)
		b.reporters[i][idx].collectors = append(b.reporters[i][idx].collectors, collector)
		collector.Add(e)
	}
	for idx, e := range execs {
		b.env.Ticker.Add(e)
		e.Start(origins[idx], b.env.Ticker.Now())
	}
}

func (b *BatchRunner) finish() {
	if b.finished {
		return
	}
	b.finished = true
	for _, fn := range b.onFinished {
		fn()
	}
}
