package gametest

import (
	"testing"

	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/world"
	"github.com/zond/worldtest/world/memworld"
)

func testTemplates() world.Templates {
	return world.Templates{}.
		Add(&world.Template{ID: "box", Size: geom.P(3, 3, 3)}).
		Add(&world.Template{ID: "wide", Size: geom.P(7, 2, 4)}).
		Add(&world.Template{
			ID:     "sandbox",
			Size:   geom.P(1, 4, 1),
			Blocks: map[geom.Pos]world.Block{geom.P(0, 3, 0): memworld.Sand, geom.P(0, 0, 0): memworld.Stone},
		})
}

type harness struct {
	t      testing.TB
	world  *memworld.World
	ticker *Ticker
	bus    *Bus
	placed int
}

func newHarness(t testing.TB) *harness {
	return &harness{
		t:      t,
		world:  memworld.New(testTemplates()),
		ticker: NewTicker(),
		bus:    NewBus(),
	}
}

func (h *harness) start(d Descriptor) *Execution {
	if d.Name == "" {
		d.Name = "test.case"
	}
	if d.Structure == "" {
		d.Structure = "box"
	}
	d = d.withDefaults()
	if err := d.Validate(); err != nil {
		h.t.Fatal(err)
	}
	e := NewExecution(&d, h.world, d.Rotation, h.bus)
	h.ticker.Add(e)
	e.Start(geom.P(h.placed*10, 0, 0), h.ticker.Now())
	h.placed++
	return e
}

// tick advances the world and the ticker together, like the host loop does.
func (h *harness) tick() {
	h.world.Tick()
	h.ticker.Tick()
}

// runUntil ticks until done returns true or max ticks have passed, and
// returns the number of ticks it took.
func (h *harness) runUntil(max int, done func() bool) int {
	for i := 0; i < max; i++ {
		if done() {
			return i
		}
		h.tick()
	}
	if !done() {
		h.t.Fatalf("not done after %d ticks", max)
	}
	return max
}

type recorder struct {
	passed   []*Execution
	failed   []*Execution
	finished int
}

func (r *recorder) OnTestFailed(e *Execution) {
	r.failed = append(r.failed, e)
}

func (r *recorder) OnTestSuccess(e *Execution) {
	r.passed = append(r.passed, e)
}

func (r *recorder) Finish() {
	r.finished++
}
