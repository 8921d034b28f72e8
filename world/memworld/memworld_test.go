package memworld

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/world"
)

func testTemplates() world.Templates {
	return world.Templates{}.Add(&world.Template{
		ID:   "tower",
		Size: geom.P(1, 4, 2),
		Blocks: map[geom.Pos]world.Block{
			geom.P(0, 3, 0): Sand,
			geom.P(0, 0, 1): Stone,
		},
		Entities: []world.TemplateEntity{{Kind: "chicken", Pos: geom.P(0, 1, 1)}},
	})
}

func TestSpawnAndClear(t *testing.T) {
	w := New(testTemplates())
	s, err := w.SpawnStructure("tower", geom.P(0, 0, 0), geom.Clockwise90, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := w.Block(s.Absolute(geom.P(0, 3, 0))); got != Sand {
		t.Errorf("got %v, want sand", got)
	}
	if got := w.Block(geom.P(0, 0, 0)); got != Stone {
		t.Errorf("got %v at rotated stone position, want stone", got)
	}
	if ents := w.Entities(s.Box()); len(ents) != 1 || ents[0].Kind != "chicken" {
		t.Errorf("got %+v, want one chicken", ents)
	}
	if _, err := w.SpawnStructure("tower", geom.P(1, 0, 0), geom.RotateNone, 2); err == nil {
		t.Errorf("wanted overlap error")
	}
	if got := w.StructuresWithin(geom.SizedBox(geom.P(-5, -5, -5), geom.P(10, 10, 10))); len(got) != 1 {
		t.Errorf("got %v structures, want 1", len(got))
	}
	w.PaintMarker(world.Marker{Pos: s.MarkerPos(), Color: world.Green})
	if err := w.ClearStructure(s); err != nil {
		t.Fatal(err)
	}
	if got := w.Block(s.Absolute(geom.P(0, 3, 0))); got != world.Air {
		t.Errorf("got %v after clear, want air", got)
	}
	if ents := w.Entities(s.PaddedBox()); len(ents) != 0 {
		t.Errorf("got %+v after clear, want none", ents)
	}
	if _, found := w.Marker(s.MarkerPos()); found {
		t.Errorf("marker survived clearing")
	}
	if err := w.ClearStructure(s); err == nil {
		t.Errorf("wanted error clearing twice")
	}
}

func TestFallingBlocks(t *testing.T) {
	w := New(world.Templates{})
	w.SetBlock(geom.P(0, 0, 0), Stone)
	w.SetBlock(geom.P(0, 3, 0), Sand)
	w.SetBlock(geom.P(0, 4, 0), Gravel)
	var trace []world.Block
	for i := 0; i < 4; i++ {
		w.Tick()
		trace = append(trace, w.Block(geom.P(0, 1, 0)))
	}
	if diff := cmp.Diff([]world.Block{world.Air, Sand, Sand, Sand}, trace); diff != "" {
		t.Errorf("unexpected sand trace: %s", diff)
	}
	if got := w.Block(geom.P(0, 2, 0)); got != Gravel {
		t.Errorf("got %v, want gravel stacked on sand", got)
	}
}

func TestLampDelay(t *testing.T) {
	w := New(world.Templates{})
	w.SetBlock(geom.P(0, 0, 0), Lamp)
	w.SetBlock(geom.P(1, 0, 0), LeverOn)
	if got := w.Block(geom.P(0, 0, 0)); got != Lamp {
		t.Errorf("got %v before tick, want unlit", got)
	}
	w.Tick()
	if got := w.Block(geom.P(0, 0, 0)); got != LampLit {
		t.Errorf("got %v after tick, want lit", got)
	}
	w.SetBlock(geom.P(1, 0, 0), LeverOff)
	w.Tick()
	if got := w.Block(geom.P(0, 0, 0)); got != Lamp {
		t.Errorf("got %v, want unlit again", got)
	}
}

func TestWalking(t *testing.T) {
	w := New(world.Templates{})
	ent, err := w.SpawnEntity("zombie", geom.P(0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	target := geom.P(2, 0, -1)
	ent.Target = &target
	if err := w.UpdateEntity(ent); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		w.Tick()
	}
	got := w.Entities(geom.SizedBox(target, geom.P(1, 1, 1)))
	if len(got) != 1 || got[0].ID != ent.ID {
		t.Errorf("got %+v, want the zombie at %v", got, target)
	}
}

func TestTime(t *testing.T) {
	w := New(world.Templates{})
	w.SetTime(DayLength - 1)
	w.Tick()
	if w.Time() != 0 {
		t.Errorf("got %v, want wrap to 0", w.Time())
	}
	w.SetTime(-1)
	if w.Time() != DayLength-1 {
		t.Errorf("got %v, want %v", w.Time(), DayLength-1)
	}
}
