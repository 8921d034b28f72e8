// Package memworld is a small in-memory world used as the reference host for the test engine.
//
// It simulates just enough physics to make multi tick assertions meaningful:
// falling blocks, levers powering lamps with a one tick delay, and entities
// walking one block per tick towards a target.
package memworld

import (
	"cmp"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/world"
)

const (
	Sand     world.Block = "sand"
	Gravel   world.Block = "gravel"
	Stone    world.Block = "stone"
	LeverOn  world.Block = "lever_on"
	LeverOff world.Block = "lever_off"
	Lamp     world.Block = "lamp"
	LampLit  world.Block = "lamp_lit"
)

// DayLength is the number of ticks in a full day.
const DayLength = 24000

// MinY is the bottom of the world; falling blocks stop above it.
const MinY = -64

// World is safe to call from several goroutines, but the engine only does
// so from the tick thread.
type World struct {
	mu         sync.Mutex
	templates  world.TemplateSource
	blocks     map[geom.Pos]world.Block
	entities   map[world.EntityID]*world.Entity
	markers    map[geom.Pos]world.Marker
	structures []*world.Structure
	messages   []string
	time       int64
	ticks      int64
}

func New(templates world.TemplateSource) *World {
	return &World{
		templates: templates,
		blocks:    map[geom.Pos]world.Block{},
		entities:  map[world.EntityID]*world.Entity{},
		markers:   map[geom.Pos]world.Marker{},
	}
}

func (w *World) Template(id string) (*world.Template, error) {
	return w.templates.Template(id)
}

func (w *World) SpawnStructure(templateID string, origin geom.Pos, rotation geom.Rotation, padding int) (*world.Structure, error) {
	tmpl, err := w.templates.Template(templateID)
	if err != nil {
		return nil, worldtest.WithStack(err)
	}
	s := &world.Structure{
		Template: tmpl,
		Origin:   origin,
		Rotation: rotation,
		Padding:  padding,
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, other := range w.structures {
		if other.Box().Intersects(s.Box()) {
			return nil, errors.Errorf("%v would overlap %v", s, other)
		}
	}
	w.clear(s.PaddedBox())
	for local, b := range tmpl.Blocks {
		w.setBlock(s.Absolute(local), b)
	}
	for _, te := range tmpl.Entities {
		w.spawnEntity(te.Kind, s.Absolute(te.Pos))
	}
	w.structures = append(w.structures, s)
	return s, nil
}

func (w *World) ClearStructure(s *world.Structure) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := slices.Index(w.structures, s)
	if idx == -1 {
		return errors.Errorf("%v is not placed", s)
	}
	w.structures = slices.Delete(w.structures, idx, idx+1)
	w.clear(s.PaddedBox())
	return nil
}

func (w *World) clear(box geom.Box) {
	for pos := range w.blocks {
		if box.Contains(pos) {
			delete(w.blocks, pos)
		}
	}
	for id, ent := range w.entities {
		if box.Contains(ent.Pos) {
			delete(w.entities, id)
		}
	}
	for pos := range w.markers {
		if box.Contains(pos) {
			delete(w.markers, pos)
		}
	}
}

func (w *World) StructuresWithin(box geom.Box) []*world.Structure {
	w.mu.Lock()
	defer w.mu.Unlock()
	var res []*world.Structure
	for _, s := range w.structures {
		if box.Intersects(s.Box()) {
			res = append(res, s)
		}
	}
	return res
}

func (w *World) Block(pos geom.Pos) world.Block {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, found := w.blocks[pos]; found {
		return b
	}
	return world.Air
}

func (w *World) SetBlock(pos geom.Pos, b world.Block) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setBlock(pos, b)
}

func (w *World) setBlock(pos geom.Pos, b world.Block) {
	if b.IsAir() {
		delete(w.blocks, pos)
	} else {
		w.blocks[pos] = b
	}
}

func (w *World) Entities(box geom.Box) []world.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	var res []world.Entity
	for _, ent := range w.entities {
		if box.Contains(ent.Pos) {
			res = append(res, *ent)
		}
	}
	slices.SortFunc(res, func(a, b world.Entity) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return res
}

func (w *World) SpawnEntity(kind string, pos geom.Pos) (world.Entity, error) {
	if kind == "" {
		return world.Entity{}, errors.New("entity kind is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.spawnEntity(kind, pos), nil
}

func (w *World) spawnEntity(kind string, pos geom.Pos) *world.Entity {
	ent := &world.Entity{
		ID:   world.EntityID(worldtest.NextUniqueID()),
		Kind: kind,
		Pos:  pos,
	}
	w.entities[ent.ID] = ent
	return ent
}

func (w *World) UpdateEntity(e world.Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, found := w.entities[e.ID]; !found {
		return errors.Errorf("no entity %q", e.ID)
	}
	w.entities[e.ID] = &e
	return nil
}

func (w *World) RemoveEntity(id world.EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, found := w.entities[id]
	delete(w.entities, id)
	return found
}

func (w *World) PaintMarker(m world.Marker) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.markers[m.Pos] = m
}

func (w *World) ClearMarkers(box geom.Box) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for pos := range w.markers {
		if box.Contains(pos) {
			delete(w.markers, pos)
		}
	}
}

// Marker returns the marker painted at pos, if any.
func (w *World) Marker(pos geom.Pos) (world.Marker, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, found := w.markers[pos]
	return m, found
}

// Markers returns every painted marker ordered by position.
func (w *World) Markers() []world.Marker {
	w.mu.Lock()
	defer w.mu.Unlock()
	res := make([]world.Marker, 0, len(w.markers))
	for _, m := range w.markers {
		res = append(res, m)
	}
	slices.SortFunc(res, func(a, b world.Marker) int {
		return comparePos(a.Pos, b.Pos)
	})
	return res
}

func (w *World) Say(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msg)
}

// Messages returns everything said so far.
func (w *World) Messages() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.messages)
}

func (w *World) Time() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.time
}

func (w *World) SetTime(t int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.time = ((t % DayLength) + DayLength) % DayLength
}

// Ticks is the number of times Tick has run.
func (w *World) Ticks() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ticks
}

func comparePos(a, b geom.Pos) int {
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Z, b.Z); c != 0 {
		return c
	}
	return cmp.Compare(a.X, b.X)
}
