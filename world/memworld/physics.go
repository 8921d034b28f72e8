package memworld

import (
	"slices"

	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/world"
)

var neighbours = []geom.Pos{
	{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
}

func falls(b world.Block) bool {
	return b == Sand || b == Gravel
}

// Tick advances the simulation one step. Every rule reads the state as it
// was at the start of the tick, so results do not depend on map order.
func (w *World) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ticks++
	w.time = (w.time + 1) % DayLength

	positions := make([]geom.Pos, 0, len(w.blocks))
	for pos := range w.blocks {
		positions = append(positions, pos)
	}
	slices.SortFunc(positions, comparePos)

	type change struct {
		pos geom.Pos
		b   world.Block
	}
	var changes []change
	for _, pos := range positions {
		b := w.blocks[pos]
		switch {
		case falls(b):
			below := pos.Below()
			if below.Y > MinY {
				if _, occupied := w.blocks[below]; !occupied {
					changes = append(changes, change{pos, world.Air}, change{below, b})
				}
			}
		case b == Lamp || b == LampLit:
			powered := w.powered(pos)
			if powered && b == Lamp {
				changes = append(changes, change{pos, LampLit})
			} else if !powered && b == LampLit {
				changes = append(changes, change{pos, Lamp})
			}
		}
	}
	// A falling block only targets the air directly below it, so no two changes touch the same position.
	for _, c := range changes {
		w.setBlock(c.pos, c.b)
	}

	ids := make([]world.EntityID, 0, len(w.entities))
	for id := range w.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		ent := w.entities[id]
		if ent.Target == nil || *ent.Target == ent.Pos {
			continue
		}
		ent.Pos = step(ent.Pos, *ent.Target)
	}
}

func (w *World) powered(pos geom.Pos) bool {
	for _, n := range neighbours {
		if w.blocks[pos.Add(n)] == LeverOn {
			return true
		}
	}
	return false
}

// step moves one block towards target, resolving x before z before y.
func step(from, target geom.Pos) geom.Pos {
	switch {
	case from.X != target.X:
		from.X += sign(target.X - from.X)
	case from.Z != target.Z:
		from.Z += sign(target.Z - from.Z)
	default:
		from.Y += sign(target.Y - from.Y)
	}
	return from
}

func sign(i int) int {
	if i < 0 {
		return -1
	}
	return 1
}
