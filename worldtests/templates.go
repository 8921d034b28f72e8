package worldtests

import (
	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/world"
	"github.com/zond/worldtest/world/memworld"
)

// Templates returns the structures the sample tests are built in.
func Templates() world.Templates {
	floor := func(size geom.Pos) map[geom.Pos]world.Block {
		blocks := map[geom.Pos]world.Block{}
		for x := 0; x < size.X; x++ {
			for z := 0; z < size.Z; z++ {
				blocks[geom.P(x, 0, z)] = memworld.Stone
			}
		}
		return blocks
	}
	circuit := func(id string, lever world.Block) *world.Template {
		size := geom.P(3, 2, 1)
		blocks := floor(size)
		blocks[geom.P(0, 1, 0)] = lever
		blocks[geom.P(1, 1, 0)] = memworld.Lamp
		return &world.Template{ID: id, Size: size, Blocks: blocks}
	}
	sandColumn := &world.Template{
		ID:     "sand_column",
		Size:   geom.P(1, 6, 1),
		Blocks: map[geom.Pos]world.Block{geom.P(0, 0, 0): memworld.Stone, geom.P(0, 5, 0): memworld.Sand},
	}
	gravelPit := &world.Template{
		ID:     "gravel_pit",
		Size:   geom.P(3, 4, 1),
		Blocks: floor(geom.P(3, 4, 1)),
	}
	pen := &world.Template{
		ID:       "pen",
		Size:     geom.P(6, 3, 2),
		Blocks:   floor(geom.P(6, 3, 2)),
		Entities: []world.TemplateEntity{{Kind: "sheep", Pos: geom.P(0, 1, 1)}},
	}
	return world.Templates{}.
		Add(sandColumn).
		Add(gravelPit).
		Add(circuit("lamp_circuit", memworld.LeverOff)).
		Add(circuit("lit_lamp_circuit", memworld.LeverOn)).
		Add(pen).
		Add(&world.Template{ID: "empty", Size: geom.P(1, 1, 1)})
}
