// Package worldtests is a sample suite of in-world tests run against memworld.
//
// Register is generated from the directives on the functions below.
package worldtests

//go:generate go run ../bin/genregistry -out registry_gen.go

import (
	"github.com/pkg/errors"
	"github.com/zond/worldtest/gametest"
	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/world"
	"github.com/zond/worldtest/world/memworld"
)

// NightTime is when the night batch runs.
const NightTime = 13000

var (
	columnTop    = geom.P(0, 5, 0)
	columnBottom = geom.P(0, 1, 0)
	lever        = geom.P(0, 1, 0)
	lamp         = geom.P(1, 1, 0)
)

//worldtest:test structure=sand_column batch=physics max_ticks=20
func sandFalls(h *gametest.Helper) error {
	h.Sequence().
		WaitUntil(func() error { return h.AssertBlock(columnBottom, memworld.Sand) }).
		Execute(func() error { return h.AssertBlock(columnTop, world.Air) }).
		SucceedFinally()
	return nil
}

//worldtest:test structure=gravel_pit batch=physics max_ticks=20
func gravelStacks(h *gametest.Helper) error {
	h.SetBlock(geom.P(1, 2, 0), memworld.Gravel)
	h.SetBlock(geom.P(1, 3, 0), memworld.Gravel)
	h.FailIf(func() error {
		if h.Block(geom.P(0, 1, 0)).IsAir() && h.Block(geom.P(2, 1, 0)).IsAir() {
			return errors.New("no gravel beside the stack")
		}
		return nil
	})
	h.SucceedWhen(func() error {
		if err := h.AssertBlock(geom.P(1, 1, 0), memworld.Gravel); err != nil {
			return err
		}
		return h.AssertBlock(geom.P(1, 2, 0), memworld.Gravel)
	})
	return nil
}

//worldtest:test structure=lamp_circuit batch=redstone
func lampLights(h *gametest.Helper) error {
	if err := h.AssertBlock(lamp, memworld.Lamp); err != nil {
		return err
	}
	h.SetBlock(lever, memworld.LeverOn)
	h.Sequence().
		WaitUntilAfter(1, func() error { return h.AssertBlock(lamp, memworld.LampLit) }).
		SucceedFinally()
	return nil
}

//worldtest:test structure=lit_lamp_circuit batch=redstone setup_ticks=2
func lampTurnsOff(h *gametest.Helper) error {
	if err := h.AssertBlock(lamp, memworld.LampLit); err != nil {
		return err
	}
	h.SetBlock(lever, memworld.LeverOff)
	h.Sequence().
		WaitUntilAfter(1, func() error { return h.AssertBlock(lamp, memworld.Lamp) }).
		ExecuteFor(3, func() error { return h.AssertBlock(lamp, memworld.Lamp) }).
		SucceedFinally()
	return nil
}

//worldtest:test name=lamp.triggers structure=lamp_circuit batch=redstone rotation=clockwise_90
func lampTriggersCondition(h *gametest.Helper) error {
	seq := h.Sequence()
	lit := seq.Trigger()
	seq.SucceedFinally()
	wasLit := false
	h.OnEachTick(func() error {
		isLit := h.Block(lamp) == memworld.LampLit
		if isLit && !wasLit {
			lit.Trigger()
		}
		wasLit = isLit
		return nil
	})
	h.RunAfterDelay(2, func() error {
		h.SetBlock(lever, memworld.LeverOn)
		return nil
	})
	return nil
}

//worldtest:test structure=pen batch=mobs max_ticks=30
func sheepWalks(h *gametest.Helper) error {
	sheep := h.Entities("sheep")
	if len(sheep) != 1 {
		return h.Failf("want one sheep, got %d", len(sheep))
	}
	if err := h.WalkTo(sheep[0], geom.P(5, 1, 0)); err != nil {
		return err
	}
	h.SucceedWhenEntityPresent("sheep", geom.P(5, 1, 0))
	return nil
}

//worldtest:test name=mobs.stay_put structure=pen batch=mobs rotation=180 max_ticks=30
func villagerStaysPut(h *gametest.Helper) error {
	villager, err := h.SpawnEntity("villager", geom.P(0, 1, 0))
	if err != nil {
		return err
	}
	if err := h.WalkTo(villager, geom.P(3, 1, 0)); err != nil {
		return err
	}
	h.Sequence().
		WaitUntil(func() error { return h.AssertEntityPresent("villager", geom.P(3, 1, 0)) }).
		ExecuteFor(5, func() error { return h.AssertEntityPresent("villager", geom.P(3, 1, 0)) }).
		Execute(func() error { return h.AssertEntityCount("villager", 1) }).
		SucceedFinally()
	return nil
}

//worldtest:test structure=empty batch=night
func nightIsDark(h *gametest.Helper) error {
	h.SucceedWhen(func() error {
		if t := h.World().Time(); t < NightTime || t >= memworld.DayLength-1000 {
			return h.Failf("time is %d, want night", t)
		}
		return nil
	})
	return nil
}

//worldtest:test structure=sand_column batch=physics optional max_attempts=3 required_successes=2 max_ticks=20
func flakySandSettles(h *gametest.Helper) error {
	h.SucceedWhenBlock(columnBottom, memworld.Sand)
	return nil
}

//worldtest:before batch=night
func startNight(w world.World) {
	w.SetTime(NightTime)
}

//worldtest:after batch=night
func endNight(w world.World) {
	w.SetTime(1000)
}
