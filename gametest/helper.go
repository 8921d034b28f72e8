package gametest

import (
	"github.com/pkg/errors"
	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/world"
)

// Helper is what a test body gets to work with. Positions passed to a Helper
// are relative to the structure in its unrotated template frame.
type Helper struct {
	exec *Execution
}

func (h *Helper) Execution() *Execution {
	return h.exec
}

func (h *Helper) World() world.World {
	return h.exec.world
}

func (h *Helper) Structure() *world.Structure {
	return h.exec.structure
}

// Tick is the number of ticks since the body ran.
func (h *Helper) Tick() int {
	return h.exec.Elapsed()
}

func (h *Helper) Absolute(rel geom.Pos) geom.Pos {
	return h.exec.structure.Absolute(rel)
}

func (h *Helper) Relative(abs geom.Pos) geom.Pos {
	return h.exec.structure.Relative(abs)
}

func (h *Helper) Block(rel geom.Pos) world.Block {
	return h.World().Block(h.Absolute(rel))
}

func (h *Helper) SetBlock(rel geom.Pos, b world.Block) {
	h.World().SetBlock(h.Absolute(rel), b)
}

// Errorf creates an assertion error pinned to rel.
func (h *Helper) Errorf(rel geom.Pos, format string, args ...any) error {
	return h.exec.assertion(&rel, format, args...)
}

// Failf creates an assertion error not pinned to any position.
func (h *Helper) Failf(format string, args ...any) error {
	return h.exec.assertion(nil, format, args...)
}

func (h *Helper) AssertBlock(rel geom.Pos, want world.Block) error {
	if got := h.Block(rel); got != want && !(got.IsAir() && want.IsAir()) {
		return h.Errorf(rel, "expected %s, got %s", want, got)
	}
	return nil
}

func (h *Helper) AssertBlockNot(rel geom.Pos, unwanted world.Block) error {
	if got := h.Block(rel); got == unwanted || (got.IsAir() && unwanted.IsAir()) {
		return h.Errorf(rel, "did not expect %s", unwanted)
	}
	return nil
}

// Entities returns the entities of the given kind inside the structure.
// An empty kind matches every entity.
func (h *Helper) Entities(kind string) []world.Entity {
	var res []world.Entity
	for _, ent := range h.World().Entities(h.exec.structure.Box()) {
		if kind == "" || ent.Kind == kind {
			res = append(res, ent)
		}
	}
	return res
}

func (h *Helper) entitiesAt(kind string, rel geom.Pos) []world.Entity {
	abs := h.Absolute(rel)
	var res []world.Entity
	for _, ent := range h.World().Entities(geom.BoxOf(abs, abs)) {
		if kind == "" || ent.Kind == kind {
			res = append(res, ent)
		}
	}
	return res
}

func (h *Helper) AssertEntityPresent(kind string, rel geom.Pos) error {
	if len(h.entitiesAt(kind, rel)) == 0 {
		return h.Errorf(rel, "expected %s", kind)
	}
	return nil
}

func (h *Helper) AssertEntityAbsent(kind string, rel geom.Pos) error {
	if len(h.entitiesAt(kind, rel)) > 0 {
		return h.Errorf(rel, "did not expect %s", kind)
	}
	return nil
}

// AssertEntityCount checks the number of entities of a kind in the whole structure.
func (h *Helper) AssertEntityCount(kind string, want int) error {
	if got := len(h.Entities(kind)); got != want {
		return h.Failf("expected %d %s, got %d", want, kind, got)
	}
	return nil
}

func (h *Helper) SpawnEntity(kind string, rel geom.Pos) (world.Entity, error) {
	ent, err := h.World().SpawnEntity(kind, h.Absolute(rel))
	if err != nil {
		return world.Entity{}, errors.WithStack(err)
	}
	return ent, nil
}

// WalkTo makes the entity walk towards rel.
func (h *Helper) WalkTo(ent world.Entity, rel geom.Pos) error {
	target := h.Absolute(rel)
	ent.Target = &target
	return errors.WithStack(h.World().UpdateEntity(ent))
}

func (h *Helper) Succeed() {
	h.exec.Succeed()
}

func (h *Helper) Fail(err error) {
	h.exec.Fail(err)
}

// Sequence returns the execution's sequence, creating it on first use.
func (h *Helper) Sequence() *Sequence {
	return h.exec.getSequence()
}

// RunAtTick runs fn when Tick reaches tick. A returned error fails the test.
func (h *Helper) RunAtTick(tick int, fn func() error) {
	h.exec.scheduleAt(tick, fn)
}

func (h *Helper) RunAfterDelay(delay int, fn func() error) {
	h.exec.scheduleAt(h.Tick()+delay, fn)
}

// OnEachTick runs fn on every tick, this one included, until the test is done.
func (h *Helper) OnEachTick(fn func() error) {
	h.exec.eachTick = append(h.exec.eachTick, fn)
}

// SucceedWhen succeeds on the first tick fn returns nil.
func (h *Helper) SucceedWhen(fn func() error) {
	h.Sequence().WaitUntil(fn).SucceedFinally()
}

// SucceedOnTickWhen succeeds at exactly tick if fn returns nil then, and fails otherwise.
func (h *Helper) SucceedOnTickWhen(tick int, fn func() error) {
	h.RunAtTick(tick, func() error {
		if err := fn(); err != nil {
			return err
		}
		h.Succeed()
		return nil
	})
}

// FailIf fails the test on the first tick fn returns nil.
func (h *Helper) FailIf(fn func() error) {
	h.OnEachTick(func() error {
		if fn() == nil {
			return h.Failf("failure condition met")
		}
		return nil
	})
}

func (h *Helper) SucceedWhenEntityPresent(kind string, rel geom.Pos) {
	h.SucceedWhen(func() error {
		return h.AssertEntityPresent(kind, rel)
	})
}

func (h *Helper) SucceedWhenBlock(rel geom.Pos, b world.Block) {
	h.SucceedWhen(func() error {
		return h.AssertBlock(rel, b)
	})
}
