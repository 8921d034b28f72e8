package gametest

import (
	"fmt"

	"github.com/zond/worldtest/geom"
)

const (
	MaxBatchSize = 100
	// ColumnGap is the free space between structures in a row.
	ColumnGap = 5
	// RowGap is the free space between rows.
	RowGap = 6
)

// Batch is a group of tests that run at the same time and share hooks.
type Batch struct {
	Name        string
	Descriptors []*Descriptor
	Before      Hook
	After       Hook
}

// HookSource looks up the hooks of a named batch.
type HookSource interface {
	Hooks(batch string) (before, after Hook)
}

// GroupIntoBatches groups descriptors by batch id, in the order the ids
// first appear, and splits every group into batches of at most
// MaxBatchSize named "<batch>:<index>". hooks may be nil.
func GroupIntoBatches(descriptors []*Descriptor, hooks HookSource) []Batch {
	var names []string
	groups := map[string][]*Descriptor{}
	for _, d := range descriptors {
		if _, found := groups[d.Batch]; !found {
			names = append(names, d.Batch)
		}
		groups[d.Batch] = append(groups[d.Batch], d)
	}
	var res []Batch
	for _, name := range names {
		var before, after Hook
		if hooks != nil {
			before, after = hooks.Hooks(name)
		}
		group := groups[name]
		for idx := 0; len(group) > 0; idx++ {
			n := min(len(group), MaxBatchSize)
			res = append(res, Batch{
				Name:        fmt.Sprintf("%s:%d", name, idx),
				Descriptors: group[:n:n],
				Before:      before,
				After:       after,
			})
			group = group[n:]
		}
	}
	return res
}

// Layout places structures left to right in rows along x, wrapping to a new
// row along z once a row holds rowWidth structures.
type Layout struct {
	origin   geom.Pos
	rowWidth int
	x        int
	z        int
	inRow    int
	rowDepth int
}

func NewLayout(origin geom.Pos, rowWidth int) *Layout {
	return &Layout{
		origin:   origin,
		rowWidth: max(1, rowWidth),
	}
}

// Place returns the origin for a structure with the given footprint.
func (l *Layout) Place(footprint geom.Pos) geom.Pos {
	if l.inRow == l.rowWidth {
		l.x = 0
		l.z += l.rowDepth + RowGap
		l.inRow = 0
		l.rowDepth = 0
	}
	res := l.origin.Add(geom.P(l.x, 0, l.z))
	l.x += footprint.X + ColumnGap
	l.rowDepth = max(l.rowDepth, footprint.Z)
	l.inRow++
	return res
}
