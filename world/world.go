// Package world is the narrow view of the simulated world that the test engine consumes.
//
// Everything here is owned by the host simulation. The engine never retains
// blocks or entities across ticks; it only holds Structure handles for the
// fixtures it placed, and asks the world to clear them again.
package world

import (
	"fmt"

	"github.com/zond/worldtest/geom"
)

// Block is a block type identifier, e.g. "sand" or "lamp_lit".
type Block string

const (
	Air Block = "air"
)

// IsAir treats the zero value as air.
func (b Block) IsAir() bool {
	return b == "" || b == Air
}

type EntityID string

type Entity struct {
	ID   EntityID `json:"id"`
	Kind string   `json:"kind"`
	Pos  geom.Pos `json:"pos"`
	// Target makes the entity walk one block per tick towards it.
	Target *geom.Pos `json:"target,omitempty"`
}

// TemplateEntity is an entity that is spawned together with a structure.
type TemplateEntity struct {
	Kind string   `json:"kind"`
	Pos  geom.Pos `json:"pos"`
}

// Template is a structure fixture in its unrotated, structure-local frame.
type Template struct {
	ID       string             `json:"id"`
	Size     geom.Pos           `json:"size"`
	Blocks   map[geom.Pos]Block `json:"-"`
	Entities []TemplateEntity   `json:"entities,omitempty"`
}

// Footprint is the size of the template after rotation.
func (t *Template) Footprint(r geom.Rotation) geom.Pos {
	return geom.RotatedSize(t.Size, r)
}

// Structure is a handle to one placed instance of a template.
type Structure struct {
	Template *Template
	Origin   geom.Pos
	Rotation geom.Rotation
	Mirror   geom.Mirror
	Padding  int
}

// Box is the region occupied by the structure in absolute coordinates.
func (s *Structure) Box() geom.Box {
	return geom.SizedBox(s.Origin, s.Template.Footprint(s.Rotation))
}

// PaddedBox is the region cleared when the structure is placed or removed.
func (s *Structure) PaddedBox() geom.Box {
	return s.Box().Inflate(s.Padding)
}

// Absolute converts a structure-local position into world coordinates.
func (s *Structure) Absolute(local geom.Pos) geom.Pos {
	return s.Origin.Add(geom.Transform(local, s.Template.Size, s.Rotation, s.Mirror))
}

// Relative converts a world position into structure-local coordinates.
func (s *Structure) Relative(abs geom.Pos) geom.Pos {
	return geom.InverseTransform(abs.Sub(s.Origin), s.Template.Size, s.Rotation, s.Mirror)
}

// MarkerPos is where status markers for the structure are painted, just north of its origin.
func (s *Structure) MarkerPos() geom.Pos {
	return s.Origin.Add(geom.P(0, 0, -1))
}

func (s *Structure) String() string {
	return fmt.Sprintf("%s@%v(%v)", s.Template.ID, s.Origin, s.Rotation)
}

type Color int

const (
	Neutral Color = iota
	Green
	Red
	Orange
	Yellow
)

func (c Color) String() string {
	switch c {
	case Green:
		return "green"
	case Red:
		return "red"
	case Orange:
		return "orange"
	case Yellow:
		return "yellow"
	}
	return "neutral"
}

// Marker is an in-world status indicator, like a colored block with a label.
type Marker struct {
	Pos   geom.Pos `json:"pos"`
	Color Color    `json:"color"`
	Text  string   `json:"text,omitempty"`
}

// TemplateSource resolves template ids.
type TemplateSource interface {
	Template(id string) (*Template, error)
}

// World is what tests and the engine may do to the simulation. All methods
// are called from the host's tick thread.
type World interface {
	TemplateSource
	SpawnStructure(templateID string, origin geom.Pos, rotation geom.Rotation, padding int) (*Structure, error)
	ClearStructure(s *Structure) error
	StructuresWithin(box geom.Box) []*Structure

	Block(pos geom.Pos) Block
	SetBlock(pos geom.Pos, b Block)

	Entities(box geom.Box) []Entity
	SpawnEntity(kind string, pos geom.Pos) (Entity, error)
	UpdateEntity(e Entity) error
	RemoveEntity(id EntityID) bool

	PaintMarker(m Marker)
	ClearMarkers(box geom.Box)
	Say(msg string)

	Time() int64
	SetTime(t int64)
}
