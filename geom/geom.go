// Package geom contains the integer block geometry shared by the world and the test engine.
package geom

import (
	"fmt"
	"iter"
	"strings"

	"github.com/pkg/errors"
)

// Pos is a block position. Y is up, X grows east and Z grows south.
type Pos struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

func P(x, y, z int) Pos {
	return Pos{X: x, Y: y, Z: z}
}

func (p Pos) Add(o Pos) Pos {
	return Pos{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p Pos) Sub(o Pos) Pos {
	return Pos{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

func (p Pos) Below() Pos {
	return Pos{X: p.X, Y: p.Y - 1, Z: p.Z}
}

func (p Pos) Above() Pos {
	return Pos{X: p.X, Y: p.Y + 1, Z: p.Z}
}

// DistSq is the squared euclidean distance between p and o.
func (p Pos) DistSq(o Pos) int {
	d := p.Sub(o)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}

func (p Pos) String() string {
	return fmt.Sprintf("[%d, %d, %d]", p.X, p.Y, p.Z)
}

// Box is an axis aligned box of blocks. Both corners are inclusive.
type Box struct {
	Min Pos `json:"min"`
	Max Pos `json:"max"`
}

// BoxOf returns the box spanned by two arbitrary corners.
func BoxOf(a, b Pos) Box {
	return Box{
		Min: Pos{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: Pos{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

// SizedBox returns the box with its minimum corner at origin and the given size.
// Every dimension of size must be positive.
func SizedBox(origin Pos, size Pos) Box {
	return Box{Min: origin, Max: origin.Add(size).Sub(Pos{1, 1, 1})}
}

// Size is the number of blocks along each axis.
func (b Box) Size() Pos {
	return b.Max.Sub(b.Min).Add(Pos{1, 1, 1})
}

func (b Box) Volume() int {
	s := b.Size()
	return s.X * s.Y * s.Z
}

// Inflate grows the box by n blocks in every direction.
func (b Box) Inflate(n int) Box {
	d := Pos{n, n, n}
	return Box{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

func (b Box) Intersects(o Box) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

func (b Box) Contains(p Pos) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b Box) Center() Pos {
	return Pos{X: (b.Min.X + b.Max.X) / 2, Y: (b.Min.Y + b.Max.Y) / 2, Z: (b.Min.Z + b.Max.Z) / 2}
}

// Positions iterates every block of the box, x fastest, then y, then z.
func (b Box) Positions() iter.Seq[Pos] {
	return func(yield func(Pos) bool) {
		for z := b.Min.Z; z <= b.Max.Z; z++ {
			for y := b.Min.Y; y <= b.Max.Y; y++ {
				for x := b.Min.X; x <= b.Max.X; x++ {
					if !yield(Pos{X: x, Y: y, Z: z}) {
						return
					}
				}
			}
		}
	}
}

func (b Box) String() string {
	return fmt.Sprintf("%v..%v", b.Min, b.Max)
}

// Rotation is a clockwise quarter turn count around the Y axis.
type Rotation int

const (
	RotateNone Rotation = iota
	Clockwise90
	Clockwise180
	CounterClockwise90
)

var rotationNames = []string{"none", "clockwise_90", "180", "counterclockwise_90"}

func (r Rotation) norm() Rotation {
	return ((r % 4) + 4) % 4
}

// Compose returns the rotation of applying r and then o.
func (r Rotation) Compose(o Rotation) Rotation {
	return (r + o).norm()
}

func (r Rotation) Inverse() Rotation {
	return (4 - r.norm()).norm()
}

// Steps is the number of clockwise quarter turns.
func (r Rotation) Steps() int {
	return int(r.norm())
}

func (r Rotation) String() string {
	return rotationNames[r.norm()]
}

// RotationFromSteps converts a count of clockwise quarter turns.
func RotationFromSteps(steps int) Rotation {
	return Rotation(steps).norm()
}

// ParseRotation accepts the names produced by String, or a quarter turn count 0-3.
func ParseRotation(s string) (Rotation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range rotationNames {
		if s == name || s == fmt.Sprint(i) {
			return Rotation(i), nil
		}
	}
	return RotateNone, errors.Errorf("unknown rotation %q", s)
}

func (r Rotation) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rotation) UnmarshalText(b []byte) error {
	parsed, err := ParseRotation(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Mirror flips a structure before it is rotated.
type Mirror int

const (
	MirrorNone Mirror = iota
	// MirrorLeftRight flips along the Z axis.
	MirrorLeftRight
	// MirrorFrontBack flips along the X axis.
	MirrorFrontBack
)

// RotatedSize is the footprint of a structure of the given size after rotation.
func RotatedSize(size Pos, r Rotation) Pos {
	if r.Steps()%2 == 1 {
		return Pos{X: size.Z, Y: size.Y, Z: size.X}
	}
	return size
}

// Transform maps a structure-local position into the rotated and mirrored
// local frame of a structure with the given unrotated size. The result stays
// within the rotated footprint, anchored at the minimum corner.
func Transform(local Pos, size Pos, r Rotation, m Mirror) Pos {
	p := local
	switch m {
	case MirrorLeftRight:
		p.Z = size.Z - 1 - p.Z
	case MirrorFrontBack:
		p.X = size.X - 1 - p.X
	}
	return rotate(p, size, r)
}

// InverseTransform undoes Transform.
func InverseTransform(rotated Pos, size Pos, r Rotation, m Mirror) Pos {
	p := rotate(rotated, RotatedSize(size, r), r.Inverse())
	switch m {
	case MirrorLeftRight:
		p.Z = size.Z - 1 - p.Z
	case MirrorFrontBack:
		p.X = size.X - 1 - p.X
	}
	return p
}

func rotate(p Pos, size Pos, r Rotation) Pos {
	switch r.norm() {
	case Clockwise90:
		return Pos{X: size.Z - 1 - p.Z, Y: p.Y, Z: p.X}
	case Clockwise180:
		return Pos{X: size.X - 1 - p.X, Y: p.Y, Z: size.Z - 1 - p.Z}
	case CounterClockwise90:
		return Pos{X: p.Z, Y: p.Y, Z: size.X - 1 - p.X}
	}
	return p
}
