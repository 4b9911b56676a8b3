package metafield

import (
	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
)

// fieldEpsilon avoids division by zero when a sample point coincides
// exactly with a ball center.
const fieldEpsilon = 1e-6

// floorFieldValue is the value read below the floor plane. Points below
// y=0 read as deep inside the surface so floor geometry closes without
// holes.
const floorFieldValue = 100

// Metaball is a single point source with an inverse square distance
// falloff.
type Metaball struct {
	Pos      ms3.Vec
	Strength float32
	// Subtract shifts the falloff downward so the ball has finite extent.
	Subtract float32
}

// Radius returns the distance from the ball center at which its
// contribution reaches zero.
func (b Metaball) Radius() float32 {
	return math32.Sqrt(b.Strength / b.Subtract)
}

func (b Metaball) contribution(d2 float32) float32 {
	return b.Strength/(fieldEpsilon+d2) - b.Subtract
}

func (b Metaball) bounds() ms3.Box {
	r := b.Radius()
	rv := ms3.Vec{X: r, Y: r, Z: r}
	return ms3.Box{Min: ms3.Sub(b.Pos, rv), Max: ms3.Add(b.Pos, rv)}
}

// System is a mutable collection of metaballs blended into one field.
// The caller owns Balls and may move them between generation calls.
// Only positive ball contributions accumulate, so the field is
// non-negative everywhere.
type System struct {
	Balls []Metaball
	// Floor closes all geometry at the y=0 world plane when set.
	Floor bool
	// ContainRadius limits the surface to a vertical cylinder of this
	// radius about the y axis. Zero disables containment.
	ContainRadius float32
}

var (
	_ Field3    = (*System)(nil)
	_ Gradient3 = (*System)(nil)
)

func (s *System) Evaluate(p ms3.Vec) float32 {
	if s.Floor && p.Y < 0 {
		return floorFieldValue
	}
	if s.ContainRadius > 0 && p.X*p.X+p.Z*p.Z > s.ContainRadius*s.ContainRadius {
		return 0
	}
	var sum float32
	for _, b := range s.Balls {
		d := ms3.Sub(p, b.Pos)
		v := b.contribution(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
		if v > 0 {
			sum += v
		}
	}
	return sum
}

// Gradient returns the analytic gradient of the blended ball field at p.
// The floor and containment discontinuities carry no gradient and are
// ignored here.
func (s *System) Gradient(p ms3.Vec) ms3.Vec {
	var g ms3.Vec
	for _, b := range s.Balls {
		d := ms3.Sub(p, b.Pos)
		d2 := d.X*d.X + d.Y*d.Y + d.Z*d.Z
		if b.contribution(d2) <= 0 {
			continue
		}
		den := fieldEpsilon + d2
		g = ms3.Add(g, ms3.Scale(-2*b.Strength/(den*den), d))
	}
	return g
}

// Bounds returns the union of all ball extents. With the floor rule
// active the box is clipped to reach just below y=0 so the closing
// geometry at the world floor is contained.
func (s *System) Bounds() ms3.Box {
	if len(s.Balls) == 0 {
		return ms3.Box{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}
	}
	bb := s.Balls[0].bounds()
	for _, b := range s.Balls[1:] {
		b2 := b.bounds()
		bb.Min = minElem(bb.Min, b2.Min)
		bb.Max = maxElem(bb.Max, b2.Max)
	}
	if s.Floor && bb.Min.Y < 0 {
		bb.Min.Y = -1e-3
	}
	return bb
}

func minElem(a, b ms3.Vec) ms3.Vec {
	return ms3.Vec{X: math32.Min(a.X, b.X), Y: math32.Min(a.Y, b.Y), Z: math32.Min(a.Z, b.Z)}
}

func maxElem(a, b ms3.Vec) ms3.Vec {
	return ms3.Vec{X: math32.Max(a.X, b.X), Y: math32.Max(a.Y, b.Y), Z: math32.Max(a.Z, b.Z)}
}
