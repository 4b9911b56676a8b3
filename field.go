// Package metafield models scalar density fields over 3D space, most
// notably blended metaball systems, for isosurface extraction by the
// march package.
package metafield

import (
	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
)

// Field3 is a scalar field over 3D space. Evaluate must be pure with
// respect to its argument and the field parameters at call time; field
// parameters may change between calls.
type Field3 interface {
	// Evaluate returns the field value at p.
	Evaluate(p ms3.Vec) float32
	// Bounds returns a box containing all surface geometry of interest.
	Bounds() ms3.Box
}

// Gradient3 is implemented by fields which know their analytic gradient.
// Consumers fall back to central differences when not implemented.
type Gradient3 interface {
	Gradient(p ms3.Vec) ms3.Vec
}

// Normal3 returns the surface normal of f at p estimated by central
// differences over a box of side 2*eps. The normal points towards
// decreasing field values.
func Normal3(f Field3, p ms3.Vec, eps float32) ms3.Vec {
	return ms3.Unit(ms3.Vec{
		X: f.Evaluate(ms3.Add(p, ms3.Vec{X: -eps})) - f.Evaluate(ms3.Add(p, ms3.Vec{X: eps})),
		Y: f.Evaluate(ms3.Add(p, ms3.Vec{Y: -eps})) - f.Evaluate(ms3.Add(p, ms3.Vec{Y: eps})),
		Z: f.Evaluate(ms3.Add(p, ms3.Vec{Z: -eps})) - f.Evaluate(ms3.Add(p, ms3.Vec{Z: eps})),
	})
}

// Sphere is a solid spherical density field, positive inside the radius
// and negative outside.
type Sphere struct {
	Center ms3.Vec
	R      float32
}

func (s Sphere) Evaluate(p ms3.Vec) float32 {
	d := ms3.Sub(p, s.Center)
	return s.R*s.R - (d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

func (s Sphere) Gradient(p ms3.Vec) ms3.Vec {
	return ms3.Scale(-2, ms3.Sub(p, s.Center))
}

func (s Sphere) Bounds() ms3.Box {
	r := ms3.Vec{X: s.R, Y: s.R, Z: s.R}
	return ms3.Box{Min: ms3.Sub(s.Center, r), Max: ms3.Add(s.Center, r)}
}

// Constant is a uniform field. It exercises the all-inside and
// all-outside classification fast paths.
type Constant float32

func (c Constant) Evaluate(ms3.Vec) float32 { return float32(c) }

func (c Constant) Bounds() ms3.Box {
	return ms3.Box{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}
}

// Clamp x between lo and hi, assume lo <= hi.
func Clamp(x, lo, hi float32) float32 {
	return math32.Min(hi, math32.Max(x, lo))
}

// Mix does a linear interpolation from x to y, a = [0,1].
func Mix(x, y, a float32) float32 {
	return x + a*(y-x)
}
