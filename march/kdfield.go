package march

import (
	"math"

	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/metafield/metafield"
)

var (
	_ metafield.Field3 = MeshField{}
	_ kdtree.Interface = kdTriangles{}
	_ kdtree.Bounder   = kdTriangles{}
)

// NewMeshField builds a scalar field from a triangle mesh using a k-d
// tree over triangle centroids. The field is positive inside the mesh,
// negative outside and approaches zero at the surface, matching the
// convention of metaball fields so a rendered mesh can be fed back as
// an input field.
//
// The inside test relies on the nearest triangle's winding, so the mesh
// should be closed with consistently outward-facing triangles.
func NewMeshField(model []ms3.Triangle) MeshField {
	tris := make(kdTriangles, len(model))
	for i, t := range model {
		tris[i] = kdTriangle{
			r3FromVec(t[0]),
			r3FromVec(t[1]),
			r3FromVec(t[2]),
		}
	}
	tree := kdtree.New(tris, true)
	return MeshField{tree: tree}
}

// MeshField is a signed proximity field over a triangle mesh.
type MeshField struct {
	tree *kdtree.Tree
}

// Evaluate returns the distance to the mesh surface, positive inside.
func (s MeshField) Evaluate(p ms3.Vec) float32 {
	const eps = 1e-3
	v := r3FromVec(p)
	triangle := s.nearest(v)
	minDist := math.MaxFloat64
	closest := r3.Vec{}
	for i := 0; i < 3; i++ {
		vDist := r3.Norm(r3.Sub(v, triangle[i]))
		if vDist < minDist {
			closest = triangle[i]
			minDist = vDist
		}
	}
	if minDist < eps {
		return 0
	}
	pointDir := r3.Sub(v, closest)
	n := triangle.normal()
	alpha := math.Acos(r3.Cos(n, pointDir))
	// Outward normal side of the surface is outside the mesh.
	return float32(math.Copysign(minDist, alpha-math.Pi/2))
}

// Bounds returns the bounding box of the mesh.
func (s MeshField) Bounds() ms3.Box {
	bb := s.tree.Root.Bounding
	if bb == nil {
		return ms3.Box{}
	}
	tMin := bb.Min.(kdTriangle)
	tMax := bb.Max.(kdTriangle)
	return ms3.Box{
		Min: vecFromR3(minElemR3(tMin[2], minElemR3(tMin[0], tMin[1]))),
		Max: vecFromR3(maxElemR3(tMax[2], maxElemR3(tMax[0], tMax[1]))),
	}
}

func (s MeshField) nearest(v r3.Vec) kdTriangle {
	got, _ := s.tree.Nearest(kdTriangle{v, v, v})
	return got.(kdTriangle)
}

type kdTriangles []kdTriangle

type kdTriangle [3]r3.Vec

func (k kdTriangles) Index(i int) kdtree.Comparable { return k[i] }

func (k kdTriangles) Len() int { return len(k) }

// Pivot partitions the list based on the dimension specified.
func (k kdTriangles) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: int(d), triangles: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// Slice returns a slice of the list using zero-based half
// open indexing equivalent to built-in slice indexing.
func (k kdTriangles) Slice(start, end int) kdtree.Interface {
	return k[start:end]
}

func (k kdTriangles) Bounds() *kdtree.Bounding {
	max := r3.Vec{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64}
	min := r3.Vec{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}
	for _, tri := range k {
		tbounds := tri.Bounds()
		tmin := tbounds.Min.(kdTriangle)
		tmax := tbounds.Max.(kdTriangle)
		min = minElemR3(min, tmin[0])
		max = maxElemR3(max, tmax[0])
	}
	return &kdtree.Bounding{
		Min: kdTriangle{min, min, min},
		Max: kdTriangle{max, max, max},
	}
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
func (a kdTriangle) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return kdComp(a, b.(kdTriangle), int(d))
}

func (a kdTriangle) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between the receiver
// and the parameter's centroids.
func (a kdTriangle) Distance(b kdtree.Comparable) float64 {
	bt := b.(kdTriangle)
	return r3.Norm2(r3.Sub(kdCentroid(a), kdCentroid(bt)))
}

func (a kdTriangle) Bounds() *kdtree.Bounding {
	min := minElemR3(a[2], minElemR3(a[0], a[1]))
	max := maxElemR3(a[2], maxElemR3(a[0], a[1]))
	return &kdtree.Bounding{
		Min: kdTriangle{min, min, min},
		Max: kdTriangle{max, max, max},
	}
}

func (a kdTriangle) normal() r3.Vec {
	e1 := r3.Sub(a[1], a[0])
	e2 := r3.Sub(a[2], a[0])
	return r3.Unit(r3.Cross(e1, e2))
}

// c = a.dim - b.dim between triangle centroids.
func kdComp(a, b kdTriangle, dim int) (c float64) {
	switch dim {
	case 0:
		c = (a[0].X + a[1].X + a[2].X) - (b[0].X + b[1].X + b[2].X)
	case 1:
		c = (a[0].Y + a[1].Y + a[2].Y) - (b[0].Y + b[1].Y + b[2].Y)
	case 2:
		c = (a[0].Z + a[1].Z + a[2].Z) - (b[0].Z + b[1].Z + b[2].Z)
	}
	return c / 3
}

func kdCentroid(a kdTriangle) r3.Vec {
	v := r3.Vec{
		X: a[0].X + a[1].X + a[2].X,
		Y: a[0].Y + a[1].Y + a[2].Y,
		Z: a[0].Z + a[1].Z + a[2].Z,
	}
	return r3.Scale(1./3., v)
}

type kdPlane struct {
	dim       int
	triangles kdTriangles
}

func (p kdPlane) Less(i, j int) bool {
	return kdComp(p.triangles[i], p.triangles[j], p.dim) < 0
}
func (p kdPlane) Swap(i, j int) {
	p.triangles[i], p.triangles[j] = p.triangles[j], p.triangles[i]
}
func (p kdPlane) Len() int {
	return len(p.triangles)
}
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.triangles = p.triangles[start:end]
	return p
}

func r3FromVec(v ms3.Vec) r3.Vec {
	return r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

func vecFromR3(v r3.Vec) ms3.Vec {
	return ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

func minElemR3(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func maxElemR3(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}
