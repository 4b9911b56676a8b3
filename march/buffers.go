package march

import (
	"errors"

	"github.com/soypat/glgl/math/ms3"
)

// MeshBuffers is thin bookkeeping over three caller-owned flat arrays.
// Positions and Normals hold 3 floats per vertex, Indices one unsigned
// integer per triangle corner. The cursors persist across calls and may
// start non-zero to append to earlier geometry.
//
// A nil Normals slice disables normal output. Cursor invariants hold
// after every write: VertexOffset*3 <= len(Positions) and
// IndexOffset <= len(Indices).
type MeshBuffers struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32

	// VertexOffset is the number of vertices written so far.
	VertexOffset int
	// IndexOffset is the number of triangle indices written so far.
	IndexOffset int
}

var errMismatchedNormals = errors.New("march: normals capacity must match positions")

// NewMeshBuffers allocates buffers for a worst case grid of the given
// cell count: 12 vertices and 5 triangles per cell.
func NewMeshBuffers(cells int, normals bool) *MeshBuffers {
	b := &MeshBuffers{
		Positions: make([]float32, 3*12*cells),
		Indices:   make([]uint32, 3*marchingCubesMaxTriangles*cells),
	}
	if normals {
		b.Normals = make([]float32, 3*12*cells)
	}
	return b
}

func (b *MeshBuffers) validate() error {
	if b.Normals != nil && len(b.Normals) != len(b.Positions) {
		return errMismatchedNormals
	}
	return nil
}

// Reset rewinds both cursors. Buffer contents are left in place.
func (b *MeshBuffers) Reset() {
	b.VertexOffset = 0
	b.IndexOffset = 0
}

// VertexCap returns how many more vertices fit.
func (b *MeshBuffers) VertexCap() int {
	return len(b.Positions)/3 - b.VertexOffset
}

// IndexCap returns how many more triangle indices fit.
func (b *MeshBuffers) IndexCap() int {
	return len(b.Indices) - b.IndexOffset
}

// fits reports whether a whole cube's demand of vertices and indices can
// be admitted. Admission is all-or-nothing so the buffers never hold a
// partial triangle.
func (b *MeshBuffers) fits(vertices, indices int) bool {
	return vertices <= b.VertexCap() && indices <= b.IndexCap()
}

// putVertex appends a vertex and returns its global index.
func (b *MeshBuffers) putVertex(p ms3.Vec) uint32 {
	slot := b.VertexOffset
	b.Positions[slot*3+0] = p.X
	b.Positions[slot*3+1] = p.Y
	b.Positions[slot*3+2] = p.Z
	b.VertexOffset++
	return uint32(slot)
}

// putNormal fills the normal of the most recently reserved vertex slot.
func (b *MeshBuffers) putNormal(slot uint32, n ms3.Vec) {
	b.Normals[slot*3+0] = n.X
	b.Normals[slot*3+1] = n.Y
	b.Normals[slot*3+2] = n.Z
}

// putTriangle appends three triangle corner indices.
func (b *MeshBuffers) putTriangle(i0, i1, i2 uint32) {
	b.Indices[b.IndexOffset+0] = i0
	b.Indices[b.IndexOffset+1] = i1
	b.Indices[b.IndexOffset+2] = i2
	b.IndexOffset += 3
}

// Triangle returns the n-th triangle currently held by the buffers.
func (b *MeshBuffers) Triangle(n int) ms3.Triangle {
	var t ms3.Triangle
	for c := 0; c < 3; c++ {
		v := b.Indices[n*3+c]
		t[c] = ms3.Vec{
			X: b.Positions[v*3+0],
			Y: b.Positions[v*3+1],
			Z: b.Positions[v*3+2],
		}
	}
	return t
}

// TriangleCount returns the number of whole triangles currently held.
func (b *MeshBuffers) TriangleCount() int { return b.IndexOffset / 3 }

// AppendTriangles appends all held triangles to dst and returns the
// extended slice.
func (b *MeshBuffers) AppendTriangles(dst []ms3.Triangle) []ms3.Triangle {
	for n := 0; n < b.TriangleCount(); n++ {
		dst = append(dst, b.Triangle(n))
	}
	return dst
}
