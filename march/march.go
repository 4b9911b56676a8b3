package march

import (
	"errors"
	"math/bits"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"

	"github.com/metafield/metafield"
)

var errNoGradient = errors.New("march: NormalsAnalytic requires a field with analytic gradient")

// NormalMode selects how vertex normals are estimated.
type NormalMode int

const (
	// NormalsAuto uses the field's analytic gradient when the field
	// implements metafield.Gradient3 and central differences otherwise.
	NormalsAuto NormalMode = iota
	// NormalsCentralDiff estimates normals from the sampled grid with
	// neighbor indices clamped at the grid shell.
	NormalsCentralDiff
	// NormalsAnalytic requires the field to implement metafield.Gradient3.
	NormalsAnalytic
)

// Marcher extracts isosurfaces from fields over regular grids. It owns
// the sample grid cache, which is reused across calls, and no other
// state: a call to March is single threaded, allocation free after the
// first call at a given grid size and deterministic for equal inputs.
type Marcher struct {
	Normals NormalMode
	sampler Sampler
}

// March samples field over vol and triangulates the isosurface into buf,
// appending at the buffer cursors. It returns the number of triangle
// indices written by this call.
//
// Running out of buffer capacity is not an error: traversal stops at the
// last cube that fit entirely and the count reflects only whole
// committed triangles. Callers that must distinguish a finished surface
// from a truncated one compare cursor positions against capacity.
func (m *Marcher) March(vol Volume, field metafield.Field3, buf *MeshBuffers) (int, error) {
	if err := buf.validate(); err != nil {
		return 0, err
	}
	if err := m.sampler.Resample(vol, field); err != nil {
		return 0, err
	}
	grad, haveGrad := field.(metafield.Gradient3)
	if m.Normals == NormalsAnalytic && !haveGrad {
		return 0, errNoGradient
	}
	analytic := buf.Normals != nil && haveGrad && m.Normals != NormalsCentralDiff

	w, h, d := m.sampler.Dims()
	written := 0
	var (
		cornerVal  [8]float32
		cornerPos  [8]ms3.Vec
		cornerNrm  [8]ms3.Vec
		edgeVertex [12]uint32
	)
scan:
	for k := 0; k < d-1; k++ {
		for j := 0; j < h-1; j++ {
			for i := 0; i < w-1; i++ {
				cubeIndex := 0
				for c, off := range mcCornerOffsets {
					cornerVal[c] = m.sampler.At(i+off[0], j+off[1], k+off[2])
					if cornerVal[c] <= vol.Threshold {
						cubeIndex |= 1 << c
					}
				}
				edges := mcEdgeTable[cubeIndex]
				if edges == 0 {
					// Entirely inside or outside. Dominant fast path.
					continue
				}
				needVerts := bits.OnesCount16(edges)
				needIdx := len(mcTriangleTable[cubeIndex])
				if !buf.fits(needVerts, needIdx) {
					// Partial result: stop without touching this cube.
					break scan
				}
				for c, off := range mcCornerOffsets {
					cornerPos[c] = vol.Pos(i+off[0], j+off[1], k+off[2])
				}
				if buf.Normals != nil {
					for c, off := range mcCornerOffsets {
						if analytic {
							cornerNrm[c] = ms3.Scale(-1, grad.Gradient(cornerPos[c]))
						} else {
							cornerNrm[c] = m.centralDifference(i+off[0], j+off[1], k+off[2])
						}
					}
				}
				for e := 0; e < 12; e++ {
					if edges&(1<<e) == 0 {
						continue
					}
					a, b := mcEdgeCorners[e][0], mcEdgeCorners[e][1]
					mu := interpolate(vol.Threshold, cornerVal[a], cornerVal[b])
					slot := buf.putVertex(mix3(cornerPos[a], cornerPos[b], mu))
					if buf.Normals != nil {
						buf.putNormal(slot, safeUnit(mix3(cornerNrm[a], cornerNrm[b], mu)))
					}
					edgeVertex[e] = slot
				}
				tri := mcTriangleTable[cubeIndex]
				for t := 0; t < len(tri); t += 3 {
					buf.putTriangle(edgeVertex[tri[t]], edgeVertex[tri[t+1]], edgeVertex[tri[t+2]])
				}
				written += needIdx
			}
		}
	}
	return written, nil
}

// mcCornerOffsets are the grid index offsets of the 8 cube corners in
// table corner order.
var mcCornerOffsets = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// interpolate returns the normalized crossing position of the threshold
// between corner values va and vb. A vanishing value difference yields
// the edge midpoint and the result is clamped to [0,1] so no NaN or
// out-of-cell position can reach emitted geometry.
func interpolate(threshold, va, vb float32) float32 {
	den := vb - va
	if math32.Abs(den) < 1e-12 {
		return 0.5
	}
	return metafield.Clamp((threshold-va)/den, 0, 1)
}

func (m *Marcher) centralDifference(i, j, k int) ms3.Vec {
	s := &m.sampler
	return ms3.Vec{
		X: s.AtClamped(i-1, j, k) - s.AtClamped(i+1, j, k),
		Y: s.AtClamped(i, j-1, k) - s.AtClamped(i, j+1, k),
		Z: s.AtClamped(i, j, k-1) - s.AtClamped(i, j, k+1),
	}
}

func mix3(a, b ms3.Vec, t float32) ms3.Vec {
	return ms3.Add(a, ms3.Scale(t, ms3.Sub(b, a)))
}

// safeUnit normalizes v, falling back to +y for vanishing inputs such as
// the gradient at a flat field plateau.
func safeUnit(v ms3.Vec) ms3.Vec {
	n := ms3.Norm(v)
	if n < 1e-18 {
		return ms3.Vec{Y: 1}
	}
	return ms3.Scale(1/n, v)
}
