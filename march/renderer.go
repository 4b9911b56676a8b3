package march

import (
	"io"

	"github.com/soypat/glgl/math/ms3"

	"github.com/metafield/metafield"
)

// Renderer is a source of triangles read in batches in the manner of
// io.Reader. io.EOF signals the model is fully read.
type Renderer interface {
	ReadTriangles(dst []ms3.Triangle) (n int, err error)
}

// GridRenderer adapts the grid Marcher to the streaming Renderer
// contract. It marches one z slab of the volume at a time into an
// internal worst-case-sized buffer, so arbitrarily large volumes render
// with bounded memory.
type GridRenderer struct {
	vol       Volume
	field     metafield.Field3
	m         Marcher
	slab      *MeshBuffers
	scratch   []ms3.Triangle
	unwritten triangleBuffer
	k, depth  int
}

// NewGridRenderer returns a Renderer streaming the isosurface of field
// over vol.
func NewGridRenderer(vol Volume, field metafield.Field3) (*GridRenderer, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	w, h, d := vol.Dims()
	// Worst case one slab can produce: 12 vertices, 5 triangles per cell.
	cells := (w - 1) * (h - 1)
	return &GridRenderer{
		vol:   vol,
		field: field,
		slab:  NewMeshBuffers(cells, false),
		depth: d,
	}, nil
}

// ReadTriangles writes triangles rendered from the field into dst and
// returns the number written. It returns io.EOF once the whole volume
// has been read.
func (g *GridRenderer) ReadTriangles(dst []ms3.Triangle) (n int, err error) {
	if len(dst) == 0 {
		return 0, io.ErrShortBuffer
	}
	for n < len(dst) {
		if g.unwritten.Len() > 0 {
			n += g.unwritten.Read(dst[n:])
			continue
		}
		if g.k >= g.depth-1 {
			return n, io.EOF
		}
		if err := g.marchSlab(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// marchSlab triangulates the next pair of z sample planes into the
// pending triangle buffer.
func (g *GridRenderer) marchSlab() error {
	slabVol := g.vol
	slabVol.Min.Z = g.vol.Min.Z + float32(g.k)*g.vol.Step.Z
	// 1.5 steps guarantees exactly two sample planes despite rounding.
	slabVol.Max.Z = slabVol.Min.Z + 1.5*g.vol.Step.Z
	g.slab.Reset()
	if _, err := g.m.March(slabVol, g.field, g.slab); err != nil {
		return err
	}
	g.k++
	g.scratch = g.slab.AppendTriangles(g.scratch[:0])
	g.unwritten.Write(g.scratch)
	return nil
}

// RenderAll reads the full contents of a Renderer and returns the slice
// read. It does not return an error on io.EOF.
func RenderAll(r Renderer) ([]ms3.Triangle, error) {
	var err error
	var nt int
	result := make([]ms3.Triangle, 0, 1<<12)
	buf := make([]ms3.Triangle, 1024)
	for {
		nt, err = r.ReadTriangles(buf)
		result = append(result, buf[:nt]...)
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

type triangleBuffer struct {
	buf []ms3.Triangle
}

// Read reads from this buffer.
func (b *triangleBuffer) Read(t []ms3.Triangle) int {
	n := copy(t, b.buf)
	b.buf = b.buf[n:]
	return n
}

// Write appends triangles to this buffer.
func (b *triangleBuffer) Write(t []ms3.Triangle) int {
	b.buf = append(b.buf, t...)
	return len(t)
}

func (b *triangleBuffer) Len() int { return len(b.buf) }
