package march

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

// WriteSTL writes model triangles to w in binary STL format.
func WriteSTL(w io.Writer, model []ms3.Triangle) (int, error) {
	if len(model) == 0 {
		return 0, errors.New("empty triangle slice")
	}
	nt := int64(len(model)) // int64 so the limit check works on 32 bit machines.
	if nt > math.MaxUint32 {
		return 0, errors.New("amount of triangles in model exceeds STL design limits")
	}
	header := stlHeader{
		Count: uint32(nt),
	}
	var buf [84]byte
	header.put(buf[:])
	n, err := w.Write(buf[:84])
	if err != nil {
		return n, err
	} else if n != len(buf) {
		return n, io.ErrShortWrite
	}
	var d stlTriangle
	const triangleSize = 50
	for _, triangle := range model {
		norm := ms3.Unit(triangle.Normal())
		d.Normal[0] = norm.X
		d.Normal[1] = norm.Y
		d.Normal[2] = norm.Z
		d.Vertex1[0] = triangle[0].X
		d.Vertex1[1] = triangle[0].Y
		d.Vertex1[2] = triangle[0].Z
		d.Vertex2[0] = triangle[1].X
		d.Vertex2[1] = triangle[1].Y
		d.Vertex2[2] = triangle[1].Z
		d.Vertex3[0] = triangle[2].X
		d.Vertex3[1] = triangle[2].Y
		d.Vertex3[2] = triangle[2].Z
		d.put(buf[:])
		ngot, err := w.Write(buf[:triangleSize])
		n += ngot
		if err != nil {
			return n, err
		} else if ngot != triangleSize {
			return n, io.ErrShortWrite
		}
	}
	return n, nil
}

// CreateSTL renders the contents of r into an STL file at path.
func CreateSTL(path string, r Renderer) error {
	const sizeOfSTLHeader = 84
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	// Triangle count is unknown until the render finishes, so the header
	// is written last.
	_, err = file.Seek(sizeOfSTLHeader, 0)
	if err != nil {
		return err
	}
	rd := &stlReader{r: r}
	n, err := io.CopyBuffer(file, rd, make([]byte, 50*trianglesInBuffer))
	if err != nil {
		return err
	}
	_, err = file.Seek(0, 0)
	if err != nil {
		return err
	}
	var buf [84]byte
	header := stlHeader{
		Count: uint32(n / 50),
	}
	header.put(buf[:])
	_, err = file.Write(buf[:])
	return err
}

const trianglesInBuffer = 1 << 10

// stlReader adapts a Renderer to io.Reader yielding STL triangle bytes.
type stlReader struct {
	r   Renderer
	buf [trianglesInBuffer]ms3.Triangle
}

func (w *stlReader) Read(b []byte) (int, error) {
	const stlTriangleSize = 50
	ntMax := min(len(b)/stlTriangleSize, len(w.buf))
	if ntMax == 0 {
		return 0, errors.New("stlReader requires at least 50 bytes to write a single triangle")
	}
	var (
		err error
		it  int // triangles written to byte buffer
		nt  int // triangles read during ReadTriangles
		d   stlTriangle
	)
	for it < ntMax && err == nil {
		remaining := len(b)/stlTriangleSize - it
		nt, err = w.r.ReadTriangles(w.buf[:min(ntMax, remaining)])
		if nt*stlTriangleSize > len(b[it*stlTriangleSize:]) {
			panic("bug: buffer overflow")
		}
		for _, triangle := range w.buf[:nt] {
			norm := ms3.Unit(triangle.Normal())
			d.Normal[0] = norm.X
			d.Normal[1] = norm.Y
			d.Normal[2] = norm.Z
			d.Vertex1[0] = triangle[0].X
			d.Vertex1[1] = triangle[0].Y
			d.Vertex1[2] = triangle[0].Z
			d.Vertex2[0] = triangle[1].X
			d.Vertex2[1] = triangle[1].Y
			d.Vertex2[2] = triangle[1].Z
			d.Vertex3[0] = triangle[2].X
			d.Vertex3[1] = triangle[2].Y
			d.Vertex3[2] = triangle[2].Z
			d.put(b[it*stlTriangleSize:])
			it++
		}
	}
	return it * stlTriangleSize, err
}

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8
	Count uint32
}

func (h stlHeader) put(b []byte) {
	_ = b[83] // early bounds check
	binary.LittleEndian.PutUint32(b[80:], h.Count)
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // attribute byte count
}

func (t stlTriangle) put(b []byte) {
	if len(b) < 50 {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < 50 {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

var errCalculatedNormalMismatch = errors.New("triangle normal not approximately equal to normal calculated from vertices")

func readBinarySTL(r io.Reader) (output []ms3.Triangle, readErr error) {
	var header [84]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.New("STL header read failed: " + err.Error())
	}
	count := binary.LittleEndian.Uint32(header[80:])
	if count == 0 {
		return nil, errors.New("STL header indicates 0 triangles present")
	}
	var (
		buf [50]byte
		d   stlTriangle
		i   int
	)
	defer func() {
		if readErr != nil && !errors.Is(readErr, errCalculatedNormalMismatch) {
			readErr = fmt.Errorf("%d/%d STL triangles read: %w", i+1, count, readErr)
		}
	}()
	for i = 0; i < int(count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		d.get(buf[:])
		if err := d.validate(); err != nil {
			if errors.Is(err, errCalculatedNormalMismatch) {
				readErr = err
			} else {
				return nil, err
			}
		}
		output = append(output, ms3.Triangle{
			vecFrom3F32(d.Vertex1),
			vecFrom3F32(d.Vertex2),
			vecFrom3F32(d.Vertex3),
		})
	}
	return output, readErr
}

func (t stlTriangle) validate() error {
	const normTol = 5e-2
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	calcNormal := t.normalFromVertices()
	calcNormalNeg := [3]float32{-calcNormal[0], -calcNormal[1], -calcNormal[2]}
	if !equalWithin3F32(calcNormal, t.Normal, normTol) && !equalWithin3F32(calcNormalNeg, t.Normal, normTol) {
		return errCalculatedNormalMismatch
	}
	return nil
}

// normalFromVertices recomputes the facet normal in float64 to sidestep
// float32 cancellation on small triangles.
func (t stlTriangle) normalFromVertices() [3]float32 {
	v1 := r3.Scale(10, r3From3F32(t.Vertex1))
	v2 := r3.Scale(10, r3From3F32(t.Vertex2))
	v3 := r3.Scale(10, r3From3F32(t.Vertex3))
	e1 := r3.Sub(v2, v1)
	e2 := r3.Sub(v3, v1)
	n := r3.Unit(r3.Cross(e1, e2))
	return [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
}

func r3From3F32(f [3]float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}

func vecFrom3F32(f [3]float32) ms3.Vec {
	return ms3.Vec{X: f[0], Y: f[1], Z: f[2]}
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

func equalWithin3F32(a, b [3]float32, tol float32) bool {
	return math32.Abs(a[0]-b[0]) <= tol &&
		math32.Abs(a[1]-b[1]) <= tol &&
		math32.Abs(a[2]-b[2]) <= tol
}

func min(a, b int) int {
	if a <= b {
		return a
	}
	return b
}
