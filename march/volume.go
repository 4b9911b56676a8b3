// Package march extracts triangulated isosurfaces from scalar fields
// sampled over regular 3D grids using table driven marching cubes.
// Geometry is streamed into caller-owned fixed capacity buffers and
// capacity exhaustion yields a partial, always consistent mesh rather
// than an error.
package march

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"

	"github.com/metafield/metafield"
)

// Volume describes the axis aligned region, grid spacing and threshold
// over which an isosurface is extracted.
type Volume struct {
	Min ms3.Vec
	Max ms3.Vec
	// Step is the grid spacing per axis. All components must be positive.
	Step ms3.Vec
	// Threshold is the field value at which the surface sits.
	Threshold float32
}

var (
	errBadStep      = errors.New("march: volume step must be positive")
	errBadBounds    = errors.New("march: volume max must exceed min")
	errGridTooSmall = errors.New("march: grid needs at least 2 samples per axis")
)

// Validate reports whether the volume describes a well formed sample grid.
func (v Volume) Validate() error {
	if v.Step.X <= 0 || v.Step.Y <= 0 || v.Step.Z <= 0 {
		return errBadStep
	}
	if v.Max.X <= v.Min.X || v.Max.Y <= v.Min.Y || v.Max.Z <= v.Min.Z {
		return errBadBounds
	}
	w, h, d := v.Dims()
	if w < 2 || h < 2 || d < 2 {
		return errGridTooSmall
	}
	return nil
}

// Dims returns the sample grid dimensions, floor((max-min)/step)+1 per
// axis. A valid volume has at least 2 samples per axis so that at least
// one cube exists.
func (v Volume) Dims() (width, height, depth int) {
	width = int(math32.Floor((v.Max.X-v.Min.X)/v.Step.X)) + 1
	height = int(math32.Floor((v.Max.Y-v.Min.Y)/v.Step.Y)) + 1
	depth = int(math32.Floor((v.Max.Z-v.Min.Z)/v.Step.Z)) + 1
	return width, height, depth
}

// Pos returns the world position of sample (i,j,k).
func (v Volume) Pos(i, j, k int) ms3.Vec {
	return ms3.Vec{
		X: v.Min.X + float32(i)*v.Step.X,
		Y: v.Min.Y + float32(j)*v.Step.Y,
		Z: v.Min.Z + float32(k)*v.Step.Z,
	}
}

// VolumeFromBounds builds a volume covering bb with approximately cells
// cubes along the longest axis. The box is scaled about its center so
// boundaries do not sit exactly on the surface.
func VolumeFromBounds(bb ms3.Box, cells int, threshold float32) Volume {
	bb = bb.ScaleCentered(ms3.Vec{X: 1.01, Y: 1.01, Z: 1.01})
	step := bb.Size().Max() / float32(cells)
	return Volume{
		Min:       bb.Min,
		Max:       bb.Max,
		Step:      ms3.Vec{X: step, Y: step, Z: step},
		Threshold: threshold,
	}
}

// Sampler caches field values over a volume's sample grid. The grid
// storage is reused between Resample calls so per-frame regeneration of
// a moving field does not allocate.
type Sampler struct {
	vol     Volume
	w, h, d int
	grid    []float32
}

// Resample evaluates f at every sample point of vol, rebuilding the
// cached grid. Storage is row-major with x fastest, then y, then z.
func (s *Sampler) Resample(vol Volume, f metafield.Field3) error {
	if err := vol.Validate(); err != nil {
		return err
	}
	w, h, d := vol.Dims()
	n := w * h * d
	if cap(s.grid) < n {
		s.grid = make([]float32, n)
	}
	s.grid = s.grid[:n]
	s.vol = vol
	s.w, s.h, s.d = w, h, d
	idx := 0
	for k := 0; k < d; k++ {
		z := vol.Min.Z + float32(k)*vol.Step.Z
		for j := 0; j < h; j++ {
			y := vol.Min.Y + float32(j)*vol.Step.Y
			for i := 0; i < w; i++ {
				s.grid[idx] = f.Evaluate(ms3.Vec{X: vol.Min.X + float32(i)*vol.Step.X, Y: y, Z: z})
				idx++
			}
		}
	}
	return nil
}

// Dims returns the grid dimensions of the last Resample.
func (s *Sampler) Dims() (width, height, depth int) { return s.w, s.h, s.d }

// Volume returns the volume of the last Resample.
func (s *Sampler) Volume() Volume { return s.vol }

// At returns the cached value at sample (i,j,k). Indices must be in
// bounds; the traversal guarantees this for all corner lookups.
func (s *Sampler) At(i, j, k int) float32 {
	return s.grid[i+s.w*(j+s.h*k)]
}

// AtClamped is At with indices clamped into the grid, for ±1 neighbor
// lookups at the grid shell during gradient estimation.
func (s *Sampler) AtClamped(i, j, k int) float32 {
	return s.At(clampInt(i, 0, s.w-1), clampInt(j, 0, s.h-1), clampInt(k, 0, s.d-1))
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
