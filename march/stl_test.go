package march_test

import (
	"bytes"
	"io"
	"os"
	"testing"

	sdfxrender "github.com/deadsy/sdfx/render"
	sdfx "github.com/deadsy/sdfx/sdf"
	"github.com/fogleman/fauxgl"
	"github.com/hschendel/stl"
	"github.com/nfnt/resize"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/plot/cmpimg"

	"github.com/metafield/metafield"
	"github.com/metafield/metafield/march"
)

const (
	// imgDelta a normalized imgDelta parameter to describe how close the matching
	// should be performed (imgDelta=0: perfect match, imgDelta=1, loose match)
	imgDelta = 0
	quality  = 48
)

func testSystem() *metafield.System {
	return &metafield.System{
		Balls: []metafield.Metaball{
			{Pos: ms3.Vec{X: 0.35, Y: 0.2}, Strength: 1, Subtract: 1},
			{Pos: ms3.Vec{X: -0.35, Y: -0.1}, Strength: 0.8, Subtract: 1},
			{Pos: ms3.Vec{Z: 0.3}, Strength: 0.5, Subtract: 1},
		},
	}
}

func TestSTLCreateWriteRead(t *testing.T) {
	sys := testSystem()
	vol := march.VolumeFromBounds(sys.Bounds(), quality, 0.5)
	r, err := march.NewGridRenderer(vol, sys)
	if err != nil {
		t.Fatal(err)
	}
	err = march.CreateSTL("balls.stl", r)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove("balls.stl")
	fp, err := os.Open("balls.stl")
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	bfile, err := io.ReadAll(fp)
	if err != nil {
		t.Fatal(err)
	}
	r, err = march.NewGridRenderer(vol, sys)
	if err != nil {
		t.Fatal(err)
	}
	model, err := march.RenderAll(r)
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	_, err = march.WriteSTL(&b, model)
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != len(bfile) {
		t.Fatal("WriteSTL and CreateSTL output length mismatch")
	}
	if b.String() != string(bfile) {
		t.Fatal("WriteSTL and CreateSTL output mismatch")
	}
}

// Reads the written STL back with an independent third party parser.
func TestSTLThirdPartyReadback(t *testing.T) {
	const tol = 1e-6
	sys := testSystem()
	vol := march.VolumeFromBounds(sys.Bounds(), quality, 0.5)
	r, err := march.NewGridRenderer(vol, sys)
	if err != nil {
		t.Fatal(err)
	}
	model, err := march.RenderAll(r)
	if err != nil {
		t.Fatal(err)
	}
	path := "readback.stl"
	fp, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)
	_, err = march.WriteSTL(fp, model)
	fp.Close()
	if err != nil {
		t.Fatal(err)
	}
	solid, err := stl.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(solid.Triangles) != len(model) {
		t.Fatalf("parser read %d triangles, wrote %d", len(solid.Triangles), len(model))
	}
	for i, tri := range solid.Triangles {
		for v := 0; v < 3; v++ {
			got := ms3.Vec{X: tri.Vertices[v][0], Y: tri.Vertices[v][1], Z: tri.Vertices[v][2]}
			if !ms3.EqualElem(got, model[i][v], tol) {
				t.Fatalf("triangle %d vertex %d: got %v, want %v", i, v, got, model[i][v])
			}
		}
	}
}

func TestRenderDeterministicImage(t *testing.T) {
	sys := testSystem()
	vol := march.VolumeFromBounds(sys.Bounds(), quality, 0.5)
	view := viewConfig{
		up:     ms3.Vec{Y: 1},
		eyepos: ms3.Vec{X: 3, Y: 3, Z: 3},
		near:   1,
		far:    10,
	}
	paths := [2]string{"det_a", "det_b"}
	var pngs [2]string
	for i, base := range paths {
		stlPath := base + ".stl"
		pngs[i] = base + ".png"
		r, err := march.NewGridRenderer(vol, sys)
		if err != nil {
			t.Fatal(err)
		}
		if err := march.CreateSTL(stlPath, r); err != nil {
			t.Fatal(err)
		}
		stlToPNG(t, stlPath, pngs[i], view)
	}
	if !equalImages(t, pngs[0], pngs[1]) {
		t.Error("identical fields rendered to different images")
	}
	if !t.Failed() {
		for _, base := range paths {
			os.Remove(base + ".stl")
			os.Remove(base + ".png")
		}
	}
}

func BenchmarkMetaballSphere(b *testing.B) {
	const output = "our_sphere.stl"
	sys := &metafield.System{
		Balls: []metafield.Metaball{
			{Strength: 1, Subtract: 1},
		},
	}
	vol := march.VolumeFromBounds(sys.Bounds(), benchQuality, 0.5)
	for i := 0; i < b.N; i++ {
		r, err := march.NewGridRenderer(vol, sys)
		if err != nil {
			b.Fatal(err)
		}
		march.CreateSTL(output, r)
	}
}

const benchQuality = 150

func BenchmarkSDFXSphere(b *testing.B) {
	stdout := os.Stdout
	defer func() {
		os.Stdout = stdout // pesky sdfx prints out stuff
	}()
	os.Stdout, _ = os.Open(os.DevNull)
	const output = "sdfx_sphere.stl"
	object, _ := sdfx.Sphere3D(1)
	for i := 0; i < b.N; i++ {
		sdfxrender.ToSTL(object, benchQuality, output, &sdfxrender.MarchingCubesOctree{})
	}
}

type viewConfig struct {
	// what position (point) to look at
	lookat ms3.Vec
	// which way is up (direction)
	up ms3.Vec
	// where the camera/eye located at (point)
	eyepos ms3.Vec
	far    float64
	near   float64
}

func stlToPNG(t testing.TB, stlName, outputname string, view viewConfig) {
	mesh, err := fauxgl.LoadSTL(stlName)
	if err != nil {
		t.Fatal(err)
	}
	const (
		width, height = 960, 540 // output width and height in pixels
		scale         = 1        // optional supersampling
		fovy          = 30       // vertical field of view in degrees
	)

	var (
		far    = view.far
		near   = view.near
		eye    = fauxgl.V(float64(view.eyepos.X), float64(view.eyepos.Y), float64(view.eyepos.Z)) // camera position
		center = fauxgl.V(float64(view.lookat.X), float64(view.lookat.Y), float64(view.lookat.Z)) // view center position
		up     = fauxgl.V(float64(view.up.X), float64(view.up.Y), float64(view.up.Z))             // up vector
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize()                                             // light direction
		color  = fauxgl.HexColor("#468966")                                                       // object color
	)

	// fit mesh in a bi-unit cube centered at the origin
	mesh.BiUnitCube()
	// create a rendering context
	context := fauxgl.NewContext(width*scale, height*scale)
	context.ClearColorBufferWith(fauxgl.HexColor("#FFF8E3"))
	// create transformation matrix and light direction
	aspect := float64(width) / float64(height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(fovy, aspect, near, far)
	// use builtin phong shader
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = color
	context.Shader = shader
	// render
	context.DrawMesh(mesh)
	// downsample image for antialiasing
	image := context.Image()
	image = resize.Resize(width, height, image, resize.Bilinear)
	err = fauxgl.SavePNG(outputname, image)
	if err != nil {
		t.Fatal(err)
	}
}

func equalImages(t *testing.T, png1, png2 string) bool {
	b1, err := os.ReadFile(png1)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := os.ReadFile(png2)
	if err != nil {
		t.Fatal(err)
	}
	equal, err := cmpimg.EqualApprox("png", b1, b2, imgDelta)
	if err != nil {
		t.Fatal(err)
	}
	return equal
}
