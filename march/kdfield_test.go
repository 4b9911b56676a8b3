package march_test

import (
	"testing"
	"time"

	"github.com/soypat/glgl/math/ms3"

	"github.com/metafield/metafield"
	"github.com/metafield/metafield/march"
)

func TestMeshFieldLookup(t *testing.T) {
	sphere := metafield.Sphere{R: 1}
	vol := march.VolumeFromBounds(sphere.Bounds(), 20, 0)
	r, err := march.NewGridRenderer(vol, sphere)
	if err != nil {
		t.Fatal(err)
	}
	model, err := march.RenderAll(r)
	if err != nil {
		t.Fatal(err)
	}
	field := march.NewMeshField(model)
	start := time.Now()
	got := field.Evaluate(ms3.Vec{X: 1})
	t.Log(len(model), time.Since(start), got)

	bb := field.Bounds()
	if bb.Min.X > -0.8 || bb.Max.X < 0.8 {
		t.Errorf("mesh field bounds %+v too small for a unit sphere", bb)
	}
	// Positive inside, negative outside, matching the metaball convention.
	if v := field.Evaluate(ms3.Vec{}); v <= 0 {
		t.Errorf("field at sphere center = %g, want positive", v)
	}
	if v := field.Evaluate(ms3.Vec{X: 2}); v >= 0 {
		t.Errorf("field well outside sphere = %g, want negative", v)
	}
}

func TestMeshFieldRemarch(t *testing.T) {
	// A mesh rendered from a field can be fed back in as a field.
	sphere := metafield.Sphere{R: 1}
	vol := march.VolumeFromBounds(sphere.Bounds(), 16, 0)
	r, err := march.NewGridRenderer(vol, sphere)
	if err != nil {
		t.Fatal(err)
	}
	model, err := march.RenderAll(r)
	if err != nil {
		t.Fatal(err)
	}
	field := march.NewMeshField(model)
	vol2 := march.VolumeFromBounds(field.Bounds(), 12, 0)
	r2, err := march.NewGridRenderer(vol2, field)
	if err != nil {
		t.Fatal(err)
	}
	remarched, err := march.RenderAll(r2)
	if err != nil {
		t.Fatal(err)
	}
	if len(remarched) == 0 {
		t.Fatal("remarching a mesh field produced no geometry")
	}
}
