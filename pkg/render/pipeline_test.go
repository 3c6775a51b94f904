package render

import (
	"testing"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/models"
)

// cubeView places an object 5 units in front of the viewer. The mirror on Z
// takes the right-handed object space into view space.
var cubeView = math3d.Translate(math3d.V3(0, 0, 5)).Mul(math3d.Scale(math3d.V3(1, 1, -1)))

func headOn() []Light {
	return []Light{{Type: LightDirectional, Direction: math3d.V3(0, 0, 1), Color: [3]float64{1, 1, 1}}}
}

func TestPipelineCube(t *testing.T) {
	fb := NewFramebuffer(64, 64)
	p := NewPipeline(fb)
	p.Begin(fb, [3]float64{0.2, 0.2, 0.2}, headOn())

	cube := models.NewCube(1)
	drawn := p.Draw(0, Object{
		Geometry:  cube,
		ToView:    cubeView,
		Materials: []Material{{Color: RGB(200, 200, 200)}},
	})

	if drawn != 1 {
		t.Fatalf("drawn = %d faces, want 1", drawn)
	}
	if p.Projector.Stats.Backfaces != 5 {
		t.Errorf("backfaces = %d, want 5", p.Projector.Stats.Backfaces)
	}
	// (0.2 ambient + 1 diffuse) * 200
	if got := fb.GetPixel(32, 32); got != RGB(240, 240, 240) {
		t.Errorf("centre = %v, want 240 gray", got)
	}
	if got := fb.GetPixel(0, 0); got.A != 0 {
		t.Errorf("corner = %v, want untouched", got)
	}
	if z := fb.DepthAt(32, 32).Z(); z < 4.49 || z > 4.51 {
		t.Errorf("centre depth = %v, want 4.5", z)
	}
}

func TestPipelineDefaultMaterial(t *testing.T) {
	fb := NewFramebuffer(32, 32)
	p := NewPipeline(fb)
	p.Begin(fb, [3]float64{1, 1, 1}, nil)

	p.Draw(0, Object{Geometry: models.NewCube(1), ToView: cubeView})
	if got := fb.GetPixel(16, 16); got != DefaultMaterial.Color {
		t.Errorf("centre = %v, want default material %v", got, DefaultMaterial.Color)
	}
}

func TestPipelineOutline(t *testing.T) {
	fb := NewFramebuffer(64, 64)
	p := NewPipeline(fb)
	p.Begin(fb, [3]float64{}, nil)

	line := RGB(0, 255, 0)
	if n := p.Outline(0, Object{Geometry: models.NewCube(1), ToView: cubeView}, line); n != 1 {
		t.Errorf("outlined %d faces, want 1", n)
	}

	lit := 0
	for _, px := range fb.Pixels {
		if px == line {
			lit++
		}
	}
	if lit == 0 {
		t.Fatal("no outline drawn")
	}
	if fb.GetPixel(32, 32) == line {
		t.Error("outline filled the face")
	}
}

func TestPipelineSlots(t *testing.T) {
	p := NewPipeline(NewFramebuffer(8, 8))
	a := p.Projected(2)
	if p.Projected(2) != a {
		t.Error("slot cache not reused")
	}
	p.Trim(1)
	if p.Projected(2) == a {
		t.Error("trimmed slot survived")
	}

	if n := p.Draw(0, Object{}); n != 0 {
		t.Errorf("nil geometry drew %d faces", n)
	}
}

func BenchmarkPipelineSphere(b *testing.B) {
	fb := NewFramebuffer(320, 200)
	p := NewPipeline(fb)
	sphere := models.NewUVSphere(1, 48, 24)
	obj := Object{
		Geometry:  sphere,
		ToView:    math3d.Translate(math3d.V3(0, 0, 3)).Mul(math3d.Scale(math3d.V3(1, 1, -1))),
		Materials: []Material{{Color: RGB(180, 120, 90), Specular: 0.6, Shininess: 32}},
	}
	lights := []Light{{
		Type:     LightPoint,
		Position: math3d.V3(-2, 2, 0),
		Color:    [3]float64{1, 1, 1},
		Specular: 1,
		Constant: 1,
	}}

	for b.Loop() {
		fb.Clear(RGB(0, 0, 0))
		p.Begin(fb, [3]float64{0.1, 0.1, 0.1}, lights)
		p.Draw(0, obj)
	}
}
