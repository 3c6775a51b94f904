package render

import (
	"image/color"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// Object is one drawable: geometry, its object-to-view transform and the
// materials its faces index.
type Object struct {
	Geometry  Geometry
	ToView    math3d.Affine
	Materials []Material
}

func (o *Object) material(i int) *Material {
	if i < 0 || i >= len(o.Materials) {
		return &DefaultMaterial
	}
	return &o.Materials[i]
}

// Pipeline chains Projector, Evaluator and Rasterizer and owns one
// ProjectedObject per object slot, so caches are reused frame to frame.
// It is not safe for concurrent use.
type Pipeline struct {
	Lens       Lens
	Projector  *Projector
	Evaluator  *Evaluator
	Rasterizer *Rasterizer

	objects []*ProjectedObject
}

// NewPipeline creates a pipeline drawing into fb with a default lens.
func NewPipeline(fb *Framebuffer) *Pipeline {
	cache := NewReflectanceCache(ReflectanceSize)
	return &Pipeline{
		Lens:       DefaultLens(),
		Projector:  NewProjector(),
		Evaluator:  NewEvaluator(cache),
		Rasterizer: NewRasterizer(fb, cache),
	}
}

// Begin starts a frame: binds fb, installs the lights and resets stats and
// the face pool. It does not clear fb.
func (p *Pipeline) Begin(fb *Framebuffer, ambient [3]float64, lights []Light) {
	p.Rasterizer.Bind(fb)
	p.Rasterizer.ResetStats()
	p.Projector.Begin()
	p.Evaluator.SetLights(ambient, lights)
}

// Projected returns the cache for slot, creating it if needed.
func (p *Pipeline) Projected(slot int) *ProjectedObject {
	for len(p.objects) <= slot {
		p.objects = append(p.objects, &ProjectedObject{})
	}
	return p.objects[slot]
}

// Trim releases caches for slots at or beyond n.
func (p *Pipeline) Trim(n int) {
	if n < len(p.objects) {
		clear(p.objects[n:])
		p.objects = p.objects[:n]
	}
}

func (p *Pipeline) viewport() Viewport {
	fb := p.Rasterizer.Framebuffer()
	if fb == nil {
		return Viewport{}
	}
	return Viewport{Width: fb.Width, Height: fb.Height}
}

// Draw renders o fully shaded and returns the number of faces filled.
func (p *Pipeline) Draw(slot int, o Object) int {
	if o.Geometry == nil {
		return 0
	}
	obj := p.Projected(slot)
	if p.Projector.Project(obj, o.Geometry, o.ToView, p.Lens, p.viewport()) == 0 {
		return 0
	}

	p.Evaluator.Prepare(obj)
	drawn := 0
	for _, f := range obj.Faces {
		mat := o.material(f.Material)
		p.Evaluator.Shade(obj, f, mat)
		if p.Rasterizer.DrawFace(obj, f, mat) {
			drawn++
		}
	}
	return drawn
}

// Outline projects o and draws its visible faces as a wireframe.
func (p *Pipeline) Outline(slot int, o Object, c color.RGBA) int {
	if o.Geometry == nil {
		return 0
	}
	obj := p.Projected(slot)
	n := p.Projector.Project(obj, o.Geometry, o.ToView, p.Lens, p.viewport())
	p.Rasterizer.DrawWireframe(obj, c)
	return n
}
