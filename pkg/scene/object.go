package scene

import (
	"image/color"
	"math"
	"slices"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/models"
	"github.com/taigrr/glimpse/pkg/render"
)

// Object places a mesh in the world. The mesh must not be modified once the
// object is in a scene.
type Object struct {
	Name      string
	Mesh      *models.Mesh
	Transform math3d.Affine // Object to world
	Hidden    bool

	materials []render.Material
}

// NewObject wraps mesh with an identity transform. Mesh materials are
// converted once here, including texture decoding.
func NewObject(name string, mesh *models.Mesh) *Object {
	o := &Object{
		Name:      name,
		Mesh:      mesh,
		Transform: math3d.Identity(),
	}
	if mesh != nil {
		o.materials = make([]render.Material, len(mesh.Materials))
		for i, m := range mesh.Materials {
			o.materials[i] = ConvertMaterial(m)
		}
	}
	return o
}

// Materials returns the render materials indexed by the mesh's faces.
func (o *Object) Materials() []render.Material {
	return o.materials
}

// Renderable returns the object as seen through view.
func (o *Object) Renderable(view math3d.Affine) render.Object {
	ro := render.Object{
		ToView:    view.Mul(o.Transform),
		Materials: o.materials,
	}
	if o.Mesh != nil {
		ro.Geometry = o.Mesh
	}
	return ro
}

// ConvertMaterial maps a loaded material onto the renderer's.
func ConvertMaterial(m models.Material) render.Material {
	out := render.Material{
		Color:     color.RGBA{unit8(m.BaseColor[0]), unit8(m.BaseColor[1]), unit8(m.BaseColor[2]), 255},
		Specular:  m.Specular,
		Shininess: m.Shininess,
	}
	if m.BaseMap != nil {
		out.Texture = render.TextureFromImage(m.BaseMap)
		out.Texture.FilterMode = render.FilterBilinear
	}
	return out
}

func unit8(v float64) uint8 {
	return uint8(math.Round(min(max(v, 0), 1) * 255))
}

// SetTexture puts t on every material of the object. A nil texture
// removes textures. Once the object is in a Scene, use Scene.SetTexture.
func (o *Object) SetTexture(t *render.Texture) {
	mats := slices.Clone(o.materials)
	if len(mats) == 0 {
		mats = []render.Material{render.DefaultMaterial}
	}
	for i := range mats {
		mats[i].Texture = t
	}
	o.materials = mats
}
