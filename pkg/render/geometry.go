// Package render implements glimpse's software rasterization pipeline:
// projection into screen space, per-vertex lighting and scanline polygon
// fill with a per-pixel depth test.
package render

import (
	"image/color"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// Geometry is the mesh data the pipeline consumes. This interface lives in
// the render package to avoid import cycles with models.
//
// Winding contract: every face is a convex, planar polygon whose vertices
// are listed counter-clockwise when seen from its front side (the side its
// normal points to). Backface culling relies on this; a provider with
// clockwise faces must set Projector.FrontFace to CW, and one with mixed
// winding must disable culling. Normals are unit length in object space.
type Geometry interface {
	VertexCount() int
	Vertex(i int) math3d.Vec3
	VertexNormal(i int) math3d.Vec3
	// UV returns a normalized texture coordinate with a top-left origin.
	// It is scaled to texel units against the face's texture when drawn.
	UV(i int) math3d.Vec2

	FaceCount() int
	Face(i int) []int
	FaceNormal(i int) math3d.Vec3
	FaceSmooth(i int) bool
	// FaceMaterial returns an index into the object's materials, or -1.
	FaceMaterial(i int) int
}

// Bounded is implemented by geometry that can report an object-space
// bounding box, enabling whole-object view volume rejection.
type Bounded interface {
	Bounds() (min, max math3d.Vec3)
}

// Material is the surface description used for shading.
type Material struct {
	Color     color.RGBA // Base color, multiplied with the texture if present
	Specular  float64    // Specular reflectance, 0-1
	Shininess float64    // Highlight exponent
	Texture   *Texture   // Optional
}

// DefaultMaterial is used for faces with a missing or out of range material.
var DefaultMaterial = Material{
	Color:     color.RGBA{204, 204, 204, 255},
	Specular:  0.3,
	Shininess: 16,
}
