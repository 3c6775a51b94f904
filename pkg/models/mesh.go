// Package models provides mesh representation and loading for glimpse.
//
// A Mesh satisfies render.Geometry: faces are convex planar polygons whose
// vertices run counter-clockwise when seen from the front side.
package models

import (
	"image"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// Mesh represents a polygon mesh with vertices, faces, and materials.
type Mesh struct {
	Name      string
	Vertices  []MeshVertex
	Faces     []Face
	Materials []Material

	// Bounding box (calculated on load)
	BoundsMin math3d.Vec3
	BoundsMax math3d.Vec3
}

// MeshVertex holds all vertex attributes. UV is normalized with the origin
// at the top-left of the texture image.
type MeshVertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
}

// Face is a convex polygon referencing Mesh.Vertices.
type Face struct {
	V        []int       // Indices into Mesh.Vertices, counter-clockwise from the front
	Material int         // Index into Mesh.Materials (-1 for no material)
	Smooth   bool        // Interpolate vertex normals instead of using Normal
	Normal   math3d.Vec3 // Unit face normal, see CalculateFaceNormals
}

// Material describes the surface of a group of faces.
type Material struct {
	Name       string
	BaseColor  [4]float64  // RGBA in 0-1 range
	Specular   float64     // Specular intensity, 0-1
	Shininess  float64     // Phong exponent
	Metallic   float64     // 0 = dielectric, 1 = metal
	Roughness  float64     // 0 = smooth, 1 = rough
	BaseMap    image.Image // Optional base color texture
	HasTexture bool
}

// DefaultMaterial is used for faces without a material.
var DefaultMaterial = Material{
	Name:      "default",
	BaseColor: [4]float64{0.8, 0.8, 0.8, 1},
	Specular:  0.3,
	Shininess: 16,
	Roughness: 1,
}

// NewMesh creates an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{
		Name:     name,
		Vertices: make([]MeshVertex, 0),
		Faces:    make([]Face, 0),
	}
}

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(pos, normal math3d.Vec3, uv math3d.Vec2) int {
	m.Vertices = append(m.Vertices, MeshVertex{Position: pos, Normal: normal, UV: uv})
	return len(m.Vertices) - 1
}

// AddFace appends a polygon and computes its normal.
func (m *Mesh) AddFace(material int, smooth bool, v ...int) {
	f := Face{V: append([]int(nil), v...), Material: material, Smooth: smooth}
	f.Normal = m.polygonNormal(f.V).Normalize()
	m.Faces = append(m.Faces, f)
}

// CalculateBounds computes the axis-aligned bounding box.
func (m *Mesh) CalculateBounds() {
	if len(m.Vertices) == 0 {
		return
	}

	m.BoundsMin = m.Vertices[0].Position
	m.BoundsMax = m.Vertices[0].Position

	for _, v := range m.Vertices[1:] {
		m.BoundsMin = m.BoundsMin.Min(v.Position)
		m.BoundsMax = m.BoundsMax.Max(v.Position)
	}
}

// Center returns the center of the bounding box.
func (m *Mesh) Center() math3d.Vec3 {
	return m.BoundsMin.Add(m.BoundsMax).Scale(0.5)
}

// Size returns the dimensions of the bounding box.
func (m *Mesh) Size() math3d.Vec3 {
	return m.BoundsMax.Sub(m.BoundsMin)
}

// TriangleCount returns the number of triangles a fan split would produce.
func (m *Mesh) TriangleCount() int {
	n := 0
	for _, f := range m.Faces {
		if len(f.V) >= 3 {
			n += len(f.V) - 2
		}
	}
	return n
}

// polygonNormal returns the unnormalized Newell normal. Its length is twice
// the polygon area, so it doubles as an area weight.
func (m *Mesh) polygonNormal(idx []int) math3d.Vec3 {
	var n math3d.Vec3
	for i, vi := range idx {
		if vi < 0 || vi >= len(m.Vertices) {
			return math3d.Vec3{}
		}
		vj := idx[(i+1)%len(idx)]
		if vj < 0 || vj >= len(m.Vertices) {
			return math3d.Vec3{}
		}
		a, b := m.Vertices[vi].Position, m.Vertices[vj].Position
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return n
}

// CalculateFaceNormals recomputes every face normal from its vertices.
func (m *Mesh) CalculateFaceNormals() {
	for i := range m.Faces {
		m.Faces[i].Normal = m.polygonNormal(m.Faces[i].V).Normalize()
	}
}

// CalculateSmoothNormals computes area-weighted vertex normals for smooth
// shading, replacing any existing ones.
func (m *Mesh) CalculateSmoothNormals() {
	for i := range m.Vertices {
		m.Vertices[i].Normal = math3d.Vec3{}
	}
	m.FillMissingNormals()
}

// FillMissingNormals gives every vertex without a normal the area-weighted
// average of the faces that use it.
func (m *Mesh) FillMissingNormals() {
	missing := make([]bool, len(m.Vertices))
	acc := make([]math3d.Vec3, len(m.Vertices))
	need := false
	for i, v := range m.Vertices {
		missing[i] = v.Normal.LenSq() < 1e-12
		need = need || missing[i]
	}
	if !need {
		return
	}

	for _, f := range m.Faces {
		n := m.polygonNormal(f.V)
		for _, vi := range f.V {
			if vi >= 0 && vi < len(m.Vertices) && missing[vi] {
				acc[vi] = acc[vi].Add(n)
			}
		}
	}

	for i := range m.Vertices {
		if missing[i] {
			m.Vertices[i].Normal = acc[i].Normalize()
		}
	}
}

// HasNormals reports whether any vertex carries a usable normal.
func (m *Mesh) HasNormals() bool {
	for _, v := range m.Vertices {
		if v.Normal.LenSq() > 1e-6 {
			return true
		}
	}
	return false
}

// Transform applies an affine transform to all vertices and face normals.
func (m *Mesh) Transform(a math3d.Affine) {
	nm := a.NormalMatrix()
	for i := range m.Vertices {
		m.Vertices[i].Position = a.Apply(m.Vertices[i].Position)
		m.Vertices[i].Normal = nm.ApplyDir(m.Vertices[i].Normal).Normalize()
	}
	if a.Determinant() < 0 {
		// A mirror flips winding; restore counter-clockwise fronts.
		for i := range m.Faces {
			v := m.Faces[i].V
			for l, r := 0, len(v)-1; l < r; l, r = l+1, r-1 {
				v[l], v[r] = v[r], v[l]
			}
		}
	}
	m.CalculateFaceNormals()
	m.CalculateBounds()
}

// Clone creates a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	clone := &Mesh{
		Name:      m.Name,
		Vertices:  make([]MeshVertex, len(m.Vertices)),
		Faces:     make([]Face, len(m.Faces)),
		Materials: make([]Material, len(m.Materials)),
		BoundsMin: m.BoundsMin,
		BoundsMax: m.BoundsMax,
	}
	copy(clone.Vertices, m.Vertices)
	copy(clone.Materials, m.Materials)
	for i, f := range m.Faces {
		f.V = append([]int(nil), f.V...)
		clone.Faces[i] = f
	}
	return clone
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// Vertex returns the object-space position of vertex i.
func (m *Mesh) Vertex(i int) math3d.Vec3 { return m.Vertices[i].Position }

// VertexNormal returns the unit normal of vertex i.
func (m *Mesh) VertexNormal(i int) math3d.Vec3 { return m.Vertices[i].Normal }

// UV returns the normalized texture coordinate of vertex i.
func (m *Mesh) UV(i int) math3d.Vec2 { return m.Vertices[i].UV }

// FaceCount returns the number of faces.
func (m *Mesh) FaceCount() int { return len(m.Faces) }

// Face returns the vertex indices of face i.
func (m *Mesh) Face(i int) []int { return m.Faces[i].V }

// FaceNormal returns the unit normal of face i.
func (m *Mesh) FaceNormal(i int) math3d.Vec3 { return m.Faces[i].Normal }

// FaceSmooth reports whether face i interpolates vertex normals.
func (m *Mesh) FaceSmooth(i int) bool { return m.Faces[i].Smooth }

// FaceMaterial returns the material index for face i.
// Returns -1 if no material assigned.
func (m *Mesh) FaceMaterial(i int) int {
	return m.Faces[i].Material
}

// GetMaterial returns the material at index i.
// Returns nil if index is out of bounds or -1.
func (m *Mesh) GetMaterial(i int) *Material {
	if i < 0 || i >= len(m.Materials) {
		return nil
	}
	return &m.Materials[i]
}

// MaterialCount returns the number of materials.
func (m *Mesh) MaterialCount() int {
	return len(m.Materials)
}

// Bounds returns the axis-aligned bounding box.
func (m *Mesh) Bounds() (min, max math3d.Vec3) {
	return m.BoundsMin, m.BoundsMax
}
