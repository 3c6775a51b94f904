package render

import (
	"image"
	"math"

	"golang.org/x/image/math/fixed"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// MinNear is the smallest near threshold Project accepts. It keeps inverse
// depth inside the range of Depth.
const MinNear = 1.0 / 128

// maxScreen bounds projected coordinates so they fit in 26.6 fixed point.
const maxScreen = 1 << 24

// Lens describes the camera optics.
type Lens struct {
	Aperture float64 // Full view angle across the shorter viewport side, radians
	Zoom     float64 // Magnification applied on top of Aperture
	Near     float64 // Vertices at or closer than this are invalid
}

// DefaultLens returns a 60 degree lens with no zoom.
func DefaultLens() Lens {
	return Lens{Aperture: math.Pi / 3, Zoom: 1, Near: 0.05}
}

// Focal returns the projection scale in pixels for the viewport.
func (l Lens) Focal(vp Viewport) float64 {
	zoom := l.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	aperture := l.Aperture
	if aperture <= 0 || aperture >= math.Pi {
		aperture = math.Pi / 3
	}
	half := float64(min(vp.Width, vp.Height)) / 2
	return zoom * half / math.Tan(aperture/2)
}

func (l Lens) near() float64 {
	return max(l.Near, MinNear)
}

// Viewport is the target size in pixels.
type Viewport struct {
	Width, Height int
}

// Rect returns the viewport as a rectangle anchored at the origin.
func (vp Viewport) Rect() image.Rectangle {
	return image.Rect(0, 0, vp.Width, vp.Height)
}

// CullMode selects backface culling.
type CullMode int

const (
	CullBack CullMode = iota // Reject faces turned away from the viewer
	CullNone                 // Draw both sides
)

// Winding is the screen-space vertex order of a front-facing polygon as
// seen by the viewer.
type Winding int

const (
	CCW Winding = iota // Counter-clockwise
	CW                 // Clockwise
)

// ProjectStats counts what happened to faces during projection.
type ProjectStats struct {
	Faces     int // Faces examined
	Visible   int // Faces handed to shading
	Malformed int // Fewer than 3 vertices or bad indices
	Voided    int // Using a vertex at or closer than the near threshold
	Backfaces int // Culled by orientation
	Offscreen int // Bounding box misses the viewport
}

// ProjectedObject is the per-object cache Project fills. Vertex arrays are
// indexed by geometry vertex index; Faces holds the visible faces in
// geometry order. Downstream stages treat it as read-only.
type ProjectedObject struct {
	Screen  []fixed.Point26_6 // Pixel position, y down
	InvZ    []Depth
	View    []math3d.Vec3 // View-space position
	Normals []math3d.Vec3 // View-space vertex normal
	UV      []math3d.Vec2
	Valid   []bool // Depth beyond the near threshold
	Faces   []*Face
}

// grow sizes the vertex arrays to n, doubling capacity when it runs out.
func (o *ProjectedObject) grow(n int) {
	if cap(o.Screen) < n {
		c := max(cap(o.Screen)*2, n, 16)
		o.Screen = make([]fixed.Point26_6, n, c)
		o.InvZ = make([]Depth, n, c)
		o.View = make([]math3d.Vec3, n, c)
		o.Normals = make([]math3d.Vec3, n, c)
		o.UV = make([]math3d.Vec2, n, c)
		o.Valid = make([]bool, n, c)
	} else {
		o.Screen = o.Screen[:n]
		o.InvZ = o.InvZ[:n]
		o.View = o.View[:n]
		o.Normals = o.Normals[:n]
		o.UV = o.UV[:n]
		o.Valid = o.Valid[:n]
	}
	o.Faces = o.Faces[:0]
}

// ScreenF returns vertex i's screen position as floats.
func (o *ProjectedObject) ScreenF(i int) (x, y float64) {
	p := o.Screen[i]
	return float64(p.X) / 64, float64(p.Y) / 64
}

// Projector transforms geometry into screen space and collects visible
// faces. Face records come from Pool, which must be Reset once per frame
// (Begin does this).
type Projector struct {
	Cull      CullMode
	FrontFace Winding

	Pool    FacePool
	Stats   ProjectStats
	Culling CullingStats
}

// NewProjector creates a projector with backface culling of
// counter-clockwise fronts.
func NewProjector() *Projector {
	return &Projector{Cull: CullBack, FrontFace: CCW}
}

// Begin starts a frame: all face records are reclaimed and stats reset.
func (p *Projector) Begin() {
	p.Pool.Reset()
	p.Stats = ProjectStats{}
	p.Culling = CullingStats{}
}

// Project fills obj from g as seen through toView (object to view space).
// It returns the number of visible faces. Faces with fewer than three
// vertices, out of range indices or a vertex at or inside the near threshold are
// skipped without error.
func (p *Projector) Project(obj *ProjectedObject, g Geometry, toView math3d.Affine, lens Lens, vp Viewport) int {
	obj.grow(0)
	if vp.Width <= 0 || vp.Height <= 0 {
		return 0
	}

	if b, ok := g.(Bounded); ok {
		lo, hi := b.Bounds()
		p.Culling.ObjectsTested++
		box := AABB{Min: lo, Max: hi}.Transform(toView)
		if !NewViewVolume(lens, vp).IntersectAABB(box) {
			p.Culling.ObjectsCulled++
			return 0
		}
	}
	p.Culling.ObjectsDrawn++

	n := g.VertexCount()
	obj.grow(n)

	focal := lens.Focal(vp)
	near := lens.near()
	normals := toView.NormalMatrix()
	cx, cy := float64(vp.Width)/2, float64(vp.Height)/2

	for i := range n {
		v := toView.Apply(g.Vertex(i))
		obj.View[i] = v
		obj.Normals[i] = normals.ApplyDir(g.VertexNormal(i)).Normalize()
		obj.UV[i] = g.UV(i)

		if !(v.Z > near) || math.IsNaN(v.X) || math.IsNaN(v.Y) {
			obj.Valid[i] = false
			obj.InvZ[i] = 0
			continue
		}
		obj.Valid[i] = true
		obj.InvZ[i] = DepthOf(v.Z)
		obj.Screen[i] = fixed.Point26_6{
			X: toFixed(cx + v.X/v.Z*focal),
			Y: toFixed(cy - v.Y/v.Z*focal),
		}
	}

	view := vp.Rect()
	for fi := range g.FaceCount() {
		p.Stats.Faces++
		idx := g.Face(fi)
		if len(idx) < 3 || !inRange(idx, n) {
			p.Stats.Malformed++
			continue
		}
		if !allValid(obj.Valid, idx) {
			p.Stats.Voided++
			continue
		}

		if p.Cull == CullBack && !p.frontFacing(obj, idx) {
			p.Stats.Backfaces++
			continue
		}

		bounds, minD, maxD := faceExtent(obj, idx)
		if !bounds.Overlaps(view) {
			p.Stats.Offscreen++
			continue
		}

		f := p.Pool.Get()
		f.Source = fi
		f.V = append(f.V, idx...)
		f.Bounds = bounds
		f.MinDepth, f.MaxDepth = minD, maxD
		f.Normal = normals.ApplyDir(g.FaceNormal(fi)).Normalize()
		f.Smooth = g.FaceSmooth(fi)
		f.Material = g.FaceMaterial(fi)
		obj.Faces = append(obj.Faces, f)
		p.Stats.Visible++
	}

	return len(obj.Faces)
}

// frontFacing checks the signed area of the first three screen vertices.
// Screen y grows downward, so a counter-clockwise front has negative area.
// Zero area is never front facing.
func (p *Projector) frontFacing(obj *ProjectedObject, idx []int) bool {
	a := SignedArea(obj.Screen[idx[0]], obj.Screen[idx[1]], obj.Screen[idx[2]])
	if p.FrontFace == CW {
		return a > 0
	}
	return a < 0
}

// SignedArea returns twice the signed area of a screen triangle in square
// pixels.
func SignedArea(a, b, c fixed.Point26_6) float64 {
	e1 := math3d.V2(float64(b.X-a.X)/64, float64(b.Y-a.Y)/64)
	e2 := math3d.V2(float64(c.X-a.X)/64, float64(c.Y-a.Y)/64)
	return e1.Cross(e2)
}

// faceExtent returns the pixel bounding box and the depth range of a face.
func faceExtent(obj *ProjectedObject, idx []int) (image.Rectangle, Depth, Depth) {
	p0 := obj.Screen[idx[0]]
	minX, maxX := p0.X, p0.X
	minY, maxY := p0.Y, p0.Y
	minD, maxD := obj.InvZ[idx[0]], obj.InvZ[idx[0]]
	for _, vi := range idx[1:] {
		s := obj.Screen[vi]
		minX, maxX = min(minX, s.X), max(maxX, s.X)
		minY, maxY = min(minY, s.Y), max(maxY, s.Y)
		d := obj.InvZ[vi]
		minD, maxD = min(minD, d), max(maxD, d)
	}
	r := image.Rect(minX.Floor(), minY.Floor(), maxX.Floor()+1, maxY.Floor()+1)
	return r, minD, maxD
}

func toFixed(v float64) fixed.Int26_6 {
	v = math.Max(-maxScreen, math.Min(maxScreen, v))
	return fixed.Int26_6(math.Round(v * 64))
}

func inRange(idx []int, n int) bool {
	for _, i := range idx {
		if i < 0 || i >= n {
			return false
		}
	}
	return true
}

func allValid(valid []bool, idx []int) bool {
	for _, i := range idx {
		if !valid[i] {
			return false
		}
	}
	return true
}
