package render

import (
	"image"
	"math"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// Depth is a fixed-point inverse depth (DepthOne / z). Larger values are
// closer to the viewer; zero means infinitely far and is the cleared state.
type Depth uint32

// DepthOne is inverse depth 1, i.e. a point at z = 1.
const DepthOne Depth = 1 << 24

// DepthOf converts a positive view-space depth to fixed-point inverse depth.
func DepthOf(z float64) Depth {
	if z <= 0 {
		return 0
	}
	d := float64(DepthOne) / z
	if d >= math.MaxUint32 {
		return math.MaxUint32
	}
	return Depth(d + 0.5)
}

// Z returns the view-space depth represented by d.
func (d Depth) Z() float64 {
	if d == 0 {
		return math.Inf(1)
	}
	return float64(DepthOne) / float64(d)
}

// ShadeOne is full intensity in Shade and specular weight fixed point.
const ShadeOne = 256

// Shade is a per-channel light intensity scaled by ShadeOne. Values above
// ShadeOne overexpose.
type Shade struct {
	R, G, B int32
}

// Face is a visible polygon produced by the Projector. Corner arrays
// (Diffuse, SpecX, SpecY, SpecW) run parallel to V and are filled by the
// Evaluator.
type Face struct {
	Source   int   // Polygon index in the geometry
	V        []int // Vertex indices into the ProjectedObject
	Bounds   image.Rectangle
	MinDepth Depth // Farthest vertex
	MaxDepth Depth // Closest vertex
	Normal   math3d.Vec3
	Smooth   bool
	Material int

	Diffuse  []Shade
	SpecX    []int32 // Reflectance table column, fixed point x256
	SpecY    []int32 // Reflectance table row, fixed point x256
	SpecW    []int32 // Specular weight, x256
	Specular bool    // Some SpecW exceeds SpecThreshold
}

func (f *Face) reset() {
	f.V = f.V[:0]
	f.Diffuse = f.Diffuse[:0]
	f.SpecX = f.SpecX[:0]
	f.SpecY = f.SpecY[:0]
	f.SpecW = f.SpecW[:0]
	f.Specular = false
}

// FacePool hands out Face records and takes them all back at once with
// Reset. Pointers stay valid across Reset and records keep their slice
// capacity, so a steady-state frame allocates nothing.
type FacePool struct {
	faces []*Face
	used  int
}

// Get returns a cleared face record.
func (p *FacePool) Get() *Face {
	if p.used == len(p.faces) {
		p.faces = append(p.faces, &Face{})
	}
	f := p.faces[p.used]
	p.used++
	f.reset()
	return f
}

// Reset returns every record to the pool.
func (p *FacePool) Reset() {
	p.used = 0
}

// InUse returns the number of records handed out since the last Reset.
func (p *FacePool) InUse() int {
	return p.used
}

// Allocated returns the number of records the pool owns.
func (p *FacePool) Allocated() int {
	return len(p.faces)
}
