package render

import (
	"math"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// Plane represents a plane in 3D space using the equation: Ax + By + Cz + D = 0
// where (A, B, C) is the normal and D is the distance from origin.
type Plane struct {
	Normal math3d.Vec3
	D      float64
}

// Normalize normalizes the plane equation so the normal has unit length.
func (p *Plane) Normalize() {
	l := p.Normal.Len()
	if l == 0 {
		return
	}
	p.Normal = p.Normal.Scale(1.0 / l)
	p.D /= l
}

// DistanceToPoint returns the signed distance from the plane to a point.
// Positive = in front (same side as normal), negative = behind.
func (p Plane) DistanceToPoint(point math3d.Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// ViewVolume is the visible region of view space: the pyramid through the
// viewport edges, cut by the near plane. There is no far plane.
// Each plane's normal points inward.
type ViewVolume struct {
	Planes [5]Plane
}

// View volume plane indices.
const (
	VolumeLeft = iota
	VolumeRight
	VolumeBottom
	VolumeTop
	VolumeNear
)

// NewViewVolume builds the volume matching what Project can draw for the
// given lens and viewport.
func NewViewVolume(lens Lens, vp Viewport) ViewVolume {
	f := lens.Focal(vp)
	hw, hh := float64(vp.Width)/2, float64(vp.Height)/2

	var v ViewVolume
	// A point is inside the right edge when x/z*f <= w/2, i.e. -f*x + w/2*z >= 0.
	v.Planes[VolumeLeft] = Plane{Normal: math3d.V3(f, 0, hw)}
	v.Planes[VolumeRight] = Plane{Normal: math3d.V3(-f, 0, hw)}
	v.Planes[VolumeBottom] = Plane{Normal: math3d.V3(0, f, hh)}
	v.Planes[VolumeTop] = Plane{Normal: math3d.V3(0, -f, hh)}
	v.Planes[VolumeNear] = Plane{Normal: math3d.V3(0, 0, 1), D: -lens.near()}

	for i := range v.Planes {
		v.Planes[i].Normalize()
	}
	return v
}

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min math3d.Vec3
	Max math3d.Vec3
}

// Center returns the center of the AABB.
func (b AABB) Center() math3d.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Transform returns an AABB that bounds the original AABB after transformation.
// This computes a new AABB that contains all 8 transformed corners.
func (b AABB) Transform(a math3d.Affine) AABB {
	out := AABB{
		Min: math3d.V3(math.Inf(1), math.Inf(1), math.Inf(1)),
		Max: math3d.V3(math.Inf(-1), math.Inf(-1), math.Inf(-1)),
	}
	for i := range 8 {
		corner := b.Min
		if i&1 != 0 {
			corner.X = b.Max.X
		}
		if i&2 != 0 {
			corner.Y = b.Max.Y
		}
		if i&4 != 0 {
			corner.Z = b.Max.Z
		}
		p := a.Apply(corner)
		out.Min = out.Min.Min(p)
		out.Max = out.Max.Max(p)
	}
	return out
}

// IntersectAABB tests if the AABB intersects or is inside the volume.
// Returns true if any part of the AABB may be visible.
// Uses the "positive vertex" optimization for faster rejection.
func (v ViewVolume) IntersectAABB(box AABB) bool {
	for _, plane := range v.Planes {
		// The corner furthest along the plane normal; if it is outside,
		// the whole box is.
		pVertex := math3d.V3(
			selectComponent(plane.Normal.X >= 0, box.Max.X, box.Min.X),
			selectComponent(plane.Normal.Y >= 0, box.Max.Y, box.Min.Y),
			selectComponent(plane.Normal.Z >= 0, box.Max.Z, box.Min.Z),
		)
		if plane.DistanceToPoint(pVertex) < 0 {
			return false
		}
	}
	return true
}

// ContainsPoint tests if a point is inside the volume.
func (v ViewVolume) ContainsPoint(p math3d.Vec3) bool {
	for _, plane := range v.Planes {
		if plane.DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}

func selectComponent(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

// CullingStats tracks whole-object view volume culling.
type CullingStats struct {
	ObjectsTested int // Objects with bounds that were tested
	ObjectsCulled int // Objects rejected without projecting
	ObjectsDrawn  int // Objects that were projected
}
