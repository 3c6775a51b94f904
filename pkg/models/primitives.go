package models

import (
	"math"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// cubeSides lists each side as normal, right and up vectors with
// right x up = normal, so the corner order below is counter-clockwise.
var cubeSides = [6][3]math3d.Vec3{
	{{X: 1}, {Z: -1}, {Y: 1}},
	{{X: -1}, {Z: 1}, {Y: 1}},
	{{Y: 1}, {X: 1}, {Z: -1}},
	{{Y: -1}, {X: 1}, {Z: 1}},
	{{Z: 1}, {X: 1}, {Y: 1}},
	{{Z: -1}, {X: -1}, {Y: 1}},
}

// NewCube creates an axis-aligned cube centred on the origin with flat
// quad faces and per-face UVs.
func NewCube(size float64) *Mesh {
	h := size / 2
	m := NewMesh("cube")
	m.Materials = []Material{DefaultMaterial}

	for _, side := range cubeSides {
		n, u, v := side[0], side[1], side[2]
		c := n.Scale(h)
		var idx [4]int
		for i, st := range [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			pos := c.Add(u.Scale(st[0] * h)).Add(v.Scale(st[1] * h))
			uv := math3d.V2((st[0]+1)/2, (1-st[1])/2)
			idx[i] = m.AddVertex(pos, n, uv)
		}
		m.AddFace(0, false, idx[:]...)
	}

	m.CalculateBounds()
	return m
}

// NewUVSphere creates a smooth sphere from latitude rings and longitude
// segments. Pole rows are closed with triangles.
func NewUVSphere(radius float64, segments, rings int) *Mesh {
	segments = max(segments, 3)
	rings = max(rings, 2)

	m := NewMesh("sphere")
	m.Materials = []Material{DefaultMaterial}

	row := segments + 1
	for r := 0; r <= rings; r++ {
		theta := math.Pi * float64(r) / float64(rings)
		for s := 0; s <= segments; s++ {
			phi := 2 * math.Pi * float64(s) / float64(segments)
			n := math3d.V3(math.Sin(theta)*math.Sin(phi), math.Cos(theta), math.Sin(theta)*math.Cos(phi))
			uv := math3d.V2(float64(s)/float64(segments), float64(r)/float64(rings))
			m.AddVertex(n.Scale(radius), n, uv)
		}
	}

	for r := range rings {
		for s := range segments {
			ul := r*row + s
			ur := ul + 1
			ll := ul + row
			lr := ll + 1
			switch r {
			case 0:
				m.AddFace(0, true, ll, lr, ul)
			case rings - 1:
				m.AddFace(0, true, ll, ur, ul)
			default:
				m.AddFace(0, true, ll, lr, ur, ul)
			}
		}
	}

	m.CalculateBounds()
	return m
}

// NewPlane creates a single quad in the XZ plane facing +Y.
func NewPlane(width, depth float64) *Mesh {
	m := NewMesh("plane")
	m.Materials = []Material{DefaultMaterial}

	w, d := width/2, depth/2
	up := math3d.V3(0, 1, 0)
	a := m.AddVertex(math3d.V3(-w, 0, d), up, math3d.V2(0, 1))
	b := m.AddVertex(math3d.V3(w, 0, d), up, math3d.V2(1, 1))
	c := m.AddVertex(math3d.V3(w, 0, -d), up, math3d.V2(1, 0))
	e := m.AddVertex(math3d.V3(-w, 0, -d), up, math3d.V2(0, 0))
	m.AddFace(0, false, a, b, c, e)

	m.CalculateBounds()
	return m
}
