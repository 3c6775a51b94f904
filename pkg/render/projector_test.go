package render

import (
	"math"
	"testing"

	"golang.org/x/image/math/fixed"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// mockMesh is a minimal Geometry for tests.
type mockMesh struct {
	verts []math3d.Vec3
	faces [][]int
}

func (m *mockMesh) VertexCount() int { return len(m.verts) }
func (m *mockMesh) Vertex(i int) math3d.Vec3 { return m.verts[i] }
func (m *mockMesh) VertexNormal(i int) math3d.Vec3 { return math3d.V3(0, 0, -1) }
func (m *mockMesh) UV(i int) math3d.Vec2 { return math3d.Vec2{} }
func (m *mockMesh) FaceCount() int { return len(m.faces) }
func (m *mockMesh) Face(i int) []int { return m.faces[i] }
func (m *mockMesh) FaceNormal(i int) math3d.Vec3 { return math3d.V3(0, 0, -1) }
func (m *mockMesh) FaceSmooth(i int) bool { return false }
func (m *mockMesh) FaceMaterial(i int) int { return -1 }

type boundedMesh struct {
	mockMesh
	lo, hi math3d.Vec3
}

func (m *boundedMesh) Bounds() (math3d.Vec3, math3d.Vec3) { return m.lo, m.hi }

// Viewport 100x100 with a 90 degree lens puts the focal length at 50.
var (
	testLens = Lens{Aperture: math.Pi / 2, Zoom: 1, Near: 0.05}
	testVP   = Viewport{Width: 100, Height: 100}
)

func TestLensFocal(t *testing.T) {
	tests := []struct {
		name string
		lens Lens
		vp   Viewport
		want float64
	}{
		{"square", testLens, testVP, 50},
		{"shorter side", testLens, Viewport{Width: 200, Height: 100}, 50},
		{"zoom", Lens{Aperture: math.Pi / 2, Zoom: 2}, testVP, 100},
		{"zero zoom defaults", Lens{Aperture: math.Pi / 2}, testVP, 50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.lens.Focal(tc.vp); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Focal = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestProjectScreenPosition(t *testing.T) {
	m := &mockMesh{
		verts: []math3d.Vec3{{X: 0, Y: 0, Z: 5}, {X: 1, Y: 0, Z: 5}, {X: 0, Y: 1, Z: 5}, {X: 1, Y: 1, Z: 5}},
		faces: [][]int{{0, 1, 2}},
	}
	p := NewProjector()
	var obj ProjectedObject
	if n := p.Project(&obj, m, math3d.Identity(), testLens, testVP); n != 1 {
		t.Fatalf("Project = %d visible, want 1", n)
	}

	want := fixed.Point26_6{X: fixed.I(60), Y: fixed.I(40)}
	if obj.Screen[3] != want {
		t.Errorf("screen = %v, want %v", obj.Screen[3], want)
	}
	if obj.InvZ[3] != DepthOf(5) {
		t.Errorf("InvZ = %d, want %d", obj.InvZ[3], DepthOf(5))
	}
	if got := obj.Faces[0].Bounds; got.Min.X != 50 || got.Max.X != 61 || got.Min.Y != 40 || got.Max.Y != 51 {
		t.Errorf("bounds = %v", got)
	}
}

func TestProjectCulling(t *testing.T) {
	verts := []math3d.Vec3{{X: 0, Y: 0, Z: 5}, {X: 1, Y: 0, Z: 5}, {X: 0, Y: 1, Z: 5}}
	front := []int{0, 1, 2}
	back := []int{0, 2, 1}

	tests := []struct {
		name      string
		cull      CullMode
		winding   Winding
		face      []int
		visible   int
		backfaces int
	}{
		{"ccw front kept", CullBack, CCW, front, 1, 0},
		{"ccw back culled", CullBack, CCW, back, 0, 1},
		{"cw front kept", CullBack, CW, back, 1, 0},
		{"cw back culled", CullBack, CW, front, 0, 1},
		{"no culling", CullNone, CCW, back, 1, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &Projector{Cull: tc.cull, FrontFace: tc.winding}
			var obj ProjectedObject
			got := p.Project(&obj, &mockMesh{verts: verts, faces: [][]int{tc.face}}, math3d.Identity(), testLens, testVP)
			if got != tc.visible {
				t.Errorf("visible = %d, want %d", got, tc.visible)
			}
			if p.Stats.Backfaces != tc.backfaces {
				t.Errorf("backfaces = %d, want %d", p.Stats.Backfaces, tc.backfaces)
			}
		})
	}
}

func TestProjectZeroAreaCulled(t *testing.T) {
	m := &mockMesh{
		verts: []math3d.Vec3{{X: 0, Y: 0, Z: 5}, {X: 1, Y: 0, Z: 5}, {X: 2, Y: 0, Z: 5}},
		faces: [][]int{{0, 1, 2}},
	}
	p := NewProjector()
	var obj ProjectedObject
	if n := p.Project(&obj, m, math3d.Identity(), testLens, testVP); n != 0 {
		t.Errorf("collinear face visible")
	}
}

func TestProjectRejects(t *testing.T) {
	tests := []struct {
		name  string
		verts []math3d.Vec3
		faces [][]int
		check func(ProjectStats) int
	}{
		{
			name:  "near plane",
			verts: []math3d.Vec3{{X: 0, Y: 0, Z: 0.01}, {X: 1, Y: 0, Z: 5}, {X: 0, Y: 1, Z: 5}},
			faces: [][]int{{0, 1, 2}},
			check: func(s ProjectStats) int { return s.Voided },
		},
		{
			name:  "near threshold equality",
			verts: []math3d.Vec3{{X: 0, Y: 0, Z: testLens.Near}, {X: 1, Y: 0, Z: 5}, {X: 0, Y: 1, Z: 5}},
			faces: [][]int{{0, 1, 2}},
			check: func(s ProjectStats) int { return s.Voided },
		},
		{
			name:  "behind viewer",
			verts: []math3d.Vec3{{X: 0, Y: 0, Z: -5}, {X: 1, Y: 0, Z: 5}, {X: 0, Y: 1, Z: 5}},
			faces: [][]int{{0, 1, 2}},
			check: func(s ProjectStats) int { return s.Voided },
		},
		{
			name:  "two vertices",
			verts: []math3d.Vec3{{X: 0, Y: 0, Z: 5}, {X: 1, Y: 0, Z: 5}},
			faces: [][]int{{0, 1}},
			check: func(s ProjectStats) int { return s.Malformed },
		},
		{
			name:  "bad index",
			verts: []math3d.Vec3{{X: 0, Y: 0, Z: 5}, {X: 1, Y: 0, Z: 5}, {X: 0, Y: 1, Z: 5}},
			faces: [][]int{{0, 1, 7}},
			check: func(s ProjectStats) int { return s.Malformed },
		},
		{
			name:  "offscreen",
			verts: []math3d.Vec3{{X: 50, Y: 0, Z: 5}, {X: 51, Y: 0, Z: 5}, {X: 50, Y: 1, Z: 5}},
			faces: [][]int{{0, 1, 2}},
			check: func(s ProjectStats) int { return s.Offscreen },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProjector()
			var obj ProjectedObject
			if n := p.Project(&obj, &mockMesh{verts: tc.verts, faces: tc.faces}, math3d.Identity(), testLens, testVP); n != 0 {
				t.Errorf("visible = %d, want 0", n)
			}
			if tc.check(p.Stats) != 1 {
				t.Errorf("stats = %+v", p.Stats)
			}
			if p.Stats.Faces != 1 {
				t.Errorf("Faces = %d, want 1", p.Stats.Faces)
			}
		})
	}
}

func TestProjectBoundedCulling(t *testing.T) {
	tri := mockMesh{
		verts: []math3d.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
		faces: [][]int{{0, 1, 2}},
	}
	m := &boundedMesh{mockMesh: tri, lo: math3d.V3(0, 0, 0), hi: math3d.V3(1, 1, 0)}

	p := NewProjector()
	var obj ProjectedObject

	if n := p.Project(&obj, m, math3d.Translate(math3d.V3(0, 0, -10)), testLens, testVP); n != 0 {
		t.Errorf("object behind the viewer produced %d faces", n)
	}
	if p.Culling.ObjectsCulled != 1 || p.Stats.Faces != 0 {
		t.Errorf("culling = %+v, stats = %+v", p.Culling, p.Stats)
	}

	if n := p.Project(&obj, m, math3d.Translate(math3d.V3(0, 0, 10)), testLens, testVP); n != 1 {
		t.Errorf("object in view produced %d faces", n)
	}
	if p.Culling.ObjectsTested != 2 || p.Culling.ObjectsDrawn != 1 {
		t.Errorf("culling = %+v", p.Culling)
	}
}

func TestProjectReusesCache(t *testing.T) {
	m := &mockMesh{
		verts: []math3d.Vec3{{X: 0, Y: 0, Z: 5}, {X: 1, Y: 0, Z: 5}, {X: 0, Y: 1, Z: 5}},
		faces: [][]int{{0, 1, 2}},
	}
	p := NewProjector()
	var obj ProjectedObject

	p.Begin()
	p.Project(&obj, m, math3d.Identity(), testLens, testVP)
	first := obj.Faces[0]
	screen := &obj.Screen[0]

	p.Begin()
	p.Project(&obj, m, math3d.Identity(), testLens, testVP)
	if obj.Faces[0] != first {
		t.Error("face record not reused across frames")
	}
	if &obj.Screen[0] != screen {
		t.Error("vertex arrays reallocated")
	}
	if p.Pool.Allocated() != 1 || p.Pool.InUse() != 1 {
		t.Errorf("pool allocated=%d in use=%d", p.Pool.Allocated(), p.Pool.InUse())
	}
}

func TestFacePool(t *testing.T) {
	var pool FacePool
	a := pool.Get()
	a.V = append(a.V, 1, 2, 3)
	a.Diffuse = append(a.Diffuse, Shade{R: 1})
	a.Specular = true
	pool.Get()
	pool.Get()

	pool.Reset()
	if pool.InUse() != 0 {
		t.Errorf("InUse after Reset = %d", pool.InUse())
	}

	b := pool.Get()
	if a != b {
		t.Error("pool did not hand back the first record")
	}
	if len(b.V) != 0 || len(b.Diffuse) != 0 || b.Specular {
		t.Error("recycled record was not cleared")
	}
	if cap(b.V) < 3 {
		t.Error("recycled record lost its capacity")
	}
	if pool.Allocated() != 3 {
		t.Errorf("Allocated = %d, want 3", pool.Allocated())
	}
}

func TestSignedArea(t *testing.T) {
	a := fixed.Point26_6{X: fixed.I(0), Y: fixed.I(0)}
	b := fixed.Point26_6{X: fixed.I(10), Y: fixed.I(0)}
	c := fixed.Point26_6{X: fixed.I(0), Y: fixed.I(10)}

	if got := SignedArea(a, b, c); got != 100 {
		t.Errorf("SignedArea = %v, want 100", got)
	}
	if got := SignedArea(a, c, b); got != -100 {
		t.Errorf("SignedArea reversed = %v, want -100", got)
	}
}

func TestDepthOf(t *testing.T) {
	tests := []struct {
		z    float64
		want Depth
	}{
		{1, DepthOne},
		{2, DepthOne / 2},
		{0, 0},
		{-1, 0},
	}
	for _, tc := range tests {
		if got := DepthOf(tc.z); got != tc.want {
			t.Errorf("DepthOf(%v) = %d, want %d", tc.z, got, tc.want)
		}
	}
	if DepthOf(2) <= DepthOf(3) {
		t.Error("closer must be larger")
	}
	if z := DepthOf(4).Z(); math.Abs(z-4) > 1e-6 {
		t.Errorf("Z round trip = %v", z)
	}
}

func TestViewVolume(t *testing.T) {
	v := NewViewVolume(testLens, testVP)

	tests := []struct {
		name string
		p    math3d.Vec3
		want bool
	}{
		{"centre", math3d.V3(0, 0, 5), true},
		{"inside edge", math3d.V3(4.9, 0, 5), true},
		{"right of view", math3d.V3(5.1, 0, 5), false},
		{"above view", math3d.V3(0, 5.1, 5), false},
		{"behind", math3d.V3(0, 0, -1), false},
		{"inside near", math3d.V3(0, 0, 0.01), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := v.ContainsPoint(tc.p); got != tc.want {
				t.Errorf("ContainsPoint(%v) = %v, want %v", tc.p, got, tc.want)
			}
		})
	}

	straddle := AABB{Min: math3d.V3(4, -1, 4), Max: math3d.V3(8, 1, 6)}
	if !v.IntersectAABB(straddle) {
		t.Error("box straddling the right plane rejected")
	}
	outside := AABB{Min: math3d.V3(20, -1, 4), Max: math3d.V3(30, 1, 6)}
	if v.IntersectAABB(outside) {
		t.Error("box right of view accepted")
	}
}

func TestAABBTransform(t *testing.T) {
	box := AABB{Min: math3d.V3(-1, -1, -1), Max: math3d.V3(1, 1, 1)}
	got := box.Transform(math3d.Translate(math3d.V3(0, 0, 10)).Mul(math3d.RotateY(math.Pi / 4)))

	r := math.Sqrt2
	if math.Abs(got.Max.X-r) > 1e-9 || math.Abs(got.Min.Z-(10-r)) > 1e-9 {
		t.Errorf("transformed box = %+v", got)
	}
	if c := got.Center(); math.Abs(c.Z-10) > 1e-9 {
		t.Errorf("center = %v", c)
	}
}
