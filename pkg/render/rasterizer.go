package render

import (
	"image"
	"image/color"
	"math"
)

// Attribute slots interpolated down edges and across spans. Texture
// coordinates are carried premultiplied by inverse depth so dividing by the
// interpolated inverse depth recovers them perspective-correctly.
const (
	aX  = iota // Screen x, edges only
	aIZ        // Inverse depth, 1/z
	aUZ        // u/z in texels
	aVZ        // v/z in texels
	aR         // Diffuse, x256
	aG
	aB
	aSX // Reflectance cell, x256
	aSY
	aSW // Specular weight, x256
	nAttr
)

type attrs [nAttr]float64

// RasterStats counts rasterizer work since the last Reset.
type RasterStats struct {
	Faces     int // Faces that reached a fill path
	SingleRow int // Of those, faces filled by the single-row path
	Aborted   int // Faces rejected before filling
	Pixels    int // Pixels that passed the depth test
}

// Rasterizer fills projected, shaded faces into a Framebuffer with a
// two-cursor scanline walk and a per-pixel inverse-depth test.
//
// Coverage follows pixel centres: row y is covered where the polygon spans
// y+0.5, and within a row pixel x where it spans x+0.5, with the top and
// left edges inclusive. Adjacent faces sharing an edge therefore neither
// overlap nor leave gaps.
type Rasterizer struct {
	Reflectance *ReflectanceCache
	Stats       RasterStats

	fb    *Framebuffer
	verts []attrs
	ys    []float64
}

// NewRasterizer creates a rasterizer drawing into fb. cache may be nil.
func NewRasterizer(fb *Framebuffer, cache *ReflectanceCache) *Rasterizer {
	if cache == nil {
		cache = NewReflectanceCache(ReflectanceSize)
	}
	return &Rasterizer{fb: fb, Reflectance: cache}
}

// Bind sets the target framebuffer.
func (r *Rasterizer) Bind(fb *Framebuffer) {
	r.fb = fb
}

// Framebuffer returns the target framebuffer.
func (r *Rasterizer) Framebuffer() *Framebuffer {
	return r.fb
}

// ResetStats zeroes the counters.
func (r *Rasterizer) ResetStats() {
	r.Stats = RasterStats{}
}

// pixelShader holds per-face constants for the span loop.
type pixelShader struct {
	r, g, b float64 // Material color, 0-255
	tex     *Texture
	table   *ReflectanceTable
}

// DrawFace rasterizes one face of obj. Faces missing corner shading are
// drawn at full intensity. It reports whether the face reached a fill path;
// a face with an invalid vertex or entirely outside the framebuffer is
// rejected.
func (r *Rasterizer) DrawFace(obj *ProjectedObject, face *Face, mat *Material) bool {
	fb := r.fb
	n := len(face.V)
	if fb == nil || n < 3 || !face.Bounds.Overlaps(image.Rect(0, 0, fb.Width, fb.Height)) {
		r.Stats.Aborted++
		return false
	}
	if mat == nil {
		mat = &DefaultMaterial
	}

	sh := pixelShader{
		r:   float64(mat.Color.R),
		g:   float64(mat.Color.G),
		b:   float64(mat.Color.B),
		tex: mat.Texture,
	}
	if sh.tex != nil && (sh.tex.Width == 0 || sh.tex.Height == 0) {
		sh.tex = nil
	}
	lit := len(face.Diffuse) == n
	spec := face.Specular && len(face.SpecW) == n && len(face.SpecX) == n && len(face.SpecY) == n
	if spec {
		sh.table = r.Reflectance.Get(mat.Shininess)
	}

	r.verts, r.ys = r.verts[:0], r.ys[:0]
	for k, vi := range face.V {
		if vi < 0 || vi >= len(obj.Valid) || !obj.Valid[vi] || obj.InvZ[vi] == 0 {
			r.Stats.Aborted++
			return false
		}
		x, y := obj.ScreenF(vi)
		iz := float64(obj.InvZ[vi]) / float64(DepthOne)

		var a attrs
		a[aX] = x
		a[aIZ] = iz
		if sh.tex != nil {
			uv := obj.UV[vi]
			a[aUZ] = uv.X * float64(sh.tex.Width) * iz
			a[aVZ] = uv.Y * float64(sh.tex.Height) * iz
		}
		if lit {
			d := face.Diffuse[k]
			a[aR], a[aG], a[aB] = float64(d.R), float64(d.G), float64(d.B)
		} else {
			a[aR], a[aG], a[aB] = ShadeOne, ShadeOne, ShadeOne
		}
		if spec {
			a[aSX], a[aSY], a[aSW] = float64(face.SpecX[k]), float64(face.SpecY[k]), float64(face.SpecW[k])
		}
		r.verts = append(r.verts, a)
		r.ys = append(r.ys, y)
	}

	top, bottom := 0, 0
	for i, y := range r.ys {
		if y < r.ys[top] {
			top = i
		}
		if y > r.ys[bottom] {
			bottom = i
		}
	}
	minY, maxY := r.ys[top], r.ys[bottom]

	r.Stats.Faces++
	if math.Floor(minY) == math.Floor(maxY) {
		r.Stats.SingleRow++
		r.fillSingleRow(int(math.Floor(minY)), &sh)
		return true
	}

	yStart := max(int(math.Ceil(minY-0.5)), 0)
	yEnd := min(int(math.Ceil(maxY-0.5)), fb.Height)

	var left, right edgeCursor
	left.start(top, -1, n)
	right.start(top, 1, n)
	for y := yStart; y < yEnd; y++ {
		yc := float64(y) + 0.5
		if !left.advance(r.verts, r.ys, yc) || !right.advance(r.verts, r.ys, yc) {
			break
		}
		r.span(y, &left.val, &right.val, &sh)
		left.step()
		right.step()
	}
	return true
}

// fillSingleRow draws a face whose vertices all fall within one pixel row.
// Edge walking would divide by a zero segment height, so the span runs
// directly between the leftmost and rightmost vertices.
func (r *Rasterizer) fillSingleRow(y int, sh *pixelShader) {
	if y < 0 || y >= r.fb.Height {
		return
	}
	lo, hi := 0, 0
	for i, v := range r.verts {
		if v[aX] < r.verts[lo][aX] {
			lo = i
		}
		if v[aX] > r.verts[hi][aX] {
			hi = i
		}
	}
	r.span(y, &r.verts[lo], &r.verts[hi], sh)
}

// span fills row y between two edge states.
func (r *Rasterizer) span(y int, a, b *attrs, sh *pixelShader) {
	if a[aX] > b[aX] {
		a, b = b, a
	}
	xa, xb := a[aX], b[aX]
	x0 := max(int(math.Ceil(xa-0.5)), 0)
	x1 := min(int(math.Ceil(xb-0.5)), r.fb.Width)
	if x0 >= x1 {
		return
	}

	var v, d attrs
	w := xb - xa
	t := float64(x0) + 0.5 - xa
	for i := range nAttr {
		d[i] = (b[i] - a[i]) / w
		v[i] = a[i] + d[i]*t
	}

	row := y * r.fb.Width
	for x := x0; x < x1; x++ {
		r.shadePixel(row+x, &v, sh)
		for i := range nAttr {
			v[i] += d[i]
		}
	}
}

// shadePixel computes the color of one pixel and writes it if it is closer
// than what the depth buffer holds.
func (r *Rasterizer) shadePixel(idx int, v *attrs, sh *pixelShader) {
	iz := v[aIZ]
	if iz <= 0 {
		return
	}
	depth := Depth(math.Min(iz*float64(DepthOne)+0.5, math.MaxUint32))
	if depth <= r.fb.Depth[idx] {
		return
	}

	cr, cg, cb := sh.r, sh.g, sh.b
	if sh.tex != nil {
		z := 1 / iz
		t := sh.tex.Sample(v[aUZ]*z, v[aVZ]*z)
		cr = float64(t.R) * cr / 255
		cg = float64(t.G) * cg / 255
		cb = float64(t.B) * cb / 255
	}
	cr = cr * v[aR] / ShadeOne
	cg = cg * v[aG] / ShadeOne
	cb = cb * v[aB] / ShadeOne

	if sh.table != nil && v[aSW] > 0 {
		s := float64(sh.table.At(int32(v[aSX]), int32(v[aSY]))) * v[aSW] / ShadeOne
		cr += s
		cg += s
		cb += s
	}

	r.fb.Pixels[idx] = color.RGBA{clampByte(cr), clampByte(cg), clampByte(cb), 255}
	r.fb.Depth[idx] = depth
	r.Stats.Pixels++
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// edgeCursor walks one side of a polygon from the top vertex, moving in a
// fixed index direction.
type edgeCursor struct {
	dir, n    int
	cur, next int
	moves     int
	ready     bool
	val       attrs // Value at the current row centre
	delta     attrs // Change per row
}

func (c *edgeCursor) start(top, dir, n int) {
	c.dir, c.n = dir, n
	c.cur = top
	c.next = (top + dir + n) % n
	c.moves = 0
	c.ready = false
}

// advance moves past every segment that ends at or above row centre yc and
// sets up interpolation for the segment containing it. It returns false if
// the polygon ran out of segments, which only happens for malformed input.
func (c *edgeCursor) advance(verts []attrs, ys []float64, yc float64) bool {
	for !(yc < ys[c.next]) {
		if c.moves >= c.n {
			return false
		}
		c.cur = c.next
		c.next = (c.next + c.dir + c.n) % c.n
		c.moves++
		c.ready = false
	}
	if !c.ready {
		y0 := ys[c.cur]
		h := ys[c.next] - y0
		a, b := &verts[c.cur], &verts[c.next]
		for i := range nAttr {
			c.delta[i] = (b[i] - a[i]) / h
			c.val[i] = a[i] + c.delta[i]*(yc-y0)
		}
		c.ready = true
	}
	return true
}

func (c *edgeCursor) step() {
	for i := range nAttr {
		c.val[i] += c.delta[i]
	}
}
