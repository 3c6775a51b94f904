package render

import "image/color"

// DrawWireframe outlines every visible face of obj with single-pixel lines.
// There is no depth test; this is the quick preview drawn during
// interaction and the fallback before the first shaded frame.
func (r *Rasterizer) DrawWireframe(obj *ProjectedObject, c color.RGBA) {
	if r.fb == nil {
		return
	}
	for _, f := range obj.Faces {
		prev := f.V[len(f.V)-1]
		for _, vi := range f.V {
			a, b := obj.Screen[prev], obj.Screen[vi]
			r.fb.DrawLine(a.X.Round(), a.Y.Round(), b.X.Round(), b.Y.Round(), c)
			prev = vi
		}
	}
}
