package render

import (
	"math"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// LightType selects how a light is evaluated.
type LightType int

const (
	LightPoint LightType = iota
	LightDirectional
	LightSpot
)

func (t LightType) String() string {
	switch t {
	case LightDirectional:
		return "directional"
	case LightSpot:
		return "spot"
	default:
		return "point"
	}
}

// Light is a light in view space.
type Light struct {
	Type      LightType
	Position  math3d.Vec3 // Point and spot
	Direction math3d.Vec3 // Direction light travels; directional and spot
	Color     [3]float64  // Linear RGB, 1 = full intensity
	Specular  float64     // Specular intensity multiplier

	// Attenuation is 1 / (Constant + Linear*d + Quadratic*d²).
	Constant, Linear, Quadratic float64

	SpotCos      float64 // Cosine of the cone half angle
	SpotExponent float64 // Falloff inside the cone

	// Per-vertex tables filled by Evaluator.Prepare for lights with a
	// position.
	dirs    []math3d.Vec3
	invDist []float64
}

func (l *Light) positional() bool {
	return l.Type != LightDirectional
}

func (l *Light) attenuation(invDist float64) float64 {
	if invDist <= 0 {
		return 1
	}
	d := 1 / invDist
	den := l.Constant + l.Linear*d + l.Quadratic*d*d
	if den <= 0 {
		return 1
	}
	return 1 / den
}

// spot returns the cone factor for a surface seen along toLight.
func (l *Light) spot(toLight math3d.Vec3) float64 {
	if l.Type != LightSpot {
		return 1
	}
	c := toLight.Negate().Dot(l.Direction.Normalize())
	if c < l.SpotCos {
		return 0
	}
	if l.SpotExponent <= 0 {
		return 1
	}
	return math.Pow(c, l.SpotExponent)
}

// DefaultSpecThreshold is the specular weight (x256) below which faces are
// drawn without the reflectance lookup.
const DefaultSpecThreshold = 4

// Evaluator computes per-vertex shading for visible faces. Each light's
// diffuse term is max(0, n·L) * attenuation * spot * color, added on top of
// the ambient level. Specular highlights are stored as reflectance table
// coordinates plus a weight and resolved per pixel by the Rasterizer.
type Evaluator struct {
	Ambient       [3]float64
	SpecThreshold int32
	Reflectance   *ReflectanceCache

	lights []Light
}

// NewEvaluator creates an evaluator with no lights.
func NewEvaluator(cache *ReflectanceCache) *Evaluator {
	if cache == nil {
		cache = NewReflectanceCache(ReflectanceSize)
	}
	return &Evaluator{SpecThreshold: DefaultSpecThreshold, Reflectance: cache}
}

// SetLights replaces the active lights. The evaluator keeps its own copies
// so per-vertex tables can be reused across frames.
func (e *Evaluator) SetLights(ambient [3]float64, lights []Light) {
	e.Ambient = ambient
	for i := range lights {
		if i < len(e.lights) {
			dirs, inv := e.lights[i].dirs, e.lights[i].invDist
			e.lights[i] = lights[i]
			e.lights[i].dirs, e.lights[i].invDist = dirs, inv
		} else {
			l := lights[i]
			l.dirs, l.invDist = nil, nil
			e.lights = append(e.lights, l)
		}
	}
	e.lights = e.lights[:len(lights)]
}

// Lights returns the number of active lights.
func (e *Evaluator) Lights() int {
	return len(e.lights)
}

// Prepare fills the direction and inverse distance tables of positional
// lights for obj's valid vertices. Call once per object before Shade.
func (e *Evaluator) Prepare(obj *ProjectedObject) {
	n := len(obj.View)
	for li := range e.lights {
		l := &e.lights[li]
		if !l.positional() {
			continue
		}
		if cap(l.dirs) < n {
			c := max(cap(l.dirs)*2, n)
			l.dirs = make([]math3d.Vec3, n, c)
			l.invDist = make([]float64, n, c)
		}
		l.dirs, l.invDist = l.dirs[:n], l.invDist[:n]

		for i, p := range obj.View {
			if !obj.Valid[i] {
				continue
			}
			d := l.Position.Sub(p)
			dist := d.Len()
			if dist == 0 {
				l.dirs[i] = math3d.Vec3{}
				l.invDist[i] = 0
				continue
			}
			l.dirs[i] = d.Scale(1 / dist)
			l.invDist[i] = 1 / dist
		}
	}
}

// Shade fills face's corner arrays. Flat faces use the face normal at every
// corner; smooth faces use each vertex normal.
func (e *Evaluator) Shade(obj *ProjectedObject, face *Face, mat *Material) {
	if mat == nil {
		mat = &DefaultMaterial
	}
	table := e.Reflectance.Get(mat.Shininess)
	corner := table.Cell(-1)

	face.Diffuse = face.Diffuse[:0]
	face.SpecX, face.SpecY, face.SpecW = face.SpecX[:0], face.SpecY[:0], face.SpecW[:0]
	face.Specular = false
	for _, vi := range face.V {
		n := face.Normal
		if face.Smooth {
			n = obj.Normals[vi]
		}
		toEye := obj.View[vi].Negate().Normalize()

		r, g, b := e.Ambient[0], e.Ambient[1], e.Ambient[2]
		sx, sy := corner, corner
		var weight, best float64

		for li := range e.lights {
			l := &e.lights[li]
			var toLight math3d.Vec3
			atten := 1.0
			switch {
			case !l.positional():
				toLight = l.Direction.Negate().Normalize()
			case vi < len(l.dirs):
				toLight = l.dirs[vi]
				atten = l.attenuation(l.invDist[vi])
			default:
				// Not prepared for this object.
				d := l.Position.Sub(obj.View[vi])
				toLight = d.Normalize()
				if dist := d.Len(); dist > 0 {
					atten = l.attenuation(1 / dist)
				}
			}

			ndl := n.Dot(toLight)
			if ndl <= 0 {
				continue
			}
			k := atten * l.spot(toLight)
			if k <= 0 {
				continue
			}
			r += ndl * k * l.Color[0]
			g += ndl * k * l.Color[1]
			b += ndl * k * l.Color[2]

			w := l.Specular * k * mat.Specular
			if w <= 0 {
				continue
			}
			weight += w
			if w > best {
				best = w
				h := toLight.Add(toEye).Normalize()
				t1 := h.Perpendicular()
				t2 := h.Cross(t1)
				sx, sy = table.Cell(n.Dot(t1)), table.Cell(n.Dot(t2))
			}
		}

		face.Diffuse = append(face.Diffuse, Shade{R: toShade(r), G: toShade(g), B: toShade(b)})
		face.SpecX = append(face.SpecX, sx)
		face.SpecY = append(face.SpecY, sy)
		sw := toShade(weight)
		face.SpecW = append(face.SpecW, sw)
		if sw > e.SpecThreshold {
			face.Specular = true
		}
	}
}

// toShade converts an intensity to x256 fixed point, saturating at 16x.
func toShade(v float64) int32 {
	return int32(math.Round(math.Max(0, math.Min(v, 16)) * ShadeOne))
}
