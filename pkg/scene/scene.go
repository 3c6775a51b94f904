// Package scene holds what glimpse draws: objects, lights and the camera
// that looks at them. A Scene is safe for concurrent use; readers take
// snapshots so the render worker never sees a half-applied change.
package scene

import (
	"math"
	"slices"
	"sync"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/render"
)

// DefaultAmbient is the ambient level of a new scene.
var DefaultAmbient = [3]float64{0.15, 0.15, 0.15}

// Scene is an ordered set of objects plus the lighting.
type Scene struct {
	mu       sync.RWMutex
	objects  []*Object
	lights   []Light
	ambient  [3]float64
	version  uint64
	watchers []func()
}

// New creates an empty scene with the default lights.
func New() *Scene {
	return &Scene{
		lights:  DefaultLights(),
		ambient: DefaultAmbient,
	}
}

// OnChange registers fn to run after every modification. It is called
// without the scene lock held.
func (s *Scene) OnChange(fn func()) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

// update runs fn under the write lock, bumps the version and notifies
// watchers if fn reports a change.
func (s *Scene) update(fn func() bool) bool {
	s.mu.Lock()
	changed := fn()
	if changed {
		s.version++
	}
	watchers := s.watchers
	s.mu.Unlock()

	if changed {
		for _, w := range watchers {
			w()
		}
	}
	return changed
}

// Add appends objects. Objects are drawn in insertion order.
func (s *Scene) Add(objs ...*Object) {
	s.update(func() bool {
		for _, o := range objs {
			if o != nil {
				s.objects = append(s.objects, o)
			}
		}
		return true
	})
}

// Remove deletes the first object with the given name.
func (s *Scene) Remove(name string) bool {
	return s.update(func() bool {
		i := s.index(name)
		if i < 0 {
			return false
		}
		s.objects = slices.Delete(s.objects, i, i+1)
		return true
	})
}

// SetTransform replaces an object's transform.
func (s *Scene) SetTransform(name string, t math3d.Affine) bool {
	return s.update(func() bool {
		i := s.index(name)
		if i < 0 {
			return false
		}
		s.objects[i].Transform = t
		return true
	})
}

// SetTexture puts t on every material of the named object.
func (s *Scene) SetTexture(name string, t *render.Texture) bool {
	return s.update(func() bool {
		i := s.index(name)
		if i < 0 {
			return false
		}
		s.objects[i].SetTexture(t)
		return true
	})
}

// SetHidden shows or hides an object.
func (s *Scene) SetHidden(name string, hidden bool) bool {
	return s.update(func() bool {
		i := s.index(name)
		if i < 0 || s.objects[i].Hidden == hidden {
			return false
		}
		s.objects[i].Hidden = hidden
		return true
	})
}

func (s *Scene) index(name string) int {
	return slices.IndexFunc(s.objects, func(o *Object) bool { return o.Name == name })
}

// Len returns the number of objects, hidden ones included.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Objects returns a snapshot of the visible objects. dst is reused if it
// has room.
func (s *Scene) Objects(dst []Object) []Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dst = dst[:0]
	for _, o := range s.objects {
		if !o.Hidden && o.Mesh != nil {
			dst = append(dst, *o)
		}
	}
	return dst
}

// SetLights replaces all lights.
func (s *Scene) SetLights(lights ...Light) {
	s.update(func() bool {
		s.lights = slices.Clone(lights)
		return true
	})
}

// AddLight appends a light.
func (s *Scene) AddLight(l Light) {
	s.update(func() bool {
		s.lights = append(s.lights, l)
		return true
	})
}

// Lights returns a copy of the lights.
func (s *Scene) Lights() []Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lights)
}

// ViewLights converts every light into view space for the given camera
// transform, appending to dst.
func (s *Scene) ViewLights(view math3d.Affine, dst []render.Light) []render.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dst = dst[:0]
	for _, l := range s.lights {
		dst = append(dst, l.ToView(view))
	}
	return dst
}

// SetAmbient sets the ambient light level per channel.
func (s *Scene) SetAmbient(ambient [3]float64) {
	s.update(func() bool {
		if s.ambient == ambient {
			return false
		}
		s.ambient = ambient
		return true
	})
}

// Ambient returns the ambient light level.
func (s *Scene) Ambient() [3]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambient
}

// Version increases with every modification.
func (s *Scene) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Bounds returns the world-space box around every visible object. ok is
// false for an empty scene.
func (s *Scene) Bounds() (lo, hi math3d.Vec3, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo = math3d.V3(math.Inf(1), math.Inf(1), math.Inf(1))
	hi = math3d.V3(math.Inf(-1), math.Inf(-1), math.Inf(-1))
	for _, o := range s.objects {
		if o.Hidden || o.Mesh == nil || len(o.Mesh.Vertices) == 0 {
			continue
		}
		bmin, bmax := o.Mesh.Bounds()
		box := render.AABB{Min: bmin, Max: bmax}.Transform(o.Transform)
		lo, hi = lo.Min(box.Min), hi.Max(box.Max)
		ok = true
	}
	if !ok {
		return math3d.Vec3{}, math3d.Vec3{}, false
	}
	return lo, hi, true
}
