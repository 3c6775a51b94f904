package scene

import (
	"math"

	"github.com/taigrr/glimpse/pkg/math3d"
	"github.com/taigrr/glimpse/pkg/render"
)

// Light describes a light source in world space.
type Light struct {
	Name      string
	Type      render.LightType
	Position  math3d.Vec3 // Point and spot
	Direction math3d.Vec3 // Direction the light travels; directional and spot
	Color     [3]float64  // Linear RGB, 1 = full intensity
	Specular  float64

	// Constant, linear and quadratic attenuation. All zero means none.
	Attenuation [3]float64

	SpotAngle    float64 // Cone half angle in radians
	SpotExponent float64

	// Attached lights are given in view space and move with the camera.
	Attached bool
}

// ToView converts the light into the renderer's view-space form.
func (l Light) ToView(view math3d.Affine) render.Light {
	pos, dir := l.Position, l.Direction
	if !l.Attached {
		pos = view.Apply(pos)
		dir = view.ApplyDir(dir)
	}

	rl := render.Light{
		Type:         l.Type,
		Position:     pos,
		Direction:    dir.Normalize(),
		Color:        l.Color,
		Specular:     l.Specular,
		Constant:     l.Attenuation[0],
		Linear:       l.Attenuation[1],
		Quadratic:    l.Attenuation[2],
		SpotExponent: l.SpotExponent,
	}
	if rl.Constant == 0 && rl.Linear == 0 && rl.Quadratic == 0 {
		rl.Constant = 1
	}
	if l.Type == render.LightSpot {
		angle := l.SpotAngle
		if angle <= 0 || angle > math.Pi/2 {
			angle = math.Pi / 6
		}
		rl.SpotCos = math.Cos(angle)
	}
	return rl
}

// DirectionalLight creates a directional light with full specular.
func DirectionalLight(dir math3d.Vec3, color [3]float64) Light {
	return Light{Type: render.LightDirectional, Direction: dir, Color: color, Specular: 1}
}

// PointLight creates an unattenuated point light with full specular.
func PointLight(pos math3d.Vec3, color [3]float64) Light {
	return Light{Type: render.LightPoint, Position: pos, Color: color, Specular: 1}
}

// SpotLight creates a spot light with the given cone half angle.
func SpotLight(pos, dir math3d.Vec3, angle float64, color [3]float64) Light {
	return Light{
		Type:         render.LightSpot,
		Position:     pos,
		Direction:    dir,
		Color:        color,
		Specular:     1,
		SpotAngle:    angle,
		SpotExponent: 2,
	}
}

// DefaultLights is a key light over the viewer's left shoulder and a dim
// fill from the right, both following the camera.
func DefaultLights() []Light {
	key := DirectionalLight(math3d.V3(0.5, -0.6, 1), [3]float64{0.85, 0.85, 0.8})
	key.Name, key.Attached = "key", true
	fill := DirectionalLight(math3d.V3(-0.8, 0.2, 0.6), [3]float64{0.25, 0.25, 0.3})
	fill.Name, fill.Attached, fill.Specular = "fill", true, 0
	return []Light{key, fill}
}
