package scene

import (
	"math"

	"github.com/taigrr/glimpse/pkg/math3d"
)

// maxPitch keeps the orbit away from the poles.
const maxPitch = math.Pi/2 - 0.01

// Zoom and distance limits.
const (
	MinZoom     = 0.05
	MaxZoom     = 100
	MinDistance = 0.1
)

// mirrorZ takes right-handed world space, where the viewer looks down -Z,
// into view space, where depth grows along +Z.
var mirrorZ = math3d.Scale(math3d.V3(1, 1, -1))

// Camera orbits a target point. Pitch, Yaw and Roll turn the world around
// the target; Position then places the target in view space, with X and Y
// panning and Z the viewing distance. Zoom magnifies the lens.
type Camera struct {
	Target math3d.Vec3

	// Orientation (Euler angles in radians)
	Pitch float64
	Yaw   float64
	Roll  float64

	Position math3d.Vec3
	Zoom     float64
}

// NewCamera creates a camera 4 units in front of the origin.
func NewCamera() Camera {
	return Camera{
		Position: math3d.V3(0, 0, 4),
		Zoom:     1,
	}
}

// View returns the world to view space transform.
func (c Camera) View() math3d.Affine {
	return math3d.Translate(c.Position).
		Mul(mirrorZ).
		Mul(math3d.Euler(c.Pitch, c.Yaw, c.Roll)).
		Mul(math3d.Translate(c.Target.Negate()))
}

// Rotate turns the camera by the given angles (in radians).
func (c *Camera) Rotate(deltaPitch, deltaYaw, deltaRoll float64) {
	c.Pitch += deltaPitch
	c.Yaw += deltaYaw
	c.Roll += deltaRoll

	// Clamp pitch to avoid flipping over the top
	c.Pitch = min(max(c.Pitch, -maxPitch), maxPitch)
}

// Pan moves the target across the view plane, in view units.
func (c *Camera) Pan(dx, dy float64) {
	c.Position.X += dx
	c.Position.Y += dy
}

// Dolly scales the viewing distance.
func (c *Camera) Dolly(factor float64) {
	if factor <= 0 {
		return
	}
	c.Position.Z = max(c.Position.Z*factor, MinDistance)
}

// ZoomBy scales the lens magnification.
func (c *Camera) ZoomBy(factor float64) {
	if factor <= 0 {
		return
	}
	c.Zoom = min(max(c.Zoom*factor, MinZoom), MaxZoom)
}

// Frame points the camera at the centre of a bounding box and backs off
// until a lens with the given aperture sees all of it. Orientation and
// zoom are kept.
func (c *Camera) Frame(lo, hi math3d.Vec3, aperture float64) {
	c.Target = lo.Add(hi).Scale(0.5)
	c.Position.X, c.Position.Y = 0, 0

	radius := hi.Sub(lo).Len() / 2
	if radius <= 0 || aperture <= 0 || aperture >= math.Pi {
		c.Position.Z = 4
		return
	}
	c.Position.Z = max(radius/math.Sin(aperture/2)*1.05, MinDistance)
}

// Settings returns the camera's view settings.
func (c Camera) Settings() ViewSettings {
	return ViewSettings{
		Pitch:    c.Pitch,
		Yaw:      c.Yaw,
		Roll:     c.Roll,
		Position: c.Position,
		Zoom:     c.Zoom,
	}
}

// Apply restores view settings. The target is kept.
func (c *Camera) Apply(v ViewSettings) {
	c.Pitch, c.Yaw, c.Roll = v.Pitch, v.Yaw, v.Roll
	c.Position = v.Position
	c.Zoom = v.Zoom
}
