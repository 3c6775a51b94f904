package preview

import (
	"math"

	"github.com/taigrr/glimpse/pkg/render"
	"github.com/taigrr/glimpse/pkg/scene"
)

// WheelStep is the zoom factor of one wheel notch.
const WheelStep = 1.1

// dragZoomRate is the zoom exponent per pixel of vertical drag.
const dragZoomRate = 0.01

type dragState struct {
	x, y  int
	mode  DragMode
	start scene.Camera
}

// Press starts a drag at pixel (x, y).
func (c *Controller) Press(x, y int, mode DragMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drag = &dragState{x: x, y: y, mode: mode, start: c.camera}
}

// Drag moves the pointer during a drag. The camera is recomputed from where
// it was at Press, and quick passes are drawn until Release.
func (c *Controller) Drag(x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.drag
	if d == nil {
		return
	}
	dx, dy := float64(x-d.x), float64(y-d.y)
	cam := d.start
	span := float64(max(min(c.width, c.height), 1))

	switch d.mode {
	case DragRotate:
		// Dragging across the shorter side turns half a revolution.
		cam.Rotate(dy/span*math.Pi, dx/span*math.Pi, 0)
	case DragPan:
		// Keep the target under the pointer.
		focal := c.lensFor(cam).Focal(render.Viewport{Width: c.width, Height: c.height})
		if focal > 0 {
			k := cam.Position.Z / focal
			cam.Pan(dx*k, -dy*k)
		}
	case DragZoom:
		cam.ZoomBy(math.Exp(-dy * dragZoomRate))
	}

	c.camera = cam
	c.mode = Quick
	c.requestLocked()
}

// Release ends a drag and asks for a full pass.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drag == nil {
		return
	}
	c.drag = nil
	c.mode = Full
	c.requestLocked()
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drag != nil
}

// Wheel zooms by WheelStep per notch. Positive steps zoom in.
func (c *Controller) Wheel(steps float64) {
	if steps == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera.ZoomBy(math.Pow(WheelStep, steps))
	c.requestLocked()
}

// Orbit turns the camera by the given angles in radians.
func (c *Controller) Orbit(pitch, yaw, roll float64) {
	if pitch == 0 && yaw == 0 && roll == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera.Rotate(pitch, yaw, roll)
	c.requestLocked()
}

// Camera returns the current camera.
func (c *Controller) Camera() scene.Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camera
}

// SetCamera replaces the camera.
func (c *Controller) SetCamera(cam scene.Camera) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera = cam
	c.requestLocked()
}

// ViewSettings returns the camera orientation, position and zoom as text.
func (c *Controller) ViewSettings() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camera.Settings().String()
}

// SetViewSettings restores text produced by ViewSettings. On error the
// camera is unchanged.
func (c *Controller) SetViewSettings(s string) error {
	v, err := scene.ParseViewSettings(s)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera.Apply(v)
	c.requestLocked()
	return nil
}

// Frame aims the camera at the visible objects. It reports false for an
// empty scene.
func (c *Controller) Frame() bool {
	lo, hi, ok := c.scene.Bounds()
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera.Frame(lo, hi, c.lens.Aperture)
	c.requestLocked()
	return true
}
