package main

import "github.com/charmbracelet/harmonica"

// stopSpeed is the angular speed (radians per tick) below which a spin
// counts as stopped.
const stopSpeed = 1e-4

// SpinAxis holds the angular velocity of one axis and decays it with a
// spring.
type SpinAxis struct {
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64 // Spring velocity of Velocity itself
}

// NewSpinAxis creates an axis ticking at fps.
func NewSpinAxis(fps int) SpinAxis {
	return SpinAxis{
		// Frequency 4.0 = moderate speed, damping 1.0 = critically damped (no overshoot)
		velSpring: harmonica.NewSpring(harmonica.FPS(max(fps, 1)), 4.0, 1.0),
	}
}

// Step returns this tick's rotation and decays the velocity toward 0.
func (a *SpinAxis) Step() float64 {
	v := a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
	return v
}

// Spin keeps the view turning after a rotate drag or an impulse.
type Spin struct {
	Pitch, Yaw, Roll SpinAxis
	fps              int
}

func NewSpin(fps int) *Spin {
	return &Spin{
		Pitch: NewSpinAxis(fps),
		Yaw:   NewSpinAxis(fps),
		Roll:  NewSpinAxis(fps),
		fps:   fps,
	}
}

func (s *Spin) Impulse(pitch, yaw, roll float64) {
	s.Pitch.Velocity += pitch
	s.Yaw.Velocity += yaw
	s.Roll.Velocity += roll
}

// Stop halts all axes.
func (s *Spin) Stop() {
	s.Pitch = NewSpinAxis(s.fps)
	s.Yaw = NewSpinAxis(s.fps)
	s.Roll = NewSpinAxis(s.fps)
}

// Moving reports whether any axis is still turning.
func (s *Spin) Moving() bool {
	return abs(s.Pitch.Velocity) > stopSpeed || abs(s.Yaw.Velocity) > stopSpeed || abs(s.Roll.Velocity) > stopSpeed
}

// Step advances one tick and returns the rotation to apply. Once every
// axis has slowed below stopSpeed the spin snaps to rest.
func (s *Spin) Step() (pitch, yaw, roll float64) {
	if !s.Moving() {
		s.Stop()
		return 0, 0, 0
	}
	return s.Pitch.Step(), s.Yaw.Step(), s.Roll.Step()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
