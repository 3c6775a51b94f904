package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpinDecays(t *testing.T) {
	s := NewSpin(60)
	assert.False(t, s.Moving())
	p, y, r := s.Step()
	assert.Zero(t, p+y+r)

	s.Impulse(0, 0.2, 0)
	assert.True(t, s.Moving())

	_, first, _ := s.Step()
	assert.Equal(t, 0.2, first, "first step applies the full impulse")

	prev := first
	for range 10 {
		_, y, _ := s.Step()
		assert.Less(t, y, prev)
		assert.GreaterOrEqual(t, y, 0.0, "critically damped, no reversal")
		prev = y
	}

	for range 600 {
		s.Step()
	}
	assert.False(t, s.Moving())
}

func TestSpinStop(t *testing.T) {
	s := NewSpin(30)
	s.Impulse(1, -1, 0.5)
	s.Step()
	s.Stop()
	assert.False(t, s.Moving())
	assert.Zero(t, s.Yaw.Velocity)
}

func TestScreenToLightDir(t *testing.T) {
	centre := screenToLightDir(50, 50, 100, 100)
	assert.InDelta(t, 0, centre.X, 1e-9)
	assert.InDelta(t, 0, centre.Y, 1e-9)
	assert.InDelta(t, 1, centre.Z, 1e-9, "straight into the scene")

	// Top left of the screen lights from the upper left.
	d := screenToLightDir(0, 0, 100, 100)
	assert.Greater(t, d.X, 0.0)
	assert.Less(t, d.Y, 0.0)
	assert.InDelta(t, 1, d.Len(), 1e-9)
}
