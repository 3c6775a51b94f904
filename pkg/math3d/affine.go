package math3d

import (
	"fmt"
	"math"
)

// Affine is a 4x3 affine transform: a row-major 3x3 linear part followed by
// a translation column. A point p maps to L*p + T. There is no projective
// row, so perspective is never folded into a transform; the renderer divides
// by depth itself.
//
//	| L00 L01 L02 T.X |
//	| L10 L11 L12 T.Y |
//	| L20 L21 L22 T.Z |
type Affine struct {
	L [3][3]float64
	T Vec3
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{L: [3][3]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}}
}

// Translate creates a translation.
func Translate(v Vec3) Affine {
	a := Identity()
	a.T = v
	return a
}

// Scale creates a per-axis scale.
func Scale(v Vec3) Affine {
	return Affine{L: [3][3]float64{
		{v.X, 0, 0},
		{0, v.Y, 0},
		{0, 0, v.Z},
	}}
}

// ScaleUniform creates a uniform scale.
func ScaleUniform(s float64) Affine {
	return Scale(V3(s, s, s))
}

// RotateX creates a rotation around the X axis (right-handed).
func RotateX(angle float64) Affine {
	c, s := math.Cos(angle), math.Sin(angle)
	return Affine{L: [3][3]float64{
		{1, 0, 0},
		{0, c, -s},
		{0, s, c},
	}}
}

// RotateY creates a rotation around the Y axis (right-handed).
func RotateY(angle float64) Affine {
	c, s := math.Cos(angle), math.Sin(angle)
	return Affine{L: [3][3]float64{
		{c, 0, s},
		{0, 1, 0},
		{-s, 0, c},
	}}
}

// RotateZ creates a rotation around the Z axis (right-handed).
func RotateZ(angle float64) Affine {
	c, s := math.Cos(angle), math.Sin(angle)
	return Affine{L: [3][3]float64{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}}
}

// Rotate creates a rotation around an arbitrary axis.
func Rotate(axis Vec3, angle float64) Affine {
	axis = axis.Normalize()
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	x, y, z := axis.X, axis.Y, axis.Z
	return Affine{L: [3][3]float64{
		{t*x*x + c, t*x*y - s*z, t*x*z + s*y},
		{t*x*y + s*z, t*y*y + c, t*y*z - s*x},
		{t*x*z - s*y, t*y*z + s*x, t*z*z + c},
	}}
}

// Euler composes pitch (X), yaw (Y) and roll (Z) rotations in that order of
// multiplication, so roll is applied first.
func Euler(pitch, yaw, roll float64) Affine {
	return RotateX(pitch).Mul(RotateY(yaw)).Mul(RotateZ(roll))
}

// Mul returns a*b: the transform that applies b first, then a.
func (a Affine) Mul(b Affine) Affine {
	var m Affine
	for r := range 3 {
		for c := range 3 {
			m.L[r][c] = a.L[r][0]*b.L[0][c] + a.L[r][1]*b.L[1][c] + a.L[r][2]*b.L[2][c]
		}
	}
	m.T = a.Apply(b.T)
	return m
}

// Apply transforms a point.
func (a Affine) Apply(p Vec3) Vec3 {
	return Vec3{
		a.L[0][0]*p.X + a.L[0][1]*p.Y + a.L[0][2]*p.Z + a.T.X,
		a.L[1][0]*p.X + a.L[1][1]*p.Y + a.L[1][2]*p.Z + a.T.Y,
		a.L[2][0]*p.X + a.L[2][1]*p.Y + a.L[2][2]*p.Z + a.T.Z,
	}
}

// ApplyDir transforms a direction (no translation).
func (a Affine) ApplyDir(v Vec3) Vec3 {
	return Vec3{
		a.L[0][0]*v.X + a.L[0][1]*v.Y + a.L[0][2]*v.Z,
		a.L[1][0]*v.X + a.L[1][1]*v.Y + a.L[1][2]*v.Z,
		a.L[2][0]*v.X + a.L[2][1]*v.Y + a.L[2][2]*v.Z,
	}
}

// NormalMatrix returns the transform that carries surface normals: the
// inverse transpose of L with no translation. A singular L is returned
// as is.
func (a Affine) NormalMatrix() Affine {
	det := a.Determinant()
	if det == 0 {
		return Affine{L: a.L}
	}
	m := a.L
	return Affine{L: [3][3]float64{
		{
			(m[1][1]*m[2][2] - m[1][2]*m[2][1]) / det,
			-(m[1][0]*m[2][2] - m[1][2]*m[2][0]) / det,
			(m[1][0]*m[2][1] - m[1][1]*m[2][0]) / det,
		},
		{
			-(m[0][1]*m[2][2] - m[0][2]*m[2][1]) / det,
			(m[0][0]*m[2][2] - m[0][2]*m[2][0]) / det,
			-(m[0][0]*m[2][1] - m[0][1]*m[2][0]) / det,
		},
		{
			(m[0][1]*m[1][2] - m[0][2]*m[1][1]) / det,
			-(m[0][0]*m[1][2] - m[0][2]*m[1][0]) / det,
			(m[0][0]*m[1][1] - m[0][1]*m[1][0]) / det,
		},
	}}
}

// ApplyNormal transforms a unit normal and renormalizes it. Normals stay
// perpendicular to the surface under non-uniform scale. Callers
// transforming many normals should apply NormalMatrix once instead.
func (a Affine) ApplyNormal(n Vec3) Vec3 {
	return a.NormalMatrix().ApplyDir(n).Normalize()
}

// Determinant returns the determinant of the linear part.
func (a Affine) Determinant() float64 {
	m := a.L
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Inverse returns the inverse transform.
// Returns identity if the linear part is singular.
func (a Affine) Inverse() Affine {
	det := a.Determinant()
	if det == 0 {
		return Identity()
	}
	m := a.L
	inv := 1 / det
	var r Affine
	r.L[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) * inv
	r.L[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) * inv
	r.L[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) * inv
	r.L[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) * inv
	r.L[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) * inv
	r.L[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) * inv
	r.L[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) * inv
	r.L[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) * inv
	r.L[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) * inv
	r.T = r.ApplyDir(a.T).Negate()
	return r
}

// Translation returns the translation component.
func (a Affine) Translation() Vec3 {
	return a.T
}

// Column returns the image of the i-th basis vector.
func (a Affine) Column(i int) Vec3 {
	return Vec3{a.L[0][i], a.L[1][i], a.L[2][i]}
}

// String formats the transform as three rows.
func (a Affine) String() string {
	return fmt.Sprintf("[%g %g %g %g; %g %g %g %g; %g %g %g %g]",
		a.L[0][0], a.L[0][1], a.L[0][2], a.T.X,
		a.L[1][0], a.L[1][1], a.L[1][2], a.T.Y,
		a.L[2][0], a.L[2][1], a.L[2][2], a.T.Z)
}
