package math3d

import (
	"testing"
)

func BenchmarkAffineMul(b *testing.B) {
	m1 := Translate(V3(1, 2, 3))
	m2 := RotateY(0.5)

	for b.Loop() {
		_ = m1.Mul(m2)
	}
}

func BenchmarkAffineApply(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5))
	v := V3(1, 2, 3)

	for b.Loop() {
		_ = m.Apply(v)
	}
}

func BenchmarkAffineInverse(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5)).Mul(Scale(V3(2, 2, 2)))

	for b.Loop() {
		_ = m.Inverse()
	}
}

func BenchmarkVec3Normalize(b *testing.B) {
	v := V3(1, 2, 3)

	for b.Loop() {
		_ = v.Normalize()
	}
}

func BenchmarkVec3Cross(b *testing.B) {
	v1 := V3(1, 2, 3)
	v2 := V3(4, 5, 6)

	for b.Loop() {
		_ = v1.Cross(v2)
	}
}

func BenchmarkObjectToView(b *testing.B) {
	// Compose the object-to-view transform the way the preview controller does.
	view := Translate(V3(0, 0, 5)).Mul(Scale(V3(1, 1, -1))).Mul(Euler(0.3, 0.5, 0))
	model := Translate(V3(1, 0, 0)).Mul(RotateY(0.25))

	for b.Loop() {
		_ = view.Mul(model)
	}
}
