package core

import (
	"math"
	"testing"
)

const tol = 1e-9

func vecsClose(a, b Vec3, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}

func TestRotationConventions(t *testing.T) {
	tests := []struct {
		name  string
		axis  Axis
		angle float64
		in    Vec3
		want  Vec3
	}{
		{"z quarter turn sends x to y", AxisZ, math.Pi / 2, Vec3{X: 1}, Vec3{Y: 1}},
		{"z quarter turn sends y to -x", AxisZ, math.Pi / 2, Vec3{Y: 1}, Vec3{X: -1}},
		{"y quarter turn sends x to z", AxisY, math.Pi / 2, Vec3{X: 1}, Vec3{Z: 1}},
		{"y quarter turn sends z to -x", AxisY, math.Pi / 2, Vec3{Z: 1}, Vec3{X: -1}},
		{"x quarter turn sends y to z", AxisX, math.Pi / 2, Vec3{Y: 1}, Vec3{Z: 1}},
		{"full turn is identity", AxisY, 2 * math.Pi, Vec3{X: 3, Y: -2, Z: 7}, Vec3{X: 3, Y: -2, Z: 7}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Rotation(tc.axis, tc.angle).MulVec(tc.in)
			if !vecsClose(got, tc.want, tol) {
				t.Fatalf("Rotation(%v, %v)·%v = %v, want %v", tc.axis, tc.angle, tc.in, got, tc.want)
			}
		})
	}
}

func TestMat3MulIsComposition(t *testing.T) {
	a := Rotation(AxisY, 0.3)
	b := Rotation(AxisZ, -0.7)
	v := Vec3{X: 1.5, Y: -2, Z: 0.25}

	got := a.Mul(b).MulVec(v)
	want := a.MulVec(b.MulVec(v))
	if !vecsClose(got, want, tol) {
		t.Fatalf("(A·B)·v = %v, want A·(B·v) = %v", got, want)
	}
}

func TestMat3TransposeInvertsRotation(t *testing.T) {
	r := Rotation(AxisX, 1.1).Mul(Rotation(AxisY, -0.4))
	v := Vec3{X: 2, Y: 3, Z: -1}

	back := r.Transpose().MulVec(r.MulVec(v))
	if !vecsClose(back, v, tol) {
		t.Fatalf("Rᵀ·R·v = %v, want %v", back, v)
	}
}

func TestMat4MulPoint(t *testing.T) {
	m := Translation4(Vec3{X: 10, Y: -5, Z: 2})
	got := m.MulPoint(Vec3{X: 1, Y: 1, Z: 1})
	want := Vec3{X: 11, Y: -4, Z: 3}
	if !vecsClose(got, want, tol) {
		t.Fatalf("translate point = %v, want %v", got, want)
	}
}

func TestMat4RigidInverse(t *testing.T) {
	m := Translation4(Vec3{X: 4, Y: 1, Z: -3}).Mul(
		FromRotation(Rotation(AxisY, 0.9).Mul(Rotation(AxisZ, -1.3)), Vec3{X: -2, Y: 0.5, Z: 6}))

	if !m.Mul(m.RigidInverse()).IsIdentity(tol) {
		t.Fatalf("M·M⁻¹ is not identity:\n%v", m.Mul(m.RigidInverse()))
	}
	if !m.RigidInverse().Mul(m).IsIdentity(tol) {
		t.Fatalf("M⁻¹·M is not identity")
	}
}

func TestRotationAboutFixesPivot(t *testing.T) {
	pivot := Vec3{X: 12, Y: -4, Z: 30}
	m := RotationAbout(AxisY, 1.7, pivot)

	if got := m.MulPoint(pivot); !vecsClose(got, pivot, tol) {
		t.Fatalf("pivot moved to %v", got)
	}

	// A point offset from the pivot must stay at the same distance.
	p := pivot.Add(Vec3{X: 5, Z: -2})
	if got := m.MulPoint(p); math.Abs(got.Sub(pivot).Norm()-p.Sub(pivot).Norm()) > tol {
		t.Fatalf("rotation about pivot changed the radius: %v", got)
	}
}

func TestIsIdentityTolerance(t *testing.T) {
	m := Identity4()
	m[0][3] = 1e-13
	if !m.IsIdentity(1e-12) {
		t.Fatalf("near-identity not recognized")
	}
	m[0][3] = 1e-6
	if m.IsIdentity(1e-12) {
		t.Fatalf("perturbed matrix still identity")
	}
}
