package core

import "math"

// Vec3 is a point or displacement in the room frame, in centimetres.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Axis selects one of the three room axes for an elementary rotation.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Mat3 is a row-major 3x3 rotation matrix.
type Mat3 [3][3]float64

// Mat4 is a row-major 4x4 rigid transform (rotation + translation).
type Mat4 [4][4]float64

// Rotation builds the elementary rotation about the given room axis. The sign
// convention is the one every closed form downstream depends on: a positive
// rotation about Z carries the X axis toward Y, and a positive rotation about
// Y carries the X axis toward Z:
//
//	Rz = [[ c,-s, 0],[ s, c, 0],[ 0, 0, 1]]
//	Ry = [[ c, 0,-s],[ 0, 1, 0],[ s, 0, c]]
//	Rx = [[ 1, 0, 0],[ 0, c,-s],[ 0, s, c]]
//
// Angles are in radians; degree conversion belongs to the input boundary,
// never to this layer.
func Rotation(axis Axis, angle float64) Mat3 {
	c := math.Cos(angle)
	s := math.Sin(angle)
	switch axis {
	case AxisX:
		return Mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
	case AxisY:
		return Mat3{{c, 0, -s}, {0, 1, 0}, {s, 0, c}}
	default:
		return Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
	}
}

// Mul returns the composition m * other.
func (m Mat3) Mul(other Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += m[i][k] * other[k][j]
			}
		}
	}
	return out
}

// Transpose returns the transpose, which for a proper rotation is its inverse.
func (m Mat3) Transpose() Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// MulVec applies the rotation to a vector.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Identity4 returns the identity transform.
func Identity4() Mat4 {
	return Mat4{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
}

// Translation4 returns a pure translation transform.
func Translation4(t Vec3) Mat4 {
	return Mat4{
		{1, 0, 0, t.X},
		{0, 1, 0, t.Y},
		{0, 0, 1, t.Z},
		{0, 0, 0, 1},
	}
}

// FromRotation embeds a 3x3 rotation into a 4x4 transform with the given
// translation column.
func FromRotation(r Mat3, t Vec3) Mat4 {
	return Mat4{
		{r[0][0], r[0][1], r[0][2], t.X},
		{r[1][0], r[1][1], r[1][2], t.Y},
		{r[2][0], r[2][1], r[2][2], t.Z},
		{0, 0, 0, 1},
	}
}

// RotationAbout builds the rotation about an arbitrary fixed point,
// T(p) * R * T(-p). Every angle-driven motion in the room is expressed this
// way: gantry and couch rotations pivot on the isocenter, scissor segments
// pivot on their own anchors.
func RotationAbout(axis Axis, angle float64, p Vec3) Mat4 {
	r := Rotation(axis, angle)
	// The translation column p - R*p makes p a fixed point of the transform.
	return FromRotation(r, p.Sub(r.MulVec(p)))
}

// Mul returns the composition m * other.
func (m Mat4) Mul(other Mat4) Mat4 {
	var out Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				out[i][j] += m[i][k] * other[k][j]
			}
		}
	}
	return out
}

// MulPoint applies the transform to a point (homogeneous w = 1).
func (m Mat4) MulPoint(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z + m[0][3],
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z + m[1][3],
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z + m[2][3],
	}
}

// Rotation extracts the 3x3 rotation block.
func (m Mat4) Rotation() Mat3 {
	return Mat3{
		{m[0][0], m[0][1], m[0][2]},
		{m[1][0], m[1][1], m[1][2]},
		{m[2][0], m[2][1], m[2][2]},
	}
}

// Translation extracts the translation column.
func (m Mat4) Translation() Vec3 {
	return Vec3{X: m[0][3], Y: m[1][3], Z: m[2][3]}
}

// RigidInverse inverts a rigid transform: the rotation block is transposed
// and the translation becomes -Rᵀt. Only valid for proper rotations, which
// is all this engine ever produces.
func (m Mat4) RigidInverse() Mat4 {
	rt := m.Rotation().Transpose()
	return FromRotation(rt, rt.MulVec(m.Translation()).Scale(-1))
}

// IsIdentity reports whether the transform is the identity within tol.
func (m Mat4) IsIdentity(tol float64) bool {
	id := Identity4()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(m[i][j]-id[i][j]) > tol {
				return false
			}
		}
	}
	return true
}
