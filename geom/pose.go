package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// PoseTolerance bounds the disagreement between a pose matrix and its quaternion.
const PoseTolerance = 1e-6

// Compose builds the rigid transform with rotation q followed by translation p.
func Compose(q mgl64.Quat, p mgl64.Vec3) mgl64.Mat4 {
	m := q.Normalize().Mat4()
	m[12], m[13], m[14] = p[0], p[1], p[2]
	return m
}

// Translation returns the translation column of m.
func Translation(m mgl64.Mat4) mgl64.Vec3 {
	return mgl64.Vec3{m[12], m[13], m[14]}
}

// RotationOf extracts the unit quaternion of the rotation part of m. The 3x3 block is
// orthonormalized first so accumulated drift does not leak into the quaternion.
func RotationOf(m mgl64.Mat4) mgl64.Quat {
	x := mgl64.Vec3{m[0], m[1], m[2]}
	y := mgl64.Vec3{m[4], m[5], m[6]}
	x, okx := Normalize(x)
	if !okx {
		return mgl64.QuatIdent()
	}
	z, okz := Normalize(x.Cross(y))
	if !okz {
		return mgl64.QuatIdent()
	}
	y = z.Cross(x)
	clean := mgl64.Ident4()
	clean[0], clean[1], clean[2] = x[0], x[1], x[2]
	clean[4], clean[5], clean[6] = y[0], y[1], y[2]
	clean[8], clean[9], clean[10] = z[0], z[1], z[2]
	q := mgl64.Mat4ToQuat(clean).Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	return q
}

func TransformPoint(m mgl64.Mat4, p mgl64.Vec3) mgl64.Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

func TransformVector(m mgl64.Mat4, v mgl64.Vec3) mgl64.Vec3 {
	return m.Mat3().Mul3x1(v)
}

// UntransformPoint applies the inverse of the rigid transform m.
func UntransformPoint(m mgl64.Mat4, p mgl64.Vec3) mgl64.Vec3 {
	return m.Mat3().Transpose().Mul3x1(p.Sub(Translation(m)))
}

// UntransformVector applies the inverse rotation of the rigid transform m.
func UntransformVector(m mgl64.Mat4, v mgl64.Vec3) mgl64.Vec3 {
	return m.Mat3().Transpose().Mul3x1(v)
}

// RotationInSync reports whether the rotation block of m and q describe the same rotation.
func RotationInSync(m mgl64.Mat4, q mgl64.Quat, eps float64) bool {
	r := q.Normalize().Mat4()
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			if math.Abs(r.At(row, col)-m.At(row, col)) > eps {
				return false
			}
		}
	}
	return true
}

// IntegrateRotation advances q by the angular velocity omega over dt and renormalizes.
func IntegrateRotation(q mgl64.Quat, omega mgl64.Vec3, dt float64) mgl64.Quat {
	spin := mgl64.Quat{W: 0, V: omega}.Mul(q).Scale(0.5 * dt)
	return q.Add(spin).Normalize()
}

// RotateInertia returns R * I * R^T.
func RotateInertia(r mgl64.Mat3, inertia mgl64.Mat3) mgl64.Mat3 {
	return r.Mul3(inertia).Mul3(r.Transpose())
}
