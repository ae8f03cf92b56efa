package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/constraints"
)

// Epsilon is the general purpose tolerance used by the numeric helpers.
const Epsilon = 1e-9

// UnitTolerance bounds |len(v)-1| for a direction to count as unit length.
const UnitTolerance = 1e-4

var (
	Zero  = mgl64.Vec3{}
	UnitX = mgl64.Vec3{1, 0, 0}
	UnitY = mgl64.Vec3{0, 1, 0}
	UnitZ = mgl64.Vec3{0, 0, 1}
)

func Clamp[T constraints.Float | constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Abs[T constraints.Float | constraints.Signed](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// Normalize returns v scaled to unit length. The boolean is false for vectors too short to
// normalize, in which case the zero vector is returned.
func Normalize(v mgl64.Vec3) (mgl64.Vec3, bool) {
	l2 := v.LenSqr()
	if l2 < Epsilon*Epsilon {
		return mgl64.Vec3{}, false
	}
	return v.Mul(1 / math.Sqrt(l2)), true
}

func IsUnit(v mgl64.Vec3) bool {
	return math.Abs(v.Len()-1) <= UnitTolerance
}

// TangentBasis returns two unit vectors orthogonal to n and to each other.
// n must be unit length.
func TangentBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var t0 mgl64.Vec3
	if math.Abs(n[0]) > 0.57735 {
		t0 = mgl64.Vec3{n[1], -n[0], 0}
	} else {
		t0 = mgl64.Vec3{0, n[2], -n[1]}
	}
	t0 = t0.Normalize()
	t1 := n.Cross(t0)
	return t0, t1
}

// Component returns v[axis].
func Component(v mgl64.Vec3, axis int) float64 {
	return v[axis]
}

// MaxAxis returns the index of the largest component.
func MaxAxis(v mgl64.Vec3) int {
	axis := 0
	if v[1] > v[axis] {
		axis = 1
	}
	if v[2] > v[axis] {
		axis = 2
	}
	return axis
}

func MinVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])}
}

func MaxVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])}
}

// MulElem multiplies two vectors component-wise.
func MulElem(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// Outer returns the outer product a * b^T.
func Outer(a, b mgl64.Vec3) mgl64.Mat3 {
	var m mgl64.Mat3
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m[col*3+row] = a[row] * b[col]
		}
	}
	return m
}

// Skew returns the cross product matrix of v, so Skew(v).Mul3x1(w) == v.Cross(w).
func Skew(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		0, v[2], -v[1],
		-v[2], 0, v[0],
		v[1], -v[0], 0,
	}
}

// TripleProduct returns a . (b x c).
func TripleProduct(a, b, c mgl64.Vec3) float64 {
	return a.Dot(b.Cross(c))
}

// IsFinite reports whether every component is a finite number.
func IsFinite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
