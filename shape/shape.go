// Package shape implements the convex collision shapes: a winged-edge polytope for boxes and
// hulls, spheres and capsules. All queries work in the shape's local frame unless a pose matrix
// is passed.
package shape

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/geom"
)

type Kind int

const (
	KindSphere Kind = iota
	KindCapsule
	KindPolytope
)

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindCapsule:
		return "capsule"
	case KindPolytope:
		return "polytope"
	}
	return "unknown"
}

// CheapFaceCount is the largest polytope that ray casts by clipping against every face plane.
// Larger polytopes use the GJK ray cast.
const CheapFaceCount = 16

// MaxRayIterations bounds the GJK ray cast.
const MaxRayIterations = 32

// Hit describes a ray entering a shape. Fraction and Exit are parameters along the segment
// p0 + t*(p1-p0).
type Hit struct {
	Fraction float64
	Exit     float64
	Normal   mgl64.Vec3
	Point    mgl64.Vec3
}

// MassProperties are computed for a given density. Inertia is taken about Center.
type MassProperties struct {
	Volume  float64
	Mass    float64
	Center  mgl64.Vec3
	Inertia mgl64.Mat3
}

// Convex is the query surface every collision shape offers.
type Convex interface {
	Kind() Kind

	// Support returns the local point farthest along dir. dir must be unit length.
	Support(dir mgl64.Vec3) mgl64.Vec3

	// Core returns the inner shape (point, segment or the polytope itself) and Radius the
	// distance the surface keeps from it.
	Core(dir mgl64.Vec3) mgl64.Vec3
	Radius() float64

	// AABB returns the world box of the shape under the rigid transform m.
	AABB(m mgl64.Mat4) geom.AABB

	// RayCast intersects the local segment p0->p1 with the shape. Segments starting inside
	// the shape do not report a hit.
	RayCast(p0, p1 mgl64.Vec3) (Hit, bool)

	// ClipPlane appends the cross-section of the shape with the local plane to out, ordered
	// counter-clockwise around the plane normal and reduced to at most maxVerts points.
	ClipPlane(p geom.Plane, maxVerts int, out []mgl64.Vec3) []mgl64.Vec3

	MassProperties(density float64) MassProperties
}

// WorldSupport returns the world space support point of s posed at m along the world direction d.
func WorldSupport(s Convex, m mgl64.Mat4, d mgl64.Vec3) mgl64.Vec3 {
	local, ok := geom.Normalize(geom.UntransformVector(m, d))
	if !ok {
		local = geom.UnitX
	}
	return geom.TransformPoint(m, s.Support(local))
}

// WorldCore is WorldSupport for the core of s.
func WorldCore(s Convex, m mgl64.Mat4, d mgl64.Vec3) mgl64.Vec3 {
	local, ok := geom.Normalize(geom.UntransformVector(m, d))
	if !ok {
		local = geom.UnitX
	}
	return geom.TransformPoint(m, s.Core(local))
}

// supportAABB builds the world box from six support queries.
func supportAABB(s Convex, m mgl64.Mat4) geom.AABB {
	var box geom.AABB
	rot := m.Mat3()
	origin := geom.Translation(m)
	for axis := 0; axis < 3; axis++ {
		dir := rot.Row(axis)
		hi := rot.Mul3x1(s.Support(dir))
		lo := rot.Mul3x1(s.Support(dir.Mul(-1)))
		box.Max[axis] = hi[axis] + origin[axis]
		box.Min[axis] = lo[axis] + origin[axis]
	}
	return box
}
