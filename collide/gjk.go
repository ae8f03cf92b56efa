// Package collide is the narrow phase: GJK distance and intersection, EPA penetration depth,
// contact manifolds, world space ray casts and convex casts.
package collide

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/shape"
)

const (
	// MaxGJKIterations bounds the distance loop.
	MaxGJKIterations = 64

	gjkRelTolerance = 1e-9
	gjkAbsTolerance = 1e-14
	touchTolerance  = 1e-9
)

// Object is a shape placed in the world by a rigid transform.
type Object struct {
	Shape shape.Convex
	Pose  mgl64.Mat4
}

func (o Object) Center() mgl64.Vec3 { return geom.Translation(o.Pose) }

func (o Object) Support(d mgl64.Vec3) mgl64.Vec3 { return shape.WorldSupport(o.Shape, o.Pose, d) }

func (o Object) CoreSupport(d mgl64.Vec3) mgl64.Vec3 { return shape.WorldCore(o.Shape, o.Pose, d) }

type supportFunc func(d mgl64.Vec3) mgl64.Vec3

// Separation is the result of a distance query. Normal points from A to B. When Overlap is set
// the distance and witness points are meaningless.
type Separation struct {
	Distance float64
	PointA   mgl64.Vec3
	PointB   mgl64.Vec3
	Normal   mgl64.Vec3
	Overlap  bool
}

// Distance returns the separation of the surfaces of a and b, treating spheres and capsules as
// their cores inflated by their radius.
func Distance(a, b Object) Separation {
	var s geom.Simplex
	sep := gjk(a.CoreSupport, b.CoreSupport, b.Center().Sub(a.Center()), &s)
	if sep.Overlap {
		return sep
	}
	ra, rb := a.Shape.Radius(), b.Shape.Radius()
	sep.PointA = sep.PointA.Add(sep.Normal.Mul(ra))
	sep.PointB = sep.PointB.Sub(sep.Normal.Mul(rb))
	sep.Distance -= ra + rb
	if sep.Distance <= 0 {
		sep.Overlap = true
	}
	return sep
}

// Intersect reports whether the two shapes overlap.
func Intersect(a, b Object) bool {
	return Distance(a, b).Overlap
}

// gjk runs the distance algorithm on the Minkowski difference of two support mappings. d0 is
// the initial search direction from A towards B.
func gjk(sa, sb supportFunc, d0 mgl64.Vec3, s *geom.Simplex) Separation {
	s.Reset()
	dir, ok := geom.Normalize(d0)
	if !ok {
		dir = geom.UnitX
	}
	pa, pb := sa(dir), sb(dir.Mul(-1))
	s.Add(pa.Sub(pb), pa, pb)
	v := s.Reduce()
	for iter := 0; iter < MaxGJKIterations; iter++ {
		vv := v.LenSqr()
		if vv <= touchTolerance*touchTolerance {
			return Separation{Overlap: true}
		}
		search := v.Mul(-1 / math.Sqrt(vv))
		pa, pb = sa(search), sb(search.Mul(-1))
		w := pa.Sub(pb)
		if vv-v.Dot(w) <= gjkRelTolerance*vv+gjkAbsTolerance || s.Contains(w, touchTolerance) {
			break
		}
		s.Add(w, pa, pb)
		v = s.Reduce()
		if s.N == 4 {
			return Separation{Overlap: true}
		}
	}
	wa, wb := s.Witness()
	dist := v.Len()
	n, ok := geom.Normalize(wb.Sub(wa))
	if !ok {
		n = dir
	}
	return Separation{Distance: dist, PointA: wa, PointB: wb, Normal: n}
}
