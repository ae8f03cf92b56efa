package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/geom"
)

const rayTolerance = 1e-7

// RayCast clips the segment against every face plane for small polytopes and falls back to the
// GJK ray cast for larger ones.
func (p *Polytope) RayCast(p0, p1 mgl64.Vec3) (Hit, bool) {
	if len(p.faces) > CheapFaceCount {
		return rayCastGJK(p.Support, p0, p1)
	}
	return p.clipRay(p0, p1)
}

func (p *Polytope) clipRay(p0, p1 mgl64.Vec3) (Hit, bool) {
	dir := p1.Sub(p0)
	enter, exit := 0.0, 1.0
	var normal mgl64.Vec3
	entered := false
	for _, f := range p.faces {
		den := f.plane.Normal.Dot(dir)
		dist := f.plane.Distance(p0)
		if math.Abs(den) < geom.Epsilon {
			if dist > 0 {
				return Hit{}, false
			}
			continue
		}
		t := -dist / den
		switch {
		case den < 0:
			if dist > 0 && (!entered || t > enter) {
				enter, normal, entered = t, f.plane.Normal, true
			}
		case t < exit:
			exit = t
		}
		if entered && enter > exit {
			return Hit{}, false
		}
	}
	if !entered || enter > exit {
		return Hit{}, false
	}
	return Hit{
		Fraction: enter,
		Exit:     exit,
		Normal:   normal,
		Point:    p0.Add(dir.Mul(enter)),
	}, true
}

// rayCastGJK finds the entry by marching from p0 and the exit by marching back from p1. A
// segment that ends inside the shape exits at 1.
func rayCastGJK(support func(mgl64.Vec3) mgl64.Vec3, p0, p1 mgl64.Vec3) (Hit, bool) {
	lambda, normal, x, ok := gjkRay(support, p0, p1)
	if !ok || lambda == 0 {
		// A zero fraction means p0 is inside the shape.
		return Hit{}, false
	}
	exit := 1.0
	if back, _, _, ok := gjkRay(support, p1, p0); ok && back > 0 {
		exit = 1 - back
	}
	n, ok := geom.Normalize(normal)
	if !ok {
		n = p1.Sub(p0).Normalize().Mul(-1)
	}
	return Hit{
		Fraction: lambda,
		Exit:     math.Max(exit, lambda),
		Normal:   n,
		Point:    x,
	}, true
}

// gjkRay advances the ray origin along the segment while a separating plane exists between
// it and the shape. The last separating axis is the surface normal at the hit. ok is false
// when the segment misses; a zero fraction means p0 starts inside.
func gjkRay(support func(mgl64.Vec3) mgl64.Vec3, p0, p1 mgl64.Vec3) (float64, mgl64.Vec3, mgl64.Vec3, bool) {
	r := p1.Sub(p0)
	lambda := 0.0
	x := p0
	var normal mgl64.Vec3
	var simplex geom.Simplex
	v := x.Sub(support(geom.UnitX))
	for iter := 0; iter < MaxRayIterations; iter++ {
		vLen2 := v.LenSqr()
		if vLen2 < rayTolerance*rayTolerance {
			break
		}
		dir := v.Mul(1 / math.Sqrt(vLen2))
		pt := support(dir)
		w := x.Sub(pt)
		vw := v.Dot(w)
		advanced := false
		if vw > 0 {
			vr := v.Dot(r)
			if vr >= 0 {
				return 0, mgl64.Vec3{}, mgl64.Vec3{}, false
			}
			lambda -= vw / vr
			if lambda > 1 {
				return 0, mgl64.Vec3{}, mgl64.Vec3{}, false
			}
			x = p0.Add(r.Mul(lambda))
			normal = v
			advanced = true
		}
		if hasSupport(&simplex, pt) {
			if !advanced {
				break
			}
		} else {
			simplex.Add(x.Sub(pt), pt, mgl64.Vec3{})
		}
		for i := 0; i < simplex.N; i++ {
			simplex.P[i] = x.Sub(simplex.A[i])
		}
		v = simplex.Reduce()
		if simplex.N == 4 {
			break
		}
	}
	return lambda, normal, x, true
}

func hasSupport(s *geom.Simplex, pt mgl64.Vec3) bool {
	for i := 0; i < s.N; i++ {
		if s.A[i].Sub(pt).LenSqr() <= rayTolerance*rayTolerance {
			return true
		}
	}
	return false
}
