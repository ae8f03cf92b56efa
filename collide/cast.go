package collide

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/geom"
)

const (
	MaxCastIterations = 32
	// CastTolerance is the surface gap at which a convex cast reports contact.
	CastTolerance = 1e-4
)

// CastHit reports the first contact of a swept shape. Normal points from the swept shape to
// the obstacle.
type CastHit struct {
	Fraction float64
	Normal   mgl64.Vec3
	Point    mgl64.Vec3
}

// ConvexCast sweeps a by pure translation from its pose to target and returns the first time
// of impact with b by conservative advancement.
func ConvexCast(a Object, target mgl64.Vec3, b Object) (CastHit, bool) {
	start := geom.Translation(a.Pose)
	delta := target.Sub(start)
	t := 0.0
	for iter := 0; iter < MaxCastIterations; iter++ {
		moved := a
		p := start.Add(delta.Mul(t))
		moved.Pose[12], moved.Pose[13], moved.Pose[14] = p[0], p[1], p[2]
		sep := Distance(moved, b)
		if sep.Overlap {
			if t == 0 {
				n, ok := geom.Normalize(b.Center().Sub(moved.Center()))
				if !ok {
					n = geom.UnitY
				}
				return CastHit{Fraction: 0, Normal: n, Point: moved.Center()}, true
			}
			n, _ := geom.Normalize(delta)
			return CastHit{Fraction: t, Normal: n, Point: p}, true
		}
		if sep.Distance <= CastTolerance {
			return CastHit{Fraction: t, Normal: sep.Normal, Point: sep.PointA.Add(sep.PointB).Mul(0.5)}, true
		}
		closing := delta.Dot(sep.Normal)
		if closing <= geom.Epsilon {
			return CastHit{}, false
		}
		t += (sep.Distance - 0.5*CastTolerance) / closing
		if t > 1 {
			return CastHit{}, false
		}
	}
	return CastHit{}, false
}
