package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/0x5844/physics-3d/geom"
)

// Capsule is a segment along the local Y axis from -HalfHeight to +HalfHeight swept by a sphere.
type Capsule struct {
	radius     float64
	halfHeight float64
}

func NewCapsule(radius, halfHeight float64) (*Capsule, error) {
	if radius <= 0 || halfHeight < 0 {
		return nil, errors.Errorf("invalid capsule radius %v half height %v", radius, halfHeight)
	}
	return &Capsule{radius: radius, halfHeight: halfHeight}, nil
}

func (c *Capsule) Kind() Kind { return KindCapsule }

func (c *Capsule) Radius() float64 { return c.radius }

func (c *Capsule) HalfHeight() float64 { return c.halfHeight }

// Segment returns the end points of the core segment.
func (c *Capsule) Segment() (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{0, -c.halfHeight, 0}, mgl64.Vec3{0, c.halfHeight, 0}
}

func (c *Capsule) Core(dir mgl64.Vec3) mgl64.Vec3 {
	if dir[1] >= 0 {
		return mgl64.Vec3{0, c.halfHeight, 0}
	}
	return mgl64.Vec3{0, -c.halfHeight, 0}
}

func (c *Capsule) Support(dir mgl64.Vec3) mgl64.Vec3 {
	geom.Assert(geom.IsUnit(dir), "support direction %v is not unit length", dir)
	return c.Core(dir).Add(dir.Mul(c.radius))
}

func (c *Capsule) AABB(m mgl64.Mat4) geom.AABB {
	a, b := c.Segment()
	wa := geom.TransformPoint(m, a)
	wb := geom.TransformPoint(m, b)
	return geom.NewAABB(geom.MinVec(wa, wb), geom.MaxVec(wa, wb)).Expand(c.radius)
}

func (c *Capsule) RayCast(p0, p1 mgl64.Vec3) (Hit, bool) {
	return rayCastGJK(c.Support, p0, p1)
}

// ClipPlane approximates the cut by the hull of the circles cut from the spheres at the ends
// and the middle of the part of the core segment within one radius of the plane.
func (c *Capsule) ClipPlane(pl geom.Plane, maxVerts int, out []mgl64.Vec3) []mgl64.Vec3 {
	a, b := c.Segment()
	da, db := pl.Distance(a), pl.Distance(b)
	t0, t1, ok := slabRange(da, db, c.radius)
	if !ok {
		return out
	}
	var samples []mgl64.Vec3
	for _, t := range [...]float64{t0, 0.5 * (t0 + t1), t1} {
		center := a.Add(b.Sub(a).Mul(t))
		s := pl.Distance(center)
		samples = circle(pl, center.Sub(pl.Normal.Mul(s)), c.radius*c.radius-s*s, maxVerts, samples)
	}
	if len(samples) < 3 {
		return out
	}
	idx := make([]int, len(samples))
	for i := range idx {
		idx[i] = i
	}
	base := len(out)
	for _, i := range faceRing(samples, idx, pl.Normal) {
		out = append(out, samples[i])
	}
	return rectify(out, base, pl.Normal, maxVerts)
}

// slabRange returns the parameter range of the segment whose distance to the plane is within
// radius, given the signed distances of its end points.
func slabRange(da, db, radius float64) (float64, float64, bool) {
	lo, hi := 0.0, 1.0
	dd := db - da
	if math.Abs(dd) < geom.Epsilon {
		if math.Abs(da) >= radius {
			return 0, 0, false
		}
		return lo, hi, true
	}
	ta := (-radius - da) / dd
	tb := (radius - da) / dd
	if ta > tb {
		ta, tb = tb, ta
	}
	lo = math.Max(lo, ta)
	hi = math.Min(hi, tb)
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

func (c *Capsule) MassProperties(density float64) MassProperties {
	r, h := c.radius, c.halfHeight
	cylVol := math.Pi * r * r * 2 * h
	sphVol := 4.0 / 3.0 * math.Pi * r * r * r
	mc := cylVol * density
	ms := sphVol * density
	axial := mc*r*r/2 + ms*2*r*r/5
	transverse := mc*(h*h/3+r*r/4) + ms*(2*r*r/5+h*h+3*h*r/4)
	return MassProperties{
		Volume:  cylVol + sphVol,
		Mass:    mc + ms,
		Inertia: mgl64.Diag3(mgl64.Vec3{transverse, axial, transverse}),
	}
}
