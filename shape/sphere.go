package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/0x5844/physics-3d/geom"
)

type Sphere struct {
	radius float64
}

func NewSphere(radius float64) (*Sphere, error) {
	if radius <= 0 {
		return nil, errors.Errorf("sphere radius must be positive, got %v", radius)
	}
	return &Sphere{radius: radius}, nil
}

func (s *Sphere) Kind() Kind { return KindSphere }

func (s *Sphere) Radius() float64 { return s.radius }

func (s *Sphere) Core(mgl64.Vec3) mgl64.Vec3 { return mgl64.Vec3{} }

func (s *Sphere) Support(dir mgl64.Vec3) mgl64.Vec3 {
	geom.Assert(geom.IsUnit(dir), "support direction %v is not unit length", dir)
	return dir.Mul(s.radius)
}

func (s *Sphere) AABB(m mgl64.Mat4) geom.AABB {
	c := geom.Translation(m)
	return geom.NewAABB(c, c).Expand(s.radius)
}

func (s *Sphere) RayCast(p0, p1 mgl64.Vec3) (Hit, bool) {
	d := p1.Sub(p0)
	a := d.Dot(d)
	c := p0.Dot(p0) - s.radius*s.radius
	if c <= 0 || a < geom.Epsilon {
		return Hit{}, false
	}
	b := p0.Dot(d)
	disc := b*b - a*c
	if disc < 0 {
		return Hit{}, false
	}
	root := math.Sqrt(disc)
	t0 := (-b - root) / a
	if t0 < 0 || t0 > 1 {
		return Hit{}, false
	}
	point := p0.Add(d.Mul(t0))
	n, _ := geom.Normalize(point)
	return Hit{Fraction: t0, Exit: (-b + root) / a, Normal: n, Point: point}, true
}

// ClipPlane samples the circle cut by the plane with maxVerts points.
func (s *Sphere) ClipPlane(pl geom.Plane, maxVerts int, out []mgl64.Vec3) []mgl64.Vec3 {
	return circle(pl, pl.Normal.Mul(pl.D), s.radius*s.radius-pl.D*pl.D, maxVerts, out)
}

func circle(pl geom.Plane, center mgl64.Vec3, rho2 float64, count int, out []mgl64.Vec3) []mgl64.Vec3 {
	if rho2 <= 0 {
		return out
	}
	if count < 3 {
		count = 3
	}
	rho := math.Sqrt(rho2)
	u, v := geom.TangentBasis(pl.Normal)
	for k := 0; k < count; k++ {
		theta := 2 * math.Pi * float64(k) / float64(count)
		out = append(out, center.Add(u.Mul(rho*math.Cos(theta))).Add(v.Mul(rho*math.Sin(theta))))
	}
	return out
}

func (s *Sphere) MassProperties(density float64) MassProperties {
	vol := 4.0 / 3.0 * math.Pi * s.radius * s.radius * s.radius
	mass := vol * density
	i := 0.4 * mass * s.radius * s.radius
	return MassProperties{
		Volume:  vol,
		Mass:    mass,
		Inertia: mgl64.Diag3(mgl64.Vec3{i, i, i}),
	}
}
