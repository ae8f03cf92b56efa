package geom

import "github.com/go-gl/mathgl/mgl64"

// Plane holds the points x with Normal.Dot(x) == D.
type Plane struct {
	Normal mgl64.Vec3
	D      float64
}

// PlaneFromPoints builds the plane through a, b, c with the normal following the right-hand rule.
// The boolean is false for collinear points.
func PlaneFromPoints(a, b, c mgl64.Vec3) (Plane, bool) {
	n, ok := Normalize(b.Sub(a).Cross(c.Sub(a)))
	if !ok {
		return Plane{}, false
	}
	return Plane{Normal: n, D: n.Dot(a)}, true
}

func (p Plane) Distance(x mgl64.Vec3) float64 {
	return p.Normal.Dot(x) - p.D
}

func (p Plane) Project(x mgl64.Vec3) mgl64.Vec3 {
	return x.Sub(p.Normal.Mul(p.Distance(x)))
}

func (p Plane) Flip() Plane {
	return Plane{Normal: p.Normal.Mul(-1), D: -p.D}
}
