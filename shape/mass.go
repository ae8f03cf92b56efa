package shape

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/geom"
)

// canonicalCovariance is the covariance of the unit tetrahedron (0, e1, e2, e3).
var canonicalCovariance = mgl64.Mat3{
	2.0 / 120, 1.0 / 120, 1.0 / 120,
	1.0 / 120, 2.0 / 120, 1.0 / 120,
	1.0 / 120, 1.0 / 120, 2.0 / 120,
}

// MassProperties sums the covariance of the tetrahedra spanned by the origin and a fan
// triangulation of every face, then shifts it to the centre of mass.
func (p *Polytope) MassProperties(density float64) MassProperties {
	var cov mgl64.Mat3
	var com mgl64.Vec3
	vol := 0.0
	var loop []mgl64.Vec3
	for fi := range p.faces {
		loop = p.FaceVertices(fi, loop[:0])
		for i := 1; i+1 < len(loop); i++ {
			a, b, c := loop[0], loop[i], loop[i+1]
			m := mgl64.Mat3FromCols(a, b, c)
			det := m.Det()
			cov = cov.Add(m.Mul3(canonicalCovariance).Mul3(m.Transpose()).Mul(det))
			vol += det / 6
			com = com.Add(a.Add(b).Add(c).Mul(det / 24))
		}
	}
	if vol <= geom.Epsilon {
		return MassProperties{}
	}
	com = com.Mul(1 / vol)
	cov = cov.Sub(geom.Outer(com, com).Mul(vol))
	inertia := mgl64.Ident3().Mul(cov.Trace()).Sub(cov)
	return MassProperties{
		Volume:  vol,
		Mass:    vol * density,
		Center:  com,
		Inertia: inertia.Mul(density),
	}
}
