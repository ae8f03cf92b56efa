package geom

import "github.com/go-gl/mathgl/mgl64"

// Simplex holds up to four points of a Minkowski difference together with the support points
// of the two operands that produced them. Reduce keeps the barycentric weights of the point of
// the hull closest to the origin in W.
type Simplex struct {
	N int
	P [4]mgl64.Vec3
	A [4]mgl64.Vec3
	B [4]mgl64.Vec3
	W [4]float64
}

func (s *Simplex) Reset() { s.N = 0 }

func (s *Simplex) Add(p, a, b mgl64.Vec3) {
	s.P[s.N], s.A[s.N], s.B[s.N] = p, a, b
	s.W[s.N] = 0
	s.N++
}

// Contains reports whether p is already a vertex, within tol.
func (s *Simplex) Contains(p mgl64.Vec3, tol float64) bool {
	for i := 0; i < s.N; i++ {
		if s.P[i].Sub(p).LenSqr() <= tol*tol {
			return true
		}
	}
	return false
}

// Witness returns the weighted support points of both operands.
func (s *Simplex) Witness() (a, b mgl64.Vec3) {
	for i := 0; i < s.N; i++ {
		a = a.Add(s.A[i].Mul(s.W[i]))
		b = b.Add(s.B[i].Mul(s.W[i]))
	}
	return a, b
}

// Reduce finds the point of the simplex closest to the origin, drops the vertices that do not
// support it and returns it. A full tetrahedron enclosing the origin returns the zero vector and
// keeps all four vertices.
func (s *Simplex) Reduce() mgl64.Vec3 {
	switch s.N {
	case 1:
		s.W[0] = 1
	case 2:
		s.W[0], s.W[1] = segmentWeights(s.P[0], s.P[1])
	case 3:
		s.W[0], s.W[1], s.W[2] = triangleWeights(s.P[0], s.P[1], s.P[2])
	case 4:
		s.tetrahedron()
	}
	s.compact()
	var v mgl64.Vec3
	for i := 0; i < s.N; i++ {
		v = v.Add(s.P[i].Mul(s.W[i]))
	}
	return v
}

func (s *Simplex) tetrahedron() {
	a, b, c, d := s.P[0], s.P[1], s.P[2], s.P[3]
	faces := [4][4]int{{0, 1, 2, 3}, {0, 1, 3, 2}, {0, 2, 3, 1}, {1, 2, 3, 0}}
	inside := true
	best := -1.0
	var bestW [4]float64
	for _, f := range faces {
		p0, p1, p2, opp := s.P[f[0]], s.P[f[1]], s.P[f[2]], s.P[f[3]]
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		sideO := -p0.Dot(n)
		sideD := opp.Sub(p0).Dot(n)
		if sideO*sideD > 0 {
			continue
		}
		inside = false
		u, v, w := triangleWeights(p0, p1, p2)
		q := p0.Mul(u).Add(p1.Mul(v)).Add(p2.Mul(w))
		if d2 := q.LenSqr(); best < 0 || d2 < best {
			best = d2
			bestW = [4]float64{}
			bestW[f[0]], bestW[f[1]], bestW[f[2]] = u, v, w
		}
	}
	if !inside {
		s.W = bestW
		return
	}
	vol := TripleProduct(b.Sub(a), c.Sub(a), d.Sub(a))
	if Abs(vol) < Epsilon {
		s.W = [4]float64{1, 0, 0, 0}
		return
	}
	ap := a.Mul(-1)
	wb := TripleProduct(ap, c.Sub(a), d.Sub(a)) / vol
	wc := TripleProduct(b.Sub(a), ap, d.Sub(a)) / vol
	wd := TripleProduct(b.Sub(a), c.Sub(a), ap) / vol
	s.W = [4]float64{1 - wb - wc - wd, wb, wc, wd}
}

func (s *Simplex) compact() {
	n := 0
	for i := 0; i < s.N; i++ {
		if s.W[i] <= 0 {
			continue
		}
		s.P[n], s.A[n], s.B[n], s.W[n] = s.P[i], s.A[i], s.B[i], s.W[i]
		n++
	}
	if n == 0 {
		// Degenerate weights; keep the first vertex.
		s.W[0] = 1
		n = 1
	}
	s.N = n
}

func segmentWeights(a, b mgl64.Vec3) (float64, float64) {
	ab := b.Sub(a)
	l2 := ab.LenSqr()
	if l2 < Epsilon*Epsilon {
		return 1, 0
	}
	t := -a.Dot(ab) / l2
	if t <= 0 {
		return 1, 0
	}
	if t >= 1 {
		return 0, 1
	}
	return 1 - t, t
}

// triangleWeights returns the barycentric weights of the point of triangle abc closest to the
// origin, following the Voronoi region walk.
func triangleWeights(a, b, c mgl64.Vec3) (float64, float64, float64) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := a.Mul(-1)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return 1, 0, 0
	}
	bp := b.Mul(-1)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return 0, 1, 0
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return 1 - v, v, 0
	}
	cp := c.Mul(-1)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return 0, 0, 1
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return 1 - w, 0, w
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return 0, 1 - w, w
	}
	denom := va + vb + vc
	if Abs(denom) < Epsilon*Epsilon {
		return segmentPick(a, b, c)
	}
	v := vb / denom
	w := vc / denom
	return 1 - v - w, v, w
}

// segmentPick handles a collapsed triangle by taking the best of its three edges.
func segmentPick(a, b, c mgl64.Vec3) (float64, float64, float64) {
	type cand struct{ u, v, w float64 }
	var out [3]cand
	u, v := segmentWeights(a, b)
	out[0] = cand{u, v, 0}
	u, v = segmentWeights(b, c)
	out[1] = cand{0, u, v}
	u, v = segmentWeights(a, c)
	out[2] = cand{u, 0, v}
	best, bestD := 0, -1.0
	for i, o := range out {
		q := a.Mul(o.u).Add(b.Mul(o.v)).Add(c.Mul(o.w))
		if d := q.LenSqr(); bestD < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	return out[best].u, out[best].v, out[best].w
}
