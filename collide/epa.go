package collide

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/geom"
)

const (
	MaxEPAIterations = 64
	epaTolerance     = 1e-6
)

type epaVertex struct {
	p, a, b mgl64.Vec3
}

type epaFace struct {
	v      [3]int
	normal mgl64.Vec3
	dist   float64
	valid  bool
}

type epaEdge struct{ from, to int }

type epaScratch struct {
	verts []epaVertex
	faces []epaFace
	edges []epaEdge
}

// Penetration is the minimum translation separating two overlapping shapes. Moving B by
// Normal*Depth brings the shapes into touching contact.
type Penetration struct {
	Normal mgl64.Vec3
	Depth  float64
	PointA mgl64.Vec3
	PointB mgl64.Vec3
}

// epa expands the terminal GJK simplex into a polytope of the Minkowski difference until the
// face closest to the origin stops moving. ok is false for degenerate input.
func epa(sa, sb supportFunc, s *geom.Simplex, scratch *epaScratch) (Penetration, bool) {
	support := func(d mgl64.Vec3) epaVertex {
		pa, pb := sa(d), sb(d.Mul(-1))
		return epaVertex{p: pa.Sub(pb), a: pa, b: pb}
	}
	if !blowUp(s, support) {
		return Penetration{}, false
	}
	verts := scratch.verts[:0]
	for i := 0; i < 4; i++ {
		verts = append(verts, epaVertex{p: s.P[i], a: s.A[i], b: s.B[i]})
	}
	faces := scratch.faces[:0]
	for _, f := range [4][4]int{{0, 1, 2, 3}, {0, 3, 1, 2}, {0, 2, 3, 1}, {1, 3, 2, 0}} {
		i, j, k := f[0], f[1], f[2]
		n := verts[j].p.Sub(verts[i].p).Cross(verts[k].p.Sub(verts[i].p))
		if n.Dot(verts[f[3]].p.Sub(verts[i].p)) > 0 {
			j, k = k, j
		}
		faces = append(faces, makeFace(verts, i, j, k))
	}
	edges := scratch.edges[:0]
	defer func() {
		scratch.verts, scratch.faces, scratch.edges = verts, faces, edges
	}()

	var best epaFace
	for iter := 0; iter < MaxEPAIterations; iter++ {
		bi := -1
		for i := range faces {
			if faces[i].valid && (bi < 0 || faces[i].dist < faces[bi].dist) {
				bi = i
			}
		}
		if bi < 0 {
			return Penetration{}, false
		}
		best = faces[bi]
		w := support(best.normal)
		if w.p.Dot(best.normal)-best.dist < epaTolerance {
			break
		}
		wi := len(verts)
		verts = append(verts, w)

		edges = edges[:0]
		for i := range faces {
			f := &faces[i]
			if !f.valid || f.normal.Dot(w.p.Sub(verts[f.v[0]].p)) <= 0 {
				continue
			}
			f.valid = false
			for e := 0; e < 3; e++ {
				edges = toggleEdge(edges, epaEdge{f.v[e], f.v[(e+1)%3]})
			}
		}
		n := 0
		for _, f := range faces {
			if f.valid {
				faces[n] = f
				n++
			}
		}
		faces = faces[:n]
		for _, e := range edges {
			faces = append(faces, makeFace(verts, e.from, e.to, wi))
		}
	}

	u, v, w := barycentric(best.normal.Mul(best.dist), verts[best.v[0]].p, verts[best.v[1]].p, verts[best.v[2]].p)
	pa := verts[best.v[0]].a.Mul(u).Add(verts[best.v[1]].a.Mul(v)).Add(verts[best.v[2]].a.Mul(w))
	pb := verts[best.v[0]].b.Mul(u).Add(verts[best.v[1]].b.Mul(v)).Add(verts[best.v[2]].b.Mul(w))
	return Penetration{Normal: best.normal, Depth: math.Max(best.dist, 0), PointA: pa, PointB: pb}, true
}

func makeFace(verts []epaVertex, i, j, k int) epaFace {
	n, ok := geom.Normalize(verts[j].p.Sub(verts[i].p).Cross(verts[k].p.Sub(verts[i].p)))
	if !ok {
		return epaFace{v: [3]int{i, j, k}}
	}
	return epaFace{v: [3]int{i, j, k}, normal: n, dist: n.Dot(verts[i].p), valid: true}
}

// toggleEdge keeps the horizon: an edge shared by two removed faces cancels out.
func toggleEdge(edges []epaEdge, e epaEdge) []epaEdge {
	for i, o := range edges {
		if o.from == e.to && o.to == e.from {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return append(edges, e)
}

// blowUp grows a touching simplex into a tetrahedron that encloses the origin.
func blowUp(s *geom.Simplex, support func(mgl64.Vec3) epaVertex) bool {
	add := func(v epaVertex) { s.Add(v.p, v.a, v.b) }
	if s.N == 1 {
		for _, d := range [...]mgl64.Vec3{geom.UnitX, geom.UnitY, geom.UnitZ, {-1, 0, 0}, {0, -1, 0}, {0, 0, -1}} {
			v := support(d)
			if v.p.Sub(s.P[0]).LenSqr() > epaTolerance*epaTolerance {
				add(v)
				break
			}
		}
	}
	if s.N == 2 {
		axis, ok := geom.Normalize(s.P[1].Sub(s.P[0]))
		if !ok {
			return false
		}
		t0, t1 := geom.TangentBasis(axis)
		for _, d := range [...]mgl64.Vec3{t0, t1, t0.Mul(-1), t1.Mul(-1)} {
			v := support(d)
			off := v.p.Sub(s.P[0])
			if off.Sub(axis.Mul(off.Dot(axis))).LenSqr() > epaTolerance*epaTolerance {
				add(v)
				break
			}
		}
	}
	if s.N == 3 {
		n, ok := geom.Normalize(s.P[1].Sub(s.P[0]).Cross(s.P[2].Sub(s.P[0])))
		if !ok {
			return false
		}
		for _, d := range [...]mgl64.Vec3{n, n.Mul(-1)} {
			v := support(d)
			if math.Abs(v.p.Sub(s.P[0]).Dot(n)) > epaTolerance {
				add(v)
				break
			}
		}
	}
	if s.N != 4 {
		return false
	}
	vol := geom.TripleProduct(s.P[1].Sub(s.P[0]), s.P[2].Sub(s.P[0]), s.P[3].Sub(s.P[0]))
	return math.Abs(vol) > geom.Epsilon
}

// barycentric returns the weights of p projected on triangle abc.
func barycentric(p, a, b, c mgl64.Vec3) (float64, float64, float64) {
	v0 := b.Sub(a)
	v1 := c.Sub(a)
	v2 := p.Sub(a)
	d00 := v0.Dot(v0)
	d01 := v0.Dot(v1)
	d11 := v1.Dot(v1)
	d20 := v2.Dot(v0)
	d21 := v2.Dot(v1)
	den := d00*d11 - d01*d01
	if math.Abs(den) < geom.Epsilon*geom.Epsilon {
		return 1, 0, 0
	}
	v := (d11*d20 - d01*d21) / den
	w := (d00*d21 - d01*d20) / den
	return 1 - v - w, v, w
}
