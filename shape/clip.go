package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/geom"
)

// clipTolerance merges cross-section points closer than this and drops corners whose turn is
// flatter than it.
const clipTolerance = 1e-6

// ClipPlane walks the faces crossed by the plane. It starts at any edge going from the front
// to the back of the plane, finds in the same face the edge that comes back to the front,
// emits its crossing point, and continues in the neighbouring face through the twin edge until
// the loop closes.
func (p *Polytope) ClipPlane(pl geom.Plane, maxVerts int, out []mgl64.Vec3) []mgl64.Vec3 {
	side := func(v int) bool { return pl.Distance(p.verts[v]) > 0 }

	start := -1
	for i, e := range p.edges {
		if p.faces[e.face].area <= geom.Epsilon {
			continue
		}
		if side(e.origin) && !side(p.edges[e.next].origin) {
			start = i
			break
		}
	}
	if start < 0 {
		return out
	}
	base := len(out)
	e := start
	for guard := 0; guard < len(p.edges); guard++ {
		// Find the edge of this face that crosses from back to front.
		f := p.edges[e].next
		for f != e && (side(p.edges[f].origin) || !side(p.edges[p.edges[f].next].origin)) {
			f = p.edges[f].next
		}
		if f == e {
			break
		}
		a := p.verts[p.edges[f].origin]
		b := p.verts[p.edges[p.edges[f].next].origin]
		out = append(out, crossing(pl, a, b))
		e = p.edges[f].twin
		if e == start {
			break
		}
	}
	return rectify(out, base, pl.Normal, maxVerts)
}

func crossing(pl geom.Plane, a, b mgl64.Vec3) mgl64.Vec3 {
	da := pl.Distance(a)
	db := pl.Distance(b)
	den := da - db
	if math.Abs(den) < geom.Epsilon {
		return a
	}
	return a.Add(b.Sub(a).Mul(da / den))
}

// rectify cleans the polygon out[base:]: it orients it counter-clockwise around normal, drops
// coincident and collinear corners, then removes the corner spanning the smallest triangle
// until at most maxVerts remain.
func rectify(out []mgl64.Vec3, base int, normal mgl64.Vec3, maxVerts int) []mgl64.Vec3 {
	poly := out[base:]
	if polygonNormal(poly).Dot(normal) < 0 {
		for i, j := 0, len(poly)-1; i < j; i, j = i+1, j-1 {
			poly[i], poly[j] = poly[j], poly[i]
		}
	}

	n := 0
	for i := range poly {
		if n > 0 && poly[i].Sub(poly[n-1]).LenSqr() <= clipTolerance*clipTolerance {
			continue
		}
		poly[n] = poly[i]
		n++
	}
	for n > 1 && poly[n-1].Sub(poly[0]).LenSqr() <= clipTolerance*clipTolerance {
		n--
	}
	poly = poly[:n]

	for changed := true; changed && len(poly) > 2; {
		changed = false
		for i := range poly {
			prev := poly[(i+len(poly)-1)%len(poly)]
			next := poly[(i+1)%len(poly)]
			if cornerArea(prev, poly[i], next, normal) <= clipTolerance*prev.Sub(next).Len() {
				poly = append(poly[:i], poly[i+1:]...)
				changed = true
				break
			}
		}
	}

	if maxVerts < 3 {
		maxVerts = 3
	}
	for len(poly) > maxVerts {
		smallest, smallestArea := 0, math.Inf(1)
		for i := range poly {
			prev := poly[(i+len(poly)-1)%len(poly)]
			next := poly[(i+1)%len(poly)]
			if a := math.Abs(cornerArea(prev, poly[i], next, normal)); a < smallestArea {
				smallest, smallestArea = i, a
			}
		}
		poly = append(poly[:smallest], poly[smallest+1:]...)
	}
	return out[:base+len(poly)]
}

// cornerArea is the signed area of triangle (a, b, c) around normal, twice over.
func cornerArea(a, b, c, normal mgl64.Vec3) float64 {
	return b.Sub(a).Cross(c.Sub(b)).Dot(normal)
}

func polygonNormal(poly []mgl64.Vec3) mgl64.Vec3 {
	var n mgl64.Vec3
	for i, a := range poly {
		b := poly[(i+1)%len(poly)]
		n[0] += (a[1] - b[1]) * (a[2] + b[2])
		n[1] += (a[2] - b[2]) * (a[0] + b[0])
		n[2] += (a[0] - b[0]) * (a[1] + b[1])
	}
	return n
}
