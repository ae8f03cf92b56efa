package collide

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/shape"
)

// Point is one contact point. Position lies midway between the two surfaces and Depth is the
// overlap along the manifold normal.
type Point struct {
	Position mgl64.Vec3
	Depth    float64
}

// Manifold holds the contact points of one shape pair. Normal points from A to B.
type Manifold struct {
	Normal mgl64.Vec3
	Points []Point
}

func (m *Manifold) Reset() {
	m.Normal = mgl64.Vec3{}
	m.Points = m.Points[:0]
}

// MaxDepth returns the deepest point penetration.
func (m *Manifold) MaxDepth() float64 {
	d := 0.0
	for _, p := range m.Points {
		d = math.Max(d, p.Depth)
	}
	return d
}

type Options struct {
	MaxPoints          int
	MaxPolygonVertices int
	// FeatureThickness is the slab below each shape's extreme point that counts as its contact
	// feature, in addition to the penetration depth.
	FeatureThickness float64
}

func DefaultOptions() Options {
	return Options{MaxPoints: 4, MaxPolygonVertices: 8, FeatureThickness: 0.02}
}

// parallelCosine is the largest |axis . normal| for which a capsule lies flat on a surface.
const parallelCosine = 0.1

// Collide fills m with the contact manifold of a and b and reports whether they touch.
func (p *Pool) Collide(a, b Object, opt Options, m *Manifold) bool {
	m.Reset()
	if opt.MaxPoints < 1 {
		opt.MaxPoints = 1
	}
	ka, kb := a.Shape.Kind(), b.Shape.Kind()
	if ka == shape.KindSphere && kb == shape.KindSphere {
		return collideSpheres(a, b, m)
	}

	ra, rb := a.Shape.Radius(), b.Shape.Radius()
	dir := b.Center().Sub(a.Center())
	var s geom.Simplex
	var normal, pa, pb mgl64.Vec3
	var depth float64
	sep := gjk(a.CoreSupport, b.CoreSupport, dir, &s)
	shallow := !sep.Overlap
	if shallow {
		depth = ra + rb - sep.Distance
		if depth < 0 {
			return false
		}
		normal = sep.Normal
		pa = sep.PointA.Add(normal.Mul(ra))
		pb = sep.PointB.Sub(normal.Mul(rb))
	} else {
		if ra > 0 || rb > 0 {
			gjk(a.Support, b.Support, dir, &s)
		}
		scratch := p.getEPA()
		pen, ok := epa(a.Support, b.Support, &s, scratch)
		p.putEPA(scratch)
		if !ok {
			n, nok := geom.Normalize(dir)
			if !nok {
				n = geom.UnitY
			}
			mid := a.Center().Add(b.Center()).Mul(0.5)
			pen = Penetration{Normal: n, PointA: mid, PointB: mid}
		}
		normal, depth, pa, pb = pen.Normal, pen.Depth, pen.PointA, pen.PointB
	}
	m.Normal = normal
	mid := pa.Add(pb).Mul(0.5)

	switch {
	case ka == shape.KindSphere || kb == shape.KindSphere:
	case shallow && ka == shape.KindCapsule:
		m.Points = capsuleContacts(a, b, normal, m.Points)
	case shallow && kb == shape.KindCapsule:
		m.Points = capsuleContacts(b, a, normal.Mul(-1), m.Points)
	case ka == shape.KindPolytope && kb == shape.KindPolytope:
		m.Points = p.featureContacts(a, b, normal, depth, mid, opt, m.Points)
	}
	if len(m.Points) == 0 {
		m.Points = append(m.Points, Point{Position: mid, Depth: depth})
	}
	m.Points = reducePoints(m.Points, normal, opt.MaxPoints)
	return true
}

func collideSpheres(a, b Object, m *Manifold) bool {
	ra, rb := a.Shape.Radius(), b.Shape.Radius()
	ca, cb := a.Center(), b.Center()
	delta := cb.Sub(ca)
	total := ra + rb
	d2 := delta.LenSqr()
	if d2 >= total*total {
		return false
	}
	dist := math.Sqrt(d2)
	normal := geom.UnitX
	if dist > geom.Epsilon {
		normal = delta.Mul(1 / dist)
	}
	depth := total - dist
	m.Normal = normal
	m.Points = append(m.Points, Point{
		Position: ca.Add(normal.Mul(ra - depth*0.5)),
		Depth:    depth,
	})
	return true
}

// capsuleContacts tests both end spheres of a capsule lying flat against other. normal points
// from the capsule to other.
func capsuleContacts(capsule, other Object, normal mgl64.Vec3, out []Point) []Point {
	c := capsule.Shape.(*shape.Capsule)
	lo, hi := c.Segment()
	axis := geom.TransformVector(capsule.Pose, hi.Sub(lo))
	if l := axis.Len(); l < geom.Epsilon || math.Abs(axis.Dot(normal))/l > parallelCosine {
		return out
	}
	r := c.Radius() + other.Shape.Radius()
	var s geom.Simplex
	for _, end := range [...]mgl64.Vec3{lo, hi} {
		e := geom.TransformPoint(capsule.Pose, end)
		point := func(mgl64.Vec3) mgl64.Vec3 { return e }
		sep := gjk(point, other.CoreSupport, other.Center().Sub(e), &s)
		if sep.Overlap || sep.Normal.Dot(normal) < 0.7 {
			continue
		}
		depth := r - sep.Distance
		if depth < 0 {
			continue
		}
		surfA := sep.PointA.Add(sep.Normal.Mul(c.Radius()))
		surfB := sep.PointB.Sub(sep.Normal.Mul(other.Shape.Radius()))
		out = append(out, Point{Position: surfA.Add(surfB).Mul(0.5), Depth: depth})
	}
	return out
}

// featureContacts clips the contact feature of B against the contact feature of A. Each feature
// is the cross-section of the shape with a plane perpendicular to the normal, just below the
// shape's extreme point towards the other body.
func (p *Pool) featureContacts(a, b Object, normal mgl64.Vec3, depth float64, mid mgl64.Vec3, opt Options, out []Point) []Point {
	sc := p.getClip()
	defer p.putClip(sc)

	thick := depth + opt.FeatureThickness
	ha := normal.Dot(a.Support(normal))
	sc.ref = clipWorld(a, geom.Plane{Normal: normal, D: ha - thick}, opt.MaxPolygonVertices, sc.ref)
	nb := normal.Mul(-1)
	hb := nb.Dot(b.Support(nb))
	sc.inc = clipWorld(b, geom.Plane{Normal: nb, D: hb - thick}, opt.MaxPolygonVertices, sc.inc)

	ref, inc, refNormal := sc.ref, sc.inc, normal
	if len(inc) > len(ref) {
		ref, inc, refNormal = inc, ref, nb
	}
	if len(ref) < 3 || len(inc) == 0 {
		return out
	}

	clipped := inc
	switch len(inc) {
	case 1, 2:
		clipped = clipSegment(inc, ref, refNormal, sc.tmp[:0])
	default:
		work := append(sc.work[:0], inc...)
		for i := range ref {
			if len(work) == 0 {
				break
			}
			v1 := ref[i]
			v2 := ref[(i+1)%len(ref)]
			inward, ok := geom.Normalize(refNormal.Cross(v2.Sub(v1)))
			if !ok {
				continue
			}
			sc.tmp = clipPolygon(work, v1, inward, sc.tmp[:0])
			work, sc.tmp = sc.tmp, work
		}
		clipped = work
		sc.work = work
	}
	for _, q := range clipped {
		pos := q.Sub(normal.Mul(normal.Dot(q.Sub(mid))))
		out = append(out, Point{Position: pos, Depth: depth})
	}
	return out
}

// clipWorld returns the world space cross-section of o with the world plane pl.
func clipWorld(o Object, pl geom.Plane, maxVerts int, out []mgl64.Vec3) []mgl64.Vec3 {
	local := geom.Plane{
		Normal: geom.UntransformVector(o.Pose, pl.Normal),
		D:      pl.D - pl.Normal.Dot(geom.Translation(o.Pose)),
	}
	base := len(out)
	out = o.Shape.ClipPlane(local, maxVerts, out)
	for i := base; i < len(out); i++ {
		out[i] = geom.TransformPoint(o.Pose, out[i])
	}
	return out
}

const clipSlack = 1e-6

// clipPolygon keeps the part of poly on the inner side of the plane through point with
// normal inward.
func clipPolygon(poly []mgl64.Vec3, point, inward mgl64.Vec3, out []mgl64.Vec3) []mgl64.Vec3 {
	prev := poly[len(poly)-1]
	prevDist := prev.Sub(point).Dot(inward)
	for _, cur := range poly {
		curDist := cur.Sub(point).Dot(inward)
		if curDist >= -clipSlack {
			if prevDist < -clipSlack {
				out = append(out, lerpAt(prev, cur, prevDist, curDist))
			}
			out = append(out, cur)
		} else if prevDist >= -clipSlack {
			out = append(out, lerpAt(prev, cur, prevDist, curDist))
		}
		prev, prevDist = cur, curDist
	}
	return out
}

// clipSegment clips a point or segment against the side planes of a polygon.
func clipSegment(seg, poly []mgl64.Vec3, normal mgl64.Vec3, out []mgl64.Vec3) []mgl64.Vec3 {
	a := seg[0]
	b := seg[len(seg)-1]
	t0, t1 := 0.0, 1.0
	for i := range poly {
		v1 := poly[i]
		v2 := poly[(i+1)%len(poly)]
		inward, ok := geom.Normalize(normal.Cross(v2.Sub(v1)))
		if !ok {
			continue
		}
		da := a.Sub(v1).Dot(inward)
		db := b.Sub(v1).Dot(inward)
		if da < -clipSlack && db < -clipSlack {
			return out
		}
		if da < -clipSlack {
			t0 = math.Max(t0, da/(da-db))
		} else if db < -clipSlack {
			t1 = math.Min(t1, da/(da-db))
		}
	}
	if t0 > t1 {
		return out
	}
	d := b.Sub(a)
	out = append(out, a.Add(d.Mul(t0)))
	if len(seg) > 1 && t1-t0 > geom.Epsilon {
		out = append(out, a.Add(d.Mul(t1)))
	}
	return out
}

func lerpAt(a, b mgl64.Vec3, da, db float64) mgl64.Vec3 {
	den := da - db
	if math.Abs(den) < geom.Epsilon {
		return a
	}
	return a.Add(b.Sub(a).Mul(da / den))
}

// reducePoints keeps at most max points: the deepest, the one farthest from it, the one that
// spans the largest triangle with those two, then repeatedly the point farthest from the kept set.
func reducePoints(pts []Point, normal mgl64.Vec3, max int) []Point {
	if len(pts) <= max {
		return pts
	}
	keep := make([]int, 0, max)
	taken := make([]bool, len(pts))
	pick := func(i int) {
		keep = append(keep, i)
		taken[i] = true
	}

	deepest := 0
	for i, p := range pts {
		if p.Depth > pts[deepest].Depth {
			deepest = i
		}
	}
	pick(deepest)

	for len(keep) < max {
		best, bestScore := -1, -1.0
		for i, p := range pts {
			if taken[i] {
				continue
			}
			var score float64
			switch len(keep) {
			case 1:
				score = p.Position.Sub(pts[keep[0]].Position).LenSqr()
			case 2:
				p0, p1 := pts[keep[0]].Position, pts[keep[1]].Position
				score = math.Abs(p1.Sub(p0).Cross(p.Position.Sub(p0)).Dot(normal))
			default:
				score = math.Inf(1)
				for _, k := range keep {
					score = math.Min(score, p.Position.Sub(pts[k].Position).LenSqr())
				}
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		pick(best)
	}
	reduced := make([]Point, len(keep))
	for i, k := range keep {
		reduced[i] = pts[k]
	}
	return append(pts[:0], reduced...)
}
