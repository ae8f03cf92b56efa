package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/0x5844/physics-3d/geom"
)

// supportCacheSize is the length of the visited-vertex ring used while hill climbing.
const supportCacheSize = 8

type halfEdge struct {
	origin int
	twin   int
	next   int
	face   int
}

type face struct {
	edge  int
	plane geom.Plane
	area  float64
}

// Polytope is a closed convex polyhedron stored as a winged-edge (half-edge) mesh.
type Polytope struct {
	verts    []mgl64.Vec3
	edges    []halfEdge
	faces    []face
	vertEdge []int
	hints    [8]int
	bounds   geom.AABB
}

// newPolytope links face loops into a half-edge mesh. Loops are counter-clockwise seen from
// outside. Every edge must be shared by exactly two faces.
func newPolytope(verts []mgl64.Vec3, loops [][]int) (*Polytope, error) {
	if len(verts) < 4 || len(loops) < 4 {
		return nil, errors.Errorf("polytope needs at least 4 vertices and 4 faces, got %d/%d", len(verts), len(loops))
	}
	p := &Polytope{
		verts:    verts,
		vertEdge: make([]int, len(verts)),
		bounds:   geom.EmptyAABB(),
	}
	for i := range p.vertEdge {
		p.vertEdge[i] = -1
	}
	type key struct{ from, to int }
	byKey := make(map[key]int)
	for fi, loop := range loops {
		if len(loop) < 3 {
			return nil, errors.Errorf("face %d has %d vertices", fi, len(loop))
		}
		first := len(p.edges)
		for i, v := range loop {
			to := loop[(i+1)%len(loop)]
			k := key{v, to}
			if _, dup := byKey[k]; dup {
				return nil, errors.Errorf("edge %d->%d used twice", v, to)
			}
			idx := len(p.edges)
			byKey[k] = idx
			next := idx + 1
			if i == len(loop)-1 {
				next = first
			}
			p.edges = append(p.edges, halfEdge{origin: v, twin: -1, next: next, face: fi})
			if p.vertEdge[v] < 0 {
				p.vertEdge[v] = idx
			}
		}
		pl, area, ok := loopPlane(verts, loop)
		if !ok {
			return nil, errors.Errorf("face %d is degenerate", fi)
		}
		p.faces = append(p.faces, face{edge: first, plane: pl, area: area})
	}
	for k, idx := range byKey {
		twin, ok := byKey[key{k.to, k.from}]
		if !ok {
			return nil, errors.Errorf("edge %d->%d has no twin, mesh is open", k.from, k.to)
		}
		p.edges[idx].twin = twin
	}
	for i, e := range p.vertEdge {
		if e < 0 {
			return nil, errors.Errorf("vertex %d belongs to no face", i)
		}
		p.bounds = p.bounds.Extend(verts[i])
	}
	for octant := 0; octant < 8; octant++ {
		dir := octantDir(octant)
		best, bestDot := 0, math.Inf(-1)
		for i, v := range verts {
			if d := v.Dot(dir); d > bestDot {
				best, bestDot = i, d
			}
		}
		p.hints[octant] = best
	}
	return p, nil
}

// loopPlane computes the plane and area of a face loop with Newell's method.
func loopPlane(verts []mgl64.Vec3, loop []int) (geom.Plane, float64, bool) {
	var n, c mgl64.Vec3
	for i, vi := range loop {
		a := verts[vi]
		b := verts[loop[(i+1)%len(loop)]]
		n[0] += (a[1] - b[1]) * (a[2] + b[2])
		n[1] += (a[2] - b[2]) * (a[0] + b[0])
		n[2] += (a[0] - b[0]) * (a[1] + b[1])
		c = c.Add(a)
	}
	area := 0.5 * n.Len()
	unit, ok := geom.Normalize(n)
	if !ok {
		return geom.Plane{}, 0, false
	}
	c = c.Mul(1 / float64(len(loop)))
	return geom.Plane{Normal: unit, D: unit.Dot(c)}, area, true
}

func octantDir(octant int) mgl64.Vec3 {
	d := mgl64.Vec3{-1, -1, -1}
	for axis := 0; axis < 3; axis++ {
		if octant&(1<<axis) != 0 {
			d[axis] = 1
		}
	}
	return d
}

func octantOf(dir mgl64.Vec3) int {
	o := 0
	for axis := 0; axis < 3; axis++ {
		if dir[axis] >= 0 {
			o |= 1 << axis
		}
	}
	return o
}

func (p *Polytope) Kind() Kind { return KindPolytope }

func (p *Polytope) Radius() float64 { return 0 }

func (p *Polytope) Core(dir mgl64.Vec3) mgl64.Vec3 { return p.Support(dir) }

func (p *Polytope) VertexCount() int { return len(p.verts) }

func (p *Polytope) FaceCount() int { return len(p.faces) }

// EdgeCount returns the number of undirected edges.
func (p *Polytope) EdgeCount() int { return len(p.edges) / 2 }

func (p *Polytope) Vertex(i int) mgl64.Vec3 { return p.verts[i] }

func (p *Polytope) FacePlane(i int) geom.Plane { return p.faces[i].plane }

// FaceVertices appends the vertices of face i in loop order.
func (p *Polytope) FaceVertices(i int, out []mgl64.Vec3) []mgl64.Vec3 {
	start := p.faces[i].edge
	e := start
	for {
		out = append(out, p.verts[p.edges[e].origin])
		e = p.edges[e].next
		if e == start {
			return out
		}
	}
}

func (p *Polytope) Bounds() geom.AABB { return p.bounds }

// Support starts at the hint vertex of the direction's octant and climbs to the neighbour with
// the largest projection until no neighbour improves.
func (p *Polytope) Support(dir mgl64.Vec3) mgl64.Vec3 {
	geom.Assert(geom.IsUnit(dir), "support direction %v is not unit length", dir)
	return p.verts[p.supportIndex(dir)]
}

func (p *Polytope) supportIndex(dir mgl64.Vec3) int {
	var ring [supportCacheSize]int
	for i := range ring {
		ring[i] = -1
	}
	head := 0
	v := p.hints[octantOf(dir)]
	best := p.verts[v].Dot(dir)
	for iter := 0; iter < len(p.verts); iter++ {
		ring[head] = v
		head = (head + 1) % supportCacheSize
		next := -1
		start := p.vertEdge[v]
		e := start
		for guard := 0; guard < len(p.edges); guard++ {
			to := p.edges[p.edges[e].next].origin
			if d := p.verts[to].Dot(dir); d > best && !inRing(ring, to) {
				best, next = d, to
			}
			e = p.edges[p.edges[e].twin].next
			if e == start {
				break
			}
		}
		if next < 0 {
			break
		}
		v = next
	}
	return v
}

func inRing(ring [supportCacheSize]int, v int) bool {
	for _, r := range ring {
		if r == v {
			return true
		}
	}
	return false
}

func (p *Polytope) AABB(m mgl64.Mat4) geom.AABB {
	return supportAABB(p, m)
}
