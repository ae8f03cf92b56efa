package shape

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/0x5844/physics-3d/geom"
)

// MaxHullPoints caps the point cloud accepted by NewConvexHull. Plane enumeration is quartic in
// the point count.
const MaxHullPoints = 64

// NewBox returns a box centred on the origin with the given half extents.
func NewBox(half mgl64.Vec3) (*Polytope, error) {
	if half[0] <= 0 || half[1] <= 0 || half[2] <= 0 {
		return nil, errors.Errorf("box half extents must be positive, got %v", half)
	}
	x, y, z := half[0], half[1], half[2]
	verts := []mgl64.Vec3{
		{-x, -y, -z}, {x, -y, -z}, {x, y, -z}, {-x, y, -z},
		{-x, -y, z}, {x, -y, z}, {x, y, z}, {-x, y, z},
	}
	loops := [][]int{
		{0, 3, 2, 1},
		{4, 5, 6, 7},
		{0, 1, 5, 4},
		{3, 7, 6, 2},
		{0, 4, 7, 3},
		{1, 2, 6, 5},
	}
	return newPolytope(verts, loops)
}

// NewConvexHull builds the convex hull of a small point cloud. Every supporting plane through
// three points becomes a face; coplanar points merge into one face loop and points that are not
// corners of the hull are dropped.
func NewConvexHull(points []mgl64.Vec3) (*Polytope, error) {
	if len(points) > MaxHullPoints {
		return nil, errors.Errorf("hull of %d points exceeds the limit of %d", len(points), MaxHullPoints)
	}
	box := geom.EmptyAABB()
	for _, p := range points {
		if !geom.IsFinite(p) {
			return nil, errors.Errorf("hull point %v is not finite", p)
		}
		box = box.Extend(p)
	}
	tol := 1e-7 * math.Max(1, box.Size().Len())

	pts := make([]mgl64.Vec3, 0, len(points))
	for _, p := range points {
		dup := false
		for _, q := range pts {
			if p.Sub(q).LenSqr() <= tol*tol {
				dup = true
				break
			}
		}
		if !dup {
			pts = append(pts, p)
		}
	}
	if len(pts) < 4 {
		return nil, errors.Errorf("hull needs 4 distinct points, got %d", len(pts))
	}

	var planes []geom.Plane
	addPlane := func(pl geom.Plane) {
		for _, q := range planes {
			if q.Normal.Dot(pl.Normal) > 1-1e-9 && math.Abs(q.D-pl.D) <= tol {
				return
			}
		}
		planes = append(planes, pl)
	}
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				pl, ok := geom.PlaneFromPoints(pts[i], pts[j], pts[k])
				if !ok {
					continue
				}
				above, below := 0, 0
				for _, p := range pts {
					switch d := pl.Distance(p); {
					case d > tol:
						above++
					case d < -tol:
						below++
					}
				}
				switch {
				case above == 0 && below > 0:
					addPlane(pl)
				case below == 0 && above > 0:
					addPlane(pl.Flip())
				}
			}
		}
	}
	if len(planes) < 4 {
		return nil, errors.New("hull points are coplanar")
	}

	remap := make([]int, len(pts))
	for i := range remap {
		remap[i] = -1
	}
	var verts []mgl64.Vec3
	var loops [][]int
	for _, pl := range planes {
		var on []int
		for i, p := range pts {
			if math.Abs(pl.Distance(p)) <= tol {
				on = append(on, i)
			}
		}
		ring := faceRing(pts, on, pl.Normal)
		if len(ring) < 3 {
			continue
		}
		loop := make([]int, len(ring))
		for n, i := range ring {
			if remap[i] < 0 {
				remap[i] = len(verts)
				verts = append(verts, pts[i])
			}
			loop[n] = remap[i]
		}
		loops = append(loops, loop)
	}
	return newPolytope(verts, loops)
}

// faceRing orders the points of one face counter-clockwise around normal, keeping only the
// strict corners of their planar hull.
func faceRing(pts []mgl64.Vec3, idx []int, normal mgl64.Vec3) []int {
	u, v := geom.TangentBasis(normal)
	type p2 struct {
		x, y float64
		i    int
	}
	flat := make([]p2, len(idx))
	for n, i := range idx {
		flat[n] = p2{pts[i].Dot(u), pts[i].Dot(v), i}
	}
	sort.Slice(flat, func(a, b int) bool {
		if flat[a].x != flat[b].x {
			return flat[a].x < flat[b].x
		}
		return flat[a].y < flat[b].y
	})
	cross := func(o, a, b p2) float64 {
		return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
	}
	const eps = 1e-12
	hull := make([]p2, 0, 2*len(flat))
	for _, p := range flat {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= eps {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(flat) - 2; i >= 0; i-- {
		p := flat[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= eps {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	hull = hull[:len(hull)-1]
	out := make([]int, len(hull))
	for n, p := range hull {
		out[n] = p.i
	}
	return out
}
