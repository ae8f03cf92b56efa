package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/collide"
	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/shape"
)

type (
	// PreFilter decides from the body alone whether a query tests it at all.
	PreFilter func(b *body.Body) bool
	// RayFilter sees every exact hit closer than the closest so far and returns the new closest
	// fraction: hit.Fraction to accept it, anything at or above the old value to ignore it.
	RayFilter func(b *body.Body, hit shape.Hit) float64
	// CastFilter is the convex cast counterpart of RayFilter.
	CastFilter func(b *body.Body, hit collide.CastHit) float64
)

// QueryHit is the closest result of a ray or convex cast.
type QueryHit struct {
	Body     arena.Handle
	Fraction float64
	Normal   mgl64.Vec3
	Point    mgl64.Vec3
}

// AcceptRay keeps every hit; the query then returns the closest one.
func AcceptRay(_ *body.Body, hit shape.Hit) float64 { return hit.Fraction }

// RayCast finds the first body the segment p0-p1 enters. A nil filter accepts every hit.
func (w *World) RayCast(p0, p1 mgl64.Vec3, filter RayFilter, pre PreFilter) (QueryHit, bool) {
	if filter == nil {
		filter = AcceptRay
	}
	var best QueryHit
	found := false
	w.broad.RayCast(p0, p1, func(h arena.Handle, closest float64) float64 {
		b := w.lookup(h)
		if b == nil || b.Shape() == nil || (pre != nil && !pre(b)) {
			return closest
		}
		hit, ok := collide.RayCast(collide.Object{Shape: b.Shape(), Pose: b.Matrix()}, p0, p1)
		if !ok || hit.Fraction >= closest {
			return closest
		}
		f := filter(b, hit)
		if f >= closest {
			return closest
		}
		best = QueryHit{Body: h, Fraction: f, Normal: hit.Normal, Point: hit.Point}
		found = true
		return f
	})
	return best, found
}

// ConvexCast sweeps shape s from pose m to the position target and returns the first body it
// touches. Bodies already overlapping s at the start are reported with fraction 0.
func (w *World) ConvexCast(s shape.Convex, m mgl64.Mat4, target mgl64.Vec3, filter CastFilter, pre PreFilter) (QueryHit, bool) {
	moving := collide.Object{Shape: s, Pose: m}
	delta := target.Sub(geom.Translation(m))
	var best QueryHit
	found := false
	w.broad.ConvexCast(s.AABB(m), delta, func(h arena.Handle, closest float64) float64 {
		b := w.lookup(h)
		if b == nil || b.Shape() == nil || (pre != nil && !pre(b)) {
			return closest
		}
		hit, ok := collide.ConvexCast(moving, target, collide.Object{Shape: b.Shape(), Pose: b.Matrix()})
		if !ok || hit.Fraction >= closest {
			return closest
		}
		f := hit.Fraction
		if filter != nil {
			f = filter(b, hit)
		}
		if f >= closest {
			return closest
		}
		best = QueryHit{Body: h, Fraction: f, Normal: hit.Normal, Point: hit.Point}
		found = true
		return f
	})
	return best, found
}

// QueryAABB calls fn for every simulated body whose padded box overlaps box until fn returns
// false. Bodies that left the world are not reported.
func (w *World) QueryAABB(box geom.AABB, fn func(b *body.Body) bool) {
	w.broad.QueryAABB(box, func(h arena.Handle) bool {
		b := w.lookup(h)
		if b == nil {
			return true
		}
		return fn(b)
	})
}
