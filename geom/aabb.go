package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type AABB struct {
	Min, Max mgl64.Vec3
}

func NewAABB(min, max mgl64.Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// EmptyAABB returns an inverted box that any Extend call replaces.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

func (b AABB) Overlaps(o AABB) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

// OverlapsOn tests the two axes other than skip.
func (b AABB) OverlapsOn(o AABB, skip int) bool {
	for axis := 0; axis < 3; axis++ {
		if axis == skip {
			continue
		}
		if b.Min[axis] > o.Max[axis] || b.Max[axis] < o.Min[axis] {
			return false
		}
	}
	return true
}

func (b AABB) Contains(p mgl64.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

func (b AABB) ContainsBox(o AABB) bool {
	return b.Contains(o.Min) && b.Contains(o.Max)
}

func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

func (b AABB) Expand(margin float64) AABB {
	m := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: b.Min.Sub(m), Max: b.Max.Add(m)}
}

func (b AABB) Extend(p mgl64.Vec3) AABB {
	return AABB{Min: MinVec(b.Min, p), Max: MaxVec(b.Max, p)}
}

func (b AABB) Union(o AABB) AABB {
	return AABB{Min: MinVec(b.Min, o.Min), Max: MaxVec(b.Max, o.Max)}
}

func (b AABB) Translate(d mgl64.Vec3) AABB {
	return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

func (b AABB) SurfaceArea() float64 {
	s := b.Size()
	return 2 * (s[0]*s[1] + s[1]*s[2] + s[2]*s[0])
}

// MaxDelta returns the largest coordinate difference between the corners of two boxes.
func (b AABB) MaxDelta(o AABB) float64 {
	d := 0.0
	for axis := 0; axis < 3; axis++ {
		d = math.Max(d, math.Abs(b.Min[axis]-o.Min[axis]))
		d = math.Max(d, math.Abs(b.Max[axis]-o.Max[axis]))
	}
	return d
}

// SegmentFractions clips the segment p0 + t*(p1-p0), t in [0,1] against the box using the slab
// test and returns the entry and exit fractions.
func (b AABB) SegmentFractions(p0, p1 mgl64.Vec3) (tmin, tmax float64, ok bool) {
	d := p1.Sub(p0)
	tmin, tmax = 0, 1
	for axis := 0; axis < 3; axis++ {
		if math.Abs(d[axis]) < Epsilon {
			if p0[axis] < b.Min[axis] || p0[axis] > b.Max[axis] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / d[axis]
		t0 := (b.Min[axis] - p0[axis]) * inv
		t1 := (b.Max[axis] - p0[axis]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}

// Transform returns the box enclosing b after the affine transform m.
func (b AABB) Transform(m mgl64.Mat4) AABB {
	center := b.Center()
	half := b.Size().Mul(0.5)
	rot := m.Mat3()
	var ext mgl64.Vec3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			ext[row] += math.Abs(rot.At(row, col)) * half[col]
		}
	}
	c := TransformPoint(m, center)
	return AABB{Min: c.Sub(ext), Max: c.Add(ext)}
}
