package broadphase

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/geom"
)

// CastFunc is called for every proxy a ray or cast may reach before the closest fraction
// found so far. It returns the new closest fraction.
type CastFunc func(h arena.Handle, closest float64) float64

// visitCells calls fn for every non-empty cell whose column overlaps the X-Z extent of box.
func (bp *BroadPhase) visitCells(box geom.AABB, fn func(c *cell) bool) {
	if c := bp.layers[0][cellKey{}]; c != nil && !fn(c) {
		return
	}
	for k := 1; k < len(bp.layers); k++ {
		layer := bp.layers[k]
		if len(layer) == 0 {
			continue
		}
		s := bp.size[k]
		x0, x1 := coord(box.Min[0], s), coord(box.Max[0], s)
		z0, z1 := coord(box.Min[2], s), coord(box.Max[2], s)
		if (x1-x0+1)*(z1-z0+1) > len(layer) {
			for key, c := range layer {
				if key.x >= x0 && key.x <= x1 && key.z >= z0 && key.z <= z1 && !fn(c) {
					return
				}
			}
			continue
		}
		for x := x0; x <= x1; x++ {
			for z := z0; z <= z1; z++ {
				if c := layer[cellKey{x, z}]; c != nil && !fn(c) {
					return
				}
			}
		}
	}
}

// QueryAABB calls fn for every active proxy overlapping box until fn returns false.
func (bp *BroadPhase) QueryAABB(box geom.AABB, fn func(h arena.Handle) bool) {
	bp.visitCells(box, func(c *cell) bool {
		bp.scratch = bp.resort(c, bp.scratch)
		ax := c.axis
		for at := c.head[ax]; at != none; at = bp.proxies[at].links[ax].next {
			p := &bp.proxies[at]
			if p.box.Min[ax] > box.Max[ax] {
				break
			}
			if p.box.Overlaps(box) && !fn(p.body) {
				return false
			}
		}
		return true
	})
}

// RayCast walks the cells the segment p0-p1 crosses, layer by layer, and returns the closest
// fraction fn reported, or 1.
func (bp *BroadPhase) RayCast(p0, p1 mgl64.Vec3, fn CastFunc) float64 {
	closest := 1.0
	d := p1.Sub(p0)
	if c := bp.layers[0][cellKey{}]; c != nil {
		closest = bp.rayCell(c, p0, p1, closest, fn)
	}
	for k := 1; k < len(bp.layers); k++ {
		layer := bp.layers[k]
		if len(layer) == 0 {
			continue
		}
		s := bp.size[k]
		ix, iz := coord(p0[0], s), coord(p0[2], s)
		ex, ez := coord(p0[0]+d[0]*closest, s), coord(p0[2]+d[2]*closest, s)
		if geom.Abs(ex-ix)+geom.Abs(ez-iz) >= 4*len(layer) {
			// long ray over a sparse layer: test the occupied columns directly
			for key, c := range layer {
				col := bp.column(k, key)
				if t, _, ok := col.SegmentFractions(p0, p1); ok && t <= closest {
					closest = bp.rayCell(c, p0, p1, closest, fn)
				}
			}
			continue
		}
		stepX, nextX, deltaX := ddaAxis(p0[0], d[0], s, ix)
		stepZ, nextZ, deltaZ := ddaAxis(p0[2], d[2], s, iz)
		for {
			if c := layer[cellKey{ix, iz}]; c != nil {
				closest = bp.rayCell(c, p0, p1, closest, fn)
			}
			if nextX > closest && nextZ > closest {
				break
			}
			if nextX < nextZ {
				ix += stepX
				nextX += deltaX
			} else {
				iz += stepZ
				nextZ += deltaZ
			}
		}
	}
	return closest
}

// ddaAxis returns the cell step, the fraction of the first boundary crossing and the fraction
// between crossings along one axis.
func ddaAxis(origin, d, size float64, i int) (int, float64, float64) {
	switch {
	case d > 0:
		return 1, (float64(i+1)*size - origin) / d, size / d
	case d < 0:
		return -1, (float64(i)*size - origin) / d, -size / d
	}
	return 0, math.Inf(1), math.Inf(1)
}

// column is the unbounded-in-Y box of a cell.
func (bp *BroadPhase) column(layer int, key cellKey) geom.AABB {
	s := bp.size[layer]
	inf := math.Inf(1)
	return geom.NewAABB(
		mgl64.Vec3{float64(key.x) * s, -inf, float64(key.z) * s},
		mgl64.Vec3{float64(key.x+1) * s, inf, float64(key.z+1) * s},
	)
}

func (bp *BroadPhase) rayCell(c *cell, p0, p1 mgl64.Vec3, closest float64, fn CastFunc) float64 {
	bp.scratch = bp.resort(c, bp.scratch)
	ax := c.axis
	for at := c.head[ax]; at != none; at = bp.proxies[at].links[ax].next {
		p := &bp.proxies[at]
		reach := math.Max(p0[ax], p0[ax]+(p1[ax]-p0[ax])*closest)
		if p.box.Min[ax] > reach {
			break
		}
		if t, _, ok := p.box.SegmentFractions(p0, p1); ok && t <= closest {
			closest = math.Min(closest, fn(p.body, closest))
		}
	}
	return closest
}

// ConvexCast finds the proxies a box moving by delta may sweep through. fn does the exact
// test; candidates whose box the moving box can only reach after the closest fraction are
// skipped.
func (bp *BroadPhase) ConvexCast(box geom.AABB, delta mgl64.Vec3, fn CastFunc) float64 {
	closest := 1.0
	swept := box.Union(box.Translate(delta))
	half := box.Size().Mul(0.5)
	c0 := box.Center()
	c1 := c0.Add(delta)
	bp.visitCells(swept, func(c *cell) bool {
		bp.scratch = bp.resort(c, bp.scratch)
		ax := c.axis
		for at := c.head[ax]; at != none; at = bp.proxies[at].links[ax].next {
			p := &bp.proxies[at]
			if p.box.Min[ax] > swept.Max[ax] {
				break
			}
			grown := geom.NewAABB(p.box.Min.Sub(half), p.box.Max.Add(half))
			if t, _, ok := grown.SegmentFractions(c0, c1); ok && t <= closest {
				closest = math.Min(closest, fn(p.body, closest))
			}
		}
		return true
	})
	return closest
}
