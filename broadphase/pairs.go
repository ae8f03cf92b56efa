package broadphase

import (
	"slices"

	"github.com/0x5844/physics-3d/arena"
)

// SweepAxis returns the axis along which the active proxy centres spread the most.
func (bp *BroadPhase) SweepAxis() int {
	var sum, sq [3]float64
	n := 0.0
	for i := range bp.proxies {
		p := &bp.proxies[i]
		if !p.live || p.cell == bp.inactive {
			continue
		}
		c := p.box.Center()
		for axis := 0; axis < 3; axis++ {
			sum[axis] += c[axis]
			sq[axis] += c[axis] * c[axis]
		}
		n++
	}
	if n == 0 {
		return 0
	}
	best, bestVar := 0, -1.0
	for axis := 0; axis < 3; axis++ {
		mean := sum[axis] / n
		if v := sq[axis]/n - mean*mean; v > bestVar {
			best, bestVar = axis, v
		}
	}
	return best
}

// Pairs returns every overlapping pair whose bodies need a contact this step, each once,
// sorted by handles. Cells are split across the pool's workers by stride. The slice is owned
// by the broad phase until the next call.
func (bp *BroadPhase) Pairs(pool jobPool) []Pair {
	axis := bp.SweepAxis()
	cells := bp.cells()
	for _, c := range cells {
		c.axis = axis
	}
	bp.pairs = bp.pairs[:0]

	pool.RunPhase(len(cells), func(_, i int) {
		var local []Pair
		c := cells[i]
		local = bp.sweepCell(c, axis, local)
		for j := c.layer - 1; j >= 0; j-- {
			if a := bp.ancestor(c, j); a != nil {
				local = bp.sweepMerged(c, a, axis, local)
			}
		}
		if len(local) > 0 {
			bp.flush(local)
		}
	})

	slices.SortFunc(bp.pairs, func(x, y Pair) int {
		if x.A != y.A {
			return compareHandle(x.A, y.A)
		}
		return compareHandle(x.B, y.B)
	})
	return bp.pairs
}

func compareHandle(a, b arena.Handle) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// flush appends a worker's pairs to the shared buffer, doubling it when full.
func (bp *BroadPhase) flush(local []Pair) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if need := len(bp.pairs) + len(local); need > cap(bp.pairs) {
		grown := make([]Pair, len(bp.pairs), max(2*cap(bp.pairs), need))
		copy(grown, bp.pairs)
		bp.pairs = grown
		bp.growths++
	}
	bp.pairs = append(bp.pairs, local...)
}

// wanted filters out pairs that never need a contact.
func (bp *BroadPhase) wanted(a, b int32) bool {
	pa, pb := &bp.proxies[a], &bp.proxies[b]
	if pa.state.Has(Frozen) || pb.state.Has(Frozen) {
		return false
	}
	return pa.state.awake() || pb.state.awake()
}

func (bp *BroadPhase) test(a, b int32, axis int, out []Pair) []Pair {
	if !bp.proxies[a].box.OverlapsOn(bp.proxies[b].box, axis) || !bp.wanted(a, b) {
		return out
	}
	return append(out, makePair(bp.proxies[a].body, bp.proxies[b].body))
}

// sweepCell runs the forward sweep over one sorted list.
func (bp *BroadPhase) sweepCell(c *cell, axis int, out []Pair) []Pair {
	for a := c.head[axis]; a != none; a = bp.proxies[a].links[axis].next {
		end := bp.proxies[a].box.Max[axis]
		for b := bp.proxies[a].links[axis].next; b != none && bp.min(b, axis) <= end; b = bp.proxies[b].links[axis].next {
			out = bp.test(a, b, axis, out)
		}
	}
	return out
}

// sweepMerged pairs the proxies of c with those of its ancestor anc by walking both sorted
// lists in step.
func (bp *BroadPhase) sweepMerged(c, anc *cell, axis int, out []Pair) []Pair {
	next := func(id int32) int32 { return bp.proxies[id].links[axis].next }
	i, j := c.head[axis], anc.head[axis]
	for i != none && j != none {
		if bp.min(i, axis) <= bp.min(j, axis) {
			end := bp.proxies[i].box.Max[axis]
			for k := j; k != none && bp.min(k, axis) <= end; k = next(k) {
				out = bp.test(i, k, axis, out)
			}
			i = next(i)
		} else {
			end := bp.proxies[j].box.Max[axis]
			for k := i; k != none && bp.min(k, axis) <= end; k = next(k) {
				out = bp.test(k, j, axis, out)
			}
			j = next(j)
		}
	}
	return out
}
