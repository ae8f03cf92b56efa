// Package broadphase finds the body pairs whose bounding boxes overlap. Proxies live in a
// layered grid over the X-Z plane; every cell keeps its proxies in three linked lists sorted
// on the box minimum of each axis.
package broadphase

import (
	"math"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/config"
	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/jobs"
)

// State carries the body flags pair generation filters on.
type State uint8

const (
	Static State = 1 << iota
	Sleeping
	Frozen
)

func (s State) Has(f State) bool { return s&f != 0 }

// awake reports whether the proxy's body is simulated this step.
func (s State) awake() bool { return s&(Static|Sleeping|Frozen) == 0 }

const none int32 = -1

type node struct{ prev, next int32 }

type cellKey struct{ x, z int }

type cell struct {
	layer int
	key   cellKey
	head  [3]int32
	count int
	dirty bool
	// axis is the list the last pair pass swept; queries walk the same one.
	axis int
}

func newCell(layer int, key cellKey) *cell {
	return &cell{layer: layer, key: key, head: [3]int32{none, none, none}}
}

type proxy struct {
	body  arena.Handle
	box   geom.AABB
	state State
	cell  *cell
	links [3]node
	live  bool
}

// Pair is an overlapping pair with the lower handle first.
type Pair struct {
	A, B arena.Handle
}

func makePair(a, b arena.Handle) Pair {
	if b.Less(a) {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

type BroadPhase struct {
	cfg    config.BroadPhase
	world  geom.AABB
	layers []map[cellKey]*cell
	size   []float64

	proxies  []proxy
	free     []int32
	inactive *cell
	scratch  []int32

	mu      sync.Mutex
	pairs   []Pair
	growths int
}

func New(cfg config.BroadPhase, pairCapacity int) *BroadPhase {
	bp := &BroadPhase{
		cfg:      cfg,
		world:    geom.NewAABB(cfg.WorldMin, cfg.WorldMax),
		layers:   make([]map[cellKey]*cell, cfg.Layers),
		size:     make([]float64, cfg.Layers),
		inactive: newCell(-1, cellKey{}),
		pairs:    make([]Pair, 0, max(pairCapacity, 16)),
	}
	for k := range bp.layers {
		bp.layers[k] = make(map[cellKey]*cell)
		if k > 0 {
			bp.size[k] = cfg.CellSize * math.Exp2(float64(cfg.Layers-1-k))
		}
	}
	return bp
}

// Add inserts a proxy in the root cell, migrates it to its own cell and returns its id.
func (bp *BroadPhase) Add(h arena.Handle, box geom.AABB, s State) int {
	var id int32
	if n := len(bp.free); n > 0 {
		id = bp.free[n-1]
		bp.free = bp.free[:n-1]
	} else {
		id = int32(len(bp.proxies))
		bp.proxies = append(bp.proxies, proxy{})
	}
	bp.proxies[id] = proxy{body: h, box: box, state: s, live: true}
	bp.link(id, bp.cellAt(0, cellKey{}))
	bp.Update(int(id), box, s)
	return int(id)
}

// Remove drops the proxy; the id may be reused by a later Add.
func (bp *BroadPhase) Remove(id int) {
	p := &bp.proxies[id]
	if !p.live {
		return
	}
	bp.unlink(int32(id))
	*p = proxy{}
	bp.free = append(bp.free, int32(id))
}

// Update moves the proxy to the cell its new box belongs to and reports whether the box left
// the world bounds, in which case the proxy now sits on the inactive list.
func (bp *BroadPhase) Update(id int, box geom.AABB, s State) (left bool) {
	p := &bp.proxies[id]
	old := p.box
	p.box, p.state = box, s

	if !bp.world.Overlaps(box) {
		if p.cell != bp.inactive {
			bp.unlink(int32(id))
			bp.link(int32(id), bp.inactive)
			return true
		}
		bp.inactive.dirty = true
		return false
	}

	layer, key := bp.place(box)
	if p.cell != nil && p.cell.layer == layer && p.cell.key == key {
		if box.MaxDelta(old) < bp.cfg.ResortEpsilon {
			p.cell.dirty = true
		} else {
			for axis := 0; axis < 3; axis++ {
				bp.settle(int32(id), axis)
			}
		}
		return false
	}
	bp.unlink(int32(id))
	bp.link(int32(id), bp.cellAt(layer, key))
	return false
}

// SetState changes the filter flags without touching the box.
func (bp *BroadPhase) SetState(id int, s State) { bp.proxies[id].state = s }

func (bp *BroadPhase) Box(id int) geom.AABB { return bp.proxies[id].box }

func (bp *BroadPhase) Body(id int) arena.Handle { return bp.proxies[id].body }

// Inactive reports whether the proxy is parked outside the world.
func (bp *BroadPhase) Inactive(id int) bool { return bp.proxies[id].cell == bp.inactive }

func (bp *BroadPhase) InactiveCount() int { return bp.inactive.count }

// CellCount returns the number of non-empty cells.
func (bp *BroadPhase) CellCount() int {
	n := 0
	for _, l := range bp.layers {
		n += len(l)
	}
	return n
}

// Growths counts the pair buffer doublings.
func (bp *BroadPhase) Growths() int { return bp.growths }

// place returns the finest cell containing the box's X-Z extent, or the root.
func (bp *BroadPhase) place(box geom.AABB) (int, cellKey) {
	for k := len(bp.layers) - 1; k >= 1; k-- {
		s := bp.size[k]
		x0, x1 := coord(box.Min[0], s), coord(box.Max[0], s)
		z0, z1 := coord(box.Min[2], s), coord(box.Max[2], s)
		if x0 == x1 && z0 == z1 {
			return k, cellKey{x0, z0}
		}
	}
	return 0, cellKey{}
}

func coord(v, size float64) int { return int(math.Floor(v / size)) }

func (bp *BroadPhase) cellAt(layer int, key cellKey) *cell {
	c, ok := bp.layers[layer][key]
	if !ok {
		c = newCell(layer, key)
		bp.layers[layer][key] = c
	}
	return c
}

// ancestor returns the layer-j cell containing c, or nil when it is empty.
func (bp *BroadPhase) ancestor(c *cell, j int) *cell {
	if j == 0 {
		return bp.layers[0][cellKey{}]
	}
	shift := uint(c.layer - j)
	return bp.layers[j][cellKey{c.key.x >> shift, c.key.z >> shift}]
}

func (bp *BroadPhase) min(id int32, axis int) float64 { return bp.proxies[id].box.Min[axis] }

// link inserts id into the three lists of c at its sorted position.
func (bp *BroadPhase) link(id int32, c *cell) {
	p := &bp.proxies[id]
	p.cell = c
	c.count++
	for axis := 0; axis < 3; axis++ {
		v := p.box.Min[axis]
		prev, at := none, c.head[axis]
		for at != none && bp.min(at, axis) <= v {
			prev, at = at, bp.proxies[at].links[axis].next
		}
		bp.insertAfter(c, id, prev, axis)
	}
}

func (bp *BroadPhase) insertAfter(c *cell, id, prev int32, axis int) {
	n := &bp.proxies[id].links[axis]
	n.prev = prev
	if prev == none {
		n.next = c.head[axis]
		c.head[axis] = id
	} else {
		n.next = bp.proxies[prev].links[axis].next
		bp.proxies[prev].links[axis].next = id
	}
	if n.next != none {
		bp.proxies[n.next].links[axis].prev = id
	}
}

func (bp *BroadPhase) detach(c *cell, id int32, axis int) {
	n := bp.proxies[id].links[axis]
	if n.prev == none {
		c.head[axis] = n.next
	} else {
		bp.proxies[n.prev].links[axis].next = n.next
	}
	if n.next != none {
		bp.proxies[n.next].links[axis].prev = n.prev
	}
	bp.proxies[id].links[axis] = node{prev: none, next: none}
}

// unlink removes id from its cell and prunes the cell once it is empty.
func (bp *BroadPhase) unlink(id int32) {
	p := &bp.proxies[id]
	c := p.cell
	if c == nil {
		return
	}
	for axis := 0; axis < 3; axis++ {
		bp.detach(c, id, axis)
	}
	c.count--
	p.cell = nil
	if c.count == 0 && c != bp.inactive {
		delete(bp.layers[c.layer], c.key)
	}
}

// settle walks id along one list until the order around it holds again.
func (bp *BroadPhase) settle(id int32, axis int) {
	c := bp.proxies[id].cell
	v := bp.min(id, axis)
	n := bp.proxies[id].links[axis]
	switch {
	case n.prev != none && bp.min(n.prev, axis) > v:
		at := n.prev
		for at != none && bp.min(at, axis) > v {
			at = bp.proxies[at].links[axis].prev
		}
		bp.detach(c, id, axis)
		bp.insertAfter(c, id, at, axis)
	case n.next != none && bp.min(n.next, axis) < v:
		at := n.next
		for {
			next := bp.proxies[at].links[axis].next
			if next == none || bp.min(next, axis) >= v {
				break
			}
			at = next
		}
		bp.detach(c, id, axis)
		bp.insertAfter(c, id, at, axis)
	}
}

// resort rebuilds the lists of a dirty cell.
func (bp *BroadPhase) resort(c *cell, scratch []int32) []int32 {
	if !c.dirty {
		return scratch
	}
	for axis := 0; axis < 3; axis++ {
		scratch = scratch[:0]
		for at := c.head[axis]; at != none; at = bp.proxies[at].links[axis].next {
			scratch = append(scratch, at)
		}
		slices.SortStableFunc(scratch, func(a, b int32) int {
			return compareFloat(bp.min(a, axis), bp.min(b, axis))
		})
		prev := none
		for _, id := range scratch {
			bp.proxies[id].links[axis] = node{prev: prev, next: none}
			if prev == none {
				c.head[axis] = id
			} else {
				bp.proxies[prev].links[axis].next = id
			}
			prev = id
		}
	}
	c.dirty = false
	return scratch
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// cells returns the non-empty cells ordered by layer and coordinates, sorting dirty ones.
func (bp *BroadPhase) cells() []*cell {
	var out []*cell
	var scratch []int32
	for _, l := range bp.layers {
		for _, c := range l {
			scratch = bp.resort(c, scratch)
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b *cell) int {
		if a.layer != b.layer {
			return a.layer - b.layer
		}
		if a.key.x != b.key.x {
			return a.key.x - b.key.x
		}
		return a.key.z - b.key.z
	})
	return out
}

// Check verifies that every live proxy sits in exactly one cell and that every list is
// sorted. It is meant for tests and debug builds.
func (bp *BroadPhase) Check() error {
	seen := make([]int, len(bp.proxies))
	all := append(bp.cells(), bp.inactive)
	for _, c := range all {
		for axis := 0; axis < 3; axis++ {
			n, last := 0, math.Inf(-1)
			for at := c.head[axis]; at != none; at = bp.proxies[at].links[axis].next {
				p := &bp.proxies[at]
				if p.cell != c {
					return errors.Errorf("proxy %d listed in a cell it does not own", at)
				}
				if !c.dirty && p.box.Min[axis] < last {
					return errors.Errorf("cell %d%v axis %d out of order", c.layer, c.key, axis)
				}
				last = p.box.Min[axis]
				if axis == 0 {
					seen[at]++
				}
				n++
			}
			if n != c.count {
				return errors.Errorf("cell %d%v axis %d holds %d of %d", c.layer, c.key, axis, n, c.count)
			}
		}
	}
	for id, p := range bp.proxies {
		if p.live && seen[id] != 1 {
			return errors.Errorf("proxy %d in %d cells", id, seen[id])
		}
		if !p.live && seen[id] != 0 {
			return errors.Errorf("free proxy %d still listed", id)
		}
	}
	return nil
}

// jobPool lets tests run pair generation without workers.
type jobPool interface {
	RunPhase(n int, fn func(worker, i int))
}

var _ jobPool = (*jobs.Pool)(nil)
