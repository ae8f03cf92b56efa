package solver

import (
	"slices"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/constraint"
	"github.com/0x5844/physics-3d/graph"
)

// Island is a set of dynamic bodies connected through constraints, valid for one step.
// Static bodies are never members, but the constraints that touch them are.
type Island struct {
	Bodies      []*body.Body
	Constraints []constraint.Constraint
	rowCount    int
	rowBase     int
}

// Rows returns the row budget of the island's constraints.
func (isl *Island) Rows() int { return isl.rowCount }

func (isl *Island) size() int { return len(isl.Bodies) + isl.rowCount }

// Lookup resolves a body handle; nil means the body is gone.
type Lookup func(h arena.Handle) *body.Body

// stamps marks slots as visited in the current walk without clearing between walks.
type stamps struct {
	mark []uint64
	now  uint64
}

func (s *stamps) next() { s.now++ }

func (s *stamps) seen(i uint32) bool {
	return int(i) < len(s.mark) && s.mark[i] == s.now
}

func (s *stamps) set(i uint32) {
	for int(i) >= len(s.mark) {
		s.mark = append(s.mark, 0)
	}
	s.mark[i] = s.now
}

// Partition walks the graph breadth first from every awake dynamic body. The walk stops at
// static bodies and skips frozen ones and constraints without rows; sleeping bodies it
// reaches are woken. Islands come back ordered by body plus row count, smallest first.
func (s *Solver) Partition(g *graph.Graph, bodies []*body.Body, lookup Lookup) []*Island {
	s.bodySeen.next()
	s.jointSeen.next()
	var islands []*Island
	queue := s.queue[:0]

	for _, start := range bodies {
		if !start.IsActive() || s.bodySeen.seen(start.Handle().Index) {
			continue
		}
		isl := &Island{}
		s.bodySeen.set(start.Handle().Index)
		queue = append(queue[:0], start)
		for head := 0; head < len(queue); head++ {
			cur := queue[head]
			if cur.IsSleeping() {
				cur.Wake()
			}
			isl.Bodies = append(isl.Bodies, cur)
			for _, l := range g.Links(cur.Handle()) {
				c := l.Constraint
				if c.RowCount() == 0 {
					continue
				}
				other := lookup(l.Other)
				if other == nil || other.IsFrozen() {
					continue
				}
				if h := c.Handle(); !s.jointSeen.seen(h.Index) {
					s.jointSeen.set(h.Index)
					isl.Constraints = append(isl.Constraints, c)
					isl.rowCount += c.RowCount()
				}
				if other.IsStatic() || s.bodySeen.seen(other.Handle().Index) {
					continue
				}
				s.bodySeen.set(other.Handle().Index)
				queue = append(queue, other)
			}
		}
		islands = append(islands, isl)
	}
	s.queue = queue

	slices.SortStableFunc(islands, func(a, b *Island) int { return a.size() - b.size() })
	return islands
}

// orderRows sorts an island's constraints ground up: those nearest a static body first.
func orderRows(isl *Island, rank []int) {
	at := func(h arena.Handle) int {
		if int(h.Index) >= len(rank) || rank[h.Index] == graph.Unranked {
			return len(rank)
		}
		return rank[h.Index]
	}
	key := func(c constraint.Constraint) int {
		a, b := c.Bodies()
		return min(at(a), at(b))
	}
	slices.SortStableFunc(isl.Constraints, func(x, y constraint.Constraint) int {
		return key(x) - key(y)
	})
}
