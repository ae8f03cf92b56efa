// Package graph keeps the body/constraint adjacency the solver walks to build islands.
package graph

import (
	"github.com/pkg/errors"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/constraint"
)

var ErrSelfLink = errors.New("graph: constraint links a body to itself")

// Link is one end of a constraint as seen from a body.
type Link struct {
	Constraint constraint.Constraint
	Other      arena.Handle
}

// Graph is an adjacency list keyed by body index. Every constraint appears in exactly two
// entries.
type Graph struct {
	adj   [][]Link
	edges int
}

func New(capacity int) *Graph {
	return &Graph{adj: make([][]Link, 0, capacity)}
}

func (g *Graph) grow(index uint32) {
	for int(index) >= len(g.adj) {
		g.adj = append(g.adj, nil)
	}
}

// Attach records c in the entries of both of its bodies.
func (g *Graph) Attach(c constraint.Constraint) error {
	a, b := c.Bodies()
	if a.Index == b.Index {
		return errors.Wrapf(ErrSelfLink, "%s on %v", c.Kind(), a)
	}
	g.grow(max(a.Index, b.Index))
	g.adj[a.Index] = append(g.adj[a.Index], Link{Constraint: c, Other: b})
	g.adj[b.Index] = append(g.adj[b.Index], Link{Constraint: c, Other: a})
	g.edges++
	return nil
}

// Detach removes c from both entries and reports whether it was attached.
func (g *Graph) Detach(c constraint.Constraint) bool {
	a, b := c.Bodies()
	okA := g.unlink(a.Index, c)
	okB := g.unlink(b.Index, c)
	if okA && okB {
		g.edges--
	}
	return okA && okB
}

func (g *Graph) unlink(index uint32, c constraint.Constraint) bool {
	if int(index) >= len(g.adj) {
		return false
	}
	links := g.adj[index]
	for i := range links {
		if links[i].Constraint == c {
			last := len(links) - 1
			links[i] = links[last]
			links[last] = Link{}
			g.adj[index] = links[:last]
			return true
		}
	}
	return false
}

// Links returns the entry of body h. The slice is owned by the graph.
func (g *Graph) Links(h arena.Handle) []Link {
	if int(h.Index) >= len(g.adj) {
		return nil
	}
	return g.adj[h.Index]
}

// Degree returns the number of constraints touching h.
func (g *Graph) Degree(h arena.Handle) int { return len(g.Links(h)) }

// EdgeCount returns the number of attached constraints.
func (g *Graph) EdgeCount() int { return g.edges }

// RemoveBody detaches every constraint of h and returns them so the owner can destroy them.
func (g *Graph) RemoveBody(h arena.Handle) []constraint.Constraint {
	links := g.Links(h)
	if len(links) == 0 {
		return nil
	}
	out := make([]constraint.Constraint, 0, len(links))
	for len(g.adj[h.Index]) > 0 {
		c := g.adj[h.Index][0].Constraint
		g.Detach(c)
		out = append(out, c)
	}
	return out
}

// Between calls fn for every constraint joining a and b until fn returns false.
func (g *Graph) Between(a, b arena.Handle, fn func(constraint.Constraint) bool) {
	la, lb := g.Links(a), g.Links(b)
	if len(lb) < len(la) {
		la, b = lb, a
	}
	for _, l := range la {
		if l.Other.Index == b.Index && !fn(l.Constraint) {
			return
		}
	}
}

// Unranked marks bodies no static body can reach.
const Unranked = -1

// Rank returns, per body index, the breadth-first distance from the nearest root (normally
// the static bodies). Roots rank 0.
func (g *Graph) Rank(roots []arena.Handle) []int {
	rank := make([]int, len(g.adj))
	for i := range rank {
		rank[i] = Unranked
	}
	queue := make([]uint32, 0, len(roots))
	for _, r := range roots {
		if int(r.Index) < len(rank) && rank[r.Index] == Unranked {
			rank[r.Index] = 0
			queue = append(queue, r.Index)
		}
	}
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		for _, l := range g.adj[i] {
			o := l.Other.Index
			if rank[o] != Unranked {
				continue
			}
			rank[o] = rank[i] + 1
			queue = append(queue, o)
		}
	}
	return rank
}
