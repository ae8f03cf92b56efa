// Package constraint turns contacts and joints into Jacobian rows for the solver.
package constraint

import (
	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/body"
)

type Kind int

const (
	KindContact Kind = iota
	KindBallSocket
	KindHinge
	KindDistance
)

func (k Kind) String() string {
	switch k {
	case KindContact:
		return "contact"
	case KindBallSocket:
		return "ball-socket"
	case KindHinge:
		return "hinge"
	case KindDistance:
		return "distance"
	}
	return "unknown"
}

// Constraint links exactly two bodies. BuildRows writes at most RowCount rows and returns the
// number written; StoreForces receives the same rows back after the solve.
type Constraint interface {
	Kind() Kind
	Bodies() (arena.Handle, arena.Handle)
	Handle() arena.Handle
	SetHandle(h arena.Handle)
	RowCount() int
	BuildRows(a, b *body.Body, p Params, rows []Row) int
	StoreForces(rows []Row)
	// Collides reports whether the two bodies still generate contacts with each other.
	Collides() bool
}

// Base carries the bookkeeping shared by every constraint.
type Base struct {
	bodyA, bodyB arena.Handle
	handle       arena.Handle
	UserData     any
}

func NewBase(a, b arena.Handle) Base { return Base{bodyA: a, bodyB: b} }

func (c *Base) Bodies() (arena.Handle, arena.Handle) { return c.bodyA, c.bodyB }
func (c *Base) Handle() arena.Handle { return c.handle }
func (c *Base) SetHandle(h arena.Handle) { c.handle = h }

// Other returns the body at the opposite end from h.
func Other(c Constraint, h arena.Handle) arena.Handle {
	a, b := c.Bodies()
	if a == h {
		return b
	}
	return a
}
