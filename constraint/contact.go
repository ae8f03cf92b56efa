package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/collide"
	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/material"
)

// RowsPerPoint is one normal row plus two friction rows.
const RowsPerPoint = 3

// MatchDistance is how far a contact point may drift between steps and still inherit the
// forces solved for it last step.
const MatchDistance = 0.05

type ContactPoint struct {
	Position        mgl64.Vec3
	Normal          mgl64.Vec3
	Tangent         [2]mgl64.Vec3
	Depth           float64
	Restitution     float64
	StaticFriction  [2]float64
	KineticFriction [2]float64
	NormalForce     float64
	TangentForce    [2]float64
}

// Contact is the constraint the narrow phase keeps alive between two touching bodies.
type Contact struct {
	Base
	Points []ContactPoint
	// LastCycle is the step that last refreshed the points.
	LastCycle uint64
	// Tag is whatever the pair's contact hook left on the manifold owner.
	Tag any

	old []ContactPoint
}

func NewContact(a, b arena.Handle, maxPoints int) *Contact {
	return &Contact{
		Base:   NewBase(a, b),
		Points: make([]ContactPoint, 0, maxPoints),
		old:    make([]ContactPoint, 0, maxPoints),
	}
}

func (c *Contact) Kind() Kind { return KindContact }
func (c *Contact) RowCount() int { return RowsPerPoint * len(c.Points) }
func (c *Contact) Collides() bool { return true }

// Update replaces the points with the manifold's, carrying solved forces over from any old
// point within MatchDistance.
func (c *Contact) Update(m *collide.Manifold, p material.Pair, cycle uint64) {
	c.old = append(c.old[:0], c.Points...)
	c.Points = c.Points[:0]
	t0, t1 := geom.TangentBasis(m.Normal)
	for _, mp := range m.Points {
		if len(c.Points) == cap(c.Points) {
			break
		}
		pt := ContactPoint{
			Position:        mp.Position,
			Normal:          m.Normal,
			Tangent:         [2]mgl64.Vec3{t0, t1},
			Depth:           mp.Depth,
			Restitution:     p.Restitution,
			StaticFriction:  [2]float64{p.StaticFriction, p.StaticFriction},
			KineticFriction: [2]float64{p.KineticFriction, p.KineticFriction},
		}
		if prev, ok := c.nearest(mp.Position); ok {
			pt.NormalForce = prev.NormalForce
			pt.TangentForce = prev.TangentForce
		}
		c.Points = append(c.Points, pt)
	}
	c.LastCycle = cycle
}

func (c *Contact) nearest(p mgl64.Vec3) (ContactPoint, bool) {
	best, found := MatchDistance*MatchDistance, -1
	for i := range c.old {
		if d := c.old[i].Position.Sub(p).LenSqr(); d < best {
			best, found = d, i
		}
	}
	if found < 0 {
		return ContactPoint{}, false
	}
	return c.old[found], true
}

// Clear drops the points but keeps the contact alive, as for a pair whose hook vetoed it.
func (c *Contact) Clear() { c.Points = c.Points[:0] }

// BuildRows writes the normal row of each point followed by its two friction rows.
func (c *Contact) BuildRows(a, b *body.Body, p Params, rows []Row) int {
	n := 0
	for i := range c.Points {
		if n+RowsPerPoint > len(rows) {
			break
		}
		pt := &c.Points[i]
		ra := pt.Position.Sub(a.CenterOfMass())
		rb := pt.Position.Sub(b.CenterOfMass())

		normal := &rows[n]
		*normal = Row{
			A:           PointJacobian(pt.Normal, ra).Neg(),
			B:           PointJacobian(pt.Normal, rb),
			Low:         0,
			High:        math.Inf(1),
			NormalIndex: NoNormal,
			Damping:     p.Damping,
			Force:       pt.NormalForce,
			Active:      true,
		}
		vn := normal.RelativeVelocity(a, b)
		want := 0.0
		if -vn > p.RestitutionThreshold {
			want = -pt.Restitution * vn
		}
		if pt.Depth > p.Slop {
			want = math.Max(want, p.correction(pt.Depth-p.Slop))
		}
		normal.Accel = p.targetAccel(want, vn)

		for k := 0; k < 2; k++ {
			row := &rows[n+1+k]
			*row = Row{
				A:           PointJacobian(pt.Tangent[k], ra).Neg(),
				B:           PointJacobian(pt.Tangent[k], rb),
				Low:         math.Inf(-1),
				High:        math.Inf(1),
				NormalIndex: n,
				Damping:     p.Damping,
				Force:       pt.TangentForce[k],
				Active:      true,
			}
			vt := row.RelativeVelocity(a, b)
			row.Friction = pt.KineticFriction[k]
			if math.Abs(vt) < p.StaticFrictionSpeed {
				row.Friction = pt.StaticFriction[k]
			}
			row.Accel = p.targetAccel(0, vt)
		}
		n += RowsPerPoint
	}
	return n
}

func (c *Contact) StoreForces(rows []Row) {
	for i := range c.Points {
		base := i * RowsPerPoint
		if base+RowsPerPoint > len(rows) {
			return
		}
		c.Points[i].NormalForce = rows[base].Force
		c.Points[i].TangentForce = [2]float64{rows[base+1].Force, rows[base+2].Force}
	}
}

// NormalForce sums the solved normal force over all points.
func (c *Contact) NormalForce() float64 {
	f := 0.0
	for _, p := range c.Points {
		f += p.NormalForce
	}
	return f
}
