package constraint

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/geom"
)

var worldAxes = [3]mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// joint holds a pivot fixed in both body frames.
type joint struct {
	Base
	localA, localB mgl64.Vec3
	forces         []float64
	// CollideConnected keeps contacts between the two bodies alive.
	CollideConnected bool
}

func newJoint(a, b *body.Body, pivot mgl64.Vec3, rows int) joint {
	return joint{
		Base:   NewBase(a.Handle(), b.Handle()),
		localA: geom.UntransformPoint(a.Matrix(), pivot),
		localB: geom.UntransformPoint(b.Matrix(), pivot),
		forces: make([]float64, rows),
	}
}

func (j *joint) Collides() bool { return j.CollideConnected }

// anchors returns the world pivots on both bodies and their offsets from the centres of mass.
func (j *joint) anchors(a, b *body.Body) (pa, pb, ra, rb mgl64.Vec3) {
	pa = geom.TransformPoint(a.Matrix(), j.localA)
	pb = geom.TransformPoint(b.Matrix(), j.localB)
	return pa, pb, pa.Sub(a.CenterOfMass()), pb.Sub(b.CenterOfMass())
}

// pointRows pins the two anchors together with one bilateral row per world axis.
func (j *joint) pointRows(a, b *body.Body, p Params, rows []Row) {
	pa, pb, ra, rb := j.anchors(a, b)
	gap := pb.Sub(pa)
	for k, axis := range worldAxes {
		rows[k] = Bilateral(PointJacobian(axis, ra).Neg(), PointJacobian(axis, rb))
		rows[k].Damping = p.Damping
		rows[k].Force = j.forces[k]
		rows[k].Accel = p.targetAccel(-p.correction(gap[k]), rows[k].RelativeVelocity(a, b))
	}
}

func (j *joint) StoreForces(rows []Row) {
	for i := range j.forces {
		if i < len(rows) {
			j.forces[i] = rows[i].Force
		}
	}
}

// BallSocket lets two bodies rotate freely about a shared pivot.
type BallSocket struct {
	joint
}

func NewBallSocket(a, b *body.Body, pivot mgl64.Vec3) *BallSocket {
	return &BallSocket{joint: newJoint(a, b, pivot, 3)}
}

func (c *BallSocket) Kind() Kind { return KindBallSocket }
func (c *BallSocket) RowCount() int { return 3 }

func (c *BallSocket) BuildRows(a, b *body.Body, p Params, rows []Row) int {
	if len(rows) < 3 {
		return 0
	}
	c.pointRows(a, b, p, rows)
	return 3
}

// Hinge is a ball socket that also keeps a pin axis aligned in both bodies.
type Hinge struct {
	joint
	axisA, axisB mgl64.Vec3
}

func NewHinge(a, b *body.Body, pivot, axis mgl64.Vec3) *Hinge {
	axis, ok := geom.Normalize(axis)
	geom.Assert(ok, "hinge axis must not be zero")
	return &Hinge{
		joint: newJoint(a, b, pivot, 5),
		axisA: geom.UntransformVector(a.Matrix(), axis),
		axisB: geom.UntransformVector(b.Matrix(), axis),
	}
}

func (c *Hinge) Kind() Kind { return KindHinge }
func (c *Hinge) RowCount() int { return 5 }

// Axis returns the pin in world space as seen by the first body.
func (c *Hinge) Axis(a *body.Body) mgl64.Vec3 {
	return geom.TransformVector(a.Matrix(), c.axisA)
}

func (c *Hinge) BuildRows(a, b *body.Body, p Params, rows []Row) int {
	if len(rows) < 5 {
		return 0
	}
	c.pointRows(a, b, p, rows)
	wa := geom.TransformVector(a.Matrix(), c.axisA)
	wb := geom.TransformVector(b.Matrix(), c.axisB)
	// rotation that brings the second pin back onto the first
	twist := wb.Cross(wa)
	u, v := geom.TangentBasis(wa)
	for k, dir := range [2]mgl64.Vec3{u, v} {
		row := &rows[3+k]
		*row = Bilateral(AngularJacobian(dir).Neg(), AngularJacobian(dir))
		row.Damping = p.Damping
		row.Force = c.forces[3+k]
		row.Accel = p.targetAccel(p.correction(twist.Dot(dir)), row.RelativeVelocity(a, b))
	}
	return 5
}

// Distance keeps two anchor points at a fixed separation.
type Distance struct {
	joint
	Length float64
}

// NewDistance anchors the rope at pa on a and pb on b with the current separation as its length.
func NewDistance(a, b *body.Body, pa, pb mgl64.Vec3) *Distance {
	c := &Distance{joint: newJoint(a, b, pa, 1), Length: pb.Sub(pa).Len()}
	c.localB = geom.UntransformPoint(b.Matrix(), pb)
	return c
}

func (c *Distance) Kind() Kind { return KindDistance }
func (c *Distance) RowCount() int { return 1 }

func (c *Distance) BuildRows(a, b *body.Body, p Params, rows []Row) int {
	if len(rows) < 1 {
		return 0
	}
	pa, pb, ra, rb := c.anchors(a, b)
	dir, ok := geom.Normalize(pb.Sub(pa))
	if !ok {
		// coincident anchors leave no direction to constrain
		return 0
	}
	rows[0] = Bilateral(PointJacobian(dir, ra).Neg(), PointJacobian(dir, rb))
	rows[0].Damping = p.Damping
	rows[0].Force = c.forces[0]
	stretch := pb.Sub(pa).Len() - c.Length
	rows[0].Accel = p.targetAccel(-p.correction(stretch), rows[0].RelativeVelocity(a, b))
	return 1
}
