package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/geom"
)

// Jacobian is one body's share of a constraint row.
type Jacobian struct {
	Linear  mgl64.Vec3
	Angular mgl64.Vec3
}

// PointJacobian constrains the velocity of the point at offset r from the centre of mass
// along dir.
func PointJacobian(dir, r mgl64.Vec3) Jacobian {
	return Jacobian{Linear: dir, Angular: r.Cross(dir)}
}

// AngularJacobian constrains the angular velocity along axis.
func AngularJacobian(axis mgl64.Vec3) Jacobian {
	return Jacobian{Angular: axis}
}

func (j Jacobian) Neg() Jacobian {
	return Jacobian{Linear: j.Linear.Mul(-1), Angular: j.Angular.Mul(-1)}
}

func (j Jacobian) Dot(v, w mgl64.Vec3) float64 {
	return j.Linear.Dot(v) + j.Angular.Dot(w)
}

// NoNormal marks a row whose bounds do not depend on another row.
const NoNormal = -1

// Row is one scalar equation J_A*a_A + J_B*a_B = Accel between the accelerations of two
// bodies, with its force clamped to [Low, High]. Rows with a NormalIndex are friction rows:
// their bounds are rescaled to +-Friction times the force of that row every iteration.
// NormalIndex counts from the first row of the same constraint.
type Row struct {
	A, B        Jacobian
	Low, High   float64
	NormalIndex int
	Friction    float64
	Accel       float64
	Damping     float64
	Force       float64
	Active      bool
}

// Bilateral returns an unbounded row.
func Bilateral(a, b Jacobian) Row {
	return Row{A: a, B: b, Low: math.Inf(-1), High: math.Inf(1), NormalIndex: NoNormal, Active: true}
}

// RelativeVelocity evaluates J*v for the current body velocities.
func (r *Row) RelativeVelocity(a, b *body.Body) float64 {
	return r.A.Dot(a.Velocity(), a.Omega()) + r.B.Dot(b.Velocity(), b.Omega())
}

// Params carries the step tuning every row builder needs.
type Params struct {
	Dt                    float64
	Baumgarte             float64
	Slop                  float64
	MaxCorrectionVelocity float64
	RestitutionThreshold  float64
	StaticFrictionSpeed   float64
	Damping               float64
}

func DefaultParams(dt float64) Params {
	return Params{
		Dt:                    dt,
		Baumgarte:             0.2,
		Slop:                  0.005,
		MaxCorrectionVelocity: 1.0,
		RestitutionThreshold:  0.5,
		StaticFrictionSpeed:   0.1,
		Damping:               1e-9,
	}
}

// targetAccel turns a desired relative velocity into the row acceleration reaching it in one
// step.
func (p Params) targetAccel(wantVeloc, veloc float64) float64 {
	return (wantVeloc - veloc) / p.Dt
}

// correction is the Baumgarte velocity removing err over one step, capped at
// MaxCorrectionVelocity.
func (p Params) correction(err float64) float64 {
	v := p.Baumgarte * err / p.Dt
	return geom.Clamp(v, -p.MaxCorrectionVelocity, p.MaxCorrectionVelocity)
}
