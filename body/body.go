// Package body holds the rigid body state: pose, mass and inertia, velocities, accumulated
// forces, flags and the per-body callbacks. A body is only ever touched by one worker within
// a phase, so it carries no lock of its own.
package body

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/shape"
)

const (
	// MassSentinel is the mass given to static bodies. Any mass at or above it is static.
	MassSentinel = 1e12

	DefaultAABBPadding = 1.0 / 32

	NoProxy = -1
)

type (
	ForceCallback     func(b *Body, dt float64, worker int)
	TransformCallback func(b *Body)
	DestroyCallback   func(b *Body)
)

type Body struct {
	handle arena.Handle
	proxy  int
	shape  shape.Convex

	matrix    mgl64.Mat4
	rotation  mgl64.Quat
	localCOM  mgl64.Vec3
	globalCOM mgl64.Vec3

	veloc mgl64.Vec3
	omega mgl64.Vec3
	accel mgl64.Vec3
	alpha mgl64.Vec3

	force  mgl64.Vec3
	torque mgl64.Vec3

	reactionForce  mgl64.Vec3
	reactionTorque mgl64.Vec3

	mass         float64
	invMass      float64
	inertia      mgl64.Mat3
	invInertia   mgl64.Mat3
	invInertiaW  mgl64.Mat3
	linearDamp   float64
	angularDamp  float64
	aabb         geom.AABB
	aabbPadding  float64
	flags        Flags
	sleepCounter int
	material     int

	forceCallback     ForceCallback
	transformCallback TransformCallback
	destroyCallback   DestroyCallback

	UserData any
}

// New creates a static body posed at m. SetMass or SetMassFromShape makes it dynamic.
func New(s shape.Convex, m mgl64.Mat4) *Body {
	b := &Body{
		proxy:       NoProxy,
		shape:       s,
		aabbPadding: DefaultAABBPadding,
		flags:       AutoSleep,
	}
	b.SetMass(0, mgl64.Mat3{})
	b.SetMatrix(m)
	return b
}

func (b *Body) Handle() arena.Handle { return b.handle }
func (b *Body) SetHandle(h arena.Handle) { b.handle = h }
func (b *Body) Proxy() int { return b.proxy }
func (b *Body) SetProxy(id int) { b.proxy = id }
func (b *Body) Shape() shape.Convex { return b.shape }
func (b *Body) Material() int { return b.material }
func (b *Body) SetMaterial(id int) { b.material = id }

// SetShape replaces the collision shape. Mass properties are left alone.
func (b *Body) SetShape(s shape.Convex) {
	b.shape = s
	b.UpdateAABB()
	b.InvalidateCache()
}

// ==================== POSE ====================

func (b *Body) Matrix() mgl64.Mat4 { return b.matrix }
func (b *Body) Rotation() mgl64.Quat { return b.rotation }
func (b *Body) Position() mgl64.Vec3 { return geom.Translation(b.matrix) }
func (b *Body) CenterOfMass() mgl64.Vec3 { return b.globalCOM }

// LocalCenterOfMass is the centre of mass in the body frame.
func (b *Body) LocalCenterOfMass() mgl64.Vec3 { return b.localCOM }

// SetMatrix sets the pose and re-derives the rotation quaternion from it.
func (b *Body) SetMatrix(m mgl64.Mat4) {
	b.rotation = geom.RotationOf(m)
	b.matrix = geom.Compose(b.rotation, geom.Translation(m))
	b.poseChanged()
}

func (b *Body) SetPose(q mgl64.Quat, p mgl64.Vec3) {
	b.rotation = q.Normalize()
	b.matrix = geom.Compose(b.rotation, p)
	b.poseChanged()
}

func (b *Body) SetPosition(p mgl64.Vec3) { b.SetPose(b.rotation, p) }

func (b *Body) SetRotation(q mgl64.Quat) { b.SetPose(q, b.Position()) }

// PoseInSync reports whether the matrix and quaternion describe the same rotation.
func (b *Body) PoseInSync(eps float64) bool {
	return geom.RotationInSync(b.matrix, b.rotation, eps)
}

func (b *Body) poseChanged() {
	b.globalCOM = geom.TransformPoint(b.matrix, b.localCOM)
	b.invInertiaW = geom.RotateInertia(b.matrix.Mat3(), b.invInertia)
	b.UpdateAABB()
}

func (b *Body) SetCenterOfMass(local mgl64.Vec3) {
	b.localCOM = local
	b.poseChanged()
}

// ==================== MASS ====================

func (b *Body) Mass() float64 { return b.mass }
func (b *Body) InvMass() float64 { return b.invMass }

// IsStatic is the one test for immovable bodies.
func (b *Body) IsStatic() bool { return b.invMass == 0 }

func (b *Body) Inertia() mgl64.Mat3 { return b.inertia }

// InvInertiaWorld returns R * I^-1 * R^T for the current pose.
func (b *Body) InvInertiaWorld() mgl64.Mat3 { return b.invInertiaW }

// InertiaWorld returns R * I * R^T for the current pose.
func (b *Body) InertiaWorld() mgl64.Mat3 {
	return geom.RotateInertia(b.matrix.Mat3(), b.inertia)
}

// SetMass sets the mass and the inertia tensor about the centre of mass in the body frame.
// A mass that is not positive or reaches MassSentinel makes the body static.
func (b *Body) SetMass(mass float64, inertia mgl64.Mat3) {
	if mass <= 0 || mass >= MassSentinel || math.IsNaN(mass) {
		b.mass = MassSentinel
		b.invMass = 0
		b.inertia = mgl64.Ident3().Mul(MassSentinel)
		b.invInertia = mgl64.Mat3{}
		b.veloc = mgl64.Vec3{}
		b.omega = mgl64.Vec3{}
	} else {
		b.mass = mass
		b.invMass = 1 / mass
		b.inertia = inertia
		if math.Abs(inertia.Det()) > geom.Epsilon {
			b.invInertia = inertia.Inv()
		} else {
			b.invInertia = mgl64.Mat3{}
		}
	}
	b.poseChanged()
	b.InvalidateCache()
}

// SetMassFromShape derives mass, inertia and centre of mass from the shape at density.
func (b *Body) SetMassFromShape(density float64) {
	mp := b.shape.MassProperties(density)
	b.localCOM = mp.Center
	b.SetMass(mp.Mass, mp.Inertia)
}

// ==================== MOTION ====================

func (b *Body) Velocity() mgl64.Vec3 { return b.veloc }
func (b *Body) Omega() mgl64.Vec3 { return b.omega }
func (b *Body) Acceleration() mgl64.Vec3 { return b.accel }
func (b *Body) AngularAccel() mgl64.Vec3 { return b.alpha }
func (b *Body) Force() mgl64.Vec3 { return b.force }
func (b *Body) Torque() mgl64.Vec3 { return b.torque }
func (b *Body) LinearDamping() float64 { return b.linearDamp }
func (b *Body) AngularDamping() float64 { return b.angularDamp }
func (b *Body) SetLinearDamping(k float64) { b.linearDamp = math.Max(0, k) }
func (b *Body) SetAngularDamping(k float64) { b.angularDamp = math.Max(0, k) }
func (b *Body) ReactionForce() mgl64.Vec3 { return b.reactionForce }
func (b *Body) ReactionTorque() mgl64.Vec3 { return b.reactionTorque }
func (b *Body) SetForce(f mgl64.Vec3) { b.force = f }
func (b *Body) SetTorque(t mgl64.Vec3) { b.torque = t }
func (b *Body) AddForce(f mgl64.Vec3) { b.force = b.force.Add(f) }
func (b *Body) AddTorque(t mgl64.Vec3) { b.torque = b.torque.Add(t) }
func (b *Body) ClearReaction() { b.reactionForce, b.reactionTorque = mgl64.Vec3{}, mgl64.Vec3{} }
func (b *Body) VelocityAt(p mgl64.Vec3) mgl64.Vec3 {
	return b.veloc.Add(b.omega.Cross(p.Sub(b.globalCOM)))
}

func (b *Body) SetVelocity(v mgl64.Vec3) {
	if b.IsStatic() {
		return
	}
	b.veloc = v
	b.InvalidateCache()
}

func (b *Body) SetOmega(w mgl64.Vec3) {
	if b.IsStatic() {
		return
	}
	b.omega = w
	b.InvalidateCache()
}

// AddForceAt applies a world force at a world point, producing the matching torque.
func (b *Body) AddForceAt(f, p mgl64.Vec3) {
	b.force = b.force.Add(f)
	b.torque = b.torque.Add(p.Sub(b.globalCOM).Cross(f))
}

// AddReaction accumulates a constraint reaction. Static bodies keep the sum as telemetry.
func (b *Body) AddReaction(f, t mgl64.Vec3) {
	b.reactionForce = b.reactionForce.Add(f)
	b.reactionTorque = b.reactionTorque.Add(t)
}

func (b *Body) ClearForces() {
	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
}

// AddImpulse changes the velocities as if impulse were applied at the world point p.
func (b *Body) AddImpulse(impulse, p mgl64.Vec3) {
	if b.IsStatic() {
		return
	}
	b.veloc = b.veloc.Add(impulse.Mul(b.invMass))
	b.omega = b.omega.Add(b.invInertiaW.Mul3x1(p.Sub(b.globalCOM).Cross(impulse)))
	b.Wake()
}

// ExchangeImpulse applies impulse to b and its opposite to a at the same point, leaving the
// pair's linear and angular momentum unchanged.
func ExchangeImpulse(a, b *Body, impulse, p mgl64.Vec3) {
	a.AddImpulse(impulse.Mul(-1), p)
	b.AddImpulse(impulse, p)
}

// LinearMomentum returns m*v.
func (b *Body) LinearMomentum() mgl64.Vec3 {
	if b.IsStatic() {
		return mgl64.Vec3{}
	}
	return b.veloc.Mul(b.mass)
}

// AngularMomentum returns the angular momentum about the world point p.
func (b *Body) AngularMomentum(p mgl64.Vec3) mgl64.Vec3 {
	if b.IsStatic() {
		return mgl64.Vec3{}
	}
	spin := b.InertiaWorld().Mul3x1(b.omega)
	return spin.Add(b.globalCOM.Sub(p).Cross(b.LinearMomentum()))
}

// KineticEnergy returns the translational plus rotational energy.
func (b *Body) KineticEnergy() float64 {
	if b.IsStatic() {
		return 0
	}
	return 0.5*b.mass*b.veloc.LenSqr() + 0.5*b.omega.Dot(b.InertiaWorld().Mul3x1(b.omega))
}

// ApplyAcceleration advances the velocities by the given accelerations and applies the
// exponential damping.
func (b *Body) ApplyAcceleration(accel, alpha mgl64.Vec3, dt float64) {
	b.accel, b.alpha = accel, alpha
	b.veloc = b.veloc.Add(accel.Mul(dt)).Mul(math.Exp(-b.linearDamp * dt))
	b.omega = b.omega.Add(alpha.Mul(dt)).Mul(math.Exp(-b.angularDamp * dt))
}

// IntegratePose moves the centre of mass and rotation by the current velocities and rebuilds
// the matrix, world inertia and AABB.
func (b *Body) IntegratePose(dt float64) {
	com := b.globalCOM.Add(b.veloc.Mul(dt))
	b.rotation = geom.IntegrateRotation(b.rotation, b.omega, dt)
	rot := b.rotation.Mat4()
	origin := com.Sub(geom.TransformVector(rot, b.localCOM))
	b.matrix = geom.Compose(b.rotation, origin)
	geom.Assert(b.PoseInSync(geom.PoseTolerance), "pose out of sync after integration")
	b.poseChanged()
}

// Integrate advances an unconstrained body by its accumulated force and torque.
func (b *Body) Integrate(dt float64) {
	if b.IsStatic() || b.IsSleeping() || b.IsFrozen() {
		return
	}
	accel := b.force.Mul(b.invMass)
	alpha := b.invInertiaW.Mul3x1(b.torque)
	b.ApplyAcceleration(accel, alpha, dt)
	b.IntegratePose(dt)
	b.ClearForces()
}

// ==================== BOUNDS ====================

func (b *Body) AABB() geom.AABB { return b.aabb }

func (b *Body) SetAABBPadding(p float64) {
	b.aabbPadding = math.Max(0, p)
	b.UpdateAABB()
}

func (b *Body) UpdateAABB() {
	if b.shape == nil {
		return
	}
	b.aabb = b.shape.AABB(b.matrix).Expand(b.aabbPadding)
}

// ==================== FLAGS ====================

func (b *Body) Flags() Flags { return b.flags }
func (b *Body) IsSleeping() bool { return b.flags.Has(Sleeping) }
func (b *Body) IsFrozen() bool { return b.flags.Has(Frozen) }
func (b *Body) IsEquilibrium() bool { return b.flags.Has(Equilibrium) }
func (b *Body) AutoSleep() bool { return b.flags.Has(AutoSleep) }
func (b *Body) IsContinuous() bool { return b.flags.Has(Continuous) }
func (b *Body) SleepCounter() int { return b.sleepCounter }
func (b *Body) SetAutoSleep(on bool) { b.setFlag(AutoSleep, on) }
func (b *Body) SetContinuous(on bool) { b.setFlag(Continuous, on) }

// IsActive reports whether the body takes part in simulation this step.
func (b *Body) IsActive() bool {
	return !b.IsStatic() && !b.IsSleeping() && !b.IsFrozen()
}

func (b *Body) setFlag(f Flags, on bool) {
	if on {
		b.flags |= f
	} else {
		b.flags &^= f
	}
}

// SetSleeping puts the body to sleep, zeroing its motion, or wakes it.
func (b *Body) SetSleeping(sleep bool) {
	if b.IsStatic() {
		return
	}
	if sleep {
		b.flags |= Sleeping | Equilibrium
		b.veloc, b.omega = mgl64.Vec3{}, mgl64.Vec3{}
		b.accel, b.alpha = mgl64.Vec3{}, mgl64.Vec3{}
		b.ClearForces()
		return
	}
	b.Wake()
}

// Wake clears the sleeping state and the sleep history.
func (b *Body) Wake() {
	b.flags &^= Sleeping
	b.InvalidateCache()
}

// SetFrozen removes the body from simulation without destroying it.
func (b *Body) SetFrozen(frozen bool) {
	b.setFlag(Frozen, frozen)
	if frozen {
		b.veloc, b.omega = mgl64.Vec3{}, mgl64.Vec3{}
	}
	b.InvalidateCache()
}

// SetEquilibrium marks the body as resting. Clearing it restarts the sleep count.
func (b *Body) SetEquilibrium(on bool) {
	if !on {
		b.InvalidateCache()
		return
	}
	b.flags |= Equilibrium
}

// IncrementSleep records one more quiet step and returns the count.
func (b *Body) IncrementSleep() int {
	b.sleepCounter++
	return b.sleepCounter
}

// InvalidateCache forgets the sleep history of the body.
func (b *Body) InvalidateCache() {
	b.sleepCounter = 0
	b.flags &^= Equilibrium
}

// ==================== CALLBACKS ====================

func (b *Body) SetForceCallback(cb ForceCallback) { b.forceCallback = cb }
func (b *Body) SetTransformCallback(cb TransformCallback) { b.transformCallback = cb }
func (b *Body) SetDestroyCallback(cb DestroyCallback) { b.destroyCallback = cb }
func (b *Body) HasForceCallback() bool { return b.forceCallback != nil }
func (b *Body) HasTransformCallback() bool { return b.transformCallback != nil }

// ApplyForceCallback runs the force callback. It reports false when the body has none.
func (b *Body) ApplyForceCallback(dt float64, worker int) bool {
	if b.forceCallback == nil {
		return false
	}
	b.forceCallback(b, dt, worker)
	return true
}

func (b *Body) NotifyTransform() {
	if b.transformCallback != nil {
		b.transformCallback(b)
	}
}

func (b *Body) NotifyDestroy() {
	if b.destroyCallback != nil {
		b.destroyCallback(b)
	}
}
