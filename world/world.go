// Package world composes the engine: it owns the bodies and constraints, runs the step and
// answers queries.
package world

import (
	"io"
	"log"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/broadphase"
	"github.com/0x5844/physics-3d/collide"
	"github.com/0x5844/physics-3d/config"
	"github.com/0x5844/physics-3d/constraint"
	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/graph"
	"github.com/0x5844/physics-3d/jobs"
	"github.com/0x5844/physics-3d/material"
	"github.com/0x5844/physics-3d/shape"
	"github.com/0x5844/physics-3d/solver"
	"github.com/0x5844/physics-3d/telemetry"
)

var (
	ErrStaleHandle    = errors.New("world: stale handle")
	ErrRowBudget      = errors.New("world: constraint exceeds the row budget")
	ErrSelfConstraint = errors.New("world: constraint links a body to itself")
	ErrSentinel       = errors.New("world: the world body cannot be changed")
)

// LeaveWorldCallback runs when a body's box leaves the world bounds. The body is frozen
// before the call.
type LeaveWorldCallback func(b *body.Body)

type Options struct {
	// Config defaults to config.Default(); the world keeps its own copy.
	Config *config.Config
	// Logger receives buffer growth, world exits and, with Verbose, contact turnover.
	Logger     *log.Logger
	Verbose    bool
	LeaveWorld LeaveWorldCallback
}

type World struct {
	cfg     *config.Config
	log     *log.Logger
	verbose bool
	leave   LeaveWorldCallback

	bodies      *arena.Arena[*body.Body]
	constraints *arena.Arena[constraint.Constraint]
	sentinel    *body.Body
	graph       *graph.Graph
	broad       *broadphase.BroadPhase
	solver      *solver.Solver
	jobs        *jobs.Pool
	narrow      *collide.Pool
	materials   *material.Table
	tele        *telemetry.SimulationContext

	// lock is the advisory lock: buffer growth and transform callbacks.
	lock     sync.Mutex
	contacts map[broadphase.Pair]*constraint.Contact
	live     []*body.Body
	starts   []mgl64.Vec3
}

func New(opt Options) (*World, error) {
	cfg := config.Default()
	if opt.Config != nil {
		cfg = opt.Config.Clone()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "world")
	}
	logger := opt.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	w := &World{
		cfg:         cfg,
		log:         logger,
		verbose:     opt.Verbose,
		leave:       opt.LeaveWorld,
		bodies:      arena.New[*body.Body](cfg.Capacity.Bodies),
		constraints: arena.New[constraint.Constraint](cfg.Capacity.Constraints),
		graph:       graph.New(cfg.Capacity.Bodies),
		broad:       broadphase.New(cfg.BroadPhase, cfg.Capacity.Pairs),
		jobs:        jobs.NewPool(cfg.Workers),
		narrow:      collide.NewPool(),
		materials:   material.NewTable(),
		tele:        telemetry.New(),
		contacts:    make(map[broadphase.Pair]*constraint.Contact),
	}
	w.solver = solver.New(cfg, w.jobs, &w.lock, w.tele, logger)
	w.materials.SetDefault(material.Pair{
		Restitution:     cfg.Material.Restitution,
		StaticFriction:  cfg.Material.StaticFriction,
		KineticFriction: cfg.Material.KineticFriction,
		Collidable:      true,
	})

	// slot 0 holds the static body that stands in for "no second body"
	w.sentinel = body.New(nil, mgl64.Ident4())
	w.sentinel.SetHandle(w.bodies.Insert(w.sentinel))
	return w, nil
}

// WorkerStats reports the job pool counters: jobs running now, jobs run and phases run.
func (w *World) WorkerStats() (active, total, phases int64) { return w.jobs.Stats() }

// Workers is the size of the job pool.
func (w *World) Workers() int { return w.jobs.Workers() }

// Close stops the worker goroutines. The world must not be stepped afterwards.
func (w *World) Close() { w.jobs.Close() }

func (w *World) Config() *config.Config { return w.cfg }
func (w *World) Materials() *material.Table { return w.materials }
func (w *World) Telemetry() *telemetry.SimulationContext { return w.tele }
func (w *World) Gravity() mgl64.Vec3 { return w.cfg.Gravity }
func (w *World) SetGravity(g mgl64.Vec3) { w.cfg.Gravity = g }
func (w *World) Sentinel() arena.Handle { return w.sentinel.Handle() }

// BodyCount excludes the world body.
func (w *World) BodyCount() int { return w.bodies.Len() - 1 }

func (w *World) ConstraintCount() int { return w.constraints.Len() }

func (w *World) ContactCount() int { return len(w.contacts) }

// Body resolves a handle.
func (w *World) Body(h arena.Handle) (*body.Body, error) {
	b, ok := w.bodies.Get(h)
	if !ok {
		return nil, errors.Wrapf(ErrStaleHandle, "body %v", h)
	}
	return b, nil
}

func (w *World) lookup(h arena.Handle) *body.Body {
	b, _ := w.bodies.Get(h)
	return b
}

// mutable resolves a handle to a body the caller may change.
func (w *World) mutable(h arena.Handle) (*body.Body, error) {
	b, err := w.Body(h)
	if err != nil {
		return nil, err
	}
	if b == w.sentinel {
		return nil, ErrSentinel
	}
	return b, nil
}

// Each visits every body except the world body until fn returns false.
func (w *World) Each(fn func(*body.Body) bool) {
	w.bodies.Each(func(_ arena.Handle, b *body.Body) bool {
		if b == w.sentinel {
			return true
		}
		return fn(b)
	})
}

// CreateBody adds a static body with shape s at pose m. SetMass makes it dynamic.
func (w *World) CreateBody(s shape.Convex, m mgl64.Mat4) arena.Handle {
	b := body.New(s, m)
	b.SetAABBPadding(w.cfg.AABBPadding)
	b.SetLinearDamping(w.cfg.LinearDamping)
	b.SetAngularDamping(w.cfg.AngularDamping)
	h := w.bodies.Insert(b)
	b.SetHandle(h)
	b.SetProxy(w.broad.Add(h, b.AABB(), proxyState(b)))
	if w.broad.Inactive(b.Proxy()) {
		w.leftWorld(b)
	}
	return h
}

// DestroyBody runs the destroy callback, then removes the body and every constraint on it.
func (w *World) DestroyBody(h arena.Handle) error {
	b, err := w.mutable(h)
	if err != nil {
		return err
	}
	b.NotifyDestroy()
	for _, c := range w.graph.RemoveBody(h) {
		w.forget(c)
		if other := w.lookup(constraint.Other(c, h)); other != nil {
			other.Wake()
		}
	}
	w.broad.Remove(b.Proxy())
	w.bodies.Remove(h)
	return nil
}

// forget drops a constraint that is already detached from the graph.
func (w *World) forget(c constraint.Constraint) {
	w.constraints.Remove(c.Handle())
	if ct, ok := c.(*constraint.Contact); ok {
		a, b := ct.Bodies()
		delete(w.contacts, broadphase.Pair{A: a, B: b})
	}
}

func proxyState(b *body.Body) broadphase.State {
	var s broadphase.State
	if b.IsStatic() {
		s |= broadphase.Static
	}
	if b.IsSleeping() {
		s |= broadphase.Sleeping
	}
	if b.IsFrozen() {
		s |= broadphase.Frozen
	}
	return s
}

// syncProxy pushes the body's box and flags to the broad phase.
func (w *World) syncProxy(b *body.Body) {
	if b.Proxy() == body.NoProxy {
		return
	}
	s := proxyState(b)
	if w.broad.Box(b.Proxy()) == b.AABB() {
		w.broad.SetState(b.Proxy(), s)
		return
	}
	if w.broad.Update(b.Proxy(), b.AABB(), s) {
		w.leftWorld(b)
	}
}

func (w *World) leftWorld(b *body.Body) {
	b.SetFrozen(true)
	w.broad.SetState(b.Proxy(), proxyState(b))
	w.log.Printf("world: body %v left the world at %v, frozen", b.Handle(), b.Position())
	if w.leave != nil {
		w.leave(b)
	}
}

func (w *World) SetMass(h arena.Handle, mass float64, inertia mgl64.Mat3) error {
	b, err := w.mutable(h)
	if err != nil {
		return err
	}
	b.SetMass(mass, inertia)
	b.Wake()
	w.syncProxy(b)
	return nil
}

func (w *World) SetMassFromShape(h arena.Handle, density float64) error {
	b, err := w.mutable(h)
	if err != nil {
		return err
	}
	b.SetMassFromShape(density)
	b.Wake()
	w.syncProxy(b)
	return nil
}

func (w *World) SetShape(h arena.Handle, s shape.Convex) error {
	b, err := w.mutable(h)
	if err != nil {
		return err
	}
	b.SetShape(s)
	b.Wake()
	w.syncProxy(b)
	return nil
}

func (w *World) SetMatrix(h arena.Handle, m mgl64.Mat4) error {
	b, err := w.mutable(h)
	if err != nil {
		return err
	}
	b.SetMatrix(m)
	b.Wake()
	w.syncProxy(b)
	return nil
}

func (w *World) SetVelocity(h arena.Handle, v, omega mgl64.Vec3) error {
	b, err := w.mutable(h)
	if err != nil {
		return err
	}
	b.SetVelocity(v)
	b.SetOmega(omega)
	b.Wake()
	w.syncProxy(b)
	return nil
}

func (w *World) SetSleeping(h arena.Handle, sleep bool) error {
	b, err := w.mutable(h)
	if err != nil {
		return err
	}
	b.SetSleeping(sleep)
	w.syncProxy(b)
	return nil
}

// SetFreeze takes a body out of the simulation, or puts it back.
func (w *World) SetFreeze(h arena.Handle, frozen bool) error {
	b, err := w.mutable(h)
	if err != nil {
		return err
	}
	b.SetFrozen(frozen)
	w.syncProxy(b)
	return nil
}

func (w *World) SetContinuous(h arena.Handle, on bool) error {
	b, err := w.mutable(h)
	if err != nil {
		return err
	}
	b.SetContinuous(on)
	return nil
}

func (w *World) SetAutoSleep(h arena.Handle, on bool) error {
	b, err := w.mutable(h)
	if err != nil {
		return err
	}
	b.SetAutoSleep(on)
	return nil
}

func (w *World) SetMaterial(h arena.Handle, id int) error {
	b, err := w.mutable(h)
	if err != nil {
		return err
	}
	if !w.materials.Valid(id) {
		return errors.Errorf("world: unknown material %d", id)
	}
	b.SetMaterial(id)
	return nil
}

// AttachJoint registers a joint built on bodies of this world. The joint's bodies wake up.
func (w *World) AttachJoint(c constraint.Constraint) (arena.Handle, error) {
	ha, hb := c.Bodies()
	a, errA := w.Body(ha)
	b, errB := w.Body(hb)
	if errA != nil {
		return arena.Nil, errA
	}
	if errB != nil {
		return arena.Nil, errB
	}
	if n := c.RowCount(); n > w.cfg.Capacity.MaxRowsPerConstraint {
		geom.Assert(false, "%s needs %d rows, budget %d", c.Kind(), n, w.cfg.Capacity.MaxRowsPerConstraint)
		return arena.Nil, errors.Wrapf(ErrRowBudget, "%s needs %d rows", c.Kind(), n)
	}
	h := w.constraints.Insert(c)
	c.SetHandle(h)
	if err := w.graph.Attach(c); err != nil {
		w.constraints.Remove(h)
		if errors.Is(err, graph.ErrSelfLink) {
			return arena.Nil, errors.Wrap(ErrSelfConstraint, err.Error())
		}
		return arena.Nil, err
	}
	a.Wake()
	b.Wake()
	w.syncProxy(a)
	w.syncProxy(b)
	return h, nil
}

// DetachJoint removes a joint and wakes its bodies.
func (w *World) DetachJoint(h arena.Handle) error {
	c, ok := w.constraints.Get(h)
	if !ok {
		return errors.Wrapf(ErrStaleHandle, "constraint %v", h)
	}
	if c.Kind() == constraint.KindContact {
		return errors.Errorf("world: constraint %v is a contact", h)
	}
	w.graph.Detach(c)
	w.constraints.Remove(h)
	ha, hb := c.Bodies()
	for _, bh := range []arena.Handle{ha, hb} {
		if b := w.lookup(bh); b != nil {
			b.Wake()
			w.syncProxy(b)
		}
	}
	return nil
}

// EachConstraint visits joints and contacts until fn returns false.
func (w *World) EachConstraint(fn func(constraint.Constraint) bool) {
	w.constraints.Each(func(_ arena.Handle, c constraint.Constraint) bool { return fn(c) })
}

// Constraint resolves a constraint handle.
func (w *World) Constraint(h arena.Handle) (constraint.Constraint, error) {
	c, ok := w.constraints.Get(h)
	if !ok {
		return nil, errors.Wrapf(ErrStaleHandle, "constraint %v", h)
	}
	return c, nil
}

// other resolves an optional second body: arena.Nil means the world body.
func (w *World) other(h arena.Handle) (*body.Body, error) {
	if h.IsNil() {
		return w.sentinel, nil
	}
	return w.Body(h)
}

// BallSocket joins a and b (or a and the world when b is arena.Nil) at a world pivot.
func (w *World) BallSocket(a, b arena.Handle, pivot mgl64.Vec3) (arena.Handle, error) {
	ba, err := w.Body(a)
	if err != nil {
		return arena.Nil, err
	}
	bb, err := w.other(b)
	if err != nil {
		return arena.Nil, err
	}
	return w.AttachJoint(constraint.NewBallSocket(ba, bb, pivot))
}

// Hinge joins a and b (or the world) at a world pivot about a world axis.
func (w *World) Hinge(a, b arena.Handle, pivot, axis mgl64.Vec3) (arena.Handle, error) {
	ba, err := w.Body(a)
	if err != nil {
		return arena.Nil, err
	}
	bb, err := w.other(b)
	if err != nil {
		return arena.Nil, err
	}
	if _, ok := geom.Normalize(axis); !ok {
		return arena.Nil, errors.New("world: hinge axis is zero")
	}
	return w.AttachJoint(constraint.NewHinge(ba, bb, pivot, axis))
}

// Distance keeps the world points pa on a and pb on b (or the world) at their current
// separation.
func (w *World) Distance(a, b arena.Handle, pa, pb mgl64.Vec3) (arena.Handle, error) {
	ba, err := w.Body(a)
	if err != nil {
		return arena.Nil, err
	}
	bb, err := w.other(b)
	if err != nil {
		return arena.Nil, err
	}
	return w.AttachJoint(constraint.NewDistance(ba, bb, pa, pb))
}
