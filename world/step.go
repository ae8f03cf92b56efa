package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/broadphase"
	"github.com/0x5844/physics-3d/collide"
	"github.com/0x5844/physics-3d/constraint"
	"github.com/0x5844/physics-3d/material"
	"github.com/0x5844/physics-3d/telemetry"
)

// narrowResult is what one worker found for one broad-phase pair.
type narrowResult struct {
	pair     broadphase.Pair
	props    material.Pair
	manifold *collide.Manifold
	touching bool
	skip     bool
}

// Advance moves the simulation forward by dt seconds. It blocks until every phase is done.
func (w *World) Advance(dt float64) telemetry.Snapshot {
	if dt <= 0 {
		return w.tele.Last()
	}
	cycle := w.tele.Begin()

	w.live = w.live[:0]
	w.bodies.Each(func(_ arena.Handle, b *body.Body) bool {
		w.live = append(w.live, b)
		return true
	})

	w.tele.Time(telemetry.PhaseForces, func() { w.applyForces(dt) })

	var pairs []broadphase.Pair
	w.tele.Time(telemetry.PhaseBroad, func() {
		for _, b := range w.live {
			w.syncProxy(b)
		}
		before := w.broad.Growths()
		pairs = w.broad.Pairs(w.jobs)
		for i := before; i < w.broad.Growths(); i++ {
			w.tele.AddGrowth()
			w.log.Printf("world: pair buffer grew to hold %d pairs", len(pairs))
		}
		w.tele.AddPairs(len(pairs))
	})

	w.tele.Time(telemetry.PhaseNarrow, func() {
		w.collide(pairs, cycle)
		w.expireContacts(cycle)
	})

	w.tele.Time(telemetry.PhaseSolve, func() {
		w.starts = w.continuousStarts(w.starts)
		w.solver.Step(dt, w.graph, w.live, w.lookup)
	})

	awake, sleeping := 0, 0
	w.tele.Time(telemetry.PhaseSync, func() {
		w.clampContinuous(w.starts)
		for _, b := range w.live {
			w.syncProxy(b)
			switch {
			case b == w.sentinel || b.IsStatic() || b.IsFrozen():
			case b.IsSleeping():
				sleeping++
			default:
				awake++
			}
		}
	})
	return w.tele.End(w.BodyCount(), awake, sleeping)
}

// applyForces clears last step's reactions and accumulates gravity plus the force callback of
// every moving body.
func (w *World) applyForces(dt float64) {
	g := w.cfg.Gravity
	w.jobs.RunPhase(len(w.live), func(worker, i int) {
		b := w.live[i]
		b.ClearReaction()
		if b.IsStatic() || !b.IsActive() {
			return
		}
		b.AddForce(g.Mul(b.Mass()))
		b.ApplyForceCallback(dt, worker)
	})
}

func (w *World) collideOptions() collide.Options {
	return collide.Options{
		MaxPoints:          w.cfg.Capacity.MaxContactPoints,
		MaxPolygonVertices: w.cfg.Narrow.MaxPolygonVertices,
		FeatureThickness:   w.cfg.Narrow.FeatureThickness,
	}
}

// collide runs the narrow phase over pairs on the pool, then creates or refreshes contacts
// serially.
func (w *World) collide(pairs []broadphase.Pair, cycle uint64) {
	opt := w.collideOptions()
	results := make([]narrowResult, len(pairs))

	w.jobs.RunPhase(len(pairs), func(_, i int) {
		p := pairs[i]
		r := &results[i]
		r.pair = p
		a, b := w.lookup(p.A), w.lookup(p.B)
		if a == nil || b == nil || a.Shape() == nil || b.Shape() == nil {
			r.skip = true
			return
		}
		r.props = w.materials.Lookup(a.Material(), b.Material())
		if !r.props.Collidable || !w.jointsCollide(p) {
			r.skip = true
			return
		}
		if _, known := w.contacts[p]; !known && r.props.OnOverlap != nil && !r.props.OnOverlap(a, b) {
			r.skip = true
			return
		}
		m := w.narrow.GetManifold()
		r.manifold = m
		r.touching = w.narrow.Collide(
			collide.Object{Shape: a.Shape(), Pose: a.Matrix()},
			collide.Object{Shape: b.Shape(), Pose: b.Matrix()},
			opt, m)
		if r.touching && r.props.OnContact != nil && !r.props.OnContact(a, b, m) {
			r.touching = false
		}
	})

	made := 0
	for i := range results {
		r := &results[i]
		if r.skip {
			continue
		}
		c := w.contacts[r.pair]
		if c == nil {
			if !r.touching {
				w.narrow.PutManifold(r.manifold)
				continue
			}
			c = constraint.NewContact(r.pair.A, r.pair.B, w.cfg.Capacity.MaxContactPoints)
			c.SetHandle(w.constraints.Insert(c))
			if err := w.graph.Attach(c); err != nil {
				w.constraints.Remove(c.Handle())
				w.narrow.PutManifold(r.manifold)
				continue
			}
			w.contacts[r.pair] = c
			if w.verbose {
				w.log.Printf("world: contact %v-%v created", r.pair.A, r.pair.B)
			}
		}
		if r.touching {
			c.Update(r.manifold, r.props, cycle)
			made++
		} else {
			c.Clear()
			c.LastCycle = cycle
		}
		w.narrow.PutManifold(r.manifold)
	}
	w.tele.AddContacts(made)
}

// jointsCollide reports false when a joint between the pair disables collision.
func (w *World) jointsCollide(p broadphase.Pair) bool {
	ok := true
	w.graph.Between(p.A, p.B, func(c constraint.Constraint) bool {
		if !c.Collides() {
			ok = false
		}
		return ok
	})
	return ok
}

// expireContacts destroys contacts the broad phase stopped reporting, unless neither body can
// move, in which case the contact is kept for when they wake.
func (w *World) expireContacts(cycle uint64) {
	for p, c := range w.contacts {
		if c.LastCycle == cycle {
			continue
		}
		a, b := w.lookup(p.A), w.lookup(p.B)
		if a != nil && b != nil && resting(a) && resting(b) {
			continue
		}
		w.graph.Detach(c)
		w.constraints.Remove(c.Handle())
		delete(w.contacts, p)
		if w.verbose {
			w.log.Printf("world: contact %v-%v destroyed", p.A, p.B)
		}
	}
}

func resting(b *body.Body) bool {
	return !b.IsFrozen() && (b.IsStatic() || b.IsSleeping())
}

// continuousStarts records the center of mass of every body that asked for continuous
// collision, or NaN for the others.
func (w *World) continuousStarts(out []mgl64.Vec3) []mgl64.Vec3 {
	out = out[:0]
	nan := math.NaN()
	for _, b := range w.live {
		if b.IsContinuous() && b.IsActive() && !b.IsStatic() && b.Shape() != nil {
			out = append(out, b.CenterOfMass())
		} else {
			out = append(out, mgl64.Vec3{nan, nan, nan})
		}
	}
	return out
}

// clampContinuous sweeps every continuous body from its start position to where the solver
// left it and pulls it back to the first impact. The velocity component into the obstacle is
// removed and the transform callback sees the clamped pose.
func (w *World) clampContinuous(starts []mgl64.Vec3) {
	for i, b := range w.live {
		start := starts[i]
		if math.IsNaN(start[0]) {
			continue
		}
		delta := b.CenterOfMass().Sub(start)
		if delta.LenSqr() < 1e-12 {
			continue
		}
		pose := b.Matrix()
		pose[12] -= delta[0]
		pose[13] -= delta[1]
		pose[14] -= delta[2]
		moving := collide.Object{Shape: b.Shape(), Pose: pose}
		target := b.Position()

		var normal mgl64.Vec3
		frac := w.broad.ConvexCast(b.AABB().Translate(delta.Mul(-1)), delta, func(h arena.Handle, closest float64) float64 {
			o := w.lookup(h)
			if o == nil || o == b || o.Shape() == nil {
				return closest
			}
			hit, ok := collide.ConvexCast(moving, target, collide.Object{Shape: o.Shape(), Pose: o.Matrix()})
			if !ok || hit.Fraction <= 0 || hit.Fraction >= closest {
				return closest
			}
			normal = hit.Normal
			return hit.Fraction
		})
		if frac >= 1 {
			continue
		}
		b.SetPosition(b.Position().Sub(delta.Mul(1 - frac)))
		if vn := b.Velocity().Dot(normal); vn > 0 {
			b.SetVelocity(b.Velocity().Sub(normal.Mul(vn)))
		}
		if b.HasTransformCallback() {
			w.lock.Lock()
			b.NotifyTransform()
			w.lock.Unlock()
		}
	}
}
