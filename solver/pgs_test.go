package solver

import (
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/collide"
	"github.com/0x5844/physics-3d/constraint"
	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/material"
)

// linearRow constrains the single test body along dir with the given bounds and target.
func linearRow(dir mgl64.Vec3, lo, hi, accel float64) constraint.Row {
	return constraint.Row{
		A:           constraint.Jacobian{Linear: dir},
		Low:         lo,
		High:        hi,
		NormalIndex: constraint.NoNormal,
		Accel:       accel,
		Active:      true,
	}
}

// unitWorkspace holds one body of unit mass pulled by ext. normals maps a row to the row
// bounding its friction, or -1.
func unitWorkspace(rows []constraint.Row, ext mgl64.Vec3, normals ...int32) *workspace {
	ws := &workspace{}
	ws.reset(1, len(rows))
	ws.invMass[0] = 1
	ws.invI[0] = mgl64.Ident3()
	ws.extLin[0] = ext
	for i := range rows {
		ws.refs[i] = rowRef{a: 0, b: -1, normal: -1}
		if i < len(normals) {
			ws.refs[i].normal = normals[i]
		}
	}
	return ws
}

// boundedThenContact is a row with a finite force box ahead of a unilateral one. Both push the
// body along +X and the first clamps on the first sweep.
func boundedThenContact() []constraint.Row {
	return []constraint.Row{
		linearRow(mgl64.Vec3{1, 1, 0}, -2, 2, 10),
		linearRow(mgl64.Vec3{1, 0, 0}, 0, math.Inf(1), 0),
	}
}

func TestSweepStopsAtFirstClamp(t *testing.T) {
	tests := []struct {
		name    string
		remove  bool
		clamped int
		worst   float64
		forces  [2]float64
	}{
		{"remove", true, 0, 0, [2]float64{2, 0}},
		{"keep going", false, -1, 8, [2]float64{2, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := boundedThenContact()
			ws := unitWorkspace(rows, mgl64.Vec3{-10, 0, 0})
			ws.prepare(rows)
			ws.rebuild(rows)
			worst, clamped := ws.sweep(rows, tt.remove)
			if clamped != tt.clamped || worst != tt.worst {
				t.Errorf("sweep = (%v, %d), want (%v, %d)", worst, clamped, tt.worst, tt.clamped)
			}
			if got := [2]float64{rows[0].Force, rows[1].Force}; got != tt.forces {
				t.Errorf("forces %v, want %v", got, tt.forces)
			}
		})
	}
}

func TestSolveRemovesClampedRowAndRestarts(t *testing.T) {
	tests := []struct {
		name   string
		passes int
		sweeps int
	}{
		// pass one: clamp, restart, two sweeps to converge
		{"one pass", 1, 2},
		// pass two re-activates the bounded row, which clamps again, then one sweep
		{"two passes", 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := boundedThenContact()
			ws := unitWorkspace(rows, mgl64.Vec3{-10, 0, 0})
			sweeps := ws.solve(rows, tt.passes, 16, 1e-9)
			if sweeps != tt.sweeps {
				t.Errorf("sweeps %d, want %d", sweeps, tt.sweeps)
			}
			if rows[0].Force != 2 || rows[1].Force != 8 {
				t.Errorf("forces %v %v, want 2 8", rows[0].Force, rows[1].Force)
			}
			if rows[0].Active {
				t.Error("clamped row still active at the end of the pass")
			}
			if !rows[1].Active {
				t.Error("free row was switched off")
			}
			// accelerations are rebuilt from the solved forces
			if want := (mgl64.Vec3{10, 2, 0}); ws.lin[0] != want {
				t.Errorf("constraint acceleration %v, want %v", ws.lin[0], want)
			}
		})
	}
}

func TestSolveWithoutClampsCountsEverySweep(t *testing.T) {
	rows := []constraint.Row{
		linearRow(mgl64.Vec3{1, 0, 0}, 0, math.Inf(1), 0),
		linearRow(mgl64.Vec3{0, 1, 0}, math.Inf(-1), math.Inf(1), 10),
	}
	ws := unitWorkspace(rows, mgl64.Vec3{-10, 0, 0})
	// the first sweep solves both rows exactly, the second sees no residual
	if sweeps := ws.solve(rows, 1, 16, 1e-9); sweeps != 2 {
		t.Errorf("sweeps %d, want 2", sweeps)
	}
	for i := range rows {
		if !rows[i].Active {
			t.Errorf("row %d switched off without clamping", i)
		}
	}
	ws.rebuild(rows)
	for i := range rows {
		if res := ws.rhs[i] - ws.accel(i, &rows[i], ws.lin, ws.ang); math.Abs(res) > 1e-6 {
			t.Errorf("row %d residual %v", i, res)
		}
	}
}

func TestSolveStopsAtSweepLimit(t *testing.T) {
	rows := boundedThenContact()
	ws := unitWorkspace(rows, mgl64.Vec3{-10, 0, 0})
	if sweeps := ws.solve(rows, 3, 1, 1e-9); sweeps != 3 {
		t.Errorf("sweeps %d, want one per pass", sweeps)
	}
}

func TestFrictionBoundFollowsNormalForce(t *testing.T) {
	tests := []struct {
		name   string
		normal float64
		mu     float64
		want   float64
	}{
		{"resting", 10, 0.5, 5},
		{"light", 4, 0.5, 2},
		{"negative normal", -4, 0.5, 2},
		{"no load", 0, 0.5, 0},
		{"frictionless", 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			friction := linearRow(mgl64.Vec3{1, 0, 0}, math.Inf(-1), math.Inf(1), 0)
			friction.Friction = tt.mu
			rows := []constraint.Row{linearRow(mgl64.Vec3{0, 1, 0}, 0, math.Inf(1), 0), friction}
			ws := unitWorkspace(rows, mgl64.Vec3{}, -1, 0)
			rows[0].Force = tt.normal
			lo, hi := ws.bounds(rows, 1)
			if lo != -tt.want || hi != tt.want {
				t.Errorf("bounds [%v, %v], want ±%v", lo, hi, tt.want)
			}
			if lo, hi := ws.bounds(rows, 0); lo != 0 || !math.IsInf(hi, 1) {
				t.Errorf("normal row bounds [%v, %v]", lo, hi)
			}
		})
	}
}

func TestFrictionClampsAtSolvedNormalForce(t *testing.T) {
	friction := linearRow(mgl64.Vec3{1, 0, 0}, math.Inf(-1), math.Inf(1), 20)
	friction.Friction = 0.5
	rows := []constraint.Row{linearRow(mgl64.Vec3{0, 1, 0}, 0, math.Inf(1), 0), friction}
	ws := unitWorkspace(rows, mgl64.Vec3{0, -10, 0}, -1, 0)
	ws.solve(rows, 1, 16, 1e-9)
	if rows[0].Force != 10 {
		t.Errorf("normal force %v, want 10", rows[0].Force)
	}
	if rows[1].Force != 5 || rows[1].Active {
		t.Errorf("friction force %v active=%v, want 5 clamped", rows[1].Force, rows[1].Active)
	}
}

func TestSlidingBodyDeceleratesAtKineticFriction(t *testing.T) {
	r := newRig(t, nil)
	ground := r.add(mgl64.Vec3{0, -0.5, 0}, 0)
	block := r.add(mgl64.Vec3{0, 0.5, 0}, 2)
	// no rotation, so friction only slows the body down
	block.SetMass(2, mgl64.Mat3{})

	up := mgl64.Vec3{0, 1, 0}
	along, _ := geom.TangentBasis(up)
	const v0 = 5.0
	block.SetVelocity(along.Mul(v0))

	pair := material.DefaultPair()
	pair.Restitution = 0
	pair.StaticFriction = 0.6
	pair.KineticFriction = 0.4
	c := constraint.NewContact(ground.Handle(), block.Handle(), 4)
	c.Update(&collide.Manifold{Normal: up, Points: []collide.Point{{Position: mgl64.Vec3{}, Depth: r.cfg.Solver.Slop}}}, pair, 1)
	r.attach(c)

	const steps = 30
	for i := 0; i < steps; i++ {
		r.step(block)
	}
	v := block.Velocity()
	decel := (v0 - v.Dot(along)) / (steps * dt)
	if want := 0.4 * 9.81; math.Abs(decel-want) > 1e-4 {
		t.Errorf("deceleration %v, want %v (%s)", decel, want, spew.Sdump(v))
	}
	if math.Abs(v[1]) > 1e-6 {
		t.Errorf("block left the ground: %v", v)
	}
}
