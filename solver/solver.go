// Package solver partitions the constraint graph into islands and, per island, solves the
// constraint rows with projected Gauss-Seidel, integrates the bodies and decides whether the
// island may sleep.
package solver

import (
	"io"
	"log"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/config"
	"github.com/0x5844/physics-3d/constraint"
	"github.com/0x5844/physics-3d/graph"
	"github.com/0x5844/physics-3d/jobs"
	"github.com/0x5844/physics-3d/telemetry"
)

// reactionStripes is the number of locks guarding static-body reaction sums.
const reactionStripes = 64

// Result summarises one solver step.
type Result struct {
	Islands    int
	Rows       int
	Iterations int
}

type Solver struct {
	cfg  *config.Config
	pool *jobs.Pool
	// lock is the world's advisory lock: row pool growth and transform callbacks.
	lock   *sync.Mutex
	tele   *telemetry.SimulationContext
	logger *log.Logger

	rows      []constraint.Row
	local     []int32
	bodySeen  stamps
	jointSeen stamps
	queue     []*body.Body
	lookup    Lookup

	reactions [reactionStripes]sync.Mutex
	scratch   sync.Pool
}

func New(cfg *config.Config, pool *jobs.Pool, lock *sync.Mutex, tele *telemetry.SimulationContext, logger *log.Logger) *Solver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Solver{
		cfg:    cfg,
		pool:   pool,
		lock:   lock,
		tele:   tele,
		logger: logger,
		rows:   make([]constraint.Row, max(cfg.Capacity.Rows, 64)),
		scratch: sync.Pool{
			New: func() any { return &workspace{} },
		},
	}
}

// RowCapacity returns the current size of the shared row pool.
func (s *Solver) RowCapacity() int { return len(s.rows) }

// Params returns the row-builder constants for a step of dt.
func (s *Solver) Params(dt float64) constraint.Params {
	sc := s.cfg.Solver
	return constraint.Params{
		Dt:                    dt,
		Baumgarte:             sc.Baumgarte,
		Slop:                  sc.Slop,
		MaxCorrectionVelocity: sc.MaxCorrectionVelocity,
		RestitutionThreshold:  sc.RestitutionThreshold,
		StaticFrictionSpeed:   sc.StaticFrictionSpeed,
		Damping:               sc.Regularization,
	}
}

// Step solves and integrates every live island. bodies must hold every live body, static ones
// included, since they anchor the row ordering.
func (s *Solver) Step(dt float64, g *graph.Graph, bodies []*body.Body, lookup Lookup) Result {
	s.lookup = lookup
	islands := s.Partition(g, bodies, lookup)
	if len(islands) == 0 {
		return Result{}
	}

	var roots []arena.Handle
	maxIndex := uint32(0)
	for _, b := range bodies {
		if b.IsStatic() {
			roots = append(roots, b.Handle())
		}
		maxIndex = max(maxIndex, b.Handle().Index)
	}
	rank := g.Rank(roots)
	if int(maxIndex) >= len(s.local) {
		s.local = make([]int32, int(maxIndex)+1)
	}

	total := 0
	for _, isl := range islands {
		isl.rowBase = total
		total += isl.rowCount
	}
	s.reserve(total)

	params := s.Params(dt)
	results := make([]Result, len(islands))
	s.pool.RunPhase(len(islands), func(worker, i int) {
		isl := islands[i]
		orderRows(isl, rank)
		results[i] = s.solveIsland(isl, s.rows[isl.rowBase:isl.rowBase+isl.rowCount], params)
	})

	out := Result{Islands: len(islands)}
	for _, r := range results {
		out.Rows += r.Rows
		out.Iterations += r.Iterations
	}
	if s.tele != nil {
		s.tele.AddIslands(out.Islands)
		s.tele.AddRows(out.Rows)
		s.tele.AddIterations(out.Iterations)
	}
	return out
}

// reserve doubles the row pool until it holds n rows.
func (s *Solver) reserve(n int) {
	if n <= len(s.rows) {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	size := len(s.rows)
	for size < n {
		size *= 2
	}
	s.logger.Printf("solver: row pool %d -> %d", len(s.rows), size)
	s.rows = make([]constraint.Row, size)
	if s.tele != nil {
		s.tele.AddGrowth()
	}
}

// slot returns the island-local index of b, or -1 when b does not move.
func (s *Solver) slot(b *body.Body) int32 {
	if b.IsStatic() || b.IsFrozen() {
		return -1
	}
	return s.local[b.Handle().Index]
}

func (s *Solver) solveIsland(isl *Island, rows []constraint.Row, p constraint.Params) Result {
	ws := s.scratch.Get().(*workspace)
	defer s.scratch.Put(ws)
	ws.reset(len(isl.Bodies), len(rows))

	for i, b := range isl.Bodies {
		s.local[b.Handle().Index] = int32(i)
		ws.invMass[i] = b.InvMass()
		ws.invI[i] = b.InvInertiaWorld()
		ws.extLin[i] = b.Force().Mul(b.InvMass())
		ws.extAng[i] = ws.invI[i].Mul3x1(b.Torque())
	}

	n := 0
	for _, c := range isl.Constraints {
		ha, hb := c.Bodies()
		a, b := s.lookup(ha), s.lookup(hb)
		k := c.BuildRows(a, b, p, rows[n:n+c.RowCount()])
		ia, ib := s.slot(a), s.slot(b)
		for r := n; r < n+k; r++ {
			ref := rowRef{a: ia, b: ib, normal: -1}
			if rows[r].NormalIndex >= 0 {
				ref.normal = int32(n + rows[r].NormalIndex)
			}
			ws.refs[r] = ref
		}
		ws.spans = append(ws.spans, span{first: n, count: k})
		n += k
	}
	rows = rows[:n]
	ws.refs = ws.refs[:n]
	ws.diag = ws.diag[:n]
	ws.rhs = ws.rhs[:n]

	sc := s.cfg.Solver
	sweeps := ws.solve(rows, sc.Passes, sc.MaxIterations, sc.Tolerance)

	for k, c := range isl.Constraints {
		sp := ws.spans[k]
		own := rows[sp.first : sp.first+sp.count]
		c.StoreForces(own)
		ha, hb := c.Bodies()
		s.react(s.lookup(ha), s.lookup(hb), own)
	}

	s.integrate(isl, ws, p.Dt)
	s.evaluateSleep(isl)
	return Result{Rows: n, Iterations: sweeps}
}

// react adds each row's force to the reaction sums of both bodies. Static bodies are shared
// between islands, so their sums go through a striped lock.
func (s *Solver) react(a, b *body.Body, rows []constraint.Row) {
	var fa, ta, fb, tb mgl64.Vec3
	for i := range rows {
		f := rows[i].Force
		fa = fa.Add(rows[i].A.Linear.Mul(f))
		ta = ta.Add(rows[i].A.Angular.Mul(f))
		fb = fb.Add(rows[i].B.Linear.Mul(f))
		tb = tb.Add(rows[i].B.Angular.Mul(f))
	}
	s.addReaction(a, fa, ta)
	s.addReaction(b, fb, tb)
}

func (s *Solver) addReaction(b *body.Body, f, t mgl64.Vec3) {
	if !b.IsStatic() {
		b.AddReaction(f, t)
		return
	}
	mu := &s.reactions[b.Handle().Index%reactionStripes]
	mu.Lock()
	b.AddReaction(f, t)
	mu.Unlock()
}

func (s *Solver) integrate(isl *Island, ws *workspace, dt float64) {
	for i, b := range isl.Bodies {
		b.ApplyAcceleration(ws.extLin[i].Add(ws.lin[i]), ws.extAng[i].Add(ws.ang[i]), dt)
		b.IntegratePose(dt)
		b.ClearForces()
		if b.HasTransformCallback() {
			s.lock.Lock()
			b.NotifyTransform()
			s.lock.Unlock()
		}
	}
}
