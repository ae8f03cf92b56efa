package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/constraint"
	"github.com/0x5844/physics-3d/geom"
)

// rowRef ties a row to island-local body slots; -1 stands for a body that does not move.
type rowRef struct {
	a, b   int32
	normal int32
}

// span is the slice of island rows one constraint wrote.
type span struct {
	first, count int
}

// workspace is the per-island scratch of one solve.
type workspace struct {
	invMass []float64
	invI    []mgl64.Mat3
	extLin  []mgl64.Vec3
	extAng  []mgl64.Vec3
	lin     []mgl64.Vec3
	ang     []mgl64.Vec3

	refs  []rowRef
	diag  []float64
	rhs   []float64
	spans []span
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	s = s[:n]
	clear(s)
	return s
}

func (ws *workspace) reset(bodies, rows int) {
	ws.invMass = resize(ws.invMass, bodies)
	ws.invI = resize(ws.invI, bodies)
	ws.extLin = resize(ws.extLin, bodies)
	ws.extAng = resize(ws.extAng, bodies)
	ws.lin = resize(ws.lin, bodies)
	ws.ang = resize(ws.ang, bodies)
	ws.refs = resize(ws.refs, rows)
	ws.diag = resize(ws.diag, rows)
	ws.rhs = resize(ws.rhs, rows)
	ws.spans = ws.spans[:0]
}

// response is M^-1 J^T for one side of a row, per unit force.
func (ws *workspace) response(slot int32, j constraint.Jacobian) (mgl64.Vec3, mgl64.Vec3) {
	if slot < 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	return j.Linear.Mul(ws.invMass[slot]), ws.invI[slot].Mul3x1(j.Angular)
}

// accel evaluates J*a for the given per-body accelerations.
func (ws *workspace) accel(i int, r *constraint.Row, lin, ang []mgl64.Vec3) float64 {
	ref := ws.refs[i]
	v := 0.0
	if ref.a >= 0 {
		v += r.A.Dot(lin[ref.a], ang[ref.a])
	}
	if ref.b >= 0 {
		v += r.B.Dot(lin[ref.b], ang[ref.b])
	}
	return v
}

// prepare computes each row's effective mass diagonal and its right-hand side with the
// external accelerations already removed.
func (ws *workspace) prepare(rows []constraint.Row) {
	for i := range rows {
		r := &rows[i]
		ref := ws.refs[i]
		la, aa := ws.response(ref.a, r.A)
		lb, ab := ws.response(ref.b, r.B)
		ws.diag[i] = r.A.Dot(la, aa) + r.B.Dot(lb, ab) + r.Damping
		ws.rhs[i] = r.Accel - ws.accel(i, r, ws.extLin, ws.extAng)
	}
}

func (ws *workspace) apply(i int, r *constraint.Row, df float64) {
	if df == 0 {
		return
	}
	ref := ws.refs[i]
	if ref.a >= 0 {
		l, a := ws.response(ref.a, r.A)
		ws.lin[ref.a] = ws.lin[ref.a].Add(l.Mul(df))
		ws.ang[ref.a] = ws.ang[ref.a].Add(a.Mul(df))
	}
	if ref.b >= 0 {
		l, a := ws.response(ref.b, r.B)
		ws.lin[ref.b] = ws.lin[ref.b].Add(l.Mul(df))
		ws.ang[ref.b] = ws.ang[ref.b].Add(a.Mul(df))
	}
}

// rebuild recomputes the constraint accelerations from the current forces of every row.
func (ws *workspace) rebuild(rows []constraint.Row) {
	clear(ws.lin)
	clear(ws.ang)
	for i := range rows {
		ws.apply(i, &rows[i], rows[i].Force)
	}
}

func (ws *workspace) bounds(rows []constraint.Row, i int) (float64, float64) {
	r := &rows[i]
	if n := ws.refs[i].normal; n >= 0 {
		limit := r.Friction * math.Abs(rows[n].Force)
		return -limit, limit
	}
	return r.Low, r.High
}

// sweep runs one Gauss-Seidel pass over the active rows. With remove set it stops at the
// first row that hits a bound and returns its index; otherwise clamped is -1. worst is the
// largest residual among rows that did not clamp.
func (ws *workspace) sweep(rows []constraint.Row, remove bool) (worst float64, clamped int) {
	for i := range rows {
		r := &rows[i]
		if !r.Active || ws.diag[i] <= 0 {
			continue
		}
		lo, hi := ws.bounds(rows, i)
		res := ws.rhs[i] - ws.accel(i, r, ws.lin, ws.ang)
		f := r.Force + res/ws.diag[i]
		hit := f < lo || f > hi
		f = geom.Clamp(f, lo, hi)
		ws.apply(i, r, f-r.Force)
		r.Force = f
		if !hit {
			worst = math.Max(worst, math.Abs(res))
			continue
		}
		if remove {
			return worst, i
		}
	}
	return worst, -1
}

// solve runs the configured passes of projected Gauss-Seidel. Each pass re-activates every
// row; a row that reaches a bound is switched off, the accelerations are rebuilt from the
// current forces and the sweep starts over. It returns the number of full sweeps.
func (ws *workspace) solve(rows []constraint.Row, passes, maxSweeps int, tolerance float64) int {
	ws.prepare(rows)
	sweeps := 0
	for pass := 0; pass < passes; pass++ {
		for i := range rows {
			rows[i].Active = true
		}
		ws.rebuild(rows)
		removed := 0
		for n := 0; n < maxSweeps; {
			worst, clamped := ws.sweep(rows, removed < len(rows))
			if clamped >= 0 {
				rows[clamped].Active = false
				removed++
				ws.rebuild(rows)
				continue
			}
			n++
			sweeps++
			if worst < tolerance {
				break
			}
		}
	}
	return sweeps
}
