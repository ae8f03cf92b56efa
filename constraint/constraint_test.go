package constraint

import (
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/body"
	"github.com/0x5844/physics-3d/collide"
	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/material"
	"github.com/0x5844/physics-3d/shape"
)

const dt = 1.0 / 60

func sphereAt(t *testing.T, p mgl64.Vec3, mass float64) *body.Body {
	t.Helper()
	s, err := shape.NewSphere(0.5)
	if err != nil {
		t.Fatal(err)
	}
	b := body.New(s, geom.Compose(mgl64.QuatIdent(), p))
	if mass > 0 {
		b.SetMass(mass, mgl64.Ident3())
	}
	return b
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestKindString(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{KindContact, "contact"},
		{KindBallSocket, "ball-socket"},
		{KindHinge, "hinge"},
		{KindDistance, "distance"},
		{Kind(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}

func TestContactRowsRestitution(t *testing.T) {
	a := sphereAt(t, mgl64.Vec3{-0.4, 0, 0}, 1)
	b := sphereAt(t, mgl64.Vec3{0.4, 0, 0}, 1)
	a.SetVelocity(mgl64.Vec3{1, 0, 0})
	b.SetVelocity(mgl64.Vec3{-1, 0, 0})

	pair := material.DefaultPair()
	pair.Restitution = 1
	c := NewContact(a.Handle(), b.Handle(), 4)
	c.Update(&collide.Manifold{
		Normal: mgl64.Vec3{1, 0, 0},
		Points: []collide.Point{{Position: mgl64.Vec3{}, Depth: 0.2}},
	}, pair, 7)
	if c.LastCycle != 7 || c.RowCount() != 3 {
		t.Fatalf("cycle %d rows %d", c.LastCycle, c.RowCount())
	}

	rows := make([]Row, c.RowCount())
	n := c.BuildRows(a, b, DefaultParams(dt), rows)
	if n != 3 {
		t.Fatalf("built %d rows", n)
	}
	normal := rows[0]
	if got := normal.RelativeVelocity(a, b); !near(got, -2, 1e-12) {
		t.Errorf("approach speed %v, want -2", got)
	}
	// bounce at 2 m/s beats the capped penetration correction of 1 m/s
	if !near(normal.Accel, 4/dt, 1e-9) {
		t.Errorf("normal accel %v, want %v", normal.Accel, 4/dt)
	}
	if normal.Low != 0 || !math.IsInf(normal.High, 1) || normal.NormalIndex != NoNormal {
		t.Errorf("normal bounds: %s", spew.Sdump(normal))
	}
	for _, f := range rows[1:3] {
		if f.NormalIndex != 0 || f.Friction != pair.StaticFriction {
			t.Errorf("friction row: %s", spew.Sdump(f))
		}
	}
}

func TestContactPenetrationBias(t *testing.T) {
	a := sphereAt(t, mgl64.Vec3{0, -0.5, 0}, 0)
	b := sphereAt(t, mgl64.Vec3{0, 0.45, 0}, 1)
	c := NewContact(a.Handle(), b.Handle(), 4)
	c.Update(&collide.Manifold{
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []collide.Point{{Position: mgl64.Vec3{0, -0.025, 0}, Depth: 0.05}},
	}, material.DefaultPair(), 1)
	p := DefaultParams(dt)
	rows := make([]Row, 3)
	c.BuildRows(a, b, p, rows)
	want := p.Baumgarte * (0.05 - p.Slop) / dt / dt
	if !near(rows[0].Accel, want, 1e-9) {
		t.Errorf("bias accel %v, want %v", rows[0].Accel, want)
	}
}

func TestCorrectionIsCapped(t *testing.T) {
	p := DefaultParams(dt)
	small := 1e-4
	tests := []struct {
		name string
		err  float64
		want float64
	}{
		{"none", 0, 0},
		{"small", small, p.Baumgarte * small / dt},
		{"deep", 10, p.MaxCorrectionVelocity},
		{"pulled", -10, -p.MaxCorrectionVelocity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.correction(tt.err); !near(got, tt.want, 1e-12) {
				t.Errorf("correction(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestContactWarmStart(t *testing.T) {
	a := sphereAt(t, mgl64.Vec3{}, 0)
	b := sphereAt(t, mgl64.Vec3{0, 1, 0}, 1)
	c := NewContact(a.Handle(), b.Handle(), 4)
	m := &collide.Manifold{
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []collide.Point{{Position: mgl64.Vec3{0, 0.5, 0}, Depth: 0.01}},
	}
	c.Update(m, material.DefaultPair(), 1)
	rows := make([]Row, 3)
	c.BuildRows(a, b, DefaultParams(dt), rows)
	rows[0].Force, rows[1].Force, rows[2].Force = 9.8, 0.5, -0.25
	c.StoreForces(rows)

	m.Points[0].Position = mgl64.Vec3{0.01, 0.5, 0}
	c.Update(m, material.DefaultPair(), 2)
	if got := c.Points[0]; got.NormalForce != 9.8 || got.TangentForce != [2]float64{0.5, -0.25} {
		t.Errorf("forces not carried: %s", spew.Sdump(got))
	}

	m.Points[0].Position = mgl64.Vec3{1, 0.5, 0}
	c.Update(m, material.DefaultPair(), 3)
	if c.NormalForce() != 0 {
		t.Errorf("far point inherited force %v", c.NormalForce())
	}
}

func TestBallSocketCorrection(t *testing.T) {
	a := sphereAt(t, mgl64.Vec3{}, 0)
	b := sphereAt(t, mgl64.Vec3{0, -1, 0}, 1)
	j := NewBallSocket(a, b, mgl64.Vec3{})
	b.SetPosition(mgl64.Vec3{0.1, -1, 0})

	rows := make([]Row, j.RowCount())
	if n := j.BuildRows(a, b, DefaultParams(dt), rows); n != 3 {
		t.Fatalf("built %d rows", n)
	}
	// 0.2*0.1/dt = 1.2 m/s, capped at 1
	if !near(rows[0].Accel, -1/dt, 1e-9) {
		t.Errorf("x accel %v", rows[0].Accel)
	}
	for k := 1; k < 3; k++ {
		if !near(rows[k].Accel, 0, 1e-9) {
			t.Errorf("axis %d accel %v", k, rows[k].Accel)
		}
		if !math.IsInf(rows[k].Low, -1) || !math.IsInf(rows[k].High, 1) {
			t.Errorf("axis %d not bilateral", k)
		}
	}
}

func TestHingeAlignment(t *testing.T) {
	a := sphereAt(t, mgl64.Vec3{}, 0)
	b := sphereAt(t, mgl64.Vec3{1, 0, 0}, 1)
	j := NewHinge(a, b, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, 1})
	p := DefaultParams(dt)
	rows := make([]Row, j.RowCount())

	b.SetRotation(mgl64.QuatRotate(0.3, mgl64.Vec3{0, 0, 1}))
	j.BuildRows(a, b, p, rows)
	for k := 3; k < 5; k++ {
		if !near(rows[k].Accel, 0, 1e-9) {
			t.Errorf("free spin constrained: row %d accel %v", k, rows[k].Accel)
		}
	}

	b.SetRotation(mgl64.QuatRotate(0.05, mgl64.Vec3{1, 0, 0}))
	j.BuildRows(a, b, p, rows)
	got := math.Hypot(rows[3].Accel, rows[4].Accel) * dt
	if !near(got, p.Baumgarte*math.Sin(0.05)/dt, 1e-6) {
		t.Errorf("twist correction %v", got)
	}
}

func TestDistanceStretch(t *testing.T) {
	a := sphereAt(t, mgl64.Vec3{}, 0)
	b := sphereAt(t, mgl64.Vec3{0, -2, 0}, 1)
	j := NewDistance(a, b, mgl64.Vec3{}, mgl64.Vec3{0, -2, 0})
	if j.Length != 2 {
		t.Fatalf("length %v", j.Length)
	}
	b.SetPosition(mgl64.Vec3{0, -2.1, 0})
	rows := make([]Row, 1)
	if n := j.BuildRows(a, b, DefaultParams(dt), rows); n != 1 {
		t.Fatalf("built %d rows", n)
	}
	if !near(rows[0].Accel, -1/dt, 1e-9) {
		t.Errorf("accel %v", rows[0].Accel)
	}
	if j.Collides() {
		t.Error("joined bodies collide by default")
	}
}
