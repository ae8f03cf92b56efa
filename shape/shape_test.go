package shape

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/geom"
)

func mustBox(t *testing.T, half mgl64.Vec3) *Polytope {
	t.Helper()
	b, err := NewBox(half)
	if err != nil {
		t.Fatalf("NewBox(%v): %v", half, err)
	}
	return b
}

func fibonacciSphere(n int, radius float64) []mgl64.Vec3 {
	pts := make([]mgl64.Vec3, n)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := range pts {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		th := golden * float64(i)
		pts[i] = mgl64.Vec3{r * math.Cos(th), y, r * math.Sin(th)}.Mul(radius)
	}
	return pts
}

func randomDir(rng *rand.Rand) mgl64.Vec3 {
	for {
		d := mgl64.Vec3{rng.Float64()*2 - 1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}
		if n, ok := geom.Normalize(d); ok {
			return n
		}
	}
}

func TestBoxTopology(t *testing.T) {
	b := mustBox(t, mgl64.Vec3{1, 2, 3})
	if b.VertexCount() != 8 || b.FaceCount() != 6 || b.EdgeCount() != 12 {
		t.Errorf("box has V=%d F=%d E=%d, want 8/6/12", b.VertexCount(), b.FaceCount(), b.EdgeCount())
	}
	for i := 0; i < b.FaceCount(); i++ {
		pl := b.FacePlane(i)
		for j := 0; j < b.VertexCount(); j++ {
			if d := pl.Distance(b.Vertex(j)); d > 1e-12 {
				t.Errorf("vertex %d lies %v in front of face %d", j, d, i)
			}
		}
	}
}

func TestNewBoxRejectsFlat(t *testing.T) {
	if _, err := NewBox(mgl64.Vec3{1, 0, 1}); err == nil {
		t.Error("NewBox accepted a zero extent")
	}
}

func TestConstructorErrorsCarryStack(t *testing.T) {
	tetra := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	tests := []struct {
		name  string
		build func() error
		frame string
	}{
		{"sphere", func() error { _, err := NewSphere(-1); return err }, "shape.NewSphere"},
		{"capsule", func() error { _, err := NewCapsule(0, 1); return err }, "shape.NewCapsule"},
		{"few faces", func() error {
			_, err := newPolytope(tetra, [][]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}})
			return err
		}, "shape.newPolytope"},
		{"shared edge", func() error {
			_, err := newPolytope(tetra, [][]int{{0, 2, 1}, {0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}})
			return err
		}, "shape.newPolytope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()
			if err == nil {
				t.Fatal("no error")
			}
			if trace := fmt.Sprintf("%+v", err); !strings.Contains(trace, tt.frame) {
				t.Errorf("error has no stack through %s:\n%s", tt.frame, trace)
			}
		})
	}
}

func TestConvexHullDropsInnerPoints(t *testing.T) {
	pts := []mgl64.Vec3{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
		{0, 0, 0}, {0.2, -0.3, 0.1},
		{0, 0, 1},
		{1, 0, -1},
		{1, 1, 1},
	}
	h, err := NewConvexHull(pts)
	if err != nil {
		t.Fatal(err)
	}
	if h.VertexCount() != 8 || h.FaceCount() != 6 {
		t.Errorf("hull has V=%d F=%d, want 8/6", h.VertexCount(), h.FaceCount())
	}
}

func TestConvexHullRejectsCoplanar(t *testing.T) {
	pts := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}
	if _, err := NewConvexHull(pts); err == nil {
		t.Error("coplanar points produced a hull")
	}
}

func TestSupportMatchesBruteForce(t *testing.T) {
	h, err := NewConvexHull(fibonacciSphere(48, 2))
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		d := randomDir(rng)
		best := math.Inf(-1)
		for v := 0; v < h.VertexCount(); v++ {
			best = math.Max(best, h.Vertex(v).Dot(d))
		}
		if got := h.Support(d).Dot(d); math.Abs(got-best) > 1e-12 {
			t.Fatalf("support along %v = %v, brute force %v", d, got, best)
		}
	}
}

func TestRayCastUnitBox(t *testing.T) {
	// Half extent 1: the length-20 segment enters at z=-1 and leaves at z=1.
	const half = 1.0
	b := mustBox(t, mgl64.Vec3{half, half, half})
	hit, ok := b.RayCast(mgl64.Vec3{0, 0, -10}, mgl64.Vec3{0, 0, 10})
	if !ok {
		t.Fatal("segment through the box missed")
	}
	if math.Abs(hit.Fraction-0.45) > 1e-12 || math.Abs(hit.Exit-0.55) > 1e-12 {
		t.Errorf("entry/exit = %v/%v, want 0.45/0.55", hit.Fraction, hit.Exit)
	}
	if !hit.Normal.ApproxEqual(mgl64.Vec3{0, 0, -1}) {
		t.Errorf("normal = %v, want (0,0,-1)", hit.Normal)
	}
}

func TestRayCastMisses(t *testing.T) {
	b := mustBox(t, mgl64.Vec3{1, 1, 1})
	tests := []struct {
		name   string
		p0, p1 mgl64.Vec3
	}{
		{"beside", mgl64.Vec3{2, 0, -10}, mgl64.Vec3{2, 0, 10}},
		{"short", mgl64.Vec3{0, 0, -10}, mgl64.Vec3{0, 0, -5}},
		{"inside", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 10}},
		{"away", mgl64.Vec3{0, 0, -3}, mgl64.Vec3{0, 0, -10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if hit, ok := b.RayCast(tt.p0, tt.p1); ok {
				t.Errorf("unexpected hit %s", spew.Sdump(hit))
			}
		})
	}
}

func TestGJKRayMatchesPlaneClipping(t *testing.T) {
	h, err := NewConvexHull(fibonacciSphere(40, 1))
	if err != nil {
		t.Fatal(err)
	}
	if h.FaceCount() <= CheapFaceCount {
		t.Fatalf("hull has only %d faces", h.FaceCount())
	}
	rays := [][2]mgl64.Vec3{
		{{0.1, 0.2, -10}, {0.1, 0.2, 10}},
		{{-5, 0.3, 0.1}, {5, -0.2, 0}},
		{{3, 3, 3}, {-3, -3, -2}},
	}
	for _, r := range rays {
		want, okWant := h.clipRay(r[0], r[1])
		got, okGot := h.RayCast(r[0], r[1])
		if okWant != okGot {
			t.Fatalf("ray %v: clip hit=%v gjk hit=%v", r, okWant, okGot)
		}
		if math.Abs(want.Fraction-got.Fraction) > 1e-5 {
			t.Errorf("ray %v: gjk fraction %v, clip fraction %v", r, got.Fraction, want.Fraction)
		}
		if math.Abs(want.Exit-got.Exit) > 1e-5 || got.Exit <= got.Fraction {
			t.Errorf("ray %v: gjk exit %v, clip exit %v", r, got.Exit, want.Exit)
		}
		if got.Normal.Dot(r[1].Sub(r[0])) >= 0 {
			t.Errorf("ray %v: normal %v does not face the ray", r, got.Normal)
		}
	}
}

func TestSphereRayCast(t *testing.T) {
	s, _ := NewSphere(1)
	hit, ok := s.RayCast(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{5, 0, 0})
	if !ok || math.Abs(hit.Fraction-0.4) > 1e-12 || !hit.Normal.ApproxEqual(mgl64.Vec3{-1, 0, 0}) {
		t.Errorf("hit = %+v ok=%v", hit, ok)
	}
}

func TestCapsuleRayCast(t *testing.T) {
	c, _ := NewCapsule(0.5, 1)
	tests := []struct {
		name   string
		p0, p1 mgl64.Vec3
		want   float64
		exit   float64
	}{
		{"side", mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{5, 0, 0}, 0.45, 0.55},
		{"cap", mgl64.Vec3{0, -5, 0}, mgl64.Vec3{0, 5, 0}, 0.35, 0.65},
		{"ends inside", mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{0, 0, 0}, 0.9, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := c.RayCast(tt.p0, tt.p1)
			if !ok {
				t.Fatal("missed")
			}
			if math.Abs(hit.Fraction-tt.want) > 1e-3 {
				t.Errorf("fraction = %v, want %v", hit.Fraction, tt.want)
			}
			if math.Abs(hit.Exit-tt.exit) > 1e-3 {
				t.Errorf("exit = %v, want %v", hit.Exit, tt.exit)
			}
		})
	}
}

func TestClipPlaneBox(t *testing.T) {
	b := mustBox(t, mgl64.Vec3{1, 1, 1})
	pl := geom.Plane{Normal: mgl64.Vec3{0, 1, 0}, D: 0.5}
	poly := b.ClipPlane(pl, 8, nil)
	if len(poly) != 4 {
		t.Fatalf("cross-section has %d points: %v", len(poly), poly)
	}
	for _, p := range poly {
		if math.Abs(p[1]-0.5) > 1e-12 || math.Abs(math.Abs(p[0])-1) > 1e-12 || math.Abs(math.Abs(p[2])-1) > 1e-12 {
			t.Errorf("unexpected corner %v", p)
		}
	}
	if polygonNormal(poly).Dot(pl.Normal) <= 0 {
		t.Error("cross-section is not counter-clockwise around the plane normal")
	}
}

func TestClipPlaneReducesVertices(t *testing.T) {
	b := mustBox(t, mgl64.Vec3{1, 1, 1})
	n := mgl64.Vec3{1, 1, 1}.Normalize()
	hex := b.ClipPlane(geom.Plane{Normal: n}, 8, nil)
	if len(hex) != 6 {
		t.Fatalf("diagonal cut has %d points, want 6", len(hex))
	}
	quad := b.ClipPlane(geom.Plane{Normal: n}, 4, nil)
	if len(quad) != 4 {
		t.Errorf("reduced cut has %d points, want 4", len(quad))
	}
}

func TestClipPlaneMissesShape(t *testing.T) {
	b := mustBox(t, mgl64.Vec3{1, 1, 1})
	if poly := b.ClipPlane(geom.Plane{Normal: geom.UnitY, D: 2}, 8, nil); len(poly) != 0 {
		t.Errorf("plane outside the box produced %v", poly)
	}
	s, _ := NewSphere(1)
	if poly := s.ClipPlane(geom.Plane{Normal: geom.UnitY, D: 0}, 8, nil); len(poly) != 8 {
		t.Errorf("sphere equator has %d points, want 8", len(poly))
	}
}

func TestMassProperties(t *testing.T) {
	b := mustBox(t, mgl64.Vec3{1, 1, 1})
	mp := b.MassProperties(2)
	if math.Abs(mp.Volume-8) > 1e-9 || math.Abs(mp.Mass-16) > 1e-9 {
		t.Errorf("volume/mass = %v/%v, want 8/16", mp.Volume, mp.Mass)
	}
	want := 16.0 * 2 / 3
	for i := 0; i < 3; i++ {
		if math.Abs(mp.Inertia.At(i, i)-want) > 1e-9 {
			t.Errorf("I[%d][%d] = %v, want %v", i, i, mp.Inertia.At(i, i), want)
		}
	}
	if mp.Center.Len() > 1e-12 {
		t.Errorf("center = %v", mp.Center)
	}

	var shifted []mgl64.Vec3
	for i := 0; i < b.VertexCount(); i++ {
		shifted = append(shifted, b.Vertex(i).Add(mgl64.Vec3{1, 2, 3}))
	}
	h, err := NewConvexHull(shifted)
	if err != nil {
		t.Fatal(err)
	}
	hm := h.MassProperties(2)
	if !hm.Center.ApproxEqualThreshold(mgl64.Vec3{1, 2, 3}, 1e-9) {
		t.Errorf("hull center = %v", hm.Center)
	}
	if !hm.Inertia.ApproxEqualThreshold(mp.Inertia, 1e-9) {
		t.Errorf("hull inertia %v differs from box %v", hm.Inertia, mp.Inertia)
	}

	s, _ := NewSphere(2)
	sm := s.MassProperties(1)
	if math.Abs(sm.Inertia.At(0, 0)-0.4*sm.Mass*4) > 1e-9 {
		t.Errorf("sphere inertia = %v", sm.Inertia)
	}
}

func TestAABBUnderRotation(t *testing.T) {
	b := mustBox(t, mgl64.Vec3{1, 1, 1})
	m := geom.Compose(mgl64.QuatRotate(math.Pi/4, geom.UnitY), mgl64.Vec3{5, 0, 0})
	box := b.AABB(m)
	r := math.Sqrt2
	want := geom.NewAABB(mgl64.Vec3{5 - r, -1, -r}, mgl64.Vec3{5 + r, 1, r})
	if !box.Min.ApproxEqualThreshold(want.Min, 1e-9) || !box.Max.ApproxEqualThreshold(want.Max, 1e-9) {
		t.Errorf("AABB = %v, want %v", box, want)
	}
}
