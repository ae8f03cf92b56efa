package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name          string
		v, lo, hi, ok float64
	}{
		{"inside", 0.5, 0, 1, 0.5},
		{"below", -2, 0, 1, 0},
		{"above", 3, 0, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.ok {
				t.Errorf("Clamp(%v) = %v, want %v", tt.v, got, tt.ok)
			}
		})
	}
	if got := Clamp(7, 1, 5); got != 5 {
		t.Errorf("Clamp int = %d, want 5", got)
	}
}

func TestTangentBasis(t *testing.T) {
	normals := []mgl64.Vec3{
		UnitX, UnitY, UnitZ,
		mgl64.Vec3{1, 1, 1}.Normalize(),
		mgl64.Vec3{-0.3, 0.1, -0.9}.Normalize(),
	}
	for _, n := range normals {
		t0, t1 := TangentBasis(n)
		if !IsUnit(t0) || !IsUnit(t1) {
			t.Errorf("TangentBasis(%v) not unit: %v %v", n, t0, t1)
		}
		if math.Abs(t0.Dot(n)) > 1e-9 || math.Abs(t1.Dot(n)) > 1e-9 || math.Abs(t0.Dot(t1)) > 1e-9 {
			t.Errorf("TangentBasis(%v) not orthogonal: %v %v", n, t0, t1)
		}
	}
}

func TestNormalizeZero(t *testing.T) {
	if _, ok := Normalize(mgl64.Vec3{}); ok {
		t.Error("Normalize(0) should report failure")
	}
	v, ok := Normalize(mgl64.Vec3{0, 3, 4})
	if !ok || !v.ApproxEqualThreshold(mgl64.Vec3{0, 0.6, 0.8}, 1e-12) {
		t.Errorf("Normalize = %v, %v", v, ok)
	}
}

func TestSkewMatchesCross(t *testing.T) {
	v := mgl64.Vec3{1, -2, 3}
	w := mgl64.Vec3{0.5, 4, -1}
	if got, want := Skew(v).Mul3x1(w), v.Cross(w); !got.ApproxEqualThreshold(want, 1e-12) {
		t.Errorf("Skew(v)*w = %v, want %v", got, want)
	}
}

func TestSegmentFractionsUnitBox(t *testing.T) {
	box := NewAABB(mgl64.Vec3{-0.5, -0.5, -0.5}, mgl64.Vec3{0.5, 0.5, 0.5})
	tmin, tmax, ok := box.SegmentFractions(mgl64.Vec3{0, 0, -10}, mgl64.Vec3{0, 0, 10})
	if !ok {
		t.Fatal("segment should hit the box")
	}
	if math.Abs(tmin-0.475) > 1e-12 || math.Abs(tmax-0.525) > 1e-12 {
		t.Errorf("fractions = %v, %v", tmin, tmax)
	}
	if _, _, ok := box.SegmentFractions(mgl64.Vec3{2, 0, -10}, mgl64.Vec3{2, 0, 10}); ok {
		t.Error("parallel segment outside the slab should miss")
	}
}

func TestAABBTransform(t *testing.T) {
	box := NewAABB(mgl64.Vec3{-1, -1, -1}, mgl64.Vec3{1, 1, 1})
	m := Compose(mgl64.QuatRotate(math.Pi/4, UnitY), mgl64.Vec3{10, 0, 0})
	got := box.Transform(m)
	r := math.Sqrt2
	want := NewAABB(mgl64.Vec3{10 - r, -1, -r}, mgl64.Vec3{10 + r, 1, r})
	if !got.Min.ApproxEqualThreshold(want.Min, 1e-9) || !got.Max.ApproxEqualThreshold(want.Max, 1e-9) {
		t.Errorf("Transform = %+v, want %+v", got, want)
	}
}

func TestPoseRoundTrip(t *testing.T) {
	q := mgl64.QuatRotate(1.1, mgl64.Vec3{1, 2, 3}.Normalize())
	m := Compose(q, mgl64.Vec3{1, 2, 3})
	back := RotationOf(m)
	if !RotationInSync(m, back, PoseTolerance) {
		t.Errorf("RotationOf(%v) = %v out of sync", m, back)
	}
	if !Compose(back, Translation(m)).ApproxEqualThreshold(m, 1e-9) {
		t.Error("Compose(RotationOf(m)) does not reproduce m")
	}
	p := mgl64.Vec3{0.3, -2, 5}
	if got := UntransformPoint(m, TransformPoint(m, p)); !got.ApproxEqualThreshold(p, 1e-9) {
		t.Errorf("Untransform(Transform(p)) = %v, want %v", got, p)
	}
}

func TestIntegrateRotationKeepsUnit(t *testing.T) {
	q := mgl64.QuatIdent()
	for i := 0; i < 1000; i++ {
		q = IntegrateRotation(q, mgl64.Vec3{3, -1, 2}, 1.0/60)
	}
	if math.Abs(q.Len()-1) > 1e-9 {
		t.Errorf("|q| = %v after integration", q.Len())
	}
}

func TestSimplexReduceTriangle(t *testing.T) {
	var s Simplex
	s.Add(mgl64.Vec3{-1, -1, 2}, mgl64.Vec3{}, mgl64.Vec3{})
	s.Add(mgl64.Vec3{1, -1, 2}, mgl64.Vec3{}, mgl64.Vec3{})
	s.Add(mgl64.Vec3{0, 2, 2}, mgl64.Vec3{}, mgl64.Vec3{})
	v := s.Reduce()
	if !v.ApproxEqualThreshold(mgl64.Vec3{0, 0, 2}, 1e-9) {
		t.Errorf("closest = %v, want (0,0,2)", v)
	}
	if s.N != 3 {
		t.Errorf("N = %d, want 3", s.N)
	}
}

func TestSimplexReduceDropsVertices(t *testing.T) {
	var s Simplex
	s.Add(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{}, mgl64.Vec3{})
	s.Add(mgl64.Vec3{3, 0, 0}, mgl64.Vec3{}, mgl64.Vec3{})
	v := s.Reduce()
	if s.N != 1 || !v.ApproxEqual(mgl64.Vec3{1, 0, 0}) {
		t.Errorf("got N=%d v=%v, want single vertex (1,0,0)", s.N, v)
	}
}

func TestSimplexTetrahedronContainsOrigin(t *testing.T) {
	var s Simplex
	s.Add(mgl64.Vec3{1, 0, -1}, mgl64.Vec3{}, mgl64.Vec3{})
	s.Add(mgl64.Vec3{-1, 1, -1}, mgl64.Vec3{}, mgl64.Vec3{})
	s.Add(mgl64.Vec3{-1, -1, -1}, mgl64.Vec3{}, mgl64.Vec3{})
	s.Add(mgl64.Vec3{0, 0, 1}, mgl64.Vec3{}, mgl64.Vec3{})
	v := s.Reduce()
	if v.Len() > 1e-9 || s.N != 4 {
		t.Errorf("got N=%d v=%v, want the origin enclosed", s.N, v)
	}
}
