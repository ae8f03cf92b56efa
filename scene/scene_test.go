package scene

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/config"
	"github.com/0x5844/physics-3d/constraint"
	"github.com/0x5844/physics-3d/world"
)

func newWorld(t *testing.T) *world.World {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 2
	w, err := world.New(world.Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Close)
	return w
}

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const jsonScene = `{
  "gravity": [0, -3, 0],
  "duration": 2,
  "materials": [{"name": "rubber", "restitution": 0.9, "static_friction": 1, "kinetic_friction": 0.7}],
  "bodies": [
    {"name": "floor", "type": "box", "position": [0, -0.5, 0], "shape": {"size": [20, 1, 20]}},
    {"name": "ball", "type": "sphere", "density": 2, "position": [0, 3, 0], "velocity": [1, 0, 0],
     "material": "rubber", "shape": {"radius": 0.5}}
  ],
  "joints": [{"type": "distance", "a": "ball", "pivot": [0, 3, 0], "anchor_b": [0, 6, 0]}]
}`

const yamlScene = `
name: hull demo
bodies:
  - name: rock
    type: hull
    mass: 5
    position: [0, 2, 0]
    axis: [0, 1, 0]
    angle: 0.5
    continuous: true
    shape:
      points: [[0, 0, 0], [1, 0, 0], [0, 1, 0], [0, 0, 1], [1, 1, 1]]
  - name: pill
    type: capsule
    density: 1
    position: [3, 2, 0]
    shape: {radius: 0.25, half_height: 0.5}
joints:
  - {type: hinge, a: rock, b: pill, pivot: [1.5, 2, 0], axis: [0, 0, 1]}
`

func TestLoadJSON(t *testing.T) {
	s, err := Load(write(t, "scene.json", jsonScene))
	if err != nil {
		t.Fatal(err)
	}
	if s.Gravity == nil || *s.Gravity != (mgl64.Vec3{0, -3, 0}) || len(s.Bodies) != 2 || s.Duration != 2 {
		t.Fatalf("scene %s", spew.Sdump(s))
	}

	w := newWorld(t)
	handles, err := Build(w, s)
	if err != nil {
		t.Fatal(err)
	}
	ball, err := w.Body(handles["ball"])
	if err != nil {
		t.Fatal(err)
	}
	if ball.IsStatic() || ball.Velocity() != (mgl64.Vec3{1, 0, 0}) {
		t.Errorf("ball mass %v velocity %v", ball.Mass(), ball.Velocity())
	}
	if name := w.Materials().Name(ball.Material()); name != "rubber" {
		t.Errorf("ball material %q", name)
	}
	if w.Gravity() != (mgl64.Vec3{0, -3, 0}) || w.ConstraintCount() != 1 {
		t.Errorf("gravity %v constraints %d", w.Gravity(), w.ConstraintCount())
	}
	floor, _ := w.Body(handles["floor"])
	if !floor.IsStatic() {
		t.Error("floor is dynamic")
	}
}

func TestLoadYAML(t *testing.T) {
	s, err := Load(write(t, "scene.yaml", yamlScene))
	if err != nil {
		t.Fatal(err)
	}
	w := newWorld(t)
	handles, err := Build(w, s)
	if err != nil {
		t.Fatal(err)
	}
	rock, _ := w.Body(handles["rock"])
	if rock == nil || rock.Mass() < 4.999 || rock.Mass() > 5.001 || !rock.IsContinuous() {
		t.Fatalf("rock %s", spew.Sdump(rock))
	}
	c, err := w.Constraint(findJoint(t, w))
	if err != nil || c.Kind() != constraint.KindHinge {
		t.Errorf("joint %v: %v", c, err)
	}
	for i := 0; i < 10; i++ {
		w.Advance(1.0 / 60)
	}
}

func findJoint(t *testing.T, w *world.World) arena.Handle {
	t.Helper()
	h := arena.Nil
	w.EachConstraint(func(c constraint.Constraint) bool {
		if c.Kind() == constraint.KindContact {
			return true
		}
		h = c.Handle()
		return false
	})
	if h.IsNil() {
		t.Fatal("no joint")
	}
	return h
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, file, body, want string
	}{
		{"missing", "", "", "read scene"},
		{"bad json", "a.json", `{"bodies": [`, "parse scene"},
		{"bad yaml", "a.yml", "bodies: [", "parse scene"},
		{"unknown material", "a.json", `{"bodies": [{"type": "sphere", "material": "lava", "shape": {"radius": 1}}]}`, "unknown material"},
		{"duplicate name", "a.json", `{"bodies": [{"name": "x", "type": "sphere"}, {"name": "x", "type": "sphere"}]}`, "duplicate name"},
		{"unknown joint body", "a.json", `{"bodies": [], "joints": [{"type": "ball", "a": "ghost"}]}`, "unknown body"},
		{"unknown joint type", "a.json", `{"bodies": [{"name": "x", "type": "sphere"}], "joints": [{"type": "weld", "a": "x"}]}`, "unknown type"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "none.json")
			if tc.file != "" {
				path = write(t, tc.file, tc.body)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("got %v, want %q", err, tc.want)
			}
		})
	}
}

func TestBuildRejectsBadShape(t *testing.T) {
	s := &Scene{Bodies: []BodyConfig{{Type: "cone"}}}
	if _, err := Build(newWorld(t), s); err == nil || !strings.Contains(err.Error(), "unknown body type") {
		t.Errorf("got %v", err)
	}
	s = &Scene{Bodies: []BodyConfig{{Type: "sphere", Shape: ShapeConfig{Radius: -1}}}}
	if _, err := Build(newWorld(t), s); err == nil {
		t.Error("negative radius accepted")
	}
}

func TestGenerators(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(kind, func(t *testing.T) {
			s, err := Generate(kind, 12, rand.New(rand.NewSource(1)))
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Validate(); err != nil {
				t.Fatal(err)
			}
			w := newWorld(t)
			if _, err := Build(w, s); err != nil {
				t.Fatal(err)
			}
			if w.BodyCount() != len(s.Bodies) || w.ConstraintCount() != len(s.Joints) {
				t.Errorf("bodies %d/%d joints %d/%d", w.BodyCount(), len(s.Bodies), w.ConstraintCount(), len(s.Joints))
			}
			for i := 0; i < 5; i++ {
				w.Advance(1.0 / 60)
			}
		})
	}
}

func TestGeneratorCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s, _ := Generate("pyramid", 14, rng)
	// 3x3 + 2x2 + 1 boxes reach 14, plus the ground
	if len(s.Bodies) != 15 {
		t.Errorf("pyramid has %d bodies", len(s.Bodies))
	}
	s, _ = Generate("pendulum", 9, rng)
	kinds := map[string]int{}
	for _, j := range s.Joints {
		kinds[j.Type]++
	}
	if len(s.Joints) != 3 || kinds["ball"] != 1 || kinds["hinge"] != 1 || kinds["distance"] != 1 {
		t.Errorf("pendulum joints %v", kinds)
	}
	if _, err := Generate("vortex", 10, rng); err == nil {
		t.Error("unknown kind accepted")
	}
	if _, err := Generate("rain", 0, rng); err == nil {
		t.Error("zero bodies accepted")
	}
	if !ValidKind("mixed") || ValidKind("vortex") {
		t.Error("ValidKind")
	}
}
