package scene

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Kinds lists the generated scene types.
var Kinds = []string{"default", "pyramid", "rain", "container", "pendulum", "mixed"}

func ValidKind(kind string) bool { return slices.Contains(Kinds, kind) }

// Generate builds a procedural scene with about n dynamic bodies.
func Generate(kind string, n int, rng *rand.Rand) (*Scene, error) {
	if n < 1 {
		return nil, errors.New("bodies count must be at least 1")
	}
	g := &generator{rng: rng, s: &Scene{Name: kind}}
	switch kind {
	case "default":
		g.defaultScene(n)
	case "pyramid":
		g.pyramid(n)
	case "rain":
		g.rain(n)
	case "container":
		g.container(n)
	case "pendulum":
		g.pendulum(n)
	case "mixed":
		g.mixed(n)
	default:
		return nil, errors.Errorf("invalid scene type: %s", kind)
	}
	return g.s, nil
}

type generator struct {
	rng *rand.Rand
	s   *Scene
}

// between returns a uniform value in [lo, hi).
func (g *generator) between(lo, hi float64) float64 { return lo + g.rng.Float64()*(hi-lo) }

func (g *generator) box(density float64, pos, size mgl64.Vec3) *BodyConfig {
	g.s.Bodies = append(g.s.Bodies, BodyConfig{
		Type:     "box",
		Density:  density,
		Position: pos,
		Shape:    ShapeConfig{Size: size},
	})
	return &g.s.Bodies[len(g.s.Bodies)-1]
}

func (g *generator) sphere(density float64, pos mgl64.Vec3, r float64) *BodyConfig {
	g.s.Bodies = append(g.s.Bodies, BodyConfig{
		Type:     "sphere",
		Density:  density,
		Position: pos,
		Shape:    ShapeConfig{Radius: r},
	})
	return &g.s.Bodies[len(g.s.Bodies)-1]
}

func (g *generator) capsule(density float64, pos mgl64.Vec3, r, halfHeight float64) *BodyConfig {
	g.s.Bodies = append(g.s.Bodies, BodyConfig{
		Type:     "capsule",
		Density:  density,
		Position: pos,
		Shape:    ShapeConfig{Radius: r, HalfHeight: halfHeight},
	})
	return &g.s.Bodies[len(g.s.Bodies)-1]
}

// scatter picks a point in the horizontal square of the given width at a height in [lo, hi).
func (g *generator) scatter(width, lo, hi float64) mgl64.Vec3 {
	return mgl64.Vec3{g.between(-width/2, width/2), g.between(lo, hi), g.between(-width/2, width/2)}
}

func (g *generator) defaultScene(n int) {
	g.box(0, mgl64.Vec3{0, -5, 0}, mgl64.Vec3{200, 10, 200})
	for i := 0; i < n; i++ {
		p := g.scatter(60, 5, 40)
		if g.rng.Float64() < 0.6 {
			g.sphere(1, p, g.between(0.5, 1.5))
		} else {
			s := g.between(1, 2.5)
			g.box(1, p, mgl64.Vec3{s, s, s})
		}
	}
}

// pyramid stacks square layers of boxes, each layer one box narrower than the one below.
func (g *generator) pyramid(n int) {
	g.box(0, mgl64.Vec3{0, -2.5, 0}, mgl64.Vec3{100, 5, 100})
	const size = 1.0
	levels, total := 0, 0
	for total < n {
		levels++
		total += levels * levels
	}
	y := size / 2
	for level := levels; level > 0; level-- {
		offset := float64(level-1) * size / 2
		for i := 0; i < level; i++ {
			for k := 0; k < level; k++ {
				p := mgl64.Vec3{float64(i)*size - offset, y, float64(k)*size - offset}
				g.box(1, p, mgl64.Vec3{size * 0.95, size * 0.95, size * 0.95})
			}
		}
		y += size
	}
}

func (g *generator) rain(n int) {
	g.box(0, mgl64.Vec3{0, -5, 0}, mgl64.Vec3{150, 10, 150})
	for _, x := range []float64{-75, 75} {
		g.box(0, mgl64.Vec3{x, 25, 0}, mgl64.Vec3{5, 50, 150})
		g.box(0, mgl64.Vec3{0, 25, x}, mgl64.Vec3{150, 50, 5})
	}
	for i := 0; i < n; i++ {
		p := g.scatter(120, 50, 150)
		var b *BodyConfig
		if g.rng.Float64() < 0.7 {
			b = g.sphere(1, p, g.between(0.25, 1))
		} else {
			b = g.box(1, p, mgl64.Vec3{g.between(0.5, 2), g.between(0.5, 2), g.between(0.5, 2)})
		}
		b.Velocity = mgl64.Vec3{0, -g.between(5, 20), 0}
		b.Continuous = true
	}
}

func (g *generator) container(n int) {
	const (
		wall   = 2.0
		width  = 30.0
		height = 20.0
	)
	g.box(0, mgl64.Vec3{0, -wall / 2, 0}, mgl64.Vec3{width + 2*wall, wall, width + 2*wall})
	for _, x := range []float64{-(width + wall) / 2, (width + wall) / 2} {
		g.box(0, mgl64.Vec3{x, height / 2, 0}, mgl64.Vec3{wall, height, width})
		g.box(0, mgl64.Vec3{0, height / 2, x}, mgl64.Vec3{width, height, wall})
	}
	for i := 0; i < n; i++ {
		p := g.scatter(width-4, 2, height+20)
		if g.rng.Float64() < 0.6 {
			g.sphere(0.5, p, g.between(0.3, 1))
		} else {
			s := g.between(0.6, 1.6)
			g.box(0.5, p, mgl64.Vec3{s, s, s})
		}
	}
}

// pendulum hangs a row of bobs from the world. Joint types cycle through ball, hinge and
// distance so every joint kind swings.
func (g *generator) pendulum(n int) {
	count := max(1, n/3)
	for i := 0; i < count; i++ {
		x := float64(i-count/2) * 4
		anchor := mgl64.Vec3{x, 20, 0}
		bob := g.sphere(1, mgl64.Vec3{x, 12, 0}, 0.75)
		bob.Name = fmt.Sprintf("bob%d", i)
		bob.Velocity = mgl64.Vec3{g.between(-5, 5), 0, g.between(-5, 5)}
		j := JointConfig{A: bob.Name, Pivot: anchor}
		switch i % 3 {
		case 0:
			j.Type = "ball"
		case 1:
			j.Type = "hinge"
			j.Axis = mgl64.Vec3{0, 0, 1}
			bob.Velocity[2] = 0
		case 2:
			j.Type = "distance"
			j.Pivot = bob.Position
			j.AnchorB = anchor
		}
		g.s.Joints = append(g.s.Joints, j)
	}
}

func (g *generator) mixed(n int) {
	g.s.Materials = []MaterialConfig{
		{Name: "rubber", Restitution: 0.8, StaticFriction: 1, KineticFriction: 0.8},
		{Name: "ice", Restitution: 0.1, StaticFriction: 0.05, KineticFriction: 0.02},
		{Name: "wood", Restitution: 0.4, StaticFriction: 0.6, KineticFriction: 0.4},
	}
	g.box(0, mgl64.Vec3{-40, -5, 0}, mgl64.Vec3{50, 10, 50})
	g.box(0, mgl64.Vec3{40, -5, 0}, mgl64.Vec3{50, 10, 50})
	for i := 0; i < 5; i++ {
		p := mgl64.Vec3{g.between(-50, 50), float64(i)*8 + 5, g.between(-20, 20)}
		platform := g.box(0, p, mgl64.Vec3{g.between(10, 25), 1, g.between(5, 10)})
		platform.Axis = mgl64.Vec3{0, 0, 1}
		platform.Angle = g.between(-0.2, 0.2)
		platform.Material = "ice"
	}
	for i := 0; i < n; i++ {
		p := g.scatter(80, 50, 100)
		var b *BodyConfig
		switch g.rng.Intn(3) {
		case 0:
			b = g.sphere(1, p, g.between(0.5, 1.5))
			b.Material = "rubber"
		case 1:
			s := g.between(1, 2.5)
			b = g.box(1, p, mgl64.Vec3{s, s, s})
			b.Material = "wood"
		case 2:
			b = g.capsule(1, p, g.between(0.3, 0.7), g.between(0.5, 1.5))
			b.Axis = mgl64.Vec3{g.rng.Float64(), g.rng.Float64(), g.rng.Float64()}
			b.Angle = g.between(0, math.Pi)
		}
	}
}
