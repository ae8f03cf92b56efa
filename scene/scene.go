// Package scene describes worlds as data: scene files in JSON or YAML and the procedural
// generators the CLI offers. Both end up in Build.
package scene

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/0x5844/physics-3d/arena"
	"github.com/0x5844/physics-3d/geom"
	"github.com/0x5844/physics-3d/material"
	"github.com/0x5844/physics-3d/shape"
	"github.com/0x5844/physics-3d/world"
)

type Scene struct {
	Name      string           `json:"name,omitempty" yaml:"name,omitempty"`
	Gravity   *mgl64.Vec3      `json:"gravity,omitempty" yaml:"gravity,omitempty"`
	Duration  float64          `json:"duration,omitempty" yaml:"duration,omitempty"`
	Materials []MaterialConfig `json:"materials,omitempty" yaml:"materials,omitempty"`
	Bodies    []BodyConfig     `json:"bodies" yaml:"bodies"`
	Joints    []JointConfig    `json:"joints,omitempty" yaml:"joints,omitempty"`
}

// MaterialConfig declares a material and its pair properties against With, or against
// itself when With is empty.
type MaterialConfig struct {
	Name            string  `json:"name" yaml:"name"`
	With            string  `json:"with,omitempty" yaml:"with,omitempty"`
	Restitution     float64 `json:"restitution" yaml:"restitution"`
	StaticFriction  float64 `json:"static_friction" yaml:"static_friction"`
	KineticFriction float64 `json:"kinetic_friction" yaml:"kinetic_friction"`
	NoCollide       bool    `json:"no_collide,omitempty" yaml:"no_collide,omitempty"`
}

// BodyConfig is one body. Zero density and mass make it static; a positive mass overrides
// density.
type BodyConfig struct {
	Name       string      `json:"name,omitempty" yaml:"name,omitempty"`
	Type       string      `json:"type" yaml:"type"`
	Density    float64     `json:"density,omitempty" yaml:"density,omitempty"`
	Mass       float64     `json:"mass,omitempty" yaml:"mass,omitempty"`
	Position   mgl64.Vec3  `json:"position" yaml:"position"`
	Axis       mgl64.Vec3  `json:"axis,omitempty" yaml:"axis,omitempty"`
	Angle      float64     `json:"angle,omitempty" yaml:"angle,omitempty"`
	Velocity   mgl64.Vec3  `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	Omega      mgl64.Vec3  `json:"omega,omitempty" yaml:"omega,omitempty"`
	Shape      ShapeConfig `json:"shape" yaml:"shape"`
	Material   string      `json:"material,omitempty" yaml:"material,omitempty"`
	Continuous bool        `json:"continuous,omitempty" yaml:"continuous,omitempty"`
	Sleeping   bool        `json:"sleeping,omitempty" yaml:"sleeping,omitempty"`
}

type ShapeConfig struct {
	Radius     float64      `json:"radius,omitempty" yaml:"radius,omitempty"`
	HalfHeight float64      `json:"half_height,omitempty" yaml:"half_height,omitempty"`
	Size       mgl64.Vec3   `json:"size,omitempty" yaml:"size,omitempty"`
	Points     []mgl64.Vec3 `json:"points,omitempty" yaml:"points,omitempty"`
}

// JointConfig links body A to body B, or to the world when B is empty. Distance joints use
// Pivot on A and AnchorB on B.
type JointConfig struct {
	Type    string     `json:"type" yaml:"type"`
	A       string     `json:"a" yaml:"a"`
	B       string     `json:"b,omitempty" yaml:"b,omitempty"`
	Pivot   mgl64.Vec3 `json:"pivot" yaml:"pivot"`
	Axis    mgl64.Vec3 `json:"axis,omitempty" yaml:"axis,omitempty"`
	AnchorB mgl64.Vec3 `json:"anchor_b,omitempty" yaml:"anchor_b,omitempty"`
}

// Load reads a scene file. The extension picks the format: .yaml and .yml are YAML,
// anything else JSON.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scene")
	}
	var s Scene
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse scene %s", path)
	}
	if err := s.Validate(); err != nil {
		return nil, errors.Wrapf(err, "scene %s", path)
	}
	return &s, nil
}

func (s *Scene) Validate() error {
	if s.Duration < 0 {
		return errors.New("duration cannot be negative")
	}
	materials := map[string]bool{"": true, "default": true}
	for _, m := range s.Materials {
		if m.Name == "" {
			return errors.New("material without a name")
		}
		materials[m.Name] = true
	}
	for _, m := range s.Materials {
		if !materials[m.With] {
			return errors.Errorf("material %q pairs with unknown material %q", m.Name, m.With)
		}
	}
	names := make(map[string]bool)
	for i, b := range s.Bodies {
		if b.Density < 0 || b.Mass < 0 {
			return errors.Errorf("body %d: negative mass or density", i)
		}
		if !materials[b.Material] {
			return errors.Errorf("body %d: unknown material %q", i, b.Material)
		}
		if b.Name != "" {
			if names[b.Name] {
				return errors.Errorf("body %d: duplicate name %q", i, b.Name)
			}
			names[b.Name] = true
		}
	}
	for i, j := range s.Joints {
		if !names[j.A] {
			return errors.Errorf("joint %d: unknown body %q", i, j.A)
		}
		if j.B != "" && !names[j.B] {
			return errors.Errorf("joint %d: unknown body %q", i, j.B)
		}
		switch strings.ToLower(j.Type) {
		case "ball", "hinge", "distance":
		default:
			return errors.Errorf("joint %d: unknown type %q", i, j.Type)
		}
	}
	return nil
}

// NewShape builds the collision shape a body config describes.
func (b BodyConfig) NewShape() (shape.Convex, error) {
	switch strings.ToLower(b.Type) {
	case "sphere":
		return shape.NewSphere(b.Shape.Radius)
	case "box":
		return shape.NewBox(b.Shape.Size.Mul(0.5))
	case "capsule":
		return shape.NewCapsule(b.Shape.Radius, b.Shape.HalfHeight)
	case "hull":
		return shape.NewConvexHull(b.Shape.Points)
	}
	return nil, errors.Errorf("unknown body type: %s", b.Type)
}

// Matrix is the body's initial pose.
func (b BodyConfig) Matrix() mgl64.Mat4 {
	q := mgl64.QuatIdent()
	if axis, ok := geom.Normalize(b.Axis); ok && b.Angle != 0 {
		q = mgl64.QuatRotate(b.Angle, axis)
	}
	return geom.Compose(q, b.Position)
}

// Handles maps body names to the handles Build created.
type Handles map[string]arena.Handle

// Build creates the scene's materials, bodies and joints in w.
func Build(w *world.World, s *Scene) (Handles, error) {
	if s.Gravity != nil {
		w.SetGravity(*s.Gravity)
	}
	ids := map[string]int{"": material.Default, "default": material.Default}
	for _, m := range s.Materials {
		if _, ok := ids[m.Name]; !ok {
			ids[m.Name] = w.Materials().Create(m.Name)
		}
	}
	for _, m := range s.Materials {
		with := m.Name
		if m.With != "" {
			with = m.With
		}
		w.Materials().Set(ids[m.Name], ids[with], material.Pair{
			Restitution:     m.Restitution,
			StaticFriction:  m.StaticFriction,
			KineticFriction: m.KineticFriction,
			Collidable:      !m.NoCollide,
		})
	}

	handles := make(Handles)
	for i, bc := range s.Bodies {
		sh, err := bc.NewShape()
		if err != nil {
			return nil, errors.Wrapf(err, "body %d", i)
		}
		h := w.CreateBody(sh, bc.Matrix())
		if err := setup(w, h, sh, bc, ids); err != nil {
			return nil, errors.Wrapf(err, "body %d", i)
		}
		if bc.Name != "" {
			handles[bc.Name] = h
		}
	}

	for i, j := range s.Joints {
		a := handles[j.A]
		b := arena.Nil
		if j.B != "" {
			b = handles[j.B]
		}
		var err error
		switch strings.ToLower(j.Type) {
		case "ball":
			_, err = w.BallSocket(a, b, j.Pivot)
		case "hinge":
			_, err = w.Hinge(a, b, j.Pivot, j.Axis)
		case "distance":
			_, err = w.Distance(a, b, j.Pivot, j.AnchorB)
		default:
			err = errors.Errorf("unknown type %q", j.Type)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "joint %d", i)
		}
	}
	return handles, nil
}

func setup(w *world.World, h arena.Handle, sh shape.Convex, bc BodyConfig, ids map[string]int) error {
	density := bc.Density
	if bc.Mass > 0 {
		if v := sh.MassProperties(1).Volume; v > 0 {
			density = bc.Mass / v
		}
	}
	if density > 0 && !math.IsInf(density, 0) {
		if err := w.SetMassFromShape(h, density); err != nil {
			return err
		}
		if bc.Velocity != (mgl64.Vec3{}) || bc.Omega != (mgl64.Vec3{}) {
			if err := w.SetVelocity(h, bc.Velocity, bc.Omega); err != nil {
				return err
			}
		}
	}
	if err := w.SetMaterial(h, ids[bc.Material]); err != nil {
		return err
	}
	if bc.Continuous {
		if err := w.SetContinuous(h, true); err != nil {
			return err
		}
	}
	if bc.Sleeping {
		return w.SetSleeping(h, true)
	}
	return nil
}
