// Package config holds the engine tuning: capacities, solver constants, the sleep table and
// the broad-phase layout.
package config

import (
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Solver struct {
	// Passes is how many times rows are re-activated and solved per step.
	Passes        int     `yaml:"passes" json:"passes"`
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance" json:"tolerance"`

	Baumgarte             float64 `yaml:"baumgarte" json:"baumgarte"`
	Slop                  float64 `yaml:"slop" json:"slop"`
	MaxCorrectionVelocity float64 `yaml:"max_correction_velocity" json:"max_correction_velocity"`
	RestitutionThreshold  float64 `yaml:"restitution_threshold" json:"restitution_threshold"`
	StaticFrictionSpeed   float64 `yaml:"static_friction_speed" json:"static_friction_speed"`
	// Regularization is added to every row's diagonal.
	Regularization float64 `yaml:"regularization" json:"regularization"`
}

type BroadPhase struct {
	Layers int `yaml:"layers" json:"layers"`
	// CellSize is the edge of the finest layer's cells.
	CellSize      float64    `yaml:"cell_size" json:"cell_size"`
	WorldMin      mgl64.Vec3 `yaml:"world_min" json:"world_min"`
	WorldMax      mgl64.Vec3 `yaml:"world_max" json:"world_max"`
	ResortEpsilon float64    `yaml:"resort_epsilon" json:"resort_epsilon"`
}

// SleepEntry is one row of the sleep table. An island whose peak motion stays inside the
// limits for Steps consecutive steps goes to sleep.
type SleepEntry struct {
	MaxAccel float64 `yaml:"max_accel" json:"max_accel"`
	MaxAlpha float64 `yaml:"max_alpha" json:"max_alpha"`
	MaxVeloc float64 `yaml:"max_veloc" json:"max_veloc"`
	MaxOmega float64 `yaml:"max_omega" json:"max_omega"`
	Steps    int     `yaml:"steps" json:"steps"`
}

type Sleep struct {
	Enabled bool         `yaml:"enabled" json:"enabled"`
	Table   []SleepEntry `yaml:"table" json:"table"`
}

type Capacity struct {
	Bodies               int `yaml:"bodies" json:"bodies"`
	Constraints          int `yaml:"constraints" json:"constraints"`
	Rows                 int `yaml:"rows" json:"rows"`
	Pairs                int `yaml:"pairs" json:"pairs"`
	MaxRowsPerConstraint int `yaml:"max_rows_per_constraint" json:"max_rows_per_constraint"`
	MaxContactPoints     int `yaml:"max_contact_points" json:"max_contact_points"`
}

type Narrow struct {
	MaxPolygonVertices int     `yaml:"max_polygon_vertices" json:"max_polygon_vertices"`
	FeatureThickness   float64 `yaml:"feature_thickness" json:"feature_thickness"`
}

type Material struct {
	Restitution     float64 `yaml:"restitution" json:"restitution"`
	StaticFriction  float64 `yaml:"static_friction" json:"static_friction"`
	KineticFriction float64 `yaml:"kinetic_friction" json:"kinetic_friction"`
}

type Config struct {
	Gravity     mgl64.Vec3 `yaml:"gravity" json:"gravity"`
	TimeStep    float64    `yaml:"timestep" json:"timestep"`
	Workers     int        `yaml:"workers" json:"workers"`
	AABBPadding float64    `yaml:"aabb_padding" json:"aabb_padding"`
	// LinearDamping and AngularDamping are given to every new body, per second.
	LinearDamping  float64 `yaml:"linear_damping" json:"linear_damping"`
	AngularDamping float64 `yaml:"angular_damping" json:"angular_damping"`

	Solver     Solver     `yaml:"solver" json:"solver"`
	BroadPhase BroadPhase `yaml:"broadphase" json:"broadphase"`
	Sleep      Sleep      `yaml:"sleep" json:"sleep"`
	Capacity   Capacity   `yaml:"capacity" json:"capacity"`
	Narrow     Narrow     `yaml:"narrow" json:"narrow"`
	Material   Material   `yaml:"material" json:"material"`
}

func Default() *Config {
	return &Config{
		Gravity:        mgl64.Vec3{0, -9.81, 0},
		TimeStep:       1.0 / 60.0,
		Workers:        0,
		AABBPadding:    1.0 / 32.0,
		LinearDamping:  0.1,
		AngularDamping: 0.1,
		Solver: Solver{
			Passes:                2,
			MaxIterations:         16,
			Tolerance:             1e-4,
			Baumgarte:             0.2,
			Slop:                  0.005,
			MaxCorrectionVelocity: 1.0,
			RestitutionThreshold:  0.5,
			StaticFrictionSpeed:   0.1,
			Regularization:        1e-9,
		},
		BroadPhase: BroadPhase{
			Layers:        8,
			CellSize:      4,
			WorldMin:      mgl64.Vec3{-1000, -1000, -1000},
			WorldMax:      mgl64.Vec3{1000, 1000, 1000},
			ResortEpsilon: 1.0 / 64.0,
		},
		Sleep: Sleep{
			Enabled: true,
			Table: []SleepEntry{
				{MaxAccel: 0.25, MaxAlpha: 0.25, MaxVeloc: 0.05, MaxOmega: 0.05, Steps: 20},
				{MaxAccel: 0.5, MaxAlpha: 0.5, MaxVeloc: 0.1, MaxOmega: 0.1, Steps: 40},
				{MaxAccel: 1, MaxAlpha: 1, MaxVeloc: 0.2, MaxOmega: 0.2, Steps: 80},
			},
		},
		Capacity: Capacity{
			Bodies:               1024,
			Constraints:          2048,
			Rows:                 4096,
			Pairs:                2048,
			MaxRowsPerConstraint: 24,
			MaxContactPoints:     4,
		},
		Narrow: Narrow{
			MaxPolygonVertices: 8,
			FeatureThickness:   0.02,
		},
		Material: Material{
			Restitution:     0.4,
			StaticFriction:  0.9,
			KineticFriction: 0.5,
		},
	}
}

// Load reads a YAML (or JSON) file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}

// Clone returns a deep copy, so worlds built from one Config never share its sleep table.
func (c *Config) Clone() *Config {
	out := &Config{}
	if err := copier.CopyWithOption(out, c, copier.Option{DeepCopy: true}); err != nil {
		panic(errors.Wrap(err, "clone config"))
	}
	return out
}

func (c *Config) Validate() error {
	switch {
	case c.TimeStep <= 0:
		return errors.New("timestep must be positive")
	case c.Workers < 0:
		return errors.New("workers cannot be negative")
	case c.AABBPadding < 0:
		return errors.New("aabb padding cannot be negative")
	case c.LinearDamping < 0 || c.AngularDamping < 0:
		return errors.New("damping cannot be negative")
	case c.Solver.Passes < 1:
		return errors.New("solver passes must be at least 1")
	case c.Solver.MaxIterations < 1:
		return errors.New("solver iterations must be at least 1")
	case c.Solver.Tolerance <= 0:
		return errors.New("solver tolerance must be positive")
	case c.Solver.Baumgarte < 0 || c.Solver.Baumgarte > 1:
		return errors.Errorf("baumgarte %v outside [0, 1]", c.Solver.Baumgarte)
	case c.Solver.MaxCorrectionVelocity <= 0:
		return errors.New("max correction velocity must be positive")
	case c.BroadPhase.Layers < 1 || c.BroadPhase.Layers > 30:
		return errors.Errorf("broadphase layers %d outside [1, 30]", c.BroadPhase.Layers)
	case c.BroadPhase.CellSize <= 0:
		return errors.New("broadphase cell size must be positive")
	case c.Capacity.MaxContactPoints < 1:
		return errors.New("max contact points must be at least 1")
	case c.Capacity.MaxRowsPerConstraint < 3*c.Capacity.MaxContactPoints:
		return errors.Errorf("max rows per constraint %d cannot hold %d contact points",
			c.Capacity.MaxRowsPerConstraint, c.Capacity.MaxContactPoints)
	case c.Narrow.MaxPolygonVertices < 3:
		return errors.New("max polygon vertices must be at least 3")
	}
	for i := 0; i < 3; i++ {
		if c.BroadPhase.WorldMin[i] >= c.BroadPhase.WorldMax[i] {
			return errors.Errorf("world bounds empty on axis %d", i)
		}
	}
	for i, e := range c.Sleep.Table {
		if e.Steps < 1 {
			return errors.Errorf("sleep table entry %d: steps must be at least 1", i)
		}
	}
	return nil
}
