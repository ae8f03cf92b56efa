package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"timestep", func(c *Config) { c.TimeStep = 0 }, "timestep"},
		{"passes", func(c *Config) { c.Solver.Passes = 0 }, "passes"},
		{"baumgarte", func(c *Config) { c.Solver.Baumgarte = 2 }, "baumgarte"},
		{"layers", func(c *Config) { c.BroadPhase.Layers = 0 }, "layers"},
		{"row budget", func(c *Config) { c.Capacity.MaxRowsPerConstraint = 6 }, "cannot hold"},
		{"bounds", func(c *Config) { c.BroadPhase.WorldMax[1] = -2000 }, "axis 1"},
		{"sleep steps", func(c *Config) { c.Sleep.Table[1].Steps = 0 }, "entry 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	data := `
gravity: [0, -1.62, 0]
workers: 3
solver:
  max_iterations: 32
sleep:
  table:
    - {max_accel: 0.1, max_alpha: 0.1, max_veloc: 0.01, max_omega: 0.01, steps: 5}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Gravity[1] != -1.62 || c.Workers != 3 || c.Solver.MaxIterations != 32 {
		t.Errorf("overrides not applied: %s", spew.Sdump(c))
	}
	if c.Solver.Passes != Default().Solver.Passes {
		t.Errorf("unset field lost its default: passes=%d", c.Solver.Passes)
	}
	if len(c.Sleep.Table) != 1 || c.Sleep.Table[0].Steps != 5 {
		t.Errorf("sleep table %v", c.Sleep.Table)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.json")
	if err := os.WriteFile(path, []byte(`{"timestep": 0.01, "broadphase": {"layers": 4}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.TimeStep != 0.01 || c.BroadPhase.Layers != 4 {
		t.Errorf("json not applied: %+v", c)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(path, []byte("timestep: -1\n"), 0o644)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "timestep") {
		t.Errorf("invalid file: %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := Default()
	b := a.Clone()
	b.Sleep.Table[0].Steps = 999
	b.Gravity[1] = 0
	if a.Sleep.Table[0].Steps == 999 || a.Gravity[1] == 0 {
		t.Error("clone shares state with the original")
	}
	if b.Solver != a.Solver || b.Capacity != a.Capacity {
		t.Error("clone lost scalar sections")
	}
}
