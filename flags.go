package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/pkg/errors"

	"github.com/0x5844/physics-3d/config"
	"github.com/0x5844/physics-3d/scene"
)

type options struct {
	ConfigFile string

	// Simulation parameters
	GravityX float64
	GravityY float64
	GravityZ float64
	TimeStep float64
	Duration float64
	MaxFPS   int
	Fast     bool

	// Performance settings
	Workers      int
	Iterations   int
	Passes       int
	SleepEnabled bool

	// Output settings
	Verbose       bool
	Quiet         bool
	Dump          bool
	StatsInterval float64
	ProfileCPU    string
	ProfileMem    string

	// Scene settings
	SceneFile   string
	BodiesCount int
	SceneType   string
	Seed        int64

	// Engine settings
	Damping     float64
	Restitution float64
	Friction    float64

	ShowVersion bool

	// set holds the names of the flags given on the command line.
	set map[string]bool
}

func newFlagSet(opts *options, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("physics3d", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&opts.ConfigFile, "config", "", "engine configuration file (YAML or JSON)")

	// Simulation parameters
	fs.Float64Var(&opts.GravityX, "gravity-x", 0.0, "gravity X component")
	fs.Float64Var(&opts.GravityY, "gravity-y", -9.81, "gravity Y component")
	fs.Float64Var(&opts.GravityZ, "gravity-z", 0.0, "gravity Z component")
	fs.Float64Var(&opts.TimeStep, "timestep", 1.0/60.0, "physics time step")
	fs.Float64Var(&opts.Duration, "duration", 0, "simulation duration in seconds (0 = infinite)")
	fs.IntVar(&opts.MaxFPS, "fps", 60, "maximum frames per second")
	fs.BoolVar(&opts.Fast, "fast", false, "step as fast as possible instead of in real time (needs -duration)")

	// Performance settings
	fs.IntVar(&opts.Workers, "workers", runtime.NumCPU(), "number of worker goroutines")
	fs.IntVar(&opts.Iterations, "iterations", 16, "solver iterations per pass")
	fs.IntVar(&opts.Passes, "passes", 2, "solver passes per step")
	fs.BoolVar(&opts.SleepEnabled, "sleep", true, "enable body sleeping")

	// Output settings
	fs.BoolVar(&opts.Verbose, "verbose", false, "verbose output")
	fs.BoolVar(&opts.Quiet, "quiet", false, "minimal output")
	fs.BoolVar(&opts.Dump, "dump", false, "dump the final body states to stdout")
	fs.Float64Var(&opts.StatsInterval, "stats-interval", 2.0, "statistics reporting interval")
	fs.StringVar(&opts.ProfileCPU, "profile-cpu", "", "CPU profile output file")
	fs.StringVar(&opts.ProfileMem, "profile-mem", "", "memory profile output file")

	// Scene settings
	fs.StringVar(&opts.SceneFile, "scene", "", "scene file to load (.json, .yaml)")
	fs.IntVar(&opts.BodiesCount, "bodies", 100, "number of bodies for generated scenes")
	fs.StringVar(&opts.SceneType, "scene-type", "default", "scene type (default, pyramid, rain, container, pendulum, mixed)")
	fs.Int64Var(&opts.Seed, "seed", 0, "random seed for generated scenes (0 = time based)")

	// Engine settings
	fs.Float64Var(&opts.Damping, "damping", 0.1, "linear and angular damping per second")
	fs.Float64Var(&opts.Restitution, "restitution", 0.4, "default restitution")
	fs.Float64Var(&opts.Friction, "friction", 0.5, "default kinetic friction")

	fs.BoolVar(&opts.ShowVersion, "version", false, "show version information")

	fs.Usage = func() {
		name := os.Args[0]
		fmt.Fprintf(out, "Physics3D - Parallel 3D Rigid-Body Physics Engine\n\n")
		fmt.Fprintf(out, "Usage: %s [OPTIONS]\n\n", name)
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nExamples:\n")
		fmt.Fprintf(out, "  %s -bodies 500 -scene-type pyramid\n", name)
		fmt.Fprintf(out, "  %s -scene scene.yaml -duration 10 -fast\n", name)
		fmt.Fprintf(out, "  %s -config engine.yaml -profile-cpu cpu.prof -verbose\n", name)
		fmt.Fprintf(out, "\nVersion: %s\n", Version)
	}
	return fs
}

func parseFlags(args []string, out io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}
	fs := newFlagSet(opts, out)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	if opts.ShowVersion {
		return opts, nil
	}
	if err := validateOptions(opts); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return opts, nil
}

func validateOptions(opts *options) error {
	if opts.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if opts.MaxFPS < 1 || opts.MaxFPS > 1000 {
		return errors.New("fps must be between 1 and 1000")
	}
	if opts.Duration < 0 {
		return errors.New("duration cannot be negative")
	}
	if opts.Fast && opts.Duration == 0 && opts.SceneFile == "" {
		return errors.New("fast mode needs a duration")
	}
	if opts.BodiesCount < 1 {
		return errors.New("bodies count must be at least 1")
	}
	if opts.Iterations < 1 || opts.Passes < 1 {
		return errors.New("iterations and passes must be at least 1")
	}
	if opts.StatsInterval <= 0 {
		return errors.New("stats interval must be positive")
	}
	if !scene.ValidKind(opts.SceneType) {
		return errors.Errorf("invalid scene type: %s", opts.SceneType)
	}
	return nil
}

// engineConfig loads the configuration file, if any, and lays the flags given on the command
// line over it. Flags left at their defaults do not override the file.
func engineConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	override := func(name string, apply func()) {
		if opts.ConfigFile == "" || opts.set[name] {
			apply()
		}
	}
	override("gravity-x", func() { cfg.Gravity[0] = opts.GravityX })
	override("gravity-y", func() { cfg.Gravity[1] = opts.GravityY })
	override("gravity-z", func() { cfg.Gravity[2] = opts.GravityZ })
	override("timestep", func() { cfg.TimeStep = opts.TimeStep })
	override("workers", func() { cfg.Workers = opts.Workers })
	override("iterations", func() { cfg.Solver.MaxIterations = opts.Iterations })
	override("passes", func() { cfg.Solver.Passes = opts.Passes })
	override("sleep", func() { cfg.Sleep.Enabled = opts.SleepEnabled })
	override("damping", func() { cfg.LinearDamping, cfg.AngularDamping = opts.Damping, opts.Damping })
	override("restitution", func() { cfg.Material.Restitution = opts.Restitution })
	override("friction", func() {
		cfg.Material.KineticFriction = opts.Friction
		cfg.Material.StaticFriction = max(cfg.Material.StaticFriction, opts.Friction)
	})
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}
